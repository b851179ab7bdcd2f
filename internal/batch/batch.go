// Package batch recognizes plates in many local image files: it discovers
// the files, decodes them on a worker pool and feeds them to the pipeline one
// at a time.
package batch

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/tlpr/internal/acquire"
	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

// Processor is the part of *pipeline.Service a batch run needs.
type Processor interface {
	ProcessTrace(img image.Image) (pipeline.Result, *pipeline.Trace, error)
}

// Item is the outcome for one file.
type Item struct {
	File       string           `json:"file"`
	Result     *pipeline.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	Kind       string           `json:"kind,omitempty"`
	DurationNs int64            `json:"duration_ns"`
}

// OK reports whether a plate was recognized.
func (it Item) OK() bool { return it.Result != nil }

// Result holds every item in input order.
type Result struct {
	Items    []Item
	Duration time.Duration
	Workers  int
}

// Process discovers the files named by args and runs them.
func Process(ctx context.Context, p Processor, args []string, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	files, err := Discover(args, cfg)
	if err != nil {
		return nil, err
	}
	return Run(ctx, p, files, cfg.Workers)
}

type decoded struct {
	idx   int
	img   image.Image
	err   error
	start time.Time
}

// Run decodes files with up to workers goroutines and recognizes them
// serially. Per-file failures are recorded in the items; only cancellation
// fails the run.
func Run(ctx context.Context, p Processor, files []string, workers int) (*Result, error) {
	workers = max(workers, 1)
	start := time.Now()
	items := make([]Item, len(files))

	ch := make(chan decoded, workers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	go func() {
		defer close(ch)
		for i, f := range files {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				t := time.Now()
				img, err := acquire.LoadFile(f)
				select {
				case ch <- decoded{idx: i, img: img, err: err, start: t}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		_ = g.Wait()
	}()

	for d := range ch {
		if ctx.Err() != nil {
			continue // drain
		}
		items[d.idx] = recognize(p, files[d.idx], d)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Items: items, Duration: time.Since(start), Workers: workers}
	slog.Debug("Batch complete",
		"files", len(files),
		"recognized", res.Stats().Recognized,
		"duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func recognize(p Processor, file string, d decoded) Item {
	item := Item{File: file}
	err := d.err
	if err == nil {
		var res pipeline.Result
		res, _, err = p.ProcessTrace(d.img)
		if err == nil {
			item.Result = &res
		}
	}
	if err != nil {
		pe := pipeline.AsError(err)
		item.Error, item.Kind = pe.Message, pe.Kind.String()
		slog.Debug("Batch item failed", "file", file, "kind", item.Kind, "error", err)
	}
	item.DurationNs = time.Since(d.start).Nanoseconds()
	return item
}
