package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/tlpr/internal/acquire"
	"github.com/MeKo-Tech/tlpr/internal/config"
	"github.com/MeKo-Tech/tlpr/internal/pipeline"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// imageProcessor is the part of *pipeline.Service the image command uses.
type imageProcessor interface {
	ProcessTrace(img image.Image) (pipeline.Result, *pipeline.Trace, error)
	Close() error
}

// newImageProcessor loads the models; tests replace it with a fake.
var newImageProcessor = func(cfg *config.Config) (imageProcessor, error) {
	svc, err := pipeline.NewBuilderFromConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// imageOutput is one JSON line of `tlpr image`.
type imageOutput struct {
	Input  string           `json:"input"`
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
	Kind   string           `json:"kind,omitempty"`
	Trace  *pipeline.Trace  `json:"trace,omitempty"`
}

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image <file-or-url>...",
	Short: "Recognize license plates in image files or URLs",
	Long: `Recognize the plate number and province of each input image.

Inputs may be local files (JPEG, PNG, GIF, BMP, TIFF, WebP) or http(s) URLs.
Each input produces one line of output. The command fails only when every
input fails.

Examples:
  tlpr image car.jpg
  tlpr image a.jpg b.png --format text
  tlpr image https://example.com/car.jpg --trace`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		withTrace, _ := cmd.Flags().GetBool("trace")

		proc, err := newImageProcessor(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize pipeline: %w", err)
		}
		defer func() {
			if err := proc.Close(); err != nil {
				slog.Warn("Failed to release models", "error", err)
			}
		}()

		fetcher := acquire.NewFetcher(cfg.ToFetchConfig())
		failures := 0
		for _, input := range args {
			out := imageOutput{Input: input}
			img, err := acquire.Load(cmd.Context(), fetcher, input)
			if err == nil {
				var res pipeline.Result
				var trace *pipeline.Trace
				res, trace, err = proc.ProcessTrace(img)
				if err == nil {
					out.Result = &res
				}
				if withTrace {
					out.Trace = trace
				}
			}
			if err != nil {
				failures++
				pe := pipeline.AsError(err)
				out.Error, out.Kind = pe.Message, pe.Kind.String()
				slog.Debug("Input failed", "input", input, "kind", out.Kind, "error", err)
			}
			if werr := writeImageOutput(cmd.OutOrStdout(), cfg.Output, out); werr != nil {
				return werr
			}
		}

		if failures == len(args) {
			return errors.New("no plate recognized in any input")
		}
		return nil
	},
}

func writeImageOutput(w io.Writer, oc config.OutputConfig, out imageOutput) error {
	switch oc.Format {
	case outputFormatText:
		var err error
		if out.Error != "" {
			_, err = fmt.Fprintf(w, "%s: error: %s\n", out.Input, out.Error)
		} else {
			_, err = fmt.Fprintf(w, "%s: %s %s (raw province: %q)\n",
				out.Input, out.Result.PlateNumber, out.Result.Province, out.Result.RawProvince)
		}
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if oc.Pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(out)
	}
}

func init() {
	rootCmd.AddCommand(imageCmd)

	f := imageCmd.Flags()
	f.StringP("format", "f", outputFormatJSON, "output format (json, text)")
	f.Bool("pretty", false, "indent JSON output")
	f.Float64("min-confidence", 0.5, "minimum detection confidence for a region to be read")
	f.Int("threshold", 65, "binarization threshold on the equalized crop (0-255)")
	f.Bool("trace", false, "include per-region detection details in JSON output")

	mustBind("output.format", f.Lookup("format"))
	mustBind("output.pretty", f.Lookup("pretty"))
	mustBind("pipeline.min_confidence", f.Lookup("min-confidence"))
	mustBind("preprocess.threshold", f.Lookup("threshold"))
}
