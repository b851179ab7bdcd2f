// Command generate-test-data renders the synthetic car pictures behind the
// test fixtures to disk, with a JSON manifest of the outcome each one should
// produce under the scripted models. The images are handy for smoke runs of
// `tlpr batch` and the HTTP API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/tlpr/internal/testutil"
	"github.com/disintegration/imaging"
)

type manifestEntry struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	Plate       string `json:"plate_number,omitempty"`
	RawProvince string `json:"raw_province,omitempty"`
	Province    string `json:"province,omitempty"`
	Error       string `json:"error,omitempty"`
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	var (
		outDir = flag.String("out", "", "output directory (default <project>/testdata/images)")
		format = flag.String("format", "png", "image format: png or jpg")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\nRender synthetic plate fixtures.\n\nOPTIONS:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*outDir, *format); err != nil {
		slog.Error("Failed to generate test data", "error", err)
		os.Exit(1)
	}
}

func run(outDir, format string) error {
	if format != "png" && format != "jpg" {
		return fmt.Errorf("unsupported format %q", format)
	}
	if outDir == "" {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			return err
		}
		outDir = filepath.Join(root, "testdata", "images")
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return err
	}

	fixtures := testutil.Fixtures()
	names := make([]string, 0, len(fixtures))
	for name := range fixtures {
		names = append(names, name)
	}
	slices.Sort(names)

	manifest := make([]manifestEntry, 0, len(names))
	for _, name := range names {
		f := fixtures[name]
		file := name + "." + format
		if err := imaging.Save(testutil.GenerateCarImage(f.Image), filepath.Join(outDir, file)); err != nil {
			return fmt.Errorf("failed to save %s: %w", file, err)
		}
		manifest = append(manifest, manifestEntry{
			Name:        name,
			File:        file,
			Plate:       f.WantPlate,
			RawProvince: f.WantRawProvince,
			Province:    f.WantProvince,
			Error:       f.WantError,
		})
		slog.Info("Wrote fixture image", "file", file)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "manifest.json"), append(data, '\n'), 0o600)
}
