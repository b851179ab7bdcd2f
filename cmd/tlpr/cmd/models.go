package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MeKo-Tech/tlpr/internal/config"
	"github.com/MeKo-Tech/tlpr/internal/models"
	"github.com/MeKo-Tech/tlpr/internal/onnx"
	"github.com/spf13/cobra"
)

// modelFile is one entry of `tlpr models`.
type modelFile struct {
	models.ModelInfo
	Present bool               `json:"present"`
	Summary *onnx.ModelSummary `json:"summary,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// modelFiles lists the files the configured pipeline will open.
func modelFiles(cfg *config.Config) []modelFile {
	det := cfg.ToDetectorConfig()
	rec := cfg.ToRecognizerConfig()
	// Explicit per-file paths win over the models directory layout.
	paths := []string{det.ModelPath, rec.EncoderPath, rec.DecoderPath, rec.VocabPath}

	required := models.Required(cfg.ModelsDir)
	for i := range required {
		required[i].Path = paths[i]
	}
	missing := make(map[string]bool)
	for _, m := range models.MissingFiles(required) {
		missing[m.Path] = true
	}

	files := make([]modelFile, len(required))
	for i, m := range required {
		files[i] = modelFile{ModelInfo: m, Present: !missing[m.Path]}
	}
	return files
}

// modelsCmd represents the models command.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model files and check they are present",
	Long: `List the detector, encoder, decoder and vocabulary files the current
configuration points at. With --inspect the ONNX Runtime is loaded and the
input/output signature of every present model is printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		inspect, _ := cmd.Flags().GetBool("inspect")

		files := modelFiles(cfg)
		if inspect {
			if err := onnx.InitRuntime(cfg.LibraryPath, cfg.GPU.UseGPU); err != nil {
				return err
			}
			for i := range files {
				if !files[i].Present || !strings.HasSuffix(files[i].Path, ".onnx") {
					continue
				}
				s, err := onnx.Inspect(files[i].Path)
				if err != nil {
					files[i].Error = err.Error()
					continue
				}
				files[i].Summary = &s
			}
		}

		if err := writeModelFiles(cmd.OutOrStdout(), cfg.Output.Format, files); err != nil {
			return err
		}
		var missing []string
		for _, f := range files {
			if !f.Present {
				missing = append(missing, f.Name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("model files missing: %s", strings.Join(missing, ", "))
		}
		return nil
	},
}

func writeModelFiles(w io.Writer, format string, files []modelFile) error {
	if format != outputFormatText {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(files)
	}
	for _, f := range files {
		mark := "missing"
		if f.Present {
			mark = "ok"
		}
		if _, err := fmt.Fprintf(w, "%-20s %-7s %s\n", f.Name, mark, f.Path); err != nil {
			return err
		}
		if f.Summary == nil {
			continue
		}
		for _, in := range f.Summary.Inputs {
			if _, err := fmt.Fprintf(w, "  in  %s %v %s\n", in.Name, in.Dimensions, in.DataType); err != nil {
				return err
			}
		}
		for _, out := range f.Summary.Outputs {
			if _, err := fmt.Fprintf(w, "  out %s %v %s\n", out.Name, out.Dimensions, out.DataType); err != nil {
				return err
			}
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().Bool("inspect", false, "load ONNX Runtime and print model signatures")
}
