package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/tlpr/internal/batch"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch <file-or-directory>...",
	Short: "Recognize license plates in many local images",
	Long: `Recognize every image under the given files and directories.

Images are decoded in parallel and recognized one at a time. Results are
written in input order as a single JSON document, CSV or text. The command
fails only when no plate is recognized at all.

Examples:
  tlpr batch ./captures
  tlpr batch ./captures -r --include "*.jpg" --format csv -o plates.csv
  tlpr batch a.jpg b.jpg --workers 2 --stats`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			format = cfg.Output.Format
		}
		if err := batch.ValidateFormat(format); err != nil {
			return err
		}
		outputFile, _ := cmd.Flags().GetString("output")
		showStats, _ := cmd.Flags().GetBool("stats")

		bc := cfg.ToBatchConfig()
		files, err := batch.Discover(args, bc)
		if err != nil {
			return err
		}
		slog.Info("Starting batch", "files", len(files), "workers", bc.Workers)

		proc, err := newImageProcessor(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize pipeline: %w", err)
		}
		defer func() {
			if err := proc.Close(); err != nil {
				slog.Warn("Failed to release models", "error", err)
			}
		}()

		res, err := batch.Run(cmd.Context(), proc, files, bc.Workers)
		if err != nil {
			return fmt.Errorf("batch processing failed: %w", err)
		}
		if err := res.Save(cmd.OutOrStdout(), format, outputFile); err != nil {
			return err
		}
		if outputFile != "" {
			slog.Info("Results written", "file", outputFile)
		}
		if showStats {
			if err := res.WriteStats(cmd.ErrOrStderr()); err != nil {
				return err
			}
		}

		if res.Stats().Recognized == 0 {
			return errors.New("no plate recognized in any input")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	f := batchCmd.Flags()
	f.StringP("format", "f", "", "output format (json, csv, text); defaults to output.format")
	f.StringP("output", "o", "", "write results to this file instead of stdout")
	f.Bool("stats", false, "print processing statistics to stderr")
	f.BoolP("recursive", "r", false, "descend into subdirectories")
	f.StringSlice("include", nil, "only process files whose name matches one of these globs")
	f.StringSlice("exclude", nil, "skip files whose name matches one of these globs")
	f.IntP("workers", "w", 4, "number of decode workers")

	mustBind("batch.recursive", f.Lookup("recursive"))
	mustBind("batch.include", f.Lookup("include"))
	mustBind("batch.exclude", f.Lookup("exclude"))
	mustBind("batch.workers", f.Lookup("workers"))
}
