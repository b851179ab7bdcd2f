package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/tlpr/internal/province"
	"github.com/spf13/cobra"
)

var provinceCmd = &cobra.Command{
	Use:   "province",
	Short: "Inspect the province catalog",
}

var provinceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the province catalog in matching order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for i, name := range GetConfig().Catalog() {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i+1, name); err != nil {
				return err
			}
		}
		return nil
	},
}

var provinceMatchCmd = &cobra.Command{
	Use:   "match <text>",
	Short: "Snap OCR text to the closest province name",
	Long: `Print the catalog entry with the smallest edit distance to text.
Ties go to the entry listed first.

Example:
  tlpr province match "กรงเทพ"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := province.Closest(args[0], GetConfig().Catalog())
		if GetConfig().Output.Format == outputFormatText {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (distance %d)\n", m.Name, m.Distance)
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		return enc.Encode(struct {
			Text string `json:"text"`
			province.Match
		}{args[0], m})
	},
}

func init() {
	rootCmd.AddCommand(provinceCmd)
	provinceCmd.AddCommand(provinceListCmd, provinceMatchCmd)
}
