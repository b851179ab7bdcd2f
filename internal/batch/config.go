package batch

import (
	"fmt"
	"slices"
	"strings"
)

// Output formats understood by Result.Format.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "text"
)

var validFormats = []string{FormatJSON, FormatCSV, FormatText}

// Config holds file discovery and scheduling settings for a batch run.
type Config struct {
	// Workers decode images concurrently; recognition itself stays serial
	// because the models serve one image at a time.
	Workers int

	Recursive       bool
	IncludePatterns []string // glob on the base name; empty includes all
	ExcludePatterns []string // glob on the base name; wins over include
}

// DefaultConfig returns four decode workers and a flat, unfiltered scan.
func DefaultConfig() Config {
	return Config{Workers: 4}
}

// Validate checks worker count and glob syntax.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("invalid worker count: %d (must be at least 1)", c.Workers)
	}
	for _, p := range slices.Concat(c.IncludePatterns, c.ExcludePatterns) {
		if _, err := matchPattern(p, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	return nil
}

// ValidateFormat reports whether format is one Result.Format can render.
func ValidateFormat(format string) error {
	if !slices.Contains(validFormats, format) {
		return fmt.Errorf("invalid batch format: %s (must be one of: %s)", format, strings.Join(validFormats, ", "))
	}
	return nil
}
