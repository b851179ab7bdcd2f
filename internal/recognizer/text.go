package recognizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls post-processing of decoded text.
type CleanOptions struct {
	NormalizeForm      string `mapstructure:"normalize_form" yaml:"normalize_form" json:"normalize_form"` // NFC, NFKC, NFD, NFKD or "none"
	RemoveWhitespace   bool   `mapstructure:"remove_whitespace" yaml:"remove_whitespace" json:"remove_whitespace"`
	RemoveZeroWidth    bool   `mapstructure:"remove_zero_width" yaml:"remove_zero_width" json:"remove_zero_width"`
	RemoveControlChars bool   `mapstructure:"remove_control_chars" yaml:"remove_control_chars" json:"remove_control_chars"`
}

// DefaultCleanOptions keeps interior spaces and strips invisible runes.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFC",
		RemoveZeroWidth:    true,
		RemoveControlChars: true,
	}
}

// PostProcessText normalizes s and trims it.
func PostProcessText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}
	switch strings.ToUpper(opts.NormalizeForm) {
	case "", "NFC":
		s = norm.NFC.String(s)
	case "NFKC":
		s = norm.NFKC.String(s)
	case "NFD":
		s = norm.NFD.String(s)
	case "NFKD":
		s = norm.NFKD.String(s)
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case opts.RemoveZeroWidth && isZeroWidth(r):
			return -1
		case opts.RemoveControlChars && unicode.IsControl(r) && !unicode.IsSpace(r):
			return -1
		case opts.RemoveWhitespace && unicode.IsSpace(r):
			return -1
		}
		return r
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return false
}
