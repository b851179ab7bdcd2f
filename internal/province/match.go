package province

import (
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Match is the outcome of resolving noisy text against a catalog.
type Match struct {
	Name     string `json:"matched_name"`
	Distance int    `json:"distance"`
}

// Exact reports whether the input matched a catalog entry verbatim.
func (m Match) Exact() bool { return m.Distance == 0 && m.Name != "" }

// Closest returns the catalog entry with the smallest Levenshtein distance to
// text. Entries are scanned in order and only a strictly smaller distance
// replaces the current best, so ties go to the earliest entry. text is
// NFC-normalized first so combining marks typed in any order compare equal.
// An empty catalog yields the zero Match.
func Closest(text string, catalog Catalog) Match {
	best := Match{Distance: -1}
	src := []rune(norm.NFC.String(text))
	for _, name := range catalog {
		d := distance(src, name)
		if best.Distance < 0 || d < best.Distance {
			best = Match{Name: name, Distance: d}
		}
	}
	if best.Distance < 0 {
		return Match{}
	}
	return best
}

// Distance is the Levenshtein distance between a and b counted in runes.
func Distance(a, b string) int {
	return distance([]rune(a), b)
}

func distance(a []rune, bs string) int {
	n := utf8.RuneCountInString(bs)
	if len(a) == 0 {
		return n
	}
	if n == 0 {
		return len(a)
	}

	// Two rolling rows over the runes of b.
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := range prev {
		prev[j] = j
	}
	for i, ra := range a {
		curr[0] = i + 1
		j := 1
		for _, rb := range bs {
			cost := 1
			if ra == rb {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			j++
		}
		prev, curr = curr, prev
	}
	return prev[n]
}
