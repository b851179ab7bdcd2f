package recognizer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// Token prefixes marking a leading space in byte-level BPE and SentencePiece
// vocabularies.
const (
	byteLevelSpace     = "Ġ"
	sentencePieceSpace = "▁"
)

// Vocabulary maps decoder token ids back to text.
type Vocabulary struct {
	tokens    []string
	special   map[int64]bool
	byteLevel bool
}

// NewVocabulary builds a vocabulary from id-ordered tokens. specials are
// dropped from decoded output.
func NewVocabulary(tokens []string, specials ...int64) *Vocabulary {
	v := &Vocabulary{tokens: tokens, special: make(map[int64]bool, len(specials))}
	for _, id := range specials {
		v.special[id] = true
	}
	for id, t := range tokens {
		if isMarkupToken(t) {
			v.special[int64(id)] = true
		}
		if strings.HasPrefix(t, byteLevelSpace) {
			v.byteLevel = true
		}
	}
	return v
}

// LoadVocabulary reads a HuggingFace vocab.json (token -> id) or a plain
// dictionary file with one token per line, where the line number is the id.
func LoadVocabulary(path string, specials ...int64) (*Vocabulary, error) {
	if path == "" {
		return nil, errors.New("vocabulary path cannot be empty")
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: vocabulary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}

	var tokens []string
	if strings.EqualFold(filepath.Ext(path), ".json") {
		tokens, err = parseJSONVocab(data)
	} else {
		tokens, err = parseLineVocab(data)
	}
	if err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocabulary is empty: %s", path)
	}
	return NewVocabulary(tokens, specials...), nil
}

func parseJSONVocab(data []byte) ([]string, error) {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	type entry struct {
		token string
		id    int
	}
	entries := make([]entry, 0, len(m))
	maxID := -1
	for tok, id := range m {
		if id < 0 {
			return nil, fmt.Errorf("negative id %d for token %q", id, tok)
		}
		entries = append(entries, entry{tok, id})
		maxID = max(maxID, id)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	tokens := make([]string, maxID+1)
	for _, e := range entries {
		tokens[e.id] = e.token
	}
	return tokens, nil
}

func parseLineVocab(data []byte) ([]string, error) {
	var tokens []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		tokens = append(tokens, line)
	}
	return tokens, scanner.Err()
}

// Size returns the number of ids.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// Token returns the token for id, or "" when out of range.
func (v *Vocabulary) Token(id int64) string {
	if id < 0 || id >= int64(len(v.tokens)) {
		return ""
	}
	return v.tokens[id]
}

// IsSpecial reports whether id is a control or padding token.
func (v *Vocabulary) IsSpecial(id int64) bool { return v.special[id] }

// Decode joins the tokens for ids, skipping special and unknown ids.
func (v *Vocabulary) Decode(ids []int64) string {
	var sb strings.Builder
	for _, id := range ids {
		if v.IsSpecial(id) {
			continue
		}
		sb.WriteString(v.Token(id))
	}
	s := sb.String()
	if v.byteLevel {
		return decodeByteLevel(s)
	}
	return strings.ReplaceAll(s, sentencePieceSpace, " ")
}

// isMarkupToken matches tokens such as <s>, </s>, <pad>, <unk> and <mask>.
func isMarkupToken(t string) bool {
	return len(t) > 2 && strings.HasPrefix(t, "<") && strings.HasSuffix(t, ">") && !strings.ContainsAny(t[1:len(t)-1], "<> ")
}

// byteDecoder inverts the GPT-2 byte-to-unicode table used by byte-level BPE.
var byteDecoder = func() map[rune]byte {
	m := make(map[rune]byte, 256)
	n := 0
	for b := range 256 {
		printable := (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
		if printable {
			m[rune(b)] = byte(b)
			continue
		}
		m[rune(256+n)] = byte(b)
		n++
	}
	return m
}()

func decodeByteLevel(s string) string {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := byteDecoder[r]; ok {
			buf = append(buf, b)
			continue
		}
		buf = utf8.AppendRune(buf, r)
	}
	return strings.ToValidUTF8(string(buf), "\uFFFD")
}
