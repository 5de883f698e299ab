// Package indexer provides document chunking and the index and delete paths.
package indexer

import (
	"strings"
	"unicode"

	"github.com/hyperjump/manabu/internal/models"
)

const tabSize = 8

// Chunker splits text into whitespace-respecting windows of at most size characters.
// Every window after the first is prefixed with the last overlap characters of the
// previous window.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given window size and overlap (in characters).
// Non-positive sizes fall back to 1; negative overlaps are treated as zero.
func NewChunker(size, overlap int) *Chunker {
	if size < 1 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into ordered chunks tagged with source and ordinal.
// The overlap prefix comes from the previous unpadded window, so adjacency with the
// source text is approximate when the wrap point falls inside a run of whitespace.
func (c *Chunker) Chunk(source, text string) []models.Chunk {
	windows := Wrap(text, c.size)
	if len(windows) == 0 {
		return nil
	}
	chunks := make([]models.Chunk, 0, len(windows))
	for i, w := range windows {
		if i > 0 {
			w = tail(windows[i-1], c.overlap) + w
		}
		chunks = append(chunks, models.Chunk{Text: w, Source: source, Ordinal: i})
	}
	return chunks
}

// tail returns the last n characters of s, or all of s when it is shorter.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// Wrap fills text greedily into lines of at most width characters.
// Tabs are expanded and every whitespace character becomes a space. Whitespace is
// dropped at line ends and at the start of every line but the first. Words longer
// than width are split across lines.
func Wrap(text string, width int) []string {
	if width < 1 {
		width = 1
	}
	tokens := splitTokens(mungeWhitespace(text))
	var lines []string
	i := 0
	for i < len(tokens) {
		var line [][]rune
		lineLen := 0

		if len(lines) > 0 && isBlank(tokens[i]) {
			i++
		}
		for i < len(tokens) && lineLen+len(tokens[i]) <= width {
			line = append(line, tokens[i])
			lineLen += len(tokens[i])
			i++
		}
		if i < len(tokens) && len(tokens[i]) > width {
			left := width - lineLen
			line = append(line, tokens[i][:left])
			tokens[i] = tokens[i][left:]
		}
		if n := len(line); n > 0 && isBlank(line[n-1]) {
			line = line[:n-1]
		}
		if len(line) > 0 {
			var b strings.Builder
			for _, tok := range line {
				b.WriteString(string(tok))
			}
			lines = append(lines, b.String())
		}
	}
	return lines
}

func isWrapSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// isBlank reports whether tok is all whitespace. Unlike isWrapSpace it accepts any
// Unicode space, so a lone no-break space is dropped at line edges.
func isBlank(tok []rune) bool {
	for _, r := range tok {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// mungeWhitespace expands tabs to the next multiple of tabSize columns and
// replaces every other whitespace character with a space.
func mungeWhitespace(text string) []rune {
	out := make([]rune, 0, len(text))
	col := 0
	for _, r := range text {
		switch r {
		case '\t':
			pad := tabSize - col%tabSize
			for j := 0; j < pad; j++ {
				out = append(out, ' ')
			}
			col += pad
		case '\n', '\r':
			out = append(out, ' ')
			col = 0
		case '\v', '\f':
			out = append(out, ' ')
			col++
		default:
			out = append(out, r)
			col++
		}
	}
	return out
}

// splitTokens splits text into alternating runs of words and spaces.
func splitTokens(text []rune) [][]rune {
	var tokens [][]rune
	start := 0
	for j := 1; j <= len(text); j++ {
		if j == len(text) || isWrapSpace(text[j]) != isWrapSpace(text[start]) {
			if j > start {
				tokens = append(tokens, text[start:j])
			}
			start = j
		}
	}
	return tokens
}
