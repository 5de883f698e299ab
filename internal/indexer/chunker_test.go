package indexer

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"empty", "", 10, nil},
		{"only whitespace", " \n\t ", 10, nil},
		{"fits", "hello world", 20, []string{"hello world"}},
		{"greedy", "aaa bbb ccc ddd", 7, []string{"aaa bbb", "ccc ddd"}},
		{"newlines become spaces", "one\ntwo\r\nthree", 20, []string{"one two  three"}},
		{"leading whitespace kept on first line", "  lead word", 20, []string{"  lead word"}},
		{"leading whitespace dropped on later lines", "aaaa    bbbb", 5, []string{"aaaa", "bbbb"}},
		{"long word broken", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"long word after short", "ab cdefghij", 5, []string{"ab cd", "efghi", "j"}},
		{"tab expansion", "a\tb", 20, []string{"a       b"}},
		{"multibyte counted as characters", "ééé ééé", 3, []string{"ééé", "ééé"}},
		{"trailing no-break space dropped", "xxxxxxx   \u00a0", 20, []string{"xxxxxxx   "}},
		{"lone no-break space", "\u00a0", 10, nil},
		{"no-break space inside a word kept", "a\u00a0b", 10, []string{"a\u00a0b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.text, tt.width)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Wrap(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestWrap_linesNeverExceedWidth(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet, consectetur adipiscing elit ", 200)
	for _, width := range []int{1, 7, 50, 1000} {
		for _, line := range Wrap(text, width) {
			if n := utf8.RuneCountInString(line); n > width {
				t.Fatalf("width %d: line of %d characters", width, n)
			}
			if strings.HasSuffix(line, " ") {
				t.Fatalf("width %d: line ends with whitespace: %q", width, line)
			}
		}
	}
}

func TestChunker_Chunk_longRun(t *testing.T) {
	// 2500 characters with no whitespace wrap into 1000, 1000 and 500.
	text := strings.Repeat("x", 1000) + strings.Repeat("y", 1000) + strings.Repeat("z", 500)
	c := NewChunker(1000, 100)
	chunks := c.Chunk("doc.pdf", text)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	wantLens := []int{1000, 1100, 600}
	for i, ch := range chunks {
		if len(ch.Text) != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, len(ch.Text), wantLens[i])
		}
		if ch.Ordinal != i || ch.Source != "doc.pdf" {
			t.Errorf("chunk %d: ordinal=%d source=%s", i, ch.Ordinal, ch.Source)
		}
	}
	if !strings.HasPrefix(chunks[1].Text, strings.Repeat("x", 100)+"y") {
		t.Error("second chunk should start with the tail of the first window")
	}
	if !strings.HasPrefix(chunks[2].Text, strings.Repeat("y", 100)+"z") {
		t.Error("third chunk should start with the tail of the second window")
	}
}

func TestChunker_Chunk_overlapFromPreviousWindow(t *testing.T) {
	texts := []string{
		strings.Repeat("alpha beta gamma delta ", 300),
		strings.Repeat("word ", 999) + strings.Repeat("q", 1500),
		strings.Repeat("a\tb\nc ", 700),
	}
	c := NewChunker(1000, 100)
	for ti, text := range texts {
		windows := Wrap(text, 1000)
		chunks := c.Chunk("s.pdf", text)
		if len(chunks) != len(windows) {
			t.Fatalf("text %d: %d chunks for %d windows", ti, len(chunks), len(windows))
		}
		for i := 1; i < len(chunks); i++ {
			prev := []rune(windows[i-1])
			n := 100
			if len(prev) < n {
				n = len(prev)
			}
			prefix := string(prev[len(prev)-n:])
			if chunks[i].Text != prefix+windows[i] {
				t.Fatalf("text %d chunk %d does not start with previous window tail", ti, i)
			}
		}
	}
}

func TestChunker_Chunk_shortDocument(t *testing.T) {
	c := NewChunker(1000, 100)
	chunks := c.Chunk("d.pdf", "A short document.")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "A short document." {
		t.Errorf("no overlap should be applied to a single chunk, got %q", chunks[0].Text)
	}
}

func TestChunker_Chunk_overlapClampedToShortWindow(t *testing.T) {
	// width 5 yields windows "ab", "cdefg"; overlap 10 is clamped to "ab".
	c := NewChunker(5, 10)
	chunks := c.Chunk("d.pdf", "ab cdefg")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[1].Text != "abcdefg" {
		t.Errorf("chunk 1 = %q, want %q", chunks[1].Text, "abcdefg")
	}
}

func TestChunker_ChunkEmpty(t *testing.T) {
	c := NewChunker(5, 1)
	if chunks := c.Chunk("d", "   \n\t  "); chunks != nil {
		t.Errorf("empty text should return nil, got %v", chunks)
	}
}
