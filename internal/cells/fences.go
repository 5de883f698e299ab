package cells

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// StripCodeFences returns the bodies of the fenced code blocks in s, joined by a blank line.
// Text without fenced blocks is returned trimmed and otherwise unchanged.
func StripCodeFences(s string) string {
	src := []byte(s)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		blocks = append(blocks, strings.TrimRight(buf.String(), "\n"))
		return ast.WalkSkipChildren, nil
	})
	if len(blocks) == 0 {
		return strings.TrimSpace(s)
	}
	return strings.Join(blocks, "\n\n")
}
