package assistant

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// ExtractCode returns the body of the first fenced code block in reply.
// The second result is false when reply has no fenced block.
func ExtractCode(reply string) (string, bool) {
	src := []byte(reply)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var (
		code  strings.Builder
		found bool
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			code.Write(seg.Value(src))
		}
		found = true
		return ast.WalkStop, nil
	})

	if !found {
		return "", false
	}
	return strings.TrimSuffix(code.String(), "\n"), true
}
