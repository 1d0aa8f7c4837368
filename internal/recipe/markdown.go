package recipe

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// FirstJSONBlock returns the contents of the first fenced code block tagged
// json.
func FirstJSONBlock(source []byte) (string, bool) {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var (
		found string
		ok    bool
	)
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || ok {
			return ast.WalkContinue, nil
		}
		block, isFenced := node.(*ast.FencedCodeBlock)
		if !isFenced {
			return ast.WalkContinue, nil
		}
		if !strings.EqualFold(string(block.Language(source)), "json") {
			return ast.WalkSkipChildren, nil
		}
		found = blockContent(block, source)
		ok = true
		return ast.WalkStop, nil
	})
	return found, ok
}

func blockContent(n *ast.FencedCodeBlock, source []byte) string {
	var sb strings.Builder
	for i := 0; i < n.Lines().Len(); i++ {
		line := n.Lines().At(i)
		sb.Write(line.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}
