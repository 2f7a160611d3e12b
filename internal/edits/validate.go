package edits

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// ErrInvalidScript is returned when a prefix does not parse as JavaScript.
var ErrInvalidScript = errors.New("script does not parse as JavaScript")

// ValidateScript parses script with the JavaScript grammar and reports the
// first syntax error by 1-based line and column.
func ValidateScript(ctx context.Context, script []byte) error {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(javascript.GetLanguage())

	tree, err := p.ParseCtx(ctx, nil, script)
	if err != nil {
		return fmt.Errorf("failed to parse script: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}
	if bad := firstErrorNode(root); bad != nil {
		pos := bad.StartPoint()
		return fmt.Errorf("%w at %d:%d", ErrInvalidScript, pos.Row+1, pos.Column+1)
	}
	return ErrInvalidScript
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}
