package inheritance

import (
	"fmt"

	"github.com/stencilkit/stencil/parser"
)

// BlockAncestor pairs a block definition with the context it came from.
type BlockAncestor struct {
	Ctx *Context
	Def *parser.BlockDef
}

// Heritage is the resolved extends chain of a leaf template. Root is the
// topmost ancestor; Blocks maps every block name visible anywhere in the
// chain to its definitions ordered nearest-first, so Blocks[name][0] is the
// leaf-most override and each super() call advances one entry.
type Heritage struct {
	Root   *Context
	Blocks map[string][]BlockAncestor
}

// NewHeritage walks extends links from the leaf upward. Every context in
// the chain must already be present in contexts, keyed by path.
func NewHeritage(leaf *Context, contexts map[string]*Context) (*Heritage, error) {
	blocks := make(map[string][]BlockAncestor)
	for name, def := range leaf.Blocks {
		blocks[name] = []BlockAncestor{{leaf, def}}
	}

	ctx := leaf
	for ctx.Extends != "" {
		parent, ok := contexts[ctx.Extends]
		if !ok {
			return nil, fmt.Errorf("%s: parent template %q was not loaded", ctx.Path, ctx.Extends)
		}
		for name, def := range parent.Blocks {
			blocks[name] = append(blocks[name], BlockAncestor{parent, def})
		}
		ctx = parent
	}

	return &Heritage{Root: ctx, Blocks: blocks}, nil
}

// Block returns the ancestry list for a block name. The list is non-empty
// for every name that is defined anywhere in the chain.
func (h *Heritage) Block(name string) ([]BlockAncestor, error) {
	ancestry := h.Blocks[name]
	if len(ancestry) == 0 {
		return nil, fmt.Errorf("block %q is not defined in the inheritance chain", name)
	}
	return ancestry, nil
}
