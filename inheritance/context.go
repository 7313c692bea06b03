// Package inheritance builds the per-template metadata record and resolves
// extends chains into the ordered block ancestry that drives block
// overriding and super() calls.
package inheritance

import (
	"fmt"

	"github.com/stencilkit/stencil/parser"
)

// Resolver turns a template reference as written in the source into a
// loadable path, applying the configured search policy relative to the
// referring template.
type Resolver interface {
	Resolve(referrer, name string) (string, error)
}

// Context is the post-parse metadata of one template: its node list, the
// resolved parent, and the flattened maps of blocks, macros and imports.
type Context struct {
	Path    string
	Nodes   []parser.Node
	Extends string
	Blocks  map[string]*parser.BlockDef
	Macros  map[string]*parser.Macro
	Imports map[string]string
}

// NewContext walks a parsed template breadth-first and collects its
// structure. extends, macro and import are only allowed at the top level;
// block definitions are collected transitively, including blocks nested in
// other blocks, branches, loops and match arms.
func NewContext(path string, nodes []parser.Node, resolver Resolver) (*Context, error) {
	ctx := &Context{
		Path:    path,
		Nodes:   nodes,
		Blocks:  make(map[string]*parser.BlockDef),
		Macros:  make(map[string]*parser.Macro),
		Imports: make(map[string]string),
	}

	type level struct {
		nodes []parser.Node
		top   bool
	}
	queue := []level{{nodes, true}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, node := range cur.nodes {
			switch n := node.(type) {
			case *parser.Extends:
				if !cur.top {
					return nil, fmt.Errorf("%s: extends is not allowed below the top level", path)
				}
				if ctx.Extends != "" {
					return nil, fmt.Errorf("%s: multiple extends tags found", path)
				}
				resolved, err := resolver.Resolve(path, n.Path)
				if err != nil {
					return nil, err
				}
				ctx.Extends = resolved

			case *parser.Macro:
				if !cur.top {
					return nil, fmt.Errorf("%s: macro is not allowed below the top level", path)
				}
				ctx.Macros[n.Name] = n

			case *parser.Import:
				if !cur.top {
					return nil, fmt.Errorf("%s: import is not allowed below the top level", path)
				}
				resolved, err := resolver.Resolve(path, n.Path)
				if err != nil {
					return nil, err
				}
				ctx.Imports[n.Scope] = resolved

			case *parser.BlockDef:
				ctx.Blocks[n.Name] = n
				queue = append(queue, level{n.Body, false})

			case *parser.If:
				for _, branch := range n.Branches {
					queue = append(queue, level{branch.Body, false})
				}

			case *parser.Match:
				for _, arm := range n.Arms {
					queue = append(queue, level{arm.Body, false})
				}

			case *parser.Loop:
				queue = append(queue, level{n.Body, false})
				queue = append(queue, level{n.ElseBody, false})
			}
		}
	}

	return ctx, nil
}
