// Package stencil compiles Jinja-family templates into Go rendering code
// at build time. The pipeline loads a root template and its dependencies,
// parses them, resolves block inheritance, and generates the Render,
// String, Extension and SizeHint methods for an annotated host type.
package stencil

import (
	"fmt"
	"strings"

	"github.com/stencilkit/stencil/lexer"
)

// Syntax is an immutable record of the six delimiter strings lexing splits
// on. Each delimiter must be at least two characters, contain no
// whitespace, and no delimiter may be a prefix of another within the same
// record.
type Syntax struct {
	BlockStart   string
	BlockEnd     string
	ExprStart    string
	ExprEnd      string
	CommentStart string
	CommentEnd   string
}

// DefaultSyntax returns the {% %} {{ }} {# #} delimiter set.
func DefaultSyntax() *Syntax {
	return &Syntax{
		BlockStart:   "{%",
		BlockEnd:     "%}",
		ExprStart:    "{{",
		ExprEnd:      "}}",
		CommentStart: "{#",
		CommentEnd:   "#}",
	}
}

func (s *Syntax) delimiters() []string {
	return []string{s.BlockStart, s.BlockEnd, s.ExprStart, s.ExprEnd, s.CommentStart, s.CommentEnd}
}

// Validate checks the delimiter rules.
func (s *Syntax) Validate() error {
	delims := s.delimiters()
	for _, d := range delims {
		if len(d) < 2 {
			return NewConfigError("delimiter %q is too short; at least two characters are required", d)
		}
		if strings.ContainsAny(d, " \t\r\n") {
			return NewConfigError("delimiter %q may not contain whitespace", d)
		}
	}
	for i, a := range delims {
		for j, b := range delims {
			if i != j && strings.HasPrefix(b, a) {
				return NewConfigError("delimiter %q is a prefix of delimiter %q", a, b)
			}
		}
	}
	return nil
}

// LexerConfig adapts the syntax for the lexer.
func (s *Syntax) LexerConfig() *lexer.Config {
	return &lexer.Config{
		BlockStart:   s.BlockStart,
		BlockEnd:     s.BlockEnd,
		VarStart:     s.ExprStart,
		VarEnd:       s.ExprEnd,
		CommentStart: s.CommentStart,
		CommentEnd:   s.CommentEnd,
	}
}

func (s *Syntax) String() string {
	return fmt.Sprintf("Syntax(%s %s, %s %s, %s %s)",
		s.BlockStart, s.BlockEnd, s.ExprStart, s.ExprEnd, s.CommentStart, s.CommentEnd)
}
