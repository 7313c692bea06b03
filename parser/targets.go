package parser

import (
	"github.com/stencilkit/stencil/lexer"
)

// parseTarget parses a destructuring pattern: a literal, a tuple (possibly
// preceded by a variant path, optionally introduced by "with"), a brace
// struct destructure, a path, or a bare name.
func (p *Parser) parseTarget() (Target, error) {
	tok := p.cur()
	switch tok.Type {
	case lexer.TokenNumber:
		p.next()
		return NewLitTarget(LitNum, tok.Value, tok.Line, tok.Column), nil

	case lexer.TokenMinus:
		p.next()
		num, err := p.expect(lexer.TokenNumber)
		if err != nil {
			return nil, err
		}
		return NewLitTarget(LitNum, "-"+num.Value, tok.Line, tok.Column), nil

	case lexer.TokenString:
		p.next()
		return NewLitTarget(LitStr, tok.Value, tok.Line, tok.Column), nil

	case lexer.TokenChar:
		p.next()
		return NewLitTarget(LitChar, tok.Value, tok.Line, tok.Column), nil

	case lexer.TokenBool:
		p.next()
		return NewLitTarget(LitBool, tok.Value, tok.Line, tok.Column), nil

	case lexer.TokenLParen:
		return p.parseTupleTarget(nil, tok)

	case lexer.TokenLBrace:
		return p.parseStructTarget(nil, tok)

	case lexer.TokenColonColon:
		p.next()
		seg, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		segments, err := p.parseTargetPath([]string{"", seg.Value})
		if err != nil {
			return nil, err
		}
		return p.parseTargetWithPath(segments, tok)

	case lexer.TokenIdentifier:
		p.next()
		segments := []string{tok.Value}
		if p.cur().Type == lexer.TokenColonColon {
			var err error
			segments, err = p.parseTargetPath(segments)
			if err != nil {
				return nil, err
			}
			return p.parseTargetWithPath(segments, tok)
		}
		if p.cur().Type == lexer.TokenWith || p.cur().Type == lexer.TokenLParen || p.cur().Type == lexer.TokenLBrace {
			return p.parseTargetWithPath(segments, tok)
		}
		if hasUpper(tok.Value) {
			return NewPathTarget(segments, tok.Line, tok.Column), nil
		}
		return NewNameTarget(tok.Value, tok.Line, tok.Column), nil

	default:
		return nil, p.errorAt(tok, "expected pattern, found %s", tok.Type)
	}
}

func (p *Parser) parseTargetPath(segments []string) ([]string, error) {
	for p.accept(lexer.TokenColonColon) != nil {
		seg, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg.Value)
	}
	return segments, nil
}

// parseTargetWithPath handles the destructuring forms that follow a variant
// path: "Path with (a, b)", "Path(a, b)", "Path with {x, y}", "Path {x}",
// or the path alone.
func (p *Parser) parseTargetWithPath(segments []string, start *lexer.Token) (Target, error) {
	p.accept(lexer.TokenWith)
	switch p.cur().Type {
	case lexer.TokenLParen:
		return p.parseTupleTarget(segments, start)
	case lexer.TokenLBrace:
		return p.parseStructTarget(segments, start)
	default:
		return NewPathTarget(segments, start.Line, start.Column), nil
	}
}

func (p *Parser) parseTupleTarget(path []string, start *lexer.Token) (Target, error) {
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	var targets []Target
	for p.cur().Type != lexer.TokenRParen {
		sub, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		targets = append(targets, sub)
		if p.accept(lexer.TokenComma) == nil {
			break
		}
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	return NewTupleTarget(path, targets, start.Line, start.Column), nil
}

func (p *Parser) parseStructTarget(path []string, start *lexer.Token) (Target, error) {
	if _, err := p.expect(lexer.TokenLBrace); err != nil {
		return nil, err
	}
	var fields []StructField
	for p.cur().Type != lexer.TokenRBrace {
		nameTok, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		field := StructField{Name: nameTok.Value}
		if p.accept(lexer.TokenColon) != nil {
			sub, err := p.parseTarget()
			if err != nil {
				return nil, err
			}
			field.Target = sub
		}
		fields = append(fields, field)
		if p.accept(lexer.TokenComma) == nil {
			break
		}
	}
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return nil, err
	}
	return NewStructTarget(path, fields, start.Line, start.Column), nil
}
