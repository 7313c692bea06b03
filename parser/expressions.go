package parser

import (
	"strings"

	"github.com/stencilkit/stencil/lexer"
)

// parseExpr is the entry point of the expression sublanguage. Ranges sit at
// the lowest precedence and either side may be absent.
func (p *Parser) parseExpr() (Expr, error) {
	tok := p.cur()
	if op := p.rangeOp(); op != "" {
		p.next()
		var rhs Expr
		var err error
		if p.startsExpr() {
			rhs, err = p.parseOr()
			if err != nil {
				return nil, err
			}
		}
		return NewRange(op, nil, rhs, tok.Line, tok.Column), nil
	}

	lhs, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if op := p.rangeOp(); op != "" {
		p.next()
		var rhs Expr
		if p.startsExpr() {
			rhs, err = p.parseOr()
			if err != nil {
				return nil, err
			}
		}
		return NewRange(op, lhs, rhs, tok.Line, tok.Column), nil
	}
	return lhs, nil
}

func (p *Parser) rangeOp() string {
	switch p.cur().Type {
	case lexer.TokenDotDot:
		return ".."
	case lexer.TokenDotDotEq:
		return "..="
	default:
		return ""
	}
}

// startsExpr reports whether the current token can begin an expression;
// used to decide if a range has a right-hand side.
func (p *Parser) startsExpr() bool {
	switch p.cur().Type {
	case lexer.TokenBool, lexer.TokenNumber, lexer.TokenString, lexer.TokenChar,
		lexer.TokenIdentifier, lexer.TokenLParen, lexer.TokenLBracket,
		lexer.TokenColonColon, lexer.TokenNot, lexer.TokenMinus:
		return true
	default:
		return false
	}
}

func (p *Parser) parseOr() (Expr, error) {
	return p.parseBinary(p.parseAnd, lexer.TokenOrOr)
}

func (p *Parser) parseAnd() (Expr, error) {
	return p.parseBinary(p.parseCompare, lexer.TokenAndAnd)
}

func (p *Parser) parseCompare() (Expr, error) {
	return p.parseBinary(p.parseBitOr,
		lexer.TokenEq, lexer.TokenNe, lexer.TokenGe, lexer.TokenGt, lexer.TokenLe, lexer.TokenLt)
}

// parseBitOr consumes "|" as bitwise-or. Filter pipes never reach this
// level: they bind tighter and are taken by parseFiltered below.
func (p *Parser) parseBitOr() (Expr, error) {
	return p.parseBinary(p.parseBitXor, lexer.TokenPipe)
}

func (p *Parser) parseBitXor() (Expr, error) {
	return p.parseBinary(p.parseBitAnd, lexer.TokenCaret)
}

func (p *Parser) parseBitAnd() (Expr, error) {
	return p.parseBinary(p.parseShift, lexer.TokenAmp)
}

func (p *Parser) parseShift() (Expr, error) {
	return p.parseBinary(p.parseAdditive, lexer.TokenShl, lexer.TokenShr)
}

func (p *Parser) parseAdditive() (Expr, error) {
	return p.parseBinary(p.parseMultiplicative, lexer.TokenPlus, lexer.TokenMinus)
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	return p.parseBinary(p.parseFiltered, lexer.TokenStar, lexer.TokenSlash, lexer.TokenPercent)
}

func (p *Parser) parseBinary(operand func() (Expr, error), ops ...lexer.TokenType) (Expr, error) {
	lhs, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, op := range ops {
			if p.cur().Type != op {
				continue
			}
			// a "|" immediately followed by an identifier is a filter
			// pipe and belongs to a tighter level
			if op == lexer.TokenPipe && p.isFilterPipe() {
				continue
			}
			opTok := p.next()
			rhs, err := operand()
			if err != nil {
				return nil, err
			}
			lhs = NewBinOp(opTok.Value, lhs, rhs, opTok.Line, opTok.Column)
			matched = true
			break
		}
		if !matched {
			return lhs, nil
		}
	}
}

// isFilterPipe reports whether the current "|" token begins a filter
// application: the following identifier must touch the pipe.
func (p *Parser) isFilterPipe() bool {
	if p.cur().Type != lexer.TokenPipe {
		return false
	}
	nxt := p.peek(1)
	return nxt.Type == lexer.TokenIdentifier && !nxt.SpaceBefore
}

func (p *Parser) parseFiltered() (Expr, error) {
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isFilterPipe() {
		p.next() // pipe
		nameTok := p.next()
		args := []Expr{operand}
		if p.accept(lexer.TokenLParen) != nil {
			for p.cur().Type != lexer.TokenRParen {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.accept(lexer.TokenComma) == nil {
					break
				}
			}
			if _, err := p.expect(lexer.TokenRParen); err != nil {
				return nil, err
			}
		}
		operand = NewFilter(nameTok.Value, args, nameTok.Line, nameTok.Column)
	}
	return operand, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	tok := p.cur()
	if tok.Type == lexer.TokenNot || tok.Type == lexer.TokenMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return NewUnary(tok.Value, operand, tok.Line, tok.Column), nil
	}
	return p.parseSuffix()
}

// parseSuffix loops over the postfix forms: field access, method call,
// indexing, calls, try, and raw-argument invocations.
func (p *Parser) parseSuffix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.cur()
		switch tok.Type {
		case lexer.TokenDot:
			p.next()
			nameTok, err := p.expect(lexer.TokenIdentifier)
			if err != nil {
				return nil, err
			}
			if p.cur().Type == lexer.TokenLParen {
				args, err := p.parseArgList()
				if err != nil {
					return nil, err
				}
				expr = NewMethodCall(expr, nameTok.Value, args, tok.Line, tok.Column)
			} else {
				expr = NewAttr(expr, nameTok.Value, tok.Line, tok.Column)
			}

		case lexer.TokenLBracket:
			p.next()
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenRBracket); err != nil {
				return nil, err
			}
			expr = NewIndex(expr, key, tok.Line, tok.Column)

		case lexer.TokenLParen:
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			expr = NewCall(expr, args, tok.Line, tok.Column)

		case lexer.TokenQuestion:
			p.next()
			expr = NewTry(expr, tok.Line, tok.Column)

		case lexer.TokenRawArgs:
			p.next()
			expr = NewRawCall(expr, tok.Value, tok.Line, tok.Column)

		default:
			return expr, nil
		}
	}
}

// parseArgList parses a parenthesized, comma-separated argument list with
// an optional trailing comma.
func (p *Parser) parseArgList() ([]Expr, error) {
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	var args []Expr
	for p.cur().Type != lexer.TokenRParen {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.accept(lexer.TokenComma) == nil {
			break
		}
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case lexer.TokenBool:
		p.next()
		return NewBoolLit(tok.Value == "true", tok.Line, tok.Column), nil

	case lexer.TokenNumber:
		p.next()
		return NewNumLit(tok.Value, tok.Line, tok.Column), nil

	case lexer.TokenString:
		p.next()
		return NewStrLit(tok.Value, tok.Line, tok.Column), nil

	case lexer.TokenChar:
		p.next()
		return NewCharLit(tok.Value, tok.Line, tok.Column), nil

	case lexer.TokenLBracket:
		p.next()
		var elems []Expr
		for p.cur().Type != lexer.TokenRBracket {
			elem, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
			if p.accept(lexer.TokenComma) == nil {
				break
			}
		}
		if _, err := p.expect(lexer.TokenRBracket); err != nil {
			return nil, err
		}
		return NewArray(elems, tok.Line, tok.Column), nil

	case lexer.TokenLParen:
		return p.parseGroupOrTuple()

	case lexer.TokenColonColon:
		p.next()
		seg, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		return p.parsePathTail([]string{"", seg.Value}, tok)

	case lexer.TokenIdentifier:
		p.next()
		if p.cur().Type == lexer.TokenColonColon {
			return p.parsePathTail([]string{tok.Value}, tok)
		}
		if hasUpper(tok.Value) {
			return NewPath([]string{tok.Value}, tok.Line, tok.Column), nil
		}
		return NewVar(tok.Value, tok.Line, tok.Column), nil

	default:
		return nil, p.errorAt(tok, "expected expression, found %s", tok.Type)
	}
}

func (p *Parser) parsePathTail(segments []string, start *lexer.Token) (Expr, error) {
	for p.accept(lexer.TokenColonColon) != nil {
		seg, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg.Value)
	}
	if len(segments) < 2 {
		return nil, p.errorAt(start, "malformed path")
	}
	return NewPath(segments, start.Line, start.Column), nil
}

// parseGroupOrTuple distinguishes "(e)" from the tuple forms "()", "(e,)"
// and "(a, b)".
func (p *Parser) parseGroupOrTuple() (Expr, error) {
	tok, err := p.expect(lexer.TokenLParen)
	if err != nil {
		return nil, err
	}

	if p.accept(lexer.TokenRParen) != nil {
		return NewTuple(nil, tok.Line, tok.Column), nil
	}

	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if p.accept(lexer.TokenRParen) != nil {
		return NewGroup(first, tok.Line, tok.Column), nil
	}
	if _, err := p.expect(lexer.TokenComma); err != nil {
		return nil, err
	}

	elems := []Expr{first}
	for p.cur().Type != lexer.TokenRParen {
		elem, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		if p.accept(lexer.TokenComma) == nil {
			break
		}
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	return NewTuple(elems, tok.Line, tok.Column), nil
}

func hasUpper(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0
}
