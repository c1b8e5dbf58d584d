package expr

import (
	"fmt"
	"html"
	"strings"
)

// Parse compiles a condition string into an AST. Input is HTML-entity
// decoded first, since stored conditions may arrive encoded. A parse error
// means the condition can never trigger.
func Parse(input string) (Node, error) {
	decoded := html.UnescapeString(input)
	if strings.TrimSpace(decoded) == "" {
		return nil, fmt.Errorf("empty condition")
	}

	lex := newLexer(decoded)
	var toks []token
	for {
		tok, err := lex.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			break
		}
	}

	p := &parser{toks: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected %s after expression", p.peek())
	}
	return node, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	tok := p.peek()
	if tok.kind != kind {
		return token{}, fmt.Errorf("expected %s, got %s at position %d", what, tok, tok.pos)
	}
	return p.advance(), nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.peek().kind == tokNot {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: "not", Right: right}, nil
	}
	return p.parseComparison()
}

// parseComparison handles a single, non-associative comparison, membership
// test, or IS [NOT] NULL check.
func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	switch p.peek().kind {
	case tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte:
		op := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BinaryNode{Op: comparisonOp(op.kind), Left: left, Right: right}, nil

	case tokIn:
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BinaryNode{Op: "in", Left: left, Right: right}, nil

	case tokContains:
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BinaryNode{Op: "contains", Left: left, Right: right}, nil

	case tokIs:
		p.advance()
		negated := false
		if p.peek().kind == tokNot {
			p.advance()
			negated = true
		}
		if _, err := p.expect(tokNull, "NULL"); err != nil {
			return nil, err
		}
		return &IsNullNode{Left: left, Negated: negated}, nil
	}

	return left, nil
}

func comparisonOp(kind tokenKind) string {
	switch kind {
	case tokEq:
		return "=="
	case tokNeq:
		return "!="
	case tokLt:
		return "<"
	case tokLte:
		return "<="
	case tokGt:
		return ">"
	default:
		return ">="
	}
}

func (p *parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokPlus || p.peek().kind == tokMinus {
		op := "+"
		if p.peek().kind == tokMinus {
			op = "-"
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().kind {
		case tokStar:
			op = "*"
		case tokSlash:
			op = "/"
		case tokPercent:
			op = "%"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().kind == tokMinus {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: "-", Right: right}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.peek()

	switch tok.kind {
	case tokNumber:
		p.advance()
		return &LiteralNode{Value: tok.num}, nil

	case tokString:
		p.advance()
		return &LiteralNode{Value: tok.text}, nil

	case tokTrue:
		p.advance()
		return &LiteralNode{Value: true}, nil

	case tokFalse:
		p.advance()
		return &LiteralNode{Value: false}, nil

	case tokNull:
		p.advance()
		return &LiteralNode{Value: nil}, nil

	case tokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "closing parenthesis"); err != nil {
			return nil, err
		}
		return inner, nil

	case tokLBrack:
		return p.parseList()

	case tokIdent:
		return p.parseIdentOrCall()
	}

	return nil, fmt.Errorf("unexpected %s at position %d", tok, tok.pos)
}

func (p *parser) parseList() (Node, error) {
	p.advance() // [

	list := &ListNode{}
	if p.peek().kind == tokRBrack {
		p.advance()
		return list, nil
	}

	for {
		elem, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		list.Elems = append(list.Elems, elem)

		if p.peek().kind == tokComma {
			p.advance()
			continue
		}
		break
	}

	if _, err := p.expect(tokRBrack, "closing bracket"); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *parser) parseIdentOrCall() (Node, error) {
	name := p.advance()

	// Function call. Names are matched case-insensitively against the
	// fixed helper library; anything else is rejected at parse time.
	if p.peek().kind == tokLParen {
		lower := strings.ToLower(name.text)
		if _, ok := functions[lower]; !ok {
			return nil, fmt.Errorf("unknown function %q at position %d", name.text, name.pos)
		}

		p.advance() // (
		call := &CallNode{Name: lower}

		if p.peek().kind != tokRParen {
			for {
				arg, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)

				if p.peek().kind == tokComma {
					p.advance()
					continue
				}
				break
			}
		}
		if _, err := p.expect(tokRParen, "closing parenthesis"); err != nil {
			return nil, err
		}

		fn := functions[lower]
		if len(call.Args) < fn.minArgs || (fn.maxArgs >= 0 && len(call.Args) > fn.maxArgs) {
			return nil, fmt.Errorf("%s: wrong argument count %d at position %d", lower, len(call.Args), name.pos)
		}
		return call, nil
	}

	// Dotted property path.
	path := []string{name.text}
	for p.peek().kind == tokDot {
		p.advance()
		part, err := p.expect(tokIdent, "property name")
		if err != nil {
			return nil, err
		}
		path = append(path, part.text)
	}
	return &IdentNode{Path: path}, nil
}
