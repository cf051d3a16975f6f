package expr

import (
	"strconv"
	"strings"
	"unicode"

	"cube-demo/internal/domain"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokRef
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Parse parses the expression source into an AST. Errors are reported as
// *domain.ExpressionError with the offending position.
func Parse(source string) (Expr, error) {
	tokens, err := lex(source)
	if err != nil {
		return nil, err
	}
	p := &parser{source: source, tokens: tokens}
	e, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, domain.ErrExpression("unexpected %q at position %d in %q", p.peek().text, p.peek().pos, source)
	}
	return e, nil
}

func lex(source string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(source) {
		c := source[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
		case c == '[':
			end := strings.IndexByte(source[i:], ']')
			if end < 0 {
				return nil, domain.ErrExpression("unterminated [reference] at position %d in %q", i, source)
			}
			name := source[i+1 : i+end]
			if strings.TrimSpace(name) == "" {
				return nil, domain.ErrExpression("empty [reference] at position %d in %q", i, source)
			}
			tokens = append(tokens, token{tokRef, name, i})
			i += end + 1
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(source) && source[j] != quote {
				j++
			}
			if j >= len(source) {
				return nil, domain.ErrExpression("unterminated string at position %d in %q", i, source)
			}
			tokens = append(tokens, token{tokString, source[i+1 : j], i})
			i = j + 1
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(source) && (source[j] >= '0' && source[j] <= '9' || source[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, source[i:j], i})
			i = j
		case isIdentStart(rune(c)):
			j := i
			for j < len(source) && isIdentPart(rune(source[j])) {
				j++
			}
			tokens = append(tokens, token{tokIdent, source[i:j], i})
			i = j
		default:
			op, ok := lexOperator(source[i:])
			if !ok {
				return nil, domain.ErrExpression("unexpected character %q at position %d in %q", string(c), i, source)
			}
			tokens = append(tokens, token{tokOp, op, i})
			i += len(op)
		}
	}
	tokens = append(tokens, token{tokEOF, "", len(source)})
	return tokens, nil
}

func lexOperator(s string) (string, bool) {
	for _, op := range []string{"==", "!=", "<>", "<=", ">=", "<", ">", "=", "+", "-", "*", "/"} {
		if strings.HasPrefix(s, op) {
			return op, true
		}
	}
	return "", false
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type parser struct {
	source string
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// binding powers for infix operators; higher binds tighter.
func infixPower(t token) (string, int) {
	switch t.kind {
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "or":
			return "or", 1
		case "and":
			return "and", 2
		}
	case tokOp:
		switch t.text {
		case "==", "=", "!=", "<>", "<", "<=", ">", ">=":
			op := t.text
			if op == "=" {
				op = "=="
			}
			if op == "<>" {
				op = "!="
			}
			return op, 3
		case "+", "-":
			return t.text, 4
		case "*", "/":
			return t.text, 5
		}
	}
	return "", 0
}

func (p *parser) parseExpr(minPower int) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, power := infixPower(p.peek())
		if power == 0 || power < minPower {
			return left, nil
		}
		p.next()
		right, err := p.parseExpr(power + 1)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	t := p.peek()
	if t.kind == tokOp && t.text == "-" {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", X: x}, nil
	}
	if t.kind == tokIdent && strings.EqualFold(t.text, "not") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "not", X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, domain.ErrExpression("invalid number %q at position %d in %q", t.text, t.pos, p.source)
		}
		return &Literal{Value: f}, nil
	case tokString:
		return &Literal{Value: t.text}, nil
	case tokRef:
		return &Ref{Name: strings.TrimSpace(t.text)}, nil
	case tokLParen:
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if close := p.next(); close.kind != tokRParen {
			return nil, domain.ErrExpression("expected ')' at position %d in %q", close.pos, p.source)
		}
		return e, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return &Literal{Value: true}, nil
		case "false":
			return &Literal{Value: false}, nil
		case "null":
			return &Literal{Value: nil}, nil
		}
		if p.peek().kind != tokLParen {
			return nil, domain.ErrExpression("bare identifier %q at position %d in %q (column references use [brackets])", t.text, t.pos, p.source)
		}
		p.next()
		var args []Expr
		if p.peek().kind != tokRParen {
			for {
				arg, err := p.parseExpr(0)
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peek().kind != tokComma {
					break
				}
				p.next()
			}
		}
		if close := p.next(); close.kind != tokRParen {
			return nil, domain.ErrExpression("expected ')' after arguments of %q at position %d in %q", t.text, close.pos, p.source)
		}
		return &Call{Name: strings.ToLower(t.text), Args: args}, nil
	default:
		return nil, domain.ErrExpression("unexpected %q at position %d in %q", t.text, t.pos, p.source)
	}
}
