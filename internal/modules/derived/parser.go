// Package derived implements synthetic tickers whose prices are computed
// from arithmetic formulas over other tickers.
package derived

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Formulas are infix arithmetic over ticker variables and numeric
// literals: + - * / ** with unary minus, parentheses, and the functions
// abs(x) and round(x). Ticker identifiers start with a letter or
// underscore and may contain letters, digits, dots, and underscores.
// A hyphen is always the subtraction or negation operator, never part
// of an identifier.

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPower
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(formula string) ([]token, error) {
	var tokens []token
	runes := []rune(formula)
	i := 0

	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '+':
			tokens = append(tokens, token{tokPlus, "+", i})
			i++
		case r == '-':
			tokens = append(tokens, token{tokMinus, "-", i})
			i++
		case r == '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				tokens = append(tokens, token{tokPower, "**", i})
				i += 2
			} else {
				tokens = append(tokens, token{tokStar, "*", i})
				i++
			}
		case r == '/':
			tokens = append(tokens, token{tokSlash, "/", i})
			i++
		case r == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case r == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := string(runes[start:i])
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, ErrFormulaSyntax{Detail: fmt.Sprintf("invalid number %q at position %d", text, start)}
			}
			tokens = append(tokens, token{tokNumber, text, start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			tokens = append(tokens, token{tokIdent, string(runes[start:i]), start})
		default:
			return nil, ErrFormulaSyntax{Detail: fmt.Sprintf("unexpected character %q at position %d", r, i)}
		}
	}

	tokens = append(tokens, token{tokEOF, "", len(runes)})
	return tokens, nil
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_'
}

func isFunctionName(name string) bool {
	switch strings.ToLower(name) {
	case "abs", "round":
		return true
	}
	return false
}

// node is one vertex of a parsed formula tree
type node interface {
	eval(vars map[string]float64) (float64, error)
}

// Expr is a parsed, evaluable formula
type Expr struct {
	root node
}

// Parse compiles a formula into an expression tree
func Parse(formula string) (*Expr, error) {
	if strings.TrimSpace(formula) == "" {
		return nil, ErrFormulaSyntax{Detail: "empty formula"}
	}

	tokens, err := tokenize(formula)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		tok := p.peek()
		return nil, ErrFormulaSyntax{Detail: fmt.Sprintf("unexpected %q at position %d", tok.text, tok.pos)}
	}
	return &Expr{root: root}, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// expr := term (('+' | '-') term)*
func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokPlus:
			p.next()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: "+", left: left, right: right}
		case tokMinus:
			p.next()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: "-", left: left, right: right}
		default:
			return left, nil
		}
	}
}

// term := unary (('*' | '/') unary)*
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokStar:
			p.next()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: "*", left: left, right: right}
		case tokSlash:
			p.next()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: "/", left: left, right: right}
		default:
			return left, nil
		}
	}
}

// unary := '-' unary | power
func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{operand: operand}, nil
	}
	return p.parsePower()
}

// power := primary ('**' unary)?
// Right-associative, and binds tighter than unary minus on its left,
// so -2**2 is -(2**2).
func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokPower {
		p.next()
		exponent, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: "**", left: base, right: exponent}, nil
	}
	return base, nil
}

// primary := number | ident | func '(' expr ')' | '(' expr ')'
func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		value, _ := strconv.ParseFloat(tok.text, 64)
		return numberNode{value: value}, nil

	case tokIdent:
		if isFunctionName(tok.text) {
			// Reserved function names are never ticker variables
			if p.peek().kind != tokLParen {
				return nil, ErrFormulaSyntax{Detail: fmt.Sprintf("function %s requires parentheses at position %d", tok.text, tok.pos)}
			}
			p.next()
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if closing := p.next(); closing.kind != tokRParen {
				return nil, ErrFormulaSyntax{Detail: fmt.Sprintf("missing closing parenthesis for %s at position %d", tok.text, tok.pos)}
			}
			return callNode{fn: strings.ToLower(tok.text), arg: arg}, nil
		}
		return varNode{name: tok.text}, nil

	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, ErrFormulaSyntax{Detail: fmt.Sprintf("missing closing parenthesis for group at position %d", tok.pos)}
		}
		return inner, nil

	case tokEOF:
		return nil, ErrFormulaSyntax{Detail: "unexpected end of formula"}

	default:
		return nil, ErrFormulaSyntax{Detail: fmt.Sprintf("unexpected %q at position %d", tok.text, tok.pos)}
	}
}

// Variables lists the distinct ticker variables in the expression, in
// order of first appearance
func (e *Expr) Variables() []string {
	var names []string
	seen := make(map[string]bool)
	collectVars(e.root, seen, &names)
	return names
}

func collectVars(n node, seen map[string]bool, names *[]string) {
	switch v := n.(type) {
	case varNode:
		if !seen[v.name] {
			seen[v.name] = true
			*names = append(*names, v.name)
		}
	case negNode:
		collectVars(v.operand, seen, names)
	case binaryNode:
		collectVars(v.left, seen, names)
		collectVars(v.right, seen, names)
	case callNode:
		collectVars(v.arg, seen, names)
	}
}

// ExtractTickers returns the ticker variables referenced by a formula,
// in order of first appearance. Function names and numeric literals are
// not tickers.
func ExtractTickers(formula string) ([]string, error) {
	expr, err := Parse(formula)
	if err != nil {
		return nil, err
	}
	return expr.Variables(), nil
}
