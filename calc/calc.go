// Package calc evaluates arithmetic expressions without executing code.
//
// The grammar covers numbers, parentheses, unary signs and the binary
// operators + - * / // % and ** with the usual precedence; ** binds tighter
// than unary minus on its left and is right-associative. % and // follow
// floor semantics (the result of % takes the sign of the divisor).
package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Allowed is the complete set of characters an expression may contain.
const Allowed = "0123456789.+-*/()% "

// maxDepth bounds parenthesis and unary nesting.
const maxDepth = 64

var (
	// ErrDisallowedCharacter is returned by Validate for characters outside Allowed.
	ErrDisallowedCharacter = errors.New("invalid characters in expression; only numbers and + - * / % ( ) . are allowed")
	// ErrDivisionByZero is returned for x/0, x//0 and x%0.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrOutOfRange is returned when the result is not a finite real number.
	ErrOutOfRange = errors.New("result is not a finite real number")
)

// Error describes an evaluation failure at a byte offset of the expression.
type Error struct {
	Expr string
	Pos  int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid expression %q at position %d: %v", e.Expr, e.Pos, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Validate checks expr against the character allow-list.
func Validate(expr string) error {
	for _, r := range expr {
		if !strings.ContainsRune(Allowed, r) {
			return ErrDisallowedCharacter
		}
	}
	return nil
}

// Eval validates and evaluates expr.
func Eval(expr string) (float64, error) {
	if err := Validate(expr); err != nil {
		return 0, err
	}
	p := &parser{src: expr}
	p.skipSpace()
	if p.eof() {
		return 0, p.fail(errors.New("empty expression"))
	}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if !p.eof() {
		return 0, p.fail(fmt.Errorf("unexpected %q", p.src[p.pos]))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &Error{Expr: expr, Pos: len(expr), Err: ErrOutOfRange}
	}
	return v, nil
}

// Format renders a result the way a calculator would: integral values
// without a fractional part, others with the shortest exact representation.
func Format(v float64) string {
	if v == 0 {
		return "0" // avoid "-0"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type parser struct {
	src   string
	pos   int
	depth int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.eof() && p.src[p.pos] == ' ' {
		p.pos++
	}
}

// accept consumes op (after spaces) if it is next and not the prefix of a longer operator.
func (p *parser) accept(op string) bool {
	p.skipSpace()
	if !strings.HasPrefix(p.src[p.pos:], op) {
		return false
	}
	if (op == "*" || op == "/") && strings.HasPrefix(p.src[p.pos:], op+op) {
		return false
	}
	p.pos += len(op)
	return true
}

func (p *parser) fail(err error) error {
	return &Error{Expr: p.src, Pos: p.pos, Err: err}
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.fail(errors.New("expression nested too deeply"))
	}
	return nil
}

// expr := term (('+' | '-') term)*
func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.accept("+"):
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left += right
		case p.accept("-"):
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

// term := unary (('*' | '/' | '//' | '%') unary)*
func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		var op string
		switch {
		case p.accept("//"):
			op = "//"
		case p.accept("*"):
			op = "*"
		case p.accept("/"):
			op = "/"
		case p.accept("%"):
			op = "%"
		default:
			return left, nil
		}
		opPos := p.pos
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op != "*" && right == 0 {
			return 0, &Error{Expr: p.src, Pos: opPos, Err: ErrDivisionByZero}
		}
		switch op {
		case "*":
			left *= right
		case "/":
			left /= right
		case "//":
			left = math.Floor(left / right)
		case "%":
			left = floorMod(left, right)
		}
	}
}

// unary := ('+' | '-') unary | power
func (p *parser) unary() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer func() { p.depth-- }()

	switch {
	case p.accept("+"):
		return p.unary()
	case p.accept("-"):
		v, err := p.unary()
		return -v, err
	}
	return p.power()
}

// power := primary ('**' unary)?
func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if !p.accept("**") {
		return base, nil
	}
	opPos := p.pos
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	if base == 0 && exp < 0 {
		return 0, &Error{Expr: p.src, Pos: opPos, Err: ErrDivisionByZero}
	}
	v := math.Pow(base, exp)
	if math.IsNaN(v) {
		return 0, &Error{Expr: p.src, Pos: opPos, Err: ErrOutOfRange}
	}
	return v, nil
}

// primary := number | '(' expr ')'
func (p *parser) primary() (float64, error) {
	p.skipSpace()
	if p.eof() {
		return 0, p.fail(errors.New("unexpected end of expression"))
	}
	if p.src[p.pos] == '(' {
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if !p.accept(")") {
			return 0, p.fail(errors.New("missing closing parenthesis"))
		}
		return v, nil
	}
	return p.number()
}

func (p *parser) number() (float64, error) {
	start := p.pos
	dots := 0
	for !p.eof() {
		c := p.src[p.pos]
		if c == '.' {
			dots++
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	lit := p.src[start:p.pos]
	if lit == "" {
		return 0, p.fail(fmt.Errorf("unexpected %q", p.src[p.pos]))
	}
	if lit == "." || dots > 1 {
		p.pos = start
		return 0, p.fail(fmt.Errorf("malformed number %q", lit))
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		p.pos = start
		return 0, p.fail(fmt.Errorf("malformed number %q", lit))
	}
	return v, nil
}

func floorMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}
