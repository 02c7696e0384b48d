package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax indica una expresión mal formada.
var ErrSyntax = errors.New("filter: syntax error")

// Parse interpreta una expresión producida por Build (o escrita a mano con
// la misma gramática). Acepta literales entre comillas dobles o simples,
// números, true, false y null.
func Parse(s string) (Expr, error) {
	p := &parser{src: s}
	var e Expr
	for {
		p.skipSpace()
		field := p.ident()
		if field == "" {
			return Expr{}, p.errorf("expected field name")
		}
		p.skipSpace()
		if !p.consume("=") {
			return Expr{}, p.errorf("expected '=' after %q", field)
		}
		p.skipSpace()
		val, err := p.literal()
		if err != nil {
			return Expr{}, err
		}
		e = e.And(field, val)
		p.skipSpace()
		if p.eof() {
			break
		}
		if !p.consume("&&") {
			return Expr{}, p.errorf("expected '&&'")
		}
	}
	return e, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *parser) consume(tok string) bool {
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) literal() (any, error) {
	if p.eof() {
		return nil, p.errorf("expected value")
	}
	switch c := p.src[p.pos]; {
	case c == '"' || c == '\'':
		return p.quoted(c)
	case c == '-' || (c >= '0' && c <= '9'):
		start := p.pos
		p.pos++
		for !p.eof() && (p.src[p.pos] == '.' || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
			p.pos++
		}
		raw := p.src[start:p.pos]
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", raw)
		}
		return f, nil
	case p.consume("true"):
		return true, nil
	case p.consume("false"):
		return false, nil
	case p.consume("null"):
		return nil, nil
	}
	return nil, p.errorf("unexpected character %q", p.src[p.pos])
}

func (p *parser) quoted(q byte) (string, error) {
	p.pos++ // comilla de apertura
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == q:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

// Match reporta si rec satisface todos los términos de e.
// Una expresión vacía no matchea nada.
func (e Expr) Match(rec map[string]any) bool {
	if len(e.terms) == 0 {
		return false
	}
	for _, t := range e.terms {
		if !equal(rec[t.Field], t.Value) {
			return false
		}
	}
	return true
}

func equal(have, want any) bool {
	switch w := want.(type) {
	case nil:
		return have == nil || have == ""
	case string:
		return asString(have) == w
	case bool:
		b, ok := have.(bool)
		return ok && b == w
	default:
		wf, ok := asFloat(want)
		if !ok {
			return false
		}
		hf, ok := asFloat(have)
		return ok && hf == wf
	}
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
