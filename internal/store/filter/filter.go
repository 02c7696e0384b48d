// Package filter construye y parsea expresiones de filtro del store.
//
// Las expresiones son conjunciones planas de igualdades:
//
//	provider = "google" && providerAccountId = "g1"
//
// Cada operando se escapa al renderizar, así que un valor con comillas no
// puede romper la expresión ni inyectar términos.
package filter

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidField indica un nombre de campo no permitido.
	ErrInvalidField = errors.New("filter: invalid field name")

	// ErrInvalidValue indica un tipo de valor no soportado.
	ErrInvalidValue = errors.New("filter: unsupported value")

	// ErrEmpty indica una expresión sin términos.
	ErrEmpty = errors.New("filter: empty expression")
)

var validField = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Term es una igualdad campo = valor.
type Term struct {
	Field string
	Value any // string, bool, int, int64, float64 o nil
}

// Expr es una conjunción de términos. El valor cero es una expresión vacía.
type Expr struct {
	terms []Term
}

// Eq crea una expresión con un único término.
func Eq(field string, value any) Expr {
	return Expr{terms: []Term{{Field: field, Value: value}}}
}

// And agrega un término a la conjunción. No modifica e.
func (e Expr) And(field string, value any) Expr {
	terms := make([]Term, 0, len(e.terms)+1)
	terms = append(terms, e.terms...)
	terms = append(terms, Term{Field: field, Value: value})
	return Expr{terms: terms}
}

// Terms retorna una copia de los términos.
func (e Expr) Terms() []Term {
	out := make([]Term, len(e.terms))
	copy(out, e.terms)
	return out
}

// Validate verifica campos y tipos de valor.
func (e Expr) Validate() error {
	if len(e.terms) == 0 {
		return ErrEmpty
	}
	for _, t := range e.terms {
		if !validField.MatchString(t.Field) {
			return fmt.Errorf("%w: %q", ErrInvalidField, t.Field)
		}
		if _, err := literal(t.Value); err != nil {
			return fmt.Errorf("%s: %w", t.Field, err)
		}
	}
	return nil
}

// Build renderiza la expresión en el dialecto del store.
func (e Expr) Build() (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(e.terms))
	for _, t := range e.terms {
		lit, _ := literal(t.Value)
		parts = append(parts, t.Field+"="+lit)
	}
	return strings.Join(parts, " && "), nil
}

// String renderiza la expresión para logs. Una expresión inválida se
// muestra como "<invalid: ...>".
func (e Expr) String() string {
	s, err := e.Build()
	if err != nil {
		return "<invalid: " + err.Error() + ">"
	}
	return s
}

// Quote escapa s como literal de string entre comillas dobles.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}

func literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return Quote(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("%w: %v", ErrInvalidValue, x)
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
}
