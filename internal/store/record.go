package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout es el formato nativo de fechas del store: ISO-8601 en UTC con
// precisión de milisegundos y un espacio en lugar de la "T".
const DateLayout = "2006-01-02 15:04:05.000Z"

// Record es un registro crudo tal como lo devuelve el store, incluyendo la
// metadata administrada por el store (id, created, updated, collectionId...).
type Record map[string]any

// FormatTime serializa t en el formato nativo del store.
func FormatTime(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// acceptedLayouts son los formatos reconocidos como fecha al leer.
var acceptedLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime intenta interpretar s como fecha/hora de calendario válida.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	// descarta rápido valores que no pueden ser fechas
	if len(s) < len("2006-01-02") || s[4] != '-' {
		return time.Time{}, false
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ID retorna el identificador asignado por el store.
func (r Record) ID() string {
	return r.String("id")
}

// String retorna el valor de key como texto. Vacío si no existe o es nil.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return FormatTime(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Time retorna el valor de key como fecha. ok=false si no existe, está
// vacío o no es una fecha válida.
func (r Record) Time(key string) (time.Time, bool) {
	switch v := r[key].(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		return ParseTime(v)
	default:
		return time.Time{}, false
	}
}

// Int64 retorna el valor numérico de key. ok=false si no existe o no es numérico.
func (r Record) Int64(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Clone retorna una copia superficial del registro.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
