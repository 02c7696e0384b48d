package store

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound indica que la colección o el registro no existe.
	ErrNotFound = errors.New("store: not found")

	// ErrUnauthorized indica credenciales de admin inválidas o token ausente.
	ErrUnauthorized = errors.New("store: unauthorized")

	// ErrNotImplemented indica que el driver no soporta la operación.
	ErrNotImplemented = errors.New("store: not implemented")
)

// Failure es una respuesta de error del store: un status HTTP no exitoso o
// un payload con código de error en lugar de un registro.
type Failure struct {
	Status  int            // status HTTP (0 si vino en un payload 2xx)
	Code    int            // campo "code" del payload
	Message string         // campo "message" del payload
	Data    map[string]any // detalle de validación, si lo hay
}

func (f *Failure) Error() string {
	code := f.Code
	if code == 0 {
		code = f.Status
	}
	if f.Message == "" {
		return fmt.Sprintf("store: failure code=%d", code)
	}
	return fmt.Sprintf("store: failure code=%d: %s", code, f.Message)
}

// Is permite errors.Is(err, ErrNotFound) / ErrUnauthorized.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return f.Status == http.StatusNotFound || f.Code == http.StatusNotFound
	case ErrUnauthorized:
		return f.Status == http.StatusUnauthorized || f.Status == http.StatusForbidden ||
			f.Code == http.StatusUnauthorized || f.Code == http.StatusForbidden
	}
	return false
}

// NotFound construye un Failure 404.
func NotFound(msg string) *Failure {
	return &Failure{Status: http.StatusNotFound, Code: http.StatusNotFound, Message: msg}
}

// BadRequest construye un Failure 400.
func BadRequest(msg string, data map[string]any) *Failure {
	return &Failure{Status: http.StatusBadRequest, Code: http.StatusBadRequest, Message: msg, Data: data}
}

// FailureFromRecord retorna un *Failure si rec trae un código de error no
// vacío en lugar de ser un registro; nil en caso contrario.
func FailureFromRecord(rec Record) error {
	if rec == nil {
		return nil
	}
	raw, ok := rec["code"]
	if !ok || raw == nil {
		return nil
	}
	code, ok := rec.Int64("code")
	if !ok {
		if rec.String("code") == "" {
			return nil
		}
		return &Failure{Message: rec.String("message")}
	}
	if code == 0 {
		return nil
	}
	f := &Failure{Code: int(code), Message: rec.String("message")}
	if data, ok := rec["data"].(map[string]any); ok {
		f.Data = data
	}
	return f
}

// Outcome clasifica el resultado de una llamada al store.
type Outcome int

const (
	// OK la llamada tuvo éxito.
	OK Outcome = iota
	// Missing el recurso no existe.
	Missing
	// Coded el store respondió con un código de error.
	Coded
	// Transport la llamada falló antes de obtener respuesta del store.
	Transport
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Missing:
		return "not_found"
	case Coded:
		return "coded"
	case Transport:
		return "transport"
	}
	return "unknown"
}

// Classify clasifica err según el origen de la falla.
func Classify(err error) Outcome {
	if err == nil {
		return OK
	}
	if errors.Is(err, ErrNotFound) {
		return Missing
	}
	var f *Failure
	if errors.As(err, &f) {
		return Coded
	}
	// context.Canceled, errores de red, JSON inválido...
	return Transport
}
