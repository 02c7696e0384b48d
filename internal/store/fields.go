package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidValue indica un valor que no se puede convertir al tipo del campo.
var ErrInvalidValue = errors.New("invalid value")

// KnownFieldType reporta si t es un tipo de campo soportado.
func KnownFieldType(t string) bool {
	switch t {
	case FieldText, FieldEmail, FieldURL, FieldDate,
		FieldNumber, FieldBool, FieldRelation, FieldJSON:
		return true
	}
	return false
}

// FieldError arma el detalle de validación {field: {code, message}}.
func FieldError(field, code, msg string) map[string]any {
	return map[string]any{
		field: map[string]any{"code": code, "message": msg},
	}
}

// ApplyFields copia sobre dst los campos de src declarados en schema,
// convertidos al tipo de cada campo. Los no declarados se descartan.
func ApplyFields(schema []Field, dst, src Record) error {
	errs := map[string]any{}
	for _, f := range schema {
		v, ok := src[f.Name]
		if !ok {
			continue
		}
		cv, err := Coerce(f, v)
		if err != nil {
			errs[f.Name] = map[string]any{"code": "validation_invalid_value", "message": err.Error()}
			continue
		}
		dst[f.Name] = cv
	}
	if len(errs) > 0 {
		return BadRequest("Failed to load the submitted data due to invalid formatting.", errs)
	}
	return nil
}

// CheckRequired falla con un 400 si algún campo requerido está vacío.
func CheckRequired(schema []Field, rec Record) error {
	errs := map[string]any{}
	for _, f := range schema {
		if f.Required && blank(rec[f.Name]) {
			errs[f.Name] = map[string]any{"code": "validation_required", "message": "Missing required value."}
		}
	}
	if len(errs) > 0 {
		return BadRequest("Failed to create record.", errs)
	}
	return nil
}

func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case float64:
		return x == 0
	case bool:
		return !x
	}
	return false
}

// ZeroValue es el valor que toma un campo ausente.
func ZeroValue(f Field) any {
	switch f.Type {
	case FieldNumber:
		return float64(0)
	case FieldBool:
		return false
	case FieldJSON:
		return nil
	default:
		return ""
	}
}

// Coerce convierte v al tipo del campo f, como lo hace PocketBase al recibir
// un payload JSON. Las fechas quedan en el layout del store.
func Coerce(f Field, v any) (any, error) {
	if v == nil {
		return ZeroValue(f), nil
	}
	switch f.Type {
	case FieldText, FieldEmail, FieldURL, FieldRelation:
		switch x := v.(type) {
		case string:
			return x, nil
		case time.Time:
			return FormatTime(x), nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case bool, int, int64, json.Number:
			return fmt.Sprint(x), nil
		}
		return nil, fmt.Errorf("%w: expected text, got %T", ErrInvalidValue, v)

	case FieldDate:
		switch x := v.(type) {
		case time.Time:
			if x.IsZero() {
				return "", nil
			}
			return FormatTime(x), nil
		case string:
			if strings.TrimSpace(x) == "" {
				return "", nil
			}
			t, ok := ParseTime(x)
			if !ok {
				return nil, fmt.Errorf("%w: must be a valid date", ErrInvalidValue)
			}
			return FormatTime(t), nil
		}
		return nil, fmt.Errorf("%w: expected date, got %T", ErrInvalidValue, v)

	case FieldNumber:
		switch x := v.(type) {
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: must be a finite number", ErrInvalidValue)
			}
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case json.Number:
			n, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			return n, nil
		case string:
			if strings.TrimSpace(x) == "" {
				return float64(0), nil
			}
			n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: must be a number", ErrInvalidValue)
			}
			return n, nil
		}
		return nil, fmt.Errorf("%w: expected number, got %T", ErrInvalidValue, v)

	case FieldBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return x == "true" || x == "1", nil
		case float64:
			return x != 0, nil
		}
		return nil, fmt.Errorf("%w: expected bool, got %T", ErrInvalidValue, v)
	}
	// json: se guarda tal cual
	return v, nil
}

// Reshape adapta rec (escrito con el schema prev) al schema next. Los campos
// se identifican por ID: un campo con el mismo ID conserva su valor (aunque
// cambie de nombre), uno nuevo toma el valor cero y los eliminados se pierden.
func Reshape(prev, next []Field, rec Record) Record {
	byID := make(map[string]Field, len(prev))
	for _, f := range prev {
		byID[f.ID] = f
	}
	out := make(Record, len(next))
	for _, f := range next {
		old, ok := byID[f.ID]
		if !ok {
			out[f.Name] = ZeroValue(f)
			continue
		}
		v, err := Coerce(f, rec[old.Name])
		if err != nil {
			v = ZeroValue(f)
		}
		out[f.Name] = v
	}
	return out
}

// CheckSchema valida un schema de colección y asigna ID a los campos nuevos.
// exists reporta si un ID de colección es destino válido de una relación.
func CheckSchema(in []Field, exists func(collectionID string) bool) ([]Field, error) {
	out := make([]Field, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, f := range in {
		f = f.Clone()
		key := fmt.Sprintf("schema.%d", i)
		if strings.TrimSpace(f.Name) == "" {
			return nil, BadRequest("Invalid collection schema.", FieldError(key, "validation_required", "Missing field name."))
		}
		if f.Name == "id" || IsMetadataKey(f.Name) {
			return nil, BadRequest("Invalid collection schema.", FieldError(key, "validation_reserved_name", "The field name is reserved."))
		}
		if seen[f.Name] {
			return nil, BadRequest("Invalid collection schema.", FieldError(key, "validation_duplicated_field_name", "Duplicated or invalid schema field name."))
		}
		seen[f.Name] = true
		if !KnownFieldType(f.Type) {
			return nil, BadRequest("Invalid collection schema.", FieldError(key, "validation_invalid_type", fmt.Sprintf("Unknown field type %q.", f.Type)))
		}
		if f.Type == FieldRelation {
			if f.Options == nil || f.Options.CollectionID == "" {
				return nil, BadRequest("Invalid collection schema.", FieldError(key, "validation_required", "Missing relation collection."))
			}
			if !exists(f.Options.CollectionID) {
				return nil, BadRequest("Invalid collection schema.", FieldError(key, "validation_missing_collection", "The relation collection doesn't exist."))
			}
		}
		if f.ID == "" {
			f.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		}
		out = append(out, f)
	}
	return out, nil
}
