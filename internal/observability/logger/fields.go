package logger

import (
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/pbauth/internal/util"
)

// =================================================================================
// CAMPOS ESTÁNDAR - ADAPTER
// =================================================================================

// Op crea un campo para la operación actual ("create", "get", "unlink"...).
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Entity crea un campo para el tipo de entidad ("user", "account"...).
func Entity(v string) zap.Field {
	return zap.String("entity", v)
}

// Collection crea un campo para el nombre de la colección.
func Collection(v string) zap.Field {
	return zap.String("collection", v)
}

// RecordID crea un campo para el ID de un registro del store.
func RecordID(v string) zap.Field {
	return zap.String("record_id", v)
}

// Outcome crea un campo para la clasificación del resultado de una llamada.
func Outcome(v string) zap.Field {
	return zap.String("outcome", v)
}

// Filter crea un campo para una expresión de filtro ya renderizada.
func Filter(v string) zap.Field {
	return zap.String("filter", v)
}

// Driver crea un campo para el driver del store.
func Driver(v string) zap.Field {
	return zap.String("driver", v)
}

// MaskedEmail crea un campo con el email enmascarado.
func MaskedEmail(v string) zap.Field {
	return zap.String("email", util.MaskEmail(v))
}

// MaskedToken crea un campo con un token enmascarado.
func MaskedToken(key, v string) zap.Field {
	return zap.String(key, util.MaskToken(v))
}

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP (emulador)
// =================================================================================

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Addr crea un campo para una dirección de escucha.
func Addr(v string) zap.Field {
	return zap.String("addr", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
