package store

// MetadataKeys son las claves administradas por el store que nunca deben
// llegar al framework.
var MetadataKeys = []string{
	"created",
	"updated",
	"clone",
	"code",
	"collectionId",
	"collectionName",
	"expand",
	"export",
	"isNew",
	"load",
	"list",
}

var metadataSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(MetadataKeys))
	for _, k := range MetadataKeys {
		m[k] = struct{}{}
	}
	return m
}()

// IsMetadataKey reporta si key es metadata del store.
func IsMetadataKey(key string) bool {
	_, ok := metadataSet[key]
	return ok
}

// Normalize convierte un registro crudo a la forma canónica: elimina la
// metadata del store y promueve a time.Time los strings que parsean como
// fecha. Retorna un mapa nuevo; raw no se modifica. Nunca falla.
func Normalize(raw Record) Record {
	out := make(Record, len(raw))
	for k, v := range raw {
		if IsMetadataKey(k) {
			continue
		}
		if s, ok := v.(string); ok {
			if t, ok := ParseTime(s); ok {
				out[k] = t
				continue
			}
		}
		out[k] = v
	}
	return out
}
