package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// uniqueIndexRe reconoce "CREATE UNIQUE INDEX `idx` ON `coll` (`a`, `b`)".
// Los backticks y el IF NOT EXISTS son opcionales.
var uniqueIndexRe = regexp.MustCompile("(?is)^\\s*CREATE\\s+UNIQUE\\s+INDEX\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?(?:`[^`]+`|\\w+)\\s+ON\\s+(?:`[^`]+`|\\w+)\\s*\\(([^)]*)\\)\\s*;?\\s*$")

// UniqueIndex arma la sentencia de un índice único sobre fields, en el
// formato que guarda el store en Collection.Indexes.
func UniqueIndex(collection string, fields ...string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = "`" + f + "`"
	}
	name := "idx_" + collection + "_" + strings.Join(fields, "_")
	return fmt.Sprintf("CREATE UNIQUE INDEX `%s` ON `%s` (%s)", name, collection, strings.Join(quoted, ", "))
}

// ParseUniqueIndex retorna las columnas de stmt si es un índice único.
// ok=false para índices no únicos o sentencias que no reconoce.
func ParseUniqueIndex(stmt string) (fields []string, ok bool) {
	m := uniqueIndexRe.FindStringSubmatch(stmt)
	if m == nil {
		return nil, false
	}
	for _, col := range strings.Split(m[1], ",") {
		col = strings.Trim(strings.TrimSpace(col), "`")
		// "col ASC" / "col COLLATE NOCASE"
		if i := strings.IndexAny(col, " \t"); i > 0 {
			col = strings.Trim(col[:i], "`")
		}
		if col == "" {
			return nil, false
		}
		fields = append(fields, col)
	}
	return fields, len(fields) > 0
}

// UniqueKeys retorna los conjuntos de columnas de los índices únicos.
func UniqueKeys(indexes []string) [][]string {
	var out [][]string
	for _, stmt := range indexes {
		if fields, ok := ParseUniqueIndex(stmt); ok {
			out = append(out, fields)
		}
	}
	return out
}

// CheckIndexes valida que cada índice único referencie campos del schema.
func CheckIndexes(schema []Field, indexes []string) error {
	declared := map[string]bool{"id": true}
	for _, f := range schema {
		declared[f.Name] = true
	}
	for i, stmt := range indexes {
		key := fmt.Sprintf("indexes.%d", i)
		if !strings.Contains(strings.ToUpper(stmt), "UNIQUE") {
			continue
		}
		fields, ok := ParseUniqueIndex(stmt)
		if !ok {
			return BadRequest("Invalid collection indexes.", FieldError(key, "validation_invalid_index_expression", "Invalid CREATE INDEX expression."))
		}
		for _, f := range fields {
			if !declared[f] {
				return BadRequest("Invalid collection indexes.", FieldError(key, "validation_invalid_index_column", fmt.Sprintf("Unknown column %q.", f)))
			}
		}
	}
	return nil
}

// UniqueValue retorna la clave de rec sobre fields. ok=false si todas las
// columnas están vacías: esos registros no compiten por la clave.
func UniqueValue(rec Record, fields []string) (string, bool) {
	vals := make([]any, len(fields))
	present := false
	for i, f := range fields {
		vals[i] = rec[f]
		if !blank(rec[f]) {
			present = true
		}
	}
	if !present {
		return "", false
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return fmt.Sprint(vals), true
	}
	return string(b), true
}

// NotUnique es el 400 que responde el store ante una clave duplicada.
func NotUnique(fields []string) *Failure {
	data := map[string]any{}
	for _, f := range fields {
		data[f] = map[string]any{"code": "validation_not_unique", "message": "Value must be unique."}
	}
	return BadRequest("Failed to create record.", data)
}

// FindDuplicate busca en recs dos registros con la misma clave para algún
// índice único. Retorna las columnas del índice violado.
func FindDuplicate(keys [][]string, recs []Record) ([]string, bool) {
	for _, fields := range keys {
		seen := make(map[string]bool, len(recs))
		for _, rec := range recs {
			v, ok := UniqueValue(rec, fields)
			if !ok {
				continue
			}
			if seen[v] {
				return fields, true
			}
			seen[v] = true
		}
	}
	return nil, false
}
