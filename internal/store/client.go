package store

import (
	"context"

	"github.com/dropDatabas3/pbauth/internal/store/filter"
)

// Tipos de campo soportados por los schemas de colección.
const (
	FieldText     = "text"
	FieldEmail    = "email"
	FieldURL      = "url"
	FieldDate     = "date"
	FieldNumber   = "number"
	FieldBool     = "bool"
	FieldRelation = "relation"
	FieldJSON     = "json"
)

// Field es un campo del schema de una colección.
type Field struct {
	ID       string        `json:"id,omitempty"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Required bool          `json:"required"`
	Options  *FieldOptions `json:"options,omitempty"`
}

// FieldOptions contiene las opciones de un campo relation.
type FieldOptions struct {
	MaxSelect     *int   `json:"maxSelect,omitempty"`
	CollectionID  string `json:"collectionId,omitempty"`
	CascadeDelete bool   `json:"cascadeDelete,omitempty"`
}

// IsRelation reporta si el campo referencia otra colección.
func (f Field) IsRelation() bool {
	return f.Options != nil && f.Options.CollectionID != ""
}

// Clone retorna una copia profunda del campo.
func (f Field) Clone() Field {
	if f.Options != nil {
		opts := *f.Options
		if opts.MaxSelect != nil {
			n := *opts.MaxSelect
			opts.MaxSelect = &n
		}
		f.Options = &opts
	}
	return f
}

// Collection describe una colección del store.
type Collection struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Type    string   `json:"type,omitempty"` // "base"
	Schema  []Field  `json:"schema"`
	Indexes []string `json:"indexes,omitempty"` // sentencias CREATE INDEX; las UNIQUE se aplican
	Created string   `json:"created,omitempty"`
	Updated string   `json:"updated,omitempty"`
}

// Field busca un campo por nombre.
func (c *Collection) Field(name string) (Field, bool) {
	for _, f := range c.Schema {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Clone retorna una copia profunda de la colección.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	out := *c
	out.Schema = make([]Field, len(c.Schema))
	for i, f := range c.Schema {
		out.Schema[i] = f.Clone()
	}
	if c.Indexes != nil {
		out.Indexes = append([]string(nil), c.Indexes...)
	}
	return &out
}

// RecordService opera sobre los registros de una colección.
//
// Todas las operaciones retornan un *Failure (o un error que lo envuelve)
// cuando el store responde con un código de error; cualquier otro error es
// de transporte. Usar Classify para distinguirlos.
type RecordService interface {
	// Create inserta un registro y retorna el registro persistido.
	Create(ctx context.Context, data Record) (Record, error)

	// GetOne obtiene un registro por ID.
	GetOne(ctx context.Context, id string) (Record, error)

	// GetFirstListItem obtiene el primer registro que satisface expr.
	// Retorna ErrNotFound si no hay ninguno.
	GetFirstListItem(ctx context.Context, expr filter.Expr) (Record, error)

	// Update aplica patch sobre el registro id y retorna el resultado.
	Update(ctx context.Context, id string, patch Record) (Record, error)

	// Delete elimina el registro id.
	Delete(ctx context.Context, id string) error
}

// CollectionService administra colecciones (requiere credenciales de admin).
type CollectionService interface {
	GetOne(ctx context.Context, nameOrID string) (*Collection, error)
	Create(ctx context.Context, c Collection) (*Collection, error)
	Update(ctx context.Context, nameOrID string, c Collection) (*Collection, error)
}

// AdminService autentica la sesión de admin del cliente.
type AdminService interface {
	AuthWithPassword(ctx context.Context, email, password string) error
}

// Client es el contrato que el adapter consume del store de documentos.
type Client interface {
	// Name retorna el nombre del driver ("pocketbase", "postgres", "memory").
	Name() string

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close libera los recursos del cliente.
	Close() error

	// Collection retorna el servicio de registros de la colección indicada.
	Collection(nameOrID string) RecordService

	Collections() CollectionService
	Admins() AdminService
}
