// Package memory implementa un store de documentos en memoria con la misma
// semántica que PocketBase: colecciones con schema tipado, validación de
// campos requeridos, descarte de campos no declarados, relaciones con
// cascade delete y sesión de admin.
//
// Sirve como backend de desarrollo/testing y como motor del emulador HTTP
// (ver internal/store/emulator). Opcionalmente persiste un snapshot JSON.
package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/pbauth/internal/store"
)

// collection es el estado interno de una colección.
type collection struct {
	meta    store.Collection
	records map[string]store.Record // id -> valores de campos (sin metadata)
	created map[string]time.Time
	updated map[string]time.Time
	order   []string // orden de inserción
}

// Store es un store de documentos en memoria. Seguro para uso concurrente.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]*collection
	byName   map[string]string // nombre -> id
	admins   map[string][]byte // email -> hash bcrypt
	snapshot string
	now      func() time.Time
}

// Option configura un Store.
type Option func(*Store)

// WithSnapshot persiste el store en path (JSON) después de cada mutación y
// lo carga al crear el Store si el archivo existe.
func WithSnapshot(path string) Option {
	return func(s *Store) { s.snapshot = path }
}

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithAdmin registra un admin al crear el Store.
func WithAdmin(email, password string) Option {
	return func(s *Store) {
		// el error sólo ocurre con passwords > 72 bytes
		_ = s.AddAdmin(email, password)
	}
}

// New crea un Store vacío (o cargado desde el snapshot).
func New(opts ...Option) (*Store, error) {
	s := &Store{
		byID:   make(map[string]*collection),
		byName: make(map[string]string),
		admins: make(map[string][]byte),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.snapshot != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// newID genera un identificador de 15 caracteres, como los del store real.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
}

// ─── Admins ───

// AddAdmin registra (o reemplaza) un admin.
func (s *Store) AddAdmin(email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return store.BadRequest("email and password are required", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("memory: hash admin password: %w", err)
	}
	s.mu.Lock()
	s.admins[email] = hash
	s.mu.Unlock()
	return nil
}

// HasAdmins reporta si hay admins registrados.
func (s *Store) HasAdmins() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.admins) > 0
}

// VerifyAdmin verifica credenciales de admin. Retorna un Failure 400
// ("Failed to authenticate.") si no coinciden, como el store real.
func (s *Store) VerifyAdmin(email, password string) error {
	s.mu.RLock()
	hash, ok := s.admins[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return store.BadRequest("Failed to authenticate.", nil)
	}
	return nil
}

// ─── Collections ───

func (s *Store) lookup(nameOrID string) (*collection, bool) {
	if c, ok := s.byID[nameOrID]; ok {
		return c, true
	}
	if id, ok := s.byName[nameOrID]; ok {
		return s.byID[id], true
	}
	return nil, false
}

// GetCollection obtiene una colección por nombre o ID.
func (s *Store) GetCollection(nameOrID string) (*store.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.lookup(nameOrID)
	if !ok {
		return nil, store.NotFound("The requested resource wasn't found.")
	}
	return c.meta.Clone(), nil
}

// ListCollections retorna todas las colecciones, ordenadas por nombre.
func (s *Store) ListCollections() []store.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Collection, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, *c.meta.Clone())
	}
	sortCollections(out)
	return out
}

// CreateCollection crea una colección. Los campos relation deben apuntar al
// ID de una colección existente.
func (s *Store) CreateCollection(in store.Collection) (*store.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, store.BadRequest("Failed to create collection.", store.FieldError("name", "validation_required", "Missing required value."))
	}
	if _, exists := s.lookup(name); exists {
		return nil, store.BadRequest("Failed to create collection.", store.FieldError("name", "validation_collection_name_exists", "Collection name must be unique (case insensitive)."))
	}

	schema, err := s.checkSchema(in.Schema, nil)
	if err != nil {
		return nil, err
	}
	if err := store.CheckIndexes(schema, in.Indexes); err != nil {
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = newID()
	}
	if _, exists := s.byID[id]; exists {
		return nil, store.BadRequest("Failed to create collection.", store.FieldError("id", "validation_invalid_id", "The model id is invalid or already exists."))
	}

	now := s.now().UTC()
	typ := in.Type
	if typ == "" {
		typ = "base"
	}
	c := &collection{
		meta: store.Collection{
			ID:      id,
			Name:    name,
			Type:    typ,
			Schema:  schema,
			Indexes: append([]string(nil), in.Indexes...),
			Created: store.FormatTime(now),
			Updated: store.FormatTime(now),
		},
		records: make(map[string]store.Record),
		created: make(map[string]time.Time),
		updated: make(map[string]time.Time),
	}
	s.byID[id] = c
	s.byName[name] = id

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return c.meta.Clone(), nil
}

// UpdateCollection reemplaza nombre y schema de una colección.
//
// Los campos se identifican por ID: un campo con el ID de uno existente
// conserva sus datos (renombrando la clave si cambió el nombre); un campo sin
// ID es nuevo; los campos existentes que no aparecen se eliminan junto con
// sus datos. Indexes nil conserva los índices actuales.
func (s *Store) UpdateCollection(nameOrID string, in store.Collection) (*store.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.lookup(nameOrID)
	if !ok {
		return nil, store.NotFound("The requested resource wasn't found.")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = c.meta.Name
	}
	if other, exists := s.lookup(name); exists && other != c {
		return nil, store.BadRequest("Failed to update collection.", store.FieldError("name", "validation_collection_name_exists", "Collection name must be unique (case insensitive)."))
	}

	schema, err := s.checkSchema(in.Schema, c)
	if err != nil {
		return nil, err
	}
	indexes := c.meta.Indexes
	if in.Indexes != nil {
		indexes = append([]string(nil), in.Indexes...)
	}
	if err := store.CheckIndexes(schema, indexes); err != nil {
		return nil, err
	}

	reshaped := make(map[string]store.Record, len(c.records))
	recs := make([]store.Record, 0, len(c.records))
	for _, id := range c.order {
		rec := store.Reshape(c.meta.Schema, schema, c.records[id])
		reshaped[id] = rec
		recs = append(recs, rec)
	}
	if fields, dup := store.FindDuplicate(store.UniqueKeys(indexes), recs); dup {
		return nil, store.BadRequest("Failed to update collection.",
			store.FieldError("indexes", "validation_invalid_index_expression",
				fmt.Sprintf("Existing records violate the unique index on %v.", fields)))
	}
	c.records = reshaped
	c.meta.Indexes = indexes

	if name != c.meta.Name {
		delete(s.byName, c.meta.Name)
		s.byName[name] = c.meta.ID
		c.meta.Name = name
	}
	c.meta.Schema = schema
	c.meta.Updated = store.FormatTime(s.now().UTC())

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return c.meta.Clone(), nil
}

// checkSchema valida y completa (IDs) un schema. self es la colección que se
// está actualizando, o nil si se está creando.
func (s *Store) checkSchema(in []store.Field, self *collection) ([]store.Field, error) {
	return store.CheckSchema(in, func(id string) bool {
		_, exists := s.byID[id]
		return exists || (self != nil && id == self.meta.ID)
	})
}

// IsReservedField reporta si name colisiona con la metadata del store.
func IsReservedField(name string) bool {
	return store.IsMetadataKey(name)
}
