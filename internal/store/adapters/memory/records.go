package memory

import (
	"sort"
	"strings"

	"github.com/dropDatabas3/pbauth/internal/store"
	"github.com/dropDatabas3/pbauth/internal/store/filter"
)

// CreateRecord inserta un registro en la colección. Los campos no declarados
// en el schema se descartan; un "id" explícito se respeta si está libre.
func (s *Store) CreateRecord(coll string, data store.Record) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.lookup(coll)
	if !ok {
		return nil, store.NotFound("Missing collection context.")
	}

	id := strings.TrimSpace(data.String("id"))
	if id == "" {
		id = newID()
	}
	if _, exists := c.records[id]; exists {
		return nil, store.BadRequest("Failed to create record.", store.FieldError("id", "validation_invalid_id", "The model id is invalid or already exists."))
	}

	rec := make(store.Record, len(c.meta.Schema))
	for _, f := range c.meta.Schema {
		rec[f.Name] = store.ZeroValue(f)
	}
	if err := store.ApplyFields(c.meta.Schema, rec, data); err != nil {
		return nil, err
	}
	if err := store.CheckRequired(c.meta.Schema, rec); err != nil {
		return nil, err
	}
	if err := c.checkUnique(id, rec); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c.records[id] = rec
	c.created[id] = now
	c.updated[id] = now
	c.order = append(c.order, id)

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return c.export(id), nil
}

// GetRecord obtiene un registro por ID.
func (s *Store) GetRecord(coll, id string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.lookup(coll)
	if !ok {
		return nil, store.NotFound("Missing collection context.")
	}
	if _, ok := c.records[id]; !ok {
		return nil, store.NotFound("The requested resource wasn't found.")
	}
	return c.export(id), nil
}

// ListRecords retorna los registros que satisfacen expr (todos si expr está
// vacía), paginados. page empieza en 1. Retorna también el total.
func (s *Store) ListRecords(coll string, expr filter.Expr, page, perPage int) ([]store.Record, int, error) {
	if len(expr.Terms()) > 0 {
		if err := expr.Validate(); err != nil {
			return nil, 0, store.BadRequest("Invalid filter parameters.", map[string]any{"filter": err.Error()})
		}
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 30
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.lookup(coll)
	if !ok {
		return nil, 0, store.NotFound("Missing collection context.")
	}

	var matched []string
	for _, id := range c.order {
		if len(expr.Terms()) == 0 || expr.Match(c.export(id)) {
			matched = append(matched, id)
		}
	}

	total := len(matched)
	start := (page - 1) * perPage
	if start >= total {
		return []store.Record{}, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	out := make([]store.Record, 0, end-start)
	for _, id := range matched[start:end] {
		out = append(out, c.export(id))
	}
	return out, total, nil
}

// FirstRecord retorna el primer registro (en orden de inserción) que
// satisface expr, o un Failure 404.
func (s *Store) FirstRecord(coll string, expr filter.Expr) (store.Record, error) {
	if err := expr.Validate(); err != nil {
		return nil, store.BadRequest("Invalid filter parameters.", map[string]any{"filter": err.Error()})
	}
	items, _, err := s.ListRecords(coll, expr, 1, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, store.NotFound("The requested resource wasn't found.")
	}
	return items[0], nil
}

// UpdateRecord aplica patch sobre el registro id.
func (s *Store) UpdateRecord(coll, id string, patch store.Record) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.lookup(coll)
	if !ok {
		return nil, store.NotFound("Missing collection context.")
	}
	cur, ok := c.records[id]
	if !ok {
		return nil, store.NotFound("The requested resource wasn't found.")
	}

	next := cur.Clone()
	if err := store.ApplyFields(c.meta.Schema, next, patch); err != nil {
		return nil, err
	}
	if err := store.CheckRequired(c.meta.Schema, next); err != nil {
		return nil, err
	}
	if err := c.checkUnique(id, next); err != nil {
		return nil, err
	}
	c.records[id] = next
	c.updated[id] = s.now().UTC()

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return c.export(id), nil
}

// DeleteRecord elimina el registro id y, en cascada, los registros que lo
// referencian desde campos relation con cascadeDelete.
func (s *Store) DeleteRecord(coll, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.lookup(coll)
	if !ok {
		return store.NotFound("Missing collection context.")
	}
	if _, ok := c.records[id]; !ok {
		return store.NotFound("The requested resource wasn't found.")
	}
	s.deleteCascade(c, id)
	return s.persistLocked()
}

func (s *Store) deleteCascade(c *collection, id string) {
	if _, ok := c.records[id]; !ok {
		return
	}
	c.remove(id)

	for _, other := range s.byID {
		for _, f := range other.meta.Schema {
			if !f.IsRelation() || !f.Options.CascadeDelete {
				continue
			}
			if f.Options.CollectionID != c.meta.ID && f.Options.CollectionID != c.meta.Name {
				continue
			}
			var refs []string
			for _, rid := range other.order {
				if ref, _ := other.records[rid][f.Name].(string); ref == id {
					refs = append(refs, rid)
				}
			}
			for _, rid := range refs {
				s.deleteCascade(other, rid)
			}
		}
	}
}

// checkUnique falla con un 400 si rec repite la clave de algún índice único
// con otro registro distinto de id.
func (c *collection) checkUnique(id string, rec store.Record) error {
	for _, fields := range store.UniqueKeys(c.meta.Indexes) {
		v, ok := store.UniqueValue(rec, fields)
		if !ok {
			continue
		}
		for oid, other := range c.records {
			if oid == id {
				continue
			}
			if ov, ok := store.UniqueValue(other, fields); ok && ov == v {
				return store.NotUnique(fields)
			}
		}
	}
	return nil
}

func (c *collection) remove(id string) {
	delete(c.records, id)
	delete(c.created, id)
	delete(c.updated, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// export arma el registro público: campos + metadata del store.
func (c *collection) export(id string) store.Record {
	rec := c.records[id]
	out := make(store.Record, len(rec)+5)
	for k, v := range rec {
		out[k] = v
	}
	out["id"] = id
	out["collectionId"] = c.meta.ID
	out["collectionName"] = c.meta.Name
	out["created"] = store.FormatTime(c.created[id])
	out["updated"] = store.FormatTime(c.updated[id])
	return out
}

func sortCollections(cs []store.Collection) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
}
