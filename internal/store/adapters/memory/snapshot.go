package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dropDatabas3/pbauth/internal/store"
	"github.com/dropDatabas3/pbauth/internal/util/atomicwrite"
)

// snapshotFile es el formato en disco del store.
type snapshotFile struct {
	Version     int                  `json:"version"`
	Collections []snapshotCollection `json:"collections"`
	Admins      map[string]string    `json:"admins,omitempty"` // email -> hash bcrypt
}

type snapshotCollection struct {
	store.Collection
	Records []snapshotRecord `json:"records"`
}

type snapshotRecord struct {
	ID      string       `json:"id"`
	Created string       `json:"created"`
	Updated string       `json:"updated"`
	Data    store.Record `json:"data"`
}

// Save escribe el snapshot. No hace nada si el Store no tiene path.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked()
}

// persistLocked escribe el snapshot; el caller debe tener s.mu.
func (s *Store) persistLocked() error {
	if s.snapshot == "" {
		return nil
	}
	file := snapshotFile{Version: 1, Admins: make(map[string]string, len(s.admins))}
	for email, hash := range s.admins {
		file.Admins[email] = string(hash)
	}
	for _, c := range s.byID {
		sc := snapshotCollection{Collection: *c.meta.Clone(), Records: make([]snapshotRecord, 0, len(c.order))}
		for _, id := range c.order {
			sc.Records = append(sc.Records, snapshotRecord{
				ID:      id,
				Created: store.FormatTime(c.created[id]),
				Updated: store.FormatTime(c.updated[id]),
				Data:    c.records[id],
			})
		}
		file.Collections = append(file.Collections, sc)
	}

	if err := atomicwrite.WriteJSON(s.snapshot, file, 0o600); err != nil {
		return fmt.Errorf("memory: write snapshot: %w", err)
	}
	return nil
}

// load lee el snapshot si existe.
func (s *Store) load() error {
	data, err := os.ReadFile(s.snapshot)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("memory: read snapshot: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("memory: parse snapshot %s: %w", s.snapshot, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for email, hash := range file.Admins {
		s.admins[email] = []byte(hash)
	}
	for _, sc := range file.Collections {
		c := &collection{
			meta:    *sc.Collection.Clone(),
			records: make(map[string]store.Record, len(sc.Records)),
			created: make(map[string]time.Time, len(sc.Records)),
			updated: make(map[string]time.Time, len(sc.Records)),
		}
		for _, r := range sc.Records {
			rec := make(store.Record, len(c.meta.Schema))
			for _, f := range c.meta.Schema {
				v, err := store.Coerce(f, r.Data[f.Name])
				if err != nil {
					v = store.ZeroValue(f)
				}
				rec[f.Name] = v
			}
			c.records[r.ID] = rec
			c.created[r.ID], _ = store.ParseTime(r.Created)
			c.updated[r.ID], _ = store.ParseTime(r.Updated)
			c.order = append(c.order, r.ID)
		}
		s.byID[c.meta.ID] = c
		s.byName[c.meta.Name] = c.meta.ID
	}
	return nil
}
