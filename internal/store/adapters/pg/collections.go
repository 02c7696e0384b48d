package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/pbauth/internal/store"
)

// querier es lo común a *pgxpool.Pool y pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const collectionColumns = `id, name, type, schema, indexes, created, updated`

func scanCollection(row pgx.Row) (*store.Collection, error) {
	var (
		col              store.Collection
		raw, idx         []byte
		created, updated time.Time
	)
	if err := row.Scan(&col.ID, &col.Name, &col.Type, &raw, &idx, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &col.Schema); err != nil {
		return nil, fmt.Errorf("pg: decode schema of %s: %w", col.Name, err)
	}
	if err := json.Unmarshal(idx, &col.Indexes); err != nil {
		return nil, fmt.Errorf("pg: decode indexes of %s: %w", col.Name, err)
	}
	col.Created = store.FormatTime(created)
	col.Updated = store.FormatTime(updated)
	return &col, nil
}

// loadCollection busca una colección por ID o nombre. Con lock=true toma un
// lock de fila (sólo dentro de una transacción).
func loadCollection(ctx context.Context, q querier, nameOrID string, lock bool) (*store.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM _collections WHERE id = $1 OR name = $1 LIMIT 1`
	if lock {
		query += ` FOR UPDATE`
	}
	col, err := scanCollection(q.QueryRow(ctx, query, nameOrID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound("Missing collection context.")
	}
	return col, err
}

func listCollections(ctx context.Context, q querier) ([]*store.Collection, error) {
	rows, err := q.Query(ctx, `SELECT `+collectionColumns+` FROM _collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.Collection
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, rows.Err()
}

// checkSchema valida in contra las colecciones existentes. selfID es la
// colección que se actualiza ("" al crear).
func checkSchema(ctx context.Context, q querier, in []store.Field, selfID string) ([]store.Field, error) {
	ids := map[string]bool{}
	rows, err := q.Query(ctx, `SELECT id FROM _collections`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.CheckSchema(in, func(id string) bool {
		return ids[id] || (selfID != "" && id == selfID)
	})
}

// ─── CollectionService ───

type collectionService struct{ c *Client }

func (s *collectionService) GetOne(ctx context.Context, nameOrID string) (*store.Collection, error) {
	col, err := loadCollection(ctx, s.c.pool, nameOrID, false)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.NotFound("The requested resource wasn't found.")
	}
	return col, err
}

func (s *collectionService) Create(ctx context.Context, in store.Collection) (*store.Collection, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, store.BadRequest("Failed to create collection.", store.FieldError("name", "validation_required", "Missing required value."))
	}

	tx, err := s.c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	schema, err := checkSchema(ctx, tx, in.Schema, "")
	if err != nil {
		return nil, err
	}
	if err := store.CheckIndexes(schema, in.Indexes); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	indexes := append([]string{}, in.Indexes...)
	idx, err := json.Marshal(indexes)
	if err != nil {
		return nil, err
	}

	col := store.Collection{ID: in.ID, Name: name, Type: in.Type, Schema: schema, Indexes: indexes}
	if col.ID == "" {
		col.ID = newID()
	}
	if col.Type == "" {
		col.Type = "base"
	}
	now := s.c.now().UTC()

	const query = `
		INSERT INTO _collections (id, name, type, schema, indexes, created, updated)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $6)
	`
	if _, err := tx.Exec(ctx, query, col.ID, col.Name, col.Type, raw, idx, now); err != nil {
		if isUniqueViolation(err) {
			return nil, store.BadRequest("Failed to create collection.", store.FieldError("name", "validation_collection_name_exists", "Collection name must be unique (case insensitive)."))
		}
		return nil, fmt.Errorf("pg: insert collection: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	col.Created = store.FormatTime(now)
	col.Updated = col.Created
	return &col, nil
}

// Update reemplaza nombre, schema e índices (Indexes nil conserva los
// actuales). Los registros existentes se adaptan al schema nuevo (ver
// store.Reshape) dentro de la misma transacción.
func (s *collectionService) Update(ctx context.Context, nameOrID string, in store.Collection) (*store.Collection, error) {
	tx, err := s.c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	cur, err := loadCollection(ctx, tx, nameOrID, true)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.NotFound("The requested resource wasn't found.")
		}
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = cur.Name
	}
	schema, err := checkSchema(ctx, tx, in.Schema, cur.ID)
	if err != nil {
		return nil, err
	}
	indexes := append([]string{}, cur.Indexes...)
	if in.Indexes != nil {
		indexes = append([]string{}, in.Indexes...)
	}
	if err := store.CheckIndexes(schema, indexes); err != nil {
		return nil, err
	}
	if err := lockCollection(ctx, tx, cur.ID); err != nil {
		return nil, err
	}

	// adaptar registros
	type row struct {
		id   string
		data store.Record
	}
	rows, err := tx.Query(ctx, `SELECT id, data FROM _records WHERE collection_id = $1 FOR UPDATE`, cur.ID)
	if err != nil {
		return nil, err
	}
	var pending []row
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return nil, err
		}
		var data store.Record
		if err := json.Unmarshal(raw, &data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("pg: decode record %s: %w", id, err)
		}
		pending = append(pending, row{id: id, data: store.Reshape(cur.Schema, schema, data)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	recs := make([]store.Record, len(pending))
	for i, r := range pending {
		recs[i] = r.data
	}
	if fields, dup := store.FindDuplicate(store.UniqueKeys(indexes), recs); dup {
		return nil, store.BadRequest("Failed to update collection.",
			store.FieldError("indexes", "validation_invalid_index_expression",
				fmt.Sprintf("Existing records violate the unique index on %v.", fields)))
	}
	for _, r := range pending {
		raw, err := json.Marshal(r.data)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `UPDATE _records SET data = $3::jsonb WHERE collection_id = $1 AND id = $2`, cur.ID, r.id, raw); err != nil {
			return nil, fmt.Errorf("pg: reshape record %s: %w", r.id, err)
		}
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	idx, err := json.Marshal(indexes)
	if err != nil {
		return nil, err
	}
	now := s.c.now().UTC()
	const query = `UPDATE _collections SET name = $2, schema = $3::jsonb, indexes = $4::jsonb, updated = $5 WHERE id = $1`
	if _, err := tx.Exec(ctx, query, cur.ID, name, raw, idx, now); err != nil {
		if isUniqueViolation(err) {
			return nil, store.BadRequest("Failed to update collection.", store.FieldError("name", "validation_collection_name_exists", "Collection name must be unique (case insensitive)."))
		}
		return nil, fmt.Errorf("pg: update collection: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	cur.Name = name
	cur.Schema = schema
	cur.Indexes = indexes
	cur.Updated = store.FormatTime(now)
	return cur, nil
}
