package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/pbauth/internal/store"
	"github.com/dropDatabas3/pbauth/internal/store/filter"
)

// ─── RecordService ───

type recordService struct {
	c    *Client
	coll string
}

// export arma el registro público: campos + metadata del store.
func export(col *store.Collection, id string, raw []byte, created, updated time.Time) (store.Record, error) {
	rec := store.Record{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("pg: decode record %s: %w", id, err)
	}
	rec["id"] = id
	rec["collectionId"] = col.ID
	rec["collectionName"] = col.Name
	rec["created"] = store.FormatTime(created)
	rec["updated"] = store.FormatTime(updated)
	return rec, nil
}

func (r *recordService) Create(ctx context.Context, data store.Record) (store.Record, error) {
	tx, err := r.c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	col, err := loadCollection(ctx, tx, r.coll, false)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(data.String("id"))
	if id == "" {
		id = newID()
	}
	rec := make(store.Record, len(col.Schema))
	for _, f := range col.Schema {
		rec[f.Name] = store.ZeroValue(f)
	}
	if err := store.ApplyFields(col.Schema, rec, data); err != nil {
		return nil, err
	}
	if err := store.CheckRequired(col.Schema, rec); err != nil {
		return nil, err
	}
	if err := checkUnique(ctx, tx, col, id, rec); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	now := r.c.now().UTC()
	const query = `
		INSERT INTO _records (collection_id, id, data, created, updated)
		VALUES ($1, $2, $3::jsonb, $4, $4)
	`
	if _, err := tx.Exec(ctx, query, col.ID, id, raw, now); err != nil {
		if isUniqueViolation(err) {
			return nil, store.BadRequest("Failed to create record.", store.FieldError("id", "validation_invalid_id", "The model id is invalid or already exists."))
		}
		return nil, fmt.Errorf("pg: insert record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return export(col, id, raw, now, now)
}

func (r *recordService) GetOne(ctx context.Context, id string) (store.Record, error) {
	col, err := loadCollection(ctx, r.c.pool, r.coll, false)
	if err != nil {
		return nil, err
	}
	var (
		raw              []byte
		created, updated time.Time
	)
	const query = `SELECT data, created, updated FROM _records WHERE collection_id = $1 AND id = $2`
	err = r.c.pool.QueryRow(ctx, query, col.ID, id).Scan(&raw, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound("The requested resource wasn't found.")
	}
	if err != nil {
		return nil, err
	}
	return export(col, id, raw, created, updated)
}

// where traduce expr a condiciones SQL sobre data. Campo y valor van siempre
// como parámetros; args trae los ya usados por la consulta.
func where(expr filter.Expr, args []any) (string, []any, error) {
	if err := expr.Validate(); err != nil {
		return "", nil, err
	}
	var b strings.Builder
	for _, t := range expr.Terms() {
		if t.Field == "id" {
			args = append(args, fmt.Sprint(t.Value))
			fmt.Fprintf(&b, " AND id = $%d", len(args))
			continue
		}
		v, err := json.Marshal(t.Value)
		if err != nil {
			return "", nil, err
		}
		args = append(args, t.Field, v)
		fmt.Fprintf(&b, " AND data -> $%d::text = $%d::jsonb", len(args)-1, len(args))
	}
	return b.String(), args, nil
}

// GetFirstListItem retorna el registro más antiguo que satisface expr.
func (r *recordService) GetFirstListItem(ctx context.Context, expr filter.Expr) (store.Record, error) {
	if err := expr.Validate(); err != nil {
		return nil, store.BadRequest("Invalid filter parameters.", map[string]any{"filter": err.Error()})
	}
	col, err := loadCollection(ctx, r.c.pool, r.coll, false)
	if err != nil {
		return nil, err
	}
	cond, args, err := where(expr, []any{col.ID})
	if err != nil {
		return nil, store.BadRequest("Invalid filter parameters.", map[string]any{"filter": err.Error()})
	}

	var (
		id               string
		raw              []byte
		created, updated time.Time
	)
	query := `SELECT id, data, created, updated FROM _records WHERE collection_id = $1` + cond +
		` ORDER BY created, id LIMIT 1`
	err = r.c.pool.QueryRow(ctx, query, args...).Scan(&id, &raw, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound("The requested resource wasn't found.")
	}
	if err != nil {
		return nil, err
	}
	return export(col, id, raw, created, updated)
}

func (r *recordService) Update(ctx context.Context, id string, patch store.Record) (store.Record, error) {
	tx, err := r.c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	col, err := loadCollection(ctx, tx, r.coll, false)
	if err != nil {
		return nil, err
	}
	if len(store.UniqueKeys(col.Indexes)) > 0 {
		if err := lockCollection(ctx, tx, col.ID); err != nil {
			return nil, err
		}
	}

	var (
		raw     []byte
		created time.Time
	)
	const sel = `SELECT data, created FROM _records WHERE collection_id = $1 AND id = $2 FOR UPDATE`
	err = tx.QueryRow(ctx, sel, col.ID, id).Scan(&raw, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound("The requested resource wasn't found.")
	}
	if err != nil {
		return nil, err
	}

	rec := store.Record{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("pg: decode record %s: %w", id, err)
	}
	if err := store.ApplyFields(col.Schema, rec, patch); err != nil {
		return nil, err
	}
	if err := store.CheckRequired(col.Schema, rec); err != nil {
		return nil, err
	}
	if err := checkUnique(ctx, tx, col, id, rec); err != nil {
		return nil, err
	}
	if raw, err = json.Marshal(rec); err != nil {
		return nil, err
	}

	now := r.c.now().UTC()
	const upd = `UPDATE _records SET data = $3::jsonb, updated = $4 WHERE collection_id = $1 AND id = $2`
	if _, err := tx.Exec(ctx, upd, col.ID, id, raw, now); err != nil {
		return nil, fmt.Errorf("pg: update record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return export(col, id, raw, created, now)
}

// lockCollection serializa las escrituras sobre la colección hasta el fin de
// la transacción.
func lockCollection(ctx context.Context, tx pgx.Tx, collectionID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, collectionID); err != nil {
		return fmt.Errorf("pg: lock collection %s: %w", collectionID, err)
	}
	return nil
}

// checkUnique falla con un 400 si rec repite la clave de algún índice único
// de col con un registro distinto de id. Toma el lock de la colección.
func checkUnique(ctx context.Context, tx pgx.Tx, col *store.Collection, id string, rec store.Record) error {
	keys := store.UniqueKeys(col.Indexes)
	if len(keys) == 0 {
		return nil
	}
	if err := lockCollection(ctx, tx, col.ID); err != nil {
		return err
	}
	for _, fields := range keys {
		if _, ok := store.UniqueValue(rec, fields); !ok {
			continue
		}
		var expr filter.Expr
		for _, f := range fields {
			expr = expr.And(f, rec[f])
		}
		cond, args, err := where(expr, []any{col.ID, id})
		if err != nil {
			return store.BadRequest("Failed to create record.", map[string]any{"indexes": err.Error()})
		}
		var exists bool
		query := `SELECT EXISTS (SELECT 1 FROM _records WHERE collection_id = $1 AND id <> $2` + cond + `)`
		if err := tx.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
			return fmt.Errorf("pg: check unique %v: %w", fields, err)
		}
		if exists {
			return store.NotUnique(fields)
		}
	}
	return nil
}

// Delete elimina el registro y, en cascada, los que lo referencian desde
// campos relation con cascadeDelete.
func (r *recordService) Delete(ctx context.Context, id string) error {
	tx, err := r.c.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	col, err := loadCollection(ctx, tx, r.coll, false)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM _records WHERE collection_id = $1 AND id = $2`, col.ID, id)
	if err != nil {
		return fmt.Errorf("pg: delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.NotFound("The requested resource wasn't found.")
	}

	all, err := listCollections(ctx, tx)
	if err != nil {
		return err
	}
	if err := cascade(ctx, tx, all, col, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func cascade(ctx context.Context, tx pgx.Tx, all []*store.Collection, col *store.Collection, id string) error {
	for _, other := range all {
		for _, f := range other.Schema {
			if !f.IsRelation() || !f.Options.CascadeDelete {
				continue
			}
			if f.Options.CollectionID != col.ID && f.Options.CollectionID != col.Name {
				continue
			}
			const query = `
				DELETE FROM _records
				WHERE collection_id = $1 AND data ->> $2::text = $3
				RETURNING id
			`
			rows, err := tx.Query(ctx, query, other.ID, f.Name, id)
			if err != nil {
				return fmt.Errorf("pg: cascade %s.%s: %w", other.Name, f.Name, err)
			}
			var refs []string
			for rows.Next() {
				var rid string
				if err := rows.Scan(&rid); err != nil {
					rows.Close()
					return err
				}
				refs = append(refs, rid)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}
			for _, rid := range refs {
				if err := cascade(ctx, tx, all, other, rid); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
