package schema

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/pbauth/internal/metrics"
	"github.com/dropDatabas3/pbauth/internal/observability/logger"
	"github.com/dropDatabas3/pbauth/internal/store"
)

// Status es el resultado de reconciliar una colección.
type Status string

const (
	StatusCreated      Status = "created"
	StatusUnchanged    Status = "unchanged"
	StatusPatched      Status = "patched"
	StatusPatchFailed  Status = "patch_failed"  // drift detectado, el update falló (no fatal)
	StatusCreateFailed Status = "create_failed" // fatal para la inicialización
)

// Outcome describe la reconciliación de una colección.
type Outcome struct {
	Kind Kind
	Name string

	// Collection es la colección leída al inicio (puede estar desactualizada
	// si hubo patch) o la recién creada.
	Collection *store.Collection

	Status Status

	// Err es la causa de StatusPatchFailed / StatusCreateFailed.
	Err error
}

// Reconciler asegura que el store tenga las colecciones esperadas.
// Es seguro para uso concurrente con nombres de colección distintos.
type Reconciler struct {
	cols    store.CollectionService
	names   Names
	log     *zap.Logger
	metrics *metrics.Collectors

	sf  singleflight.Group
	ids *gocache.Cache // nombre de colección -> ID
}

// Option configura un Reconciler.
type Option func(*Reconciler)

// WithLogger reemplaza el logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics registra cada reconciliación en c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(r *Reconciler) { r.metrics = c }
}

// WithIDCacheTTL cambia cuánto se memoriza el ID resuelto de una colección.
func WithIDCacheTTL(ttl time.Duration) Option {
	return func(r *Reconciler) { r.ids = gocache.New(ttl, 2*ttl) }
}

// NewReconciler crea un reconciliador sobre cols usando names para mapear
// tipos de entidad a colecciones.
func NewReconciler(cols store.CollectionService, names Names, opts ...Option) *Reconciler {
	r := &Reconciler{
		cols:  cols,
		names: names.WithDefaults(),
		log:   logger.Named("schema"),
		ids:   gocache.New(5*time.Minute, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureCollection crea la colección name con los campos de d si no existe,
// o la corrige si su schema se desvió del descriptor o le faltan sus
// índices únicos.
//
// Un error de lectura inicial se trata como colección ausente. El patch es
// best-effort: si falla, el error queda en Outcome.Err con StatusPatchFailed
// y EnsureCollection no retorna error. Sólo la creación fallida es fatal.
func (r *Reconciler) EnsureCollection(ctx context.Context, name string, d Descriptor) (Outcome, error) {
	out := Outcome{Kind: d.Kind, Name: name}
	log := r.log.With(logger.Collection(name))

	live, err := r.cols.GetOne(ctx, name)
	if err != nil {
		if store.Classify(err) != store.Missing {
			log.Warn("collection lookup failed, treating as absent", logger.Err(err))
		}
		live = nil
	}

	if live == nil {
		fields := r.resolve(ctx, d.Fields)
		created, err := r.cols.Create(ctx, store.Collection{Name: name, Type: "base", Schema: fields, Indexes: d.Indexes(name)})
		if err != nil {
			out.Status = StatusCreateFailed
			out.Err = err
			r.observe(out)
			log.Error("collection create failed", logger.Err(err))
			return out, fmt.Errorf("schema: create collection %q: %w", name, err)
		}
		r.ids.Set(name, created.ID, gocache.DefaultExpiration)
		out.Collection = created
		out.Status = StatusCreated
		r.observe(out)
		log.Info("collection created", logger.RecordID(created.ID), logger.Count(len(fields)))
		return out, nil
	}

	r.ids.Set(name, live.ID, gocache.DefaultExpiration)
	out.Collection = live

	missing := MissingIndexes(live.Indexes, d.Unique)
	if !Drifted(live.Schema, d.Fields) && len(missing) == 0 {
		out.Status = StatusUnchanged
		r.observe(out)
		log.Debug("collection up to date")
		return out, nil
	}

	patch := store.Collection{
		ID:     live.ID,
		Name:   live.Name,
		Type:   live.Type,
		Schema: Merge(live.Schema, r.resolve(ctx, d.Fields)),
	}
	patch.Indexes = append(append([]string(nil), live.Indexes...), Descriptor{Unique: missing}.Indexes(live.Name)...)
	if _, err := r.cols.Update(ctx, name, patch); err != nil {
		out.Status = StatusPatchFailed
		out.Err = err
		r.observe(out)
		log.Warn("collection patch failed, continuing with live schema", logger.Err(err))
		return out, nil
	}
	out.Status = StatusPatched
	r.observe(out)
	log.Info("collection schema patched", logger.Count(len(patch.Schema)))
	return out, nil
}

// ReconcileAll reconcilia las cuatro colecciones: Users primero y las otras
// tres en paralelo. Retorna los Outcomes en el orden de Kinds().
func (r *Reconciler) ReconcileAll(ctx context.Context) ([]Outcome, error) {
	kinds := Kinds()
	outcomes := make([]Outcome, len(kinds))

	d, _ := For(Users)
	first, err := r.EnsureCollection(ctx, r.names.For(Users), d)
	outcomes[0] = first
	if err != nil {
		return outcomes, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds[1:] {
		i, kind := i+1, kind
		g.Go(func() error {
			d, _ := For(kind)
			o, err := r.EnsureCollection(gctx, r.names.For(kind), d)
			outcomes[i] = o
			return err
		})
	}
	return outcomes, g.Wait()
}

// Drifted compara live contra want posición por posición en el orden del
// descriptor por (name, type, required). Un schema vivo más corto es drift.
// Campos extra al final de live no cuentan.
func Drifted(live, want []store.Field) bool {
	if len(live) < len(want) {
		return true
	}
	for i, w := range want {
		l := live[i]
		if l.Name != w.Name || l.Type != w.Type || l.Required != w.Required {
			return true
		}
	}
	return false
}

// MissingIndexes retorna las claves únicas de want que ningún índice único
// de live cubre (mismas columnas, mismo orden).
func MissingIndexes(live []string, want [][]string) [][]string {
	have := map[string]bool{}
	for _, key := range store.UniqueKeys(live) {
		have[strings.Join(key, ",")] = true
	}
	var out [][]string
	for _, key := range want {
		if !have[strings.Join(key, ",")] {
			out = append(out, key)
		}
	}
	return out
}

// Merge arma el schema de patch: los campos de want en orden (conservando el
// ID del campo vivo del mismo nombre, para no perder datos) seguidos de los
// campos vivos que want no declara.
func Merge(live, want []store.Field) []store.Field {
	liveByName := make(map[string]store.Field, len(live))
	for _, f := range live {
		liveByName[f.Name] = f
	}
	wanted := make(map[string]bool, len(want))

	out := make([]store.Field, 0, len(want)+len(live))
	for _, w := range want {
		f := w.Clone()
		if l, ok := liveByName[w.Name]; ok {
			f.ID = l.ID
		}
		wanted[w.Name] = true
		out = append(out, f)
	}
	for _, l := range live {
		if !wanted[l.Name] {
			out = append(out, l.Clone())
		}
	}
	return out
}

// resolve retorna una copia de fields con cada relación apuntando al ID
// real de la colección destino. Si la resolución falla queda el nombre.
func (r *Reconciler) resolve(ctx context.Context, fields []store.Field) []store.Field {
	out := make([]store.Field, len(fields))
	for i, f := range fields {
		f = f.Clone()
		if f.IsRelation() {
			target := r.names.For(Kind(f.Options.CollectionID))
			f.Options.CollectionID = target
			if id, err := r.collectionID(ctx, target); err == nil {
				f.Options.CollectionID = id
			} else {
				r.log.Debug("relation target unresolved, keeping name",
					logger.Collection(target), logger.String("field", f.Name), logger.Err(err))
			}
		}
		out[i] = f
	}
	return out
}

// collectionID resuelve el ID de una colección, deduplicando lookups
// concurrentes y memorizando el resultado.
func (r *Reconciler) collectionID(ctx context.Context, name string) (string, error) {
	if v, ok := r.ids.Get(name); ok {
		return v.(string), nil
	}
	v, err, _ := r.sf.Do(name, func() (any, error) {
		c, err := r.cols.GetOne(ctx, name)
		if err != nil {
			return "", err
		}
		r.ids.Set(name, c.ID, gocache.DefaultExpiration)
		return c.ID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Reconciler) observe(o Outcome) {
	r.metrics.ObserveReconcile(o.Name, string(o.Status))
}
