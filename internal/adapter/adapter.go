// Package adapter implementa repository.AuthAdapter sobre un store de
// colecciones de documentos.
//
// Cada instancia inicializa el store una sola vez (login de admin si hay
// credenciales + reconciliación de las cuatro colecciones) antes de la
// primera operación. Todas las operaciones esperan esa inicialización y
// observan el mismo resultado.
//
// Política de errores:
//   - create/update: falla de transporte o payload con código => *repository.OpError (ErrWriteFailed)
//   - lecturas: cualquier falla => miss (nil, nil), logueado y contado
//   - DeleteUser / DeleteSession: best-effort, la falla se traga
//   - UnlinkAccount / UseVerificationToken: la falla del delete => ErrDeleteFailed
package adapter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/pbauth/internal/cache"
	"github.com/dropDatabas3/pbauth/internal/domain/repository"
	"github.com/dropDatabas3/pbauth/internal/metrics"
	"github.com/dropDatabas3/pbauth/internal/observability/logger"
	"github.com/dropDatabas3/pbauth/internal/schema"
	"github.com/dropDatabas3/pbauth/internal/store"
)

// Entidades (label de métricas y texto de OpError).
const (
	entityUser    = "user"
	entityAccount = "account"
	entitySession = "session"
	entityToken   = "verification token"
)

// Options es la configuración reconocida por el adapter.
type Options struct {
	// Collections sobreescribe los nombres por defecto. Vacío = default.
	Collections schema.Names

	// Auth son las credenciales de admin del store. Sólo se usan si
	// ambas están presentes.
	Auth Credentials
}

// Credentials de admin del store.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) complete() bool { return c.Email != "" && c.Password != "" }

// Option configura dependencias opcionales del adapter.
type Option func(*Adapter)

// WithLogger reemplaza el logger (default: logger.Named("pbauth")).
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// WithCache habilita el cache de lectura de usuarios. ttl <= 0 usa el TTL
// por defecto del backend.
func WithCache(c cache.Client, ttl time.Duration) Option {
	return func(a *Adapter) {
		a.cache = c
		a.cacheTTL = ttl
	}
}

// WithMetrics registra cada operación en c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(a *Adapter) { a.metrics = c }
}

// Adapter es seguro para uso concurrente.
type Adapter struct {
	client store.Client
	opts   Options
	names  schema.Names

	log      *zap.Logger
	metrics  *metrics.Collectors
	cache    cache.Client
	cacheTTL time.Duration

	initOnce sync.Once
	done     chan struct{}
	initErr  error
	outcomes []schema.Outcome
}

var _ repository.AuthAdapter = (*Adapter)(nil)

// New crea el adapter. No toca el store: la inicialización ocurre en la
// primera operación (o en Ready).
func New(client store.Client, opts Options, options ...Option) *Adapter {
	a := &Adapter{
		client: client,
		opts:   opts,
		names:  opts.Collections.WithDefaults(),
		log:    logger.Named("pbauth"),
		done:   make(chan struct{}),
	}
	for _, o := range options {
		o(a)
	}
	return a
}

// Ready dispara la inicialización si no ocurrió y espera su resultado.
// Si ctx se cancela antes, retorna ctx.Err() pero la inicialización sigue
// en curso para los demás callers.
func (a *Adapter) Ready(ctx context.Context) error {
	a.initOnce.Do(func() {
		go a.initialize(context.WithoutCancel(ctx))
	})
	select {
	case <-a.done:
		return a.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcomes retorna el resultado de reconciliar cada colección, en el orden
// de schema.Kinds(). Nil hasta que la inicialización termine.
func (a *Adapter) Outcomes() []schema.Outcome {
	select {
	case <-a.done:
	default:
		return nil
	}
	out := make([]schema.Outcome, len(a.outcomes))
	copy(out, a.outcomes)
	return out
}

// Names retorna los nombres de colección efectivos.
func (a *Adapter) Names() schema.Names { return a.names }

func (a *Adapter) initialize(ctx context.Context) {
	defer close(a.done)
	start := time.Now()
	log := a.log.With(logger.Op("init"))

	if a.opts.Auth.complete() {
		if err := a.client.Admins().AuthWithPassword(ctx, a.opts.Auth.Email, a.opts.Auth.Password); err != nil {
			log.Error("admin authentication failed", logger.MaskedEmail(a.opts.Auth.Email), logger.Err(err))
			a.initErr = &repository.OpError{Op: "init", Entity: "admin session", Kind: repository.ErrProvisioning, Err: err}
			return
		}
		log.Debug("admin authenticated", logger.MaskedEmail(a.opts.Auth.Email))
	}

	rec := schema.NewReconciler(a.client.Collections(), a.names,
		schema.WithLogger(a.log.Named("schema")),
		schema.WithMetrics(a.metrics),
	)
	outcomes, err := rec.ReconcileAll(ctx)
	a.outcomes = outcomes
	if err != nil {
		log.Error("collection provisioning failed", logger.Err(err))
		a.initErr = &repository.OpError{Op: "init", Entity: "collection", Kind: repository.ErrProvisioning, Err: err}
		return
	}

	fields := []zap.Field{logger.Duration(time.Since(start))}
	for _, o := range outcomes {
		fields = append(fields, logger.String(o.Name, string(o.Status)))
	}
	log.Info("store initialized", fields...)
}

// records espera la inicialización y retorna el handle de la colección de kind.
func (a *Adapter) records(ctx context.Context, kind schema.Kind) (store.RecordService, error) {
	if err := a.Ready(ctx); err != nil {
		return nil, err
	}
	return a.client.Collection(a.names.For(kind)), nil
}

func (a *Adapter) observe(op, entity, result string, start time.Time) {
	a.metrics.ObserveOperation(op, entity, result, time.Since(start))
}

// readMiss registra una lectura fallida que se reporta como miss.
func (a *Adapter) readMiss(op, entity string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields, logger.Op(op), logger.Entity(entity))
	switch store.Classify(err) {
	case store.Missing:
		a.log.Debug("record not found", fields...)
	default:
		a.log.Warn("read failed, reporting miss", append(fields, logger.Outcome(store.Classify(err).String()), logger.Err(err))...)
	}
	a.observe(op, entity, metrics.ResultMiss, start)
}

// writeFailed registra y construye el error de un create/update fallido.
func (a *Adapter) writeFailed(op, entity string, start time.Time, err error, fields ...zap.Field) error {
	fields = append(fields, logger.Op(op), logger.Entity(entity),
		logger.Outcome(store.Classify(err).String()), logger.Err(err))
	a.log.Error("write failed", fields...)
	a.observe(op, entity, metrics.ResultError, start)
	return repository.WriteError(op, entity, err)
}
