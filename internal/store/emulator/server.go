// Package emulator expone un store en memoria con la API REST de PocketBase
// (el subconjunto que usa el adapter): health, login de admin, colecciones y
// registros. Sirve para desarrollo local y para testear el cliente HTTP.
package emulator

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dropDatabas3/pbauth/internal/metrics"
	"github.com/dropDatabas3/pbauth/internal/observability/logger"
	"github.com/dropDatabas3/pbauth/internal/store/adapters/memory"
)

// Server es el emulador HTTP.
type Server struct {
	store    *memory.Store
	issuer   *issuer
	log      *zap.Logger
	metrics  *metrics.Collectors
	maxBody  int64
	tokenTTL time.Duration
}

// Option configura un Server.
type Option func(*Server)

// WithLogger reemplaza el logger (default: logger.Named("emulator")).
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics instrumenta los requests.
func WithMetrics(c *metrics.Collectors) Option {
	return func(s *Server) { s.metrics = c }
}

// WithTokenTTL fija la vida de los tokens de admin (default 1h).
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.tokenTTL = d
		}
	}
}

// New crea el emulador sobre st. secret firma los tokens de admin (HS256).
func New(st *memory.Store, secret []byte, opts ...Option) (*Server, error) {
	if len(secret) == 0 {
		return nil, errors.New("emulator: jwt secret required")
	}
	s := &Server{
		store:    st,
		log:      logger.Named("emulator"),
		maxBody:  1 << 20,
		tokenTTL: time.Hour,
	}
	for _, o := range opts {
		o(s)
	}
	s.issuer = &issuer{secret: secret, ttl: s.tokenTTL}
	return s, nil
}

// Handler retorna el router HTTP.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.health)
	r.Post("/api/admins/auth-with-password", s.authWithPassword)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)

		r.Get("/api/collections", s.listCollections)
		r.Post("/api/collections", s.createCollection)
		r.Get("/api/collections/{collection}", s.getCollection)
		r.Patch("/api/collections/{collection}", s.updateCollection)

		r.Route("/api/collections/{collection}/records", func(r chi.Router) {
			r.Get("/", s.listRecords)
			r.Post("/", s.createRecord)
			r.Get("/{id}", s.getRecord)
			r.Patch("/{id}", s.updateRecord)
			r.Delete("/{id}", s.deleteRecord)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "The requested resource wasn't found.", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.", nil)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"code": 200, "message": "API is healthy.", "data": map[string]any{}})
}

// requestLogger deja un logger con request_id en el contexto y registra cada
// request a nivel debug.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := s.log.With(logger.String("request_id", middleware.GetReqID(r.Context())))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logger.ToContext(r.Context(), l)))
		l.Debug("request",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(ww.Status()),
			logger.Duration(time.Since(start)),
		)
	})
}

// requireAdmin exige un token de admin válido si el store tiene admins.
// Sin admins el emulador es abierto.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.store.HasAdmins() {
			next.ServeHTTP(w, r)
			return
		}
		tok := strings.TrimSpace(r.Header.Get("Authorization"))
		tok = strings.TrimSpace(strings.TrimPrefix(tok, "Bearer "))
		if tok == "" {
			writeError(w, http.StatusUnauthorized, "The request requires valid admin authorization token to be set.", nil)
			return
		}
		if _, err := s.issuer.verify(tok); err != nil {
			logger.From(r.Context()).Debug("admin token rejected", logger.Err(err))
			writeError(w, http.StatusUnauthorized, "The request requires valid admin authorization token to be set.", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
