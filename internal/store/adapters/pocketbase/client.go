// Package pocketbase implementa store.Client sobre la API REST de PocketBase.
//
// Las respuestas no 2xx y los payloads 2xx que traen un "code" de error se
// convierten en *store.Failure en este borde; el resto del módulo nunca
// inspecciona "code" a mano.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/pbauth/internal/store"
	"github.com/dropDatabas3/pbauth/internal/store/filter"
)

func init() {
	store.RegisterAdapter(&pocketbaseAdapter{})
}

type pocketbaseAdapter struct{}

func (a *pocketbaseAdapter) Name() string { return "pocketbase" }

func (a *pocketbaseAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("pocketbase: URL required")
	}
	c, err := New(cfg.URL, WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pocketbase: ping failed: %w", err)
	}
	return c, nil
}

// Client es un cliente HTTP de PocketBase. Seguro para uso concurrente.
type Client struct {
	base *url.URL
	http *http.Client

	mu    sync.RWMutex
	token string
}

var _ store.Client = (*Client)(nil)

// Option configura un Client.
type Option func(*Client)

// WithTimeout fija un timeout por request. Por default no hay deadline más
// allá del ctx de cada llamada; 0 lo deja así.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient reemplaza el *http.Client (tests, transports custom).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken fija un token de admin ya emitido.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New crea un cliente para la instancia en baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("pocketbase: invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("pocketbase: URL must be absolute: %q", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "pocketbase" }

// Ping consulta /api/health.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil, nil)
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Token retorna el token de admin actual (vacío si no hubo login).
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(t string) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

func (c *Client) Collection(nameOrID string) store.RecordService {
	return &recordService{c: c, coll: nameOrID}
}

func (c *Client) Collections() store.CollectionService { return &collectionService{c: c} }

func (c *Client) Admins() store.AdminService { return &adminService{c: c} }

// ─── Transporte ───

// do ejecuta el request. body se serializa como JSON si no es nil; out recibe
// la respuesta decodificada si no es nil. Los números se decodifican como
// json.Number.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	// path ya viene escapado
	u := *c.base
	u.RawPath = c.base.EscapedPath() + path
	u.Path, _ = url.PathUnescape(u.RawPath)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("pocketbase: encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pocketbase: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("pocketbase: decode response: %w", err)
	}
	return nil
}

// failure construye el *store.Failure de una respuesta no exitosa.
func failure(status int, raw []byte) *store.Failure {
	f := &store.Failure{Status: status}
	var payload struct {
		Code    int            `json:"code"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		f.Code = payload.Code
		f.Message = payload.Message
		f.Data = payload.Data
	}
	if f.Code == 0 {
		f.Code = status
	}
	if f.Message == "" {
		f.Message = http.StatusText(status)
	}
	return f
}

func escape(s string) string { return url.PathEscape(s) }

// ─── RecordService ───

type recordService struct {
	c    *Client
	coll string
}

func (r *recordService) path(id string) string {
	p := "/api/collections/" + escape(r.coll) + "/records"
	if id != "" {
		p += "/" + escape(id)
	}
	return p
}

// record ejecuta un request que retorna un registro y aplica la
// verificación de payload con código.
func (r *recordService) record(ctx context.Context, method, path string, body any) (store.Record, error) {
	var rec store.Record
	if err := r.c.do(ctx, method, path, nil, body, &rec); err != nil {
		return nil, err
	}
	if err := store.FailureFromRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *recordService) Create(ctx context.Context, data store.Record) (store.Record, error) {
	return r.record(ctx, http.MethodPost, r.path(""), data)
}

func (r *recordService) GetOne(ctx context.Context, id string) (store.Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, store.NotFound("The requested resource wasn't found.")
	}
	return r.record(ctx, http.MethodGet, r.path(id), nil)
}

// GetFirstListItem lista con perPage=1 y retorna el primer item, o un
// Failure 404 si no hay ninguno.
func (r *recordService) GetFirstListItem(ctx context.Context, expr filter.Expr) (store.Record, error) {
	f, err := expr.Build()
	if err != nil {
		return nil, store.BadRequest("Invalid filter.", map[string]any{"filter": err.Error()})
	}
	q := url.Values{}
	q.Set("page", "1")
	q.Set("perPage", "1")
	q.Set("skipTotal", "1")
	q.Set("filter", f)

	var list struct {
		Items []store.Record `json:"items"`
	}
	if err := r.c.do(ctx, http.MethodGet, r.path(""), q, nil, &list); err != nil {
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, store.NotFound("The requested resource wasn't found.")
	}
	rec := list.Items[0]
	if err := store.FailureFromRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *recordService) Update(ctx context.Context, id string, patch store.Record) (store.Record, error) {
	return r.record(ctx, http.MethodPatch, r.path(id), patch)
}

func (r *recordService) Delete(ctx context.Context, id string) error {
	return r.c.do(ctx, http.MethodDelete, r.path(id), nil, nil, nil)
}

// ─── CollectionService ───

type collectionService struct{ c *Client }

func (s *collectionService) GetOne(ctx context.Context, nameOrID string) (*store.Collection, error) {
	var col store.Collection
	if err := s.c.do(ctx, http.MethodGet, "/api/collections/"+escape(nameOrID), nil, nil, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

func (s *collectionService) Create(ctx context.Context, in store.Collection) (*store.Collection, error) {
	var col store.Collection
	if err := s.c.do(ctx, http.MethodPost, "/api/collections", nil, in, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

func (s *collectionService) Update(ctx context.Context, nameOrID string, in store.Collection) (*store.Collection, error) {
	var col store.Collection
	if err := s.c.do(ctx, http.MethodPatch, "/api/collections/"+escape(nameOrID), nil, in, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// ─── AdminService ───

type adminService struct{ c *Client }

// AuthWithPassword inicia sesión de admin y guarda el token para los
// requests siguientes.
func (s *adminService) AuthWithPassword(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"identity": email, "password": password}
	if err := s.c.do(ctx, http.MethodPost, "/api/admins/auth-with-password", nil, body, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return fmt.Errorf("pocketbase: auth response without token")
	}
	s.c.setToken(resp.Token)
	return nil
}
