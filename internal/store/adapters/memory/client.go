package memory

import (
	"context"

	"github.com/dropDatabas3/pbauth/internal/store"
	"github.com/dropDatabas3/pbauth/internal/store/filter"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

// memoryAdapter implementa store.Adapter sobre un Store nuevo por conexión.
type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.Client, error) {
	var opts []Option
	if cfg.SnapshotPath != "" {
		opts = append(opts, WithSnapshot(cfg.SnapshotPath))
	}
	s, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return NewClient(s), nil
}

// Client expone un Store como store.Client in-process.
type Client struct {
	s *Store
}

var _ store.Client = (*Client)(nil)

// NewClient crea un cliente sobre s.
func NewClient(s *Store) *Client {
	return &Client{s: s}
}

// Store retorna el Store subyacente.
func (c *Client) Store() *Store { return c.s }

func (c *Client) Name() string { return "memory" }

func (c *Client) Ping(ctx context.Context) error { return ctx.Err() }

func (c *Client) Close() error { return c.s.Save() }

func (c *Client) Collection(nameOrID string) store.RecordService {
	return &recordService{s: c.s, coll: nameOrID}
}

func (c *Client) Collections() store.CollectionService { return &collectionService{s: c.s} }

func (c *Client) Admins() store.AdminService { return &adminService{s: c.s} }

// ─── RecordService ───

type recordService struct {
	s    *Store
	coll string
}

func (r *recordService) Create(ctx context.Context, data store.Record) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.CreateRecord(r.coll, data)
}

func (r *recordService) GetOne(ctx context.Context, id string) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.GetRecord(r.coll, id)
}

func (r *recordService) GetFirstListItem(ctx context.Context, expr filter.Expr) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.FirstRecord(r.coll, expr)
}

func (r *recordService) Update(ctx context.Context, id string, patch store.Record) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.UpdateRecord(r.coll, id, patch)
}

func (r *recordService) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.s.DeleteRecord(r.coll, id)
}

// ─── CollectionService ───

type collectionService struct{ s *Store }

func (r *collectionService) GetOne(ctx context.Context, nameOrID string) (*store.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.GetCollection(nameOrID)
}

func (r *collectionService) Create(ctx context.Context, c store.Collection) (*store.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.CreateCollection(c)
}

func (r *collectionService) Update(ctx context.Context, nameOrID string, c store.Collection) (*store.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.UpdateCollection(nameOrID, c)
}

// ─── AdminService ───

type adminService struct{ s *Store }

// AuthWithPassword verifica las credenciales. Un Store sin admins
// registrados acepta cualquier credencial (uso in-process).
func (r *adminService) AuthWithPassword(ctx context.Context, email, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.s.HasAdmins() {
		return nil
	}
	return r.s.VerifyAdmin(email, password)
}
