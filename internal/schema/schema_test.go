package schema

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/pbauth/internal/metrics"
	"github.com/dropDatabas3/pbauth/internal/store"
	"github.com/dropDatabas3/pbauth/internal/store/adapters/memory"
)

// countingCollections cuenta las llamadas y permite forzar fallas de Update.
type countingCollections struct {
	store.CollectionService

	mu        sync.Mutex
	gets      int
	creates   int
	updates   int
	failPatch error
}

func (c *countingCollections) GetOne(ctx context.Context, nameOrID string) (*store.Collection, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.CollectionService.GetOne(ctx, nameOrID)
}

func (c *countingCollections) Create(ctx context.Context, col store.Collection) (*store.Collection, error) {
	c.mu.Lock()
	c.creates++
	c.mu.Unlock()
	return c.CollectionService.Create(ctx, col)
}

func (c *countingCollections) Update(ctx context.Context, nameOrID string, col store.Collection) (*store.Collection, error) {
	c.mu.Lock()
	c.updates++
	fail := c.failPatch
	c.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return c.CollectionService.Update(ctx, nameOrID, col)
}

func newMemory(t *testing.T) (*memory.Store, *countingCollections) {
	t.Helper()
	s, err := memory.New()
	require.NoError(t, err)
	return s, &countingCollections{CollectionService: memory.NewClient(s).Collections()}
}

func TestReconcileAll_EmptyStoreCreatesFourCollections(t *testing.T) {
	s, cols := newMemory(t)
	m := metrics.New()
	r := NewReconciler(cols, DefaultNames(), WithLogger(zap.NewNop()), WithMetrics(m))

	outcomes, err := r.ReconcileAll(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	for i, kind := range Kinds() {
		assert.Equal(t, kind, outcomes[i].Kind)
		assert.Equal(t, StatusCreated, outcomes[i].Status, kind)
	}
	assert.Equal(t, 4, cols.creates)
	assert.Equal(t, 0, cols.updates)

	users, err := s.GetCollection("users")
	require.NoError(t, err)

	for _, name := range []string{"accounts", "sessions"} {
		c, err := s.GetCollection(name)
		require.NoError(t, err)
		f, ok := c.Field("userId")
		require.True(t, ok, name)
		require.True(t, f.IsRelation())
		assert.Equal(t, users.ID, f.Options.CollectionID, name)
		assert.NotEqual(t, "users", f.Options.CollectionID)
		assert.True(t, f.Options.CascadeDelete)
		assert.Equal(t, 1, *f.Options.MaxSelect)
	}

	_, err = s.GetCollection("verification_tokens")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconcile.WithLabelValues("users", "created")))
}

func TestReconcileAll_DeclaresNaturalKeysAsUniqueIndexes(t *testing.T) {
	s, cols := newMemory(t)
	r := NewReconciler(cols, DefaultNames(), WithLogger(zap.NewNop()))
	_, err := r.ReconcileAll(context.Background())
	require.NoError(t, err)

	want := map[string][][]string{
		"users":               nil,
		"accounts":            {{"provider", "providerAccountId"}},
		"sessions":            {{"sessionToken"}},
		"verification_tokens": {{"identifier", "token"}},
	}
	for name, keys := range want {
		c, err := s.GetCollection(name)
		require.NoError(t, err)
		assert.Equal(t, keys, store.UniqueKeys(c.Indexes), name)
	}
}

func TestEnsureCollection_MissingUniqueIndexIsPatched(t *testing.T) {
	s, cols := newMemory(t)

	// mismos campos que el descriptor, sin índices
	_, err := s.CreateCollection(store.Collection{Name: "verification_tokens", Schema: VerificationTokenDescriptor().Fields})
	require.NoError(t, err)
	rec, err := s.CreateRecord("verification_tokens", store.Record{"identifier": "ada@example.com", "token": "t1"})
	require.NoError(t, err)

	r := NewReconciler(cols, DefaultNames(), WithLogger(zap.NewNop()))
	out, err := r.EnsureCollection(context.Background(), "verification_tokens", VerificationTokenDescriptor())
	require.NoError(t, err)
	assert.Equal(t, StatusPatched, out.Status)
	assert.Equal(t, 1, cols.updates)

	patched, err := s.GetCollection("verification_tokens")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"identifier", "token"}}, store.UniqueKeys(patched.Indexes))

	_, err = s.GetRecord("verification_tokens", rec.ID())
	require.NoError(t, err)

	out, err = r.EnsureCollection(context.Background(), "verification_tokens", VerificationTokenDescriptor())
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, out.Status)
	assert.Equal(t, 1, cols.updates)
}

func TestEnsureCollection_DuplicatesBlockIndexPatch(t *testing.T) {
	s, cols := newMemory(t)
	_, err := s.CreateCollection(store.Collection{Name: "verification_tokens", Schema: VerificationTokenDescriptor().Fields})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := s.CreateRecord("verification_tokens", store.Record{"identifier": "ada@example.com", "token": "t1"})
		require.NoError(t, err)
	}

	r := NewReconciler(cols, DefaultNames(), WithLogger(zap.NewNop()))
	out, err := r.EnsureCollection(context.Background(), "verification_tokens", VerificationTokenDescriptor())
	require.NoError(t, err)
	assert.Equal(t, StatusPatchFailed, out.Status)
	assert.Equal(t, store.Coded, store.Classify(out.Err))
}

func TestReconcileAll_Idempotent(t *testing.T) {
	_, cols := newMemory(t)
	r := NewReconciler(cols, DefaultNames(), WithLogger(zap.NewNop()))

	_, err := r.ReconcileAll(context.Background())
	require.NoError(t, err)

	again := NewReconciler(cols, DefaultNames(), WithLogger(zap.NewNop()))
	outcomes, err := again.ReconcileAll(context.Background())
	require.NoError(t, err)
	for _, o := range outcomes {
		assert.Equal(t, StatusUnchanged, o.Status, o.Name)
	}
	assert.Equal(t, 4, cols.creates)
	assert.Equal(t, 0, cols.updates)
}

func TestReconcileAll_CustomNames(t *testing.T) {
	s, cols := newMemory(t)
	names := Names{Users: "auth_users", Sessions: "auth_sessions"}
	r := NewReconciler(cols, names, WithLogger(zap.NewNop()))

	_, err := r.ReconcileAll(context.Background())
	require.NoError(t, err)

	users, err := s.GetCollection("auth_users")
	require.NoError(t, err)
	assert.Len(t, users.Schema, len(UserDescriptor().Fields))

	sessions, err := s.GetCollection("auth_sessions")
	require.NoError(t, err)
	f, ok := sessions.Field("userId")
	require.True(t, ok)
	assert.Equal(t, users.ID, f.Options.CollectionID)

	_, err = s.GetCollection("accounts")
	require.NoError(t, err)
}

func TestEnsureCollection_DriftIssuesOnePatchAndKeepsData(t *testing.T) {
	s, cols := newMemory(t)

	// colección viva: "name" renombrado a "displayName", email requerido
	live, err := s.CreateCollection(store.Collection{Name: "users", Schema: []store.Field{
		{Name: "displayName", Type: store.FieldText},
		{Name: "email", Type: store.FieldEmail, Required: true},
		{Name: "emailVerified", Type: store.FieldDate},
		{Name: "image", Type: store.FieldURL},
	}})
	require.NoError(t, err)
	rec, err := s.CreateRecord("users", store.Record{"displayName": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	r := NewReconciler(cols, DefaultNames(), WithLogger(zap.NewNop()))
	out, err := r.EnsureCollection(context.Background(), "users", UserDescriptor())
	require.NoError(t, err)

	assert.Equal(t, StatusPatched, out.Status)
	assert.Equal(t, live.ID, out.Collection.ID)
	assert.Equal(t, 1, cols.updates)
	assert.Equal(t, 0, cols.creates)

	patched, err := s.GetCollection("users")
	require.NoError(t, err)
	assert.Equal(t, live.ID, patched.ID)
	assert.False(t, Drifted(patched.Schema, UserDescriptor().Fields))

	got, err := s.GetRecord("users", rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["displayName"])
	assert.Equal(t, "ada@example.com", got["email"])

	// segunda pasada: nada que corregir
	out, err = r.EnsureCollection(context.Background(), "users", UserDescriptor())
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, out.Status)
	assert.Equal(t, 1, cols.updates)
}

func TestEnsureCollection_PatchFailureIsSwallowed(t *testing.T) {
	s, cols := newMemory(t)
	_, err := s.CreateCollection(store.Collection{Name: "verification_tokens", Schema: []store.Field{
		{Name: "identifier", Type: store.FieldText},
	}})
	require.NoError(t, err)

	boom := store.BadRequest("Failed to update collection.", nil)
	cols.failPatch = boom

	r := NewReconciler(cols, DefaultNames(), WithLogger(zap.NewNop()))
	out, err := r.EnsureCollection(context.Background(), "verification_tokens", VerificationTokenDescriptor())
	require.NoError(t, err)
	assert.Equal(t, StatusPatchFailed, out.Status)
	assert.ErrorIs(t, out.Err, boom)
	require.NotNil(t, out.Collection)
	assert.Len(t, out.Collection.Schema, 1)
}

// failingCreate simula un store que rechaza la creación de colecciones.
type failingCreate struct {
	store.CollectionService
}

func (f failingCreate) GetOne(ctx context.Context, nameOrID string) (*store.Collection, error) {
	return nil, store.NotFound("missing")
}

func (f failingCreate) Create(ctx context.Context, c store.Collection) (*store.Collection, error) {
	return nil, errors.New("connection refused")
}

func TestEnsureCollection_CreateFailureIsFatal(t *testing.T) {
	r := NewReconciler(failingCreate{}, DefaultNames(), WithLogger(zap.NewNop()))
	out, err := r.EnsureCollection(context.Background(), "users", UserDescriptor())
	require.Error(t, err)
	assert.Equal(t, StatusCreateFailed, out.Status)

	outcomes, err := r.ReconcileAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusCreateFailed, outcomes[0].Status)
}

func TestResolve_UnresolvedKeepsName(t *testing.T) {
	_, cols := newMemory(t)
	r := NewReconciler(cols, Names{Users: "people"}, WithLogger(zap.NewNop()))

	fields := r.resolve(context.Background(), SessionDescriptor().Fields)
	assert.Equal(t, "people", fields[0].Options.CollectionID)

	// el descriptor original no se modifica
	assert.Equal(t, "users", SessionDescriptor().Fields[0].Options.CollectionID)
}

func TestDrifted(t *testing.T) {
	want := VerificationTokenDescriptor().Fields

	assert.False(t, Drifted(want, want))
	assert.True(t, Drifted(want[:2], want))

	flipped := VerificationTokenDescriptor().Fields
	flipped[1].Required = true
	assert.True(t, Drifted(flipped, want))

	retyped := VerificationTokenDescriptor().Fields
	retyped[2].Type = store.FieldText
	assert.True(t, Drifted(retyped, want))

	extra := append(VerificationTokenDescriptor().Fields, store.Field{Name: "note", Type: store.FieldText})
	assert.False(t, Drifted(extra, want))
}

func TestMissingIndexes(t *testing.T) {
	want := AccountDescriptor().Unique

	assert.Equal(t, want, MissingIndexes(nil, want))
	assert.Empty(t, MissingIndexes(AccountDescriptor().Indexes("accounts"), want))
	assert.Empty(t, MissingIndexes([]string{"CREATE UNIQUE INDEX idx_x ON accounts (provider, providerAccountId)"}, want))

	// índice no único u otro orden de columnas: no cuenta
	assert.Equal(t, want, MissingIndexes([]string{"CREATE INDEX `idx_p` ON `accounts` (`provider`, `providerAccountId`)"}, want))
	assert.Equal(t, want, MissingIndexes([]string{"CREATE UNIQUE INDEX `idx_p` ON `accounts` (`providerAccountId`, `provider`)"}, want))
}

func TestMerge_KeepsIDsAndExtraFields(t *testing.T) {
	live := []store.Field{
		{ID: "f1", Name: "token", Type: store.FieldText},
		{ID: "f2", Name: "note", Type: store.FieldText},
	}
	merged := Merge(live, VerificationTokenDescriptor().Fields)

	require.Len(t, merged, 4)
	assert.Equal(t, "identifier", merged[0].Name)
	assert.Empty(t, merged[0].ID)
	assert.Equal(t, "token", merged[1].Name)
	assert.Equal(t, "f1", merged[1].ID)
	assert.Equal(t, "expires", merged[2].Name)
	assert.Equal(t, "note", merged[3].Name)
	assert.Equal(t, "f2", merged[3].ID)
}

func TestNames(t *testing.T) {
	n := Names{Accounts: "acc"}.WithDefaults()
	assert.Equal(t, "users", n.For(Users))
	assert.Equal(t, "acc", n.For(Accounts))
	assert.Equal(t, "verification_tokens", n.For(VerificationTokens))

	_, ok := For(Kind("other"))
	assert.False(t, ok)
}
