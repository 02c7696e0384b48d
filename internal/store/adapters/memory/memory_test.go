package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/pbauth/internal/store"
	"github.com/dropDatabas3/pbauth/internal/store/filter"
)

func one() *int {
	n := 1
	return &n
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

func seedUsersAndAccounts(t *testing.T, s *Store) (users, accounts *store.Collection) {
	t.Helper()
	users, err := s.CreateCollection(store.Collection{
		Name: "users",
		Schema: []store.Field{
			{Name: "name", Type: store.FieldText},
			{Name: "email", Type: store.FieldText},
			{Name: "emailVerified", Type: store.FieldDate},
		},
	})
	require.NoError(t, err)

	accounts, err = s.CreateCollection(store.Collection{
		Name: "accounts",
		Schema: []store.Field{
			{Name: "userId", Type: store.FieldRelation, Required: true, Options: &store.FieldOptions{
				MaxSelect: one(), CollectionID: users.ID, CascadeDelete: true,
			}},
			{Name: "provider", Type: store.FieldText, Required: true},
			{Name: "expires_at", Type: store.FieldNumber},
		},
	})
	require.NoError(t, err)
	return users, accounts
}

func TestMemoryAdapterRegistered(t *testing.T) {
	a, ok := store.GetAdapter("memory")
	require.True(t, ok)
	assert.Equal(t, "memory", a.Name())

	c, err := a.Connect(context.Background(), store.AdapterConfig{Name: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Name())
	require.NoError(t, c.Ping(context.Background()))
}

func TestCreateCollection_AssignsIDs(t *testing.T) {
	s := newTestStore(t)
	users, _ := seedUsersAndAccounts(t, s)

	assert.Len(t, users.ID, 15)
	assert.Equal(t, "base", users.Type)
	for _, f := range users.Schema {
		assert.NotEmpty(t, f.ID, f.Name)
	}

	_, err := s.CreateCollection(store.Collection{Name: "users"})
	require.Error(t, err)
	assert.Equal(t, store.Coded, store.Classify(err))
}

func TestCreateCollection_RelationNeedsExistingCollectionID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateCollection(store.Collection{
		Name: "sessions",
		Schema: []store.Field{
			{Name: "userId", Type: store.FieldRelation, Options: &store.FieldOptions{CollectionID: "users"}},
		},
	})
	require.Error(t, err)
	var f *store.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, 400, f.Status)
}

func TestRecord_CoercesAndDropsUndeclaredFields(t *testing.T) {
	s := newTestStore(t)
	seedUsersAndAccounts(t, s)

	verified := time.Date(2024, 5, 1, 10, 30, 0, 123_000_000, time.UTC)
	rec, err := s.CreateRecord("users", store.Record{
		"name":          "Ada",
		"email":         "ada@example.com",
		"emailVerified": verified,
		"unknown":       "dropped",
	})
	require.NoError(t, err)

	assert.Len(t, rec.ID(), 15)
	assert.Equal(t, "2024-05-01 10:30:00.123Z", rec["emailVerified"])
	assert.NotContains(t, rec, "unknown")
	assert.Equal(t, "users", rec["collectionName"])
	assert.NotEmpty(t, rec["created"])

	got, err := s.GetRecord("users", rec.ID())
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestRecord_RequiredFields(t *testing.T) {
	s := newTestStore(t)
	seedUsersAndAccounts(t, s)

	_, err := s.CreateRecord("accounts", store.Record{"provider": "google"})
	require.Error(t, err)
	var f *store.Failure
	require.ErrorAs(t, err, &f)
	assert.Contains(t, f.Data, "userId")
}

func TestFirstRecord_MatchesFilter(t *testing.T) {
	s := newTestStore(t)
	seedUsersAndAccounts(t, s)

	u, err := s.CreateRecord("users", store.Record{"email": `tricky"@example.com`})
	require.NoError(t, err)
	_, err = s.CreateRecord("accounts", store.Record{"userId": u.ID(), "provider": "google", "expires_at": int64(1700000000)})
	require.NoError(t, err)

	got, err := s.FirstRecord("users", filter.Eq("email", `tricky"@example.com`))
	require.NoError(t, err)
	assert.Equal(t, u.ID(), got.ID())

	acc, err := s.FirstRecord("accounts", filter.Eq("provider", "google").And("expires_at", int64(1700000000)))
	require.NoError(t, err)
	assert.Equal(t, float64(1700000000), acc["expires_at"])

	_, err = s.FirstRecord("accounts", filter.Eq("provider", "github"))
	assert.Equal(t, store.Missing, store.Classify(err))

	_, err = s.FirstRecord("accounts", filter.Expr{})
	assert.Equal(t, store.Coded, store.Classify(err))
}

func TestUpdateRecord_Patch(t *testing.T) {
	s := newTestStore(t)
	seedUsersAndAccounts(t, s)

	u, err := s.CreateRecord("users", store.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	got, err := s.UpdateRecord("users", u.ID(), store.Record{"name": "Ada L."})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got["name"])
	assert.Equal(t, "ada@example.com", got["email"])

	_, err = s.UpdateRecord("users", "missing", store.Record{"name": "x"})
	assert.Equal(t, store.Missing, store.Classify(err))
}

func TestDeleteRecord_Cascades(t *testing.T) {
	s := newTestStore(t)
	seedUsersAndAccounts(t, s)

	u, err := s.CreateRecord("users", store.Record{"email": "ada@example.com"})
	require.NoError(t, err)
	a, err := s.CreateRecord("accounts", store.Record{"userId": u.ID(), "provider": "google"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteRecord("users", u.ID()))

	_, err = s.GetRecord("accounts", a.ID())
	assert.Equal(t, store.Missing, store.Classify(err))

	err = s.DeleteRecord("users", u.ID())
	assert.Equal(t, store.Missing, store.Classify(err))
}

func TestUpdateCollection_PreservesDataByFieldID(t *testing.T) {
	s := newTestStore(t)
	users, _ := seedUsersAndAccounts(t, s)

	u, err := s.CreateRecord("users", store.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	// renombra "name" -> "displayName" (mismo ID), elimina emailVerified, agrega image
	schema := []store.Field{
		{ID: users.Schema[0].ID, Name: "displayName", Type: store.FieldText},
		{ID: users.Schema[1].ID, Name: "email", Type: store.FieldText, Required: true},
		{Name: "image", Type: store.FieldText},
	}
	updated, err := s.UpdateCollection("users", store.Collection{Name: "users", Schema: schema})
	require.NoError(t, err)
	assert.Equal(t, users.ID, updated.ID)
	require.Len(t, updated.Schema, 3)

	got, err := s.GetRecord("users", u.ID())
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["displayName"])
	assert.Equal(t, "ada@example.com", got["email"])
	assert.Equal(t, "", got["image"])
	assert.NotContains(t, got, "name")
	assert.NotContains(t, got, "emailVerified")
}

func newSessions(t *testing.T, s *Store) *store.Collection {
	t.Helper()
	c, err := s.CreateCollection(store.Collection{
		Name:    "sessions",
		Schema:  []store.Field{{Name: "sessionToken", Type: store.FieldText}, {Name: "userId", Type: store.FieldText}},
		Indexes: []string{store.UniqueIndex("sessions", "sessionToken")},
	})
	require.NoError(t, err)
	return c
}

func TestUniqueIndex_CreateAndUpdate(t *testing.T) {
	s := newTestStore(t)
	c := newSessions(t, s)
	assert.Equal(t, []string{store.UniqueIndex("sessions", "sessionToken")}, c.Indexes)

	first, err := s.CreateRecord("sessions", store.Record{"sessionToken": "tok", "userId": "u1"})
	require.NoError(t, err)

	_, err = s.CreateRecord("sessions", store.Record{"sessionToken": "tok", "userId": "u2"})
	require.Error(t, err)
	var f *store.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, 400, f.Status)
	assert.Contains(t, f.Data, "sessionToken")

	// claves vacías no compiten entre sí
	_, err = s.CreateRecord("sessions", store.Record{"userId": "u3"})
	require.NoError(t, err)
	_, err = s.CreateRecord("sessions", store.Record{"userId": "u4"})
	require.NoError(t, err)

	second, err := s.CreateRecord("sessions", store.Record{"sessionToken": "other", "userId": "u2"})
	require.NoError(t, err)

	_, err = s.UpdateRecord("sessions", second.ID(), store.Record{"sessionToken": "tok"})
	require.Error(t, err)
	assert.Equal(t, store.Coded, store.Classify(err))

	// re-escribir la propia clave es válido
	_, err = s.UpdateRecord("sessions", first.ID(), store.Record{"sessionToken": "tok", "userId": "u9"})
	require.NoError(t, err)

	_, n, err := s.ListRecords("sessions", filter.Eq("sessionToken", "tok"), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateCollection_RejectsIndexOnUnknownField(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateCollection(store.Collection{
		Name:    "sessions",
		Schema:  []store.Field{{Name: "sessionToken", Type: store.FieldText}},
		Indexes: []string{store.UniqueIndex("sessions", "token")},
	})
	require.Error(t, err)
	assert.Equal(t, store.Coded, store.Classify(err))

	_, err = s.GetCollection("sessions")
	assert.Equal(t, store.Missing, store.Classify(err))
}

func TestUpdateCollection_Indexes(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateCollection(store.Collection{
		Name:   "sessions",
		Schema: []store.Field{{Name: "sessionToken", Type: store.FieldText}},
	})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = s.CreateRecord("sessions", store.Record{"sessionToken": "dup"})
		require.NoError(t, err)
	}

	idx := []string{store.UniqueIndex("sessions", "sessionToken")}
	_, err = s.UpdateCollection("sessions", store.Collection{Schema: mustCollection(t, s, "sessions").Schema, Indexes: idx})
	require.Error(t, err)
	assert.Equal(t, store.Coded, store.Classify(err))
	assert.Empty(t, mustCollection(t, s, "sessions").Indexes)

	recs, _, err := s.ListRecords("sessions", filter.Expr{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.NoError(t, s.DeleteRecord("sessions", recs[1].ID()))

	updated, err := s.UpdateCollection("sessions", store.Collection{Schema: mustCollection(t, s, "sessions").Schema, Indexes: idx})
	require.NoError(t, err)
	assert.Equal(t, idx, updated.Indexes)

	// Indexes nil conserva los actuales
	updated, err = s.UpdateCollection("sessions", store.Collection{Schema: updated.Schema})
	require.NoError(t, err)
	assert.Equal(t, idx, updated.Indexes)

	_, err = s.CreateRecord("sessions", store.Record{"sessionToken": "dup"})
	assert.Equal(t, store.Coded, store.Classify(err))
}

func mustCollection(t *testing.T, s *Store, name string) *store.Collection {
	t.Helper()
	c, err := s.GetCollection(name)
	require.NoError(t, err)
	return c
}

func TestAdmins(t *testing.T) {
	s := newTestStore(t, WithAdmin("Admin@Example.com", "secret"))
	require.NoError(t, s.VerifyAdmin("admin@example.com", "secret"))

	err := s.VerifyAdmin("admin@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, store.Coded, store.Classify(err))

	c := NewClient(s)
	require.NoError(t, c.Admins().AuthWithPassword(context.Background(), "admin@example.com", "secret"))
	require.Error(t, c.Admins().AuthWithPassword(context.Background(), "admin@example.com", "nope"))

	open := NewClient(newTestStore(t))
	require.NoError(t, open.Admins().AuthWithPassword(context.Background(), "any", "thing"))
}

func TestClient_CanceledContextIsTransport(t *testing.T) {
	c := NewClient(newTestStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Collection("users").GetOne(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, store.Transport, store.Classify(err))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	s := newTestStore(t, WithSnapshot(path), WithAdmin("admin@example.com", "secret"))
	seedUsersAndAccounts(t, s)
	u, err := s.CreateRecord("users", store.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	reloaded := newTestStore(t, WithSnapshot(path))
	got, err := reloaded.GetRecord("users", u.ID())
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["name"])
	assert.Equal(t, u["created"], got["created"])

	accounts, err := reloaded.GetCollection("accounts")
	require.NoError(t, err)
	f, ok := accounts.Field("userId")
	require.True(t, ok)
	assert.True(t, f.IsRelation())
	require.NoError(t, reloaded.VerifyAdmin("admin@example.com", "secret"))
}
