package emulator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/pbauth/internal/metrics"
	"github.com/dropDatabas3/pbauth/internal/store"
	"github.com/dropDatabas3/pbauth/internal/store/adapters/memory"
)

var testSecret = []byte("emulator-test-secret-0123456789")

func newTestServer(t *testing.T, opts ...memory.Option) (*httptest.Server, *memory.Store) {
	t.Helper()
	st, err := memory.New(opts...)
	require.NoError(t, err)
	srv, err := New(st, testSecret, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func createUsers(t *testing.T, ts *httptest.Server, token string) string {
	t.Helper()
	status, col := call(t, ts, http.MethodPost, "/api/collections", token, store.Collection{
		Name: "users",
		Type: "base",
		Schema: []store.Field{
			{Name: "name", Type: store.FieldText},
			{Name: "email", Type: store.FieldText},
		},
	})
	require.Equal(t, http.StatusOK, status, col)
	return col["id"].(string)
}

func TestNew_RequiresSecret(t *testing.T) {
	st, err := memory.New()
	require.NoError(t, err)
	_, err = New(st, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	status, body := call(t, ts, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "API is healthy.", body["message"])
}

func TestAdminAuth(t *testing.T) {
	ts, _ := newTestServer(t, memory.WithAdmin("admin@example.com", "s3cret-pass"))

	t.Run("protected routes require a token", func(t *testing.T) {
		status, body := call(t, ts, http.MethodGet, "/api/collections", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.EqualValues(t, 401, body["code"])
	})

	t.Run("wrong password", func(t *testing.T) {
		status, body := call(t, ts, http.MethodPost, "/api/admins/auth-with-password", "",
			map[string]string{"identity": "admin@example.com", "password": "nope"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Failed to authenticate.", body["message"])
	})

	t.Run("missing identity", func(t *testing.T) {
		status, body := call(t, ts, http.MethodPost, "/api/admins/auth-with-password", "",
			map[string]string{"password": "x"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["data"], "identity")
	})

	t.Run("token grants access", func(t *testing.T) {
		status, body := call(t, ts, http.MethodPost, "/api/admins/auth-with-password", "",
			map[string]string{"identity": "Admin@Example.com", "password": "s3cret-pass"})
		require.Equal(t, http.StatusOK, status)
		token, _ := body["token"].(string)
		require.NotEmpty(t, token)
		assert.Equal(t, "admin@example.com", body["admin"].(map[string]any)["email"])

		status, _ = call(t, ts, http.MethodGet, "/api/collections", token, nil)
		assert.Equal(t, http.StatusOK, status)

		// el prefijo Bearer también se acepta
		status, _ = call(t, ts, http.MethodGet, "/api/collections", "Bearer "+token, nil)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("forged token", func(t *testing.T) {
		other := &issuer{secret: []byte("another-secret"), ttl: time.Hour}
		tok, err := other.issue("admin@example.com", time.Now())
		require.NoError(t, err)
		status, _ := call(t, ts, http.MethodGet, "/api/collections", tok, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestIssuer_Expired(t *testing.T) {
	i := &issuer{secret: testSecret, ttl: time.Minute}
	tok, err := i.issue("a@b.c", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = i.verify(tok)
	assert.Error(t, err)

	tok, err = i.issue("a@b.c", time.Now())
	require.NoError(t, err)
	claims, err := i.verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", claims.Subject)
}

func TestCollections(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createUsers(t, ts, "")

	status, col := call(t, ts, http.MethodGet, "/api/collections/users", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, col["id"])

	status, col = call(t, ts, http.MethodGet, "/api/collections/"+id, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "users", col["name"])

	status, body := call(t, ts, http.MethodGet, "/api/collections/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.EqualValues(t, 404, body["code"])

	status, _ = call(t, ts, http.MethodPatch, "/api/collections/users", "", store.Collection{
		Name: "users",
		Schema: []store.Field{
			{Name: "name", Type: store.FieldText},
			{Name: "email", Type: store.FieldText},
			{Name: "image", Type: store.FieldText},
		},
	})
	require.Equal(t, http.StatusOK, status)

	status, list := call(t, ts, http.MethodGet, "/api/collections", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, list["totalItems"])
}

func TestRecords_CRUD(t *testing.T) {
	ts, _ := newTestServer(t)
	createUsers(t, ts, "")
	base := "/api/collections/users/records"

	status, rec := call(t, ts, http.MethodPost, base, "", map[string]any{
		"name": "Ann", "email": "ann@example.com", "ignored": "x",
	})
	require.Equal(t, http.StatusOK, status, rec)
	id := rec["id"].(string)
	assert.Len(t, id, 15)
	assert.NotContains(t, rec, "ignored")
	assert.Equal(t, "users", rec["collectionName"])

	status, rec = call(t, ts, http.MethodGet, base+"/"+id, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ann", rec["name"])

	status, rec = call(t, ts, http.MethodPatch, base+"/"+id, "", map[string]any{"name": "Anna"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Anna", rec["name"])
	assert.Equal(t, "ann@example.com", rec["email"])

	status, _ = call(t, ts, http.MethodDelete, base+"/"+id, "", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body := call(t, ts, http.MethodGet, base+"/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "The requested resource wasn't found.", body["message"])
}

func TestRecords_ListWithFilter(t *testing.T) {
	ts, _ := newTestServer(t)
	createUsers(t, ts, "")
	base := "/api/collections/users/records"
	for _, e := range []string{"a@x.io", "b@x.io", "o'brien@x.io"} {
		status, _ := call(t, ts, http.MethodPost, base, "", map[string]any{"email": e})
		require.Equal(t, http.StatusOK, status)
	}

	q := url.Values{}
	q.Set("filter", `email="o\"brien@x.io" || 1=1`)
	status, body := call(t, ts, http.MethodGet, base+"?"+q.Encode(), "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid filter parameters.", body["message"])

	q.Set("filter", `email='o\'brien@x.io'`)
	status, body = call(t, ts, http.MethodGet, base+"?"+q.Encode(), "", nil)
	require.Equal(t, http.StatusOK, status, body)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "o'brien@x.io", items[0].(map[string]any)["email"])
	assert.EqualValues(t, 1, body["totalItems"])

	status, body = call(t, ts, http.MethodGet, base+"?page=1&perPage=2&skipTotal=1", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 2)
	assert.EqualValues(t, -1, body["totalItems"])
	assert.EqualValues(t, -1, body["totalPages"])

	status, body = call(t, ts, http.MethodGet, base+"?perPage=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["totalItems"])
	assert.EqualValues(t, 2, body["totalPages"])
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)
	status, body := call(t, ts, http.MethodGet, "/api/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.EqualValues(t, 404, body["code"])

	status, _ = call(t, ts, http.MethodPut, "/api/health", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestMetricsMiddleware(t *testing.T) {
	st, err := memory.New()
	require.NoError(t, err)
	m := metrics.New()
	srv, err := New(st, testSecret, WithLogger(zap.NewNop()), WithMetrics(m))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	call(t, ts, http.MethodGet, "/api/health", "", nil)
	call(t, ts, http.MethodGet, "/api/health", "", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/api/health", "200")))
}
