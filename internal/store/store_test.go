package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_StripsMetadataAndPromotesDates(t *testing.T) {
	raw := Record{
		"id":             "abc123",
		"name":           "Ada",
		"emailVerified":  "2024-05-01 10:30:00.123Z",
		"created":        "2024-05-01 10:30:00.000Z",
		"updated":        "2024-05-01 10:30:00.000Z",
		"collectionId":   "col1",
		"collectionName": "users",
		"expand":         map[string]any{},
		"code":           0,
		"isNew":          false,
		"clone":          nil,
		"export":         nil,
		"load":           nil,
		"list":           nil,
		"image":          "",
	}

	out := Normalize(raw)

	for _, k := range MetadataKeys {
		assert.NotContains(t, out, k)
	}
	assert.Equal(t, "abc123", out["id"])
	assert.Equal(t, "Ada", out["name"])
	assert.Equal(t, "", out["image"])
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 123_000_000, time.UTC), out["emailVerified"])

	// raw no se modifica
	assert.Contains(t, raw, "collectionId")
	assert.IsType(t, "", raw["emailVerified"])
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-05-01 10:30:00.123Z", true},
		{"2024-05-01T10:30:00Z", true},
		{"2024-05-01T10:30:00.123456+02:00", true},
		{"2024-05-01 10:30:00", true},
		{"2024-05-01", true},
		{"", false},
		{"Ada", false},
		{"1700000000", false},
		{"2024-13-01", false},
		{"ada@example.com", false},
	}
	for _, tc := range cases {
		_, ok := ParseTime(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
}

func TestFormatTime_RoundTrip(t *testing.T) {
	in := time.Date(2024, 5, 1, 7, 30, 0, 123_000_000, time.FixedZone("ART", -3*3600))
	s := FormatTime(in)
	assert.Equal(t, "2024-05-01 10:30:00.123Z", s)

	back, ok := ParseTime(s)
	require.True(t, ok)
	assert.True(t, in.Equal(back))
}

func TestRecord_Accessors(t *testing.T) {
	r := Record{
		"id":   "x1",
		"n":    float64(1700000000),
		"jn":   json.Number("42"),
		"s":    "17",
		"bad":  "nope",
		"when": "2024-05-01 10:30:00.000Z",
	}
	assert.Equal(t, "x1", r.ID())
	assert.Equal(t, "1700000000", r.String("n"))
	assert.Equal(t, "", r.String("missing"))

	n, ok := r.Int64("n")
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), n)
	n, ok = r.Int64("jn")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)
	n, ok = r.Int64("s")
	assert.True(t, ok)
	assert.Equal(t, int64(17), n)
	_, ok = r.Int64("bad")
	assert.False(t, ok)

	when, ok := r.Time("when")
	assert.True(t, ok)
	assert.Equal(t, 2024, when.Year())
	_, ok = r.Time("bad")
	assert.False(t, ok)
}

func TestFailureFromRecord(t *testing.T) {
	assert.NoError(t, FailureFromRecord(nil))
	assert.NoError(t, FailureFromRecord(Record{"id": "x"}))
	assert.NoError(t, FailureFromRecord(Record{"id": "x", "code": 0}))
	assert.NoError(t, FailureFromRecord(Record{"id": "x", "code": ""}))

	err := FailureFromRecord(Record{"code": float64(400), "message": "Failed to create record.", "data": map[string]any{"email": "invalid"}})
	require.Error(t, err)
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, 400, f.Code)
	assert.Equal(t, "Failed to create record.", f.Message)
	assert.Contains(t, f.Data, "email")

	err = FailureFromRecord(Record{"code": "E_CONFLICT", "message": "conflict"})
	require.Error(t, err)
	assert.Equal(t, Coded, Classify(err))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OK, Classify(nil))
	assert.Equal(t, Missing, Classify(NotFound("missing")))
	assert.Equal(t, Missing, Classify(fmt.Errorf("get: %w", ErrNotFound)))
	assert.Equal(t, Missing, Classify(&Failure{Status: http.StatusNotFound}))
	assert.Equal(t, Coded, Classify(BadRequest("bad", nil)))
	assert.Equal(t, Coded, Classify(fmt.Errorf("wrapped: %w", &Failure{Code: 500})))
	assert.Equal(t, Transport, Classify(context.DeadlineExceeded))
	assert.Equal(t, Transport, Classify(errors.New("connection refused")))

	assert.Equal(t, "not_found", Missing.String())
	assert.Equal(t, "transport", Transport.String())
}

func TestFailure_IsUnauthorized(t *testing.T) {
	assert.ErrorIs(t, &Failure{Status: http.StatusUnauthorized}, ErrUnauthorized)
	assert.ErrorIs(t, &Failure{Status: http.StatusForbidden}, ErrUnauthorized)
	assert.NotErrorIs(t, &Failure{Status: http.StatusBadRequest}, ErrUnauthorized)
}

func TestCollection_CloneIsDeep(t *testing.T) {
	n := 1
	c := &Collection{Name: "accounts", Schema: []Field{
		{Name: "userId", Type: FieldRelation, Options: &FieldOptions{MaxSelect: &n, CollectionID: "u"}},
	}}
	cp := c.Clone()
	cp.Schema[0].Options.CollectionID = "other"
	*cp.Schema[0].Options.MaxSelect = 5

	assert.Equal(t, "u", c.Schema[0].Options.CollectionID)
	assert.Equal(t, 1, *c.Schema[0].Options.MaxSelect)

	f, ok := c.Field("userId")
	require.True(t, ok)
	assert.True(t, f.IsRelation())
	_, ok = c.Field("nope")
	assert.False(t, ok)
}

func TestParseUniqueIndex(t *testing.T) {
	stmt := UniqueIndex("accounts", "provider", "providerAccountId")
	assert.Equal(t, "CREATE UNIQUE INDEX `idx_accounts_provider_providerAccountId` ON `accounts` (`provider`, `providerAccountId`)", stmt)

	fields, ok := ParseUniqueIndex(stmt)
	require.True(t, ok)
	assert.Equal(t, []string{"provider", "providerAccountId"}, fields)

	fields, ok = ParseUniqueIndex("create unique index if not exists idx_tok on sessions (sessionToken ASC);")
	require.True(t, ok)
	assert.Equal(t, []string{"sessionToken"}, fields)

	_, ok = ParseUniqueIndex("CREATE INDEX `idx_user` ON `sessions` (`userId`)")
	assert.False(t, ok)
	_, ok = ParseUniqueIndex("CREATE UNIQUE INDEX `idx` ON `sessions` ()")
	assert.False(t, ok)

	keys := UniqueKeys([]string{
		"CREATE INDEX `idx_user` ON `sessions` (`userId`)",
		UniqueIndex("sessions", "sessionToken"),
	})
	assert.Equal(t, [][]string{{"sessionToken"}}, keys)
}

func TestCheckIndexes(t *testing.T) {
	schema := []Field{{Name: "identifier", Type: FieldText}, {Name: "token", Type: FieldText}}

	assert.NoError(t, CheckIndexes(schema, nil))
	assert.NoError(t, CheckIndexes(schema, []string{
		UniqueIndex("verification_tokens", "identifier", "token"),
		UniqueIndex("verification_tokens", "id"),
		"CREATE INDEX `idx_expr` ON `verification_tokens` (lower(token))",
	}))

	err := CheckIndexes(schema, []string{UniqueIndex("verification_tokens", "email")})
	require.Error(t, err)
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, http.StatusBadRequest, f.Status)
	assert.Contains(t, f.Data, "indexes.0")

	err = CheckIndexes(schema, []string{"", "CREATE UNIQUE INDEX broken"})
	require.ErrorAs(t, err, &f)
	assert.Contains(t, f.Data, "indexes.1")
}

func TestUniqueValue(t *testing.T) {
	fields := []string{"provider", "providerAccountId"}

	a, ok := UniqueValue(Record{"provider": "github", "providerAccountId": "42"}, fields)
	require.True(t, ok)
	b, ok := UniqueValue(Record{"provider": "github", "providerAccountId": "42", "userId": "u2"}, fields)
	require.True(t, ok)
	assert.Equal(t, a, b)

	c, ok := UniqueValue(Record{"provider": "google", "providerAccountId": "42"}, fields)
	require.True(t, ok)
	assert.NotEqual(t, a, c)

	// todas vacías: no compite
	_, ok = UniqueValue(Record{"provider": "", "userId": "u1"}, fields)
	assert.False(t, ok)
}

func TestFindDuplicate(t *testing.T) {
	keys := [][]string{{"identifier", "token"}}
	recs := []Record{
		{"identifier": "ada@example.com", "token": "t1"},
		{"identifier": "bob@example.com", "token": "t1"},
		{"identifier": "", "token": ""},
		{"identifier": "", "token": ""},
	}
	_, dup := FindDuplicate(keys, recs)
	assert.False(t, dup)

	recs = append(recs, Record{"identifier": "ada@example.com", "token": "t1"})
	fields, dup := FindDuplicate(keys, recs)
	require.True(t, dup)
	assert.Equal(t, []string{"identifier", "token"}, fields)

	err := NotUnique(fields)
	assert.Equal(t, Coded, Classify(err))
	assert.Contains(t, err.Data, "token")
}

type stubAdapter struct{ name string }

func (a stubAdapter) Name() string { return a.name }
func (a stubAdapter) Connect(ctx context.Context, cfg AdapterConfig) (Client, error) {
	return nil, fmt.Errorf("stub: %s", cfg.URL)
}

func TestRegistry(t *testing.T) {
	RegisterAdapter(stubAdapter{name: "stub-registry-test"})

	assert.Contains(t, ListAdapters(), "stub-registry-test")
	assert.Panics(t, func() { RegisterAdapter(stubAdapter{name: "stub-registry-test"}) })

	_, err := OpenAdapter(context.Background(), AdapterConfig{Name: "stub-registry-test", URL: "x"})
	assert.EqualError(t, err, "stub: x")

	_, err = OpenAdapter(context.Background(), AdapterConfig{Name: "does-not-exist"})
	assert.Error(t, err)
}
