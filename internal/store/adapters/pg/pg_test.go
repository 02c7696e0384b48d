package pg_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/pbauth/internal/adapter"
	"github.com/dropDatabas3/pbauth/internal/domain/repository"
	"github.com/dropDatabas3/pbauth/internal/schema"
	"github.com/dropDatabas3/pbauth/internal/store"
	_ "github.com/dropDatabas3/pbauth/internal/store/adapters/pg"
)

func TestPostgresAdapterRegistered(t *testing.T) {
	a, ok := store.GetAdapter("postgres")
	if !ok || a == nil {
		t.Fatal("postgres adapter not registered")
	}
	if a.Name() != "postgres" {
		t.Errorf("Expected adapter name 'postgres', got '%s'", a.Name())
	}
}

func TestPostgresAdapterConnectRequiresDSN(t *testing.T) {
	a, ok := store.GetAdapter("postgres")
	require.True(t, ok)

	_, err := a.Connect(context.Background(), store.AdapterConfig{})
	assert.Error(t, err)

	_, err = a.Connect(context.Background(), store.AdapterConfig{DSN: "::not a dsn::"})
	assert.Error(t, err)
}

// Integración: requiere PBAUTH_TEST_PG_DSN apuntando a una base descartable.
func TestPostgresAdapterRoundTrip(t *testing.T) {
	dsn := os.Getenv("PBAUTH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PBAUTH_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	c, err := store.OpenAdapter(ctx, store.AdapterConfig{Name: "postgres", DSN: dsn})
	require.NoError(t, err)
	defer c.Close()

	// nombres únicos por corrida
	suffix := fmt.Sprintf("_%d", time.Now().UnixNano())
	names := schema.Names{
		Users:              "users" + suffix,
		Accounts:           "accounts" + suffix,
		Sessions:           "sessions" + suffix,
		VerificationTokens: "verification_tokens" + suffix,
	}
	a := adapter.New(c, adapter.Options{Collections: names}, adapter.WithLogger(zap.NewNop()))
	require.NoError(t, a.Ready(ctx))

	u, err := a.CreateUser(ctx, repository.User{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)

	expires := int64(1700000000)
	_, err = a.LinkAccount(ctx, repository.Account{
		UserID: u.ID, Type: repository.AccountOAuth, Provider: "google", ProviderAccountID: `g"1`, ExpiresAt: &expires,
	})
	require.NoError(t, err)

	owner, err := a.GetUserByAccount(ctx, repository.AccountKey{Provider: "google", ProviderAccountID: `g"1`})
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, u.ID, owner.ID)

	require.NoError(t, a.DeleteUser(ctx, u.ID))
	owner, err = a.GetUserByAccount(ctx, repository.AccountKey{Provider: "google", ProviderAccountID: `g"1`})
	require.NoError(t, err)
	assert.Nil(t, owner)
}
