package repository

import "context"

// AccountType identifica el tipo de cuenta vinculada.
type AccountType string

const (
	AccountOAuth       AccountType = "oauth"
	AccountEmail       AccountType = "email"
	AccountCredentials AccountType = "credentials"
)

// Valid reporta si el tipo es uno de los conocidos.
func (t AccountType) Valid() bool {
	switch t {
	case AccountOAuth, AccountEmail, AccountCredentials:
		return true
	}
	return false
}

// Account representa una cuenta de provider vinculada a un usuario.
type Account struct {
	ID                string
	UserID            string
	Type              AccountType
	Provider          string // "google", "github", etc.
	ProviderAccountID string // ID del usuario en el provider

	// Bundle de tokens OAuth
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Scope        string
	SessionState string
	ExpiresAt    *int64 // epoch en segundos

	// OAuth 1.0a
	OAuthToken       string
	OAuthTokenSecret string
}

// Key retorna la clave natural de la cuenta.
func (a Account) Key() AccountKey {
	return AccountKey{Provider: a.Provider, ProviderAccountID: a.ProviderAccountID}
}

// AccountKey es la clave natural (provider, providerAccountId).
type AccountKey struct {
	Provider          string
	ProviderAccountID string
}

// AccountRepository define operaciones sobre cuentas vinculadas.
type AccountRepository interface {
	// LinkAccount vincula una cuenta a un usuario. Falla con ErrWriteFailed.
	LinkAccount(ctx context.Context, account Account) (*Account, error)

	// UnlinkAccount desvincula una cuenta. Si no existe no hace nada;
	// si el borrado falla retorna ErrDeleteFailed.
	UnlinkAccount(ctx context.Context, key AccountKey) error
}
