package repository

import (
	"context"
	"time"
)

// VerificationToken representa un token de un solo uso (magic link, etc).
// El ID del store nunca se expone.
type VerificationToken struct {
	Identifier string // normalmente el email
	Token      string
	Expires    time.Time
}

// VerificationTokenKey es la clave natural (identifier, token).
type VerificationTokenKey struct {
	Identifier string
	Token      string
}

// VerificationTokenRepository define operaciones sobre tokens de verificación.
type VerificationTokenRepository interface {
	// CreateVerificationToken persiste un token. Falla con ErrWriteFailed.
	CreateVerificationToken(ctx context.Context, token VerificationToken) (*VerificationToken, error)

	// UseVerificationToken consume el token (one-time use).
	// Retorna nil, nil si no existe; ErrDeleteFailed si no se pudo borrar.
	UseVerificationToken(ctx context.Context, key VerificationTokenKey) (*VerificationToken, error)
}

// AuthAdapter es el contrato completo que consume el framework.
type AuthAdapter interface {
	UserRepository
	AccountRepository
	SessionRepository
	VerificationTokenRepository
}
