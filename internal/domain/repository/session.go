package repository

import (
	"context"
	"time"
)

// Session representa una sesión persistida del framework.
type Session struct {
	ID           string
	UserID       string
	SessionToken string // único
	Expires      time.Time
}

// UpdateSessionInput contiene los campos actualizables de una sesión,
// identificada por su token. Los campos nil no se envían al store.
type UpdateSessionInput struct {
	SessionToken string
	UserID       *string
	Expires      *time.Time
}

// SessionAndUser agrupa una sesión con su usuario dueño.
type SessionAndUser struct {
	Session Session
	User    User
}

// SessionRepository define operaciones sobre sesiones.
type SessionRepository interface {
	// CreateSession crea una sesión. Falla con ErrWriteFailed.
	CreateSession(ctx context.Context, session Session) (*Session, error)

	// GetSessionAndUser busca la sesión por token y su usuario.
	// Retorna nil, nil si cualquiera de los dos no existe.
	GetSessionAndUser(ctx context.Context, sessionToken string) (*SessionAndUser, error)

	// UpdateSession actualiza una sesión existente. Retorna nil, nil si el
	// token no existe. No es atómico: la última escritura gana.
	UpdateSession(ctx context.Context, input UpdateSessionInput) (*Session, error)

	// DeleteSession elimina una sesión por token. Best-effort.
	DeleteSession(ctx context.Context, sessionToken string) error
}
