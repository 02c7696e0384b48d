package repository

import (
	"context"
	"time"
)

// User representa un usuario registrado por el framework.
type User struct {
	ID            string // asignado por el store, opaco
	Name          string
	Email         string
	EmailVerified *time.Time // nil = no verificado
	Image         string     // URL del avatar
}

// UpdateUserInput contiene los campos actualizables de un usuario.
// Los campos nil no se envían al store.
type UpdateUserInput struct {
	ID            string
	Name          *string
	Email         *string
	Image         *string
	EmailVerified *time.Time
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// CreateUser crea un usuario. Falla con ErrWriteFailed.
	CreateUser(ctx context.Context, user User) (*User, error)

	// GetUser busca un usuario por ID. Retorna nil, nil si no existe.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByEmail busca un usuario por email. Retorna nil, nil si no existe.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByAccount busca el usuario dueño de una cuenta de provider.
	// Retorna nil, nil si la cuenta o el usuario no existen.
	GetUserByAccount(ctx context.Context, key AccountKey) (*User, error)

	// UpdateUser actualiza campos de un usuario. Falla con ErrWriteFailed.
	UpdateUser(ctx context.Context, input UpdateUserInput) (*User, error)

	// DeleteUser elimina un usuario. Best-effort: nunca falla por el store.
	DeleteUser(ctx context.Context, id string) error
}
