// Package schema contiene los descriptores de las cuatro colecciones del
// adapter y el reconciliador que las crea o corrige en el store.
package schema

import (
	"github.com/dropDatabas3/pbauth/internal/store"
)

// Kind identifica el tipo de entidad de una colección. Su valor es además el
// nombre por defecto de la colección.
type Kind string

const (
	Users              Kind = "users"
	Accounts           Kind = "accounts"
	Sessions           Kind = "sessions"
	VerificationTokens Kind = "verification_tokens"
)

// Kinds retorna los tipos en orden de reconciliación: Users primero porque
// Accounts y Sessions la referencian.
func Kinds() []Kind {
	return []Kind{Users, Accounts, Sessions, VerificationTokens}
}

// Names mapea cada tipo de entidad al nombre de colección configurado.
type Names struct {
	Users              string
	Accounts           string
	Sessions           string
	VerificationTokens string
}

// DefaultNames retorna los nombres por defecto.
func DefaultNames() Names {
	return Names{
		Users:              string(Users),
		Accounts:           string(Accounts),
		Sessions:           string(Sessions),
		VerificationTokens: string(VerificationTokens),
	}
}

// WithDefaults completa los nombres vacíos.
func (n Names) WithDefaults() Names {
	d := DefaultNames()
	if n.Users == "" {
		n.Users = d.Users
	}
	if n.Accounts == "" {
		n.Accounts = d.Accounts
	}
	if n.Sessions == "" {
		n.Sessions = d.Sessions
	}
	if n.VerificationTokens == "" {
		n.VerificationTokens = d.VerificationTokens
	}
	return n
}

// For retorna el nombre configurado para kind.
func (n Names) For(kind Kind) string {
	switch kind {
	case Users:
		return n.Users
	case Accounts:
		return n.Accounts
	case Sessions:
		return n.Sessions
	case VerificationTokens:
		return n.VerificationTokens
	}
	return string(kind)
}

// Descriptor es la lista de campos esperada para una colección.
// Los campos relation apuntan al Kind destino (no a un ID); el
// reconciliador lo resuelve al ID real antes de escribir.
// Unique son las claves naturales; cada una se declara como índice único.
type Descriptor struct {
	Kind   Kind
	Fields []store.Field
	Unique [][]string
}

// Clone retorna una copia profunda.
func (d Descriptor) Clone() Descriptor {
	out := Descriptor{Kind: d.Kind, Fields: make([]store.Field, len(d.Fields))}
	for i, f := range d.Fields {
		out.Fields[i] = f.Clone()
	}
	for _, key := range d.Unique {
		out.Unique = append(out.Unique, append([]string(nil), key...))
	}
	return out
}

// Indexes retorna las sentencias de los índices únicos de d para la
// colección name.
func (d Descriptor) Indexes(name string) []string {
	out := make([]string, 0, len(d.Unique))
	for _, key := range d.Unique {
		out = append(out, store.UniqueIndex(name, key...))
	}
	return out
}

// For retorna el descriptor de kind. ok=false si kind no es conocido.
func For(kind Kind) (Descriptor, bool) {
	switch kind {
	case Users:
		return UserDescriptor(), true
	case Accounts:
		return AccountDescriptor(), true
	case Sessions:
		return SessionDescriptor(), true
	case VerificationTokens:
		return VerificationTokenDescriptor(), true
	}
	return Descriptor{}, false
}

func text(name string) store.Field {
	return store.Field{Name: name, Type: store.FieldText}
}

func userRelation() store.Field {
	one := 1
	return store.Field{
		Name: "userId",
		Type: store.FieldRelation,
		Options: &store.FieldOptions{
			MaxSelect:     &one,
			CollectionID:  string(Users),
			CascadeDelete: true,
		},
	}
}

// UserDescriptor: name, email, emailVerified, image.
func UserDescriptor() Descriptor {
	return Descriptor{Kind: Users, Fields: []store.Field{
		text("name"),
		{Name: "email", Type: store.FieldEmail},
		{Name: "emailVerified", Type: store.FieldDate},
		{Name: "image", Type: store.FieldURL},
	}}
}

// AccountDescriptor: relación al usuario, proveedor y bundle de tokens
// OAuth (incluye los campos OAuth1). Única por (provider, providerAccountId).
func AccountDescriptor() Descriptor {
	return Descriptor{Kind: Accounts, Fields: []store.Field{
		userRelation(),
		text("type"),
		text("provider"),
		text("providerAccountId"),
		text("refresh_token"),
		text("access_token"),
		{Name: "expires_at", Type: store.FieldNumber},
		text("token_type"),
		text("scope"),
		text("id_token"),
		text("session_state"),
		text("oauth_token_secret"),
		text("oauth_token"),
	}, Unique: [][]string{{"provider", "providerAccountId"}}}
}

// SessionDescriptor: relación al usuario, expiración y token (único).
func SessionDescriptor() Descriptor {
	return Descriptor{Kind: Sessions, Fields: []store.Field{
		userRelation(),
		{Name: "expires", Type: store.FieldDate},
		text("sessionToken"),
	}, Unique: [][]string{{"sessionToken"}}}
}

// VerificationTokenDescriptor: identifier + token (clave natural única) y expiración.
func VerificationTokenDescriptor() Descriptor {
	return Descriptor{Kind: VerificationTokens, Fields: []store.Field{
		text("identifier"),
		text("token"),
		{Name: "expires", Type: store.FieldDate},
	}, Unique: [][]string{{"identifier", "token"}}}
}
