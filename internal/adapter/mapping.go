package adapter

import (
	"time"

	"github.com/dropDatabas3/pbauth/internal/domain/repository"
	"github.com/dropDatabas3/pbauth/internal/store"
)

// checked convierte un registro con código de error en un *store.Failure.
func checked(rec store.Record, err error) (store.Record, error) {
	if err != nil {
		return nil, err
	}
	if ferr := store.FailureFromRecord(rec); ferr != nil {
		return nil, ferr
	}
	return rec, nil
}

func date(t time.Time) string { return store.FormatTime(t) }

// ─── User ───

func userRecord(u repository.User) store.Record {
	rec := store.Record{
		"name":          u.Name,
		"email":         u.Email,
		"image":         u.Image,
		"emailVerified": "",
	}
	if u.EmailVerified != nil {
		rec["emailVerified"] = date(*u.EmailVerified)
	}
	return rec
}

// userPatch incluye sólo los campos no nil.
func userPatch(in repository.UpdateUserInput) store.Record {
	rec := store.Record{}
	if in.Name != nil {
		rec["name"] = *in.Name
	}
	if in.Email != nil {
		rec["email"] = *in.Email
	}
	if in.Image != nil {
		rec["image"] = *in.Image
	}
	if in.EmailVerified != nil {
		rec["emailVerified"] = date(*in.EmailVerified)
	}
	return rec
}

// Los campos de texto se leen del registro crudo: Normalize promueve a fecha
// cualquier string con forma de fecha, incluido un nombre.

func toUser(raw store.Record) *repository.User {
	rec := store.Normalize(raw)
	u := &repository.User{
		ID:    rec.ID(),
		Name:  raw.String("name"),
		Email: raw.String("email"),
		Image: raw.String("image"),
	}
	if t, ok := rec.Time("emailVerified"); ok {
		u.EmailVerified = &t
	}
	return u
}

// ─── Account ───

func accountRecord(a repository.Account) store.Record {
	rec := store.Record{
		"userId":             a.UserID,
		"type":               string(a.Type),
		"provider":           a.Provider,
		"providerAccountId":  a.ProviderAccountID,
		"access_token":       a.AccessToken,
		"refresh_token":      a.RefreshToken,
		"id_token":           a.IDToken,
		"token_type":         a.TokenType,
		"scope":              a.Scope,
		"session_state":      a.SessionState,
		"oauth_token":        a.OAuthToken,
		"oauth_token_secret": a.OAuthTokenSecret,
		"expires_at":         nil,
	}
	if a.ExpiresAt != nil {
		rec["expires_at"] = *a.ExpiresAt
	}
	return rec
}

func toAccount(raw store.Record) *repository.Account {
	rec := store.Normalize(raw)
	a := &repository.Account{
		ID:                rec.ID(),
		UserID:            raw.String("userId"),
		Type:              repository.AccountType(raw.String("type")),
		Provider:          raw.String("provider"),
		ProviderAccountID: raw.String("providerAccountId"),
		AccessToken:       raw.String("access_token"),
		RefreshToken:      raw.String("refresh_token"),
		IDToken:           raw.String("id_token"),
		TokenType:         raw.String("token_type"),
		Scope:             raw.String("scope"),
		SessionState:      raw.String("session_state"),
		OAuthToken:        raw.String("oauth_token"),
		OAuthTokenSecret:  raw.String("oauth_token_secret"),
	}
	// el store guarda 0 para un número vacío
	if n, ok := rec.Int64("expires_at"); ok && n != 0 {
		a.ExpiresAt = &n
	}
	return a
}

// ─── Session ───

func sessionRecord(s repository.Session) store.Record {
	return store.Record{
		"userId":       s.UserID,
		"sessionToken": s.SessionToken,
		"expires":      date(s.Expires),
	}
}

func sessionPatch(in repository.UpdateSessionInput) store.Record {
	rec := store.Record{"sessionToken": in.SessionToken}
	if in.UserID != nil {
		rec["userId"] = *in.UserID
	}
	if in.Expires != nil {
		rec["expires"] = date(*in.Expires)
	}
	return rec
}

func toSession(raw store.Record) *repository.Session {
	rec := store.Normalize(raw)
	s := &repository.Session{
		ID:           rec.ID(),
		UserID:       raw.String("userId"),
		SessionToken: raw.String("sessionToken"),
	}
	s.Expires, _ = rec.Time("expires")
	return s
}

// ─── VerificationToken ───

func tokenRecord(t repository.VerificationToken) store.Record {
	return store.Record{
		"identifier": t.Identifier,
		"token":      t.Token,
		"expires":    date(t.Expires),
	}
}

func toToken(raw store.Record) *repository.VerificationToken {
	rec := store.Normalize(raw)
	t := &repository.VerificationToken{
		Identifier: raw.String("identifier"),
		Token:      raw.String("token"),
	}
	t.Expires, _ = rec.Time("expires")
	return t
}
