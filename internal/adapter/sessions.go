package adapter

import (
	"context"
	"time"

	"github.com/dropDatabas3/pbauth/internal/domain/repository"
	"github.com/dropDatabas3/pbauth/internal/metrics"
	"github.com/dropDatabas3/pbauth/internal/observability/logger"
	"github.com/dropDatabas3/pbauth/internal/schema"
	"github.com/dropDatabas3/pbauth/internal/store"
	"github.com/dropDatabas3/pbauth/internal/store/filter"
)

// CreateSession persiste la sesión.
func (a *Adapter) CreateSession(ctx context.Context, session repository.Session) (*repository.Session, error) {
	start := time.Now()
	sessions, err := a.records(ctx, schema.Sessions)
	if err != nil {
		return nil, err
	}
	rec, err := checked(sessions.Create(ctx, sessionRecord(session)))
	if err != nil {
		return nil, a.writeFailed("create", entitySession, start, err,
			logger.MaskedToken("session_token", session.SessionToken))
	}
	a.observe("create", entitySession, metrics.ResultOK, start)
	return toSession(rec), nil
}

// GetSessionAndUser lee la sesión por token y luego su usuario.
func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*repository.SessionAndUser, error) {
	start := time.Now()
	sessions, err := a.records(ctx, schema.Sessions)
	if err != nil {
		return nil, err
	}
	rec, ok := a.sessionByToken(ctx, sessions, "get_with_user", sessionToken, start)
	if !ok {
		return nil, nil
	}
	session := toSession(rec)

	users, err := a.records(ctx, schema.Users)
	if err != nil {
		return nil, err
	}
	u := a.userByID(ctx, users, "get_with_user", session.UserID, start)
	if u == nil {
		return nil, nil
	}
	a.observe("get_with_user", entitySession, metrics.ResultOK, start)
	return &repository.SessionAndUser{Session: *session, User: *u}, nil
}

// UpdateSession busca la sesión por token y actualiza los campos no nil.
// Retorna nil, nil si el token no existe. Lectura y escritura no son
// atómicas: dos updates concurrentes del mismo token, gana el último.
func (a *Adapter) UpdateSession(ctx context.Context, input repository.UpdateSessionInput) (*repository.Session, error) {
	start := time.Now()
	sessions, err := a.records(ctx, schema.Sessions)
	if err != nil {
		return nil, err
	}
	rec, ok := a.sessionByToken(ctx, sessions, "update", input.SessionToken, start)
	if !ok {
		return nil, nil
	}
	updated, err := checked(sessions.Update(ctx, rec.ID(), sessionPatch(input)))
	if err != nil {
		return nil, a.writeFailed("update", entitySession, start, err, logger.RecordID(rec.ID()))
	}
	a.observe("update", entitySession, metrics.ResultOK, start)
	return toSession(updated), nil
}

// DeleteSession borra la sesión por token. Best-effort.
func (a *Adapter) DeleteSession(ctx context.Context, sessionToken string) error {
	start := time.Now()
	sessions, err := a.records(ctx, schema.Sessions)
	if err != nil {
		return err
	}
	rec, ok := a.sessionByToken(ctx, sessions, "delete", sessionToken, start)
	if !ok {
		return nil
	}
	if err := sessions.Delete(ctx, rec.ID()); err != nil {
		a.log.Warn("session delete failed, ignoring", logger.RecordID(rec.ID()), logger.Err(err))
		a.observe("delete", entitySession, metrics.ResultSwallowed, start)
		return nil
	}
	a.observe("delete", entitySession, metrics.ResultOK, start)
	return nil
}

func (a *Adapter) sessionByToken(ctx context.Context, sessions store.RecordService, op, token string, start time.Time) (store.Record, bool) {
	rec, err := checked(sessions.GetFirstListItem(ctx, filter.Eq("sessionToken", token)))
	if err != nil {
		a.readMiss(op, entitySession, start, err, logger.MaskedToken("session_token", token))
		return nil, false
	}
	return rec, true
}
