package adapter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/pbauth/internal/domain/repository"
	"github.com/dropDatabas3/pbauth/internal/metrics"
	"github.com/dropDatabas3/pbauth/internal/observability/logger"
	"github.com/dropDatabas3/pbauth/internal/schema"
	"github.com/dropDatabas3/pbauth/internal/store/filter"
)

// CreateVerificationToken persiste el token.
func (a *Adapter) CreateVerificationToken(ctx context.Context, token repository.VerificationToken) (*repository.VerificationToken, error) {
	start := time.Now()
	tokens, err := a.records(ctx, schema.VerificationTokens)
	if err != nil {
		return nil, err
	}
	rec, err := checked(tokens.Create(ctx, tokenRecord(token)))
	if err != nil {
		return nil, a.writeFailed("create", entityToken, start, err,
			logger.MaskedEmail(token.Identifier),
			logger.MaskedToken("token", token.Token),
		)
	}
	a.observe("create", entityToken, metrics.ResultOK, start)
	return toToken(rec), nil
}

// UseVerificationToken consume el token: lo lee por (identifier, token) y lo
// borra. Sólo lo retorna si el borrado tuvo éxito; si otro caller lo consumió
// primero, el delete falla y se retorna ErrDeleteFailed.
func (a *Adapter) UseVerificationToken(ctx context.Context, key repository.VerificationTokenKey) (*repository.VerificationToken, error) {
	start := time.Now()
	tokens, err := a.records(ctx, schema.VerificationTokens)
	if err != nil {
		return nil, err
	}
	fields := []zap.Field{logger.MaskedEmail(key.Identifier), logger.MaskedToken("token", key.Token)}

	rec, err := checked(tokens.GetFirstListItem(ctx,
		filter.Eq("identifier", key.Identifier).And("token", key.Token)))
	if err != nil {
		a.readMiss("use", entityToken, start, err, fields...)
		return nil, nil
	}
	if err := tokens.Delete(ctx, rec.ID()); err != nil {
		a.log.Error("verification token delete failed", append(fields, logger.Err(err))...)
		a.observe("use", entityToken, metrics.ResultError, start)
		return nil, repository.DeleteError("use", entityToken, err)
	}
	a.observe("use", entityToken, metrics.ResultOK, start)
	return toToken(rec), nil
}
