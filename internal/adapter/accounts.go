package adapter

import (
	"context"
	"time"

	"github.com/dropDatabas3/pbauth/internal/domain/repository"
	"github.com/dropDatabas3/pbauth/internal/metrics"
	"github.com/dropDatabas3/pbauth/internal/observability/logger"
	"github.com/dropDatabas3/pbauth/internal/schema"
	"github.com/dropDatabas3/pbauth/internal/store/filter"
)

func accountFilter(key repository.AccountKey) filter.Expr {
	return filter.Eq("provider", key.Provider).And("providerAccountId", key.ProviderAccountID)
}

// LinkAccount persiste la cuenta vinculada a account.UserID.
func (a *Adapter) LinkAccount(ctx context.Context, account repository.Account) (*repository.Account, error) {
	start := time.Now()
	accounts, err := a.records(ctx, schema.Accounts)
	if err != nil {
		return nil, err
	}
	rec, err := checked(accounts.Create(ctx, accountRecord(account)))
	if err != nil {
		return nil, a.writeFailed("link", entityAccount, start, err,
			logger.String("provider", account.Provider),
			logger.RecordID(account.UserID),
		)
	}
	out := toAccount(rec)
	a.observe("link", entityAccount, metrics.ResultOK, start)
	a.log.Debug("account linked",
		logger.RecordID(out.ID),
		logger.String("provider", out.Provider),
		logger.MaskedToken("access_token", out.AccessToken),
	)
	return out, nil
}

// UnlinkAccount borra la cuenta identificada por key. Si no existe no hace
// nada; si el delete falla retorna ErrDeleteFailed.
func (a *Adapter) UnlinkAccount(ctx context.Context, key repository.AccountKey) error {
	start := time.Now()
	accounts, err := a.records(ctx, schema.Accounts)
	if err != nil {
		return err
	}
	rec, err := checked(accounts.GetFirstListItem(ctx, accountFilter(key)))
	if err != nil {
		a.readMiss("unlink", entityAccount, start, err, logger.String("provider", key.Provider))
		return nil
	}
	id := rec.ID()
	if err := accounts.Delete(ctx, id); err != nil {
		a.log.Error("account unlink failed", logger.RecordID(id), logger.String("provider", key.Provider), logger.Err(err))
		a.observe("unlink", entityAccount, metrics.ResultError, start)
		return repository.DeleteError("unlink", entityAccount, err)
	}
	a.observe("unlink", entityAccount, metrics.ResultOK, start)
	return nil
}
