package adapter

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dropDatabas3/pbauth/internal/cache"
	"github.com/dropDatabas3/pbauth/internal/domain/repository"
	"github.com/dropDatabas3/pbauth/internal/metrics"
	"github.com/dropDatabas3/pbauth/internal/observability/logger"
	"github.com/dropDatabas3/pbauth/internal/schema"
	"github.com/dropDatabas3/pbauth/internal/store"
	"github.com/dropDatabas3/pbauth/internal/store/filter"
)

// CreateUser crea el usuario y lo retorna con el ID asignado por el store.
func (a *Adapter) CreateUser(ctx context.Context, user repository.User) (*repository.User, error) {
	start := time.Now()
	users, err := a.records(ctx, schema.Users)
	if err != nil {
		return nil, err
	}
	rec, err := checked(users.Create(ctx, userRecord(user)))
	if err != nil {
		return nil, a.writeFailed("create", entityUser, start, err, logger.MaskedEmail(user.Email))
	}
	out := toUser(rec)
	a.observe("create", entityUser, metrics.ResultOK, start)
	a.log.Debug("user created", logger.RecordID(out.ID), logger.MaskedEmail(out.Email))
	return out, nil
}

// GetUser busca por ID. Retorna nil, nil si no existe o si la lectura falla.
func (a *Adapter) GetUser(ctx context.Context, id string) (*repository.User, error) {
	start := time.Now()
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	users, err := a.records(ctx, schema.Users)
	if err != nil {
		return nil, err
	}
	u := a.userByID(ctx, users, "get", id, start)
	if u != nil {
		a.observe("get", entityUser, metrics.ResultOK, start)
	}
	return u, nil
}

// GetUserByEmail busca por email exacto. Un email vacío es un miss.
func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*repository.User, error) {
	start := time.Now()
	if strings.TrimSpace(email) == "" {
		return nil, nil
	}
	users, err := a.records(ctx, schema.Users)
	if err != nil {
		return nil, err
	}
	rec, err := checked(users.GetFirstListItem(ctx, filter.Eq("email", email)))
	if err != nil {
		a.readMiss("get_by_email", entityUser, start, err, logger.MaskedEmail(email))
		return nil, nil
	}
	a.observe("get_by_email", entityUser, metrics.ResultOK, start)
	return toUser(rec), nil
}

// GetUserByAccount resuelve la cuenta (provider, providerAccountId) y luego
// su usuario. Un miss en cualquiera de las dos lecturas es un miss.
func (a *Adapter) GetUserByAccount(ctx context.Context, key repository.AccountKey) (*repository.User, error) {
	start := time.Now()
	accounts, err := a.records(ctx, schema.Accounts)
	if err != nil {
		return nil, err
	}
	rec, err := checked(accounts.GetFirstListItem(ctx, accountFilter(key)))
	if err != nil {
		a.readMiss("get_by_account", entityAccount, start, err,
			logger.String("provider", key.Provider))
		return nil, nil
	}
	account := toAccount(rec)

	users, err := a.records(ctx, schema.Users)
	if err != nil {
		return nil, err
	}
	u := a.userByID(ctx, users, "get_by_account", account.UserID, start)
	if u != nil {
		a.observe("get_by_account", entityUser, metrics.ResultOK, start)
	}
	return u, nil
}

// UpdateUser aplica los campos no nil de input.
func (a *Adapter) UpdateUser(ctx context.Context, input repository.UpdateUserInput) (*repository.User, error) {
	start := time.Now()
	if strings.TrimSpace(input.ID) == "" {
		return nil, &repository.OpError{Op: "update", Entity: entityUser, Kind: repository.ErrInvalidInput}
	}
	users, err := a.records(ctx, schema.Users)
	if err != nil {
		return nil, err
	}
	defer a.forgetUser(ctx, input.ID)
	rec, err := checked(users.Update(ctx, input.ID, userPatch(input)))
	if err != nil {
		return nil, a.writeFailed("update", entityUser, start, err, logger.RecordID(input.ID))
	}
	out := toUser(rec)
	a.observe("update", entityUser, metrics.ResultOK, start)
	return out, nil
}

// DeleteUser es best-effort: la falla del store se loguea y no se propaga.
// El store borra en cascada cuentas y sesiones del usuario.
func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	start := time.Now()
	users, err := a.records(ctx, schema.Users)
	if err != nil {
		return err
	}
	defer a.forgetUser(ctx, id)
	if err := users.Delete(ctx, id); err != nil {
		a.log.Warn("user delete failed, ignoring", logger.RecordID(id), logger.Err(err))
		a.observe("delete", entityUser, metrics.ResultSwallowed, start)
		return nil
	}
	a.observe("delete", entityUser, metrics.ResultOK, start)
	return nil
}

// userByID lee un usuario pasando por el cache si está habilitado.
// Un miss (o una falla) se registra contra op.
func (a *Adapter) userByID(ctx context.Context, users store.RecordService, op, id string, start time.Time) *repository.User {
	if u, ok := a.cachedUser(ctx, id); ok {
		return u
	}
	rec, err := checked(users.GetOne(ctx, id))
	if err != nil {
		a.readMiss(op, entityUser, start, err, logger.RecordID(id))
		return nil
	}
	u := toUser(rec)
	a.rememberUser(ctx, u)
	return u
}

// ─── Cache de usuarios ───

type cachedUser struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	Image         string     `json:"image,omitempty"`
}

func (a *Adapter) userKey(id string) string {
	return "user:" + a.names.Users + ":" + id
}

func (a *Adapter) cachedUser(ctx context.Context, id string) (*repository.User, bool) {
	if a.cache == nil {
		return nil, false
	}
	raw, err := a.cache.Get(ctx, a.userKey(id))
	if err != nil {
		if !cache.IsNotFound(err) {
			a.log.Debug("user cache get failed", logger.RecordID(id), logger.Err(err))
		}
		return nil, false
	}
	var cu cachedUser
	if err := json.Unmarshal([]byte(raw), &cu); err != nil {
		return nil, false
	}
	return &repository.User{
		ID:            cu.ID,
		Name:          cu.Name,
		Email:         cu.Email,
		EmailVerified: cu.EmailVerified,
		Image:         cu.Image,
	}, true
}

func (a *Adapter) rememberUser(ctx context.Context, u *repository.User) {
	if a.cache == nil || u == nil || u.ID == "" {
		return
	}
	b, err := json.Marshal(cachedUser{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Image:         u.Image,
	})
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, a.userKey(u.ID), string(b), a.cacheTTL); err != nil {
		a.log.Debug("user cache set failed", logger.RecordID(u.ID), logger.Err(err))
	}
}

func (a *Adapter) forgetUser(ctx context.Context, id string) {
	if a.cache == nil || id == "" {
		return
	}
	if err := a.cache.Delete(ctx, a.userKey(id)); err != nil {
		a.log.Debug("user cache delete failed", logger.RecordID(id), logger.Err(err))
	}
}
