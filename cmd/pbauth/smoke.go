package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/pbauth/internal/adapter"
	"github.com/dropDatabas3/pbauth/internal/domain/repository"
	"github.com/dropDatabas3/pbauth/internal/observability/logger"
)

var errSmoke = errors.New("smoke check failed")

// smoke recorre el ciclo de vida completo contra el store configurado y
// reporta cada paso. Deja el store como estaba (borra lo que crea).
type smoke struct {
	ad  *adapter.Adapter
	out io.Writer

	user    *repository.User
	account repository.AccountKey
	session string
	failed  bool
}

func (a *app) smokeCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Ejecuta un ciclo usuario → cuenta → sesión → token contra el store configurado",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			ad, cleanup, err := a.newAdapter(client, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			start := time.Now()
			s := &smoke{ad: ad, out: cmd.OutOrStdout()}
			if err := s.run(ctx); err != nil {
				return err
			}
			a.log.Info("smoke passed", logger.Duration(time.Since(start)))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Tiempo máximo de la corrida")
	return cmd
}

func (s *smoke) step(name string, fn func() error) {
	if s.failed {
		fmt.Fprintf(s.out, "SKIP %s\n", name)
		return
	}
	start := time.Now()
	if err := fn(); err != nil {
		s.failed = true
		fmt.Fprintf(s.out, "FAIL %-28s %v\n", name, err)
		return
	}
	fmt.Fprintf(s.out, "ok   %-28s %s\n", name, time.Since(start).Round(time.Millisecond))
}

func (s *smoke) run(ctx context.Context) error {
	run := uuid.NewString()[:8]

	s.step("init", func() error { return s.ad.Ready(ctx) })

	s.step("create user", func() error {
		now := time.Now().UTC().Truncate(time.Millisecond)
		u, err := s.ad.CreateUser(ctx, repository.User{
			Name:          "smoke " + run,
			Email:         "smoke+" + run + "@example.com",
			EmailVerified: &now,
		})
		if err != nil {
			return err
		}
		s.user = u
		got, err := s.ad.GetUserByEmail(ctx, u.Email)
		if err != nil {
			return err
		}
		if got == nil || got.ID != u.ID {
			return errors.New("user not found by email")
		}
		return nil
	})

	s.step("link account", func() error {
		s.account = repository.AccountKey{Provider: "smoke", ProviderAccountID: run}
		expires := time.Now().Add(time.Hour).Unix()
		_, err := s.ad.LinkAccount(ctx, repository.Account{
			UserID:            s.user.ID,
			Type:              repository.AccountOAuth,
			Provider:          s.account.Provider,
			ProviderAccountID: s.account.ProviderAccountID,
			AccessToken:       "smoke-access-" + run,
			ExpiresAt:         &expires,
		})
		if err != nil {
			return err
		}
		owner, err := s.ad.GetUserByAccount(ctx, s.account)
		if err != nil {
			return err
		}
		if owner == nil || owner.ID != s.user.ID {
			return errors.New("account owner mismatch")
		}
		return nil
	})

	s.step("session round-trip", func() error {
		s.session = "smoke-session-" + run
		exp := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
		if _, err := s.ad.CreateSession(ctx, repository.Session{UserID: s.user.ID, SessionToken: s.session, Expires: exp}); err != nil {
			return err
		}
		su, err := s.ad.GetSessionAndUser(ctx, s.session)
		if err != nil {
			return err
		}
		if su == nil || su.User.ID != s.user.ID || !su.Session.Expires.Equal(exp) {
			return errors.New("session round-trip mismatch")
		}
		return s.ad.DeleteSession(ctx, s.session)
	})

	s.step("verification token", func() error {
		key := repository.VerificationTokenKey{Identifier: s.user.Email, Token: "smoke-token-" + run}
		if _, err := s.ad.CreateVerificationToken(ctx, repository.VerificationToken{
			Identifier: key.Identifier, Token: key.Token, Expires: time.Now().Add(time.Hour),
		}); err != nil {
			return err
		}
		first, err := s.ad.UseVerificationToken(ctx, key)
		if err != nil {
			return err
		}
		second, err := s.ad.UseVerificationToken(ctx, key)
		if err != nil {
			return err
		}
		if first == nil || second != nil {
			return errors.New("token was not consumed exactly once")
		}
		return nil
	})

	s.step("unlink account", func() error { return s.ad.UnlinkAccount(ctx, s.account) })

	// limpieza aunque algo haya fallado
	if s.user != nil {
		_ = s.ad.DeleteUser(ctx, s.user.ID)
		fmt.Fprintf(s.out, "ok   %-28s\n", "cleanup")
	}

	if s.failed {
		return errSmoke
	}
	return nil
}
