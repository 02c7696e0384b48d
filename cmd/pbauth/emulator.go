package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/pbauth/internal/metrics"
	"github.com/dropDatabas3/pbauth/internal/observability/logger"
	"github.com/dropDatabas3/pbauth/internal/store/adapters/memory"
	"github.com/dropDatabas3/pbauth/internal/store/emulator"
)

func (a *app) emulatorCmd() *cobra.Command {
	var addr, adminEmail, adminPassword, snapshot string
	cmd := &cobra.Command{
		Use:   "emulator",
		Short: "Sirve un store compatible con la API REST de PocketBase sobre memoria",
		RunE: func(cmd *cobra.Command, args []string) error {
			ec := a.cfg.Emulator
			if addr == "" {
				addr = ec.Addr
			}
			if adminEmail == "" {
				adminEmail = ec.AdminEmail
			}
			if adminPassword == "" {
				adminPassword = ec.AdminPassword
			}
			if snapshot == "" {
				snapshot = ec.Snapshot
			}
			log := logger.Named("emulator")

			var opts []memory.Option
			if snapshot != "" {
				opts = append(opts, memory.WithSnapshot(snapshot))
			}
			st, err := memory.New(opts...)
			if err != nil {
				return err
			}
			if adminEmail != "" && adminPassword != "" {
				if err := st.AddAdmin(adminEmail, adminPassword); err != nil {
					return err
				}
				log.Info("admin registered", logger.MaskedEmail(adminEmail))
			} else {
				log.Warn("no admin configured: collection routes are open")
			}

			secret := []byte(ec.JWTSecret)
			if len(secret) == 0 {
				b := make([]byte, 32)
				if _, err := rand.Read(b); err != nil {
					return err
				}
				secret = []byte(hex.EncodeToString(b))
				log.Warn("emulator.jwt_secret not set: using an ephemeral secret")
			}

			reg := prometheus.NewRegistry()
			m := metrics.New()
			if err := m.Register(reg); err != nil {
				return err
			}

			srv, err := emulator.New(st, secret,
				emulator.WithLogger(log),
				emulator.WithMetrics(m),
				emulator.WithTokenTTL(a.cfg.EmulatorTokenTTL()),
			)
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			mux.Handle("/", srv.Handler())

			hs := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      30 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- hs.ListenAndServe() }()
			log.Info("emulator listening", logger.Addr(addr))

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-cmd.Context().Done():
				log.Info("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := hs.Shutdown(ctx); err != nil {
					log.Warn("shutdown", logger.Err(err))
				}
			}
			return st.Save()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Dirección de escucha (default emulator.addr)")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "Email del admin (default emulator.admin_email)")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "Password del admin (default emulator.admin_password)")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "Archivo JSON para persistir el store (opcional)")
	return cmd
}
