package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropDatabas3/pbauth/internal/adapter"
	"github.com/dropDatabas3/pbauth/internal/cache"
	"github.com/dropDatabas3/pbauth/internal/config"
	"github.com/dropDatabas3/pbauth/internal/metrics"
	"github.com/dropDatabas3/pbauth/internal/observability/logger"
	"github.com/dropDatabas3/pbauth/internal/schema"
	"github.com/dropDatabas3/pbauth/internal/store"

	// Importar drivers para registrarlos vía init()
	_ "github.com/dropDatabas3/pbauth/internal/store/adapters/dal"
)

// app es el estado compartido por los subcomandos.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

func main() {
	// .env es opcional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: loading .env: %v", err)
	}

	a := &app{configPath: envOr("PBAUTH_CONFIG", "")}

	root := &cobra.Command{
		Use:           "pbauth",
		Short:         "Adapter de persistencia de auth sobre un store de documentos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", a.configPath, "Archivo YAML de configuración (env PBAUTH_CONFIG)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Nivel de log: debug|info|warn|error (pisa log.level)")

	root.AddCommand(a.provisionCmd())
	root.AddCommand(a.emulatorCmd())
	root.AddCommand(a.smokeCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		stop()
		os.Exit(1)
	}
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if !logger.ValidLevel(a.logLevel) {
			return fmt.Errorf("invalid --log-level %q", a.logLevel)
		}
		cfg.Log.Level = a.logLevel
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "pbauth",
	})
	a.cfg = cfg
	a.log = logger.L()
	return nil
}

// openStore abre el driver configurado.
func (a *app) openStore(ctx context.Context) (store.Client, error) {
	sc := a.cfg.StorageConfig()
	a.log.Info("opening store", logger.Driver(sc.Name))
	c, err := store.OpenAdapter(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", sc.Name, err)
	}
	return c, nil
}

// newAdapter arma el adapter con cache y métricas según la configuración.
// cleanup libera el cache.
func (a *app) newAdapter(client store.Client, m *metrics.Collectors) (*adapter.Adapter, func(), error) {
	opts := adapter.Options{
		Collections: schema.Names{
			Users:              a.cfg.Collections.Users,
			Accounts:           a.cfg.Collections.Accounts,
			Sessions:           a.cfg.Collections.Sessions,
			VerificationTokens: a.cfg.Collections.VerificationTokens,
		},
		Auth: adapter.Credentials{Email: a.cfg.Auth.Email, Password: a.cfg.Auth.Password},
	}
	options := []adapter.Option{adapter.WithLogger(logger.Named("pbauth")), adapter.WithMetrics(m)}

	cleanup := func() {}
	if a.cfg.Cache.Enabled {
		cc, err := cache.New(a.cfg.CacheConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("cache: %w", err)
		}
		options = append(options, adapter.WithCache(cc, a.cfg.CacheTTL()))
		cleanup = func() { _ = cc.Close() }
		a.log.Info("user cache enabled", logger.Driver(a.cfg.Cache.Kind))
	}
	return adapter.New(client, opts, options...), cleanup, nil
}

// serveMetrics expone /metrics en addr si las métricas están habilitadas.
// Retorna los collectors (nil si están deshabilitadas).
func (a *app) serveMetrics() (*metrics.Collectors, error) {
	if !a.cfg.Metrics.Enabled {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Warn("metrics server stopped", logger.Err(err))
		}
	}()
	a.log.Info("metrics listening", logger.Addr(a.cfg.Metrics.Addr))
	return m, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
