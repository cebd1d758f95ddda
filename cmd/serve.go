package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nibog-labs/notifyd/internal/api"
	"github.com/nibog-labs/notifyd/internal/breaker"
	"github.com/nibog-labs/notifyd/internal/clock"
	"github.com/nibog-labs/notifyd/internal/config"
	"github.com/nibog-labs/notifyd/internal/eventbus"
	"github.com/nibog-labs/notifyd/internal/gateway"
	"github.com/nibog-labs/notifyd/internal/health"
	"github.com/nibog-labs/notifyd/internal/logger"
	"github.com/nibog-labs/notifyd/internal/metrics"
	"github.com/nibog-labs/notifyd/internal/notify"
	"github.com/nibog-labs/notifyd/internal/server"
	"github.com/nibog-labs/notifyd/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the notification dispatch HTTP server.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (overrides PORT env var)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}

	log, err := logger.New(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	settingsMgr, err := config.NewManager(storage.NewSQLiteSettingsStore(db), cfg)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	catalog, err := config.LoadTemplateCatalog(cfg.TemplatesFile)
	if err != nil {
		return fmt.Errorf("loading template catalog: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	notifStore := storage.NewSQLiteNotificationStore(db)
	client := gateway.New(settingsMgr.Get, log)
	brk := breaker.New(breaker.DefaultThreshold, breaker.DefaultCooldown, clock.Real{})

	svc, err := notify.NewService(settingsMgr, catalog, client, brk, notifStore, metrics.New(registry), log)
	if err != nil {
		return err
	}

	bus := eventbus.New(0, log)
	defer bus.Close()
	bus.Subscribe(notify.NewBookingListener(svc, log))

	// Reachability probe: a template-list call that bypasses the breaker's
	// failure accounting.
	monitor := health.NewMonitor(settingsMgr, brk, health.ProbeFunc(func(ctx context.Context) error {
		_, err := client.ListTemplates(ctx)
		return err
	}))

	apiSrv := api.New(svc, monitor, settingsMgr, notifStore, bus, log)
	srv := server.New(apiSrv, registry, cfg.Port, log)

	log.Info("notifyd starting",
		slog.Int("port", cfg.Port),
		slog.Bool("whatsapp_enabled", settingsMgr.Get().Enabled),
	)
	fmt.Fprintf(os.Stderr, "notifyd listening on http://localhost:%d\n", cfg.Port)

	return srv.Run(ctx)
}
