package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/goodtune/photokiosk/internal/api"
	"github.com/goodtune/photokiosk/internal/assets"
	"github.com/goodtune/photokiosk/internal/capture"
	"github.com/goodtune/photokiosk/internal/config"
	"github.com/goodtune/photokiosk/internal/credit"
	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/metrics"
	"github.com/goodtune/photokiosk/internal/notify"
	"github.com/goodtune/photokiosk/internal/orders"
	"github.com/goodtune/photokiosk/internal/session"
	"github.com/goodtune/photokiosk/internal/sim"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/goodtune/photokiosk/internal/systemd"
	"github.com/goodtune/photokiosk/internal/timeline"
	"github.com/goodtune/photokiosk/internal/upsell"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const apiRequestTimeout = 15 * time.Second

var simulate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk session engine",
	Long:  `Start the session engine, the local control API and the metrics server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&simulate, "simulate", false, "Use the simulated camera and compositor regardless of configuration")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if simulate {
		cfg.Simulation.Enabled = true
	}

	// Setup logging
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("kiosk", cfg.Kiosk.Name).
		Str("mode", cfg.Kiosk.Mode).
		Msg("Starting photokiosk")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Open storage
	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	// The configured catalogue is authoritative
	if err := seedCatalog(ctx, store.Settings(), cfg.Kiosk.Products); err != nil {
		return fmt.Errorf("failed to seed catalogue: %w", err)
	}
	logger.Info().Int("products", len(cfg.Kiosk.Products)).Msg("Product catalogue loaded")

	// Credit ledger
	mode := credit.ModePaid
	if cfg.Kiosk.FreePlay() {
		mode = credit.ModeFreePlay
	}
	ledger := credit.NewLedger(store.Settings(), mode, logger)

	notifier := notify.NewLogNotifier(logger)
	recorder := orders.NewRecorder(store.Orders(), cfg.Kiosk.FreePlay(), logger)

	// Hardware collaborators
	camera, compositor, releaser, err := setupDevices(cfg.Simulation, logger)
	if err != nil {
		return err
	}

	deps := session.Dependencies{
		Catalog:     store.Settings(),
		Ledger:      ledger,
		Camera:      camera,
		Compositor:  compositor,
		Fulfillment: recorder,
		Releaser:    releaser,
		Notifier:    notifier,
		Audio:       notifier,
	}

	// Template asset resolution
	var resolver *assets.Resolver
	if cfg.Assets.Dir != "" {
		resolver, err = assets.NewResolver(assets.Config{
			Dir:       cfg.Assets.Dir,
			CacheSize: cfg.Assets.CacheSize,
			CacheTTL:  parseDuration(cfg.Assets.CacheTTL, 10*time.Minute),
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create asset resolver: %w", err)
		}
		deps.Assets = resolver
		logger.Info().Str("dir", cfg.Assets.Dir).Msg("Template asset resolver enabled")
	}

	// Session machine
	tl := timeline.New(timeline.RealClock{})
	machine, err := session.NewMachine(tl, deps, sessionConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to create session machine: %w", err)
	}
	machine.AddListener(func(e session.Event) {
		if e.Type != session.EventStageChanged {
			return
		}
		if err := systemd.NotifyStatus("stage: " + e.To.String()); err != nil {
			logger.Debug().Err(err).Msg("Failed to publish systemd status")
		}
	})

	// Start control API
	apiAddr := net.JoinHostPort(cfg.Server.BindAddress, strconv.Itoa(cfg.Server.APIPort))
	apiServer := api.NewServer(apiAddr, api.Dependencies{
		Machine:       machine,
		Credit:        ledger,
		Products:      store.Settings(),
		Orders:        recorder,
		Notifications: notifier,
	}, apiRequestTimeout, logger)
	if sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	// Start metrics server
	metricsAddr := net.JoinHostPort(cfg.Server.BindAddress, strconv.Itoa(cfg.Server.MetricsPort))
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// Start order retention
	retention, err := orders.NewRetentionScheduler(store.Orders(), cfg.Orders.RetentionDays, cfg.Orders.CleanupTime, logger)
	if err != nil {
		return fmt.Errorf("failed to create retention scheduler: %w", err)
	}
	retention.Start()

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}
	_ = systemd.NotifyStatus("stage: " + domain.StageIdle.String())

	watchdogStop := make(chan struct{})
	systemd.StartWatchdog(watchdogStop, logger)

	// Wait for signals (shutdown or reload)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	// Signal handling loop
	for {
		sig := <-sigChan

		switch sig {
		case syscall.SIGHUP:
			if resolver != nil {
				resolver.Purge()
				logger.Info().Msg("SIGHUP received, template asset cache purged")
			}
			continue

		case os.Interrupt, syscall.SIGTERM:
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
		}

		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}
	close(watchdogStop)

	// A live session is abandoned; its photos are released and no order is written
	machine.Reset()

	retention.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping API Server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("photokiosk stopped")
	return nil
}

// setupDevices returns the camera, compositor and photo releaser. Only
// the simulated devices ship with this build.
func setupDevices(cfg config.SimulationConfig, logger zerolog.Logger) (capture.Camera, session.Compositor, session.PhotoReleaser, error) {
	if !cfg.Enabled {
		return nil, nil, nil, fmt.Errorf("no camera driver configured: set simulation.enabled or pass --simulate")
	}

	logger.Warn().
		Str("photo_dir", cfg.PhotoDir).
		Str("output_dir", cfg.OutputDir).
		Int("fail_every", cfg.FailEvery).
		Msg("Using simulated camera and compositor")

	return sim.NewCamera(cfg.PhotoDir, cfg.FailEvery, logger),
		sim.NewCompositor(cfg.OutputDir, logger),
		sim.NewReleaser(cfg.PhotoDir, logger),
		nil
}

// sessionConfig converts configured timings to machine configuration
func sessionConfig(cfg *config.Config) session.Config {
	defaults := session.DefaultConfig()

	return session.Config{
		Capture: capture.Config{
			WarmUp:         parseDuration(cfg.Capture.WarmUp, defaults.Capture.WarmUp),
			CountdownFrom:  cfg.Capture.CountdownFrom,
			TickInterval:   parseDuration(cfg.Capture.TickInterval, defaults.Capture.TickInterval),
			InterShotPause: parseDuration(cfg.Capture.InterShotPause, defaults.Capture.InterShotPause),
		},
		Upsell: upsell.Config{
			ExtraCopiesTimeout: parseDuration(cfg.Upsell.ExtraCopiesTimeout, defaults.Upsell.ExtraCopiesTimeout),
			CrossSellTimeout:   parseDuration(cfg.Upsell.CrossSellTimeout, defaults.Upsell.CrossSellTimeout),
			MinQuantity:        cfg.Upsell.MinQuantity,
			MaxQuantity:        cfg.Upsell.MaxQuantity,
		},
		SelectionTimeout:  parseDuration(cfg.Session.SelectionTimeout, defaults.SelectionTimeout),
		PreviewTimeout:    parseDuration(cfg.Session.PreviewTimeout, defaults.PreviewTimeout),
		FinalizeTimeout:   parseDuration(cfg.Session.FinalizeTimeout, defaults.FinalizeTimeout),
		StorageTimeout:    parseDuration(cfg.Session.StorageTimeout, defaults.StorageTimeout),
		CrossSellFallback: domain.FromFloat(cfg.Kiosk.CrossSellFallback),
	}
}

// seedCatalog upserts the configured products and their pricing
func seedCatalog(ctx context.Context, settings storage.SettingsStore, products []config.ProductConfig) error {
	for _, p := range products {
		if err := settings.UpsertProduct(ctx, p.Product()); err != nil {
			return fmt.Errorf("product %s: %w", p.Type, err)
		}
		if err := settings.UpsertPricing(ctx, p.Pricing()); err != nil {
			return fmt.Errorf("pricing %s: %w", p.Type, err)
		}
	}
	return nil
}
