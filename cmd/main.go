package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stokmanager/internal/config"
	"stokmanager/internal/events"
	"stokmanager/internal/infrastructure/repository"
	"stokmanager/internal/ingestion"
	"stokmanager/internal/logger"
	"stokmanager/internal/metrics"
	"stokmanager/internal/middleware"
	"stokmanager/internal/routes"
	"stokmanager/internal/usecase/attendance"
	"stokmanager/internal/usecase/device"
	"stokmanager/internal/usecase/inventory"
	"stokmanager/internal/usecase/presence"
	"stokmanager/internal/usecase/scan"
	"stokmanager/pkg/utils"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("environment", cfg.Server.Environment),
		zap.String("store", cfg.Store.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal("Application stopped with error", zap.Error(err))
	}
	logger.Info("Server exited properly")
}

func run(ctx context.Context, cfg *config.Config) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}()

	tracker := metrics.NewTracker()
	bus := events.NewBus()
	bus.OnDrop(func() {
		tracker.Update(func(m *metrics.ServiceMetrics) { m.EventsDropped++ })
	})

	retry := utils.RetryPolicy{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
	}

	deviceRepo := repository.NewDeviceRepository(st)
	itemRepo := repository.NewInventoryRepository(st)

	deviceService := device.NewService(deviceRepo, bus, tracker, device.Options{
		Retry:   retry,
		Timeout: cfg.Timeouts.Device,
	})
	inventoryService := inventory.NewService(
		itemRepo,
		inventory.NewIndex(itemRepo, cfg.Inventory.MinRefreshGap, nil),
		cfg.Timeouts.Store,
		nil,
	)
	attendanceService := attendance.NewService(
		repository.NewAttendanceRepository(st),
		cfg.Attendance,
		tracker,
		cfg.Timeouts.Store,
		nil,
	)
	scanService := scan.NewService(
		repository.NewScanRepository(st),
		deviceService,
		inventoryService,
		attendanceService,
		tracker,
		scan.Options{Retry: retry, Timeout: cfg.Timeouts.Store},
	)
	reconciler := presence.NewReconciler(deviceRepo, bus, tracker, presence.Options{
		Threshold: cfg.Presence.Threshold,
		Retry:     retry,
		Timeout:   cfg.Timeouts.Default,
	})

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst)

	router := routes.SetupRoutes(cfg, routes.Dependencies{
		Store:       st,
		Bus:         bus,
		Metrics:     tracker,
		RateLimiter: rateLimiter,
		Devices:     deviceService,
		Scans:       scanService,
		Inventory:   inventoryService,
		Attendance:  attendanceService,
		Reconciler:  reconciler,
	})

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	// MQTT connects first so a broker failure aborts startup before any
	// goroutine is running.
	if cfg.MQTT.Enabled() {
		if err := startMQTT(gctx, g, cfg, bus, tracker, deviceService, scanService); err != nil {
			return err
		}
	}

	g.Go(func() error {
		logger.Info("Server starting", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		rateLimiter.Run(gctx)
		return nil
	})

	g.Go(func() error {
		inventoryService.StartRefreshJob(gctx, cfg.Inventory.RefreshInterval)
		return nil
	})

	if cfg.Presence.Enabled {
		g.Go(func() error {
			reconciler.StartJob(gctx, cfg.Presence.Interval)
			return nil
		})
	} else {
		logger.Info("Presence reconciler disabled, relying on the external scheduler")
	}

	return g.Wait()
}

func startMQTT(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	bus *events.Bus,
	tracker *metrics.Tracker,
	devices *device.Service,
	scans *scan.Service,
) error {
	processor := ingestion.NewProcessor(devices, scans, tracker, cfg.MQTT.Workers, cfg.MQTT.QueueSize, cfg.Timeouts.Device)
	client, err := ingestion.NewMQTTIngestionClient(ingestion.NewMQTTIngestionConfig(cfg.MQTT), processor)
	if err != nil {
		return err
	}

	processor.Start()
	if err := client.Start(); err != nil {
		processor.Stop()
		return err
	}

	publisher := ingestion.NewStatusPublisher(bus, client.Client(), cfg.MQTT.StatusTopic, cfg.MQTT.QoS)
	g.Go(func() error {
		return publisher.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		client.Stop()
		processor.Stop()
		return nil
	})

	logger.Info("MQTT ingestion started", zap.String("broker", cfg.MQTT.Broker))
	return nil
}
