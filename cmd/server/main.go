package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"floorpulse-backend/internal/config"
	"floorpulse-backend/internal/cooldown"
	"floorpulse-backend/internal/db"
	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/events"
	"floorpulse-backend/internal/handler"
	"floorpulse-backend/internal/metrics"
	"floorpulse-backend/internal/poller"
	"floorpulse-backend/internal/repository"
	"floorpulse-backend/internal/server"
	"floorpulse-backend/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// scan audit log (optional)
	var (
		pg       *db.Postgres
		recorder service.ScanRecorder
		scanLog  *handler.ScanLogHandler
	)
	if cfg.DatabaseURL != "" {
		pg, err = db.New(ctx, db.Options{
			URL:      cfg.DatabaseURL,
			MaxConns: int32(cfg.DBMaxConns),
			AppName:  "floorpulse",
		})
		if err != nil {
			logger.Error("failed to connect database", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		scanRepo := repository.ScanLogRepository{DB: pg}
		if err := scanRepo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare scan log schema", "err", err)
			os.Exit(1)
		}
		recorder = scanRepo
		scanLog = &handler.ScanLogHandler{Log: scanRepo}
		if cfg.ScanLogRetention > 0 {
			go pruneScanLog(ctx, scanRepo, cfg.ScanLogRetention, logger)
		}
	} else {
		logger.Info("DATABASE_URL not set, scan audit log disabled")
	}

	// clients
	store := repository.NewStoreClient(cfg.StoreBaseURL, cfg.FetchTimeout)
	predictor := repository.NewPredictorClient(cfg.PredictorBaseURL, cfg.FetchTimeout)

	m := metrics.New(prometheus.DefaultRegisterer)
	hub := events.NewHub(logger)

	// services
	attendanceSvc := &service.AttendanceService{Employees: store, Output: store}
	productionSvc := &service.ProductionService{
		Stock:      store,
		Employees:  store,
		Predictor:  predictor,
		Output:     store,
		Heuristics: cfg.Heuristics,
		Events:     hub,
		Observer:   m,
		Logger:     logger,
	}
	scanSvc := &service.ScanService{
		Store:     store,
		Registrar: store,
		Cooldown:  cooldown.New(cfg.ScanCooldown, cfg.CooldownMaxEntries, cooldown.SystemClock()),
		Events:    hub,
		Recorder:  recorder,
		Observer:  m,
		Logger:    logger,
	}
	stockSvc := service.StockService{Store: store}
	dailyProductionSvc := service.DailyProductionService{Store: store}
	authSvc := service.AuthService{Secret: cfg.JWTSecret}

	// pollers
	attendancePoller := poller.New("attendance", poller.Pipeline[[]domain.Employee]{
		Fetch: attendanceSvc.Fetch,
		Apply: func(emps []domain.Employee) {
			attendanceSvc.Apply(emps)
			hub.Publish(events.RosterUpdated, map[string]any{"employees": len(emps)})
		},
		Fail: attendanceSvc.Fail,
	}, poller.Options{
		Interval: cfg.AttendancePollInterval,
		Timeout:  cfg.FetchTimeout,
		Logger:   logger,
		Observer: m,
	})
	dashboardPoller := poller.New("dashboard", poller.Pipeline[domain.DashboardMetrics]{
		Fetch: productionSvc.Compute,
		Apply: productionSvc.Apply,
		Fail:  productionSvc.Fail,
	}, poller.Options{
		Interval: cfg.DashboardPollInterval,
		Timeout:  cfg.FetchTimeout,
		Logger:   logger,
		Observer: m,
	})
	attendancePoller.Start(ctx)
	dashboardPoller.Start(ctx)

	// attendance, staff and stock changes refresh both views; logged output only the dashboard
	changes := hub.Subscribe(16, events.AttendanceChanged, events.EmployeeRegistered, events.StockChanged, events.ProductionLogged)
	go func() {
		for ev := range changes.C {
			if ev.Name != events.ProductionLogged {
				attendancePoller.Trigger()
			}
			dashboardPoller.Trigger()
		}
	}()

	// expired cooldown entries
	go func() {
		ticker := time.NewTicker(cfg.ScanCooldown)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := scanSvc.Cooldown.Sweep(); n > 0 {
					logger.Debug("cooldown entries swept", "count", n)
				}
			}
		}
	}()

	// handlers
	healthHandler := handler.HealthHandler{Store: store}
	if pg != nil {
		healthHandler.DB = pg
	}
	scanHandler := handler.ScanHandler{Service: scanSvc}
	attendanceHandler := handler.AttendanceHandler{Service: attendanceSvc, Logger: logger}
	dashboardHandler := handler.DashboardHandler{Service: productionSvc, Refresh: dashboardPoller.Trigger}
	stockHandler := handler.StockHandler{Service: stockSvc}
	stockAdminHandler := handler.StockAdminHandler{Service: stockSvc, Events: hub}
	productionHandler := handler.ProductionHandler{Service: dailyProductionSvc, Events: hub}
	badgeHandler := handler.BadgeHandler{Attendance: attendanceSvc}
	eventsHandler := handler.EventsHandler{Hub: hub, Logger: logger}

	router := server.NewRouter(cfg, logger, authSvc,
		healthHandler,
		handler.DocsHandler{},
		handler.AuthHandler{Enabled: cfg.JWTSecret != ""},
		scanHandler,
		attendanceHandler,
		dashboardHandler,
		stockHandler,
		stockAdminHandler,
		productionHandler,
		badgeHandler,
		eventsHandler,
		scanLog,
	)

	shutdown := func() {
		attendancePoller.Stop()
		dashboardPoller.Stop()
		hub.Close()
	}
	if err := server.Start(ctx, cfg, router, logger, shutdown); err != nil {
		logger.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

// pruneScanLog drops audit rows older than retention once an hour.
func pruneScanLog(ctx context.Context, repo repository.ScanLogRepository, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := repo.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			logger.Warn("scan log prune failed", "err", err)
		} else if n > 0 {
			logger.Info("scan log pruned", "rows", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
