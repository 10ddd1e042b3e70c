package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	appHTTP "github.com/cmlabs-hris/payroll-engine/internal/handler/http"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/events"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/postgresql"
	auditService "github.com/cmlabs-hris/payroll-engine/internal/service/audit"
	compensationService "github.com/cmlabs-hris/payroll-engine/internal/service/compensation"
	payrollService "github.com/cmlabs-hris/payroll-engine/internal/service/payroll"
	"github.com/go-chi/httplog/v3"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "payroll engine:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "development")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.LogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "payroll-engine"),
		slog.String("version", cfg.App.Version),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer db.Close()

	transactor := postgresql.NewTransactor(db)
	runRepo := postgresql.NewRunRepository(db)
	payslipRepo := postgresql.NewPayslipRepository(db)
	resolutionRepo := postgresql.NewAnomalyResolutionRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	configRepo := postgresql.NewPayrollConfigRepository(db)
	compensationRepo := postgresql.NewCompensationRepository(db)
	leaveRepo := postgresql.NewLeaveRepository(db)
	auditRepo := postgresql.NewAuditRepository(db)

	var locker lock.RunLocker
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("error connecting to redis: %w", err)
		}
		locker = lock.NewRedisLocker(redisClient, cfg.Redis.LockTTL)
		logger.Info("Using redis run lock", "addr", cfg.Redis.Addr)
	} else {
		locker = lock.NewKeyedMutex()
		logger.Warn("REDIS_ADDR not set, run lock is local to this instance")
	}

	runEventsHub := sse.NewHub()
	publisher := events.NewMultiPublisher(runEventsHub)
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewMultiPublisher(runEventsHub, events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.RunEventsTopic))
		logger.Info("Publishing run events", "topic", cfg.Kafka.RunEventsTopic)
	}
	defer publisher.Close()

	var fileStorage storage.FileStorage
	switch cfg.Storage.Type {
	case "local":
		fileStorage, err = storage.NewLocalStorage(cfg.Storage.BasePath, cfg.Storage.BaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize local storage: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	auditSvc := auditService.NewAuditService(auditRepo)
	compensationSvc := compensationService.NewCompensationService(transactor, compensationRepo, auditSvc, logger)
	payrollSvc := payrollService.NewPayrollService(
		payrollService.Dependencies{
			Transactor:       transactor,
			RunRepo:          runRepo,
			PayslipRepo:      payslipRepo,
			ResolutionRepo:   resolutionRepo,
			EmployeeRepo:     employeeRepo,
			ConfigRepo:       configRepo,
			CompensationRepo: compensationRepo,
			LeaveRepo:        leaveRepo,
			Gate:             compensationSvc,
			Audit:            auditSvc,
			Locker:           locker,
			Publisher:        publisher,
			Storage:          fileStorage,
			Logger:           logger,
		},
		payrollService.Options{
			MinimumWage:    cfg.Payroll.MinimumWage,
			Workers:        cfg.Payroll.Workers,
			SpikeThreshold: cfg.Payroll.SpikeThreshold,
			LockWait:       cfg.Payroll.LockWait,
			Currency:       cfg.Payroll.Currency,
			CompanyName:    cfg.Payroll.CompanyName,
		},
	)

	scheduler := cron.NewScheduler(logger)
	scheduler.AddJob(cron.Job{
		Name:     "anomaly-scan",
		Interval: cfg.Cron.AnomalyScanInterval,
		Timeout:  5 * time.Minute,
		Fn:       payrollSvc.ScanAnomalies,
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	router := appHTTP.NewRouter(
		appHTTP.RouterOptions{
			Logger:         logger,
			AllowedOrigins: cfg.App.AllowedOrigins,
			FilesPath:      cfg.Storage.BasePath,
		},
		JWTService,
		appHTTP.NewPayrollHandler(payrollSvc),
		appHTTP.NewCompensationHandler(compensationSvc),
		appHTTP.NewAuditHandler(auditSvc),
		appHTTP.NewRunEventsHandler(runEventsHub),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Open event streams end when the hub closes.
	server.RegisterOnShutdown(func() { _ = runEventsHub.Close() })

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server running", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
