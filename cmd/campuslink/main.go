package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/campuslink/campuslink/internal/app"
	"github.com/campuslink/campuslink/internal/auth"
	"github.com/campuslink/campuslink/internal/channels"
	"github.com/campuslink/campuslink/internal/dashboard"
	"github.com/campuslink/campuslink/internal/notifications"
	"github.com/campuslink/campuslink/internal/observability"
	"github.com/campuslink/campuslink/internal/platform/db"
	"github.com/campuslink/campuslink/internal/platform/objstore"
	"github.com/campuslink/campuslink/internal/profiles"
	"github.com/campuslink/campuslink/internal/requests"
	"github.com/campuslink/campuslink/internal/roles"
	"github.com/campuslink/campuslink/internal/shared"
	"github.com/campuslink/campuslink/internal/view"
	"github.com/campuslink/campuslink/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "campuslink_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	attachments, err := objstore.New(objstore.Config{
		Endpoint:   cfg.S3Endpoint,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Bucket:     cfg.S3Bucket,
		UseSSL:     cfg.S3UseSSL,
		PresignTTL: cfg.S3PresignTTL,
	})
	if err != nil {
		logger.Error("init object store", slog.Any("error", err))
		os.Exit(1)
	}
	if err := attachments.EnsureBucket(ctx); err != nil {
		logger.Warn("ensure attachment bucket", slog.Any("error", err))
	}

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	resetMailer := jobs.NewResetMailer(jobClient, cfg.ResetCodeTTL)

	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	authService := auth.NewService(auth.NewRepository(dbpool), resetMailer, cfg.ResetCodeTTL)
	rolesService := roles.NewService(roles.NewRepository(dbpool), auditLogger)
	channelsService := channels.NewService(channels.NewRepository(dbpool), rolesService, attachments, auditLogger)
	notificationsService := notifications.NewService(notifications.NewRepository(dbpool))
	requestsService := requests.NewService(requests.NewRepository(dbpool), auditLogger, notificationsService)
	profilesService := profiles.NewService(profiles.NewRepository(dbpool), rolesService)
	dashboardService := dashboard.NewService(
		dashboard.NewNewsRepository(dbpool),
		dashboard.NewEventsRepository(dbpool),
		channelsService,
	)

	authz := shared.AuthzMiddleware{Resolve: authService.ActorFor, Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Authz:          authz,

		AuthHandler:          auth.NewHandler(logger, authService, templates, sessionManager),
		DashboardHandler:     dashboard.NewHandler(dashboardService, templates, logger),
		RolesHandler:         roles.NewHandler(rolesService, authService.ActorFor, logger),
		ChannelsHandler:      channels.NewHandler(channelsService, authService.ActorFor, templates, logger),
		RequestsHandler:      requests.NewHandler(requestsService, rolesService, authService, channelsService, authService.ActorFor, templates, logger),
		ProfilesHandler:      profiles.NewHandler(profilesService, authService, templates, logger),
		NotificationsHandler: notifications.NewHandler(notificationsService, templates, logger),
		JobsHandler:          jobs.NewHandler(asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), logger),

		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
