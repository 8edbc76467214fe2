package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/otcheredev/practice-subscriptions/internal/cache"
	"github.com/otcheredev/practice-subscriptions/internal/config"
	"github.com/otcheredev/practice-subscriptions/internal/database"
	"github.com/otcheredev/practice-subscriptions/internal/handlers"
	"github.com/otcheredev/practice-subscriptions/internal/metrics"
	"github.com/otcheredev/practice-subscriptions/internal/repository"
	"github.com/otcheredev/practice-subscriptions/internal/services"
	"github.com/otcheredev/practice-subscriptions/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "practice-subscriptions",
		Short:         "Subscription and usage accounting for multi-tenant practices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(plansCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// setup loads and validates configuration, initialises logging and opens
// the database.
func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Connect(database.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		DBName:       cfg.Database.DBName,
		SSLMode:      cfg.Database.SSLMode,
		LogLevel:     cfg.Database.LogLevel,
		MaxOpenConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := setup()
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Info().Msg("Migrations applied")
			return nil
		},
	}
}

func plansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Manage the plan catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Create or refresh the default Basic, Professional and Enterprise plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := setup()
			if err != nil {
				return err
			}
			defer database.Close()

			plans, err := services.NewPlanService(repository.NewPlanRepository(db)).SeedDefaults(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to seed plans: %w", err)
			}
			for _, plan := range plans {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s/month\n", plan.ID, plan.Name, plan.MonthlyPrice.StringFixed(2))
			}
			return nil
		},
	})
	return cmd
}

func runServer() error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer database.Close()

	log.Info().Str("env", cfg.Env).Bool("strict_limits", cfg.Limits.Strict).Msg("Starting subscription service")

	// Initialize cache
	var (
		cacheImpl cache.Cache
		pinger    handlers.Pinger
	)
	switch {
	case !cfg.Cache.Enabled:
		log.Info().Msg("Cache disabled")
	case cfg.Cache.Type == "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisOptions{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return err
		}
		cacheImpl, pinger = redisCache, redisCache
		log.Info().Str("addr", cfg.RedisAddr()).Msg("Redis cache initialized")
	default:
		cacheImpl = cache.NewMemoryCache(cfg.Cache.MaxEntries, time.Hour)
		log.Info().Int("max_entries", cfg.Cache.MaxEntries).Msg("Memory cache initialized")
	}
	if cacheImpl != nil {
		defer cacheImpl.Close()
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize repositories
	orgRepo := repository.NewOrganizationRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	planRepo := repository.NewPlanRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	userRepo := repository.NewUserRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Initialize services
	loc := cfg.Location()
	subscriptionService := services.NewSubscriptionService(orgRepo, subRepo, planRepo, usageRepo, auditRepo, services.SubscriptionOptions{
		Location: loc,
		Strict:   cfg.Limits.Strict,
		Metrics:  m,
	})
	recordsService := services.NewRecordsService(subscriptionService, patientRepo, userRepo, appointmentRepo)
	dashboardService := services.NewDashboardService(subscriptionService, patientRepo, userRepo, appointmentRepo, services.DashboardOptions{
		Cache:    cacheImpl,
		TTL:      cfg.Dashboard.CacheTTL,
		Metrics:  m,
		Location: loc,
	})
	backupService := services.NewBackupService(subscriptionService, orgRepo, recordsService, auditRepo)
	planService := services.NewPlanService(planRepo)
	organizationService := services.NewOrganizationService(orgRepo, subscriptionService, auditRepo)

	routerCfg := handlers.RouterConfig{
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Metrics:        m,
		Health:         handlers.NewHealthHandler(db, pinger),
		Subscription:   handlers.NewSubscriptionHandler(subscriptionService),
		Records:        handlers.NewRecordsHandler(recordsService),
		Dashboard:      handlers.NewDashboardHandler(dashboardService, backupService),
		Admin:          handlers.NewAdminHandler(planService, organizationService, subscriptionService),
		Features:       subscriptionService,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = handlers.DefaultMetricsHandler()
	}

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handlers.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
