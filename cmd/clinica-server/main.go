package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinica/clinica/internal/config"
	"github.com/clinica/clinica/internal/domain/admission"
	"github.com/clinica/clinica/internal/domain/appointment"
	"github.com/clinica/clinica/internal/domain/audit"
	"github.com/clinica/clinica/internal/domain/clinical"
	"github.com/clinica/clinica/internal/domain/identity"
	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/db"
	"github.com/clinica/clinica/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinica-server",
		Short: "Clinical records API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed roles, permissions and the initial admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("admin-username")
			email, _ := cmd.Flags().GetString("admin-email")
			password, _ := cmd.Flags().GetString("admin-password")
			if password == "" {
				return fmt.Errorf("--admin-password is required")
			}

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			issuer := auth.NewIssuer(cfg.JWTSecret,
				time.Duration(cfg.AccessTokenTTLMin)*time.Minute,
				time.Duration(cfg.RefreshTokenTTLHrs)*time.Hour)
			identitySvc := identity.NewService(
				identity.NewUserRepoPG(pool),
				identity.NewRoleRepoPG(pool),
				issuer,
				identity.LockoutPolicy{
					MaxFailedLogins: cfg.MaxFailedLogins,
					LockoutDuration: time.Duration(cfg.LockoutMinutes) * time.Minute,
				},
				logger,
			)

			if err := identitySvc.Seed(ctx, username, email, password); err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			fmt.Println("Seed completed.")
			return nil
		},
	}
	cmd.Flags().String("admin-username", "admin", "Initial admin username")
	cmd.Flags().String("admin-email", "admin@clinica.local", "Initial admin email")
	cmd.Flags().String("admin-password", "", "Initial admin password")
	return cmd
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	issuer := auth.NewIssuer(cfg.JWTSecret,
		time.Duration(cfg.AccessTokenTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTokenTTLHrs)*time.Hour)

	// Repositories and services
	userRepo := identity.NewUserRepoPG(pool)
	roleRepo := identity.NewRoleRepoPG(pool)
	identitySvc := identity.NewService(userRepo, roleRepo, issuer, identity.LockoutPolicy{
		MaxFailedLogins: cfg.MaxFailedLogins,
		LockoutDuration: time.Duration(cfg.LockoutMinutes) * time.Minute,
	}, logger)

	patientRepo := clinical.NewPatientRepoPG(pool)
	recordRepo := clinical.NewRecordRepoPG(pool)
	clinicalSvc := clinical.NewService(patientRepo, recordRepo)

	admissionSvc := admission.NewService(admission.NewRepoPG(pool), patientRepo, logger)
	appointmentSvc := appointment.NewService(appointment.NewRepoPG(pool), patientRepo, cfg.ApptMinLeadDays, logger)
	auditSvc := audit.NewService(audit.NewRepoPG(pool), cfg.AuditRetentionDays, logger)

	guard := auth.NewGuard(identitySvc)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.EchoErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Login and refresh stay outside the auth middleware.
	public := e.Group("/api")
	public.Use(middleware.RateLimit(rateLimitCfg))

	api := e.Group("/api")
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(auth.Middleware(issuer))
	api.Use(middleware.Audit(logger, auditSvc))

	identity.NewHandler(identitySvc).RegisterRoutes(public, api, guard)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(api, guard)
	admission.NewHandler(admissionSvc).RegisterRoutes(api, guard)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(api, guard)
	audit.NewHandler(auditSvc).RegisterRoutes(api, guard)

	retentionCtx, stopRetention := context.WithCancel(ctx)
	defer stopRetention()
	go auditSvc.RunRetention(retentionCtx, 24*time.Hour)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
