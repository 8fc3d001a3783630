package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/billing"
	"github.com/clinic/clinic/internal/domain/clocking"
	"github.com/clinic/clinic/internal/domain/laboratory"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/pharmacy"
	"github.com/clinic/clinic/internal/domain/staff"
	"github.com/clinic/clinic/internal/domain/visit"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic visit workflow API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	return rl
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() && cfg.AuthIssuer == "" && cfg.AuthSigningKey == "" {
		return auth.DevAuthMiddleware()
	}
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthSigningKey != "" {
		jc.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return auth.JWTMiddleware(jc)
}

func runServer() error {
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	pricing, err := billing.PricingFromConfig(cfg.Billing)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid billing configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.WatchPool(reg, func() int32 { return pool.Stat().AcquiredConns() })

	e := newServer(cfg, pool, pricing, m, logger)

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
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newServer(cfg *config.Config, pool *pgxpool.Pool, pricing billing.Pricing, m *metrics.Metrics, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(m.Middleware())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	if cfg.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.BodyLimit))
	}
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	api := e.Group("/api", authMiddleware(cfg), db.TenantMiddleware(pool, cfg.DefaultTenant))
	api.Use(middleware.RateLimit(rateLimitConfig(cfg)))

	tx := db.NewTxManager(pool)

	staffSvc := staff.NewService(staff.NewRepo(pool))
	patientSvc := patient.NewService(patient.NewRepo(pool))
	apptSvc := appointment.NewService(appointment.NewRepo(pool))
	visitSvc := visit.NewService(visit.NewRepo(pool), patientSvc, apptSvc, tx)
	labSvc := laboratory.NewService(laboratory.NewRepo(pool), visitSvc)
	pharmacySvc := pharmacy.NewService(pharmacy.NewStockRepo(pool), pharmacy.NewPrescriptionRepo(pool), visitSvc, tx)

	invoices := billing.NewInvoiceRepoPG(pool)
	charges := billing.NewServiceChargeRepoPG(pool)
	billingSvc := billing.NewService(invoices, billing.NewPaymentRepoPG(pool), charges, pricing, m)
	generator := billing.NewGenerator(billing.GeneratorDeps{
		Visits:        visitSvc,
		Patients:      patientSvc,
		Labs:          labSvc,
		Prescriptions: pharmacySvc,
		Drugs:         pharmacySvc,
		Charges:       charges,
		Invoices:      invoices,
		Metrics:       m,
		Logger:        logger.With().Str("component", "invoice-generator").Logger(),
	}, pricing)

	dispatcher := notification.NewDispatcher(
		notification.NewEmailSender(cfg.SMTP, logger),
		notification.NewStorePG(pool),
		notification.NewTemplateEngine(),
		m,
		logger.With().Str("component", "notifications").Logger(),
	)

	clockingSvc := clocking.NewService(clocking.Deps{
		Visits:       visitSvc,
		Appointments: apptSvc,
		Patients:     patientSvc,
		Staff:        staffSvc,
		Invoices:     generator,
		Billing:      billingSvc,
		Notifier:     dispatcher,
		Tx:           tx,
		Metrics:      m,
		Logger:       logger.With().Str("component", "clocking").Logger(),
	})

	visitViews := visit.NewAssembler(patientSvc, staffSvc)
	invoiceViews := billing.NewAssembler(visitSvc, patientSvc)

	staff.NewHandler(staffSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	appointment.NewHandler(apptSvc).RegisterRoutes(api)
	visit.NewHandler(visitSvc, visitViews).RegisterRoutes(api)
	laboratory.NewHandler(labSvc).RegisterRoutes(api)
	pharmacy.NewHandler(pharmacySvc).RegisterRoutes(api)
	billing.NewHandler(billingSvc, generator, invoiceViews).RegisterRoutes(api)
	clocking.NewHandler(clockingSvc, visitViews, invoiceViews).RegisterRoutes(api)
	notification.NewHandler(dispatcher).RegisterRoutes(api)

	return e
}
