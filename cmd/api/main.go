package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/kasira/billing-api/docs" // Swagger docs
	"github.com/kasira/billing-api/internal/config"
	"github.com/kasira/billing-api/internal/database"
	"github.com/kasira/billing-api/internal/handlers"
	"github.com/kasira/billing-api/internal/jobs"
	"github.com/kasira/billing-api/internal/middleware"
	"github.com/kasira/billing-api/internal/repository"
	"github.com/kasira/billing-api/internal/services"
	"github.com/kasira/billing-api/pkg/logger"
)

// @title Billing API
// @version 1.0
// @description REST API for the billing and cash-flow admin console

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.Environment)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	store := repository.NewStore(db)

	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	svcs := services.NewServices(store, cfg)

	scheduleJobs(worker, svcs)

	h := handlers.NewHandlers(svcs, worker)

	router := setupRouter(h, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	worker.Shutdown()
	logger.Info("Background worker stopped")

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		// Health check (public)
		v1.GET("/health", h.Health.Index)

		// Authentication (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			protected.GET("/health/worker", h.Health.WorkerStats)

			// User management
			users := protected.Group("/users")
			{
				users.GET("", middleware.RequirePermission(middleware.PermUserView), h.User.Index)
				users.GET("/:id", middleware.RequirePermission(middleware.PermUserView), h.User.Show)
				users.POST("", middleware.RequirePermission(middleware.PermUserManage), h.User.Create)
				users.PUT("/:id", middleware.RequirePermission(middleware.PermUserManage), h.User.Update)
				users.DELETE("/:id", middleware.RequirePermission(middleware.PermUserManage), h.User.Destroy)
			}

			// Master data: clients
			clients := protected.Group("/clients")
			{
				clients.GET("", middleware.RequirePermission(middleware.PermClientView), h.Client.Index)
				clients.GET("/:id", middleware.RequirePermission(middleware.PermClientView), h.Client.Show)
				clients.POST("", middleware.RequirePermission(middleware.PermClientManage), h.Client.Create)
				clients.PUT("/:id", middleware.RequirePermission(middleware.PermClientManage), h.Client.Update)
				clients.DELETE("/:id", middleware.RequirePermission(middleware.PermClientManage), h.Client.Destroy)
			}

			// Master data: products
			products := protected.Group("/products")
			{
				products.GET("", middleware.RequirePermission(middleware.PermProductView), h.Product.Index)
				products.GET("/:id", middleware.RequirePermission(middleware.PermProductView), h.Product.Show)
				products.POST("", middleware.RequirePermission(middleware.PermProductManage), h.Product.Create)
				products.PUT("/:id", middleware.RequirePermission(middleware.PermProductManage), h.Product.Update)
				products.DELETE("/:id", middleware.RequirePermission(middleware.PermProductManage), h.Product.Destroy)
			}

			// Master data: bank accounts (kas)
			accounts := protected.Group("/bank-accounts")
			{
				accounts.GET("", middleware.RequirePermission(middleware.PermKasView), h.BankAccount.Index)
				accounts.GET("/:id", middleware.RequirePermission(middleware.PermKasView), h.BankAccount.Show)
				accounts.GET("/:id/verify", middleware.RequirePermission(middleware.PermKasView), h.BankAccount.Verify)
				accounts.POST("", middleware.RequirePermission(middleware.PermKasManage), h.BankAccount.Create)
				accounts.PUT("/:id", middleware.RequirePermission(middleware.PermKasManage), h.BankAccount.Update)
				accounts.DELETE("/:id", middleware.RequirePermission(middleware.PermKasManage), h.BankAccount.Destroy)
				accounts.POST("/:id/adjust", middleware.RequirePermission(middleware.PermKasManage), h.BankAccount.Adjust)
			}

			// Subscriptions
			subscriptions := protected.Group("/subscriptions")
			{
				subscriptions.GET("", middleware.RequirePermission(middleware.PermSubscriptionView), h.Subscription.Index)
				subscriptions.GET("/:id", middleware.RequirePermission(middleware.PermSubscriptionView), h.Subscription.Show)
				subscriptions.POST("", middleware.RequirePermission(middleware.PermSubscriptionManage), h.Subscription.Create)
				subscriptions.POST("/:id/cancel", middleware.RequirePermission(middleware.PermSubscriptionManage), h.Subscription.Cancel)
				subscriptions.POST("/:id/renew", middleware.RequirePermission(middleware.PermSubscriptionManage), h.Subscription.Renew)
			}

			// Invoices
			invoices := protected.Group("/invoices")
			{
				invoices.GET("", middleware.RequirePermission(middleware.PermInvoiceView), h.Invoice.Index)
				invoices.GET("/:id", middleware.RequirePermission(middleware.PermInvoiceView), h.Invoice.Show)
				invoices.GET("/:id/pdf", middleware.RequirePermission(middleware.PermInvoiceView), h.Invoice.DownloadPDF)
				invoices.POST("", middleware.RequirePermission(middleware.PermInvoiceManage), h.Invoice.Create)
				invoices.PUT("/:id", middleware.RequirePermission(middleware.PermInvoiceManage), h.Invoice.Update)
				invoices.DELETE("/:id", middleware.RequirePermission(middleware.PermInvoiceManage), h.Invoice.Destroy)
			}

			// Payments (the money movement engine)
			payments := protected.Group("/payments")
			{
				payments.GET("", middleware.RequirePermission(middleware.PermPaymentView), h.Payment.Index)
				payments.GET("/:id", middleware.RequirePermission(middleware.PermPaymentView), h.Payment.Show)
				payments.POST("", middleware.RequirePermission(middleware.PermPaymentManage), h.Payment.Create)
				payments.POST("/:id/reverse", middleware.RequirePermission(middleware.PermPaymentManage), h.Payment.Reverse)
				payments.DELETE("/:id", middleware.RequirePermission(middleware.PermPaymentManage), h.Payment.Destroy)
			}

			// Cash flow ledger
			cashFlow := protected.Group("/cash-flow")
			{
				cashFlow.GET("", middleware.RequirePermission(middleware.PermCashFlowView), h.CashFlow.Index)
				cashFlow.GET("/export", middleware.RequirePermission(middleware.PermReportExport), h.CashFlow.ExportCSV)
				cashFlow.POST("", middleware.RequirePermission(middleware.PermCashFlowManage), h.CashFlow.Create)
				cashFlow.PUT("/:id", middleware.RequirePermission(middleware.PermCashFlowManage), h.CashFlow.Update)
				cashFlow.DELETE("/:id", middleware.RequirePermission(middleware.PermCashFlowManage), h.CashFlow.Destroy)
			}

			// Reports
			reports := protected.Group("/reports")
			{
				reports.GET("/financial-summary", middleware.RequirePermission(middleware.PermReportView), h.Report.FinancialSummary)
				reports.GET("/invoice-overview", middleware.RequirePermission(middleware.PermReportView), h.Report.InvoiceOverview)
				reports.GET("/financial-summary/export", middleware.RequirePermission(middleware.PermReportExport), h.Report.ExportFinancialSummary)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services) {
	// Persist UNPAID → OVERDUE for invoices past due
	worker.ScheduleEveryImmediate(1*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Marking overdue invoices...")
		_, err := svcs.Invoice.MarkOverdueInvoices(ctx, time.Now())
		return err
	})

	// Roll back payments whose recording never completed
	worker.ScheduleEveryImmediate(15*time.Minute, func(ctx context.Context) error {
		logger.Info("[Job] Recovering stale pending payments...")
		_, err := svcs.Reconciliation.RecoverPendingPayments(ctx, time.Now())
		return err
	})

	// Expire active subscriptions past their expiry date
	worker.ScheduleEvery(6*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Expiring subscriptions...")
		_, err := svcs.Subscription.ExpireSubscriptions(ctx, time.Now())
		return err
	})

	// Verify stored balances against the ledger
	worker.ScheduleEvery(24*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Auditing bank account balances...")
		_, err := svcs.Reconciliation.AuditBalances(ctx)
		return err
	})

	logger.Info("Scheduled recurring jobs")
}
