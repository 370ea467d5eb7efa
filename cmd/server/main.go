package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/subcharge/backend/internal/config"
	"github.com/subcharge/backend/internal/handler"
	appMiddleware "github.com/subcharge/backend/internal/middleware"
	"github.com/subcharge/backend/internal/repository"
	"github.com/subcharge/backend/internal/service"
	"github.com/subcharge/backend/internal/ws"
	"github.com/subcharge/backend/pkg/payment"
)

func main() {
	// Load .env file if present (for local development)
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx := context.Background()

	// Initialize database
	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Database error: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatalf("❌ Migration error: %v", err)
	}
	log.Info("✅ Database connected & migrated")

	// Stores and gateway
	subRepo := repository.NewSubscriptionRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey)

	// Realtime notification hub
	hub := ws.NewHub(cfg.JWTSecret, log)

	// Billing engine + scheduler
	billing := service.NewBillingService(subRepo, profileRepo, gateway, hub, log, cfg)
	scheduler := service.NewScheduler(cfg.BillingSchedule, billing.RunCycle, log)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("❌ Scheduler error: %v", err)
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(db)
	paymentHandler := handler.NewPaymentHandler(profileRepo, subRepo, gateway, cfg, log)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery(log))
	r.Use(appMiddleware.Logger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	r.Use(globalRL.Middleware())

	r.Get("/health", healthHandler.Check)
	r.Post("/api/payment/setup", paymentHandler.Setup)
	r.Get("/api/subscriptions/{id}/confirm", paymentHandler.Confirm)

	// WebSocket notifications (auth via query param)
	r.HandleFunc("/ws/payments", hub.Handle)

	// Start server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must be 0 for WebSocket connections (they are long-lived)
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info("🛑 Shutting down...")

		// Let an in-flight billing cycle finish before exiting; cutting off
		// a gateway call mid-charge leaves the charge state indeterminate.
		scheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Infof("🚀 Subscription billing service listening at http://%s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("❌ Server error: %v", err)
	}
}
