package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tunahanclrr/salon-api/internal/booking"
	"github.com/tunahanclrr/salon-api/internal/expiry"
	"github.com/tunahanclrr/salon-api/internal/handlers"
	"github.com/tunahanclrr/salon-api/internal/outbox"
	"github.com/tunahanclrr/salon-api/internal/storage"
	"github.com/tunahanclrr/salon-api/libs/config"
	"github.com/tunahanclrr/salon-api/libs/db"
	"github.com/tunahanclrr/salon-api/libs/httpx"
	"github.com/tunahanclrr/salon-api/libs/kafkax"
	"github.com/tunahanclrr/salon-api/libs/otelx"
	"github.com/tunahanclrr/salon-api/libs/runtime"
	"github.com/tunahanclrr/salon-api/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "salon-api")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrations.FS, "."); err != nil {
		logger.Error("migrations failed", "err", err)
		panic(err)
	}

	users := storage.NewUserRepository(pool)
	customers := storage.NewCustomerRepository(pool)
	employees := storage.NewEmployeeRepository(pool)
	services := storage.NewServiceRepository(pool)
	packages := storage.NewPackageRepository(pool)
	packs := storage.NewCustomerPackageRepository(pool)
	sales := storage.NewSaleRepository(pool)
	appts := storage.NewAppointmentRepository(pool)
	idem := storage.NewIdempotencyRepository(pool)
	checkout := storage.NewCheckoutRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	sweeper := expiry.NewWorker(pool, packs, sales, outboxRepo, logger, expiry.Config{
		SweepEvery: config.Duration("EXPIRY_SWEEP_EVERY", time.Minute),
		BatchSize:  config.Int("EXPIRY_BATCH_SIZE", 100),
	})
	go sweeper.Run(ctx)

	bookingService := booking.NewService(pool, appts, packs, sales, services, customers, employees, idem, outboxRepo, logger)

	authHandler := handlers.NewAuthHandler(users, jwtSecret, config.Duration("ACCESS_TOKEN_TTL", 12*time.Hour), logger)
	customerHandler := handlers.NewCustomerHandler(customers, logger)
	employeeHandler := handlers.NewEmployeeHandler(employees, logger)
	serviceHandler := handlers.NewServiceHandler(services, logger)
	packageHandler := handlers.NewPackageHandler(packages, services, logger)
	appointmentHandler := handlers.NewAppointmentHandler(bookingService, appts, logger)
	customerPackageHandler := handlers.NewCustomerPackageHandler(pool, packs, sales, logger)
	saleHandler := handlers.NewSaleHandler(pool, sales, packs, packages, services, customers, outboxRepo, logger)
	stripeHandler := handlers.NewStripeHandler(pool, sales, checkout, outboxRepo, logger, handlers.StripeConfig{
		SecretKey:        config.String("STRIPE_SECRET_KEY", ""),
		WebhookSecret:    config.String("STRIPE_WEBHOOK_SECRET", ""),
		WebhookTolerance: config.Duration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		Currency:         config.String("STRIPE_CURRENCY", "try"),
		SuccessURL:       config.String("STRIPE_SUCCESS_URL", "http://localhost:3000/sales/success"),
		CancelURL:        config.String("STRIPE_CANCEL_URL", "http://localhost:3000/sales/cancel"),
	})

	publicLimit := publicRateLimiter(ctx, logger)

	requireAuth := handlers.RequireAuth(jwtSecret)
	protect := func(module string, h http.HandlerFunc) http.Handler {
		return requireAuth(handlers.RequirePermission(module)(h))
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	// Public surface: availability, login and the Stripe callback.
	mux.Handle("/api/v1/public/slots", publicLimit(http.HandlerFunc(appointmentHandler.Slots)))
	mux.Handle("/api/v1/auth/login", publicLimit(http.HandlerFunc(authHandler.Login)))
	mux.Handle("/api/v1/auth/register", handlers.OptionalAuth(jwtSecret)(http.HandlerFunc(authHandler.Register)))
	mux.HandleFunc("/api/v1/webhooks/stripe", stripeHandler.Webhook)

	mux.Handle("/api/v1/auth/me", requireAuth(http.HandlerFunc(authHandler.Me)))
	mux.Handle("/api/v1/users", protect("settings", authHandler.Users))
	mux.Handle("/api/v1/users/permissions", protect("settings", authHandler.UpdatePermissions))

	mux.Handle("/api/v1/customers", protect("customers", customerHandler.Collection))
	mux.Handle("/api/v1/customers/item", protect("customers", customerHandler.Item))

	mux.Handle("/api/v1/employees", protect("settings", employeeHandler.Collection))
	mux.Handle("/api/v1/employees/item", protect("settings", employeeHandler.Item))
	mux.Handle("/api/v1/services", protect("settings", serviceHandler.Collection))
	mux.Handle("/api/v1/services/item", protect("settings", serviceHandler.Item))
	mux.Handle("/api/v1/packages", protect("settings", packageHandler.Collection))
	mux.Handle("/api/v1/packages/item", protect("settings", packageHandler.Item))

	mux.Handle("/api/v1/appointments", protect("appointments", appointmentHandler.Collection))
	mux.Handle("/api/v1/appointments/item", protect("appointments", appointmentHandler.Item))
	mux.Handle("/api/v1/appointments/cancel", protect("appointments", appointmentHandler.Cancel))
	mux.Handle("/api/v1/appointments/not-arrived", protect("appointments", appointmentHandler.NotArrived))

	mux.Handle("/api/v1/sales", protect("sales", saleHandler.Collection))
	mux.Handle("/api/v1/sales/item", protect("sales", saleHandler.Item))
	mux.Handle("/api/v1/sales/payments", protect("sales", saleHandler.AddPayment))
	mux.Handle("/api/v1/sales/installments/pay", protect("sales", saleHandler.PayInstallment))
	mux.Handle("/api/v1/sales/cancel", protect("sales", saleHandler.Cancel))
	mux.Handle("/api/v1/sales/checkout", protect("sales", stripeHandler.Checkout))

	mux.Handle("/api/v1/customer-packages", protect("sales", customerPackageHandler.List))
	mux.Handle("/api/v1/customer-packages/item", protect("sales", customerPackageHandler.Get))
	mux.Handle("/api/v1/customer-packages/use", protect("sales", customerPackageHandler.UseSessions))
	mux.Handle("/api/v1/customer-packages/add-session", protect("sales", customerPackageHandler.AddSessions))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(splitComma(config.String("CORS_ALLOWED_ORIGINS", ""))),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// publicRateLimiter limits the unauthenticated endpoints. Redis gives a
// shared window across instances; without it a per-process window has to do.
func publicRateLimiter(ctx context.Context, logger *slog.Logger) httpx.Middleware {
	limit := config.Int("PUBLIC_RATE_LIMIT", 60)
	window := config.Duration("PUBLIC_RATE_WINDOW", time.Minute)

	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return httpx.NewRateLimiter(limit, window).Middleware()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: config.String("REDIS_PASSWORD", "")})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory rate limiter", "err", err)
		return httpx.NewRateLimiter(limit, window).Middleware()
	}
	return httpx.NewRedisRateLimiter(rdb, limit, window, "rl:public").Middleware(logger, true)
}

func splitComma(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
