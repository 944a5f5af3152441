package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/sliqpay/backend/internal/cache"
	"github.com/sliqpay/backend/internal/database"
	"github.com/sliqpay/backend/internal/mailer"
	mW "github.com/sliqpay/backend/internal/middleware"
	"github.com/sliqpay/backend/internal/services"
	"github.com/sliqpay/backend/internal/session"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("environment", "ENVIRONMENT")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("session.cookie_name", "SESSION_COOKIE_NAME")
	viper.BindEnv("session.ttl_seconds", "SESSION_TTL_SECONDS")
	viper.BindEnv("cookie.domain", "COOKIE_DOMAIN")
	viper.BindEnv("reset_token.ttl_seconds", "RESET_TOKEN_TTL_SECONDS")
	viper.BindEnv("frontend.url", "FRONTEND_URL")
	viper.BindEnv("email.api_key", "EMAIL_API_KEY")
	viper.BindEnv("email.from", "EMAIL_FROM")
	viper.BindEnv("signup.require_funded_account", "SIGNUP_REQUIRE_FUNDED_ACCOUNT")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Process-wide singletons: database pool and key-value store
	db := database.InitDatabase()
	defer db.Close()

	store := cache.Init()
	defer cache.Shutdown()

	sessions := session.NewManager(store)
	mail := mailer.New()

	authService := services.NewAuthService(db, store, sessions, mail)
	accountService := services.NewAccountService(db)
	transactionService := services.NewTransactionService(db)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", services.HealthHandler(store))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Soft global limit protecting the whole surface
		r.Use(mW.RateLimit(store, mW.RateLimitOptions{Bucket: "api:global", WindowSeconds: 60, Limit: 600}))
		r.Use(mW.SessionMiddleware(sessions))

		r.Get("/health", services.HealthHandler(store))

		r.Route("/auth", func(r chi.Router) {
			r.With(mW.RateLimit(store, mW.RateLimitOptions{Bucket: "auth:signup", WindowSeconds: 600, Limit: 3})).
				Post("/signup", authService.Signup)
			r.With(mW.RateLimit(store, mW.RateLimitOptions{Bucket: "auth:login", WindowSeconds: 60, Limit: 5})).
				Post("/login", authService.Login)
			r.With(mW.RateLimit(store, mW.RateLimitOptions{Bucket: "auth:forgot", WindowSeconds: 300, Limit: 5})).
				Post("/forgotpassword", authService.ForgotPassword)
			r.With(mW.RateLimit(store, mW.RateLimitOptions{Bucket: "auth:reset", WindowSeconds: 300, Limit: 5})).
				Post("/resetpassword", authService.ResetPassword)
			r.Post("/logout", authService.Logout)
			// Me resolves the user itself and answers 401 for anonymous
			// callers, so the optional guard is enough here.
			r.With(mW.OptionalAuth(db)).Get("/me", authService.Me)
		})

		r.Route("/account", func(r chi.Router) {
			r.Post("/", accountService.CreateAccount)
			r.Get("/user/{userId}", accountService.GetUserAccounts)
			r.Get("/{id}", accountService.GetAccount)
			// Direct balance writes bypass the ledger invariant, so
			// only authenticated callers may use them.
			r.With(mW.RequireAuth(db)).Patch("/{id}/balance", accountService.UpdateBalance)
		})

		r.Route("/transaction", func(r chi.Router) {
			r.Post("/", transactionService.CreateTransaction)
			r.Get("/account/{accountId}", transactionService.ListAccountTransactions)
			r.Get("/{id}", transactionService.GetTransaction)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
