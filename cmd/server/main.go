package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oneplusresilience/backend/docs"
	"github.com/oneplusresilience/backend/internal/chat"
	"github.com/oneplusresilience/backend/internal/config"
	"github.com/oneplusresilience/backend/internal/database"
	mW "github.com/oneplusresilience/backend/internal/middleware"
	"github.com/oneplusresilience/backend/internal/models"
	"github.com/oneplusresilience/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title OnePlus Resilience Membership API
// @version 1.0
// @description NGO membership, payment verification and chat backend
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

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
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("membership.annual_fee", "MEMBERSHIP_ANNUAL_FEE")
	viper.BindEnv("webhook.secret", "WEBHOOK_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	services.SetAuthDefaults()

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "OnePlus Resilience Membership API"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	fees := config.GetFeeSchedule()
	membershipService := services.NewMembershipService(db, fees)
	verificationService := services.NewVerificationService(db, membershipService, config.VerifierRoles())
	paymentService := services.NewPaymentService(db, redisClient, membershipService)
	authService := services.NewAuthService(db, redisClient, membershipService)
	meetingService := services.NewMeetingService(db)
	suggestionService := services.NewSuggestionService(db)

	chatHub := chat.NewHub(redisClient)
	chatStore := chat.NewStore(db)
	chatHandler := chat.NewHandler(chatHub, chatStore)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Uploaded payment proofs
	r.Handle("/static/payment-proofs/*", http.StripPrefix("/static/payment-proofs/",
		mW.StaticFileServer("./static/payment-proofs")))

	// WebSocket chat: the session does its own token handling so browsers can
	// pass the token as a query parameter.
	r.Get("/ws/chat/{roomId}", chatHandler.ServeWS)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Post("/webhooks/payment", verificationService.PaymentWebhook)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)

			r.Get("/membership/status", membershipService.GetMyStatus)

			r.Post("/payments", paymentService.SubmitPayment)
			r.Get("/payments", paymentService.ListMyPayments)
			r.Get("/payments/instructions", paymentService.PaymentInstructions)
			r.Get("/payments/{paymentId}", paymentService.GetPayment)

			r.Post("/suggestions", suggestionService.SubmitSuggestion)
			r.Get("/meetings", meetingService.ListMeetings)

			r.Post("/chat/rooms", chatHandler.CreateRoom)
			r.Get("/chat/rooms", chatHandler.ListRooms)
			r.Get("/chat/rooms/{roomId}/messages", chatHandler.ListMessages)

			// Role-gated endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRoles(models.RoleAdmin, models.RoleAccountant))
				r.Post("/payments/{paymentId}/verify", verificationService.VerifyPayment)
				r.Post("/payments/{paymentId}/reject", verificationService.RejectPayment)
			})

			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRoles(models.RoleAdmin, models.RoleManager, models.RoleStaff))
				r.Get("/payments/all", paymentService.ListAllPayments)
				r.Get("/members", membershipService.ListMembers)
				r.Get("/suggestions", suggestionService.ListSuggestions)
			})

			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRoles(models.RoleAdmin, models.RoleManager))
				r.Post("/meetings", meetingService.CreateMeeting)
			})
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
