package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/rescueroute/rescueroute-backend/database"
	"github.com/rescueroute/rescueroute-backend/internal/jobs"
	"github.com/rescueroute/rescueroute-backend/internal/models"
	"github.com/rescueroute/rescueroute-backend/internal/routes"
	"github.com/rescueroute/rescueroute-backend/internal/services"
	"github.com/rescueroute/rescueroute-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}

	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// Initialize storage
	var store storage.Store

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.User{},
			&models.Listing{},
			&models.Claim{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}
	storage.SetStore(store)

	// Initialize the notifier: NATS when configured, log-only otherwise
	var notifier services.Notifier = services.LogNotifier{}
	var natsNotifier *services.NatsNotifier
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		var err error
		natsNotifier, err = services.NewNatsNotifier(natsURL)
		if err != nil {
			log.Printf("⚠️  NATS unavailable (%v) - falling back to log notifier", err)
		} else {
			notifier = natsNotifier
			log.Println("✅ NATS notifier connected")
		}
	}

	lifecycle := services.NewLifecycleService(store, notifier)

	// Start the expiry sweeper
	sweepInterval := jobs.DefaultSweepInterval
	if raw := os.Getenv("EXPIRY_SWEEP_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Printf("⚠️  Invalid EXPIRY_SWEEP_INTERVAL %q - using %v", raw, sweepInterval)
		} else {
			sweepInterval = parsed
		}
	}
	expiryJob := jobs.NewExpiryJob(store, sweepInterval)
	expiryJob.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "RescueRoute Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "RescueRoute Backend API",
			"version": "1.0.0",
			"status":  "healthy",
			"storage": getStorageType(),
			"endpoints": fiber.Map{
				"health":   "/health",
				"metrics":  "/metrics",
				"auth":     "/api/auth",
				"listings": "/api/listings",
				"claims":   "/api/claims",
				"stats":    "/api/stats/public",
			},
		})
	})

	routes.SetupRoutes(app, store, lifecycle)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping expiry job...")
		expiryJob.Stop()
		if natsNotifier != nil {
			log.Println("⏹️  Draining NATS connection...")
			natsNotifier.Close()
		}
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 RescueRoute Backend starting on port %s", port)
	log.Printf("📊 Storage: %s", getStorageType())
	log.Printf("⏰ Expiry sweep every %v", sweepInterval)
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

func getStorageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}
