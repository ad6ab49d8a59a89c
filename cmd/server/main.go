package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	_ "github.com/docvault/docfs/docs/api" // Swagger docs
	"github.com/docvault/docfs/internal/config"
	"github.com/docvault/docfs/internal/content"
	"github.com/docvault/docfs/internal/database"
	"github.com/docvault/docfs/internal/handlers"
	"github.com/docvault/docfs/internal/middleware"
	"github.com/docvault/docfs/internal/records"
	"github.com/docvault/docfs/internal/storage"
	"github.com/docvault/docfs/internal/types"
)

// @title docfs API
// @version 1.0.0
// @description Database-backed virtual document filesystem service
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/docvault/docfs

// @license.name MIT

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load .env if present; real environment wins
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Storage backend with the default text indexer
	store, err := storage.New(db, cfg, storage.TextIndexer)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Content engine; report generators register here
	engine := content.NewEngine(db)

	// Projected-model sources
	modelRegistry := records.NewRegistry()
	registerProjectedModels(db, modelRegistry)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("docfs")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Authorizer is initialized lazily on the first authenticated request
	middleware.SetupAuth(cfg)

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())
	api.Use(middleware.Identity())

	// Create handlers
	nodeHandler := &handlers.NodeHandler{
		DB:      db,
		Storage: store,
		Engine:  engine,
		Models:  modelRegistry,
		DBName:  cfg.DBAppDatabase,
	}
	adminHandler := &handlers.AdminHandler{DB: db, Models: modelRegistry}
	healthHandler := &handlers.HealthHandler{Cfg: cfg, DB: db}

	api.Get("/health", healthHandler.GetHealth)

	// Tree browsing (public GET, authenticated mutation)
	api.Get("/nodes/*", nodeHandler.GetNode)
	api.Get("/files/*", nodeHandler.GetFile)
	api.Put("/files/*", middleware.AuthUser(), nodeHandler.PutFile)
	api.Post("/files/*", middleware.AuthUser(), nodeHandler.PostFile)
	api.Post("/dirs/*", middleware.AuthAdmin(), nodeHandler.PostDir)

	// Admin registry routes
	admin := api.Group("/admin", middleware.AuthAdmin())
	admin.Post("/directories", adminHandler.CreateDirectory)
	admin.Put("/directories/:id", adminHandler.UpdateDirectory)
	admin.Delete("/directories/:id", adminHandler.DeleteDirectory)
	admin.Get("/directories/:id/path", adminHandler.GetDirectoryPath)
	admin.Post("/contents", adminHandler.CreateContentDefinition)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	log.Printf("Authorizer will be initialized on first authenticated request")

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// registerProjectedModels reads PROJECTED_MODELS, a semicolon-separated
// list of model:table[:nameField[:parentField]] entries, and registers
// a table source for each.
func registerProjectedModels(db *gorm.DB, reg *records.Registry) {
	raw := os.Getenv("PROJECTED_MODELS")
	if raw == "" {
		return
	}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 {
			log.Printf("Ignoring malformed PROJECTED_MODELS entry %q", entry)
			continue
		}
		nameField, parentField := "", ""
		if len(parts) > 2 {
			nameField = parts[2]
		}
		if len(parts) > 3 {
			parentField = parts[3]
		}
		reg.Register(records.NewTableSource(db, parts[0], parts[1], nameField, parentField))
		log.Printf("Registered projected model %s (table %s)", parts[0], parts[1])
	}
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Middleware errors carry their own status
	if e, ok := err.(*types.CustomError); ok {
		code = e.Code
		message = e.Message
		errorType = e.Type
	}

	// Core errors map their kind
	if e, ok := err.(*types.Error); ok {
		code = e.HTTPStatus()
		message = e.Message
		errorType = string(e.Kind)
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
