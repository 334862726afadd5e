package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"printwerk/internal/handlers"
	"printwerk/internal/mailer"
	"printwerk/internal/models"
	"printwerk/internal/repositories"
	"printwerk/internal/services"
	"printwerk/internal/storage"
	"printwerk/internal/views"
	"printwerk/pkg/rabbitmq"
)

// Config holds all runtime settings, loaded from environment variables.
type Config struct {
	AppPort         string
	DatabaseURL     string
	DataDir         string
	MaxUploadMB     int
	SiteName        string
	DefaultCurrency string
	PublicBaseURL   string
	AdminUser       string
	AdminPassword   string
	SessionSecret   string
	RabbitMQURL     string
	MailServer      string
	MailPort        int
	MailUsername    string
	MailPassword    string
	MailFrom        string
}

// LoadConfig reads the configuration from the environment with sensible
// defaults for a single-node deployment.
func LoadConfig() Config {
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DATABASE_URL", "data/app.db")
	viper.SetDefault("DATA_DIR", "data")
	viper.SetDefault("MAX_UPLOAD_MB", 10)
	viper.SetDefault("SITE_NAME", "3D Auftragsmanager")
	viper.SetDefault("DEFAULT_CURRENCY", "EUR")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	viper.SetDefault("ADMIN_USER", "admin")
	viper.SetDefault("ADMIN_PASSWORD", "change_me")
	viper.SetDefault("SESSION_SECRET", "change_me_to_a_long_random_string")
	viper.SetDefault("RABBITMQ_URL", "") // empty disables events and mail
	viper.SetDefault("MAIL_SERVER", "localhost")
	viper.SetDefault("MAIL_PORT", 587)
	viper.SetDefault("MAIL_USERNAME", "")
	viper.SetDefault("MAIL_PASSWORD", "")
	viper.SetDefault("MAIL_FROM", "noreply@localhost")
	viper.AutomaticEnv()

	return Config{
		AppPort:         viper.GetString("APP_PORT"),
		DatabaseURL:     viper.GetString("DATABASE_URL"),
		DataDir:         viper.GetString("DATA_DIR"),
		MaxUploadMB:     viper.GetInt("MAX_UPLOAD_MB"),
		SiteName:        viper.GetString("SITE_NAME"),
		DefaultCurrency: viper.GetString("DEFAULT_CURRENCY"),
		PublicBaseURL:   viper.GetString("PUBLIC_BASE_URL"),
		AdminUser:       viper.GetString("ADMIN_USER"),
		AdminPassword:   viper.GetString("ADMIN_PASSWORD"),
		SessionSecret:   viper.GetString("SESSION_SECRET"),
		RabbitMQURL:     viper.GetString("RABBITMQ_URL"),
		MailServer:      viper.GetString("MAIL_SERVER"),
		MailPort:        viper.GetInt("MAIL_PORT"),
		MailUsername:    viper.GetString("MAIL_USERNAME"),
		MailPassword:    viper.GetString("MAIL_PASSWORD"),
		MailFrom:        viper.GetString("MAIL_FROM"),
	}
}

// App bundles the HTTP application with its long-lived collaborators.
type App struct {
	Fiber  *fiber.App
	Mailer *mailer.Mailer
	MQ     *rabbitmq.Client // nil when RABBITMQ_URL is unset
}

// NewApp opens the database, constructs all services and wires the handlers
// into a Fiber app.
func NewApp(cfg Config) (*App, error) {
	if err := os.MkdirAll(filepath.Join(cfg.DataDir, "uploads"), 0o755); err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(cfg.DatabaseURL, "postgres://") || strings.HasPrefix(cfg.DatabaseURL, "host=") {
		dialector = postgres.Open(cfg.DatabaseURL)
	} else {
		dialector = sqlite.Open(cfg.DatabaseURL)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.Order{}); err != nil {
		return nil, err
	}

	var mq *rabbitmq.Client
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mq, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			return nil, err
		}
		publisher = mq
	}

	orderRepo := repositories.NewGORMOrderRepository(db)
	orderService := services.NewOrderService(orderRepo, publisher, cfg.DefaultCurrency)
	authService := services.NewAuthService(cfg.AdminUser, cfg.AdminPassword, cfg.SessionSecret)
	uploadStore := storage.NewUploadStore(cfg.DataDir, cfg.MaxUploadMB)

	ml := mailer.New(mailer.Config{
		Host:     cfg.MailServer,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
		AppName:  cfg.SiteName,
		BaseURL:  cfg.PublicBaseURL,
	})

	app := fiber.New(fiber.Config{
		Views: views.NewEngine(),
		// Leave headroom above the upload limit so the handler can answer
		// oversized images with a re-rendered form; bodies beyond even the
		// headroom are mapped to the same form by the error handler.
		BodyLimit:    (cfg.MaxUploadMB + 1) * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler(cfg.SiteName, cfg.MaxUploadMB),
	})

	app.Use(logger.New())

	handlers.NewPublicHandler(orderService, uploadStore, cfg.SiteName).RegisterRoutes(app)
	handlers.NewAdminHandler(orderService, authService, cfg.SiteName).RegisterRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return &App{Fiber: app, Mailer: ml, MQ: mq}, nil
}

// Close releases the long-lived collaborators.
func (a *App) Close() {
	if a.MQ != nil {
		if err := a.MQ.Close(); err != nil {
			log.Printf("Error closing RabbitMQ client: %v", err)
		}
	}
}

func main() {
	cfg := LoadConfig()

	application, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	// The mail worker consumes lifecycle events and notifies customers.
	if application.MQ != nil {
		log.Println("Starting order event consumer...")
		if err := application.MQ.ConsumeOrderEvents(application.Mailer.HandleOrderEvent); err != nil {
			log.Printf("Failed to start order event consumer: %v", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", cfg.AppPort)
		if err := application.Fiber.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := application.Fiber.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}
