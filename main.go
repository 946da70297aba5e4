package main

import (
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/hsalloum/veriflow_backend/config"
	"github.com/hsalloum/veriflow_backend/controllers"
	"github.com/hsalloum/veriflow_backend/middleware"
	"github.com/hsalloum/veriflow_backend/repositories"
	"github.com/hsalloum/veriflow_backend/routes"
	"github.com/hsalloum/veriflow_backend/services"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Connect to database
	client := config.ConnectDB(cfg)
	db := client.Database(cfg.DBName)

	// Connect to Redis
	redisClient := config.ConnectRedis(cfg)

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeaders())

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refStore := repositories.NewSessionRefStore(redisClient)

	var verificationStore repositories.VerificationStore
	switch cfg.VerificationBackend {
	case "mongo":
		verificationStore = repositories.NewMongoVerificationStore(db)
	default:
		verificationStore = repositories.NewRedisVerificationStore(redisClient)
	}
	log.Printf("Using %s verification backend", cfg.VerificationBackend)

	// Initialize services
	engine := services.NewVerificationEngine(verificationStore)
	tokens := services.NewTokenService(cfg.JWTSecret)
	sender := services.NewRouterSender(cfg)

	blob, err := services.NewLocalBlobStore(cfg.UploadDir, cfg.PublicBaseURL, cfg.FileSecret)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	// Initialize controllers
	authController := controllers.NewAuthController(cfg, userRepo, engine, tokens, refStore, sender, blob)
	passwordController := controllers.NewPasswordController(cfg, userRepo, engine, tokens, refStore, sender)
	userController := controllers.NewUserController(cfg, userRepo, blob)
	fileController := controllers.NewFileController(blob)

	// Register routes
	routes.RegisterAuthRoutes(e, authController, passwordController)
	routes.RegisterUserRoutes(e, tokens, userController, passwordController)
	routes.RegisterFileRoutes(e, fileController)

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
