package main

import (
	"log"
	"os"

	"editorial-workflow-api/config"
	"editorial-workflow-api/controllers"
	"editorial-workflow-api/monitor"
	"editorial-workflow-api/routes"
	"editorial-workflow-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	// Initialize database
	config.InitDB()

	settings, err := config.LoadWorkflowSettings()
	if err != nil {
		log.Fatalf("Failed to load workflow settings: %v", err)
	}
	if len(settings.EditorsInChief) == 0 {
		log.Printf("Warning: EDITORS_IN_CHIEF is empty; submission notices reach authors only")
	}
	if settings.Payment.GatewayURL == "" || settings.Payment.KeySecret == "" {
		log.Printf("Warning: payment gateway not fully configured; orders and webhooks will fail")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// Set Gin mode
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = config.LogWriter

	// Create Gin router
	router := gin.New()

	// Add logging middleware
	router.Use(gin.Logger())

	// Add recovery middleware
	router.Use(gin.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	})

	workflow := services.NewDefaultWorkflow(settings)
	routes.SetupRoutes(router, controllers.NewWorkflowController(workflow), jwtSecret)
	if token := os.Getenv("MONITOR_TOKEN"); token != "" {
		monitor.RegisterLogsRoute(router, config.LogFilePath(), token)
	}

	// Start server
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	log.Printf("Editors-in-chief: %d, review window: %s, currency: %s",
		len(settings.EditorsInChief), settings.ReviewDuration(), settings.Payment.Currency)

	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
