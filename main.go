package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"postpilot/auth"
	"postpilot/handlers"
	"postpilot/services"
	"postpilot/store"
	"postpilot/telemetry"
	"postpilot/workflows"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	apiKey := os.Getenv("HF_API_KEY")
	if apiKey == "" {
		log.Fatal("HF_API_KEY environment variable is required")
	}
	verifyURL := os.Getenv("AUTH_VERIFY_URL")
	if verifyURL == "" {
		log.Fatal("AUTH_VERIFY_URL environment variable is required")
	}

	// Connect to PostgreSQL for app data
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to PostgreSQL database")

	hfService := services.NewHuggingFaceService(apiKey)
	convStore := store.NewPostgresStore(db)
	turnWorkflows := workflows.NewTurnWorkflows(convStore, hfService)

	// Initialize DBOS context for durable turn workflows
	dbosCtx, err := dbos.NewDBOSContext(context.Background(), dbos.Config{
		DatabaseURL: dbURL,
		AppName:     "postpilot",
	})
	if err != nil {
		log.Fatalf("Failed to initialize DBOS: %v", err)
	}

	// Register workflows with DBOS (MUST be before Launch)
	workflows.Register(dbosCtx, turnWorkflows)

	if err := dbos.Launch(dbosCtx); err != nil {
		log.Fatalf("Failed to launch DBOS: %v", err)
	}
	defer dbos.Shutdown(dbosCtx, 5*time.Second)
	log.Println("DBOS initialized - durable turn workflows enabled")

	verifier := auth.NewHTTPVerifier(verifyURL)
	orchestrator := workflows.NewDurableOrchestrator(dbosCtx, turnWorkflows)
	chatHandler := handlers.NewChatHandler(convStore, orchestrator)

	router := gin.Default()

	corsOrigin := os.Getenv("CORS_ORIGIN")
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", corsOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Authenticated API surface
	authed := router.Group("/", auth.Middleware(verifier), auth.RateLimit(envFloat("RATE_LIMIT_RPS"), envInt("RATE_LIMIT_BURST")))
	{
		authed.POST("/generate-text", chatHandler.GenerateText)
		authed.POST("/generate-image", chatHandler.GenerateImage)
		authed.POST("/add-message", chatHandler.AddMessage)
		authed.GET("/conversations", chatHandler.ListConversations)
		authed.GET("/conversations/:id", chatHandler.GetConversation)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "dbos": "enabled"})
	})
	router.GET("/metrics", gin.WrapH(telemetry.Handler()))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func envFloat(key string) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return 0
	}
	return v
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}
