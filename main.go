package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"foliopulse/api/classify"
	"foliopulse/api/database"
	"foliopulse/api/handlers"
	"foliopulse/api/logger"
	"foliopulse/api/middleware"
	"foliopulse/api/rollup"
	"foliopulse/api/store"
)

func main() {
	// Load .env file at the very start
	_ = godotenv.Load()

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.New(os.Getenv("GIN_MODE"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// --- Row store (sessions + aggregates) ---
	dbClient, err := database.NewPostgresDB()
	if err != nil {
		log.Fatal("failed to initialize PostgreSQL database", "error", err)
	}
	defer dbClient.Close()
	log.Info("connected to PostgreSQL")

	// --- Raw event store ---
	chClient, err := database.NewClickHouseDB()
	if err != nil {
		log.Fatal("failed to initialize ClickHouse database", "error", err)
	}
	defer chClient.Close()
	log.Info("connected to ClickHouse")

	// --- Throttle store (optional) ---
	rdb, err := database.NewRedisClient()
	if err != nil {
		log.Fatal("failed to initialize Redis", "error", err)
	}
	var limiter classify.Limiter
	if rdb != nil {
		defer rdb.Close()
		limiter = classify.NewRedisLimiter(rdb)
		log.Info("connected to Redis, cooldown is distributed")
	} else {
		limiter = classify.NewMemoryLimiter()
		log.Warn("REDIS_ADDR not set, classification cooldown is per-instance only")
	}

	// --- Stores ---
	sessionStore := store.NewSessionStore(dbClient.DB)
	behaviorStore := store.NewBehaviorStore(dbClient.DB)
	eventStore := store.NewEventStore(chClient, log)

	// --- Pipeline components ---
	engine := rollup.NewEngine(eventStore, behaviorStore, log)

	var aiClassifier classify.Classifier
	if httpClassifier, err := classify.NewHTTPClassifier(); err != nil {
		log.Warn("AI classifier unavailable, heuristic fallback only", "error", err)
	} else {
		aiClassifier = httpClassifier
	}
	gate := classify.NewGate(sessionStore, behaviorStore, aiClassifier, limiter, log)

	// --- Handlers ---
	trackHandlers := handlers.NewTrackHandlers(sessionStore, behaviorStore, eventStore, log)
	jobHandlers := handlers.NewJobHandlers(engine, log)
	personaHandlers := handlers.NewPersonaHandlers(gate, sessionStore, log)
	statsHandlers := handlers.NewStatsHandlers(eventStore, log)

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	{
		// Visitor-facing tracking and personalization endpoints.
		api.POST("/track", trackHandlers.Track)
		api.POST("/persona/classify", personaHandlers.Classify)
		api.GET("/persona/:sessionId", personaHandlers.GetPersona)

		// Scheduled jobs, triggered by external cron.
		jobs := api.Group("/jobs")
		jobs.Use(middleware.CronSecretRequired())
		{
			jobs.POST("/rollup", jobHandlers.RunRollup)
		}

		// Admin dashboard statistics.
		stats := api.Group("/stats")
		stats.Use(middleware.AdminRequired())
		{
			stats.GET("/event-counts", statsHandlers.GetEventCountsOverTime)
			stats.GET("/unique-visitors", statsHandlers.GetUniqueVisitorsOverTime)
			stats.GET("/top-paths", statsHandlers.GetTopPaths)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Info("tracking API server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", "error", err)
	}

	log.Info("server exiting")
}
