package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-share/internal/config"
	"github.com/iliyamo/ride-share/internal/database"
	"github.com/iliyamo/ride-share/internal/handler"
	"github.com/iliyamo/ride-share/internal/middleware"
	"github.com/iliyamo/ride-share/internal/queue"
	"github.com/iliyamo/ride-share/internal/repository"
	"github.com/iliyamo/ride-share/internal/ride"
	"github.com/iliyamo/ride-share/internal/router"
	"github.com/iliyamo/ride-share/internal/validation"
)

func main() {
	// Load .env if present; real deployments set variables directly.
	_ = godotenv.Load()
	cfg := config.Load()

	// MySQL holds accounts and refresh tokens.
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql connect failed: %v", err)
	}
	defer db.Close()

	// MongoDB holds the ride documents.
	mongoClient, err := database.OpenMongo(cfg.MongoURI)
	if err != nil {
		log.Fatalf("mongo connect failed: %v", err)
	}
	rides := repository.NewRideRepo(database.Collection(mongoClient, cfg.MongoDB, "rides"))

	// Redis backs the rate limiter and the public browse cache.  A nil
	// client simply disables both; the API stays up without Redis.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and caching disabled")
	}

	// Consume ride.approved events in the background.  The consumer owns
	// its own reconnect loop, so a broker outage never blocks startup.
	go func() {
		if err := queue.StartApprovalConsumer(); err != nil {
			log.Printf("approval consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.Validator = validation.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	authHandler := handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db))
	rideHandler := handler.NewRideHandler(rides, ride.ExactMatchScorer{})

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterRides(e, rideHandler, cfg.JWTSecret,
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
