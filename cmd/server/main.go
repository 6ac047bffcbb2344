package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/config"
	"github.com/careslot/careslot-api/internal/database"
	"github.com/careslot/careslot-api/internal/handler"
	"github.com/careslot/careslot-api/internal/middleware"
	"github.com/careslot/careslot-api/internal/queue"
	"github.com/careslot/careslot-api/internal/repository"
	"github.com/careslot/careslot-api/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real environments set vars directly

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	users := repository.NewUserRepo(db)
	subjects := repository.NewSubjectRepo(db)
	appointments := repository.NewAppointmentRepo(db)
	testBookings := repository.NewTestBookingRepo(db)
	reviews := repository.NewReviewRepo(db)

	authHandler := handler.NewAuthHandler(cfg, users)
	profileHandler := handler.NewProfileHandler(users)
	appointmentHandler := handler.NewAppointmentHandler(appointments, subjects)
	testBookingHandler := handler.NewTestBookingHandler(testBookings, subjects)
	reviewHandler := handler.NewReviewHandler(reviews, subjects)

	// Redis is optional: without it the limiter becomes a no-op and the
	// API keeps serving.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting disabled")
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// Booking events are consumed in the background and appended to
	// logs/booking.log.  The consumer reconnects on broker failures.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret, limiter)
	router.RegisterProfile(e, profileHandler, cfg.JWTSecret)
	router.RegisterBookings(e, appointmentHandler, testBookingHandler, cfg.JWTSecret)
	router.RegisterReviews(e, reviewHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
