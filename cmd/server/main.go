package main

import (
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/openlims/sample-storage/internal/config"
	"github.com/openlims/sample-storage/internal/database"
	"github.com/openlims/sample-storage/internal/handler"
	"github.com/openlims/sample-storage/internal/middleware"
	"github.com/openlims/sample-storage/internal/queue"
	"github.com/openlims/sample-storage/internal/router"
	"github.com/openlims/sample-storage/internal/service"
	"github.com/openlims/sample-storage/internal/store/mysql"
)

// requestValidator adapts go-playground/validator to Echo's Validator
// interface so handlers can call c.Validate on bound DTOs.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func main() {
	// A local .env is optional; real deployments set the environment
	// directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	st := mysql.New(db)
	locations := service.NewLocationService(st)
	storage := service.NewStorageService(st, cfg.Disposal)

	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}

	var limiter echo.MiddlewareFunc
	if rdb := config.NewRedisClient(); rdb != nil {
		limiter = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	} else {
		logrus.Warn("redis unavailable; rate limiting disabled")
	}

	router.RegisterRoutes(e)
	router.RegisterStorage(e,
		handler.NewLocationHandler(locations),
		handler.NewStorageHandler(storage),
		cfg.JWTSecret, limiter)

	// The audit consumer tails the broker and writes the custody log.
	// It reconnects forever on its own.
	go queue.StartAuditConsumer()

	addr := ":" + cfg.Port
	logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
	if err := e.Start(addr); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
