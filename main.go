package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"minimarket/internal/config"
	"minimarket/pkg/logger"

	"github.com/spf13/viper"
)

func main() {
	config.LoadDotenv()
	cfg, err := config.Load(viper.New())
	if err != nil {
		log := logger.New("minimarket", logger.LevelFor(os.Getenv("APP_ENV")))
		if errors.Is(err, config.ErrMissingSecret) {
			log.Error("refusing to start without a token signing secret", "error", err)
		} else {
			log.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	log := logger.New("minimarket", logger.LevelFor(cfg.AppEnv))

	app, err := NewApp(cfg, Options{Logger: log})
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", cfg.AppPort, "env", cfg.AppEnv)
		if err := app.Fiber.Listen(cfg.AppPort); err != nil {
			log.Error("server failed", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	log.Info("shutting down server")

	if err := app.Fiber.Shutdown(); err != nil {
		log.Error("error during fiber shutdown", "error", err)
	}
	if err := app.Close(); err != nil {
		log.Error("error releasing resources", "error", err)
	}
	log.Info("server gracefully stopped")
}
