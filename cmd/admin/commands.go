package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"minimarket/internal/auth"
	"minimarket/internal/config"
	"minimarket/internal/database"
	"minimarket/internal/models"
	"minimarket/internal/repositories"
	"minimarket/internal/services"
	"minimarket/pkg/rabbitmq"
	"minimarket/pkg/redisstore"

	"github.com/spf13/viper"
)

type accountService interface {
	CreateUser(ctx context.Context, in services.CreateUserInput) (*models.User, error)
	ResetPassword(ctx context.Context, username, password string) error
}

func withAuthService(v *viper.Viper, log *slog.Logger, fn func(accountService) error) error {
	dbCfg, err := config.LoadDatabase(v)
	if err != nil {
		return err
	}
	db, err := database.Open(dbCfg, false)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}

	repo := repositories.NewGORMUserRepository(db, dbCfg.AcquireTimeout)
	// no tokens are issued from the command line
	svc := services.NewAuthService(repo, auth.NewPasswordHasher(v.GetInt("BCRYPT_COST")), nil, log)
	return fn(svc)
}

func createAdmin(ctx context.Context, svc accountService, username, password, email string, out io.Writer) error {
	user, err := svc.CreateUser(ctx, services.CreateUserInput{
		Username: username,
		Password: password,
		Email:    email,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created administrator %s (%s)\n", user.Username, user.ID)
	return nil
}

func resetPassword(ctx context.Context, svc accountService, username, password string, out io.Writer) error {
	if username == "" || password == "" {
		return errors.New("--username and --password are required")
	}
	if err := svc.ResetPassword(ctx, username, password); err != nil {
		return err
	}
	fmt.Fprintf(out, "password reset for %s\n", username)
	return nil
}

// check loads the full server configuration and connects to every configured
// dependency. It reports each result and fails if any connection failed.
func check(ctx context.Context, v *viper.Viper, log *slog.Logger, out io.Writer) error {
	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(out, "config    FAIL %v\n", err)
		return err
	}
	fmt.Fprintln(out, "config    ok")

	var failed []error
	report := func(name string, fn func() error) {
		if err := fn(); err != nil {
			fmt.Fprintf(out, "%-9s FAIL %v\n", name, err)
			failed = append(failed, fmt.Errorf("%s: %w", name, err))
			return
		}
		fmt.Fprintf(out, "%-9s ok\n", name)
	}

	report("database", func() error {
		db, err := database.Open(cfg.Database, false)
		if err != nil {
			return err
		}
		defer database.Close(db)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return database.Ping(pingCtx, db)
	})
	if cfg.Redis.Addr != "" {
		report("redis", func() error {
			s, err := redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "minimarket:")
			if err != nil {
				return err
			}
			return s.Close()
		})
	}
	if cfg.RabbitMQURL != "" {
		report("rabbitmq", func() error {
			client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log)
			if err != nil {
				return err
			}
			return client.Close()
		})
	}
	return errors.Join(failed...)
}

func tailEvents(ctx context.Context, v *viper.Viper, log *slog.Logger, out io.Writer) error {
	config.SetDefaults(v)
	v.AutomaticEnv()
	url := v.GetString("RABBITMQ_URL")
	if url == "" {
		return errors.New("RABBITMQ_URL is not set")
	}
	client, err := rabbitmq.NewClient(rabbitmq.Config{URL: url}, log)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.ConsumeCatalogEvents(ctx, printEvent(out))
}

func printEvent(out io.Writer) func(rabbitmq.CatalogEvent) error {
	enc := json.NewEncoder(out)
	return func(event rabbitmq.CatalogEvent) error {
		return enc.Encode(event)
	}
}
