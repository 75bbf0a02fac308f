package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"minimarket/internal/auth"
	"minimarket/internal/config"
	"minimarket/internal/database"
	"minimarket/internal/handlers"
	"minimarket/internal/images"
	"minimarket/internal/middleware"
	"minimarket/internal/repositories"
	"minimarket/internal/services"
	"minimarket/pkg/rabbitmq"
	"minimarket/pkg/redisstore"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"
)

// Options overrides the collaborators NewApp would otherwise build from the
// configuration.
type Options struct {
	DB         *gorm.DB
	ImageStore images.Store
	Publisher  services.EventPublisher
	Logger     *slog.Logger
	Clock      func() time.Time
}

// App is the assembled HTTP server and the resources it owns.
type App struct {
	Fiber *fiber.App
	DB    *gorm.DB
	Auth  *services.AuthService

	log     *slog.Logger
	closers []func() error
}

// NewApp opens the store, ensures the default records exist and mounts every
// route under /api.
func NewApp(cfg *config.Config, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	a := &App{log: log}

	db := opts.DB
	if db == nil {
		var err error
		db, err = database.Open(cfg.Database, cfg.Development())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return database.Close(db) })
	}
	a.DB = db
	if err := database.Migrate(db); err != nil {
		a.Close()
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := database.EnsureDefaults(ctx, db); err != nil {
		a.Close()
		return nil, err
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, opts.Clock)
	if err != nil {
		a.Close()
		return nil, err
	}

	store := opts.ImageStore
	if store == nil {
		store, err = newImageStore(cfg.Images)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	pipeline := images.NewPipeline(images.NewNormalizer(),
		images.NewLimitedStore(store, cfg.Images.Concurrency), log.With("component", "images"))

	publisher := opts.Publisher
	if publisher == nil && cfg.RabbitMQURL != "" {
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log)
		if err != nil {
			log.Warn("catalog events disabled", "error", err)
		} else {
			a.closers = append(a.closers, client.Close)
			publisher = client
		}
	}

	var storage fiber.Storage
	if cfg.Redis.Addr != "" {
		s, err := redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "minimarket:")
		if err != nil {
			log.Warn("redis unavailable, using in-memory limiter storage", "addr", cfg.Redis.Addr, "error", err)
		} else {
			a.closers = append(a.closers, s.Close)
			storage = s
		}
	}

	timeout := cfg.Database.AcquireTimeout
	userRepo := repositories.NewGORMUserRepository(db, timeout)
	productRepo := repositories.NewGORMProductRepository(db, timeout)
	categoryRepo := repositories.NewGORMCategoryRepository(db, timeout)
	appConfigRepo := repositories.NewGORMAppConfigRepository(db, timeout)
	featuredRepo := repositories.NewGORMFeaturedRepository(db, timeout)

	a.Auth = services.NewAuthService(userRepo, auth.NewPasswordHasher(cfg.BcryptCost), tokens, log.With("component", "auth"))
	productService := services.NewProductService(productRepo, categoryRepo, pipeline, publisher, log)
	categoryService := services.NewCategoryService(categoryRepo, publisher, log)
	appConfigService := services.NewAppConfigService(appConfigRepo, publisher, log)
	featuredService := services.NewFeaturedService(featuredRepo, publisher, log)

	app := fiber.New(fiber.Config{
		AppName:      "minimarket",
		BodyLimit:    cfg.BodyLimit,
		ErrorHandler: middleware.ErrorHandler(log, cfg.Development()),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, " + cfg.TokenHeader,
		ExposeHeaders: cfg.TokenHeader,
	}))

	api := app.Group("/api", middleware.RateLimit(cfg.Limits.APIMax, cfg.Limits.Window, storage, "api:"))

	mw := handlers.Middlewares{
		Gate:       middleware.AuthRequired(a.Auth, cfg.TokenHeader),
		LoginLimit: middleware.RateLimit(cfg.Limits.LoginMax, cfg.Limits.Window, storage, "login:"),
	}
	if cfg.CacheTTL > 0 {
		publicCache := middleware.NewPublicCache(cfg.CacheTTL, storage, cfg.TokenHeader)
		api.Use(publicCache.Invalidate())
		mw.PublicCache = publicCache.Handler()
	}

	handlers.NewHealthHandler(func(ctx context.Context) error { return database.Ping(ctx, db) }).RegisterRoutes(api)
	handlers.NewAuthHandler(a.Auth).RegisterRoutes(api, mw)
	handlers.NewSetupHandler(a.Auth).RegisterRoutes(api, mw)
	handlers.NewProductHandler(productService).RegisterRoutes(api, mw)
	handlers.NewCategoryHandler(categoryService).RegisterRoutes(api, mw)
	handlers.NewAppConfigHandler(appConfigService).RegisterRoutes(api, mw)
	handlers.NewFeaturedHandler(featuredService).RegisterRoutes(api, mw)

	a.Fiber = app
	return a, nil
}

func newImageStore(cfg config.ImageConfig) (images.Store, error) {
	switch strings.ToLower(cfg.Store) {
	case "s3":
		return images.NewS3Store(context.Background(), images.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
			Timeout:   cfg.UploadTimeout,
		})
	case "imgbb", "":
		// a missing key is reported per upload, not at startup
		return images.NewImgBBStore(cfg.ImgBBEndpoint, cfg.ImgBBAPIKey, cfg.UploadTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported image store %q", cfg.Store)
	}
}

// Close releases everything NewApp opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
