package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/patronhub/db"
	"github.com/yourusername/patronhub/handlers"
	"github.com/yourusername/patronhub/middleware"
	"github.com/yourusername/patronhub/models"
	"github.com/yourusername/patronhub/services"
)

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// maybeSeedAdmin creates the first admin from ADMIN_EMAIL / ADMIN_USERNAME / ADMIN_PASSWORD.
// ADMIN_USERNAME may be a reserved word such as "admin".
func maybeSeedAdmin(ctx context.Context, accounts *services.AccountService, log *logrus.Logger) {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminUser := os.Getenv("ADMIN_USERNAME")
	adminPass := os.Getenv("ADMIN_PASSWORD")
	if adminEmail == "" || adminUser == "" || adminPass == "" {
		return
	}
	entry := log.WithField("email", adminEmail)
	u, created, err := accounts.SeedAdmin(ctx, adminEmail, adminUser, adminPass)
	if err != nil {
		entry.WithError(err).Error("admin seed: create failed")
		return
	}
	if !created {
		entry.Info("admin seed: user already exists")
		return
	}
	entry.WithField("username", u.Username).Info("admin seed: created admin")
}

// openStore connects the configured backend and returns its repositories plus a
// function that releases the connection.
func openStore(ctx context.Context, cfg services.DatabaseConfig, log *logrus.Logger) (*models.Repositories, func(), error) {
	if strings.EqualFold(cfg.Driver, "postgres") {
		conn, err := db.Connect(ctx, cfg.PostgresURL, cfg.ConnectRetry, cfg.RetryInterval, log)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return models.NewPostgresRepositories(conn), func() { conn.Close() }, nil
	}

	database, err := db.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDatabase, cfg.ConnectRetry, cfg.RetryInterval, log)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureIndexes(ctx, database); err != nil {
		_ = database.Client().Disconnect(context.Background())
		return nil, nil, err
	}
	closeFn := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = database.Client().Disconnect(shutdownCtx)
	}
	return models.NewMongoRepositories(database), closeFn, nil
}

func main() {
	config, err := services.LoadConfig("config.yaml")
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := services.NewLogger(config.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeStore, err := openStore(ctx, config.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer closeStore()

	checks := map[string]func(context.Context) error{"database": repos.Ping}

	var counter services.Counter = services.NewMemoryCounter()
	if config.Redis.Addr != "" {
		rdb, err := services.NewRedisClient(ctx, config.Redis, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to redis")
		}
		defer rdb.Close()
		counter = services.NewRedisCounter(rdb, log)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		log.Info("redis not configured, counting views in memory")
	}
	analytics := services.NewAnalytics(counter, log)

	storage, err := services.NewStorage(config.Storage)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialise storage")
	}
	images := services.NewImageProcessor(config.Media)

	policy := services.NewUsernamePolicy(config.Usernames)
	allocator := services.NewUsernameAllocator(policy, repos.Users)
	accounts := services.NewAccountService(repos.Users, allocator, services.DefaultPasswordPolicy(), config.Usernames.CreateRetries, log)
	maybeSeedAdmin(ctx, accounts, log)

	jwt := middleware.NewJWT(config.Auth.JWTSecret, config.Auth.TokenTTL)
	limiter := services.NewRateLimiter(config.RateLimiting, log)
	defer limiter.Stop()

	validate := handlers.NewValidator(policy)
	media := handlers.NewMediaUploader(storage, images, config.Media.MaxUploadBytes, log)

	authHandler := handlers.NewAuthHandler(accounts, repos.Users, jwt, log)
	usernameHandler := handlers.NewUsernameHandler(accounts, log)
	userHandler := handlers.NewUserHandler(accounts, repos.Users, media, analytics, log)
	adminHandler := handlers.NewAdminHandler(repos.Users, repos.Backend, repos.Dump, log)
	projectHandler := handlers.NewProjectHandler(repos.Projects, repos.Users, media, analytics, jwt.OptionalUserID, validate, log)
	membershipHandler := handlers.NewMembershipHandler(repos.Memberships, repos.Users, validate, log)
	shopHandler := handlers.NewShopHandler(repos.Shop, repos.Users, media, analytics, validate, log)
	analyticsHandler := handlers.NewAnalyticsHandler(analytics, repos.Projects, repos.Shop, log)

	app := fiber.New(fiber.Config{
		BodyLimit:    config.Server.BodyLimit,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())
	corsCfg := cors.Config{}
	if len(config.Server.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = strings.Join(config.Server.CORSOrigins, ",")
	}
	app.Use(cors.New(corsCfg))
	app.Use(services.SecurityHeaders(nil))

	if local, ok := storage.(*services.LocalStorage); ok {
		app.Static("/uploads", local.BaseDir(), fiber.Static{
			Compress:      true,
			CacheDuration: 24 * time.Hour,
		})
	}

	app.Get("/healthz", handlers.Health(checks, log))

	api := app.Group("/api", middleware.StoreGuard(repos.Ping, 5*time.Second, log))
	protected := jwt.Protected()
	authLimit := limiter.Middleware(config.RateLimiting.AuthCapacity, config.RateLimiting.AuthRefill)

	api.Post("/register", authLimit, authHandler.Register)
	api.Post("/login", authLimit, authHandler.Login)
	api.Get("/me", protected, authHandler.Me)

	api.Get("/usernames/suggest", usernameHandler.Suggest)
	api.Get("/usernames/:name", usernameHandler.Check)

	// Users
	api.Get("/users/:username", userHandler.GetProfile)
	api.Get("/users/:username/projects", projectHandler.ListByUser)
	api.Get("/users/:username/tiers", membershipHandler.ListTiersByUser)
	api.Get("/users/:username/products", shopHandler.ListByUser)
	api.Get("/me/profile", protected, userHandler.GetMyProfile)
	api.Patch("/me/profile", protected, userHandler.UpdateMyProfile)
	api.Patch("/me/email", protected, userHandler.UpdateEmail)
	api.Patch("/me/password", protected, userHandler.UpdatePassword)
	api.Delete("/me", protected, userHandler.DeleteMyAccount)
	api.Post("/me/avatar", protected, userHandler.UploadAvatar)
	api.Get("/me/memberships", protected, membershipHandler.MyMemberships)
	api.Get("/me/members", protected, membershipHandler.MyMembers)
	api.Get("/me/orders", protected, shopHandler.MyOrders)
	api.Get("/me/sales", protected, shopHandler.MySales)
	api.Get("/me/analytics", protected, analyticsHandler.Mine)

	// Projects
	api.Post("/projects", protected, projectHandler.Create)
	api.Get("/projects/:id", projectHandler.Get)
	api.Patch("/projects/:id", protected, projectHandler.Update)
	api.Delete("/projects/:id", protected, projectHandler.Delete)
	api.Post("/projects/:id/cover", protected, projectHandler.UploadCover)

	// Memberships
	api.Post("/tiers", protected, membershipHandler.CreateTier)
	api.Delete("/tiers/:id", protected, membershipHandler.DeleteTier)
	api.Post("/tiers/:id/join", protected, membershipHandler.Join)
	api.Delete("/tiers/:id/join", protected, membershipHandler.Leave)

	// Shop
	api.Post("/products", protected, shopHandler.CreateProduct)
	api.Get("/products/:id", shopHandler.GetProduct)
	api.Patch("/products/:id", protected, shopHandler.UpdateProduct)
	api.Delete("/products/:id", protected, shopHandler.DeleteProduct)
	api.Post("/products/:id/image", protected, shopHandler.UploadImage)
	api.Post("/products/:id/purchase", protected, shopHandler.Purchase)

	// Admin (guarded in handler)
	api.Get("/admin/users", protected, adminHandler.ListUsers)
	api.Patch("/admin/users/:id", protected, adminHandler.UpdateUser)
	api.Get("/admin/export", protected, adminHandler.Export)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
	}()

	log.WithFields(logrus.Fields{"addr": config.Server.Addr, "driver": config.Database.Driver}).Info("server starting")
	if err := app.Listen(config.Server.Addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
