package main

import (
	"alcyxob/wellness-portal/internal/api"
	"alcyxob/wellness-portal/internal/config"
	"alcyxob/wellness-portal/internal/identity"
	"alcyxob/wellness-portal/internal/logger"
	"alcyxob/wellness-portal/internal/repository"
	"alcyxob/wellness-portal/internal/repository/memory"
	"alcyxob/wellness-portal/internal/repository/mongo"
	"alcyxob/wellness-portal/internal/service"
	"alcyxob/wellness-portal/internal/storage"
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

type repositories struct {
	accounts     repository.AccountRepository
	profiles     repository.ProfileRepository
	applications repository.PartnerApplicationRepository
	programs     repository.ProgramRepository
	uploads      repository.UploadRepository
}

// @title Wellness Portal API
// @version 1.0
// @description Sessions, role routing and coaching programs for admins, partner clinics and customers.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		stdlog.Fatalf("FATAL: Could not load config: %v", err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		stdlog.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer log.Sync()
	if cfg.JWT.Secret == "" {
		log.Fatal("JWT secret is not configured; set JWT_SECRET")
	}
	log.Info("Starting Wellness Portal server", "address", cfg.Server.Address, "database", cfg.Database.Driver)

	// --- Repositories ---
	repos, closeDB, err := openRepositories(cfg.Database, log)
	if err != nil {
		log.Fatal("Could not open repositories", "error", err)
	}
	defer closeDB()

	// --- Session revocation ---
	revocations := identity.NewMemoryRevocationStore()
	if cfg.Redis.Address != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("Could not reach Redis", "address", cfg.Redis.Address, "error", err)
		}
		defer rdb.Close()
		revocations = identity.NewRedisRevocationStore(rdb)
		log.Info("Session revocations stored in Redis", "address", cfg.Redis.Address)
	}

	// --- Storage ---
	fileStorage, err := storage.NewS3Storage(context.Background(), cfg.S3, log)
	if err != nil {
		log.Fatal("Failed to initialize S3 storage", "error", err)
	}

	// --- Services ---
	partnerService := service.NewPartnerService(repos.profiles, repos.applications, log)
	identityCfg := identity.Config{
		JWTSecret:             cfg.JWT.Secret,
		JWTExpiration:         cfg.JWT.Expiration,
		RequireConfirmedEmail: cfg.Session.RequireConfirmedEmail,
	}
	if cfg.Log.Mode != "production" {
		identityCfg.Mailer = identity.NewLogMailer(log)
	}
	authService := identity.NewLocalService(repos.accounts, revocations, identityCfg, log, service.RegistrationHook(partnerService))
	programService := service.NewProgramService(repos.programs, repos.profiles, repos.applications, repos.uploads, fileStorage, service.ProgramServiceConfig{
		PlanName:   cfg.Program.PlanName,
		TotalWeeks: cfg.Program.TotalWeeks,
	}, log)

	if cfg.Admin.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := service.BootstrapAdmin(ctx, authService, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name)
		cancel()
		if err != nil {
			log.Fatal("Could not bootstrap admin account", "email", cfg.Admin.Email, "error", err)
		}
	}

	// --- Gin Engine ---
	if cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.Deps{
		Auth:           authService,
		Profiles:       repos.profiles,
		Applications:   repos.applications,
		ProgramService: programService,
		PartnerService: partnerService,
		LookupTimeout:  cfg.Session.LookupTimeout,
		AllowOrigins:   cfg.CORS.AllowOrigins,
		Log:            log,
	})

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe error", "error", err)
		}
	}()
	log.Info("Server listening", "address", cfg.Server.Address)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	log.Info("Server exiting.")
}

func openRepositories(cfg config.DatabaseConfig, log *logger.Logger) (*repositories, func(), error) {
	switch cfg.Driver {
	case "memory":
		log.Warn("Using in-memory repositories; data is lost on exit")
		return &repositories{
			accounts:     memory.NewAccountRepository(),
			profiles:     memory.NewProfileRepository(),
			applications: memory.NewPartnerApplicationRepository(),
			programs:     memory.NewProgramRepository(),
			uploads:      memory.NewUploadRepository(),
		}, func() {}, nil
	case "mongo", "":
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	dbClient, err := mongo.ConnectDB(cfg.URI)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	appDB := dbClient.Database(cfg.Name)
	log.Info("Database connection established", "name", cfg.Name)

	// Index creation runs in the background; requests do not wait for it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			log.Error("Index creation failed", "error", err)
			return
		}
		log.Info("Index creation process completed")
	}()

	closeDB := func() {
		log.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Error("Failed to disconnect MongoDB", "error", err)
		}
	}
	return &repositories{
		accounts:     mongo.NewMongoAccountRepository(appDB),
		profiles:     mongo.NewMongoProfileRepository(appDB),
		applications: mongo.NewMongoPartnerApplicationRepository(appDB),
		programs:     mongo.NewMongoProgramRepository(appDB),
		uploads:      mongo.NewMongoUploadRepository(appDB),
	}, closeDB, nil
}
