package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskboard/internal/access"
	"taskboard/internal/auth"
	"taskboard/internal/config"
	"taskboard/internal/handler"
	"taskboard/internal/middleware"
	"taskboard/internal/model"
	"taskboard/internal/ratelimit"
	"taskboard/internal/repository"
	"taskboard/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Config *config.Config

	closers []io.Closer
}

// Deps are the collaborators the routes are built from.
type Deps struct {
	DB      *gorm.DB
	Store   storage.Store
	Limiter ratelimit.Limiter
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
		)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	return db, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, io.Closer, error) {
	switch cfg.StorageBackend {
	case "local":
		store, err := storage.NewLocalStore(cfg.UploadDir)
		return store, nil, err
	case "nats":
		store, err := storage.NewNATSStore(ctx, cfg.NATSURL, cfg.NATSBucket)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

func Init(cfg *config.Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("Connected to database", "driver", cfg.DBDriver)

	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	s := &Server{DB: db, Config: cfg}

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment storage: %w", err)
	}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	slog.Info("Attachment storage ready", "backend", cfg.StorageBackend)

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unreachable, rate limiting fails open until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		s.closers = append(s.closers, client)
		limiter = ratelimit.NewRedisLimiter(client, "taskboard:ratelimit:", cfg.LoginRateLimit, cfg.LoginRateWindow)
		slog.Info("Login rate limiting enabled", "limit", cfg.LoginRateLimit, "window", cfg.LoginRateWindow)
	}

	gin.SetMode(cfg.GinMode)
	s.Engine = NewRouter(cfg, Deps{DB: db, Store: store, Limiter: limiter})
	return s, nil
}

// NewRouter builds the HTTP routes. A nil Limiter disables rate limiting.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	r.Use(cors.New(corsConfig))

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)

	// Initialize repositories
	userRepo := repository.NewUserRepository(deps.DB)
	taskRepo := repository.NewTaskRepository(deps.DB)

	// Initialize handlers
	uploader := storage.NewUploader(deps.Store, cfg.UploadTimeout, cfg.PublicBaseURL)
	userHandler := handler.NewUserHandler(userRepo, tokens)
	taskHandler := handler.NewTaskHandler(taskRepo, userRepo, access.NewFilterBuilder(userRepo), uploader)
	attachmentHandler := handler.NewAttachmentHandler(deps.Store)

	if sqlDB, err := deps.DB.DB(); err == nil {
		r.GET("/health", handler.NewHealthHandler(sqlDB).Check)
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")

	// Public routes
	credentials := []gin.HandlerFunc{}
	if deps.Limiter != nil {
		credentials = append(credentials, middleware.RateLimit(deps.Limiter))
	}
	api.POST("/users/login", append(credentials, userHandler.Login)...)
	api.POST("/users", append(credentials, userHandler.Register)...)
	api.GET("/attachments/:key", attachmentHandler.Download)

	// Protected routes - require authentication
	authorized := api.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(tokens))
	{
		authorized.GET("/users/get-users", userHandler.GetUsers)

		uploads := authorized.Group("/", middleware.BodyLimit(cfg.MaxUploadBytes))
		uploads.POST("/tasks", middleware.RequireRoles(model.RoleAdmin, model.RoleManager), taskHandler.Create)
		uploads.PUT("/tasks/:id", taskHandler.Update)

		authorized.GET("/tasks", taskHandler.List)
		authorized.GET("/tasks/:id", taskHandler.GetByID)
		authorized.DELETE("/tasks/:id", taskHandler.Delete)
	}
	return r
}

func (s *Server) Run() {
	srv := &http.Server{
		Addr:              ":" + s.Config.ServerPort,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server running", "port", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to listen", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	s.Close()

	slog.Info("Server exited properly")
}

// Close releases the storage and rate limiter connections and the database pool.
func (s *Server) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			slog.Error("Failed to close connection", "error", err)
		}
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
