package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/reviewpilot/engine/internal/api"
	"github.com/reviewpilot/engine/internal/api/handlers"
	"github.com/reviewpilot/engine/internal/repository"
	"github.com/reviewpilot/engine/internal/services"
	"github.com/reviewpilot/engine/pkg/config"
	"github.com/reviewpilot/engine/pkg/database"
	"github.com/reviewpilot/engine/pkg/logger"
)

// @title           ReviewPilot API
// @version         1.0
// @description     Course authoring backend with per-course knowledge graphs

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting ReviewPilot Engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	graphRepo := repository.NewGraphRepository(db)

	// JWT secret
	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		log.Warn("JWT_SECRET not set, using default (INSECURE for production)")
		jwtSecret = []byte("change-me-in-production-please")
	}

	// Initialize services
	authSvc := services.NewAuthService(userRepo, jwtSecret)
	courseSvc := services.NewCourseService(courseRepo)
	graphSvc := services.NewGraphService(graphRepo, courseSvc)

	// Initialize handlers
	validate := validator.New(validator.WithRequiredStructEnabled())
	authHandler := handlers.NewAuthHandler(authSvc, validate)
	coursesHandler := handlers.NewCoursesHandler(courseSvc, validate)
	graphsHandler := handlers.NewGraphsHandler(graphSvc, courseSvc)

	// Create router with dependencies
	router := api.NewRouter(api.Dependencies{
		HMACSecret:     jwtSecret,
		AuthHandler:    authHandler,
		CoursesHandler: coursesHandler,
		GraphsHandler:  graphsHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
