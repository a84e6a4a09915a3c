package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"quizmaster/config"
	"quizmaster/handlers"
	"quizmaster/jobs"
	"quizmaster/mailer"
	"quizmaster/middleware"
	"quizmaster/models"
	"quizmaster/routes"
	"quizmaster/services"
)

func main() {
	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.Subject{},
		&models.Chapter{},
		&models.Quiz{},
		&models.Question{},
		&models.Score{},
		&models.Reminder{},
	); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Redis is optional. When it is unreachable the app runs without
	// caching and export status tracking degrades accordingly.
	var cache services.Cache
	redisClient := config.InitRedis(cfg)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		cache = services.NewNoopCache()
	} else {
		cache = services.NewRedisCache(redisClient, logger)
	}

	var mail mailer.Service
	if cfg.SendGridKey != "" {
		mail = mailer.NewSendGridService(cfg.SendGridKey, cfg.AppName, cfg.FromEmail)
	} else {
		logger.Warn("sendgrid key not set, emails will be logged instead of sent")
		mail = mailer.NewConsoleService(logger)
	}

	authService := services.NewAuthService(db, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	subjectService := services.NewSubjectService(db, cache)
	quizService := services.NewQuizService(db, cache)
	attemptService := services.NewAttemptService(db, quizService)
	leaderboardService := services.NewLeaderboardService(db, cache, cfg.LeaderboardMinAttempts, cfg.LeaderboardLimit)
	reminderService := services.NewReminderService(db, logger)
	reportService := services.NewReportService(db, mail, cache, logger, cfg.ExportDir)
	userService := services.NewUserService(db, cache)

	hub := services.NewHub(logger)
	go hub.Run()
	reminderService.SetNotifier(hub)

	scheduler := jobs.NewScheduler(reminderService, reportService, logger)
	if err := scheduler.Start(cfg.ReminderCron, cfg.ReportCron); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	authHandler := handlers.NewAuthHandler(authService)
	quizHandler := handlers.NewQuizHandler(attemptService, leaderboardService, hub)
	userHandler := handlers.NewUserHandler(subjectService, quizService, attemptService, leaderboardService, reminderService, reportService, userService)
	adminHandler := handlers.NewAdminHandler(subjectService, quizService, userService)

	router := gin.Default()
	router.Use(middleware.CORS())

	routes.SetupRoutes(router, authHandler, quizHandler, userHandler, adminHandler, authService, hub, scheduler, db, cache, logger)

	addr := fmt.Sprintf("%s:%s", cfg.BindAddress, cfg.Port)
	logger.Info("server starting", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
