package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"quizmaster/handlers"
	"quizmaster/jobs"
	"quizmaster/middleware"
	"quizmaster/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SetupRoutes wires the full HTTP surface onto the router.
func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	quizHandler *handlers.QuizHandler,
	userHandler *handlers.UserHandler,
	adminHandler *handlers.AdminHandler,
	authService *services.AuthService,
	hub *services.Hub,
	scheduler *jobs.Scheduler,
	db *gorm.DB,
	cache services.Cache,
	logger *zap.Logger,
) {
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		// Authenticated routes (any role)
		authed := api.Group("/")
		authed.Use(middleware.Auth(authService))
		{
			authed.GET("/auth/me", authHandler.Me)
			authed.PUT("/auth/profile", authHandler.UpdateProfile)
			authed.PUT("/auth/change-password", authHandler.ChangePassword)
		}

		// Quiz taking (role user)
		quiz := api.Group("/quiz")
		quiz.Use(middleware.Auth(authService), middleware.RequireUser())
		{
			quiz.GET("/:id/info", quizHandler.Info)
			quiz.POST("/:id/start", quizHandler.Start)
			quiz.POST("/:id/submit", quizHandler.Submit)
			quiz.GET("/:id/leaderboard", quizHandler.Leaderboard)
		}

		// User surface (role user)
		user := api.Group("/user")
		user.Use(middleware.Auth(authService), middleware.RequireUser())
		{
			user.GET("/subjects", userHandler.Subjects)
			user.GET("/subjects/:slug/chapters", userHandler.SubjectChapters)
			user.GET("/chapters/:slug/quizzes", userHandler.ChapterQuizzes)
			user.GET("/available-quizzes", userHandler.AvailableQuizzes)
			user.GET("/scores", userHandler.Scores)
			user.GET("/scores/:id", userHandler.ScoreDetails)
			user.GET("/dashboard/stats", userHandler.DashboardStats)
			user.GET("/performance-trend", userHandler.PerformanceTrend)
			user.GET("/preferences", userHandler.Preferences)
			user.PUT("/preferences", userHandler.UpdatePreferences)
			user.GET("/leaderboard", userHandler.Leaderboard)
			user.GET("/leaderboard/subject/:id", userHandler.SubjectLeaderboard)
			user.GET("/reminders", userHandler.Reminders)
			user.PUT("/reminders/:id/mark-read", userHandler.MarkReminderRead)
			// POST keeps the static segment out of the PUT tree, which
			// already has the :id wildcard at this position.
			user.POST("/reminders/mark-all-read", userHandler.MarkAllRemindersRead)
			user.DELETE("/reminders/:id", userHandler.DeleteReminder)
			user.POST("/export/scores", userHandler.ExportScores)
			user.GET("/export/status/:id", userHandler.ExportStatus)
		}

		// Admin surface (role admin)
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(authService), middleware.RequireAdmin())
		{
			admin.GET("/dashboard/stats", adminHandler.DashboardStats)
			admin.GET("/search", adminHandler.Search)

			admin.GET("/subjects", adminHandler.ListSubjects)
			admin.POST("/subjects", adminHandler.CreateSubject)
			admin.GET("/subjects/:id", adminHandler.GetSubject)
			admin.PUT("/subjects/:id", adminHandler.UpdateSubject)
			admin.DELETE("/subjects/:id", adminHandler.DeleteSubject)
			admin.GET("/subjects/:id/chapters", adminHandler.SubjectChapters)

			admin.GET("/chapters", adminHandler.ListChapters)
			admin.POST("/chapters", adminHandler.CreateChapter)
			admin.PUT("/chapters/:id", adminHandler.UpdateChapter)
			admin.DELETE("/chapters/:id", adminHandler.DeleteChapter)

			admin.GET("/quizzes", adminHandler.ListQuizzes)
			admin.POST("/quizzes", adminHandler.CreateQuiz)
			admin.GET("/quizzes/:id", adminHandler.GetQuiz)
			admin.PUT("/quizzes/:id", adminHandler.UpdateQuiz)
			admin.DELETE("/quizzes/:id", adminHandler.DeleteQuiz)

			admin.GET("/quizzes/:id/questions", adminHandler.ListQuizQuestions)
			admin.POST("/quizzes/:id/questions", adminHandler.CreateQuestion)
			admin.PUT("/questions/:id", adminHandler.UpdateQuestion)
			admin.DELETE("/questions/:id", adminHandler.DeleteQuestion)

			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users/export", adminHandler.ExportUsers)
			admin.GET("/users/:id", adminHandler.GetUser)
			admin.GET("/users/:id/history", adminHandler.UserHistory)
			admin.PUT("/users/:id/toggle-status", adminHandler.ToggleUserStatus)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
		}

		// Health check endpoint
		api.GET("/health", func(c *gin.Context) {
			dbStatus := "ok"
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				dbStatus = "unavailable"
			}

			cacheStatus := "ok"
			if cerr := cache.Ping(c.Request.Context()); cerr != nil {
				cacheStatus = "unavailable"
			}

			schedulerStatus := "stopped"
			if scheduler.Running() {
				schedulerStatus = "running"
			}

			status := http.StatusOK
			overall := "ok"
			if dbStatus != "ok" {
				status = http.StatusServiceUnavailable
				overall = "unavailable"
			}
			c.JSON(status, gin.H{
				"status":    overall,
				"database":  dbStatus,
				"cache":     cacheStatus,
				"scheduler": schedulerStatus,
			})
		})
	}

	// WebSocket endpoint for reminder and leaderboard notifications.
	// Browsers cannot set headers on websocket requests, so the token
	// is also accepted as a query parameter by the auth middleware.
	notify := router.Group("/ws")
	notify.Use(middleware.Auth(authService), middleware.RequireUser())
	notify.GET("/notifications", func(c *gin.Context) {
		actor, ok := middleware.GetActor(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed",
				zap.Uint("user_id", actor.ID),
				zap.Error(err))
			return
		}

		hub.RegisterClient(conn, actor.ID)
	})
}
