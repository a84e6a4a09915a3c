package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"quizmaster/middleware"
	"quizmaster/services"
)

// QuizHandler serves the end-user quiz lifecycle: info, start, submit,
// per-quiz leaderboard.
type QuizHandler struct {
	attempts     *services.AttemptService
	leaderboards *services.LeaderboardService
	hub          *services.Hub
}

func NewQuizHandler(attempts *services.AttemptService, leaderboards *services.LeaderboardService, hub *services.Hub) *QuizHandler {
	return &QuizHandler{attempts: attempts, leaderboards: leaderboards, hub: hub}
}

func (h *QuizHandler) Info(c *gin.Context) {
	actor, quizID, ok := h.actorAndQuizID(c)
	if !ok {
		return
	}

	info, err := h.attempts.Info(actor.ID, quizID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *QuizHandler) Start(c *gin.Context) {
	actor, quizID, ok := h.actorAndQuizID(c)
	if !ok {
		return
	}

	started, err := h.attempts.Start(actor.ID, quizID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "Quiz started successfully",
		"quiz":             started.Quiz,
		"questions":        started.Questions,
		"duration_minutes": started.DurationMinutes,
		"started_at":       started.StartedAt,
		"attempt_number":   started.AttemptNumber,
	})
}

func (h *QuizHandler) Submit(c *gin.Context) {
	actor, quizID, ok := h.actorAndQuizID(c)
	if !ok {
		return
	}

	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answers are required"})
		return
	}

	result, err := h.attempts.Submit(actor.ID, quizID, &req, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.BroadcastLeaderboardUpdate(quizID)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Quiz submitted successfully",
		"score":   result.Score,
		"results": result,
	})
}

func (h *QuizHandler) Leaderboard(c *gin.Context) {
	_, quizID, ok := h.actorAndQuizID(c)
	if !ok {
		return
	}

	entries, err := h.leaderboards.ForQuiz(c.Request.Context(), quizID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *QuizHandler) actorAndQuizID(c *gin.Context) (*services.Actor, uint, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, 0, false
	}

	quizID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quiz ID"})
		return nil, 0, false
	}
	return actor, uint(quizID), true
}
