package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"quizmaster/middleware"
	"quizmaster/services"
)

// UserHandler serves the authenticated end-user surface: catalog
// browsing, score history, dashboards, leaderboards, reminders and
// exports.
type UserHandler struct {
	subjects     *services.SubjectService
	quizzes      *services.QuizService
	attempts     *services.AttemptService
	leaderboards *services.LeaderboardService
	reminders    *services.ReminderService
	reports      *services.ReportService
	users        *services.UserService
}

func NewUserHandler(
	subjects *services.SubjectService,
	quizzes *services.QuizService,
	attempts *services.AttemptService,
	leaderboards *services.LeaderboardService,
	reminders *services.ReminderService,
	reports *services.ReportService,
	users *services.UserService,
) *UserHandler {
	return &UserHandler{
		subjects:     subjects,
		quizzes:      quizzes,
		attempts:     attempts,
		leaderboards: leaderboards,
		reminders:    reminders,
		reports:      reports,
		users:        users,
	}
}

func (h *UserHandler) Subjects(c *gin.Context) {
	subjects, err := h.subjects.ListActiveSubjects(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

func (h *UserHandler) SubjectChapters(c *gin.Context) {
	subject, err := h.subjects.GetSubjectBySlug(c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	chapters, err := h.subjects.ListChapters(subject.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": subject, "chapters": chapters})
}

func (h *UserHandler) ChapterQuizzes(c *gin.Context) {
	chapter, err := h.subjects.GetChapterBySlug(c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	quizzes, err := h.quizzes.ListChapterQuizzes(chapter.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now().UTC()
	items := make([]gin.H, 0, len(quizzes))
	for i := range quizzes {
		items = append(items, gin.H{
			"quiz":         &quizzes[i],
			"status":       quizzes[i].StatusAt(now),
			"is_available": quizzes[i].AvailableAt(now),
		})
	}
	c.JSON(http.StatusOK, gin.H{"chapter": chapter, "quizzes": items})
}

func (h *UserHandler) AvailableQuizzes(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	infos, err := h.attempts.AvailableQuizzes(actor.ID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quizzes": infos})
}

func (h *UserHandler) Scores(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	scores, err := h.attempts.UserScores(actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

func (h *UserHandler) ScoreDetails(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	scoreID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid score ID"})
		return
	}

	score, results, err := h.attempts.ScoreDetails(actor.ID, uint(scoreID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"score": score, "question_results": results})
}

func (h *UserHandler) DashboardStats(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	stats, err := h.attempts.Stats(actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *UserHandler) PerformanceTrend(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	trend, err := h.attempts.Trend(actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trend)
}

func (h *UserHandler) Preferences(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	prefs, err := h.users.GetPreferences(actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req services.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prefs, err := h.users.UpdatePreferences(actor.ID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Preferences updated", "preferences": prefs})
}

func (h *UserHandler) Leaderboard(c *gin.Context) {
	entries, err := h.leaderboards.Global(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *UserHandler) SubjectLeaderboard(c *gin.Context) {
	subjectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subject ID"})
		return
	}

	entries, err := h.leaderboards.ForSubject(c.Request.Context(), uint(subjectID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *UserHandler) Reminders(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread") == "true"
	reminders, err := h.reminders.ListForUser(actor.ID, unreadOnly)
	if err != nil {
		respondError(c, err)
		return
	}

	unread, err := h.reminders.UnreadCount(actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders": reminders, "unread_count": unread})
}

func (h *UserHandler) MarkReminderRead(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	reminderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reminder ID"})
		return
	}

	if err := h.reminders.MarkRead(actor.ID, uint(reminderID)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reminder marked as read"})
}

func (h *UserHandler) MarkAllRemindersRead(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	updated, err := h.reminders.MarkAllRead(actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All reminders marked as read", "updated": updated})
}

func (h *UserHandler) DeleteReminder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	reminderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reminder ID"})
		return
	}

	if err := h.reminders.Delete(actor.ID, uint(reminderID)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reminder deleted"})
}

func (h *UserHandler) ExportScores(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	taskID, err := h.reports.StartScoreExport(actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Export started", "task_id": taskID})
}

func (h *UserHandler) ExportStatus(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}

	status, err := h.reports.GetExportStatus(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func requireActor(c *gin.Context) (*services.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}
	return actor, true
}
