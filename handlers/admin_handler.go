package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"quizmaster/models"
	"quizmaster/services"
)

// AdminHandler serves the administrative CRUD surface for subjects,
// chapters, quizzes, questions and users.
type AdminHandler struct {
	subjects *services.SubjectService
	quizzes  *services.QuizService
	users    *services.UserService
}

func NewAdminHandler(subjects *services.SubjectService, quizzes *services.QuizService, users *services.UserService) *AdminHandler {
	return &AdminHandler{subjects: subjects, quizzes: quizzes, users: users}
}

// Subjects

func (h *AdminHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.subjects.ListAllSubjects()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

func (h *AdminHandler) CreateSubject(c *gin.Context) {
	var req services.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subject, err := h.subjects.CreateSubject(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Subject created successfully", "subject": subject})
}

func (h *AdminHandler) GetSubject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	subject, err := h.subjects.GetSubject(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": subject})
}

func (h *AdminHandler) UpdateSubject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req services.UpdateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subject, err := h.subjects.UpdateSubject(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subject updated successfully", "subject": subject})
}

func (h *AdminHandler) DeleteSubject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.subjects.DeleteSubject(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subject deleted successfully"})
}

// Chapters

func (h *AdminHandler) ListChapters(c *gin.Context) {
	chapters, err := h.subjects.ListAllChapters()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": chapters})
}

func (h *AdminHandler) SubjectChapters(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	chapters, err := h.subjects.ListChapters(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": chapters})
}

func (h *AdminHandler) CreateChapter(c *gin.Context) {
	var req services.CreateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chapter, err := h.subjects.CreateChapter(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Chapter created successfully", "chapter": chapter})
}

func (h *AdminHandler) UpdateChapter(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req services.UpdateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chapter, err := h.subjects.UpdateChapter(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chapter updated successfully", "chapter": chapter})
}

func (h *AdminHandler) DeleteChapter(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.subjects.DeleteChapter(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chapter deleted successfully"})
}

// Quizzes

func (h *AdminHandler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.quizzes.ListQuizzes()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quizzes": quizzes})
}

func (h *AdminHandler) CreateQuiz(c *gin.Context) {
	var req services.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quiz, err := h.quizzes.CreateQuiz(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Quiz created successfully", "quiz": quiz})
}

func (h *AdminHandler) GetQuiz(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	quiz, err := h.quizzes.GetQuiz(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quiz": quiz})
}

func (h *AdminHandler) UpdateQuiz(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req services.UpdateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quiz, err := h.quizzes.UpdateQuiz(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quiz updated successfully", "quiz": quiz})
}

func (h *AdminHandler) DeleteQuiz(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.quizzes.DeleteQuiz(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quiz deleted successfully"})
}

// Questions

func (h *AdminHandler) ListQuizQuestions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	quiz, err := h.quizzes.GetQuiz(id)
	if err != nil {
		respondError(c, err)
		return
	}

	questions, err := h.quizzes.ListActiveQuestions(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quiz": quiz, "questions": questions})
}

func (h *AdminHandler) CreateQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	question, err := h.quizzes.CreateQuestion(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Question created successfully", "question": question})
}

func (h *AdminHandler) UpdateQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req services.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	question, err := h.quizzes.UpdateQuestion(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question updated successfully", "question": question})
}

func (h *AdminHandler) DeleteQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.quizzes.DeleteQuestion(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

// Dashboard

func (h *AdminHandler) DashboardStats(c *gin.Context) {
	stats, err := h.users.AdminDashboardStats(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Search looks across subjects, quizzes and users. The type query
// parameter narrows the scope; it defaults to all three.
func (h *AdminHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	searchType := c.DefaultQuery("type", "all")

	results := gin.H{
		"subjects": []models.Subject{},
		"quizzes":  []models.Quiz{},
		"users":    []services.UserListItem{},
	}
	if query == "" {
		c.JSON(http.StatusOK, results)
		return
	}

	if searchType == "all" || searchType == "subjects" {
		subjects, err := h.subjects.SearchSubjects(query)
		if err != nil {
			respondError(c, err)
			return
		}
		results["subjects"] = subjects
	}
	if searchType == "all" || searchType == "quizzes" {
		quizzes, err := h.quizzes.SearchQuizzes(query)
		if err != nil {
			respondError(c, err)
			return
		}
		results["quizzes"] = quizzes
	}
	if searchType == "all" || searchType == "users" {
		users, err := h.users.List(query)
		if err != nil {
			respondError(c, err)
			return
		}
		results["users"] = users
	}
	c.JSON(http.StatusOK, results)
}

// Users

func (h *AdminHandler) ExportUsers(c *gin.Context) {
	rows, err := h.users.ExportCSV()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Users exported successfully",
		"csv_data":    rows,
		"filename":    fmt.Sprintf("users_export_%s.csv", time.Now().UTC().Format("20060102_150405")),
		"total_users": len(rows) - 1,
	})
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.users.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AdminHandler) UserHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	scores, err := h.users.History(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": scores})
}

func (h *AdminHandler) ToggleUserStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.users.ToggleActive(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User status updated", "user": user})
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.users.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return uint(id), true
}
