package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"quizmaster/models"
)

type QuizService struct {
	db    *gorm.DB
	cache Cache
}

func NewQuizService(db *gorm.DB, cache Cache) *QuizService {
	return &QuizService{db: db, cache: cache}
}

type CreateQuizRequest struct {
	Title           string    `json:"title" binding:"required,max=200"`
	Description     string    `json:"description"`
	ChapterID       uint      `json:"chapter_id" binding:"required"`
	DurationMinutes *int      `json:"duration_minutes" binding:"omitempty,min=0"`
	PassingScore    *int      `json:"passing_score" binding:"omitempty,min=0,max=100"`
	MaxAttempts     *int      `json:"max_attempts" binding:"omitempty,min=0"`
	StartDate       time.Time `json:"start_date" binding:"required"`
	EndDate         time.Time `json:"end_date" binding:"required"`
}

type UpdateQuizRequest struct {
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	PassingScore    *int       `json:"passing_score" binding:"omitempty,min=0,max=100"`
	MaxAttempts     *int       `json:"max_attempts" binding:"omitempty,min=0"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	IsActive        *bool      `json:"is_active"`
}

type CreateQuestionRequest struct {
	QuestionText  string   `json:"question_text" binding:"required"`
	QuestionType  string   `json:"question_type"`
	Points        int      `json:"points" binding:"omitempty,min=1"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer" binding:"required"`
	Explanation   string   `json:"explanation"`
	Order         int      `json:"order"`
}

type UpdateQuestionRequest struct {
	QuestionText  string   `json:"question_text"`
	Points        int      `json:"points" binding:"omitempty,min=1"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   *string  `json:"explanation"`
	Order         *int     `json:"order"`
}

func (s *QuizService) CreateQuiz(req *CreateQuizRequest) (*models.Quiz, error) {
	if !req.StartDate.Before(req.EndDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}

	var chapter models.Chapter
	if err := s.db.First(&chapter, req.ChapterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: chapter %d", ErrNotFound, req.ChapterID)
		}
		return nil, err
	}

	quiz := models.Quiz{
		Title:       req.Title,
		Slug:        models.Slugify(req.Title),
		Description: req.Description,
		ChapterID:   req.ChapterID,
		StartDate:   req.StartDate.UTC(),
		EndDate:     req.EndDate.UTC(),
		IsActive:    true,
	}
	// Defaults apply only when a field is absent. An explicit zero is
	// kept, so nil pointers distinguish the two.
	quiz.DurationMinutes = 30
	if req.DurationMinutes != nil {
		quiz.DurationMinutes = *req.DurationMinutes
	}
	quiz.PassingScore = 60
	if req.PassingScore != nil {
		quiz.PassingScore = *req.PassingScore
	}
	quiz.MaxAttempts = 3
	if req.MaxAttempts != nil {
		quiz.MaxAttempts = *req.MaxAttempts
	}

	if err := s.db.Create(&quiz).Error; err != nil {
		return nil, err
	}

	s.invalidate(quiz.ID)
	return &quiz, nil
}

func (s *QuizService) GetQuiz(id uint) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.db.Preload("Chapter").Preload("Chapter.Subject").First(&quiz, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: quiz %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &quiz, nil
}

// GetActiveQuiz returns a quiz only if it has not been soft-deleted.
func (s *QuizService) GetActiveQuiz(id uint) (*models.Quiz, error) {
	quiz, err := s.GetQuiz(id)
	if err != nil {
		return nil, err
	}
	if !quiz.IsActive {
		return nil, fmt.Errorf("%w: quiz %d", ErrNotFound, id)
	}
	return quiz, nil
}

func (s *QuizService) GetQuizBySlug(slug string) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.db.Where("slug = ? AND is_active = ?", slug, true).
		Preload("Chapter").Preload("Chapter.Subject").
		First(&quiz).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: quiz %q", ErrNotFound, slug)
		}
		return nil, err
	}
	return &quiz, nil
}

func (s *QuizService) ListQuizzes() ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := s.db.Preload("Chapter").Preload("Chapter.Subject").
		Order("created_at DESC").
		Find(&quizzes).Error
	return quizzes, err
}

func (s *QuizService) ListChapterQuizzes(chapterID uint) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := s.db.Where("chapter_id = ? AND is_active = ?", chapterID, true).
		Order("start_date").
		Find(&quizzes).Error
	return quizzes, err
}

// SearchQuizzes matches active quizzes by title, description, chapter
// name or subject name.
func (s *QuizService) SearchQuizzes(query string) ([]models.Quiz, error) {
	like := "%" + query + "%"
	var quizzes []models.Quiz
	err := s.db.
		Joins("JOIN chapters ON chapters.id = quizzes.chapter_id").
		Joins("JOIN subjects ON subjects.id = chapters.subject_id").
		Where("quizzes.is_active = ?", true).
		Where("quizzes.title LIKE ? OR quizzes.description LIKE ? OR chapters.name LIKE ? OR subjects.name LIKE ?",
			like, like, like, like).
		Preload("Chapter").Preload("Chapter.Subject").
		Order("quizzes.title").
		Find(&quizzes).Error
	return quizzes, err
}

func (s *QuizService) UpdateQuiz(id uint, req *UpdateQuizRequest) (*models.Quiz, error) {
	quiz, err := s.GetQuiz(id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" && req.Title != quiz.Title {
		quiz.Title = req.Title
		quiz.Slug = models.Slugify(req.Title)
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.DurationMinutes > 0 {
		quiz.DurationMinutes = req.DurationMinutes
	}
	if req.PassingScore != nil {
		quiz.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		quiz.MaxAttempts = *req.MaxAttempts
	}
	if req.StartDate != nil {
		quiz.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		quiz.EndDate = req.EndDate.UTC()
	}
	if req.IsActive != nil {
		quiz.IsActive = *req.IsActive
	}
	if !quiz.StartDate.Before(quiz.EndDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}

	if err := s.db.Save(quiz).Error; err != nil {
		return nil, err
	}

	s.invalidate(quiz.ID)
	return quiz, nil
}

// DeleteQuiz soft-deletes a quiz; Score rows keep their reference.
func (s *QuizService) DeleteQuiz(id uint) error {
	quiz, err := s.GetQuiz(id)
	if err != nil {
		return err
	}
	if err := s.db.Model(quiz).Update("is_active", false).Error; err != nil {
		return err
	}
	s.invalidate(id)
	return nil
}

func (s *QuizService) CreateQuestion(quizID uint, req *CreateQuestionRequest) (*models.Question, error) {
	quiz, err := s.GetQuiz(quizID)
	if err != nil {
		return nil, err
	}

	questionType := req.QuestionType
	if questionType == "" {
		questionType = models.QuestionTypeMultipleChoice
	}
	if err := validateAnswerEncoding(questionType, req.CorrectAnswer, req.Options); err != nil {
		return nil, err
	}

	question := models.Question{
		QuizID:        quiz.ID,
		QuestionText:  req.QuestionText,
		QuestionType:  questionType,
		Points:        req.Points,
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
		Order:         req.Order,
		IsActive:      true,
	}
	if question.Points == 0 {
		question.Points = 1
	}

	options := req.Options
	if questionType == models.QuestionTypeTrueFalse && len(options) == 0 {
		options = []string{"True", "False"}
	}
	if err := question.SetOptions(options); err != nil {
		return nil, err
	}

	if err := s.db.Create(&question).Error; err != nil {
		return nil, err
	}

	s.invalidate(quizID)
	return &question, nil
}

func (s *QuizService) GetQuestion(id uint) (*models.Question, error) {
	var question models.Question
	if err := s.db.First(&question, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: question %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &question, nil
}

// ListActiveQuestions returns the quiz's active questions in display order.
func (s *QuizService) ListActiveQuestions(quizID uint) ([]models.Question, error) {
	var questions []models.Question
	err := s.db.Where("quiz_id = ? AND is_active = ?", quizID, true).
		Order(`"order"`).
		Find(&questions).Error
	return questions, err
}

func (s *QuizService) UpdateQuestion(id uint, req *UpdateQuestionRequest) (*models.Question, error) {
	question, err := s.GetQuestion(id)
	if err != nil {
		return nil, err
	}

	if req.QuestionText != "" {
		question.QuestionText = req.QuestionText
	}
	if req.Points > 0 {
		question.Points = req.Points
	}
	if req.Options != nil {
		if err := question.SetOptions(req.Options); err != nil {
			return nil, err
		}
	}
	if req.CorrectAnswer != "" {
		question.CorrectAnswer = req.CorrectAnswer
	}
	if req.Explanation != nil {
		question.Explanation = *req.Explanation
	}
	if req.Order != nil {
		question.Order = *req.Order
	}
	if err := validateAnswerEncoding(question.QuestionType, question.CorrectAnswer, question.OptionList()); err != nil {
		return nil, err
	}

	if err := s.db.Save(question).Error; err != nil {
		return nil, err
	}

	s.invalidate(question.QuizID)
	return question, nil
}

func (s *QuizService) DeleteQuestion(id uint) error {
	question, err := s.GetQuestion(id)
	if err != nil {
		return err
	}
	if err := s.db.Model(question).Update("is_active", false).Error; err != nil {
		return err
	}
	s.invalidate(question.QuizID)
	return nil
}

func (s *QuizService) invalidate(quizID uint) {
	ctx := context.Background()
	s.cache.Delete(ctx, fmt.Sprintf("quiz:%d", quizID))
	s.cache.DeletePattern(ctx, "leaderboard:*")
}

// validateAnswerEncoding enforces the invariant that correct_answer
// matches the encoding the question type uses: an in-range option index
// for multiple choice, "true"/"false" for boolean questions.
func validateAnswerEncoding(questionType, correctAnswer string, options []string) error {
	switch questionType {
	case models.QuestionTypeMultipleChoice:
		if len(options) < 2 {
			return fmt.Errorf("%w: multiple choice questions need at least 2 options", ErrValidation)
		}
		idx, err := strconv.Atoi(correctAnswer)
		if err != nil || idx < 0 || idx >= len(options) {
			return fmt.Errorf("%w: correct_answer must be a valid option index", ErrValidation)
		}
	case models.QuestionTypeTrueFalse:
		if correctAnswer != "true" && correctAnswer != "false" {
			return fmt.Errorf("%w: correct_answer must be \"true\" or \"false\"", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown question type %q", ErrValidation, questionType)
	}
	return nil
}
