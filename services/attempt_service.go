package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"gorm.io/gorm"

	"quizmaster/models"
)

// AttemptService implements quiz availability, the attempt policy, and
// the scoring engine.
type AttemptService struct {
	db      *gorm.DB
	quizzes *QuizService
}

func NewAttemptService(db *gorm.DB, quizzes *QuizService) *AttemptService {
	return &AttemptService{db: db, quizzes: quizzes}
}

type QuizInfo struct {
	Quiz              *models.Quiz      `json:"quiz"`
	Status            string            `json:"status"`
	IsAvailable       bool              `json:"is_available"`
	QuestionsCount    int               `json:"questions_count"`
	AttemptsMade      int               `json:"attempts_made"`
	AttemptsRemaining int               `json:"attempts_remaining"`
	CanAttempt        bool              `json:"can_attempt"`
	PreviousScores    []PreviousAttempt `json:"previous_scores"`
}

type PreviousAttempt struct {
	Attempt    int       `json:"attempt"`
	Percentage float64   `json:"score"`
	Passed     bool      `json:"passed"`
	Date       time.Time `json:"date"`
}

type StartedQuiz struct {
	Quiz            *models.Quiz   `json:"quiz"`
	Questions       []QuizQuestion `json:"questions"`
	DurationMinutes int            `json:"duration_minutes"`
	StartedAt       time.Time      `json:"started_at"`
	AttemptNumber   int            `json:"attempt_number"`
}

// QuizQuestion is a question as shown to a quiz taker: the correct
// answer and explanation are withheld.
type QuizQuestion struct {
	ID           uint     `json:"id"`
	QuestionText string   `json:"question_text"`
	QuestionType string   `json:"question_type"`
	Points       int      `json:"points"`
	Options      []string `json:"options"`
	Order        int      `json:"order"`
}

type SubmitRequest struct {
	Answers   map[string]any `json:"answers" binding:"required"`
	StartedAt *time.Time     `json:"started_at"`
}

type SubmitResult struct {
	Score          *models.Score    `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	CorrectAnswers int              `json:"correct_answers"`
	Percentage     float64          `json:"percentage"`
	Passed         bool             `json:"passed"`
	QuestionResult []QuestionResult `json:"question_results"`
}

type QuestionResult struct {
	QuestionID    uint   `json:"question_id"`
	QuestionText  string `json:"question_text"`
	UserAnswer    any    `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Explanation   string `json:"explanation,omitempty"`
	Points        int    `json:"points"`
	Earned        int    `json:"earned"`
}

// Info returns a quiz together with the caller's attempt standing.
func (s *AttemptService) Info(userID, quizID uint, now time.Time) (*QuizInfo, error) {
	quiz, err := s.quizzes.GetActiveQuiz(quizID)
	if err != nil {
		return nil, err
	}

	var attempts []models.Score
	if err := s.db.Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("attempt_number").
		Find(&attempts).Error; err != nil {
		return nil, err
	}

	var questionCount int64
	s.db.Model(&models.Question{}).Where("quiz_id = ? AND is_active = ?", quizID, true).Count(&questionCount)

	previous := make([]PreviousAttempt, 0, len(attempts))
	for _, a := range attempts {
		previous = append(previous, PreviousAttempt{
			Attempt:    a.AttemptNumber,
			Percentage: a.Percentage,
			Passed:     a.Passed,
			Date:       a.CreatedAt,
		})
	}

	return &QuizInfo{
		Quiz:              quiz,
		Status:            quiz.StatusAt(now),
		IsAvailable:       quiz.AvailableAt(now),
		QuestionsCount:    int(questionCount),
		AttemptsMade:      len(attempts),
		AttemptsRemaining: quiz.AttemptsRemaining(len(attempts)),
		CanAttempt:        quiz.CanAttempt(len(attempts), now),
		PreviousScores:    previous,
	}, nil
}

// Start checks availability and the attempt policy, then hands out the
// active questions with correct answers withheld. No Score row is
// written until submission.
func (s *AttemptService) Start(userID, quizID uint, now time.Time) (*StartedQuiz, error) {
	quiz, err := s.quizzes.GetActiveQuiz(quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.AvailableAt(now) {
		return nil, fmt.Errorf("%w: quiz is %s", ErrForbidden, quiz.StatusAt(now))
	}

	attempts, err := s.countAttempts(s.db, userID, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.CanAttempt(attempts, now) {
		return nil, fmt.Errorf("%w: no attempts remaining", ErrForbidden)
	}

	questions, err := s.quizzes.ListActiveQuestions(quizID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: quiz has no questions", ErrNotFound)
	}

	taken := make([]QuizQuestion, 0, len(questions))
	for _, q := range questions {
		taken = append(taken, QuizQuestion{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Points:       q.Points,
			Options:      q.OptionList(),
			Order:        q.Order,
		})
	}

	return &StartedQuiz{
		Quiz:            quiz,
		Questions:       taken,
		DurationMinutes: quiz.DurationMinutes,
		StartedAt:       now,
		AttemptNumber:   attempts + 1,
	}, nil
}

// Submit scores the submitted answers and persists exactly one Score
// row inside a transaction. The attempt check runs again before the
// insert; the unique (user, quiz, attempt_number) index turns a lost
// race into a conflict instead of a duplicate attempt.
func (s *AttemptService) Submit(userID, quizID uint, req *SubmitRequest, now time.Time) (*SubmitResult, error) {
	quiz, err := s.quizzes.GetActiveQuiz(quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.AvailableAt(now) {
		return nil, fmt.Errorf("%w: quiz is %s", ErrForbidden, quiz.StatusAt(now))
	}

	questions, err := s.quizzes.ListActiveQuestions(quizID)
	if err != nil {
		return nil, err
	}

	totalPoints := 0
	earnedPoints := 0
	correctCount := 0
	results := make([]QuestionResult, 0, len(questions))

	for _, q := range questions {
		totalPoints += q.Points

		submitted, answered := req.Answers[strconv.FormatUint(uint64(q.ID), 10)]
		correct := answered && answerString(submitted) == q.CorrectAnswer

		earned := 0
		if correct {
			earnedPoints += q.Points
			correctCount++
			earned = q.Points
		}

		result := QuestionResult{
			QuestionID:    q.ID,
			QuestionText:  q.QuestionText,
			UserAnswer:    submitted,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     correct,
			Points:        q.Points,
			Earned:        earned,
		}
		if !correct {
			result.Explanation = q.Explanation
		}
		results = append(results, result)
	}

	percentage := 0.0
	if totalPoints > 0 {
		percentage = float64(earnedPoints) / float64(totalPoints) * 100
	}
	passed := percentage >= float64(quiz.PassingScore)

	startedAt := now
	if req.StartedAt != nil {
		startedAt = req.StartedAt.UTC()
	}

	score := models.Score{
		UserID:      userID,
		QuizID:      quizID,
		Score:       earnedPoints,
		MaxScore:    totalPoints,
		Percentage:  percentage,
		Passed:      passed,
		StartedAt:   startedAt,
		CompletedAt: now,
	}
	if err := score.SetAnswers(req.Answers); err != nil {
		return nil, err
	}
	score.CalculateTimeTaken()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		attempts, err := s.countAttempts(tx, userID, quizID)
		if err != nil {
			return err
		}
		if !quiz.CanAttempt(attempts, now) {
			return fmt.Errorf("%w: no attempts remaining", ErrForbidden)
		}
		score.AttemptNumber = attempts + 1
		if err := tx.Create(&score).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: concurrent submission for this attempt", ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.quizzes.invalidate(quizID)

	return &SubmitResult{
		Score:          &score,
		TotalQuestions: len(questions),
		CorrectAnswers: correctCount,
		Percentage:     math.Round(percentage*100) / 100,
		Passed:         passed,
		QuestionResult: results,
	}, nil
}

// ScoreDetails returns one attempt with its per-question breakdown,
// restricted to the owning user.
func (s *AttemptService) ScoreDetails(userID, scoreID uint) (*models.Score, []QuestionResult, error) {
	var score models.Score
	err := s.db.Preload("Quiz").Preload("Quiz.Chapter").Preload("Quiz.Chapter.Subject").
		First(&score, scoreID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: score %d", ErrNotFound, scoreID)
		}
		return nil, nil, err
	}
	if score.UserID != userID {
		return nil, nil, fmt.Errorf("%w: score belongs to another user", ErrForbidden)
	}

	questions, err := s.quizzes.ListActiveQuestions(score.QuizID)
	if err != nil {
		return nil, nil, err
	}

	answers := score.AnswerMap()
	results := make([]QuestionResult, 0, len(questions))
	for _, q := range questions {
		submitted, answered := answers[strconv.FormatUint(uint64(q.ID), 10)]
		correct := answered && answerString(submitted) == q.CorrectAnswer
		earned := 0
		if correct {
			earned = q.Points
		}
		result := QuestionResult{
			QuestionID:    q.ID,
			QuestionText:  q.QuestionText,
			UserAnswer:    submitted,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     correct,
			Points:        q.Points,
			Earned:        earned,
		}
		if !correct {
			result.Explanation = q.Explanation
		}
		results = append(results, result)
	}
	return &score, results, nil
}

func (s *AttemptService) UserScores(userID uint) ([]models.Score, error) {
	var scores []models.Score
	err := s.db.Where("user_id = ?", userID).
		Preload("Quiz").Preload("Quiz.Chapter").Preload("Quiz.Chapter.Subject").
		Order("created_at DESC").
		Find(&scores).Error
	return scores, err
}

func (s *AttemptService) RecentActivity(userID uint, limit int) ([]models.Score, error) {
	var scores []models.Score
	err := s.db.Where("user_id = ?", userID).
		Preload("Quiz").
		Order("created_at DESC").
		Limit(limit).
		Find(&scores).Error
	return scores, err
}

type UserStats struct {
	TotalAttempts int            `json:"total_attempts"`
	AverageScore  float64        `json:"average_score"`
	PassedCount   int            `json:"passed_count"`
	FailedCount   int            `json:"failed_count"`
	QuizzesPassed int            `json:"quizzes_passed"`
	RecentScores  []models.Score `json:"recent_scores"`
}

func (s *AttemptService) Stats(userID uint) (*UserStats, error) {
	var scores []models.Score
	if err := s.db.Where("user_id = ?", userID).Find(&scores).Error; err != nil {
		return nil, err
	}

	stats := &UserStats{TotalAttempts: len(scores)}
	passedQuizzes := map[uint]bool{}
	sum := 0.0
	for _, sc := range scores {
		sum += sc.Percentage
		if sc.Passed {
			stats.PassedCount++
			passedQuizzes[sc.QuizID] = true
		} else {
			stats.FailedCount++
		}
	}
	if len(scores) > 0 {
		stats.AverageScore = math.Round(sum/float64(len(scores))*100) / 100
	}
	stats.QuizzesPassed = len(passedQuizzes)

	recent, err := s.RecentActivity(userID, 5)
	if err != nil {
		return nil, err
	}
	stats.RecentScores = recent
	return stats, nil
}

type PerformanceTrend struct {
	Labels        []string  `json:"labels"`
	Data          []float64 `json:"data"`
	TotalAttempts int       `json:"total_attempts"`
}

// Trend charts the user's last ten attempts in chronological order.
func (s *AttemptService) Trend(userID uint) (*PerformanceTrend, error) {
	var scores []models.Score
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(10).
		Find(&scores).Error
	if err != nil {
		return nil, err
	}

	trend := &PerformanceTrend{
		Labels:        []string{},
		Data:          []float64{},
		TotalAttempts: len(scores),
	}
	for i := len(scores) - 1; i >= 0; i-- {
		sc := scores[i]
		n := len(scores) - i
		trend.Labels = append(trend.Labels,
			fmt.Sprintf("#%d - %s", n, sc.CreatedAt.Format("Jan 02 15:04")))
		trend.Data = append(trend.Data, math.Round(sc.Percentage*10)/10)
	}
	return trend, nil
}

// AvailableQuizzes lists quizzes the user can attempt right now.
func (s *AttemptService) AvailableQuizzes(userID uint, now time.Time) ([]QuizInfo, error) {
	var quizzes []models.Quiz
	err := s.db.Where("is_active = ?", true).
		Preload("Chapter").Preload("Chapter.Subject").
		Order("end_date").
		Find(&quizzes).Error
	if err != nil {
		return nil, err
	}

	infos := make([]QuizInfo, 0, len(quizzes))
	for i := range quizzes {
		quiz := &quizzes[i]
		if !quiz.AvailableAt(now) {
			continue
		}
		attempts, err := s.countAttempts(s.db, userID, quiz.ID)
		if err != nil {
			return nil, err
		}
		if !quiz.CanAttempt(attempts, now) {
			continue
		}
		infos = append(infos, QuizInfo{
			Quiz:              quiz,
			Status:            quiz.StatusAt(now),
			IsAvailable:       true,
			AttemptsMade:      attempts,
			AttemptsRemaining: quiz.AttemptsRemaining(attempts),
			CanAttempt:        true,
		})
	}
	return infos, nil
}

func (s *AttemptService) countAttempts(tx *gorm.DB, userID, quizID uint) (int, error) {
	var count int64
	err := tx.Model(&models.Score{}).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Count(&count).Error
	return int(count), err
}

// answerString normalizes a submitted answer to the string form used
// for comparison with the stored correct answer. JSON numbers arrive as
// float64; whole values render without a decimal point so an option
// index submitted as 0 or "0" compares equal.
func answerString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
