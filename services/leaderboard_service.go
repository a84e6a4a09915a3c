package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"quizmaster/models"
)

// LeaderboardService ranks users by aggregate score statistics. The
// minimum-attempts threshold and the result limit are the same for
// every endpoint.
type LeaderboardService struct {
	db          *gorm.DB
	cache       Cache
	minAttempts int
	limit       int
}

func NewLeaderboardService(db *gorm.DB, cache Cache, minAttempts, limit int) *LeaderboardService {
	if minAttempts < 1 {
		minAttempts = 1
	}
	if limit < 1 {
		limit = 10
	}
	return &LeaderboardService{db: db, cache: cache, minAttempts: minAttempts, limit: limit}
}

type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	UserID        uint    `json:"user_id"`
	Username      string  `json:"username"`
	FullName      string  `json:"full_name"`
	TotalAttempts int     `json:"total_attempts"`
	AverageScore  float64 `json:"average_score"`
	PassedCount   int     `json:"passed_count"`
	PassRate      float64 `json:"pass_rate"`
}

// Global ranks users across all quizzes.
func (s *LeaderboardService) Global(ctx context.Context) ([]LeaderboardEntry, error) {
	return s.cached(ctx, "leaderboard:global", func() ([]models.Score, error) {
		var scores []models.Score
		err := s.db.Preload("User").Find(&scores).Error
		return scores, err
	})
}

// ForQuiz ranks users on a single quiz.
func (s *LeaderboardService) ForQuiz(ctx context.Context, quizID uint) ([]LeaderboardEntry, error) {
	key := fmt.Sprintf("leaderboard:quiz:%d", quizID)
	return s.cached(ctx, key, func() ([]models.Score, error) {
		var scores []models.Score
		err := s.db.Where("quiz_id = ?", quizID).Preload("User").Find(&scores).Error
		return scores, err
	})
}

// ForSubject ranks users across every quiz under a subject.
func (s *LeaderboardService) ForSubject(ctx context.Context, subjectID uint) ([]LeaderboardEntry, error) {
	key := fmt.Sprintf("leaderboard:subject:%d", subjectID)
	return s.cached(ctx, key, func() ([]models.Score, error) {
		var scores []models.Score
		err := s.db.
			Joins("JOIN quizzes ON quizzes.id = scores.quiz_id").
			Joins("JOIN chapters ON chapters.id = quizzes.chapter_id").
			Where("chapters.subject_id = ?", subjectID).
			Preload("User").
			Find(&scores).Error
		return scores, err
	})
}

func (s *LeaderboardService) cached(ctx context.Context, key string, load func() ([]models.Score, error)) ([]LeaderboardEntry, error) {
	if data, ok := s.cache.Get(ctx, key); ok {
		var entries []LeaderboardEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			return entries, nil
		}
	}

	scores, err := load()
	if err != nil {
		return nil, err
	}
	entries := s.rank(scores)

	if data, err := json.Marshal(entries); err == nil {
		s.cache.Set(ctx, key, data, 5*time.Minute)
	}
	return entries, nil
}

type userAggregate struct {
	userID       uint
	username     string
	fullName     string
	attempts     int
	sum          float64
	passed       int
	firstAttempt time.Time
}

// rank groups scores by user, filters by the minimum-attempts
// threshold, orders by average percentage descending (ties broken by
// earlier first-attempt timestamp, then user id for full determinism)
// and assigns dense ranks 1..N, truncated to the configured limit.
func (s *LeaderboardService) rank(scores []models.Score) []LeaderboardEntry {
	byUser := map[uint]*userAggregate{}
	for i := range scores {
		sc := &scores[i]
		agg, ok := byUser[sc.UserID]
		if !ok {
			agg = &userAggregate{
				userID:       sc.UserID,
				username:     sc.User.Username,
				fullName:     sc.User.FullName,
				firstAttempt: sc.CreatedAt,
			}
			byUser[sc.UserID] = agg
		}
		agg.attempts++
		agg.sum += sc.Percentage
		if sc.Passed {
			agg.passed++
		}
		if sc.CreatedAt.Before(agg.firstAttempt) {
			agg.firstAttempt = sc.CreatedAt
		}
	}

	aggregates := make([]*userAggregate, 0, len(byUser))
	for _, agg := range byUser {
		if agg.attempts >= s.minAttempts {
			aggregates = append(aggregates, agg)
		}
	}

	sort.Slice(aggregates, func(i, j int) bool {
		avgI := aggregates[i].sum / float64(aggregates[i].attempts)
		avgJ := aggregates[j].sum / float64(aggregates[j].attempts)
		if avgI != avgJ {
			return avgI > avgJ
		}
		if !aggregates[i].firstAttempt.Equal(aggregates[j].firstAttempt) {
			return aggregates[i].firstAttempt.Before(aggregates[j].firstAttempt)
		}
		return aggregates[i].userID < aggregates[j].userID
	})

	if len(aggregates) > s.limit {
		aggregates = aggregates[:s.limit]
	}

	entries := make([]LeaderboardEntry, 0, len(aggregates))
	var prevAvg float64
	rank := 0
	for i, agg := range aggregates {
		avg := agg.sum / float64(agg.attempts)
		if i == 0 || avg != prevAvg {
			rank++
		}
		prevAvg = avg
		entries = append(entries, LeaderboardEntry{
			Rank:          rank,
			UserID:        agg.userID,
			Username:      agg.username,
			FullName:      agg.fullName,
			TotalAttempts: agg.attempts,
			AverageScore:  math.Round(avg*100) / 100,
			PassedCount:   agg.passed,
			PassRate:      math.Round(float64(agg.passed)/float64(agg.attempts)*100*100) / 100,
		})
	}
	return entries
}
