package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"quizmaster/models"
)

const subjectListCacheKey = "subjects:active"

type SubjectService struct {
	db    *gorm.DB
	cache Cache
}

func NewSubjectService(db *gorm.DB, cache Cache) *SubjectService {
	return &SubjectService{db: db, cache: cache}
}

type CreateSubjectRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Code        string `json:"code" binding:"required,max=20"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

type UpdateSubjectRequest struct {
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Description *string `json:"description"`
	Color       string  `json:"color"`
	Icon        string  `json:"icon"`
}

type CreateChapterRequest struct {
	Name          string `json:"name" binding:"required,max=100"`
	SubjectID     uint   `json:"subject_id" binding:"required"`
	ChapterNumber int    `json:"chapter_number" binding:"required,min=1"`
	Description   string `json:"description"`
}

type UpdateChapterRequest struct {
	Name          string  `json:"name"`
	ChapterNumber int     `json:"chapter_number"`
	Description   *string `json:"description"`
}

func (s *SubjectService) CreateSubject(req *CreateSubjectRequest) (*models.Subject, error) {
	subject := models.Subject{
		Name:        req.Name,
		Slug:        models.Slugify(req.Name),
		Code:        req.Code,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		IsActive:    true,
	}
	if subject.Color == "" {
		subject.Color = "#3498db"
	}
	if subject.Icon == "" {
		subject.Icon = "book"
	}

	var count int64
	s.db.Model(&models.Subject{}).Where("slug = ? OR code = ?", subject.Slug, subject.Code).Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("%w: subject with the same name or code exists", ErrConflict)
	}

	if err := s.db.Create(&subject).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: subject with the same name or code exists", ErrConflict)
		}
		return nil, err
	}

	s.cache.Delete(context.Background(), subjectListCacheKey)
	return &subject, nil
}

// ListActiveSubjects returns active subjects with child counts,
// read-through cached.
func (s *SubjectService) ListActiveSubjects(ctx context.Context) ([]models.Subject, error) {
	if data, ok := s.cache.Get(ctx, subjectListCacheKey); ok {
		var cached []models.Subject
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	var subjects []models.Subject
	err := s.db.Where("is_active = ?", true).
		Preload("Chapters", "is_active = ?", true).
		Order("name").
		Find(&subjects).Error
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(subjects); err == nil {
		s.cache.Set(ctx, subjectListCacheKey, data, 10*time.Minute)
	}
	return subjects, nil
}

// SearchSubjects matches active subjects by name, code or description.
func (s *SubjectService) SearchSubjects(query string) ([]models.Subject, error) {
	like := "%" + query + "%"
	var subjects []models.Subject
	err := s.db.Where("is_active = ?", true).
		Where("name LIKE ? OR code LIKE ? OR description LIKE ?", like, like, like).
		Order("name").
		Find(&subjects).Error
	return subjects, err
}

func (s *SubjectService) ListAllSubjects() ([]models.Subject, error) {
	var subjects []models.Subject
	err := s.db.Preload("Chapters").Order("name").Find(&subjects).Error
	return subjects, err
}

func (s *SubjectService) GetSubject(id uint) (*models.Subject, error) {
	var subject models.Subject
	err := s.db.Preload("Chapters", "is_active = ?", true).First(&subject, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: subject %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &subject, nil
}

func (s *SubjectService) GetSubjectBySlug(slug string) (*models.Subject, error) {
	var subject models.Subject
	err := s.db.Where("slug = ? AND is_active = ?", slug, true).
		Preload("Chapters", "is_active = ?", true).
		First(&subject).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: subject %q", ErrNotFound, slug)
		}
		return nil, err
	}
	return &subject, nil
}

func (s *SubjectService) UpdateSubject(id uint, req *UpdateSubjectRequest) (*models.Subject, error) {
	subject, err := s.GetSubject(id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" && req.Name != subject.Name {
		subject.Name = req.Name
		subject.Slug = models.Slugify(req.Name)
	}
	if req.Code != "" {
		subject.Code = req.Code
	}
	if req.Description != nil {
		subject.Description = *req.Description
	}
	if req.Color != "" {
		subject.Color = req.Color
	}
	if req.Icon != "" {
		subject.Icon = req.Icon
	}

	if err := s.db.Save(subject).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: subject with the same name or code exists", ErrConflict)
		}
		return nil, err
	}

	s.cache.Delete(context.Background(), subjectListCacheKey)
	return subject, nil
}

// DeleteSubject soft-deletes a subject. Score history stays intact.
func (s *SubjectService) DeleteSubject(id uint) error {
	subject, err := s.GetSubject(id)
	if err != nil {
		return err
	}
	if err := s.db.Model(subject).Update("is_active", false).Error; err != nil {
		return err
	}
	s.cache.Delete(context.Background(), subjectListCacheKey)
	return nil
}

func (s *SubjectService) CreateChapter(req *CreateChapterRequest) (*models.Chapter, error) {
	if _, err := s.GetSubject(req.SubjectID); err != nil {
		return nil, err
	}

	chapter := models.Chapter{
		Name:          req.Name,
		SubjectID:     req.SubjectID,
		ChapterNumber: req.ChapterNumber,
		Description:   req.Description,
		IsActive:      true,
	}
	chapter.Slug = s.uniqueChapterSlug(req.Name, req.SubjectID, 0)

	if err := s.db.Create(&chapter).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: chapter slug already exists in subject", ErrConflict)
		}
		return nil, err
	}

	// Chapters ride along on the cached subject list.
	s.cache.Delete(context.Background(), subjectListCacheKey)
	return &chapter, nil
}

func (s *SubjectService) ListChapters(subjectID uint) ([]models.Chapter, error) {
	var chapters []models.Chapter
	err := s.db.Where("subject_id = ? AND is_active = ?", subjectID, true).
		Order("chapter_number").
		Find(&chapters).Error
	return chapters, err
}

func (s *SubjectService) ListAllChapters() ([]models.Chapter, error) {
	var chapters []models.Chapter
	err := s.db.Preload("Subject").Order("subject_id, chapter_number").Find(&chapters).Error
	return chapters, err
}

func (s *SubjectService) GetChapter(id uint) (*models.Chapter, error) {
	var chapter models.Chapter
	err := s.db.Preload("Subject").First(&chapter, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: chapter %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &chapter, nil
}

func (s *SubjectService) GetChapterBySlug(slug string) (*models.Chapter, error) {
	var chapter models.Chapter
	err := s.db.Where("slug = ? AND is_active = ?", slug, true).
		Preload("Subject").
		First(&chapter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: chapter %q", ErrNotFound, slug)
		}
		return nil, err
	}
	return &chapter, nil
}

func (s *SubjectService) UpdateChapter(id uint, req *UpdateChapterRequest) (*models.Chapter, error) {
	chapter, err := s.GetChapter(id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" && req.Name != chapter.Name {
		chapter.Name = req.Name
		chapter.Slug = s.uniqueChapterSlug(req.Name, chapter.SubjectID, chapter.ID)
	}
	if req.ChapterNumber > 0 {
		chapter.ChapterNumber = req.ChapterNumber
	}
	if req.Description != nil {
		chapter.Description = *req.Description
	}

	if err := s.db.Save(chapter).Error; err != nil {
		return nil, err
	}

	s.cache.Delete(context.Background(), subjectListCacheKey)
	return chapter, nil
}

func (s *SubjectService) DeleteChapter(id uint) error {
	chapter, err := s.GetChapter(id)
	if err != nil {
		return err
	}
	if err := s.db.Model(chapter).Update("is_active", false).Error; err != nil {
		return err
	}
	s.cache.Delete(context.Background(), subjectListCacheKey)
	return nil
}

// uniqueChapterSlug appends a numeric suffix until the slug is unique
// within the subject. excludeID skips the chapter being renamed.
func (s *SubjectService) uniqueChapterSlug(name string, subjectID, excludeID uint) string {
	base := models.Slugify(name)
	slug := base
	for counter := 1; ; counter++ {
		var count int64
		s.db.Model(&models.Chapter{}).
			Where("slug = ? AND subject_id = ? AND id <> ?", slug, subjectID, excludeID).
			Count(&count)
		if count == 0 {
			return slug
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}
