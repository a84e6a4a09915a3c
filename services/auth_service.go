package services

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"quizmaster/models"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor identifies the authenticated caller of a request. The role is
// resolved once from the token claims; handlers never look identities
// up in both tables again.
type Actor struct {
	ID    uint
	Email string
	Role  string
}

type AuthService struct {
	db              *gorm.DB
	jwtSecret       string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewAuthService(db *gorm.DB, jwtSecret string, accessTTL, refreshTTL time.Duration) *AuthService {
	if accessTTL == 0 {
		accessTTL = time.Hour
	}
	if refreshTTL == 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &AuthService{
		db:              db,
		jwtSecret:       jwtSecret,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
	}
}

type RegisterRequest struct {
	Username      string `json:"username" binding:"required,min=3,max=80"`
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=6"`
	FullName      string `json:"full_name" binding:"required"`
	Qualification string `json:"qualification"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	FullName      string  `json:"full_name"`
	Qualification *string `json:"qualification"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

func (s *AuthService) Register(req *RegisterRequest) (*models.User, *TokenPair, error) {
	if !usernamePattern.MatchString(req.Username) {
		return nil, nil, fmt.Errorf("%w: username may only contain letters, digits, '_', '.' and '-'", ErrValidation)
	}

	var count int64
	s.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count)
	if count > 0 {
		return nil, nil, fmt.Errorf("%w: email already registered", ErrConflict)
	}
	s.db.Model(&models.User{}).Where("username = ?", req.Username).Count(&count)
	if count > 0 {
		return nil, nil, fmt.Errorf("%w: username already taken", ErrConflict)
	}

	user := models.User{
		Username:           req.Username,
		Email:              req.Email,
		FullName:           req.FullName,
		Qualification:      req.Qualification,
		IsActive:           true,
		EmailNotifications: true,
		ReminderEmails:     true,
		MonthlyReports:     true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, nil, err
	}

	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, fmt.Errorf("%w: email or username already taken", ErrConflict)
		}
		return nil, nil, err
	}

	tokens, err := s.issueTokens(user.ID, user.Email, RoleUser)
	if err != nil {
		return nil, nil, err
	}
	return &user, tokens, nil
}

// Login authenticates against the admin table first, then the user
// table. The matching table decides the role claim.
func (s *AuthService) Login(req *LoginRequest) (any, string, *TokenPair, error) {
	now := time.Now().UTC()

	var admin models.Admin
	if err := s.db.Where("email = ?", req.Email).First(&admin).Error; err == nil {
		if admin.CheckPassword(req.Password) {
			admin.LastLogin = &now
			s.db.Model(&admin).Update("last_login", now)

			tokens, err := s.issueTokens(admin.ID, admin.Email, RoleAdmin)
			if err != nil {
				return nil, "", nil, err
			}
			return &admin, RoleAdmin, tokens, nil
		}
	}

	var user models.User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err == nil {
		if user.CheckPassword(req.Password) {
			if !user.IsActive {
				return nil, "", nil, fmt.Errorf("%w: account is deactivated", ErrForbidden)
			}
			user.LastLogin = &now
			s.db.Model(&user).Update("last_login", now)

			tokens, err := s.issueTokens(user.ID, user.Email, RoleUser)
			if err != nil {
				return nil, "", nil, err
			}
			return &user, RoleUser, tokens, nil
		}
	}

	return nil, "", nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
}

// Refresh issues a new access token for a valid refresh token.
func (s *AuthService) Refresh(refreshToken string) (string, error) {
	actor, tokenType, err := s.parseToken(refreshToken)
	if err != nil {
		return "", err
	}
	if tokenType != "refresh" {
		return "", fmt.Errorf("%w: refresh token required", ErrUnauthorized)
	}
	return s.signToken(actor.ID, actor.Email, actor.Role, "access", s.accessTokenTTL)
}

// VerifyAccessToken validates an access token and returns the actor it
// identifies.
func (s *AuthService) VerifyAccessToken(token string) (*Actor, error) {
	actor, tokenType, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}
	if tokenType != "access" {
		return nil, fmt.Errorf("%w: access token required", ErrUnauthorized)
	}
	return actor, nil
}

func (s *AuthService) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) GetAdmin(id uint) (*models.Admin, error) {
	var admin models.Admin
	if err := s.db.First(&admin, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: admin %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &admin, nil
}

func (s *AuthService) UpdateProfile(userID uint, req *UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}

	if req.Username != "" && req.Username != user.Username {
		var count int64
		s.db.Model(&models.User{}).Where("username = ? AND id <> ?", req.Username, userID).Count(&count)
		if count > 0 {
			return nil, fmt.Errorf("%w: username already taken", ErrConflict)
		}
		user.Username = req.Username
	}
	if req.Email != "" && req.Email != user.Email {
		var count int64
		s.db.Model(&models.User{}).Where("email = ? AND id <> ?", req.Email, userID).Count(&count)
		if count > 0 {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		user.Email = req.Email
	}
	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.Qualification != nil {
		user.Qualification = *req.Qualification
	}

	if err := s.db.Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: email or username already taken", ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(req.CurrentPassword) {
		return fmt.Errorf("%w: current password is incorrect", ErrValidation)
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		return err
	}
	return s.db.Save(user).Error
}

func (s *AuthService) issueTokens(id uint, email, role string) (*TokenPair, error) {
	access, err := s.signToken(id, email, role, "access", s.accessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signToken(id, email, role, "refresh", s.refreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) signToken(id uint, email, role, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  email,
		"id":   float64(id),
		"role": role,
		"type": tokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) parseToken(tokenString string) (*Actor, string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, "", fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "", fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}

	id, _ := claims["id"].(float64)
	email, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	tokenType, _ := claims["type"].(string)
	if id == 0 || (role != RoleUser && role != RoleAdmin) {
		return nil, "", fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}

	return &Actor{ID: uint(id), Email: email, Role: role}, tokenType, nil
}
