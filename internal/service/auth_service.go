package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vivianur/hackathon-web/internal/clock"
	apperrors "github.com/vivianur/hackathon-web/internal/errors"
	"github.com/vivianur/hackathon-web/internal/model"
	"github.com/vivianur/hackathon-web/internal/repository"
)

const (
	minPasswordLength = 6
	maxNameLength     = 100
)

type AuthService struct {
	userRepo     *repository.UserRepository
	sessionRepo  *repository.SessionRepository
	settingsRepo *repository.SettingsRepository
	clock        clock.Clock
	jwtSecret    []byte
	tokenTTL     time.Duration
}

func NewAuthService(
	userRepo *repository.UserRepository,
	sessionRepo *repository.SessionRepository,
	settingsRepo *repository.SettingsRepository,
	clk clock.Clock,
	jwtSecret string,
	tokenTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		settingsRepo: settingsRepo,
		clock:        clk,
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     tokenTTL,
	}
}

type AuthResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// Register creates the account together with its idle timer state and
// default accessibility settings. A missing name falls back to the local
// part of the email address.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, *apperrors.APIError) {
	email, apiErr := normalizeEmail(input.Email)
	if apiErr != nil {
		return nil, apiErr
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.BadRequest("invalid_password", "password must be at least 6 characters")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, apperrors.Validation("invalid registration", map[string]string{"name": "name is too long"})
	}

	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, apperrors.Conflict("email_exists", "email already registered", nil)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.InternalCause("failed to query user", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.InternalCause("failed to secure password", err)
	}

	now := s.clock.Now()
	user := model.User{
		ID:               uuid.NewString(),
		Email:            email,
		PasswordHash:     string(passwordHash),
		Name:             name,
		Neurodivergences: []string{},
		StudyRoutine:     model.DefaultStudyRoutine(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	tx, err := s.userRepo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.InternalCause("failed to start transaction", err)
	}
	defer tx.Rollback()

	if err := s.userRepo.CreateTx(ctx, tx, &user); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, apperrors.Conflict("email_exists", "email already registered", nil)
		}
		return nil, apperrors.InternalCause("failed to create user", err)
	}

	state := model.IdleSessionState(user.ID, now)
	if err := s.sessionRepo.SaveStateTx(ctx, tx, &state); err != nil {
		return nil, apperrors.InternalCause("failed to initialize user state", err)
	}
	settings := model.DefaultAccessibilitySettings(user.ID, now)
	if err := s.settingsRepo.UpsertTx(ctx, tx, &settings); err != nil {
		return nil, apperrors.InternalCause("failed to initialize user settings", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.InternalCause("failed to commit transaction", err)
	}
	return s.signedIn(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, *apperrors.APIError) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || password == "" {
		return nil, apperrors.BadRequest("invalid_credentials", "email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, normalized)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, apperrors.InternalCause("failed to query user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	return s.signedIn(*user)
}

func (s *AuthService) signedIn(user model.User) (*AuthResult, *apperrors.APIError) {
	token, apiErr := s.issueToken(user.ID)
	if apiErr != nil {
		return nil, apiErr
	}
	user.PasswordHash = ""
	return &AuthResult{Token: token, User: user}, nil
}

func normalizeEmail(raw string) (string, *apperrors.APIError) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperrors.BadRequest("invalid_email", "email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", apperrors.BadRequest("invalid_email", "email is not valid")
	}
	return email, nil
}

// ParseToken verifies an HS256 token against the service clock and
// returns its subject.
func (s *AuthService) ParseToken(tokenString string) (string, *apperrors.APIError) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return "", apperrors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", apperrors.Unauthorized("invalid token")
	}

	if claims.Subject == "" {
		return "", apperrors.Unauthorized("invalid token subject")
	}

	return claims.Subject, nil
}

func (s *AuthService) issueToken(userID string) (string, *apperrors.APIError) {
	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperrors.InternalCause("failed to sign token", err)
	}
	return signed, nil
}
