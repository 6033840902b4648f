package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "studytrack/backend/internal/errors"
	"studytrack/backend/internal/model"
	"studytrack/backend/internal/repository"
)

type AuthService struct {
	Runtime
	userRepo  *repository.UserRepository
	timerRepo *repository.TimerRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(
	rt Runtime,
	userRepo *repository.UserRepository,
	timerRepo *repository.TimerRepository,
	jwtSecret string,
	tokenTTL time.Duration,
) *AuthService {
	return &AuthService{
		Runtime:   rt,
		userRepo:  userRepo,
		timerRepo: timerRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	DisplayName string `json:"displayName" validate:"omitempty,max=64"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Register creates the user together with default settings and an idle
// timer in a single transaction.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, *apperrors.APIError) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}
	if input.DisplayName == "" {
		input.DisplayName = strings.SplitN(input.Email, "@", 2)[0]
	}

	_, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err == nil {
		return nil, apperrors.Conflict("email_exists", "email already registered", nil)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, s.failure("auth.register", "failed to query user", err)
	}

	passwordHashBytes, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("failed to secure password")
	}

	now := s.now()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: string(passwordHashBytes),
		DisplayName:  input.DisplayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	settings := model.DefaultUserSettings()
	state := model.NewTimerState(user.ID, settings.PomodoroDuration)
	state.UpdatedAt = now

	tx, err := s.userRepo.BeginTx(ctx)
	if err != nil {
		return nil, s.failure("auth.register", "failed to start transaction", err)
	}
	defer tx.Rollback()

	if err := s.userRepo.CreateTx(ctx, tx, &user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("email_exists", "email already registered", nil)
		}
		return nil, s.failure("auth.register", "failed to create user", err)
	}
	if err := s.userRepo.CreateSettingsTx(ctx, tx, user.ID, settings, now); err != nil {
		return nil, s.failure("auth.register", "failed to create settings", err)
	}
	if err := s.timerRepo.UpsertStateTx(ctx, tx, &state); err != nil {
		return nil, s.failure("auth.register", "failed to initialize user state", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.failure("auth.register", "failed to commit transaction", err)
	}

	token, apiErr := s.issueToken(user)
	if apiErr != nil {
		return nil, apiErr
	}

	s.log().Info("user registered", zap.String("user_id", user.ID))
	user.PasswordHash = ""
	return &AuthResult{
		Token: token,
		User:  user,
	}, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, *apperrors.APIError) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(input.Email))
	if normalizedEmail == "" || input.Password == "" {
		return nil, apperrors.BadRequest("invalid_credentials", "email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizedEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, s.failure("auth.login", "failed to query user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	now := s.now()
	if err := s.userRepo.TouchLogin(ctx, user.ID, now); err != nil {
		s.log().Warn("last login not recorded", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	token, apiErr := s.issueToken(*user)
	if apiErr != nil {
		return nil, apiErr
	}

	user.PasswordHash = ""
	return &AuthResult{
		Token: token,
		User:  *user,
	}, nil
}

func (s *AuthService) ParseToken(tokenString string) (string, *apperrors.APIError) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
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

func (s *AuthService) issueToken(user model.User) (string, *apperrors.APIError) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperrors.Internal("failed to sign token")
	}
	return signed, nil
}
