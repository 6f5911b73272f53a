package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

const minPasswordLen = 6

type AuthService struct {
	Repo          *repo.GormRepo
	AccessSecret  []byte
	RefreshSecret []byte
	Events        events.Publisher
}

// SessionMeta describes the client a refresh token was issued to.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	IsAdmin      bool
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLen, ErrValidation)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Username:     username,
		PasswordHash: pwHash,
		Role:         models.RoleUser,
	}

	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "status", 409, "reason", "user already exist")
			return nil, fmt.Errorf("username %q is taken: %w", username, ErrConflict)
		}
		l.Error("register_error", "status", 500, "error", err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	events.Publish(ctx, s.Events, events.TopicUsers, userKey(user.ID), map[string]any{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})
	return user, nil
}

// issue signs a token pair and builds the refresh record to persist.
func (s *AuthService) issue(user *models.User, meta SessionMeta) (*LoginResult, *models.RefreshToken, error) {
	now := time.Now()
	accessExp := now.Add(tokens.AccessTTL)
	accessToken, err := tokens.CreateAccessToken(s.AccessSecret, user.ID, user.Role, accessExp)
	if err != nil {
		return nil, nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshExp := now.Add(tokens.RefreshTTL)
	refreshToken, jti, err := tokens.CreateRefreshToken(s.RefreshSecret, user.ID, refreshExp)
	if err != nil {
		return nil, nil, fmt.Errorf("sign refresh token: %w", err)
	}

	record := &models.RefreshToken{
		JTI:       jti,
		TokenHash: tokens.HashToken(refreshToken),
		UserID:    user.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		ExpiresAt: refreshExp.Unix(),
	}
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		IsAdmin:      user.Role == models.RoleAdmin,
	}, record, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string, meta SessionMeta) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	user, err := s.Repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		l.Warn("login_failed", "status", 401, "reason", "unknown user")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password")
		return nil, ErrInvalidCredentials
	}

	res, record, err := s.issue(user, meta)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	if err := s.Repo.AddRefreshToken(ctx, record); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot store refresh token", "error", err)
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return res, nil
}

// Refresh exchanges a live refresh token for a new pair. The old token is
// revoked in the same transaction and the role is read fresh from the
// store.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "bad token", "error", err)
		return nil, ErrInvalidRefreshToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	var res *LoginResult
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		stored, err := tx.FindRefreshByJTI(ctx, claims.ID)
		if err != nil {
			return err
		}
		if stored.UserID != userID || stored.TokenHash != tokens.HashToken(refreshToken) {
			return repo.ErrTokenExpiredOrRevoked
		}

		user, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}

		var record *models.RefreshToken
		res, record, err = s.issue(user, meta)
		if err != nil {
			return err
		}
		return tx.RotateRefreshToken(ctx, claims.ID, record)
	})
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, repo.ErrTokenExpiredOrRevoked):
		l.Warn("refresh_failed", "status", 401, "reason", err.Error())
		return nil, ErrInvalidRefreshToken
	default:
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
}

func (s *AuthService) LogOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.Repo.RevokeRefreshByHash(ctx, tokens.HashToken(refreshToken)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) SetRole(ctx context.Context, userID uint, role string) (*models.User, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, fmt.Errorf("unknown role %q: %w", role, ErrValidation)
	}

	err := s.Repo.UpdateUserRole(ctx, userID, role)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	logging.FromContext(ctx).Info("role_changed", "user_id", userID, "role", role)
	return user, nil
}
