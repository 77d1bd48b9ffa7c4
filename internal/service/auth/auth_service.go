// internal/service/auth/auth_service.go
package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"arborlead-service/internal/domain/user"
	xerrors "arborlead-service/internal/pkg/errors"
	"arborlead-service/internal/pkg/jwt"
	"arborlead-service/internal/pkg/session"

	"github.com/lib/pq"
)

const (
	loginAttemptLimit  = 5
	loginAttemptWindow = 15 * time.Minute
)

// AuthService handles login, session lifecycle and account management
// for admins and partners.
type AuthService struct {
	userRepo user.Repository
	tokens   *jwt.Manager
	sessions *session.Store
	limiter  *session.RateLimiter
	logger   *zap.Logger
}

func NewAuthService(
	userRepo user.Repository,
	tokens *jwt.Manager,
	sessions *session.Store,
	limiter *session.RateLimiter,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		sessions: sessions,
		limiter:  limiter,
		logger:   logger,
	}
}

// Login verifies credentials and mints an access and refresh token
// pair. Attempts are rate limited per email.
func (s *AuthService) Login(ctx context.Context, req *user.LoginRequest) (*user.LoginResponse, error) {
	allowed, err := s.limiter.Allow(ctx, "login:"+req.Email, loginAttemptLimit, loginAttemptWindow)
	if err != nil {
		s.logger.Warn("login rate limiter unavailable", zap.Error(err))
	} else if !allowed {
		return nil, xerrors.ErrRateLimited
	}

	u, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrUnauthorized
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, xerrors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(req.Password)); err != nil {
		return nil, xerrors.ErrUnauthorized
	}

	region := ""
	if u.Region.Valid {
		region = u.Region.String
	}

	access, jti, err := s.tokens.Generator.GenerateAccessToken(u.ID, string(u.Role), region)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, refreshJti, err := s.tokens.Generator.GenerateRefreshToken(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	if err := s.sessions.Save(ctx, jti, u.ID, s.tokens.Generator.Ttl); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, refreshJti, u.ID, 60*24*time.Hour); err != nil {
		return nil, err
	}

	if err := s.limiter.Reset(ctx, "login:"+req.Email); err != nil {
		s.logger.Warn("failed to reset login counter", zap.Error(err))
	}

	s.logger.Info("user logged in", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return &user.LoginResponse{AccessToken: access, RefreshToken: refresh, User: u}, nil
}

// ValidateToken verifies the signature and checks the session is still
// live, so revoked tokens die before their JWT expiry.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*jwt.Claims, error) {
	claims, err := s.tokens.Verifier.Verify(tokenString)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}
	if err := s.sessions.Validate(ctx, claims.ID); err != nil {
		return nil, err
	}
	return claims, nil
}

// Refresh exchanges a live refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.ValidateToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if claims.SessionPurpose != "refresh" {
		return "", xerrors.ErrUnauthorized
	}

	u, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return "", xerrors.ErrUnauthorized
	}
	region := ""
	if u.Region.Valid {
		region = u.Region.String
	}

	access, jti, err := s.tokens.Generator.GenerateAccessToken(u.ID, string(u.Role), region)
	if err != nil {
		return "", fmt.Errorf("failed to issue access token: %w", err)
	}
	if err := s.sessions.Save(ctx, jti, u.ID, s.tokens.Generator.Ttl); err != nil {
		return "", err
	}
	return access, nil
}

// Logout revokes the session behind the presented token.
func (s *AuthService) Logout(ctx context.Context, jti string) error {
	return s.sessions.Revoke(ctx, jti)
}

// CurrentUser loads the account behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*user.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// CreatePartner registers a new partner account. Admin only, enforced
// at the route layer.
func (s *AuthService) CreatePartner(ctx context.Context, req *user.CreatePartnerRequest) (*user.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &user.User{
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Role:           user.RolePartner,
		IsActive:       true,
		Region:         sql.NullString{String: req.Region, Valid: true},
		ServiceRegions: pq.StringArray(req.ServiceRegions),
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("partner created", zap.Int64("user_id", u.ID), zap.String("region", req.Region))
	return u, nil
}

// ChangePassword verifies the old password before storing a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, req *user.ChangePasswordRequest) error {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(req.OldPassword)); err != nil {
		return xerrors.ErrUnauthorized
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.userRepo.UpdatePassword(ctx, userID, string(hashed))
}

// EnsureAdminExists seeds the initial admin account on first boot.
func (s *AuthService) EnsureAdminExists(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !xerrors.Is(err, xerrors.ErrNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	u := &user.User{
		Email:          email,
		HashedPassword: string(hashed),
		FullName:       "Administrator",
		Role:           user.RoleAdmin,
		IsActive:       true,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return err
	}
	s.logger.Info("seeded admin account", zap.String("email", email))
	return nil
}
