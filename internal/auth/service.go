// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/basementlabs/memberd/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
	ErrMemberBanned       = errors.New("member is banned")
)

// MemberInfo is the slice of the member record auth needs. The member
// package implements MemberProvider; keeping the dependency in this
// direction means auth never imports the member domain.
type MemberInfo struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Banned       bool
}

type MemberProvider interface {
	GetByEmail(ctx context.Context, email string) (*MemberInfo, error)
	GetByID(ctx context.Context, id string) (*MemberInfo, error)
	Register(
		ctx context.Context,
		email, passwordHash, firstName string,
	) (*MemberInfo, error)
	UpdatePassword(ctx context.Context, memberID, passwordHash string) error
	RecordSignIn(ctx context.Context, memberID string) error
}

type Service struct {
	repo           Repository
	jwt            *JWTManager
	memberProvider MemberProvider
	redis          *redis.Client
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	memberProvider MemberProvider,
	redisClient *redis.Client,
) *Service {
	return &Service{
		repo:           repo,
		jwt:            jwt,
		memberProvider: memberProvider,
		redis:          redisClient,
	}
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	m, err := s.memberProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	valid, err := core.VerifyPasswordTimingSafe(req.Password, &m.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if m.Banned {
		return nil, ErrMemberBanned
	}

	// Sign-in stats feed the active cohort; a stats failure must not block
	// the login itself.
	if err := s.memberProvider.RecordSignIn(ctx, m.ID); err != nil {
		slog.Warn("record sign-in failed", "member_id", m.ID, "error", err)
	}

	return s.createAuthResponse(ctx, m, userAgent, ipAddress, "", nil)
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	m, err := s.memberProvider.Register(
		ctx,
		req.Email,
		passwordHash,
		req.FirstName,
	)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create member: %w", err)
	}

	return s.createAuthResponse(ctx, m, userAgent, ipAddress, "", nil)
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	if storedToken.IsUsed {
		//nolint:errcheck // security revocation continues regardless
		_ = s.repo.RevokeByFamilyID(ctx, storedToken.FamilyID)
		return nil, ErrTokenReuse
	}

	if !storedToken.IsValid() {
		if storedToken.IsRevoked() {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	m, err := s.memberProvider.GetByID(ctx, storedToken.MemberID)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}

	if m.Banned {
		return nil, ErrMemberBanned
	}

	return s.createAuthResponse(
		ctx,
		m,
		userAgent,
		ipAddress,
		storedToken.FamilyID,
		&storedToken.ID,
	)
}

func (s *Service) Logout(
	ctx context.Context,
	refreshToken, memberID string,
) error {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find token: %w", err)
	}

	if storedToken.MemberID != memberID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, storedToken.ID); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (s *Service) LogoutAll(ctx context.Context, memberID string) error {
	if err := s.repo.RevokeAllForMember(ctx, memberID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	return nil
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	key := "blacklist:" + jti
	ttl := time.Until(expiresAt)

	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (s *Service) IsAccessTokenBlacklisted(
	ctx context.Context,
	jti string,
) (bool, error) {
	key := "blacklist:" + jti

	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	memberID string,
) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	memberID, sessionID string,
) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if token.MemberID != memberID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	memberID, currentPassword, newPassword string,
) error {
	m, err := s.memberProvider.GetByID(ctx, memberID)
	if err != nil {
		return fmt.Errorf("get member: %w", err)
	}

	valid, err := core.VerifyPassword(currentPassword, m.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.memberProvider.UpdatePassword(ctx, memberID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.LogoutAll(ctx, memberID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	return nil
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	m *MemberInfo,
	userAgent, ipAddress, familyID string,
	oldTokenID *string,
) (*AuthResponse, error) {
	accessToken, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		MemberID: m.ID,
		Role:     m.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.CreateRefreshToken(m.ID, familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	newTokenID := uuid.New().String()

	refreshTokenEntity := &RefreshToken{
		ID:        newTokenID,
		MemberID:  m.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if err := s.repo.Create(ctx, refreshTokenEntity); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	if oldTokenID != nil {
		//nolint:errcheck // best-effort token chain tracking
		_ = s.repo.MarkAsUsed(ctx, *oldTokenID, newTokenID)
	}

	expiresIn := s.jwt.config.AccessTokenExpire

	return &AuthResponse{
		Member: MemberSummary{
			ID:    m.ID,
			Email: m.Email,
			Name:  m.Name,
			Role:  m.Role,
		},
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(expiresIn / time.Second),
			ExpiresAt:    time.Now().Add(expiresIn),
		},
	}, nil
}
