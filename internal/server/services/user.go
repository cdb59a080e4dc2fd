// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, access-token refresh and
// logout.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/auth"
	"github.com/dmitrijs2005/usersvc/internal/server/config"
	"github.com/dmitrijs2005/usersvc/internal/server/metrics"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/users"
	"github.com/go-playground/validator/v10"
)

// Caller-facing messages for authentication outcomes.
const (
	msgEmailTaken         = "Email already registered."
	msgHashFailed         = "Error hashing password"
	msgInvalidCredentials = "Invalid credentials"
	msgNotApproved        = "User not approved"
	msgRefreshExpired     = "Refresh token expired"
	msgRefreshInvalid     = "Invalid refresh token"
	msgUnavailable        = "Service unavailable"
	msgLogoutOK           = "Logout successful"
	msgLogoutFailed       = "An error occurred while logging out"
)

// PasswordHasher is implemented by cryptox.PasswordHasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
	NeedsUpgrade(hash string) bool
}

// TokenCodec is implemented by auth.Codec.
type TokenCodec interface {
	Issue(subject, nickname string, ttl time.Duration) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// UserService provides the account operations:
// - Register: validate and create users (unapproved, role "user")
// - Login: verify credentials and mint an access/refresh token pair
// - Refresh: mint a new access token from a valid refresh token
// - Logout: stateless acknowledgement
//
// Every error it returns is coded (see common.CodeOf) and carries a
// caller-safe detail message.
type UserService struct {
	repo       users.Repository
	hasher     PasswordHasher
	codec      TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
	validate   *validator.Validate
	log        logging.Logger
	metrics    *metrics.Metrics

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService wires a UserService. m may be nil.
func NewUserService(
	repo users.Repository,
	hasher PasswordHasher,
	codec TokenCodec,
	cfg *config.Config,
	log logging.Logger,
	m *metrics.Metrics,
) *UserService {
	return &UserService{
		repo:       repo,
		hasher:     hasher,
		codec:      codec,
		accessTTL:  cfg.AccessTokenValidityDuration,
		refreshTTL: cfg.RefreshTokenValidityDuration,
		validate:   newValidator(),
		log:        log.With("module", "users"),
		metrics:    m,
	}
}

// Register validates the input, rejects taken emails and stores a new,
// unapproved user. Checks run in order (email, uniqueness, password,
// nickname) and the first failure is returned.
func (s *UserService) Register(ctx context.Context, email, password, nickname string) (resp *models.UserResponse, err error) {
	defer func() { s.metrics.RecordRegistration(outcomeOf(err)) }()

	if err := s.validateEmail(email); err != nil {
		return nil, err
	}

	_, err = s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.Conflict(msgEmailTaken)
	case !errors.Is(err, common.ErrorNotFound):
		s.log.Error(ctx, "user lookup failed", "email", email, "error", err)
		return nil, common.Internal(common.DefaultInternalDetail, err)
	}

	if err := s.validatePassword(password); err != nil {
		return nil, err
	}
	if err := s.validateNickname(nickname); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Error(ctx, "password hashing failed", "email", email, "error", err)
		return nil, common.Internal(msgHashFailed, err)
	}

	user, err := s.repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Nickname:     nickname,
		Role:         common.DefaultRole,
		Approved:     false,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.Conflict(msgEmailTaken)
		}
		s.log.Error(ctx, "user create failed", "email", email, "error", err)
		return nil, common.Internal(common.DefaultInternalDetail, err)
	}

	s.log.Info(ctx, "user registered", "email", email)
	return user.Public(), nil
}

// Login checks the credentials and returns a fresh token pair. Unknown
// users and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (pair *models.TokenPair, err error) {
	defer func() { s.metrics.RecordLogin(outcomeOf(err)) }()

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnVerify(password)
			return nil, common.Unauthorized(msgInvalidCredentials)
		}
		s.log.Error(ctx, "user lookup failed", "email", email, "error", err)
		return nil, common.Internal(common.DefaultInternalDetail, err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.log.Error(ctx, "stored password hash unusable", "email", email, "error", err)
		return nil, common.Internal(common.DefaultInternalDetail, err)
	}
	if !ok {
		return nil, common.Unauthorized(msgInvalidCredentials)
	}

	if !user.Approved {
		return nil, common.Forbidden(msgNotApproved)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.log.Debug(ctx, "password hash uses a deprecated scheme", "email", email)
	}

	access, err := s.codec.Issue(user.Email, user.Nickname, s.accessTTL)
	if err != nil {
		s.log.Error(ctx, "access token signing failed", "email", email, "error", err)
		return nil, common.Internal(common.DefaultInternalDetail, err)
	}
	refresh, err := s.codec.Issue(user.Email, user.Nickname, s.refreshTTL)
	if err != nil {
		s.log.Error(ctx, "refresh token signing failed", "email", email, "error", err)
		return nil, common.Internal(common.DefaultInternalDetail, err)
	}

	s.metrics.RecordTokenIssued(metrics.KindAccess)
	s.metrics.RecordTokenIssued(metrics.KindRefresh)
	s.log.Info(ctx, "user logged in", "email", email)

	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh returns a new access token for the subject of refreshToken. The
// refresh token itself is neither rotated nor revoked, so concurrent calls
// with the same token all succeed.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (access string, err error) {
	defer func() { s.metrics.RecordRefresh(outcomeOf(err)) }()

	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrTokenExpired):
			return "", common.Expired(msgRefreshExpired, err)
		case errors.Is(err, common.ErrInvalidToken):
			return "", common.Unauthorized(msgRefreshInvalid)
		default:
			s.log.Error(ctx, "refresh token verification failed", "error", err)
			return "", common.Unavailable(msgUnavailable, err)
		}
	}

	if claims.Subject == "" || claims.Nickname == "" {
		return "", common.Unauthorized(msgRefreshInvalid)
	}

	access, err = s.codec.Issue(claims.Subject, claims.Nickname, s.accessTTL)
	if err != nil {
		s.log.Error(ctx, "access token signing failed", "email", claims.Subject, "error", err)
		return "", common.Unavailable(msgUnavailable, err)
	}

	s.metrics.RecordTokenIssued(metrics.KindAccess)
	return access, nil
}

// Logout acknowledges a logout. Tokens are stateless, so nothing is
// revoked. forceError makes it fail, for exercising client error paths.
func (s *UserService) Logout(ctx context.Context, forceError bool) (string, error) {
	if forceError {
		err := errors.New("forced logout failure")
		s.log.Error(ctx, "logout failed", "error", err)
		return "", common.Internal(msgLogoutFailed, err)
	}
	return msgLogoutOK, nil
}

// burnVerify spends one hash verification so that unknown emails take as
// long as wrong passwords.
func (s *UserService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password-for-timing")
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch common.CodeOf(err) {
	case common.CodeInvalidInput:
		return metrics.OutcomeInvalidInput
	case common.CodeConflict:
		return metrics.OutcomeConflict
	case common.CodeUnauthorized:
		return metrics.OutcomeUnauthorized
	case common.CodeForbidden:
		return metrics.OutcomeForbidden
	case common.CodeTokenExpired:
		return metrics.OutcomeExpired
	case common.CodeServiceUnavailable:
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}
