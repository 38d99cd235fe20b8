package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/config"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/model"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/repository"
	"github.com/vasapolrittideah/chatdesk/shared/auth"
	"github.com/vasapolrittideah/chatdesk/shared/security"
)

// AuthUsecase is the only component that mutates a user's session state.
type AuthUsecase interface {
	Register(ctx context.Context, params RegisterParams) (*AuthSession, error)
	Login(ctx context.Context, params LoginParams) (*AuthSession, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshedAccess, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// AuthSession is the result of a successful register or login.
type AuthSession struct {
	User             *model.User
	AccessToken      string
	RefreshToken     string
	DeviceID         string
	RefreshExpiresIn time.Duration
}

// RefreshedAccess is the result of a successful refresh.
type RefreshedAccess struct {
	AccessToken string
	DeviceID    string
}

// SignInNotifier is told when a login supersedes an existing session.
type SignInNotifier interface {
	NotifyNewSignIn(ctx context.Context, user *model.User, session *model.RefreshSession) error
}

var (
	ErrValidation            = errors.New("validation failed")
	ErrEmailTaken            = errors.New("email already in use")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrMissingToken          = errors.New("token required")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired refresh token")
	ErrTokenRevoked          = errors.New("refresh token revoked")
	ErrInvalidRefreshToken   = errors.New("invalid refresh token")
	ErrUserNotFound          = errors.New("user not found")
)

type authUsecase struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	jwtAuth     auth.JWTAuthenticator
	tokenCfg    *config.TokenConfig
	notifier    SignInNotifier
	logger      *zerolog.Logger
}

// AuthOption configures optional collaborators of the auth usecase.
type AuthOption func(*authUsecase)

// WithSignInNotifier sends a notice when a new login replaces a session.
func WithSignInNotifier(n SignInNotifier) AuthOption {
	return func(u *authUsecase) {
		u.notifier = n
	}
}

func NewAuthUsecase(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	jwtAuth auth.JWTAuthenticator,
	tokenCfg *config.TokenConfig,
	logger *zerolog.Logger,
	opts ...AuthOption,
) AuthUsecase {
	u := &authUsecase{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		jwtAuth:     jwtAuth,
		tokenCfg:    tokenCfg,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(u)
	}

	return u
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*AuthSession, error) {
	params.FirstName = strings.TrimSpace(params.FirstName)
	params.LastName = strings.TrimSpace(params.LastName)
	params.Email = normalizeEmail(params.Email)

	if params.FirstName == "" || params.LastName == "" || params.Email == "" || params.Password == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrValidation)
	}

	passwordHash, err := security.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := u.userRepo.CreateUser(ctx, &model.User{
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Email:        params.Email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, ErrEmailTaken
		}

		return nil, fmt.Errorf("create user: %w", err)
	}

	return u.startSession(ctx, user, params.IPAddress, params.UserAgent)
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*AuthSession, error) {
	email := normalizeEmail(params.Email)
	if email == "" || params.Password == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrValidation)
	}

	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}

		return nil, fmt.Errorf("get user: %w", err)
	}

	if ok, err := security.VerifyPassword(params.Password, user.PasswordHash); err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	} else if !ok {
		return nil, ErrInvalidCredentials
	}

	return u.startSession(ctx, user, params.IPAddress, params.UserAgent)
}

func (u *authUsecase) Refresh(ctx context.Context, refreshToken string) (*RefreshedAccess, error) {
	if refreshToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := u.jwtAuth.VerifyToken(refreshToken, u.tokenCfg.RefreshTokenSecret)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	ownerID, err := u.sessionRepo.Get(ctx, repository.RefreshKey(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, u.classifyMissingRefresh(ctx, claims.UserID, refreshToken)
		}

		return nil, err
	}
	if ownerID != claims.UserID {
		return nil, ErrInvalidOrExpiredToken
	}

	user, err := u.userRepo.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("get user: %w", err)
	}

	// The store entry alone is not enough: a revocation may have reached the
	// user record but not Redis.
	if !user.HasSession() || user.RefreshSession.Token != refreshToken {
		return nil, ErrTokenRevoked
	}

	accessToken, _, err := u.jwtAuth.IssueToken(
		claims.UserID,
		claims.DeviceID,
		u.tokenCfg.AccessTokenSecret,
		u.tokenCfg.AccessTTL(),
	)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	if err := u.sessionRepo.Put(ctx, repository.AccessKey(accessToken), claims.UserID, u.tokenCfg.AccessTTL()); err != nil {
		return nil, err
	}

	if err := u.userRepo.UpdateSessionAccessToken(ctx, claims.UserID, refreshToken, accessToken); err != nil {
		u.logger.Warn().Err(err).Str("user_id", claims.UserID).Msg("failed to record refreshed access token")
	}

	return &RefreshedAccess{
		AccessToken: accessToken,
		DeviceID:    claims.DeviceID,
	}, nil
}

func (u *authUsecase) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return ErrMissingToken
	}

	// Store presence is not checked so logout still works once the entry has expired.
	claims, err := u.jwtAuth.VerifyToken(refreshToken, u.tokenCfg.RefreshTokenSecret)
	if err != nil {
		return ErrInvalidRefreshToken
	}

	user, err := u.userRepo.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}

		return fmt.Errorf("get user: %w", err)
	}

	if err := u.userRepo.SetRefreshSession(ctx, user.ID.Hex(), nil); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}

		return fmt.Errorf("clear refresh session: %w", err)
	}

	if err := u.sessionRepo.Delete(
		ctx,
		repository.AccessKey(accessToken),
		repository.RefreshKey(refreshToken),
	); err != nil {
		u.logger.Warn().Err(err).Str("user_id", claims.UserID).Msg("failed to delete session keys on logout")
	}

	return nil
}

// startSession replaces any session the user holds with a fresh one on a new device id.
func (u *authUsecase) startSession(
	ctx context.Context,
	user *model.User,
	ipAddress, userAgent string,
) (*AuthSession, error) {
	userID := user.ID.Hex()
	previous := user.RefreshSession

	if previous != nil {
		keys := []string{repository.RefreshKey(previous.Token)}
		if previous.AccessToken != "" {
			keys = append(keys, repository.AccessKey(previous.AccessToken))
		}

		if err := u.sessionRepo.Delete(ctx, keys...); err != nil {
			u.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to delete superseded session keys")
		}
	}

	deviceID := uuid.NewString()

	accessToken, _, err := u.jwtAuth.IssueToken(userID, deviceID, u.tokenCfg.AccessTokenSecret, u.tokenCfg.AccessTTL())
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, _, err := u.jwtAuth.IssueToken(userID, deviceID, u.tokenCfg.RefreshTokenSecret, u.tokenCfg.RefreshTTL())
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := u.sessionRepo.Put(ctx, repository.AccessKey(accessToken), userID, u.tokenCfg.AccessTTL()); err != nil {
		return nil, err
	}

	session := &model.RefreshSession{
		Token:       refreshToken,
		DeviceID:    deviceID,
		AccessToken: accessToken,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		CreatedAt:   time.Now().UTC(),
	}
	if err := u.userRepo.SetRefreshSession(ctx, userID, session); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("save refresh session: %w", err)
	}
	user.RefreshSession = session

	if err := u.sessionRepo.Put(ctx, repository.RefreshKey(refreshToken), userID, u.tokenCfg.RefreshTTL()); err != nil {
		return nil, err
	}

	if previous != nil && u.notifier != nil {
		u.notifySuperseded(ctx, user, session)
	}

	return &AuthSession{
		User:             user,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		DeviceID:         deviceID,
		RefreshExpiresIn: u.tokenCfg.RefreshTTL(),
	}, nil
}

// classifyMissingRefresh explains a refresh token whose store entry is gone.
// A record now holding a different token means a later login superseded it;
// logout and TTL lapse leave nothing to compare against.
func (u *authUsecase) classifyMissingRefresh(ctx context.Context, userID, refreshToken string) error {
	user, err := u.userRepo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidOrExpiredToken
		}

		return fmt.Errorf("get user: %w", err)
	}

	if user.HasSession() && user.RefreshSession.Token != refreshToken {
		return ErrTokenRevoked
	}

	return ErrInvalidOrExpiredToken
}

func (u *authUsecase) notifySuperseded(ctx context.Context, user *model.User, session *model.RefreshSession) {
	ctx = context.WithoutCancel(ctx)
	recipient := *user
	current := *session

	go func() {
		if err := u.notifier.NotifyNewSignIn(ctx, &recipient, &current); err != nil {
			u.logger.Warn().Err(err).Str("user_id", recipient.ID.Hex()).Msg("failed to send sign-in notice")
		}
	}()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
