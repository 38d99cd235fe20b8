package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, signed with another
	// secret, or carries an unexpected issuer or audience.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a token is well-formed and correctly signed
	// but its exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the payload carried by both access and refresh tokens.
type Claims struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// JWTAuthenticator represents a JWT based authenticator.
type JWTAuthenticator struct {
	audience string
	issuer   string
	now      func() time.Time
}

// Option configures a JWTAuthenticator.
type Option func(*JWTAuthenticator)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(a *JWTAuthenticator) {
		a.now = now
	}
}

// NewJWTAuthenticator creates a new JWTAuthenticator instance.
func NewJWTAuthenticator(audience, issuer string, opts ...Option) JWTAuthenticator {
	a := JWTAuthenticator{
		audience: audience,
		issuer:   issuer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&a)
	}

	return a
}

// GenerateToken generates a JWT token with the given claims and secret.
// This is generic and accepts any type that implements jwt.Claims.
func (a *JWTAuthenticator) GenerateToken(claims jwt.Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenStr, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenStr, nil
}

// IssueToken signs a token for the user and device that expires ttl from now.
// Access and refresh tokens are both issued here; they differ only by secret and ttl.
func (a *JWTAuthenticator) IssueToken(
	userID, deviceID, secret string,
	ttl time.Duration,
) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("empty signing secret")
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("invalid token ttl: %s", ttl)
	}

	now := a.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID:   userID,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    a.issuer,
			Audience:  jwt.ClaimStrings{a.audience},
		},
	}

	token, err := a.GenerateToken(claims, secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// VerifyToken checks the signature and expiry of token and returns its claims.
// It never consults any store: revocation is the caller's concern.
func (a *JWTAuthenticator) VerifyToken(token, secret string) (*Claims, error) {
	claims := &Claims{}
	if _, err := a.ValidateTokenWithClaims(token, secret, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.UserID == "" || claims.DeviceID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateToken validates a JWT token with the given secret and returns the parsed token.
// The caller should assert the claims to their expected type from token.Claims.
func (a *JWTAuthenticator) ValidateToken(token, secret string) (*jwt.Token, error) {
	return jwt.Parse(token, a.keyFunc(secret), a.parserOptions()...)
}

// ValidateTokenWithClaims validates a JWT token and parses it into the provided claims type.
// The claims parameter should be a pointer to a struct that implements jwt.Claims.
func (a *JWTAuthenticator) ValidateTokenWithClaims(tokenString, secret string, claims jwt.Claims) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenString, claims, a.keyFunc(secret), a.parserOptions()...)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return token, nil
}

func (a *JWTAuthenticator) keyFunc(secret string) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return []byte(secret), nil
	}
}

func (a *JWTAuthenticator) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithAudience(a.audience),
		jwt.WithIssuer(a.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(a.now),
	}
}
