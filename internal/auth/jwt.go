// Package auth implements the session layer: JWT access/refresh tokens
// delivered as HttpOnly cookies, the GitHub OAuth code exchange, and the
// request middleware that resolves identities and enforces the account
// status hierarchy.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const (
	issuer = "gitinspire"

	// AccessTokenTTL is how long an access token stays valid.
	AccessTokenTTL = 3 * time.Hour
	// RefreshTokenTTL is how long a refresh token stays valid.
	RefreshTokenTTL = 30 * 24 * time.Hour
	// RotationWindow is how close to expiry an access token must be
	// before the middleware silently reissues it.
	RotationWindow = 30 * time.Minute

	kindAccess  = "access"
	kindRefresh = "refresh"
)

// TokenService signs and verifies session tokens with a shared HMAC
// secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService. The secret should be at least
// 32 bytes of random data in production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// claims is the JWT payload. Subject carries the GitHub user id, Kind
// separates access tokens from refresh tokens so one can never stand in
// for the other, and CSRF carries the double-submit value paired with
// the X-CSRF-Token header.
type claims struct {
	jwt.RegisteredClaims
	Kind string `json:"kind"`
	CSRF string `json:"csrf,omitempty"`
}

// Session describes a verified access token.
type Session struct {
	UserID    int64
	CSRF      string
	ExpiresAt time.Time
}

// ExpiringSoon reports whether the token is inside the rotation window.
func (s *Session) ExpiringSoon(now time.Time) bool {
	return s.ExpiresAt.Sub(now) < RotationWindow
}

// GenerateAccess signs a fresh access token. The returned CSRF value is
// embedded in the token and must also be handed to the client so it can
// echo it back in the X-CSRF-Token header.
func (s *TokenService) GenerateAccess(userID int64) (token, csrf string, err error) {
	csrf = xid.New().String()
	token, err = s.sign(userID, kindAccess, csrf, AccessTokenTTL)
	return token, csrf, err
}

// GenerateRefresh signs a fresh refresh token.
func (s *TokenService) GenerateRefresh(userID int64) (string, error) {
	return s.sign(userID, kindRefresh, "", RefreshTokenTTL)
}

func (s *TokenService) sign(userID int64, kind, csrf string, ttl time.Duration) (string, error) {
	now := s.now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
		Kind: kind,
		CSRF: csrf,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing %s token: %w", kind, err)
	}

	return signed, nil
}

// ValidateAccess parses and verifies an access token.
func (s *TokenService) ValidateAccess(tokenStr string) (*Session, error) {
	c, err := s.parse(tokenStr, kindAccess)
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("auth: token has a malformed subject: %w", err)
	}

	return &Session{
		UserID:    userID,
		CSRF:      c.CSRF,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// ValidateRefresh parses and verifies a refresh token, returning the
// user id it was issued to.
func (s *TokenService) ValidateRefresh(tokenStr string) (int64, error) {
	c, err := s.parse(tokenStr, kindRefresh)
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("auth: token has a malformed subject: %w", err)
	}

	return userID, nil
}

func (s *TokenService) parse(tokenStr, wantKind string) (*claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Kind != wantKind {
		return nil, fmt.Errorf("auth: token kind %q where %q is required", c.Kind, wantKind)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return c, nil
}
