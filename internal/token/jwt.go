package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/prakriti-server/internal/model"
)

// Claims represents JWT claims with token type and identity ID.
type Claims struct {
	jwt.RegisteredClaims
	IdentityID uuid.UUID `json:"identity_id"`
	TokenType  string    `json:"typ"`
}

var _ model.TokenManager = (*JWT)(nil)

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewJWT creates a JWT token manager. Zero TTLs fall back to 15 minutes and 7 days.
func NewJWT(secretKey string, accessTTL, refreshTTL time.Duration) *JWT {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &JWT{
		secretKey:  []byte(secretKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	typeAccess        = "access"
	typeRefresh       = "refresh"
)

// GenerateAccessToken creates a short-lived access token.
func (j *JWT) GenerateAccessToken(identityID uuid.UUID) (string, time.Time, error) {
	token, exp, err := j.sign(identityID, typeAccess, j.accessTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, exp, nil
}

// GenerateRefreshToken creates a long-lived refresh token.
func (j *JWT) GenerateRefreshToken(identityID uuid.UUID) (string, time.Time, error) {
	token, exp, err := j.sign(identityID, typeRefresh, j.refreshTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return token, exp, nil
}

// ParseAccessToken validates and extracts the identity ID from an access token.
func (j *JWT) ParseAccessToken(tokenString string) (uuid.UUID, error) {
	return j.parse(tokenString, typeAccess)
}

// ParseRefreshToken validates and extracts the identity ID from a refresh token.
func (j *JWT) ParseRefreshToken(tokenString string) (uuid.UUID, error) {
	return j.parse(tokenString, typeRefresh)
}

func (j *JWT) sign(identityID uuid.UUID, typ string, ttl time.Duration) (string, time.Time, error) {
	now := j.now()
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identityID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		IdentityID: identityID,
		TokenType:  typ,
	})

	s, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

func (j *JWT) parse(tokenString, typ string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, fmt.Errorf("failed to parse %s token: %w", typ, model.ErrTokenExpired)
		}
		return uuid.Nil, fmt.Errorf("failed to parse %s token: %w: %v", typ, model.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return uuid.Nil, fmt.Errorf("%s token is invalid: %w", typ, model.ErrTokenInvalid)
	}
	if claims.TokenType != typ {
		return uuid.Nil, fmt.Errorf("%w: %s", model.ErrTokenMismatch, claims.TokenType)
	}
	if claims.IdentityID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s token has no identity: %w", typ, model.ErrTokenInvalid)
	}
	return claims.IdentityID, nil
}
