package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const audience = "chatkeep-api"

// JWTService implements TokenService with HS256-signed JWTs
type JWTService struct {
	secretKey      []byte
	accessTokenTTL time.Duration
	issuer         string
	now            func() time.Time
}

// NewJWTService creates a JWT service. Zero values fall back to a 24h TTL and
// the "chatkeep" issuer.
func NewJWTService(secretKey string, accessTokenTTL time.Duration, issuer string) (*JWTService, error) {
	if secretKey == "" {
		return nil, ErrMissingSecret()
	}
	if accessTokenTTL == 0 {
		accessTokenTTL = 24 * time.Hour
	}
	if issuer == "" {
		issuer = "chatkeep"
	}

	return &JWTService{
		secretKey:      []byte(secretKey),
		accessTokenTTL: accessTokenTTL,
		issuer:         issuer,
		now:            time.Now,
	}, nil
}

// JWTClaims are the claims carried in access tokens
type JWTClaims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a token for subject. A zero ttl uses the
// service default.
func (j *JWTService) GenerateAccessToken(subject string, scopes []string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrTokenGenerationFailed().WithDetail("error", "subject is required")
	}
	if ttl == 0 {
		ttl = j.accessTokenTTL
	}
	if scopes == nil {
		scopes = []string{}
	}

	now := j.now()
	claims := JWTClaims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   subject,
			Audience:  []string{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", ErrTokenGenerationFailed().WithDetail("error", err.Error())
	}

	return tokenString, nil
}

// ValidateAccessToken verifies signature, issuer, audience and expiry.
func (j *JWTService) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	},
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(j.now),
	)

	if err != nil {
		return nil, ErrTokenValidationFailed().WithDetail("error", err.Error())
	}

	if !token.Valid {
		return nil, ErrTokenValidationFailed().WithDetail("error", "token is invalid")
	}

	jwtClaims, ok := token.Claims.(*JWTClaims)
	if !ok || jwtClaims.Subject == "" {
		return nil, ErrTokenValidationFailed().WithDetail("error", "invalid claims")
	}

	return &TokenClaims{
		Subject:   jwtClaims.Subject,
		Scopes:    jwtClaims.Scopes,
		IssuedAt:  jwtClaims.IssuedAt.Time,
		ExpiresAt: jwtClaims.ExpiresAt.Time,
	}, nil
}

var _ TokenService = (*JWTService)(nil)
