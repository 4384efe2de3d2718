package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"school_admin/backend/internal/access"
	"school_admin/backend/internal/shared"
)

// CustomClaims is the JWT payload: the account id and role.
type CustomClaims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer builds an issuer from the security configuration.
func NewTokenIssuer(cfg shared.SecurityConfig) *TokenIssuer {
	hours := cfg.JWTExpirationHours
	if hours <= 0 {
		hours = 7 * 24
	}
	return &TokenIssuer{
		secret: []byte(cfg.JWTSecret),
		ttl:    time.Duration(hours) * time.Hour,
		now:    time.Now,
	}
}

// Generate creates a signed token for the user.
func (ti *TokenIssuer) Generate(userID, role string) (string, time.Time, error) {
	now := ti.now()
	expirationTime := now.Add(ti.ttl)

	claims := CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        shared.GenerateID(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(ti.secret)
	return tokenString, expirationTime, err
}

// Parse validates the signature and expiry and returns the caller.
func (ti *TokenIssuer) Parse(tokenString string) (*access.Principal, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return &access.Principal{ID: claims.UserID, Role: claims.Role}, nil
}

const tokenIssuer = "school-admin"
