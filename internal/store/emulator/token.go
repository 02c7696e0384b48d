package emulator

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const adminTokenType = "admin"

// AdminClaims son los claims del token de admin del emulador.
type AdminClaims struct {
	Email string `json:"email"`
	Type  string `json:"type"` // "admin"
	jwtv5.RegisteredClaims
}

type issuer struct {
	secret []byte
	ttl    time.Duration
}

// issue firma un token HS256 para el admin email.
func (i *issuer) issue(email string, now time.Time) (string, error) {
	claims := AdminClaims{
		Email: strings.ToLower(email),
		Type:  adminTokenType,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strings.ToLower(email),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(i.secret)
}

// verify valida firma, expiración y tipo.
func (i *issuer) verify(token string) (*AdminClaims, error) {
	var claims AdminClaims
	tok, err := jwtv5.ParseWithClaims(token, &claims, func(t *jwtv5.Token) (any, error) {
		return i.secret, nil
	}, jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}), jwtv5.WithLeeway(30*time.Second))
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid_jwt")
	}
	if claims.Type != adminTokenType {
		return nil, errors.New("wrong_token_type")
	}
	return &claims, nil
}
