package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/xxxsen/docrag/internal/model"
)

// Claims carry the anonymous scope of a browser session.
type Claims struct {
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	jwtlib.RegisteredClaims
}

func (c *Claims) Scope() model.Scope {
	return model.Scope{UserID: c.UserID, ProjectID: c.ProjectID}
}

func GenerateToken(scope model.Scope, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    scope.UserID,
		ProjectID: scope.ProjectID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   scope.UserID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.Scope().Valid() {
		return nil, errors.New("token has no scope")
	}
	return claims, nil
}
