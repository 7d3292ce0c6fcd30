package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity carried by a bearer token
type Claims struct {
	UserID   string
	Role     string
	CampusID string
}

// GenerateJWT signs a token for the given identity
func GenerateJWT(claims Claims, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      claims.UserID,
		"role":     claims.Role,
		"campusId": claims.CampusID,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// ValidateJWT parses and validates a token, returning its identity
func ValidateJWT(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, errors.New("token has no subject")
	}
	role, _ := mapClaims["role"].(string)
	campus, _ := mapClaims["campusId"].(string)
	return &Claims{UserID: sub, Role: role, CampusID: campus}, nil
}
