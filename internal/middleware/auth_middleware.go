package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ArowuTest/calmcoins-backend/internal/authz"
	"github.com/ArowuTest/calmcoins-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slog"
)

const principalKey = "principal"

// JWTAuthMiddleware creates a gin middleware for JWT authentication.
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const BearerSchema = "Bearer "
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody(CodeUnauthorized, "Authorization header is required", nil))
			return
		}

		if !strings.HasPrefix(authHeader, BearerSchema) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody(CodeUnauthorized, "Authorization header must start with Bearer ", nil))
			return
		}

		claims, err := utils.ValidateJWT(authHeader[len(BearerSchema):], secret)
		if err != nil {
			slog.Warn("Token validation failed", "requestId", c.GetString(RequestIDKey), "error", err)
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody(CodeUnauthorized, "Token has expired", nil))
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody(CodeUnauthorized, "Invalid token", nil))
			}
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody(CodeUnauthorized, "Invalid token subject", nil))
			return
		}

		SetPrincipal(c, authz.Principal{UserID: userID, Role: claims.Role, CampusID: claims.CampusID})
		c.Next()
	}
}

// SetPrincipal stores the authenticated caller on the request
func SetPrincipal(c *gin.Context, p authz.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the authenticated caller of the request
func PrincipalFrom(c *gin.Context) (authz.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return authz.Principal{}, false
	}
	p, ok := v.(authz.Principal)
	return p, ok
}
