package handlers

import (
	"net/http"
	"strconv"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/ArowuTest/calmcoins-backend/internal/authz"
	"github.com/ArowuTest/calmcoins-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// principal returns the caller or writes a 401
func principal(c *gin.Context) (authz.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			middleware.ErrorBody(middleware.CodeUnauthorized, "authentication required", nil))
	}
	return p, ok
}

// queryInt parses an optional integer query parameter
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidation(name, name+" must be an integer", "integer", raw)
	}
	return v, nil
}
