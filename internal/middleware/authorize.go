package middleware

import (
	"errors"
	"net/http"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/ArowuTest/calmcoins-backend/internal/authz"
	"github.com/ArowuTest/calmcoins-backend/internal/catalog"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// RoleResolver returns the role the target resource of a request belongs to.
// An empty role only requires authentication.
type RoleResolver func(c *gin.Context) (string, error)

// Authorize checks the caller against the role of the requested resource
// once per route, before the handler runs.
func Authorize(checker authz.Checker, action string, resolve RoleResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody(CodeUnauthorized, "authentication required", nil))
			return
		}

		required := ""
		if resolve != nil {
			role, err := resolve(c)
			if err != nil {
				RespondError(c, err)
				return
			}
			required = role
		}

		if err := checker.Check(p, action, required); err != nil {
			RespondError(c, err)
			return
		}
		c.Next()
	}
}

func familyRole(cat *catalog.Catalog, gameType string) (string, error) {
	if gameType == "" {
		return "", apperrors.NewValidation("gameType", "gameType is required", nil, nil)
	}
	family, ok := cat.Family(gameType)
	if !ok {
		return "", apperrors.NewValidation("gameType", "unknown game type", nil, gameType)
	}
	return family.Role, nil
}

// GameTypeFromBody resolves the role of the game family named in the JSON body.
// The body is cached so the handler can bind it again.
func GameTypeFromBody(cat *catalog.Catalog) RoleResolver {
	return func(c *gin.Context) (string, error) {
		var body struct {
			GameType string `json:"gameType"`
		}
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			return "", apperrors.NewValidation("body", "invalid JSON body", nil, err.Error())
		}
		return familyRole(cat, body.GameType)
	}
}

// GameRole resolves the role of the game named by the gameId path parameter.
// The caller's stored progress record decides first, then the badge rosters,
// then the optional gameType query parameter. A game none of them knows only
// requires authentication.
func GameRole(cat *catalog.Catalog, progress repositories.ProgressRepository) RoleResolver {
	return func(c *gin.Context) (string, error) {
		gameID := c.Param("gameId")
		if p, ok := PrincipalFrom(c); ok && progress != nil {
			record, err := progress.FindByUserAndGame(c.Request.Context(), p.UserID, gameID)
			switch {
			case err == nil && record.Role != "":
				return record.Role, nil
			case err != nil && !errors.Is(err, repositories.ErrNotFound):
				return "", apperrors.Persistence("find progress", err)
			}
		}
		if family, ok := cat.FamilyForGame(gameID); ok {
			return family.Role, nil
		}
		if hint := c.Query("gameType"); hint != "" {
			return familyRole(cat, hint)
		}
		return "", nil
	}
}

// BadgeRole resolves the role a badge is meant for from the badgeKey path parameter
func BadgeRole(cat *catalog.Catalog) RoleResolver {
	return func(c *gin.Context) (string, error) {
		key := c.Param("badgeKey")
		badge, ok := cat.Badge(key)
		if !ok {
			return "", &apperrors.NotFoundError{Resource: "badge", ID: key}
		}
		return badge.Role, nil
	}
}
