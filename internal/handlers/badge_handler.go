package handlers

import (
	"net/http"

	"github.com/ArowuTest/calmcoins-backend/internal/middleware"
	"github.com/ArowuTest/calmcoins-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// BadgeHandler handles badge requests
type BadgeHandler struct {
	badgeService services.BadgeService
}

// NewBadgeHandler creates a new BadgeHandler
func NewBadgeHandler(badgeService services.BadgeService) *BadgeHandler {
	return &BadgeHandler{
		badgeService: badgeService,
	}
}

// GetBadgeStatus handles GET /badge/:badgeKey
func (h *BadgeHandler) GetBadgeStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	status, err := h.badgeService.CheckBadgeStatus(c.Request.Context(), p.UserID, c.Param("badgeKey"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// CollectBadge handles POST /badge/:badgeKey/collect
func (h *BadgeHandler) CollectBadge(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	result, err := h.badgeService.CollectBadge(c.Request.Context(), p.UserID, c.Param("badgeKey"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AcknowledgeBadge handles POST /badge/:badgeKey/acknowledge
func (h *BadgeHandler) AcknowledgeBadge(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	changed, err := h.badgeService.AcknowledgeBadge(c.Request.Context(), p.UserID, c.Param("badgeKey"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "acknowledged": changed})
}

// ListBadges handles GET /badges
func (h *BadgeHandler) ListBadges(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	statuses, err := h.badgeService.AllStatuses(c.Request.Context(), p.UserID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	resp := gin.H{"badges": statuses}
	for _, st := range statuses {
		resp[st.Key+"Badge"] = st
	}
	c.JSON(http.StatusOK, resp)
}
