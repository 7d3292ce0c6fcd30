package handlers

import (
	"net/http"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/ArowuTest/calmcoins-backend/internal/middleware"
	"github.com/ArowuTest/calmcoins-backend/internal/services"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationService services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationService services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// ListNotifications handles GET /notifications
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	// Parse pagination parameters
	page, err := queryInt(c, "page", 1)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	result, err := h.notificationService.ListForUser(c.Request.Context(), p.UserID, page, limit)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// MarkRead handles PATCH /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	// Parse ID from URL
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidation("id", "Invalid ID format", "ObjectID hex", c.Param("id")))
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), id, p.UserID); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
