package handler

import (
	"errors"
	"net/http"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/middleware"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/repository"
	"github.com/haithamlamki/Abraj-Drilling-sub000/pkg/pagination"
	"github.com/haithamlamki/Abraj-Drilling-sub000/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationHandler is the read/dismiss surface over the engine's
// write-only notification stream.
type NotificationHandler struct {
	notifications repository.NotificationRepository
}

func NewNotificationHandler(notifications repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	notifications := router.Group("/api/notifications", middleware.RequireRole(workflowActors...))
	{
		notifications.GET("", h.List)
		notifications.PUT("/:id/read", h.MarkRead)
	}
}

func (h *NotificationHandler) List(c *gin.Context) {
	recipient, err := uuid.Parse(callerID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	params := pagination.Parse(c)
	unreadOnly := c.Query("unread") == "true"

	notifications, total, err := h.notifications.ListByRecipient(c.Request.Context(), recipient, unreadOnly, params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, notifications, total, params.Page, params.Limit))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	recipient, err := uuid.Parse(callerID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid notification id"))
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), id, recipient); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, model.ErrNotFound)
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, nil))
}
