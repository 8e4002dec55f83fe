package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/threadloom/backend/internal/models"
	"github.com/threadloom/backend/internal/repositories"
)

// NotificationHandler handles HTTP requests for the notification inbox
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	userRepository         repositories.UserRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationRepo repositories.NotificationRepository, userRepo repositories.UserRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepository: notificationRepo, userRepository: userRepo}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread", h.GetUnread)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// notificationView is a notification with its sender resolved for
// display. Senders whose account is gone render as a zero value.
type notificationView struct {
	models.Notification
	Sender models.UserCompact `json:"sender"`
}

func (h *NotificationHandler) enrich(notifications []models.Notification) ([]notificationView, error) {
	idSet := make(map[uint]bool)
	for _, n := range notifications {
		idSet[n.SenderID] = true
	}
	ids := make([]uint, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	senders, err := h.userRepository.GetUsersByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.UserCompact, len(senders))
	for _, u := range senders {
		byID[u.ID] = u.ToCompact()
	}

	views := make([]notificationView, len(notifications))
	for i, n := range notifications {
		views[i] = notificationView{Notification: n, Sender: byID[n.SenderID]}
	}
	return views, nil
}

// GetNotifications lists the viewer's notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 50 {
		limit = 20
	}

	notifications, total, err := h.notificationRepository.GetByRecipientID(getUserIDFromContext(c), page, limit)
	if err != nil {
		return httpError(err)
	}
	views, err := h.enrich(notifications)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"notifications": views},
		"meta":    echo.Map{"total": total, "page": page, "limit": limit},
	})
}

// GetUnread lists the viewer's unread notifications
func (h *NotificationHandler) GetUnread(c echo.Context) error {
	notifications, err := h.notificationRepository.GetUnread(getUserIDFromContext(c))
	if err != nil {
		return httpError(err)
	}
	views, err := h.enrich(notifications)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"notifications": views}})
}

// GetUnreadCount returns the viewer's unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	count, err := h.notificationRepository.GetUnreadCount(getUserIDFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// MarkAsRead marks one of the viewer's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}
	if err := h.notificationRepository.MarkAsRead(uint(id), getUserIDFromContext(c)); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// MarkAllAsRead marks all of the viewer's notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	if err := h.notificationRepository.MarkAllAsRead(getUserIDFromContext(c)); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
