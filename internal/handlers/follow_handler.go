package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/threadloom/backend/internal/models"
	"github.com/threadloom/backend/internal/notify"
	"github.com/threadloom/backend/internal/repositories"
)

// FollowHandler handles HTTP requests for the follow graph
type FollowHandler struct {
	notifyService    *notify.Service
	followRepository repositories.FollowRepository
	userRepository   repositories.UserRepository
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(notifyService *notify.Service, followRepo repositories.FollowRepository, userRepo repositories.UserRepository) *FollowHandler {
	return &FollowHandler{notifyService: notifyService, followRepository: followRepo, userRepository: userRepo}
}

// RegisterFollowRoutes registers follow-graph routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/follow", h.Follow)
	g.PATCH("/follow/accept", h.AcceptRequest)
	g.PATCH("/follow/reject", h.RejectRequest)
	g.DELETE("/follow/:id", h.Unfollow)
	g.DELETE("/followers/:id", h.RemoveFollower)
	g.GET("/follow/requests", h.GetPendingRequests)
}

// Follow creates a follow edge toward the target user. Public targets
// are followed immediately; private targets get a pending request.
func (h *FollowHandler) Follow(c echo.Context) error {
	var req models.FollowRequestBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	edge, err := h.notifyService.Follow(c.Request().Context(), getUserIDFromContext(c), req.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"status": edge.Status}})
}

// AcceptRequest approves a pending follow request addressed to the
// authenticated user.
func (h *FollowHandler) AcceptRequest(c echo.Context) error {
	var req models.FollowRequestBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.notifyService.Accept(c.Request().Context(), getUserIDFromContext(c), req.UserID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// RejectRequest discards a pending follow request. The requester is not
// notified.
func (h *FollowHandler) RejectRequest(c echo.Context) error {
	var req models.FollowRequestBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.notifyService.Reject(c.Request().Context(), getUserIDFromContext(c), req.UserID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Unfollow removes the authenticated user's follow edge toward :id
func (h *FollowHandler) Unfollow(c echo.Context) error {
	targetID, err := parseUserID(c)
	if err != nil {
		return err
	}
	if err := h.notifyService.Unfollow(c.Request().Context(), getUserIDFromContext(c), targetID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveFollower removes :id from the authenticated user's followers
func (h *FollowHandler) RemoveFollower(c echo.Context) error {
	followerID, err := parseUserID(c)
	if err != nil {
		return err
	}
	if err := h.notifyService.RemoveFollower(c.Request().Context(), getUserIDFromContext(c), followerID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetPendingRequests lists users with a pending request toward the
// authenticated user.
func (h *FollowHandler) GetPendingRequests(c echo.Context) error {
	edges, err := h.followRepository.GetPendingRequests(getUserIDFromContext(c))
	if err != nil {
		return httpError(err)
	}

	ids := make([]uint, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowerID
	}
	users, err := h.userRepository.GetUsersByIDs(ids)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"users": toCompactList(users)}})
}
