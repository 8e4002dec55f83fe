package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/threadloom/backend/internal/models"
	"github.com/threadloom/backend/internal/repositories"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, followRepo repositories.FollowRepository) *UserHandler {
	return &UserHandler{userRepository: userRepo, followRepository: followRepo}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.DELETE("/profile", h.DeleteUser)
	g.GET("/users/:id", h.GetUser)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
}

func parseUserID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}
	return uint(id), nil
}

// GetUser retrieves another user's profile, annotated with the viewer's
// follow status toward them.
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(id)
	if err != nil {
		return httpError(err)
	}

	followStatus := ""
	if viewerID := getUserIDFromContext(c); viewerID != 0 && viewerID != id {
		if edge, err := h.followRepository.GetFollow(viewerID, id); err == nil {
			followStatus = edge.Status
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"user":          user,
			"follow_status": followStatus,
		},
	})
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	user, err := h.userRepository.GetUserByID(getUserIDFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req models.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByID(getUserIDFromContext(c))
	if err != nil {
		return httpError(err)
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	if req.IsPrivate != nil {
		user.IsPrivate = *req.IsPrivate
	}

	if err := h.userRepository.UpdateUser(user); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// DeleteUser hard-deletes the authenticated user's account. References
// from threads, likes and notifications are left behind; read paths drop
// what no longer resolves.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	if err := h.userRepository.DeleteUser(getUserIDFromContext(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetFollowers lists the accepted followers of a user
func (h *UserHandler) GetFollowers(c echo.Context) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}
	users, err := h.followRepository.GetFollowers(id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"users": toCompactList(users)}})
}

// GetFollowing lists the users a user accepted-follows
func (h *UserHandler) GetFollowing(c echo.Context) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}
	users, err := h.followRepository.GetFollowing(id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"users": toCompactList(users)}})
}

// SearchUsers searches for users by username or display name
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query 'q' is required")
	}

	users, err := h.userRepository.SearchUsers(query)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"users": toCompactList(users)}})
}

func toCompactList(users []models.User) []models.UserCompact {
	compact := make([]models.UserCompact, len(users))
	for i, u := range users {
		compact[i] = u.ToCompact()
	}
	return compact
}
