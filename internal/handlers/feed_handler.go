package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/threadloom/backend/internal/feed"
)

// FeedHandler handles HTTP requests for the home timeline
type FeedHandler struct {
	feedService *feed.Service
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feedService *feed.Service) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

// RegisterFeedRoutes registers feed routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
}

// GetFeed returns a page of the viewer's feed. mode=following requires
// authentication; anonymous viewers and mode=discover get the public
// discovery timeline.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	viewerID := getUserIDFromContext(c)

	mode := feed.ModeDiscover
	switch c.QueryParam("mode") {
	case "", "discover":
	case "following":
		if viewerID == 0 {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required for the following feed")
		}
		mode = feed.ModeFollowing
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown feed mode")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	result, err := h.feedService.Feed(c.Request().Context(), viewerID, mode, page, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"threads": result.Items}, "meta": result.Pagination})
}
