package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/threadloom/backend/internal/feed"
	"github.com/threadloom/backend/internal/models"
	"github.com/threadloom/backend/internal/repositories"
)

// BookmarkHandler handles HTTP requests for bookmarks
type BookmarkHandler struct {
	bookmarkRepository repositories.BookmarkRepository
	threadRepository   repositories.ThreadRepository
	feedService        *feed.Service
}

// NewBookmarkHandler creates a new BookmarkHandler
func NewBookmarkHandler(bookmarkRepo repositories.BookmarkRepository, threadRepo repositories.ThreadRepository, feedService *feed.Service) *BookmarkHandler {
	return &BookmarkHandler{bookmarkRepository: bookmarkRepo, threadRepository: threadRepo, feedService: feedService}
}

// RegisterBookmarkRoutes registers bookmark routes
func (h *BookmarkHandler) RegisterBookmarkRoutes(g *echo.Group) {
	g.POST("/threads/:id/bookmark", h.BookmarkThread)
	g.DELETE("/threads/:id/bookmark", h.UnbookmarkThread)
	g.GET("/bookmarks", h.GetBookmarks)
}

// BookmarkThread saves a thread to the viewer's private bookmark list
func (h *BookmarkHandler) BookmarkThread(c echo.Context) error {
	userID := getUserIDFromContext(c)
	threadID := c.Param("id")

	if _, err := h.threadRepository.GetThreadByID(c.Request().Context(), threadID); err != nil {
		return httpError(err)
	}

	if err := h.bookmarkRepository.SaveBookmark(&models.Bookmark{UserID: userID, ThreadID: threadID}); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true})
}

// UnbookmarkThread removes a thread from the viewer's bookmark list
func (h *BookmarkHandler) UnbookmarkThread(c echo.Context) error {
	if err := h.bookmarkRepository.RemoveBookmark(getUserIDFromContext(c), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetBookmarks lists the viewer's bookmarked threads, annotated like any
// other feed page.
func (h *BookmarkHandler) GetBookmarks(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	result, err := h.feedService.Bookmarks(c.Request().Context(), getUserIDFromContext(c), page, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"threads": result.Items}, "meta": result.Pagination})
}
