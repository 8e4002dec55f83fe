package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/threadloom/backend/internal/models"
	"github.com/threadloom/backend/internal/notify"
	"github.com/threadloom/backend/internal/repositories"
	"go.uber.org/zap"
)

// LikeHandler handles HTTP requests for thread likes
type LikeHandler struct {
	likeRepository   repositories.LikeRepository
	threadRepository repositories.ThreadRepository
	notifyService    *notify.Service
	log              *zap.Logger
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likeRepo repositories.LikeRepository, threadRepo repositories.ThreadRepository, notifyService *notify.Service, log *zap.Logger) *LikeHandler {
	return &LikeHandler{likeRepository: likeRepo, threadRepository: threadRepo, notifyService: notifyService, log: log}
}

// RegisterLikeRoutes registers like routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/threads/:id/likes", h.LikeThread)
	g.DELETE("/threads/:id/likes", h.UnlikeThread)
}

// LikeThread records a like on a thread. Liking twice is a conflict.
func (h *LikeHandler) LikeThread(c echo.Context) error {
	userID := getUserIDFromContext(c)
	threadID := c.Param("id")

	thread, err := h.threadRepository.GetThreadByID(c.Request().Context(), threadID)
	if err != nil {
		return httpError(err)
	}

	if err := h.likeRepository.CreateLike(&models.Like{UserID: userID, ThreadID: threadID}); err != nil {
		return httpError(err)
	}

	if err := h.notifyService.Liked(c.Request().Context(), userID, thread); err != nil {
		h.log.Warn("recording like notification", zap.Error(err))
	}

	count, err := h.likeRepository.GetLikesCount(threadID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"like_count": count}})
}

// UnlikeThread removes the viewer's like from a thread
func (h *LikeHandler) UnlikeThread(c echo.Context) error {
	userID := getUserIDFromContext(c)
	threadID := c.Param("id")

	if err := h.likeRepository.DeleteLike(userID, threadID); err != nil {
		return httpError(err)
	}

	count, err := h.likeRepository.GetLikesCount(threadID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"like_count": count}})
}
