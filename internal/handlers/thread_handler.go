package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/threadloom/backend/internal/feed"
	"github.com/threadloom/backend/internal/models"
	"github.com/threadloom/backend/internal/notify"
	"github.com/threadloom/backend/internal/repositories"
	"go.uber.org/zap"
)

// MediaStore is the object-storage boundary used for thread media
type MediaStore interface {
	Upload(ctx context.Context, r io.Reader, contentType string) (string, error)
	AccessURL(key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ThreadHandler handles HTTP requests related to threads
type ThreadHandler struct {
	threadRepository repositories.ThreadRepository
	userRepository   repositories.UserRepository
	feedService      *feed.Service
	notifyService    *notify.Service
	mediaStore       MediaStore
	log              *zap.Logger
}

// NewThreadHandler creates a new ThreadHandler. mediaStore may be nil
// when media storage is not configured.
func NewThreadHandler(
	threadRepo repositories.ThreadRepository,
	userRepo repositories.UserRepository,
	feedService *feed.Service,
	notifyService *notify.Service,
	mediaStore MediaStore,
	log *zap.Logger,
) *ThreadHandler {
	return &ThreadHandler{
		threadRepository: threadRepo,
		userRepository:   userRepo,
		feedService:      feedService,
		notifyService:    notifyService,
		mediaStore:       mediaStore,
		log:              log,
	}
}

// RegisterThreadRoutes registers authenticated thread routes
func (h *ThreadHandler) RegisterThreadRoutes(g *echo.Group) {
	g.POST("/threads", h.CreateThread)
	g.POST("/threads/:id/replies", h.CreateReply)
	g.POST("/threads/:id/repost", h.Repost)
	g.PATCH("/threads/:id/archive", h.ArchiveThread)
	g.DELETE("/threads/:id", h.DeleteThread)
}

// RegisterThreadReadRoutes registers read routes served with optional
// authentication (anonymous viewers allowed).
func (h *ThreadHandler) RegisterThreadReadRoutes(g *echo.Group) {
	g.GET("/threads/:id", h.GetThread)
	g.GET("/threads/:id/replies", h.GetReplies)
	g.GET("/users/:id/threads", h.GetUserThreads)
}

// CreateThread creates a top-level post from a multipart form with an
// optional single media file.
func (h *ThreadHandler) CreateThread(c echo.Context) error {
	userID := getUserIDFromContext(c)

	body := c.FormValue("body")
	media, err := h.uploadMedia(c)
	if err != nil {
		return err
	}

	thread := &models.Thread{
		AuthorID: userID,
		Kind:     models.ThreadKindPost,
		Body:     body,
		Media:    media,
	}
	if !thread.HasContent() {
		return echo.NewHTTPError(http.StatusBadRequest, "Thread requires body text or media")
	}

	h.extractEntities(thread)
	if err := h.threadRepository.CreateThread(c.Request().Context(), thread); err != nil {
		return httpError(err)
	}
	h.notifyMentions(c.Request().Context(), userID, thread)

	return c.JSON(http.StatusCreated, thread)
}

// CreateReply creates a reply under an existing thread. A missing
// parent aborts the write with NotFound.
func (h *ThreadHandler) CreateReply(c echo.Context) error {
	userID := getUserIDFromContext(c)
	parentID := c.Param("id")

	parent, err := h.threadRepository.GetThreadByID(c.Request().Context(), parentID)
	if err != nil {
		return httpError(err)
	}

	var req models.CreateThreadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if strings.TrimSpace(req.Body) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Reply requires body text")
	}

	thread := &models.Thread{
		AuthorID: userID,
		Kind:     models.ThreadKindReply,
		Body:     req.Body,
		ParentID: parentID,
	}
	h.extractEntities(thread)
	if err := h.threadRepository.CreateThread(c.Request().Context(), thread); err != nil {
		return httpError(err)
	}

	if err := h.notifyService.Commented(c.Request().Context(), userID, parent); err != nil {
		h.log.Warn("recording comment notification", zap.Error(err))
	}
	h.notifyMentions(c.Request().Context(), userID, thread)

	return c.JSON(http.StatusCreated, thread)
}

// Repost creates a repost row for an existing thread. At most one
// repost may exist per (author, original).
func (h *ThreadHandler) Repost(c echo.Context) error {
	userID := getUserIDFromContext(c)
	originalID := c.Param("id")

	if _, err := h.threadRepository.GetThreadByID(c.Request().Context(), originalID); err != nil {
		return httpError(err)
	}

	if _, err := h.threadRepository.GetRepost(c.Request().Context(), userID, originalID); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Thread already reposted")
	}

	thread := &models.Thread{
		AuthorID:   userID,
		Kind:       models.ThreadKindRepost,
		Body:       models.RepostPlaceholderBody,
		RepostOfID: originalID,
	}
	if err := h.threadRepository.CreateThread(c.Request().Context(), thread); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, thread)
}

// GetThread returns a single annotated thread
func (h *ThreadHandler) GetThread(c echo.Context) error {
	item, err := h.feedService.Thread(c.Request().Context(), getUserIDFromContext(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"thread": item}})
}

// GetReplies lists a thread's replies, cursor- or offset-paginated
// depending on which parameter the caller supplies (never both).
func (h *ThreadHandler) GetReplies(c echo.Context) error {
	q := feed.CommentQuery{}
	q.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	if cursor := c.QueryParam("after"); cursor != "" {
		if c.QueryParam("page") != "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Supply either 'after' or 'page', not both")
		}
		after, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid cursor")
		}
		q.After = &after
	} else {
		q.Page, _ = strconv.Atoi(c.QueryParam("page"))
	}

	page, err := h.feedService.Comments(c.Request().Context(), getUserIDFromContext(c), c.Param("id"), q)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": page})
}

// GetUserThreads lists an author's threads under the privacy predicate
func (h *ThreadHandler) GetUserThreads(c echo.Context) error {
	authorID, err := parseUserID(c)
	if err != nil {
		return err
	}
	pageNum, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	page, err := h.feedService.AuthorThreads(c.Request().Context(), getUserIDFromContext(c), authorID, pageNum, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"threads": page.Items}, "meta": page.Pagination})
}

// ArchiveThread soft-hides a thread without removing the row
func (h *ThreadHandler) ArchiveThread(c echo.Context) error {
	userID := getUserIDFromContext(c)
	threadID := c.Param("id")

	thread, err := h.threadRepository.GetThreadByID(c.Request().Context(), threadID)
	if err != nil {
		return httpError(err)
	}
	if thread.AuthorID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to archive this thread")
	}

	var req models.ArchiveThreadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	if err := h.threadRepository.SetArchived(c.Request().Context(), threadID, req.Archived); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"archived": req.Archived}})
}

// DeleteThread hard-deletes a thread and releases its media object.
// Replies, likes and notifications referencing it are left behind;
// read paths drop what no longer resolves.
func (h *ThreadHandler) DeleteThread(c echo.Context) error {
	userID := getUserIDFromContext(c)
	threadID := c.Param("id")

	thread, err := h.threadRepository.GetThreadByID(c.Request().Context(), threadID)
	if err != nil {
		return httpError(err)
	}
	if thread.AuthorID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this thread")
	}

	if err := h.threadRepository.DeleteThread(c.Request().Context(), threadID); err != nil {
		return httpError(err)
	}

	if thread.Media != nil && h.mediaStore != nil {
		if err := h.mediaStore.Delete(c.Request().Context(), thread.Media.Key); err != nil {
			h.log.Warn("releasing media object", zap.String("key", thread.Media.Key), zap.Error(err))
		}
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *ThreadHandler) uploadMedia(c echo.Context) (*models.Media, error) {
	fileHeader, err := c.FormFile("media")
	if err != nil {
		return nil, nil // no media part
	}
	if h.mediaStore == nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Media storage is not configured")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	var mediaType string
	switch {
	case strings.HasPrefix(contentType, "image/"):
		mediaType = "image"
	case strings.HasPrefix(contentType, "video/"):
		mediaType = "video"
	default:
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Unsupported media content type")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid media file")
	}
	defer file.Close()

	key, err := h.mediaStore.Upload(c.Request().Context(), file, contentType)
	if err != nil {
		h.log.Error("uploading media", zap.Error(err))
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	url, err := h.mediaStore.AccessURL(key)
	if err != nil {
		h.log.Warn("signing media url", zap.String("key", key), zap.Error(err))
	}

	return &models.Media{Type: mediaType, Key: key, ContentType: contentType, URL: url}, nil
}

// extractEntities populates hashtags and resolved mention ids from the
// thread body.
func (h *ThreadHandler) extractEntities(thread *models.Thread) {
	thread.Hashtags = models.ExtractHashtags(thread.Body)

	usernames := models.ExtractMentionUsernames(thread.Body)
	if len(usernames) == 0 {
		return
	}
	users, err := h.userRepository.GetUsersByUsernames(usernames)
	if err != nil {
		h.log.Warn("resolving mentions", zap.Error(err))
		return
	}
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	thread.MentionIDs = ids
}

func (h *ThreadHandler) notifyMentions(ctx context.Context, actorID uint, thread *models.Thread) {
	for _, mentionedID := range thread.MentionIDs {
		if err := h.notifyService.Mentioned(ctx, actorID, mentionedID, thread.ID.Hex()); err != nil {
			h.log.Warn("recording mention notification", zap.Error(err))
		}
	}
}
