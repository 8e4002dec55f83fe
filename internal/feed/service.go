// Package feed implements the visibility engine: given a viewer
// (possibly anonymous) and a mode, it computes the filtered, paginated,
// annotated set of threads that viewer is authorized to see.
package feed

import (
	"context"
	"math"
	"time"

	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
	"github.com/threadloom/backend/internal/repositories"
	"go.uber.org/zap"
)

// Feed modes
const (
	ModeFollowing = "following"
	ModeDiscover  = "discover"
)

// MediaURLSigner re-derives a time-limited access URL from a stable
// storage key. Stored URLs expire; every read path signs afresh.
type MediaURLSigner interface {
	AccessURL(key string) (string, error)
}

// Permissions are derived purely from the (viewer, author) relationship
type Permissions struct {
	IsOwner      bool   `json:"is_owner"`
	IsFollowing  bool   `json:"is_following"`
	FollowStatus string `json:"follow_status,omitempty"`
	CanFollow    bool   `json:"can_follow"`
	CanEdit      bool   `json:"can_edit"`
	CanDelete    bool   `json:"can_delete"`
	CanRepost    bool   `json:"can_repost"`
}

// Item is a thread annotated with author info and viewer-specific flags
type Item struct {
	models.Thread
	Author       models.UserCompact `json:"author"`
	LikeCount    int64              `json:"like_count"`
	RepostCount  int64              `json:"repost_count"`
	ReplyCount   int64              `json:"reply_count"`
	IsLiked      bool               `json:"is_liked"`
	IsReposted   bool               `json:"is_reposted"`
	IsBookmarked bool               `json:"is_bookmarked"`
	Permissions  Permissions        `json:"permissions"`
}

// Pagination describes an offset-paginated result
type Pagination struct {
	CurrentPage     int   `json:"currentPage"`
	TotalPages      int   `json:"totalPages"`
	TotalItems      int64 `json:"totalItems"`
	ItemsPerPage    int   `json:"itemsPerPage"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

// Page is one page of annotated feed items
type Page struct {
	Items      []Item     `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// CommentQuery selects either cursor paging (After set) or offset paging
// (Page set), never both.
type CommentQuery struct {
	After *time.Time
	Page  int
	Limit int
}

// CommentPage is one slice of a reply listing. HasMore approximates by
// "returned count equals the requested limit"; the check is deliberately
// not exact because exactness would change client-visible paging.
type CommentPage struct {
	Items   []Item     `json:"items"`
	HasMore bool       `json:"hasMore"`
	Next    *time.Time `json:"next,omitempty"`
}

// Service computes feeds, thread views and reply listings
type Service struct {
	threads   repositories.ThreadRepository
	users     repositories.UserRepository
	follows   repositories.FollowRepository
	likes     repositories.LikeRepository
	bookmarks repositories.BookmarkRepository
	signer    MediaURLSigner
	log       *zap.Logger
}

// NewService creates a feed Service. signer may be nil when media
// storage is not configured.
func NewService(
	threads repositories.ThreadRepository,
	users repositories.UserRepository,
	follows repositories.FollowRepository,
	likes repositories.LikeRepository,
	bookmarks repositories.BookmarkRepository,
	signer MediaURLSigner,
	log *zap.Logger,
) *Service {
	return &Service{
		threads:   threads,
		users:     users,
		follows:   follows,
		likes:     likes,
		bookmarks: bookmarks,
		signer:    signer,
		log:       log,
	}
}

// Feed returns the ordered, paginated, annotated threads visible to the
// viewer in the given mode. viewerID 0 means anonymous; an unknown
// viewer id is treated as anonymous.
func (s *Service) Feed(ctx context.Context, viewerID uint, mode string, page, limit int) (*Page, error) {
	page, limit = normalizePage(page, limit)
	viewerID, err := s.resolveViewer(viewerID)
	if err != nil {
		return nil, err
	}

	filter, err := s.buildFilter(viewerID, mode)
	if err != nil {
		return nil, err
	}

	// Total and page come from the identical predicate.
	total, err := s.threads.CountFeed(ctx, *filter)
	if err != nil {
		return nil, err
	}
	threads, err := s.threads.FindFeed(ctx, *filter, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, err
	}

	items, err := s.annotate(ctx, viewerID, threads)
	if err != nil {
		return nil, err
	}

	return &Page{Items: items, Pagination: paginate(page, limit, total)}, nil
}

func (s *Service) buildFilter(viewerID uint, mode string) (*repositories.ThreadFilter, error) {
	switch mode {
	case ModeFollowing:
		if viewerID == 0 {
			return nil, apperr.Unauthorized("following feed requires authentication")
		}
		followingIDs, err := s.follows.GetAcceptedFollowingIDs(viewerID)
		if err != nil {
			return nil, err
		}
		if followingIDs == nil {
			followingIDs = []uint{}
		}
		return &repositories.ThreadFilter{AuthorIDs: followingIDs, TopLevelOnly: true}, nil

	case ModeDiscover, "":
		privateIDs, err := s.users.GetPrivateUserIDs()
		if err != nil {
			return nil, err
		}
		visible := make(map[uint]bool)
		if viewerID != 0 {
			followingIDs, err := s.follows.GetAcceptedFollowingIDs(viewerID)
			if err != nil {
				return nil, err
			}
			for _, id := range followingIDs {
				visible[id] = true
			}
			visible[viewerID] = true
		}
		excluded := make([]uint, 0, len(privateIDs))
		for _, id := range privateIDs {
			if !visible[id] {
				excluded = append(excluded, id)
			}
		}
		return &repositories.ThreadFilter{ExcludeAuthorIDs: excluded, TopLevelOnly: true}, nil

	default:
		return nil, apperr.BadRequest("unknown feed mode")
	}
}

// Thread returns a single annotated thread, applying the same privacy
// predicate as the feed.
func (s *Service) Thread(ctx context.Context, viewerID uint, threadID string) (*Item, error) {
	viewerID, err := s.resolveViewer(viewerID)
	if err != nil {
		return nil, err
	}
	thread, err := s.threads.GetThreadByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.IsArchived && thread.AuthorID != viewerID {
		return nil, apperr.NotFound("thread not found")
	}

	visible, err := s.canViewAuthor(viewerID, thread.AuthorID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, apperr.NotFound("thread not found")
	}

	items, err := s.annotate(ctx, viewerID, []models.Thread{*thread})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("thread not found")
	}
	return &items[0], nil
}

// AuthorThreads lists an author's top-level threads under the privacy
// predicate. The author sees their own archived threads.
func (s *Service) AuthorThreads(ctx context.Context, viewerID, authorID uint, page, limit int) (*Page, error) {
	page, limit = normalizePage(page, limit)
	viewerID, err := s.resolveViewer(viewerID)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetUserByID(authorID); err != nil {
		return nil, err
	}
	visible, err := s.canViewAuthor(viewerID, authorID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return &Page{Items: []Item{}, Pagination: paginate(page, limit, 0)}, nil
	}

	includeArchived := viewerID == authorID
	total, err := s.threads.CountByAuthor(ctx, authorID, includeArchived)
	if err != nil {
		return nil, err
	}
	threads, err := s.threads.FindByAuthor(ctx, authorID, includeArchived, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, err
	}

	items, err := s.annotate(ctx, viewerID, threads)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Pagination: paginate(page, limit, total)}, nil
}

// Comments lists a thread's replies in ascending chronological order,
// cursor- or offset-paginated. The parent is subject to the same
// privacy predicate as a single-thread read.
func (s *Service) Comments(ctx context.Context, viewerID uint, threadID string, q CommentQuery) (*CommentPage, error) {
	viewerID, err := s.resolveViewer(viewerID)
	if err != nil {
		return nil, err
	}
	if q.Limit < 1 || q.Limit > 50 {
		q.Limit = 20
	}
	if q.Page < 1 {
		q.Page = 1
	}

	parent, err := s.threads.GetThreadByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if parent.IsArchived && parent.AuthorID != viewerID {
		return nil, apperr.NotFound("thread not found")
	}
	visible, err := s.canViewAuthor(viewerID, parent.AuthorID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, apperr.NotFound("thread not found")
	}

	replies, err := s.threads.FindReplies(ctx, threadID, q.After, int64((q.Page-1)*q.Limit), int64(q.Limit))
	if err != nil {
		return nil, err
	}

	items, err := s.annotate(ctx, viewerID, replies)
	if err != nil {
		return nil, err
	}

	page := &CommentPage{Items: items, HasMore: len(replies) == q.Limit}
	if len(replies) > 0 {
		last := replies[len(replies)-1].CreatedAt
		page.Next = &last
	}
	return page, nil
}

// Bookmarks lists the viewer's bookmarked threads in bookmark order.
func (s *Service) Bookmarks(ctx context.Context, viewerID uint, page, limit int) (*Page, error) {
	if viewerID == 0 {
		return nil, apperr.Unauthorized("authentication required")
	}
	page, limit = normalizePage(page, limit)

	bookmarks, err := s.bookmarks.GetBookmarksByUser(viewerID)
	if err != nil {
		return nil, err
	}
	total := int64(len(bookmarks))

	start := (page - 1) * limit
	if start > len(bookmarks) {
		start = len(bookmarks)
	}
	end := start + limit
	if end > len(bookmarks) {
		end = len(bookmarks)
	}
	pageBookmarks := bookmarks[start:end]

	ids := make([]string, len(pageBookmarks))
	for i, b := range pageBookmarks {
		ids[i] = b.ThreadID
	}
	threads, err := s.threads.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Thread, len(threads))
	for _, t := range threads {
		byID[t.ID.Hex()] = t
	}
	ordered := make([]models.Thread, 0, len(pageBookmarks))
	for _, b := range pageBookmarks {
		if t, ok := byID[b.ThreadID]; ok {
			ordered = append(ordered, t)
		}
	}

	items, err := s.annotate(ctx, viewerID, ordered)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Pagination: paginate(page, limit, total)}, nil
}

// annotate enriches threads with author info, fresh counts and
// viewer-specific flags. Items whose populated repost reference or
// author no longer resolves are dropped.
func (s *Service) annotate(ctx context.Context, viewerID uint, threads []models.Thread) ([]Item, error) {
	items := make([]Item, 0, len(threads))
	if len(threads) == 0 {
		return items, nil
	}

	authorIDSet := make(map[uint]bool)
	repostIDs := make([]string, 0)
	threadIDs := make([]string, 0, len(threads))
	for _, t := range threads {
		authorIDSet[t.AuthorID] = true
		threadIDs = append(threadIDs, t.ID.Hex())
		if t.RepostOfID != "" {
			repostIDs = append(repostIDs, t.RepostOfID)
		}
	}

	authorIDs := make([]uint, 0, len(authorIDSet))
	for id := range authorIDSet {
		authorIDs = append(authorIDs, id)
	}
	authors, err := s.users.GetUsersByIDs(authorIDs)
	if err != nil {
		return nil, err
	}
	authorMap := make(map[uint]models.UserCompact, len(authors))
	for _, u := range authors {
		authorMap[u.ID] = u.ToCompact()
	}

	originals := make(map[string]bool)
	if len(repostIDs) > 0 {
		resolved, err := s.threads.FindByIDs(ctx, repostIDs)
		if err != nil {
			return nil, err
		}
		for _, t := range resolved {
			originals[t.ID.Hex()] = true
		}
	}

	likedMap := map[string]bool{}
	bookmarkedMap := map[string]bool{}
	if viewerID != 0 {
		if likedMap, err = s.likes.GetLikedMap(viewerID, threadIDs); err != nil {
			return nil, err
		}
		if bookmarkedMap, err = s.bookmarks.GetBookmarkedMap(viewerID, threadIDs); err != nil {
			return nil, err
		}
	}

	followStatus := make(map[uint]string)
	if viewerID != 0 {
		for id := range authorIDSet {
			if id == viewerID {
				continue
			}
			edge, err := s.follows.GetFollow(viewerID, id)
			if err != nil {
				if apperr.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			followStatus[id] = edge.Status
		}
	}

	for _, t := range threads {
		author, ok := authorMap[t.AuthorID]
		if !ok {
			// Author record gone (hard-deleted account); drop rather
			// than render with nulls.
			continue
		}
		if t.RepostOfID != "" && !originals[t.RepostOfID] {
			continue
		}

		id := t.ID.Hex()
		likeCount, err := s.likes.GetLikesCount(id)
		if err != nil {
			return nil, err
		}
		repostCount, err := s.threads.CountReposts(ctx, id)
		if err != nil {
			return nil, err
		}
		replyCount, err := s.threads.CountReplies(ctx, id)
		if err != nil {
			return nil, err
		}

		isReposted := false
		if viewerID != 0 {
			if _, err := s.threads.GetRepost(ctx, viewerID, id); err == nil {
				isReposted = true
			} else if !apperr.IsNotFound(err) {
				return nil, err
			}
		}

		s.signMedia(&t)

		isOwner := viewerID != 0 && viewerID == t.AuthorID
		status := followStatus[t.AuthorID]
		isFollowing := status == models.FollowStatusAccepted

		items = append(items, Item{
			Thread:       t,
			Author:       author,
			LikeCount:    likeCount,
			RepostCount:  repostCount,
			ReplyCount:   replyCount,
			IsLiked:      likedMap[id],
			IsReposted:   isReposted,
			IsBookmarked: bookmarkedMap[id],
			Permissions: Permissions{
				IsOwner:      isOwner,
				IsFollowing:  isFollowing,
				FollowStatus: status,
				CanFollow:    !isOwner && !isFollowing,
				CanEdit:      isOwner,
				CanDelete:    isOwner,
				CanRepost:    !isReposted,
			},
		})
	}
	return items, nil
}

func (s *Service) signMedia(t *models.Thread) {
	if t.Media == nil || s.signer == nil {
		return
	}
	url, err := s.signer.AccessURL(t.Media.Key)
	if err != nil {
		s.log.Warn("signing media url", zap.String("key", t.Media.Key), zap.Error(err))
		return
	}
	t.Media.URL = url
}

// resolveViewer maps unknown viewer ids to anonymous for read paths.
// Only a missing identity downgrades; storage failures propagate.
func (s *Service) resolveViewer(viewerID uint) (uint, error) {
	if viewerID == 0 {
		return 0, nil
	}
	if _, err := s.users.GetUserByID(viewerID); err != nil {
		if apperr.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return viewerID, nil
}

func (s *Service) canViewAuthor(viewerID, authorID uint) (bool, error) {
	if viewerID == authorID && viewerID != 0 {
		return true, nil
	}
	author, err := s.users.GetUserByID(authorID)
	if err != nil {
		return false, err
	}
	if !author.IsPrivate {
		return true, nil
	}
	if viewerID == 0 {
		return false, nil
	}
	edge, err := s.follows.GetFollow(viewerID, authorID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return edge.Status == models.FollowStatusAccepted, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}
	return page, limit
}

func paginate(page, limit int, total int64) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{
		CurrentPage:     page,
		TotalPages:      totalPages,
		TotalItems:      total,
		ItemsPerPage:    limit,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}
