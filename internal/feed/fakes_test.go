package feed

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
	"github.com/threadloom/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repository fakes mirroring the store-level semantics the
// service depends on: filter predicates, sort order and error kinds.

type fakeUserRepo struct {
	users map[uint]*models.User

	// When set, GetUserByID fails with this error.
	getByIDErr error
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uint]*models.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) CreateUser(user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetUserByID(id uint) (*models.User, error) {
	if r.getByIDErr != nil {
		return nil, r.getByIDErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	copy := *u
	return &copy, nil
}

func (r *fakeUserRepo) GetUserByEmail(email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (r *fakeUserRepo) GetUserByUsername(username string) (*models.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (r *fakeUserRepo) GetUsersByIDs(ids []uint) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetUsersByUsernames(usernames []string) ([]models.User, error) {
	var out []models.User
	for _, name := range usernames {
		for _, u := range r.users {
			if u.Username == name {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetPrivateUserIDs() ([]uint, error) {
	var ids []uint
	for id, u := range r.users {
		if u.IsPrivate {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fakeUserRepo) UpdateUser(user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) DeleteUser(id uint) error {
	if _, ok := r.users[id]; !ok {
		return apperr.NotFound("user not found")
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) SearchUsers(query string) ([]models.User, error) {
	var out []models.User
	for _, u := range r.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(query)) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) AdjustFollowersCount(id uint, delta int) error {
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	u.FollowersCount += int64(delta)
	return nil
}

func (r *fakeUserRepo) AdjustFollowingCount(id uint, delta int) error {
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	u.FollowingCount += int64(delta)
	return nil
}

type fakeFollowRepo struct {
	edges map[[2]uint]*models.Follow
}

func newFakeFollowRepo() *fakeFollowRepo {
	return &fakeFollowRepo{edges: make(map[[2]uint]*models.Follow)}
}

func (r *fakeFollowRepo) key(followerID, followingID uint) [2]uint {
	return [2]uint{followerID, followingID}
}

func (r *fakeFollowRepo) CreateFollow(follow *models.Follow) error {
	k := r.key(follow.FollowerID, follow.FollowingID)
	if _, ok := r.edges[k]; ok {
		return apperr.Conflict("follow relationship already exists")
	}
	r.edges[k] = follow
	return nil
}

func (r *fakeFollowRepo) GetFollow(followerID, followingID uint) (*models.Follow, error) {
	edge, ok := r.edges[r.key(followerID, followingID)]
	if !ok {
		return nil, apperr.NotFound("follow relationship not found")
	}
	copy := *edge
	return &copy, nil
}

func (r *fakeFollowRepo) UpdateStatus(followerID, followingID uint, from, to string) error {
	edge, ok := r.edges[r.key(followerID, followingID)]
	if !ok || edge.Status != from {
		return apperr.NotFound("follow relationship not found")
	}
	edge.Status = to
	return nil
}

func (r *fakeFollowRepo) DeleteFollow(followerID, followingID uint) error {
	k := r.key(followerID, followingID)
	if _, ok := r.edges[k]; !ok {
		return apperr.NotFound("follow relationship not found")
	}
	delete(r.edges, k)
	return nil
}

func (r *fakeFollowRepo) GetAcceptedFollowingIDs(userID uint) ([]uint, error) {
	var ids []uint
	for k, edge := range r.edges {
		if k[0] == userID && edge.Status == models.FollowStatusAccepted {
			ids = append(ids, k[1])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fakeFollowRepo) GetFollowers(userID uint) ([]models.User, error) {
	return nil, nil
}

func (r *fakeFollowRepo) GetFollowing(userID uint) ([]models.User, error) {
	return nil, nil
}

func (r *fakeFollowRepo) GetPendingRequests(userID uint) ([]models.Follow, error) {
	var out []models.Follow
	for k, edge := range r.edges {
		if k[1] == userID && edge.Status == models.FollowStatusPending {
			out = append(out, *edge)
		}
	}
	return out, nil
}

type fakeThreadRepo struct {
	threads []*models.Thread
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{}
}

func (r *fakeThreadRepo) CreateThread(ctx context.Context, thread *models.Thread) error {
	if thread.RepostOfID != "" {
		for _, existing := range r.threads {
			if existing.AuthorID == thread.AuthorID && existing.RepostOfID == thread.RepostOfID {
				return apperr.Conflict("thread already reposted")
			}
		}
	}
	if thread.ID.IsZero() {
		thread.ID = primitive.NewObjectID()
	}
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = time.Now()
	}
	thread.UpdatedAt = thread.CreatedAt
	r.threads = append(r.threads, thread)
	return nil
}

func (r *fakeThreadRepo) GetThreadByID(ctx context.Context, id string) (*models.Thread, error) {
	for _, t := range r.threads {
		if t.ID.Hex() == id {
			copy := *t
			return &copy, nil
		}
	}
	return nil, apperr.NotFound("thread not found")
}

func (r *fakeThreadRepo) matches(t *models.Thread, f repositories.ThreadFilter) bool {
	if !f.IncludeArchived && t.IsArchived {
		return false
	}
	if f.TopLevelOnly && t.Kind == models.ThreadKindReply {
		return false
	}
	if f.AuthorIDs != nil {
		found := false
		for _, id := range f.AuthorIDs {
			if t.AuthorID == id {
				found = true
				break
			}
		}
		return found
	}
	for _, id := range f.ExcludeAuthorIDs {
		if t.AuthorID == id {
			return false
		}
	}
	return true
}

func (r *fakeThreadRepo) filtered(f repositories.ThreadFilter) []models.Thread {
	var out []models.Thread
	for _, t := range r.threads {
		if r.matches(t, f) {
			out = append(out, *t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out
}

func page(threads []models.Thread, skip, limit int64) []models.Thread {
	if skip > int64(len(threads)) {
		skip = int64(len(threads))
	}
	end := skip + limit
	if end > int64(len(threads)) {
		end = int64(len(threads))
	}
	return threads[skip:end]
}

func (r *fakeThreadRepo) FindFeed(ctx context.Context, f repositories.ThreadFilter, skip, limit int64) ([]models.Thread, error) {
	return page(r.filtered(f), skip, limit), nil
}

func (r *fakeThreadRepo) CountFeed(ctx context.Context, f repositories.ThreadFilter) (int64, error) {
	return int64(len(r.filtered(f))), nil
}

func (r *fakeThreadRepo) FindByAuthor(ctx context.Context, authorID uint, includeArchived bool, skip, limit int64) ([]models.Thread, error) {
	f := repositories.ThreadFilter{AuthorIDs: []uint{authorID}, TopLevelOnly: true, IncludeArchived: includeArchived}
	return page(r.filtered(f), skip, limit), nil
}

func (r *fakeThreadRepo) CountByAuthor(ctx context.Context, authorID uint, includeArchived bool) (int64, error) {
	f := repositories.ThreadFilter{AuthorIDs: []uint{authorID}, TopLevelOnly: true, IncludeArchived: includeArchived}
	return int64(len(r.filtered(f))), nil
}

func (r *fakeThreadRepo) FindByIDs(ctx context.Context, ids []string) ([]models.Thread, error) {
	var out []models.Thread
	for _, id := range ids {
		for _, t := range r.threads {
			if t.ID.Hex() == id {
				out = append(out, *t)
			}
		}
	}
	return out, nil
}

func (r *fakeThreadRepo) FindReplies(ctx context.Context, parentID string, after *time.Time, skip, limit int64) ([]models.Thread, error) {
	var out []models.Thread
	for _, t := range r.threads {
		if t.ParentID != parentID {
			continue
		}
		if after != nil && !t.CreatedAt.After(*after) {
			continue
		}
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	if after != nil {
		skip = 0
	}
	return page(out, skip, limit), nil
}

func (r *fakeThreadRepo) CountReplies(ctx context.Context, parentID string) (int64, error) {
	var count int64
	for _, t := range r.threads {
		if t.ParentID == parentID {
			count++
		}
	}
	return count, nil
}

func (r *fakeThreadRepo) CountReposts(ctx context.Context, originalID string) (int64, error) {
	var count int64
	for _, t := range r.threads {
		if t.RepostOfID == originalID {
			count++
		}
	}
	return count, nil
}

func (r *fakeThreadRepo) GetRepost(ctx context.Context, authorID uint, originalID string) (*models.Thread, error) {
	for _, t := range r.threads {
		if t.AuthorID == authorID && t.RepostOfID == originalID {
			copy := *t
			return &copy, nil
		}
	}
	return nil, apperr.NotFound("repost not found")
}

func (r *fakeThreadRepo) SetArchived(ctx context.Context, id string, archived bool) error {
	for _, t := range r.threads {
		if t.ID.Hex() == id {
			t.IsArchived = archived
			return nil
		}
	}
	return apperr.NotFound("thread not found")
}

func (r *fakeThreadRepo) DeleteThread(ctx context.Context, id string) error {
	for i, t := range r.threads {
		if t.ID.Hex() == id {
			r.threads = append(r.threads[:i], r.threads[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("thread not found")
}

type fakeLikeRepo struct {
	likes map[string]map[uint]bool // threadID -> userIDs
}

func newFakeLikeRepo() *fakeLikeRepo {
	return &fakeLikeRepo{likes: make(map[string]map[uint]bool)}
}

func (r *fakeLikeRepo) CreateLike(like *models.Like) error {
	if r.likes[like.ThreadID] == nil {
		r.likes[like.ThreadID] = make(map[uint]bool)
	}
	if r.likes[like.ThreadID][like.UserID] {
		return apperr.Conflict("thread already liked")
	}
	r.likes[like.ThreadID][like.UserID] = true
	return nil
}

func (r *fakeLikeRepo) DeleteLike(userID uint, threadID string) error {
	if !r.likes[threadID][userID] {
		return apperr.NotFound("like not found")
	}
	delete(r.likes[threadID], userID)
	return nil
}

func (r *fakeLikeRepo) HasUserLiked(userID uint, threadID string) (bool, error) {
	return r.likes[threadID][userID], nil
}

func (r *fakeLikeRepo) GetLikesCount(threadID string) (int64, error) {
	return int64(len(r.likes[threadID])), nil
}

func (r *fakeLikeRepo) GetLikedMap(userID uint, threadIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range threadIDs {
		if r.likes[id][userID] {
			out[id] = true
		}
	}
	return out, nil
}

type fakeBookmarkRepo struct {
	bookmarks []models.Bookmark
}

func newFakeBookmarkRepo() *fakeBookmarkRepo {
	return &fakeBookmarkRepo{}
}

func (r *fakeBookmarkRepo) SaveBookmark(bookmark *models.Bookmark) error {
	for _, b := range r.bookmarks {
		if b.UserID == bookmark.UserID && b.ThreadID == bookmark.ThreadID {
			return apperr.Conflict("thread already bookmarked")
		}
	}
	if bookmark.CreatedAt.IsZero() {
		bookmark.CreatedAt = time.Now()
	}
	r.bookmarks = append(r.bookmarks, *bookmark)
	return nil
}

func (r *fakeBookmarkRepo) RemoveBookmark(userID uint, threadID string) error {
	for i, b := range r.bookmarks {
		if b.UserID == userID && b.ThreadID == threadID {
			r.bookmarks = append(r.bookmarks[:i], r.bookmarks[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("bookmark not found")
}

func (r *fakeBookmarkRepo) IsBookmarked(userID uint, threadID string) (bool, error) {
	for _, b := range r.bookmarks {
		if b.UserID == userID && b.ThreadID == threadID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBookmarkRepo) GetBookmarksByUser(userID uint) ([]models.Bookmark, error) {
	var out []models.Bookmark
	for _, b := range r.bookmarks {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeBookmarkRepo) GetBookmarkedMap(userID uint, threadIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range threadIDs {
		bookmarked, _ := r.IsBookmarked(userID, id)
		if bookmarked {
			out[id] = true
		}
	}
	return out, nil
}
