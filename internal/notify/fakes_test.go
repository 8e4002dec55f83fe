package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
)

type fakeUserRepo struct {
	users map[uint]*models.User

	// When set, AdjustFollowersCount fails with this error.
	adjustFollowersErr error
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
	u, ok := r.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	copy := *u
	return &copy, nil
}

func (r *fakeUserRepo) GetUserByEmail(email string) (*models.User, error) {
	return nil, apperr.NotFound("user not found")
}

func (r *fakeUserRepo) GetUserByUsername(username string) (*models.User, error) {
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
	return nil, nil
}

func (r *fakeUserRepo) GetPrivateUserIDs() ([]uint, error) {
	return nil, nil
}

func (r *fakeUserRepo) UpdateUser(user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) DeleteUser(id uint) error {
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) SearchUsers(query string) ([]models.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) AdjustFollowersCount(id uint, delta int) error {
	if r.adjustFollowersErr != nil {
		return r.adjustFollowersErr
	}
	if u, ok := r.users[id]; ok {
		u.FollowersCount += int64(delta)
	}
	return nil
}

func (r *fakeUserRepo) AdjustFollowingCount(id uint, delta int) error {
	if u, ok := r.users[id]; ok {
		u.FollowingCount += int64(delta)
	}
	return nil
}

type fakeFollowRepo struct {
	edges map[[2]uint]*models.Follow
}

func newFakeFollowRepo() *fakeFollowRepo {
	return &fakeFollowRepo{edges: make(map[[2]uint]*models.Follow)}
}

func (r *fakeFollowRepo) CreateFollow(follow *models.Follow) error {
	k := [2]uint{follow.FollowerID, follow.FollowingID}
	if _, ok := r.edges[k]; ok {
		return apperr.Conflict("follow relationship already exists")
	}
	r.edges[k] = follow
	return nil
}

func (r *fakeFollowRepo) GetFollow(followerID, followingID uint) (*models.Follow, error) {
	edge, ok := r.edges[[2]uint{followerID, followingID}]
	if !ok {
		return nil, apperr.NotFound("follow relationship not found")
	}
	copy := *edge
	return &copy, nil
}

func (r *fakeFollowRepo) UpdateStatus(followerID, followingID uint, from, to string) error {
	edge, ok := r.edges[[2]uint{followerID, followingID}]
	if !ok || edge.Status != from {
		return apperr.NotFound("follow relationship not found")
	}
	edge.Status = to
	return nil
}

func (r *fakeFollowRepo) DeleteFollow(followerID, followingID uint) error {
	k := [2]uint{followerID, followingID}
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
	return nil, nil
}

type fakeNotificationRepo struct {
	nextID        uint
	notifications []*models.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (r *fakeNotificationRepo) CreateNotification(notification *models.Notification) error {
	r.nextID++
	notification.ID = r.nextID
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	copy := *notification
	r.notifications = append(r.notifications, &copy)
	return nil
}

func (r *fakeNotificationRepo) SaveNotification(notification *models.Notification) error {
	for i, n := range r.notifications {
		if n.ID == notification.ID {
			copy := *notification
			r.notifications[i] = &copy
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func (r *fakeNotificationRepo) FindConsolidated(senderID, recipientID uint) (*models.Notification, error) {
	for _, n := range r.notifications {
		if n.SenderID != senderID || n.RecipientID != recipientID {
			continue
		}
		for _, t := range models.ConsolidatedTypes {
			if n.Type == t {
				copy := *n
				return &copy, nil
			}
		}
	}
	return nil, apperr.NotFound("notification not found")
}

func (r *fakeNotificationRepo) matchesType(n *models.Notification, types []string) bool {
	for _, t := range types {
		if n.Type == t {
			return true
		}
	}
	return false
}

func (r *fakeNotificationRepo) DeleteBetween(userA, userB uint, types []string) error {
	kept := r.notifications[:0]
	for _, n := range r.notifications {
		between := (n.SenderID == userA && n.RecipientID == userB) ||
			(n.SenderID == userB && n.RecipientID == userA)
		if between && r.matchesType(n, types) {
			continue
		}
		kept = append(kept, n)
	}
	r.notifications = kept
	return nil
}

func (r *fakeNotificationRepo) DeleteFromSender(senderID, recipientID uint, types []string) error {
	kept := r.notifications[:0]
	for _, n := range r.notifications {
		if n.SenderID == senderID && n.RecipientID == recipientID && r.matchesType(n, types) {
			continue
		}
		kept = append(kept, n)
	}
	r.notifications = kept
	return nil
}

func (r *fakeNotificationRepo) GetByRecipientID(recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	var out []models.Notification
	for _, n := range r.notifications {
		if n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) GetUnread(recipientID uint) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) GetUnreadCount(recipientID uint) (int64, error) {
	unread, _ := r.GetUnread(recipientID)
	return int64(len(unread)), nil
}

func (r *fakeNotificationRepo) MarkAsRead(notificationID, recipientID uint) error {
	for _, n := range r.notifications {
		if n.ID == notificationID && n.RecipientID == recipientID {
			n.IsRead = true
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func (r *fakeNotificationRepo) MarkAllAsRead(recipientID uint) error {
	for _, n := range r.notifications {
		if n.RecipientID == recipientID {
			n.IsRead = true
		}
	}
	return nil
}

// all returns notifications for a recipient, or every row when
// recipientID is 0.
func (r *fakeNotificationRepo) all(recipientID uint) []models.Notification {
	var out []models.Notification
	for _, n := range r.notifications {
		if recipientID == 0 || n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	return out
}

type pushedEvent struct {
	userID  uint
	name    string
	payload interface{}
}

type fakePusher struct {
	mu         sync.Mutex
	pushes     []pushedEvent
	broadcasts []pushedEvent
}

func (p *fakePusher) PushToUser(userID uint, event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, pushedEvent{userID: userID, name: event, payload: payload})
}

func (p *fakePusher) BroadcastPublic(event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = append(p.broadcasts, pushedEvent{name: event, payload: payload})
}

func (p *fakePusher) pushesTo(userID uint) []pushedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pushedEvent
	for _, e := range p.pushes {
		if e.userID == userID {
			out = append(out, e)
		}
	}
	return out
}
