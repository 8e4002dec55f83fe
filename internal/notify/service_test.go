package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
	"github.com/threadloom/backend/internal/realtime"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	users         *fakeUserRepo
	follows       *fakeFollowRepo
	notifications *fakeNotificationRepo
	pusher        *fakePusher
	svc           *Service
}

func newFixture(users ...*models.User) *fixture {
	f := &fixture{
		users:         newFakeUserRepo(users...),
		follows:       newFakeFollowRepo(),
		notifications: newFakeNotificationRepo(),
		pusher:        &fakePusher{},
	}
	f.svc = NewService(f.users, f.follows, f.notifications, f.pusher, zap.NewNop())
	return f
}

func publicUser(id uint, username string) *models.User {
	return &models.User{ID: id, Username: username, Email: username + "@example.com"}
}

func privateUser(id uint, username string) *models.User {
	u := publicUser(id, username)
	u.IsPrivate = true
	return u
}

// consolidatedRows returns the live follow-prompt rows for the pair.
func (f *fixture) consolidatedRows(senderID, recipientID uint) []models.Notification {
	var out []models.Notification
	for _, n := range f.notifications.all(recipientID) {
		if n.SenderID != senderID {
			continue
		}
		for _, t := range models.ConsolidatedTypes {
			if n.Type == t {
				out = append(out, n)
			}
		}
	}
	return out
}

func TestFollowPublicTarget(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "target"))

	edge, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStatusAccepted, edge.Status)

	actor, _ := f.users.GetUserByID(1)
	target, _ := f.users.GetUserByID(2)
	assert.Equal(t, int64(1), actor.FollowingCount)
	assert.Equal(t, int64(1), target.FollowersCount)

	rows := f.notifications.all(2)
	require.Len(t, rows, 1)
	assert.Equal(t, models.NotificationNewFollower, rows[0].Type)
	assert.Equal(t, uint(1), rows[0].SenderID)

	pushes := f.pusher.pushesTo(2)
	require.Len(t, pushes, 1)
	assert.Equal(t, realtime.EventNotification, pushes[0].name)
	payload, ok := pushes[0].payload.(PushedNotification)
	require.True(t, ok)
	assert.Equal(t, "actor", payload.Sender.Username)

	// Both identities' counts go out to everyone.
	assert.Len(t, f.pusher.broadcasts, 2)
}

func TestFollowPrivateTarget(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), privateUser(2, "target"))

	edge, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStatusPending, edge.Status)

	// No counter movement until acceptance.
	actor, _ := f.users.GetUserByID(1)
	target, _ := f.users.GetUserByID(2)
	assert.Equal(t, int64(0), actor.FollowingCount)
	assert.Equal(t, int64(0), target.FollowersCount)
	assert.Empty(t, f.pusher.broadcasts)

	rows := f.notifications.all(2)
	require.Len(t, rows, 1)
	assert.Equal(t, models.NotificationFollowRequest, rows[0].Type)
}

func TestFollowSelf(t *testing.T) {
	f := newFixture(publicUser(1, "actor"))
	_, err := f.svc.Follow(context.Background(), 1, 1)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestFollowUnknownTarget(t *testing.T) {
	f := newFixture(publicUser(1, "actor"))
	_, err := f.svc.Follow(context.Background(), 1, 42)
	assert.True(t, apperr.IsNotFound(err))
}

func TestFollowTwice(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "target"))
	_, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)

	_, err = f.svc.Follow(context.Background(), 1, 2)
	assert.True(t, apperr.IsConflict(err))

	// The failed second attempt must not duplicate the notification.
	assert.Len(t, f.consolidatedRows(1, 2), 1)
}

func TestFollowUpdatesStaleConsolidatedRowInPlace(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "target"))

	// A leftover follow prompt from an earlier cycle.
	stale := &models.Notification{Type: models.NotificationFollowRequest, SenderID: 1, RecipientID: 2, IsRead: true}
	require.NoError(t, f.notifications.CreateNotification(stale))

	_, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)

	rows := f.consolidatedRows(1, 2)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
	assert.Equal(t, models.NotificationNewFollower, rows[0].Type)
	assert.False(t, rows[0].IsRead)
}

func TestAcceptRequest(t *testing.T) {
	f := newFixture(publicUser(1, "requester"), privateUser(2, "owner"))
	_, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Accept(context.Background(), 2, 1))

	edge, err := f.follows.GetFollow(1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStatusAccepted, edge.Status)

	requester, _ := f.users.GetUserByID(1)
	owner, _ := f.users.GetUserByID(2)
	assert.Equal(t, int64(1), requester.FollowingCount)
	assert.Equal(t, int64(1), owner.FollowersCount)

	// The pending prompt is gone; the requester gets the acceptance.
	assert.Empty(t, f.consolidatedRows(1, 2))
	rows := f.notifications.all(1)
	require.Len(t, rows, 1)
	assert.Equal(t, models.NotificationFollowAccepted, rows[0].Type)
	assert.Equal(t, uint(2), rows[0].SenderID)
}

func TestAcceptWithoutPendingRequest(t *testing.T) {
	f := newFixture(publicUser(1, "requester"), publicUser(2, "owner"))

	err := f.svc.Accept(context.Background(), 2, 1)
	assert.True(t, apperr.IsNotFound(err))

	// An already-accepted edge is not re-acceptable either.
	_, err = f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)
	err = f.svc.Accept(context.Background(), 2, 1)
	assert.True(t, apperr.IsNotFound(err))
}

func TestAcceptTwiceCountsOnce(t *testing.T) {
	f := newFixture(publicUser(1, "requester"), privateUser(2, "owner"))
	_, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Accept(context.Background(), 2, 1))
	err = f.svc.Accept(context.Background(), 2, 1)
	assert.True(t, apperr.IsNotFound(err))

	requester, _ := f.users.GetUserByID(1)
	owner, _ := f.users.GetUserByID(2)
	assert.Equal(t, int64(1), requester.FollowingCount)
	assert.Equal(t, int64(1), owner.FollowersCount)
}

func TestAcceptRollsBackWhenCountersFail(t *testing.T) {
	f := newFixture(publicUser(1, "requester"), privateUser(2, "owner"))
	_, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)

	f.users.adjustFollowersErr = errors.New("db down")
	err = f.svc.Accept(context.Background(), 2, 1)
	require.Error(t, err)

	// The edge must not stay accepted while the counters never moved.
	edge, err := f.follows.GetFollow(1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStatusPending, edge.Status)

	requester, _ := f.users.GetUserByID(1)
	owner, _ := f.users.GetUserByID(2)
	assert.Equal(t, int64(0), requester.FollowingCount)
	assert.Equal(t, int64(0), owner.FollowersCount)

	// The requester must not be told the request went through.
	assert.Empty(t, f.notifications.all(1))
}

func TestFollowRollsBackEdgeWhenCountersFail(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "target"))
	f.users.adjustFollowersErr = errors.New("db down")

	_, err := f.svc.Follow(context.Background(), 1, 2)
	require.Error(t, err)

	_, err = f.follows.GetFollow(1, 2)
	assert.True(t, apperr.IsNotFound(err))

	actor, _ := f.users.GetUserByID(1)
	target, _ := f.users.GetUserByID(2)
	assert.Equal(t, int64(0), actor.FollowingCount)
	assert.Equal(t, int64(0), target.FollowersCount)
	assert.Empty(t, f.notifications.all(0))
}

func TestRejectRequest(t *testing.T) {
	f := newFixture(publicUser(1, "requester"), privateUser(2, "owner"))
	_, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Reject(context.Background(), 2, 1))

	// Edge and prompt are both gone, and the requester hears nothing.
	_, err = f.follows.GetFollow(1, 2)
	assert.True(t, apperr.IsNotFound(err))
	assert.Empty(t, f.notifications.all(0))
	assert.Empty(t, f.pusher.pushesTo(1))

	// A second reject has nothing to act on.
	err = f.svc.Reject(context.Background(), 2, 1)
	assert.True(t, apperr.IsNotFound(err))
}

func TestUnfollowResetsPair(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "target"))
	_, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Unfollow(context.Background(), 1, 2))

	actor, _ := f.users.GetUserByID(1)
	target, _ := f.users.GetUserByID(2)
	assert.Equal(t, int64(0), actor.FollowingCount)
	assert.Equal(t, int64(0), target.FollowersCount)

	// All follow notifications between the pair are wiped; the next
	// follow starts from a clean slate.
	assert.Empty(t, f.notifications.all(0))

	_, err = f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, f.consolidatedRows(1, 2), 1)
}

func TestUnfollowPendingDoesNotTouchCounters(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), privateUser(2, "target"))
	_, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Unfollow(context.Background(), 1, 2))

	actor, _ := f.users.GetUserByID(1)
	target, _ := f.users.GetUserByID(2)
	assert.Equal(t, int64(0), actor.FollowingCount)
	assert.Equal(t, int64(0), target.FollowersCount)
}

func TestUnfollowRestoresEdgeWhenCountersFail(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "target"))
	_, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)

	f.users.adjustFollowersErr = errors.New("db down")
	err = f.svc.Unfollow(context.Background(), 1, 2)
	require.Error(t, err)

	// The edge comes back so it still matches the untouched counters.
	edge, err := f.follows.GetFollow(1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStatusAccepted, edge.Status)

	actor, _ := f.users.GetUserByID(1)
	target, _ := f.users.GetUserByID(2)
	assert.Equal(t, int64(1), actor.FollowingCount)
	assert.Equal(t, int64(1), target.FollowersCount)
}

func TestUnfollowWithoutEdge(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "target"))
	err := f.svc.Unfollow(context.Background(), 1, 2)
	assert.True(t, apperr.IsNotFound(err))
}

func TestRemoveFollower(t *testing.T) {
	f := newFixture(publicUser(1, "follower"), publicUser(2, "owner"))
	_, err := f.svc.Follow(context.Background(), 1, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveFollower(context.Background(), 2, 1))

	_, err = f.follows.GetFollow(1, 2)
	assert.True(t, apperr.IsNotFound(err))

	follower, _ := f.users.GetUserByID(1)
	owner, _ := f.users.GetUserByID(2)
	assert.Equal(t, int64(0), follower.FollowingCount)
	assert.Equal(t, int64(0), owner.FollowersCount)
	assert.Empty(t, f.notifications.all(0))
}

func TestAtMostOneConsolidatedRowAcrossCycles(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "target"))

	for i := 0; i < 3; i++ {
		_, err := f.svc.Follow(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.Len(t, f.consolidatedRows(1, 2), 1)
		require.NoError(t, f.svc.Unfollow(context.Background(), 1, 2))
		assert.Empty(t, f.consolidatedRows(1, 2))
	}
}

func TestLiked(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "author"))
	thread := &models.Thread{ID: primitive.NewObjectID(), AuthorID: 2}

	require.NoError(t, f.svc.Liked(context.Background(), 1, thread))

	rows := f.notifications.all(2)
	require.Len(t, rows, 1)
	assert.Equal(t, models.NotificationLike, rows[0].Type)
	assert.Equal(t, thread.ID.Hex(), rows[0].ThreadID)
	assert.Len(t, f.pusher.pushesTo(2), 1)
}

func TestLikedOwnThreadSkipped(t *testing.T) {
	f := newFixture(publicUser(1, "author"))
	thread := &models.Thread{ID: primitive.NewObjectID(), AuthorID: 1}

	require.NoError(t, f.svc.Liked(context.Background(), 1, thread))
	assert.Empty(t, f.notifications.all(0))
}

func TestCommented(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "author"))
	parent := &models.Thread{ID: primitive.NewObjectID(), AuthorID: 2}

	require.NoError(t, f.svc.Commented(context.Background(), 1, parent))

	rows := f.notifications.all(2)
	require.Len(t, rows, 1)
	assert.Equal(t, models.NotificationComment, rows[0].Type)
}

func TestMentionedSelfSkipped(t *testing.T) {
	f := newFixture(publicUser(1, "actor"))
	require.NoError(t, f.svc.Mentioned(context.Background(), 1, 1, "abc"))
	assert.Empty(t, f.notifications.all(0))
}

func TestMentioned(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "mentioned"))
	require.NoError(t, f.svc.Mentioned(context.Background(), 1, 2, "abc"))

	rows := f.notifications.all(2)
	require.Len(t, rows, 1)
	assert.Equal(t, models.NotificationNewThread, rows[0].Type)
	assert.Equal(t, "abc", rows[0].ThreadID)
}

func TestEngagementNotificationsNeverConsolidate(t *testing.T) {
	f := newFixture(publicUser(1, "actor"), publicUser(2, "author"))
	thread := &models.Thread{ID: primitive.NewObjectID(), AuthorID: 2}

	require.NoError(t, f.svc.Liked(context.Background(), 1, thread))
	require.NoError(t, f.svc.Commented(context.Background(), 1, thread))
	require.NoError(t, f.svc.Commented(context.Background(), 1, thread))

	assert.Len(t, f.notifications.all(2), 3)
}
