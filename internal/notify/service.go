// Package notify implements the notification consolidation engine: it
// translates follow-state transitions and engagement events into
// notification-store mutations and best-effort pushes, enforcing
// at-most-one live follow notification per (sender, recipient) pair.
package notify

import (
	"context"
	"time"

	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
	"github.com/threadloom/backend/internal/realtime"
	"github.com/threadloom/backend/internal/repositories"
	"go.uber.org/zap"
)

// Pusher delivers events to live connections. Neither method guarantees
// delivery; failures never propagate to the caller.
type Pusher interface {
	PushToUser(userID uint, event string, payload interface{})
	BroadcastPublic(event string, payload interface{})
}

type followEvent string

const (
	followRequested followEvent = "follow_requested" // new edge toward a private target
	followerGained  followEvent = "follower_gained"  // new edge toward a public target
	requestApproved followEvent = "request_approved"
	requestRejected followEvent = "request_rejected"
	pairSevered     followEvent = "pair_severed" // unfollow or follower removal
)

type notifAction int

const (
	actionInsert notifAction = iota
	actionUpdateInPlace
	actionDelete
	actionDeleteThenInsert
)

// followTransitions maps (event, live consolidated row present) to the
// mutation applied to the follow-notification store. Index 0 is the
// absent case, index 1 the present case.
var followTransitions = map[followEvent][2]notifAction{
	followRequested: {actionInsert, actionUpdateInPlace},
	followerGained:  {actionInsert, actionUpdateInPlace},
	requestApproved: {actionDeleteThenInsert, actionDeleteThenInsert},
	requestRejected: {actionDelete, actionDelete},
	pairSevered:     {actionDelete, actionDelete},
}

// PushedNotification is the payload delivered to a private connection,
// with the sender resolved for display.
type PushedNotification struct {
	models.Notification
	Sender models.UserCompact `json:"sender"`
}

// Service applies follow-state transitions and engagement events.
type Service struct {
	users         repositories.UserRepository
	follows       repositories.FollowRepository
	notifications repositories.NotificationRepository
	pusher        Pusher
	log           *zap.Logger
}

// NewService creates a notification Service.
func NewService(
	users repositories.UserRepository,
	follows repositories.FollowRepository,
	notifications repositories.NotificationRepository,
	pusher Pusher,
	log *zap.Logger,
) *Service {
	return &Service{
		users:         users,
		follows:       follows,
		notifications: notifications,
		pusher:        pusher,
		log:           log,
	}
}

// Follow handles actor requesting to follow target. The resulting edge
// status is decided once from the target's privacy flag before any
// notification logic runs.
func (s *Service) Follow(ctx context.Context, actorID, targetID uint) (*models.Follow, error) {
	if actorID == targetID {
		return nil, apperr.BadRequest("cannot follow yourself")
	}
	target, err := s.users.GetUserByID(targetID)
	if err != nil {
		return nil, err
	}

	status := models.FollowStatusAccepted
	event := followerGained
	if target.IsPrivate {
		status = models.FollowStatusPending
		event = followRequested
	}

	edge := &models.Follow{FollowerID: actorID, FollowingID: targetID, Status: status}
	if err := s.follows.CreateFollow(edge); err != nil {
		return nil, err
	}

	if status == models.FollowStatusAccepted {
		if err := s.bumpCounters(actorID, targetID, 1); err != nil {
			// Edge and counters are one unit; undo the edge so neither
			// exists without the other.
			if derr := s.follows.DeleteFollow(actorID, targetID); derr != nil {
				s.log.Error("rolling back follow edge", zap.Error(derr))
			}
			return nil, err
		}
		s.broadcastStats(actorID, targetID)
	}

	notifType := models.NotificationNewFollower
	if status == models.FollowStatusPending {
		notifType = models.NotificationFollowRequest
	}
	if err := s.applyFollowTransition(event, actorID, targetID, notifType); err != nil {
		return nil, err
	}

	return edge, nil
}

// Accept handles owner accepting requester's pending follow request.
// The pending check is part of the update predicate, so two concurrent
// accepts of the same request cannot both apply.
func (s *Service) Accept(ctx context.Context, ownerID, requesterID uint) error {
	err := s.follows.UpdateStatus(requesterID, ownerID, models.FollowStatusPending, models.FollowStatusAccepted)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.NotFound("no pending follow request")
		}
		return err
	}
	if err := s.bumpCounters(requesterID, ownerID, 1); err != nil {
		// Edge and counters are one unit; put the edge back to pending
		// so neither reflects the acceptance.
		if rerr := s.follows.UpdateStatus(requesterID, ownerID, models.FollowStatusAccepted, models.FollowStatusPending); rerr != nil {
			s.log.Error("rolling back follow acceptance", zap.Error(rerr))
		}
		return err
	}
	s.broadcastStats(requesterID, ownerID)

	// The pending-request prompt is stale; the requester gets a fresh
	// acceptance notification instead.
	return s.applyFollowTransition(requestApproved, requesterID, ownerID, models.NotificationFollowAccepted)
}

// Reject handles owner rejecting requester's pending follow request.
// Rejection is destructive and silent: the edge and any follow
// notification are deleted, nothing new is created.
func (s *Service) Reject(ctx context.Context, ownerID, requesterID uint) error {
	edge, err := s.follows.GetFollow(requesterID, ownerID)
	if err != nil {
		return err
	}
	if edge.Status != models.FollowStatusPending {
		return apperr.NotFound("no pending follow request")
	}

	if err := s.follows.DeleteFollow(requesterID, ownerID); err != nil {
		return err
	}
	return s.applyFollowTransition(requestRejected, requesterID, ownerID, "")
}

// Unfollow handles actor unfollowing target.
func (s *Service) Unfollow(ctx context.Context, actorID, targetID uint) error {
	return s.severEdge(actorID, targetID)
}

// RemoveFollower handles owner forcibly removing one of their followers.
func (s *Service) RemoveFollower(ctx context.Context, ownerID, followerID uint) error {
	return s.severEdge(followerID, ownerID)
}

func (s *Service) severEdge(followerID, followingID uint) error {
	edge, err := s.follows.GetFollow(followerID, followingID)
	if err != nil {
		return err
	}
	if err := s.follows.DeleteFollow(followerID, followingID); err != nil {
		return err
	}
	if edge.Status == models.FollowStatusAccepted {
		if err := s.bumpCounters(followerID, followingID, -1); err != nil {
			// Edge and counters are one unit; restore the edge so neither
			// reflects the severing.
			restored := &models.Follow{FollowerID: followerID, FollowingID: followingID, Status: edge.Status}
			if rerr := s.follows.CreateFollow(restored); rerr != nil {
				s.log.Error("restoring follow edge", zap.Error(rerr))
			}
			return err
		}
		s.broadcastStats(followerID, followingID)
	}
	// Severing the pair resets the notification history between them.
	return s.applyFollowTransition(pairSevered, followerID, followingID, "")
}

// applyFollowTransition looks up the live consolidated row for
// (sender, recipient) and applies the table-selected mutation.
func (s *Service) applyFollowTransition(event followEvent, senderID, recipientID uint, notifType string) error {
	existing, err := s.notifications.FindConsolidated(senderID, recipientID)
	if err != nil && !apperr.IsNotFound(err) {
		return err
	}
	present := 0
	if existing != nil {
		present = 1
	}

	switch followTransitions[event][present] {
	case actionInsert:
		return s.insertAndPush(&models.Notification{
			Type:        notifType,
			SenderID:    senderID,
			RecipientID: recipientID,
		})

	case actionUpdateInPlace:
		// One evolving item instead of a growing history of follow
		// pokes from the same sender.
		existing.Type = notifType
		existing.IsRead = false
		existing.CreatedAt = time.Now()
		if err := s.notifications.SaveNotification(existing); err != nil {
			return err
		}
		s.push(existing)
		return nil

	case actionDelete:
		if event == pairSevered {
			return s.notifications.DeleteBetween(senderID, recipientID, models.FollowTypes)
		}
		return s.notifications.DeleteFromSender(senderID, recipientID, models.ConsolidatedTypes)

	case actionDeleteThenInsert:
		if err := s.notifications.DeleteFromSender(senderID, recipientID, models.ConsolidatedTypes); err != nil {
			return err
		}
		// Acceptance is addressed to the original requester.
		return s.insertAndPush(&models.Notification{
			Type:        notifType,
			SenderID:    recipientID,
			RecipientID: senderID,
		})
	}
	return nil
}

// Liked records a LIKE notification for the thread author. Never
// consolidated; self-likes are skipped.
func (s *Service) Liked(ctx context.Context, actorID uint, thread *models.Thread) error {
	if actorID == thread.AuthorID {
		return nil
	}
	return s.insertAndPush(&models.Notification{
		Type:        models.NotificationLike,
		SenderID:    actorID,
		RecipientID: thread.AuthorID,
		ThreadID:    thread.ID.Hex(),
	})
}

// Commented records a COMMENT notification for the parent author.
func (s *Service) Commented(ctx context.Context, actorID uint, parent *models.Thread) error {
	if actorID == parent.AuthorID {
		return nil
	}
	return s.insertAndPush(&models.Notification{
		Type:        models.NotificationComment,
		SenderID:    actorID,
		RecipientID: parent.AuthorID,
		ThreadID:    parent.ID.Hex(),
	})
}

// Mentioned records a NEW_THREAD notification for a mentioned user.
func (s *Service) Mentioned(ctx context.Context, actorID, mentionedID uint, threadID string) error {
	if actorID == mentionedID {
		return nil
	}
	return s.insertAndPush(&models.Notification{
		Type:        models.NotificationNewThread,
		SenderID:    actorID,
		RecipientID: mentionedID,
		ThreadID:    threadID,
	})
}

func (s *Service) insertAndPush(n *models.Notification) error {
	if err := s.notifications.CreateNotification(n); err != nil {
		return err
	}
	s.push(n)
	return nil
}

// push resolves the sender for display and delivers to the recipient's
// private channel. Push is outside the operation's success criterion:
// failures are logged and swallowed.
func (s *Service) push(n *models.Notification) {
	payload := PushedNotification{Notification: *n}
	if sender, err := s.users.GetUserByID(n.SenderID); err == nil {
		payload.Sender = sender.ToCompact()
	} else {
		s.log.Warn("resolving notification sender", zap.Uint("sender_id", n.SenderID), zap.Error(err))
	}
	s.pusher.PushToUser(n.RecipientID, realtime.EventNotification, payload)
}

// bumpCounters applies the atomic per-field counter mutations for one
// accepted-edge transition. The two counters move together: a failure
// on the second undoes the first before the error aborts the operation.
func (s *Service) bumpCounters(followerID, followingID uint, delta int) error {
	if err := s.users.AdjustFollowingCount(followerID, delta); err != nil {
		return err
	}
	if err := s.users.AdjustFollowersCount(followingID, delta); err != nil {
		if rerr := s.users.AdjustFollowingCount(followerID, -delta); rerr != nil {
			s.log.Error("rolling back following count", zap.Uint("user_id", followerID), zap.Error(rerr))
		}
		return err
	}
	return nil
}

// broadcastStats publishes both identities' updated public counts to all
// connected clients. Best-effort only.
func (s *Service) broadcastStats(userIDs ...uint) {
	for _, id := range userIDs {
		user, err := s.users.GetUserByID(id)
		if err != nil {
			s.log.Warn("loading user for stats broadcast", zap.Uint("user_id", id), zap.Error(err))
			continue
		}
		s.pusher.BroadcastPublic(realtime.EventUserStats, models.UserStats{
			UserID:         user.ID,
			FollowersCount: user.FollowersCount,
			FollowingCount: user.FollowingCount,
		})
	}
}
