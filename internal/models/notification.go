package models

import "time"

// Notification types. The three follow-related types are subject to
// consolidation; the rest always insert a new row.
const (
	NotificationFollowRequest  = "FOLLOW_REQUEST"
	NotificationFollowAccepted = "FOLLOW_ACCEPTED"
	NotificationNewFollower    = "NEW_FOLLOWER"
	NotificationLike           = "LIKE"
	NotificationComment        = "COMMENT"
	NotificationNewThread      = "NEW_THREAD"
)

// ConsolidatedTypes are the types of which at most one live row may exist
// per (sender, recipient) pair.
var ConsolidatedTypes = []string{NotificationFollowRequest, NotificationNewFollower}

// FollowTypes are all follow-related types, cleared between a pair on unfollow.
var FollowTypes = []string{NotificationFollowRequest, NotificationNewFollower, NotificationFollowAccepted}

// Notification represents a derived event addressed to a user (PostgreSQL)
type Notification struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Type        string    `json:"type" gorm:"size:30;index"`
	RecipientID uint      `json:"recipient_id" gorm:"index"`
	SenderID    uint      `json:"sender_id" gorm:"index"`
	ThreadID    string    `json:"thread_id,omitempty"`
	IsRead      bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time `json:"updated_at"`
}
