package models

import "time"

// Follow edge statuses. A rejected request is deleted, never stored.
const (
	FollowStatusPending  = "pending"
	FollowStatusAccepted = "accepted"
)

// Follow represents a directed follow edge between two users
type Follow struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FollowerID  uint      `json:"follower_id" gorm:"index;uniqueIndex:idx_follower_following"`
	FollowingID uint      `json:"following_id" gorm:"index;uniqueIndex:idx_follower_following"`
	Status      string    `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FollowRequestBody identifies the other party of a follow operation
type FollowRequestBody struct {
	UserID uint `json:"user_id" validate:"required"`
}
