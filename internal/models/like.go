package models

import "time"

// Like represents a like on a thread, unique per (user, thread)
type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_user_thread_like"`
	ThreadID  string    `json:"thread_id" gorm:"index;uniqueIndex:idx_user_thread_like"`
	CreatedAt time.Time `json:"created_at"`
}
