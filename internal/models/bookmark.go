package models

import "time"

// Bookmark represents membership of a thread in a user's bookmark list,
// unique per (user, thread) and ordered by bookmark time
type Bookmark struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_user_thread_bookmark"`
	ThreadID  string    `json:"thread_id" gorm:"index;uniqueIndex:idx_user_thread_bookmark"`
	CreatedAt time.Time `json:"created_at"`
}
