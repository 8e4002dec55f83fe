package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// User represents a registered identity (PostgreSQL)
type User struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Username       string    `json:"username" gorm:"size:30;uniqueIndex"`
	Email          string    `json:"email" gorm:"uniqueIndex"` // stored lowercase
	DisplayName    string    `json:"display_name" gorm:"size:50"`
	Bio            string    `json:"bio" gorm:"size:160"`
	AvatarURL      string    `json:"avatar_url"`
	IsPrivate      bool      `json:"is_private" gorm:"default:false"`
	FollowersCount int64     `json:"followers_count" gorm:"default:0"`
	FollowingCount int64     `json:"following_count" gorm:"default:0"`
	Password       string    `json:"-"` // bcrypt hash, never serialized
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserCompact is the embedded author/actor representation
type UserCompact struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	IsPrivate   bool   `json:"is_private"`
}

// ToCompact converts a full user record to its compact form
func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		IsPrivate:   u.IsPrivate,
	}
}

// UserStats is the payload broadcast to all clients after a counter change
type UserStats struct {
	UserID         uint  `json:"user_id"`
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
}

// SignupRequest defines the request body for local registration
type SignupRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=50"`
	Password    string `json:"password" validate:"required,min=8"`
}

// SigninRequest defines the request body for local authentication
type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest defines the request body for profile edits
type UpdateUserRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,min=1,max=50"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=160"`
	AvatarURL   *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	IsPrivate   *bool   `json:"is_private,omitempty"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
