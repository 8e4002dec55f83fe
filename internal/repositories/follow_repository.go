package repositories

import (
	"errors"

	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
	"gorm.io/gorm"
)

// FollowRepository defines the interface for follow edge operations
type FollowRepository interface {
	CreateFollow(follow *models.Follow) error
	GetFollow(followerID, followingID uint) (*models.Follow, error)
	// UpdateStatus transitions the edge from one status to another. The
	// current status is part of the predicate, so concurrent transitions
	// of the same edge cannot both apply; the loser gets NotFound.
	UpdateStatus(followerID, followingID uint, from, to string) error
	DeleteFollow(followerID, followingID uint) error
	GetAcceptedFollowingIDs(userID uint) ([]uint, error)
	GetFollowers(userID uint) ([]models.User, error)
	GetFollowing(userID uint) ([]models.User, error)
	GetPendingRequests(userID uint) ([]models.Follow, error)
}

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db *gorm.DB
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

func (r *PostgresFollowRepository) CreateFollow(follow *models.Follow) error {
	if err := r.db.Create(follow).Error; err != nil {
		// Concurrent follow requests race on the unique (follower,
		// following) index; the loser surfaces a Conflict.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("follow relationship already exists")
		}
		return apperr.Internal("creating follow edge", err)
	}
	return nil
}

func (r *PostgresFollowRepository) GetFollow(followerID, followingID uint) (*models.Follow, error) {
	var follow models.Follow
	err := r.db.Where("follower_id = ? AND following_id = ?", followerID, followingID).First(&follow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("follow relationship not found")
		}
		return nil, apperr.Internal("loading follow edge", err)
	}
	return &follow, nil
}

func (r *PostgresFollowRepository) UpdateStatus(followerID, followingID uint, from, to string) error {
	res := r.db.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ? AND status = ?", followerID, followingID, from).
		Update("status", to)
	if res.Error != nil {
		return apperr.Internal("updating follow status", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("follow relationship not found")
	}
	return nil
}

func (r *PostgresFollowRepository) DeleteFollow(followerID, followingID uint) error {
	res := r.db.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
	if res.Error != nil {
		return apperr.Internal("deleting follow edge", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("follow relationship not found")
	}
	return nil
}

func (r *PostgresFollowRepository) GetAcceptedFollowingIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Follow{}).
		Where("follower_id = ? AND status = ?", userID, models.FollowStatusAccepted).
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, apperr.Internal("loading following ids", err)
	}
	return ids, nil
}

func (r *PostgresFollowRepository) GetFollowers(userID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("id IN (?)",
		r.db.Table("follows").Select("follower_id").
			Where("following_id = ? AND status = ?", userID, models.FollowStatusAccepted),
	).Find(&users).Error
	if err != nil {
		return nil, apperr.Internal("loading followers", err)
	}
	return users, nil
}

func (r *PostgresFollowRepository) GetFollowing(userID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("id IN (?)",
		r.db.Table("follows").Select("following_id").
			Where("follower_id = ? AND status = ?", userID, models.FollowStatusAccepted),
	).Find(&users).Error
	if err != nil {
		return nil, apperr.Internal("loading following", err)
	}
	return users, nil
}

func (r *PostgresFollowRepository) GetPendingRequests(userID uint) ([]models.Follow, error) {
	var follows []models.Follow
	err := r.db.Where("following_id = ? AND status = ?", userID, models.FollowStatusPending).
		Order("created_at DESC").
		Find(&follows).Error
	if err != nil {
		return nil, apperr.Internal("loading pending requests", err)
	}
	return follows, nil
}
