package repositories

import (
	"errors"

	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
	"gorm.io/gorm"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	CreateLike(like *models.Like) error
	DeleteLike(userID uint, threadID string) error
	HasUserLiked(userID uint, threadID string) (bool, error)
	GetLikesCount(threadID string) (int64, error)
	GetLikedMap(userID uint, threadIDs []string) (map[string]bool, error)
}

// PostgresLikeRepository implements LikeRepository for PostgreSQL
type PostgresLikeRepository struct {
	db *gorm.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository
func NewPostgresLikeRepository(db *gorm.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{db: db}
}

func (r *PostgresLikeRepository) CreateLike(like *models.Like) error {
	if err := r.db.Create(like).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("thread already liked")
		}
		return apperr.Internal("creating like", err)
	}
	return nil
}

func (r *PostgresLikeRepository) DeleteLike(userID uint, threadID string) error {
	res := r.db.Where("user_id = ? AND thread_id = ?", userID, threadID).Delete(&models.Like{})
	if res.Error != nil {
		return apperr.Internal("deleting like", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("like not found")
	}
	return nil
}

func (r *PostgresLikeRepository) HasUserLiked(userID uint, threadID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Like{}).Where("user_id = ? AND thread_id = ?", userID, threadID).Count(&count).Error
	if err != nil {
		return false, apperr.Internal("checking like", err)
	}
	return count > 0, nil
}

func (r *PostgresLikeRepository) GetLikesCount(threadID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Like{}).Where("thread_id = ?", threadID).Count(&count).Error
	if err != nil {
		return 0, apperr.Internal("counting likes", err)
	}
	return count, nil
}

func (r *PostgresLikeRepository) GetLikedMap(userID uint, threadIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(threadIDs) == 0 {
		return result, nil
	}
	var likes []models.Like
	err := r.db.Where("user_id = ? AND thread_id IN ?", userID, threadIDs).Find(&likes).Error
	if err != nil {
		return nil, apperr.Internal("loading likes", err)
	}
	for _, l := range likes {
		result[l.ThreadID] = true
	}
	return result, nil
}
