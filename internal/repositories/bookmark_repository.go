package repositories

import (
	"errors"

	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
	"gorm.io/gorm"
)

// BookmarkRepository defines the interface for bookmark operations
type BookmarkRepository interface {
	SaveBookmark(bookmark *models.Bookmark) error
	RemoveBookmark(userID uint, threadID string) error
	IsBookmarked(userID uint, threadID string) (bool, error)
	GetBookmarksByUser(userID uint) ([]models.Bookmark, error)
	GetBookmarkedMap(userID uint, threadIDs []string) (map[string]bool, error)
}

// PostgresBookmarkRepository implements BookmarkRepository
type PostgresBookmarkRepository struct {
	db *gorm.DB
}

func NewPostgresBookmarkRepository(db *gorm.DB) *PostgresBookmarkRepository {
	return &PostgresBookmarkRepository{db: db}
}

func (r *PostgresBookmarkRepository) SaveBookmark(bookmark *models.Bookmark) error {
	if err := r.db.Create(bookmark).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("thread already bookmarked")
		}
		return apperr.Internal("saving bookmark", err)
	}
	return nil
}

func (r *PostgresBookmarkRepository) RemoveBookmark(userID uint, threadID string) error {
	res := r.db.Where("user_id = ? AND thread_id = ?", userID, threadID).Delete(&models.Bookmark{})
	if res.Error != nil {
		return apperr.Internal("removing bookmark", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("bookmark not found")
	}
	return nil
}

func (r *PostgresBookmarkRepository) IsBookmarked(userID uint, threadID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Bookmark{}).Where("user_id = ? AND thread_id = ?", userID, threadID).Count(&count).Error
	if err != nil {
		return false, apperr.Internal("checking bookmark", err)
	}
	return count > 0, nil
}

func (r *PostgresBookmarkRepository) GetBookmarksByUser(userID uint) ([]models.Bookmark, error) {
	var bookmarks []models.Bookmark
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&bookmarks).Error
	if err != nil {
		return nil, apperr.Internal("loading bookmarks", err)
	}
	return bookmarks, nil
}

func (r *PostgresBookmarkRepository) GetBookmarkedMap(userID uint, threadIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(threadIDs) == 0 {
		return result, nil
	}
	var bookmarks []models.Bookmark
	err := r.db.Where("user_id = ? AND thread_id IN ?", userID, threadIDs).Find(&bookmarks).Error
	if err != nil {
		return nil, apperr.Internal("loading bookmarks", err)
	}
	for _, b := range bookmarks {
		result[b.ThreadID] = true
	}
	return result, nil
}
