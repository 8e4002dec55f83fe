package repositories

import (
	"errors"

	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(user *models.User) error
	GetUserByID(id uint) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	GetUsersByIDs(ids []uint) ([]models.User, error)
	GetUsersByUsernames(usernames []string) ([]models.User, error)
	GetPrivateUserIDs() ([]uint, error)
	UpdateUser(user *models.User) error
	DeleteUser(id uint) error
	SearchUsers(query string) ([]models.User, error)

	// Counter mutations are single atomic SQL updates, never
	// read-modify-write, so concurrent edge transitions on the same
	// identity cannot lose updates.
	AdjustFollowersCount(id uint, delta int) error
	AdjustFollowingCount(id uint, delta int) error
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) CreateUser(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("username or email already taken")
		}
		return apperr.Internal("creating user", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("loading user", err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("loading user", err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("loading user", err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUsersByIDs(ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, apperr.Internal("loading users", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) GetUsersByUsernames(usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.db.Where("username IN ?", usernames).Find(&users).Error; err != nil {
		return nil, apperr.Internal("loading users", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) GetPrivateUserIDs() ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.User{}).Where("is_private = ?", true).Pluck("id", &ids).Error; err != nil {
		return nil, apperr.Internal("loading private user ids", err)
	}
	return ids, nil
}

func (r *PostgresUserRepository) UpdateUser(user *models.User) error {
	if err := r.db.Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("username or email already taken")
		}
		return apperr.Internal("updating user", err)
	}
	return nil
}

func (r *PostgresUserRepository) DeleteUser(id uint) error {
	res := r.db.Delete(&models.User{}, id)
	if res.Error != nil {
		return apperr.Internal("deleting user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (r *PostgresUserRepository) SearchUsers(query string) ([]models.User, error) {
	var users []models.User
	pattern := "%" + query + "%"
	err := r.db.
		Where("LOWER(username) LIKE LOWER(?) OR LOWER(display_name) LIKE LOWER(?)", pattern, pattern).
		Limit(25).
		Find(&users).Error
	if err != nil {
		return nil, apperr.Internal("searching users", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) AdjustFollowersCount(id uint, delta int) error {
	err := r.db.Model(&models.User{}).Where("id = ?", id).
		UpdateColumn("followers_count", gorm.Expr("followers_count + ?", delta)).Error
	if err != nil {
		return apperr.Internal("adjusting followers count", err)
	}
	return nil
}

func (r *PostgresUserRepository) AdjustFollowingCount(id uint, delta int) error {
	err := r.db.Model(&models.User{}).Where("id = ?", id).
		UpdateColumn("following_count", gorm.Expr("following_count + ?", delta)).Error
	if err != nil {
		return apperr.Internal("adjusting following count", err)
	}
	return nil
}
