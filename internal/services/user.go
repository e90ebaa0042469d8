package services

import (
	"errors"
	"medtrack/internal/config"
	"medtrack/internal/models"

	"gorm.io/gorm"
)

type UserService struct {
	cfg *config.Config
}

func NewUserService(cfg *config.Config) *UserService {
	return &UserService{cfg: cfg}
}

// GetUsers returns all users
func (s *UserService) GetUsers() ([]models.User, error) {
	var users []models.User
	if err := models.DB.Find(&users).Error; err != nil {
		return nil, err
	}

	// Clear password hashes
	for i := range users {
		users[i].PasswordHash = ""
	}

	return users, nil
}

// GetUser returns a specific user by ID
func (s *UserService) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := models.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.PasswordHash = ""
	return &user, nil
}

// UpdateRoleFlags updates a user's admin and active flags. A nil field means
// "leave unchanged". Deactivating a user also revokes their open sessions so
// existing tokens stop resolving immediately.
func (s *UserService) UpdateRoleFlags(id uint, isAdmin, isActive *bool) (*models.User, error) {
	var user models.User
	if err := models.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if isAdmin != nil {
		user.IsAdmin = *isAdmin
	}
	if isActive != nil {
		user.IsActive = *isActive
	}

	if err := models.DB.Save(&user).Error; err != nil {
		return nil, err
	}

	if isActive != nil && !*isActive {
		models.DB.Where("user_id = ?", user.ID).Delete(&models.Session{})
	}

	user.PasswordHash = ""
	return &user, nil
}
