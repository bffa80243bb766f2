package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/models"
	"budgetapi/internal/pagination"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(userID uint, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	if err := s.checkNameFree(userID, 0, name); err != nil {
		return nil, err
	}

	category := &models.Category{UserID: userID, Name: name}
	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// GetUserCategories retrieves a paginated list of categories for a user.
func (s *categoryService) GetUserCategories(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	q := s.db.Model(&models.Category{}).Where("user_id = ?", userID)
	result, err := pagination.Find[models.Category](q, page, "name ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetCategoryByID retrieves a category by ID for a specific user
func (s *categoryService) GetCategoryByID(userID, categoryID uint) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// ResolveCategory looks a category up for use by a transaction. A category
// owned by another user is rejected as invalid rather than hidden.
func (s *categoryService) ResolveCategory(userID, categoryID uint) (*models.Category, error) {
	var category models.Category
	if err := s.db.First(&category, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if category.UserID != userID {
		return nil, apperrors.ErrInvalidCategory
	}
	return &category, nil
}

// UpdateCategory renames a category
func (s *categoryService) UpdateCategory(userID, categoryID uint, name string) (*models.Category, error) {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if name == category.Name {
		return category, nil
	}
	if err := s.checkNameFree(userID, categoryID, name); err != nil {
		return nil, err
	}

	if err := s.db.Model(category).Update("name", name).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	category.Name = name
	return category, nil
}

// DeleteCategory deletes a category that no transaction refers to.
func (s *categoryService) DeleteCategory(userID, categoryID uint) error {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return err
	}
	return deleteCategory(s.db, category)
}

// deleteCategory is shared with the admin service. Soft-deleted
// transactions still count as references.
func deleteCategory(db *gorm.DB, category *models.Category) error {
	var used int64
	if err := db.Unscoped().Model(&models.Transaction{}).
		Where("category_id = ?", category.ID).
		Count(&used).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if used > 0 {
		return apperrors.ErrCategoryInUse
	}

	if err := db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *categoryService) checkNameFree(userID, exceptID uint, name string) error {
	var count int64
	q := s.db.Model(&models.Category{}).Where("user_id = ? AND name = ?", userID, name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateCategory
	}
	return nil
}
