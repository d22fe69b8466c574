package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/reviewpilot/engine/internal/models"
	appErr "github.com/reviewpilot/engine/pkg/errors"
	"gorm.io/gorm"
)

type CourseRepository interface {
	BaseRepository[models.Course]
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.Course, error)
	Exists(ctx context.Context, courseID uint64) (bool, error)
}

type courseRepository struct {
	BaseRepository[models.Course]
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{BaseRepository: NewBaseRepository[models.Course](db), db: db}
}

func (r *courseRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.Course, error) {
	var out []models.Course
	if err := r.db.WithContext(ctx).Where("author_id = ?", authorID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list courses by author failed")
	}
	return out, nil
}

func (r *courseRepository) Exists(ctx context.Context, courseID uint64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", courseID).Count(&n).Error; err != nil {
		return false, appErr.Wrap(err, appErr.CodeInternal, "course existence check failed")
	}
	return n > 0, nil
}
