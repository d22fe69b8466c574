package repository

import (
	"context"

	"github.com/reviewpilot/engine/internal/models"
	appErr "github.com/reviewpilot/engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GraphRepository persists one CourseGraph record per course. Both
// collections are written back as a unit; there are no partial updates.
type GraphRepository interface {
	// GetOrCreate returns the course's graph, creating an empty one on
	// first access. Safe under concurrent first access for the same
	// course: creation is an insert-if-absent at the storage layer.
	GetOrCreate(ctx context.Context, courseID uint64) (*models.CourseGraph, error)
	// Save writes the full current state of the graph.
	Save(ctx context.Context, graph *models.CourseGraph) error
}

type graphRepository struct {
	db *gorm.DB
}

func NewGraphRepository(db *gorm.DB) GraphRepository {
	return &graphRepository{db: db}
}

func (r *graphRepository) GetOrCreate(ctx context.Context, courseID uint64) (*models.CourseGraph, error) {
	blank := models.CourseGraph{CourseID: courseID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&blank).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "create course graph failed")
	}

	// Re-read so concurrent first accesses all observe the single row.
	var g models.CourseGraph
	if err := r.db.WithContext(ctx).First(&g, "course_id = ?", courseID).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "load course graph failed")
	}
	return &g, nil
}

func (r *graphRepository) Save(ctx context.Context, graph *models.CourseGraph) error {
	if err := r.db.WithContext(ctx).Save(graph).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "save course graph failed")
	}
	return nil
}
