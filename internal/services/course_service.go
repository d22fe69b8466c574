package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/reviewpilot/engine/internal/models"
	"github.com/reviewpilot/engine/internal/repository"
	appErr "github.com/reviewpilot/engine/pkg/errors"
)

// CourseService owns course CRUD and doubles as the CourseLookup the graph
// engine depends on.
type CourseService interface {
	CourseLookup
	CreateCourse(ctx context.Context, authorID uuid.UUID, in CreateCourseInput) (*models.Course, error)
	GetCourse(ctx context.Context, courseID uint64) (*models.Course, error)
	ListCourses(ctx context.Context, authorID uuid.UUID) ([]models.Course, error)
	DeleteCourse(ctx context.Context, courseID uint64) error
}

type CreateCourseInput struct {
	Title       string
	Description string
}

type courseService struct {
	courses repository.CourseRepository
}

func NewCourseService(courses repository.CourseRepository) CourseService {
	return &courseService{courses: courses}
}

func (s *courseService) CreateCourse(ctx context.Context, authorID uuid.UUID, in CreateCourseInput) (*models.Course, error) {
	c := models.Course{
		AuthorID:    authorID,
		Title:       in.Title,
		Description: in.Description,
	}
	if err := s.courses.Create(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *courseService) GetCourse(ctx context.Context, courseID uint64) (*models.Course, error) {
	var c models.Course
	if err := s.courses.GetByID(ctx, courseID, &c); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "course not found")
		}
		return nil, err
	}
	return &c, nil
}

func (s *courseService) ListCourses(ctx context.Context, authorID uuid.UUID) ([]models.Course, error) {
	return s.courses.ListByAuthor(ctx, authorID)
}

func (s *courseService) DeleteCourse(ctx context.Context, courseID uint64) error {
	return s.courses.Delete(ctx, courseID)
}

func (s *courseService) Exists(ctx context.Context, courseID uint64) (bool, error) {
	return s.courses.Exists(ctx, courseID)
}

func (s *courseService) OwnerID(ctx context.Context, courseID uint64) (uuid.UUID, error) {
	c, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return uuid.Nil, err
	}
	return c.AuthorID, nil
}
