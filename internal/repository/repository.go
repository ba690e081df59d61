package repository

import (
	"context"

	"github.com/courseloop/api/internal/domain"
)

// UserRepository persists user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// CourseRepository persists courses and their ordered steps.
type CourseRepository interface {
	CreateCourse(ctx context.Context, course *domain.Course) error
	UpdateCourse(ctx context.Context, course *domain.Course) error
	GetCourseByID(ctx context.Context, id string) (*domain.Course, error)
	ListCourses(ctx context.Context) ([]domain.CourseSummary, error)
}

// ReviewRepository persists reviews. A review row carries its course
// reference, so the course's review set is a query-time view and
// create/delete are single-row writes.
type ReviewRepository interface {
	CreateReview(ctx context.Context, review *domain.Review) error
	GetReviewByID(ctx context.Context, id string) (*domain.Review, error)
	ListReviewsByCourse(ctx context.Context, courseID string) ([]domain.Review, error)
	DeleteReview(ctx context.Context, reviewID, courseID string) error
}
