package course

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/courseloop/api/internal/domain"
	"github.com/courseloop/api/internal/policy"
	"github.com/courseloop/api/internal/rating"
	"github.com/courseloop/api/internal/repository"
	"github.com/courseloop/api/pkg/config"
)

// Service exposes the course operations of the public API.
type Service struct {
	courses repository.CourseRepository
	reviews repository.ReviewRepository
	users   repository.UserRepository
	logger  *slog.Logger
	cfg     config.APIConfig
}

// New constructs a course Service.
func New(courses repository.CourseRepository, reviews repository.ReviewRepository, users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{courses: courses, reviews: reviews, users: users, logger: logger, cfg: cfg}
}

// StepInput is one step of a create/update payload.
type StepInput struct {
	StepNumber  int    `json:"stepNumber"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Input is the create/update payload. Any owner reference present in
// the request body is ignored; ownership comes from the actor identity.
type Input struct {
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	EstimatedTime   string      `json:"estimatedTime"`
	MaterialsNeeded string      `json:"materialsNeeded"`
	Steps           []StepInput `json:"steps"`
}

// UserView is the credential-free projection of a user in responses.
type UserView struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	EmailAddress string `json:"emailAddress"`
}

// StepView mirrors a stored course step.
type StepView struct {
	StepNumber  int    `json:"stepNumber"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ReviewView is a review with its author populated.
type ReviewView struct {
	ID       string    `json:"id"`
	User     UserView  `json:"user"`
	Rating   int       `json:"rating"`
	Review   string    `json:"review,omitempty"`
	PostedOn time.Time `json:"postedOn"`
}

// Detail is the full course view. OverallRating is recomputed on every
// read and is null while the course has no reviews.
type Detail struct {
	ID              string       `json:"id"`
	User            UserView     `json:"user"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	EstimatedTime   string       `json:"estimatedTime,omitempty"`
	MaterialsNeeded string       `json:"materialsNeeded,omitempty"`
	Steps           []StepView   `json:"steps"`
	Reviews         []ReviewView `json:"reviews"`
	OverallRating   *int         `json:"overallRating"`
}

// List returns the id/title projection of every course.
func (s Service) List(ctx context.Context) ([]domain.CourseSummary, error) {
	storageCtx, cancel := s.storageCtx(ctx)
	defer cancel()
	summaries, err := s.courses.ListCourses(storageCtx)
	if err != nil {
		return nil, storageErr(err)
	}
	return summaries, nil
}

// Get assembles the full course detail: owner, reviews with authors,
// and the derived overall rating.
func (s Service) Get(ctx context.Context, id string) (*Detail, error) {
	storageCtx, cancel := s.storageCtx(ctx)
	defer cancel()

	course, err := s.courses.GetCourseByID(storageCtx, id)
	if err != nil {
		return nil, translateErr(err)
	}
	owner, err := s.users.GetUserByID(storageCtx, course.UserID)
	if err != nil {
		return nil, translateErr(err)
	}
	reviews, err := s.reviews.ListReviewsByCourse(storageCtx, course.ID)
	if err != nil {
		return nil, translateErr(err)
	}

	detail := &Detail{
		ID:              course.ID,
		User:            userView(owner),
		Title:           course.Title,
		Description:     course.Description,
		EstimatedTime:   course.EstimatedTime,
		MaterialsNeeded: course.MaterialsNeeded,
		Steps:           make([]StepView, 0, len(course.Steps)),
		Reviews:         make([]ReviewView, 0, len(reviews)),
	}
	for _, step := range course.Steps {
		detail.Steps = append(detail.Steps, StepView{
			StepNumber:  step.StepNumber,
			Title:       step.Title,
			Description: step.Description,
		})
	}
	authors := map[string]UserView{course.UserID: detail.User}
	for _, review := range reviews {
		author, ok := authors[review.UserID]
		if !ok {
			user, err := s.users.GetUserByID(storageCtx, review.UserID)
			if err != nil {
				return nil, translateErr(err)
			}
			author = userView(user)
			authors[review.UserID] = author
		}
		detail.Reviews = append(detail.Reviews, ReviewView{
			ID:       review.ID,
			User:     author,
			Rating:   review.Rating,
			Review:   review.Body,
			PostedOn: review.PostedOn,
		})
	}
	if overall, ok := rating.Overall(reviews); ok {
		detail.OverallRating = &overall
	}
	return detail, nil
}

// Create persists a new course owned by the acting user.
func (s Service) Create(ctx context.Context, actorID string, input Input) (*domain.Course, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	course, err := buildCourse(actorID, input)
	if err != nil {
		return nil, err
	}
	course.ID = uuid.NewString()
	course.CreatedAt = time.Now().UTC()
	course.UpdatedAt = course.CreatedAt

	storageCtx, cancel := s.storageCtx(ctx)
	defer cancel()
	if err := s.courses.CreateCourse(storageCtx, course); err != nil {
		return nil, translateErr(err)
	}
	s.logger.Info("course created", "course_id", course.ID, "user_id", course.UserID)
	return course, nil
}

// Update replaces the mutable fields of a course. Only the owner may
// update, and the owner reference itself is never reassigned.
func (s Service) Update(ctx context.Context, actorID, id string, input Input) error {
	storageCtx, cancel := s.storageCtx(ctx)
	defer cancel()

	existing, err := s.courses.GetCourseByID(storageCtx, id)
	if err != nil {
		return translateErr(err)
	}
	if !policy.CanEditCourse(actorID, existing) {
		return domain.ErrForbidden
	}
	course, err := buildCourse(existing.UserID, input)
	if err != nil {
		return err
	}
	course.ID = existing.ID
	course.CreatedAt = existing.CreatedAt
	if err := s.courses.UpdateCourse(storageCtx, course); err != nil {
		return translateErr(err)
	}
	s.logger.Info("course updated", "course_id", course.ID, "user_id", actorID)
	return nil
}

// buildCourse validates the payload and assembles a course owned by
// ownerID, accumulating one message per invalid field.
func buildCourse(ownerID string, input Input) (*domain.Course, error) {
	vErr := domain.NewValidationError()
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" {
		vErr.Add("title", "A title is required.")
	}
	if description == "" {
		vErr.Add("description", "A description is required.")
	}
	steps := make([]domain.CourseStep, 0, len(input.Steps))
	for i, step := range input.Steps {
		stepTitle := strings.TrimSpace(step.Title)
		stepDescription := strings.TrimSpace(step.Description)
		if stepTitle == "" {
			vErr.Add(fmt.Sprintf("steps[%d].title", i), "A title is required.")
		}
		if stepDescription == "" {
			vErr.Add(fmt.Sprintf("steps[%d].description", i), "A description is required.")
		}
		number := step.StepNumber
		if number <= 0 {
			number = i + 1
		}
		steps = append(steps, domain.CourseStep{
			StepNumber:  number,
			Title:       stepTitle,
			Description: stepDescription,
		})
	}
	if err := vErr.Err(); err != nil {
		return nil, err
	}
	return &domain.Course{
		UserID:          ownerID,
		Title:           title,
		Description:     description,
		EstimatedTime:   strings.TrimSpace(input.EstimatedTime),
		MaterialsNeeded: strings.TrimSpace(input.MaterialsNeeded),
		Steps:           steps,
	}, nil
}

func userView(user *domain.User) UserView {
	return UserView{ID: user.ID, FullName: user.FullName, EmailAddress: user.Email}
}

func (s Service) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.StorageTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func translateErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return domain.ErrConflict
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrUnavailable
	}
	return err
}

func storageErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrUnavailable
	}
	return err
}
