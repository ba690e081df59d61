package course

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/courseloop/api/internal/domain"
	"github.com/courseloop/api/internal/repository"
	"github.com/courseloop/api/pkg/config"
)

type stubCourseRepository struct {
	courses map[string]*domain.Course
	updated []*domain.Course
}

func newStubCourseRepository() *stubCourseRepository {
	return &stubCourseRepository{courses: make(map[string]*domain.Course)}
}

func (s *stubCourseRepository) CreateCourse(ctx context.Context, course *domain.Course) error {
	copied := *course
	s.courses[course.ID] = &copied
	return nil
}

func (s *stubCourseRepository) UpdateCourse(ctx context.Context, course *domain.Course) error {
	if _, ok := s.courses[course.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := *course
	s.courses[course.ID] = &copied
	s.updated = append(s.updated, &copied)
	return nil
}

func (s *stubCourseRepository) GetCourseByID(ctx context.Context, id string) (*domain.Course, error) {
	if course, ok := s.courses[id]; ok {
		copied := *course
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubCourseRepository) ListCourses(ctx context.Context) ([]domain.CourseSummary, error) {
	summaries := make([]domain.CourseSummary, 0, len(s.courses))
	for _, course := range s.courses {
		summaries = append(summaries, domain.CourseSummary{ID: course.ID, Title: course.Title})
	}
	return summaries, nil
}

type stubReviewRepository struct {
	byCourse map[string][]domain.Review
}

func newStubReviewRepository() *stubReviewRepository {
	return &stubReviewRepository{byCourse: make(map[string][]domain.Review)}
}

func (s *stubReviewRepository) CreateReview(ctx context.Context, review *domain.Review) error {
	s.byCourse[review.CourseID] = append(s.byCourse[review.CourseID], *review)
	return nil
}

func (s *stubReviewRepository) GetReviewByID(ctx context.Context, id string) (*domain.Review, error) {
	for _, reviews := range s.byCourse {
		for _, review := range reviews {
			if review.ID == id {
				copied := review
				return &copied, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubReviewRepository) ListReviewsByCourse(ctx context.Context, courseID string) ([]domain.Review, error) {
	return append([]domain.Review(nil), s.byCourse[courseID]...), nil
}

func (s *stubReviewRepository) DeleteReview(ctx context.Context, reviewID, courseID string) error {
	reviews := s.byCourse[courseID]
	for i, review := range reviews {
		if review.ID == reviewID {
			s.byCourse[courseID] = append(reviews[:i], reviews[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type stubUserRepository struct {
	byID map[string]*domain.User
}

func newStubUserRepository(users ...*domain.User) *stubUserRepository {
	repo := &stubUserRepository{byID: make(map[string]*domain.User)}
	for _, user := range users {
		repo.byID[user.ID] = user
	}
	return repo
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	s.byID[user.ID] = user
	return nil
}

func (s *stubUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range s.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := s.byID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrNotFound
}

func testService(courses *stubCourseRepository, reviews *stubReviewRepository, users *stubUserRepository) Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(courses, reviews, users, log, config.APIConfig{StorageTimeout: time.Second})
}

func validInput() Input {
	return Input{
		Title:       "Counting from One to Five",
		Description: "A gentle introduction to small numbers.",
		Steps: []StepInput{
			{StepNumber: 1, Title: "One", Description: "Start with one."},
			{StepNumber: 2, Title: "Two", Description: "Then two."},
		},
	}
}

func TestCreateSetsOwnerFromActor(t *testing.T) {
	courses := newStubCourseRepository()
	svc := testService(courses, newStubReviewRepository(), newStubUserRepository())

	created, err := svc.Create(context.Background(), "actor-1", validInput())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.UserID != "actor-1" {
		t.Fatalf("course owner = %q, want actor identity", created.UserID)
	}
	if created.ID == "" {
		t.Fatalf("expected generated course id")
	}
	if len(created.Steps) != 2 || created.Steps[0].StepNumber != 1 {
		t.Fatalf("unexpected steps: %+v", created.Steps)
	}
}

func TestCreateRequiresActor(t *testing.T) {
	svc := testService(newStubCourseRepository(), newStubReviewRepository(), newStubUserRepository())
	if _, err := svc.Create(context.Background(), "  ", validInput()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestCreateAccumulatesValidationErrors(t *testing.T) {
	svc := testService(newStubCourseRepository(), newStubReviewRepository(), newStubUserRepository())

	input := Input{Steps: []StepInput{{Title: "", Description: ""}}}
	_, err := svc.Create(context.Background(), "actor-1", input)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"title", "description", "steps[0].title", "steps[0].description"} {
		if len(vErr.Fields[field]) == 0 {
			t.Fatalf("expected message for %q, got %v", field, vErr.Fields)
		}
	}
}

func TestUpdateOnlyByOwner(t *testing.T) {
	courses := newStubCourseRepository()
	courses.courses["course-1"] = &domain.Course{ID: "course-1", UserID: "owner", Title: "t", Description: "d"}
	svc := testService(courses, newStubReviewRepository(), newStubUserRepository())

	if err := svc.Update(context.Background(), "intruder", "course-1", validInput()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
	if err := svc.Update(context.Background(), "owner", "course-1", validInput()); err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
	if got := courses.courses["course-1"].Title; got != "Counting from One to Five" {
		t.Fatalf("title not updated, got %q", got)
	}
}

func TestUpdateNeverReassignsOwner(t *testing.T) {
	courses := newStubCourseRepository()
	courses.courses["course-1"] = &domain.Course{ID: "course-1", UserID: "owner", Title: "t", Description: "d"}
	svc := testService(courses, newStubReviewRepository(), newStubUserRepository())

	if err := svc.Update(context.Background(), "owner", "course-1", validInput()); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := courses.courses["course-1"].UserID; got != "owner" {
		t.Fatalf("owner reassigned to %q", got)
	}
}

func TestUpdateUnknownCourse(t *testing.T) {
	svc := testService(newStubCourseRepository(), newStubReviewRepository(), newStubUserRepository())
	if err := svc.Update(context.Background(), "owner", "missing", validInput()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetComputesOverallRatingAndStripsCredentials(t *testing.T) {
	owner := &domain.User{ID: "owner", FullName: "Owner", Email: "owner@example.com", PasswordHash: []byte("hash")}
	reviewer := &domain.User{ID: "reviewer", FullName: "Reviewer", Email: "reviewer@example.com", PasswordHash: []byte("hash")}
	courses := newStubCourseRepository()
	courses.courses["course-1"] = &domain.Course{ID: "course-1", UserID: "owner", Title: "t", Description: "d"}
	reviews := newStubReviewRepository()
	reviews.byCourse["course-1"] = []domain.Review{
		{ID: "r1", CourseID: "course-1", UserID: "reviewer", Rating: 4, PostedOn: time.Now()},
		{ID: "r2", CourseID: "course-1", UserID: "reviewer", Rating: 5, PostedOn: time.Now()},
	}
	svc := testService(courses, reviews, newStubUserRepository(owner, reviewer))

	detail, err := svc.Get(context.Background(), "course-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail.OverallRating == nil || *detail.OverallRating != 5 {
		t.Fatalf("overall rating = %v, want 5 (half rounds up)", detail.OverallRating)
	}
	if len(detail.Reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(detail.Reviews))
	}
	if detail.User.EmailAddress != "owner@example.com" || detail.Reviews[0].User.ID != "reviewer" {
		t.Fatalf("unexpected populated users: %+v", detail)
	}
}

func TestGetWithoutReviewsHasNilRating(t *testing.T) {
	owner := &domain.User{ID: "owner", FullName: "Owner", Email: "owner@example.com"}
	courses := newStubCourseRepository()
	courses.courses["course-1"] = &domain.Course{ID: "course-1", UserID: "owner", Title: "t", Description: "d"}
	svc := testService(courses, newStubReviewRepository(), newStubUserRepository(owner))

	detail, err := svc.Get(context.Background(), "course-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail.OverallRating != nil {
		t.Fatalf("expected nil overall rating for empty review set, got %d", *detail.OverallRating)
	}
}

func TestGetUnknownCourse(t *testing.T) {
	svc := testService(newStubCourseRepository(), newStubReviewRepository(), newStubUserRepository())
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
