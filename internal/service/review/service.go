package review

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/courseloop/api/internal/domain"
	"github.com/courseloop/api/internal/policy"
	"github.com/courseloop/api/internal/repository"
	"github.com/courseloop/api/internal/ws"
	"github.com/courseloop/api/pkg/config"
)

// Service orchestrates review creation and deletion for a course.
type Service struct {
	reviews repository.ReviewRepository
	courses repository.CourseRepository
	hub     *ws.Hub
	logger  *slog.Logger
	cfg     config.APIConfig
}

// New constructs a review Service. hub may be nil when no live feed is wired.
func New(reviews repository.ReviewRepository, courses repository.CourseRepository, hub *ws.Hub, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{reviews: reviews, courses: courses, hub: hub, logger: logger, cfg: cfg}
}

// Input is the review creation payload. Rating is a pointer so a
// missing field is distinguishable from zero; fractional values are
// rounded half-up before range validation. Any user reference in the
// body is ignored.
type Input struct {
	Rating *float64 `json:"rating"`
	Review string   `json:"review"`
}

// event is the payload broadcast to live feed subscribers.
type event struct {
	CourseID string    `json:"courseId"`
	ReviewID string    `json:"reviewId"`
	UserID   string    `json:"userId"`
	Rating   int       `json:"rating"`
	PostedOn time.Time `json:"postedOn"`
}

// Create validates and persists a review authored by the acting user.
// The review row carries its course reference, so membership in the
// course's review set and the review record itself are one write.
func (s Service) Create(ctx context.Context, actorID, courseID string, input Input) (*domain.Review, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	vErr := domain.NewValidationError()
	ratingValue := 0
	if input.Rating == nil {
		vErr.Add("rating", "A rating between 1 and 5 is required.")
	} else {
		ratingValue = int(math.Floor(*input.Rating + 0.5))
		if ratingValue < 1 || ratingValue > 5 {
			vErr.Add("rating", "A rating between 1 and 5 is required.")
		}
	}
	if err := vErr.Err(); err != nil {
		return nil, err
	}

	storageCtx, cancel := s.storageCtx(ctx)
	defer cancel()
	if _, err := s.courses.GetCourseByID(storageCtx, courseID); err != nil {
		return nil, translateErr(err)
	}

	review := &domain.Review{
		ID:       uuid.NewString(),
		CourseID: courseID,
		UserID:   actorID,
		Rating:   ratingValue,
		Body:     strings.TrimSpace(input.Review),
		PostedOn: time.Now().UTC(),
	}
	if err := s.reviews.CreateReview(storageCtx, review); err != nil {
		return nil, translateErr(err)
	}
	s.logger.Info("review created", "review_id", review.ID, "course_id", courseID, "user_id", actorID)
	s.publish(review)
	return review, nil
}

// Delete removes a review when the actor owns the course or authored
// the review. A review reached through the wrong course is not found.
func (s Service) Delete(ctx context.Context, actorID, courseID, reviewID string) error {
	if strings.TrimSpace(actorID) == "" {
		return domain.ErrUnauthenticated
	}
	storageCtx, cancel := s.storageCtx(ctx)
	defer cancel()

	course, err := s.courses.GetCourseByID(storageCtx, courseID)
	if err != nil {
		return translateErr(err)
	}
	review, err := s.reviews.GetReviewByID(storageCtx, reviewID)
	if err != nil {
		return translateErr(err)
	}
	if review.CourseID != course.ID {
		return domain.ErrNotFound
	}
	if !policy.CanDeleteReview(actorID, course, review) {
		return domain.ErrForbidden
	}
	if err := s.reviews.DeleteReview(storageCtx, reviewID, courseID); err != nil {
		return translateErr(err)
	}
	s.logger.Info("review deleted", "review_id", reviewID, "course_id", courseID, "user_id", actorID)
	return nil
}

func (s Service) publish(review *domain.Review) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(event{
		CourseID: review.CourseID,
		ReviewID: review.ID,
		UserID:   review.UserID,
		Rating:   review.Rating,
		PostedOn: review.PostedOn,
	})
	if err != nil {
		s.logger.Warn("failed to encode review event", "error", err)
		return
	}
	s.hub.Broadcast(review.CourseID, payload)
}

func (s Service) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.StorageTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// translateErr maps storage errors to domain errors. Ratings are
// validated before any write, so there is no invalid-argument case.
func translateErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrUnavailable
	}
	return err
}
