package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courseloop/api/internal/domain"
	"github.com/courseloop/api/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository   = (*Repository)(nil)
	_ repository.CourseRepository = (*Repository)(nil)
	_ repository.ReviewRepository = (*Repository)(nil)
)

// CreateUser inserts a user. Duplicate email (case-insensitive unique
// index) maps to ErrConflict.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, full_name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.FullName, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

// GetUserByEmail fetches a user by email, case-insensitively.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, full_name, email, password_hash, created_at
		FROM users WHERE LOWER(email) = LOWER($1)`
	row := r.pool.QueryRow(ctx, query, email)
	var u domain.User
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, full_name, email, password_hash, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateCourse inserts a course and its steps in one transaction.
func (r *Repository) CreateCourse(ctx context.Context, course *domain.Course) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const courseInsert = `INSERT INTO courses (id, user_id, title, description, estimated_time, materials_needed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.Exec(ctx, courseInsert,
		course.ID,
		course.UserID,
		course.Title,
		course.Description,
		course.EstimatedTime,
		course.MaterialsNeeded,
		course.CreatedAt,
		course.UpdatedAt,
	); err != nil {
		return mapPgError(err)
	}
	if err := insertSteps(ctx, tx, course.ID, course.Steps); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateCourse replaces the mutable fields and the step list. The owner
// column is deliberately absent from the UPDATE.
func (r *Repository) UpdateCourse(ctx context.Context, course *domain.Course) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const courseUpdate = `UPDATE courses
		SET title = $2,
			description = $3,
			estimated_time = $4,
			materials_needed = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	var updatedAt time.Time
	if err := tx.QueryRow(ctx, courseUpdate,
		course.ID,
		course.Title,
		course.Description,
		course.EstimatedTime,
		course.MaterialsNeeded,
	).Scan(&updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM course_steps WHERE course_id = $1`, course.ID); err != nil {
		return err
	}
	if err := insertSteps(ctx, tx, course.ID, course.Steps); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	course.UpdatedAt = updatedAt
	return nil
}

func insertSteps(ctx context.Context, tx pgx.Tx, courseID string, steps []domain.CourseStep) error {
	if len(steps) == 0 {
		return nil
	}
	const stepInsert = `INSERT INTO course_steps (course_id, step_number, title, description)
		VALUES ($1, $2, $3, $4)`
	batch := &pgx.Batch{}
	for _, step := range steps {
		batch.Queue(stepInsert, courseID, step.StepNumber, step.Title, step.Description)
	}
	br := tx.SendBatch(ctx, batch)
	for range steps {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return mapPgError(err)
		}
	}
	return br.Close()
}

// GetCourseByID fetches a course with its ordered steps.
func (r *Repository) GetCourseByID(ctx context.Context, id string) (*domain.Course, error) {
	const query = `SELECT id, user_id, title, description, estimated_time, materials_needed, created_at, updated_at
		FROM courses WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var course domain.Course
	if err := row.Scan(
		&course.ID,
		&course.UserID,
		&course.Title,
		&course.Description,
		&course.EstimatedTime,
		&course.MaterialsNeeded,
		&course.CreatedAt,
		&course.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	steps, err := r.listSteps(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	course.Steps = steps
	return &course, nil
}

func (r *Repository) listSteps(ctx context.Context, courseID string) ([]domain.CourseStep, error) {
	const query = `SELECT step_number, title, description
		FROM course_steps WHERE course_id = $1 ORDER BY step_number ASC`
	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := make([]domain.CourseStep, 0)
	for rows.Next() {
		var step domain.CourseStep
		if err := rows.Scan(&step.StepNumber, &step.Title, &step.Description); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// ListCourses returns the id/title projection of every course.
func (r *Repository) ListCourses(ctx context.Context) ([]domain.CourseSummary, error) {
	const query = `SELECT id, title FROM courses ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := make([]domain.CourseSummary, 0)
	for rows.Next() {
		var summary domain.CourseSummary
		if err := rows.Scan(&summary.ID, &summary.Title); err != nil {
			return nil, err
		}
		courses = append(courses, summary)
	}
	return courses, rows.Err()
}

// CreateReview inserts a review. A missing course or user surfaces as
// ErrNotFound via the foreign keys.
func (r *Repository) CreateReview(ctx context.Context, review *domain.Review) error {
	const query = `INSERT INTO reviews (id, course_id, user_id, rating, body, posted_on)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query,
		review.ID,
		review.CourseID,
		review.UserID,
		review.Rating,
		review.Body,
		review.PostedOn,
	)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

// GetReviewByID retrieves a review by identifier.
func (r *Repository) GetReviewByID(ctx context.Context, id string) (*domain.Review, error) {
	const query = `SELECT id, course_id, user_id, rating, body, posted_on FROM reviews WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var review domain.Review
	if err := row.Scan(&review.ID, &review.CourseID, &review.UserID, &review.Rating, &review.Body, &review.PostedOn); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

// ListReviewsByCourse returns reviews in posting order.
func (r *Repository) ListReviewsByCourse(ctx context.Context, courseID string) ([]domain.Review, error) {
	const query = `SELECT id, course_id, user_id, rating, body, posted_on
		FROM reviews WHERE course_id = $1 ORDER BY posted_on ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		var review domain.Review
		if err := rows.Scan(&review.ID, &review.CourseID, &review.UserID, &review.Rating, &review.Body, &review.PostedOn); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// DeleteReview removes a review, keyed by both identifiers so a review
// can only be deleted through its own course.
func (r *Repository) DeleteReview(ctx context.Context, reviewID, courseID string) error {
	const query = `DELETE FROM reviews WHERE id = $1 AND course_id = $2`
	cmdTag, err := r.pool.Exec(ctx, query, reviewID, courseID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ping verifies connectivity for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return repository.ErrNotFound
		case "23505":
			return repository.ErrConflict
		case "23514", "22P02":
			return repository.ErrInvalidArgument
		}
	}
	return err
}
