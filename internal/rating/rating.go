// Package rating computes the derived overall rating of a course.
package rating

import (
	"math"

	"github.com/courseloop/api/internal/domain"
)

// Overall returns the rounded mean of the review ratings. The second
// return value is false for an empty set: the aggregate is undefined
// there and callers serialize it as null rather than dividing by zero.
// Rounding is half-up: [4,5] -> 5, [3,4] -> 4.
func Overall(reviews []domain.Review) (int, bool) {
	if len(reviews) == 0 {
		return 0, false
	}
	total := 0
	for _, review := range reviews {
		total += review.Rating
	}
	mean := float64(total) / float64(len(reviews))
	return int(math.Floor(mean + 0.5)), true
}
