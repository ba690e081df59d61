// Package policy decides whether an actor may mutate a course or review.
package policy

import (
	"strings"

	"github.com/courseloop/api/internal/domain"
)

// canonicalID normalizes an identifier for comparison. Identifiers are
// UUID strings; two values that differ only in case or surrounding
// whitespace refer to the same entity.
func canonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func sameID(a, b string) bool {
	return canonicalID(a) != "" && canonicalID(a) == canonicalID(b)
}

// CanEditCourse reports whether the actor owns the course.
func CanEditCourse(actorID string, course *domain.Course) bool {
	if course == nil {
		return false
	}
	return sameID(actorID, course.UserID)
}

// CanDeleteReview reports whether the actor owns the course or authored
// the review. Deletion rights are broader than edit rights.
func CanDeleteReview(actorID string, course *domain.Course, review *domain.Review) bool {
	if course == nil || review == nil {
		return false
	}
	return sameID(actorID, course.UserID) || sameID(actorID, review.UserID)
}
