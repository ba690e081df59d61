package policy

import (
	"testing"

	"github.com/courseloop/api/internal/domain"
)

func TestCanEditCourse(t *testing.T) {
	course := &domain.Course{ID: "course-1", UserID: "1f07ad3c-0000-0000-0000-000000000001"}

	if !CanEditCourse("1f07ad3c-0000-0000-0000-000000000001", course) {
		t.Fatalf("owner should be allowed to edit")
	}
	if CanEditCourse("1f07ad3c-0000-0000-0000-000000000002", course) {
		t.Fatalf("non-owner must not edit")
	}
	if CanEditCourse("", course) {
		t.Fatalf("empty actor must not edit")
	}
	if CanEditCourse("owner", nil) {
		t.Fatalf("nil course must deny")
	}
}

func TestCanEditCourseCanonicalEquality(t *testing.T) {
	course := &domain.Course{UserID: "1F07AD3C-0000-0000-0000-00000000000A"}
	if !CanEditCourse("1f07ad3c-0000-0000-0000-00000000000a", course) {
		t.Fatalf("case-variant identifiers must compare equal")
	}
	if !CanEditCourse(" 1f07ad3c-0000-0000-0000-00000000000a ", course) {
		t.Fatalf("surrounding whitespace must not break equality")
	}
}

func TestCanDeleteReview(t *testing.T) {
	course := &domain.Course{UserID: "course-owner"}
	review := &domain.Review{UserID: "review-author"}

	if !CanDeleteReview("course-owner", course, review) {
		t.Fatalf("course owner should be allowed to delete")
	}
	if !CanDeleteReview("review-author", course, review) {
		t.Fatalf("review author should be allowed to delete")
	}
	if CanDeleteReview("third-party", course, review) {
		t.Fatalf("third party must not delete")
	}
	if CanDeleteReview("course-owner", nil, review) || CanDeleteReview("course-owner", course, nil) {
		t.Fatalf("missing entities must deny")
	}
}
