package rating

import (
	"testing"

	"github.com/courseloop/api/internal/domain"
)

func reviewsWithRatings(ratings ...int) []domain.Review {
	reviews := make([]domain.Review, 0, len(ratings))
	for _, r := range ratings {
		reviews = append(reviews, domain.Review{Rating: r})
	}
	return reviews
}

func TestOverallEmptySetIsUndefined(t *testing.T) {
	if value, ok := Overall(nil); ok || value != 0 {
		t.Fatalf("expected undefined aggregate for empty set, got %d ok=%v", value, ok)
	}
	if _, ok := Overall([]domain.Review{}); ok {
		t.Fatalf("expected undefined aggregate for empty slice")
	}
}

func TestOverallRoundsHalfUp(t *testing.T) {
	cases := []struct {
		name    string
		ratings []int
		want    int
	}{
		{"single", []int{3}, 3},
		{"uniform", []int{5, 5, 5}, 5},
		{"half rounds up", []int{4, 5}, 5},
		{"below half rounds down", []int{3, 4}, 4},
		{"third stays low", []int{1, 1, 2}, 1},
		{"two thirds rounds up", []int{1, 2, 2}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Overall(reviewsWithRatings(tc.ratings...))
			if !ok {
				t.Fatalf("expected defined aggregate")
			}
			if got != tc.want {
				t.Fatalf("Overall(%v) = %d, want %d", tc.ratings, got, tc.want)
			}
		})
	}
}
