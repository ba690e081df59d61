package domain

import "time"

// Review belongs to one course and one authoring user. The author is
// always the authenticated actor, never a client-supplied reference.
type Review struct {
	ID       string
	CourseID string
	UserID   string
	Rating   int
	Body     string
	PostedOn time.Time
}
