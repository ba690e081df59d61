package domain

import "time"

// Course is owned by exactly one user. The owner reference is set at
// creation and never reassigned.
type Course struct {
	ID              string
	UserID          string
	Title           string
	Description     string
	EstimatedTime   string
	MaterialsNeeded string
	Steps           []CourseStep
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CourseStep is one ordered instruction within a course.
type CourseStep struct {
	StepNumber  int
	Title       string
	Description string
}

// CourseSummary is the projection returned by course listings.
type CourseSummary struct {
	ID    string
	Title string
}
