// Package domain holds the checklist task state machine and the derived
// checklist status computation. Everything here is pure; persistence and
// authorization live in the repository and service layers.
package domain

import (
	"math"
	"time"
)

// Task states
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusSkipped    = "skipped"
)

// Performance ratings, stored only on completed tasks
const (
	RatingBelow    = "below_expectations"
	RatingMet      = "met_expectations"
	RatingExceeded = "exceeded_expectations"
)

// Derived checklist states
const (
	ChecklistPending    = "pending"
	ChecklistInProgress = "in_progress"
	ChecklistCompleted  = "completed"
	ChecklistOverdue    = "overdue"
)

// ValidRating reports whether a rating value is in the enumerated set
func ValidRating(rating string) bool {
	switch rating {
	case RatingBelow, RatingMet, RatingExceeded:
		return true
	}
	return false
}

// CanTransition reports whether a task may move between two states:
// pending to in_progress to completed or skipped; completed reopens to
// in_progress; skipped reopens only to pending.
func CanTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress || to == StatusCompleted || to == StatusSkipped
	case StatusInProgress:
		return to == StatusCompleted || to == StatusSkipped
	case StatusCompleted:
		return to == StatusInProgress
	case StatusSkipped:
		return to == StatusPending
	}
	return false
}

// terminal reports whether a task needs no further action
func terminal(status string) bool {
	return status == StatusCompleted || status == StatusSkipped
}

// DeriveStatus computes a checklist's status from its task states and a
// caller-supplied deadline. The result is always recomputed, never read
// from a stored column. A checklist with no tasks counts as pending.
func DeriveStatus(taskStatuses []string, deadline *time.Time, now time.Time) string {
	allTerminal := len(taskStatuses) > 0
	anyStarted := false

	for _, status := range taskStatuses {
		if !terminal(status) {
			allTerminal = false
		}
		if status != StatusPending {
			anyStarted = true
		}
	}

	if allTerminal {
		return ChecklistCompleted
	}
	if deadline != nil && now.After(*deadline) {
		return ChecklistOverdue
	}
	if anyStarted {
		return ChecklistInProgress
	}
	return ChecklistPending
}

// Progress returns the completed share of tasks as a whole percentage,
// rounded to the nearest integer. Skipped tasks do not count as completed.
func Progress(taskStatuses []string) int {
	if len(taskStatuses) == 0 {
		return 0
	}
	completed := 0
	for _, status := range taskStatuses {
		if status == StatusCompleted {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(taskStatuses)) * 100))
}
