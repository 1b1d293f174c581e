package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"start a task", StatusPending, StatusInProgress, true},
		{"complete directly from pending", StatusPending, StatusCompleted, true},
		{"skip from pending", StatusPending, StatusSkipped, true},
		{"complete from in_progress", StatusInProgress, StatusCompleted, true},
		{"skip from in_progress", StatusInProgress, StatusSkipped, true},
		{"reopen a completed task", StatusCompleted, StatusInProgress, true},
		{"skipped reopens only to pending", StatusSkipped, StatusPending, true},
		{"skipped cannot jump to in_progress", StatusSkipped, StatusInProgress, false},
		{"completed cannot go back to pending", StatusCompleted, StatusPending, false},
		{"in_progress cannot go back to pending", StatusInProgress, StatusPending, false},
		{"no self transition", StatusPending, StatusPending, false},
		{"unknown state", "bogus", StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		statuses []string
		deadline *time.Time
		want     string
	}{
		{"all pending", []string{StatusPending, StatusPending}, nil, ChecklistPending},
		{"no tasks counts as pending", nil, nil, ChecklistPending},
		{"one started", []string{StatusInProgress, StatusPending}, nil, ChecklistInProgress},
		{"some done, not all terminal", []string{StatusCompleted, StatusCompleted, StatusPending}, nil, ChecklistInProgress},
		{"all completed", []string{StatusCompleted, StatusCompleted}, nil, ChecklistCompleted},
		{"completed and skipped is still completed", []string{StatusCompleted, StatusSkipped}, nil, ChecklistCompleted},
		{"past deadline, unfinished", []string{StatusCompleted, StatusPending}, &past, ChecklistOverdue},
		{"past deadline but finished", []string{StatusCompleted, StatusSkipped}, &past, ChecklistCompleted},
		{"future deadline, unfinished", []string{StatusInProgress}, &future, ChecklistInProgress},
		{"past deadline, nothing started", []string{StatusPending}, &past, ChecklistOverdue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.statuses, tt.deadline, now))
		})
	}
}

func TestProgress(t *testing.T) {
	t.Run("two of three completed rounds to 67", func(t *testing.T) {
		statuses := []string{StatusCompleted, StatusCompleted, StatusInProgress}
		assert.Equal(t, 67, Progress(statuses))
		assert.Equal(t, ChecklistInProgress, DeriveStatus(statuses, nil, time.Now()))
	})

	t.Run("skipped tasks do not count toward progress", func(t *testing.T) {
		assert.Equal(t, 50, Progress([]string{StatusCompleted, StatusSkipped}))
	})

	t.Run("empty checklist", func(t *testing.T) {
		assert.Equal(t, 0, Progress(nil))
	})

	t.Run("all completed", func(t *testing.T) {
		assert.Equal(t, 100, Progress([]string{StatusCompleted, StatusCompleted}))
	})

	t.Run("one of three", func(t *testing.T) {
		assert.Equal(t, 33, Progress([]string{StatusCompleted, StatusPending, StatusPending}))
	})
}
