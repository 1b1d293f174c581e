package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/smokestack/smokestack-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "role_valid"):
		return errors.Validation(map[string]string{
			"role": "must be one of: team_member, prep_cook, pitmaster, shift_leader, manager, operator",
		})

	case strings.Contains(constraint, "shift_type_valid"):
		return errors.Validation(map[string]string{
			"shift_type": "must be one of: opening, lunch, dinner, closing, all_day",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.BadRequest("invalid status value")

	case strings.Contains(constraint, "rating_valid"):
		return errors.Validation(map[string]string{
			"performance_rating": "must be one of: below_expectations, met_expectations, exceeded_expectations",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "checklists_template_date"):
		return "a checklist for this template and date already exists"
	case strings.Contains(constraint, "training_instances_template_profile"):
		return "this staff member is already assigned this training"
	case strings.Contains(constraint, "setup_sheets_store_date_shift"):
		return "a setup sheet for this date and shift already exists"
	case strings.Contains(constraint, "email"):
		return "a record with this email already exists"
	default:
		return "a record with these values already exists"
	}
}
