package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokestack/smokestack-backend/internal/shift/repository"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
	"github.com/smokestack/smokestack-backend/pkg/testutil"
)

type fixedStaffPool struct {
	ids []string
}

func (p *fixedStaffPool) ActiveIDs(ctx context.Context) ([]string, error) {
	return p.ids, nil
}

func newShiftService(t *testing.T, pool []string) (*ShiftService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	svc := NewShiftService(
		repository.NewShiftRepository(mockDB.DB),
		&fixedStaffPool{ids: pool},
		logger.Nop(),
	)
	return svc, mockDB
}

func TestCreateShiftAppliesDefaultTimes(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "manager")

	svc, mockDB := newShiftService(t, nil)

	now := time.Now().UTC()
	date := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)

	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectQuery("INSERT INTO shifts").
		WithArgs(testutil.AnyUUID{}, storeID, date, "dinner", "15:00", "21:00", nil).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectCommit()

	shift, err := svc.Create(ctx, CreateShiftInput{Date: date, ShiftType: "dinner"})
	require.NoError(t, err)
	assert.Equal(t, "15:00", shift.StartTime)
	assert.Equal(t, "21:00", shift.EndTime)

	mockDB.ExpectationsWereMet(t)
}

func TestCreateShiftRejectsUnknownType(t *testing.T) {
	storeID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, uuid.New().String(), "manager")

	svc, mockDB := newShiftService(t, nil)

	_, err := svc.Create(ctx, CreateShiftInput{Date: time.Now(), ShiftType: "graveyard"})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func shiftRow(id, storeID string, now time.Time) *sqlmock.Rows {
	return testutil.MockRows("id", "store_id", "date", "shift_type", "start_time", "end_time", "notes", "created_at", "updated_at").
		AddRow(id, storeID, now, "opening", "05:00", "11:00", nil, now, now)
}

func assignmentColumns() []string {
	return []string{"id", "store_id", "shift_id", "profile_id", "primary_role", "secondary_roles", "buddy_id", "created_at"}
}

func TestAddToRosterIsIdempotent(t *testing.T) {
	storeID := uuid.New().String()
	shiftID := uuid.New().String()
	marcus := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, uuid.New().String(), "shift_leader")

	svc, mockDB := newShiftService(t, []string{marcus})

	now := time.Now().UTC()
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectQuery("FROM shifts").WillReturnRows(shiftRow(shiftID, storeID, now))
	mockDB.Mock.ExpectQuery("FROM shift_assignments").
		WillReturnRows(testutil.MockRows(assignmentColumns()...).
			AddRow(uuid.New().String(), storeID, shiftID, marcus, "pitmaster", "{}", nil, now))
	mockDB.ExpectCommit()

	a := &repository.Assignment{ProfileID: marcus, PrimaryRole: "pitmaster"}
	err := svc.AddToRoster(ctx, shiftID, a)
	require.NoError(t, err)
	assert.Equal(t, shiftID, a.ShiftID)

	mockDB.ExpectationsWereMet(t)
}

func TestAddToRosterRejectsInactiveStaff(t *testing.T) {
	storeID := uuid.New().String()
	shiftID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, uuid.New().String(), "shift_leader")

	svc, mockDB := newShiftService(t, nil)

	now := time.Now().UTC()
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectQuery("FROM shifts").WillReturnRows(shiftRow(shiftID, storeID, now))
	mockDB.Mock.ExpectQuery("FROM shift_assignments").
		WillReturnRows(testutil.MockRows(assignmentColumns()...))
	mockDB.ExpectRollback()

	err := svc.AddToRoster(ctx, shiftID, &repository.Assignment{ProfileID: uuid.New().String(), PrimaryRole: "prep_cook"})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "BAD_REQUEST", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestUpdateRosterEntryRequiresBuddyOnShift(t *testing.T) {
	storeID := uuid.New().String()
	shiftID := uuid.New().String()
	marcus := uuid.New().String()
	stranger := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, uuid.New().String(), "shift_leader")

	svc, mockDB := newShiftService(t, []string{marcus})

	now := time.Now().UTC()
	assignmentID := uuid.New().String()
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectQuery("FROM shifts").WillReturnRows(shiftRow(shiftID, storeID, now))
	mockDB.Mock.ExpectQuery("FROM shift_assignments").
		WillReturnRows(testutil.MockRows(assignmentColumns()...).
			AddRow(assignmentID, storeID, shiftID, marcus, "pitmaster", "{}", nil, now))
	mockDB.ExpectRollback()

	err := svc.UpdateRosterEntry(ctx, shiftID, &repository.Assignment{
		ID:          assignmentID,
		PrimaryRole: "pitmaster",
		BuddyID:     &stranger,
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "BAD_REQUEST", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func newSetupSheetService(t *testing.T, pool []string) (*SetupSheetService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	svc := NewSetupSheetService(
		repository.NewSetupSheetRepository(mockDB.DB),
		&fixedStaffPool{ids: pool},
		logger.Nop(),
	)
	return svc, mockDB
}

func positionColumns() []string {
	return []string{"id", "store_id", "sheet_id", "name", "position", "assigned_to", "created_at", "updated_at"}
}

// Assigning over a filled station displaces its occupant back to the
// pool; only the contested station is rewritten.
func TestAssignPositionDisplacesOccupant(t *testing.T) {
	storeID := uuid.New().String()
	sheetID := uuid.New().String()
	cutting := uuid.New().String()
	window := uuid.New().String()
	sarah := uuid.New().String()
	luis := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, uuid.New().String(), "shift_leader")

	svc, mockDB := newSetupSheetService(t, []string{sarah, luis})

	now := time.Now().UTC()
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectQuery("FROM setup_sheets").
		WillReturnRows(testutil.MockRows("id", "store_id", "date", "shift_type", "notes", "created_at", "updated_at").
			AddRow(sheetID, storeID, now, "opening", nil, now, now))
	mockDB.Mock.ExpectQuery("FROM setup_positions").
		WillReturnRows(testutil.MockRows(positionColumns()...).
			AddRow(cutting, storeID, sheetID, "Cutting block", 0, nil, now, now).
			AddRow(window, storeID, sheetID, "Order window", 1, &luis, now, now))
	mockDB.Mock.ExpectExec("UPDATE setup_positions SET assigned_to").
		WithArgs(window, sarah).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := svc.AssignPosition(ctx, sheetID, window, sarah)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestUnassignEmptyPositionConflicts(t *testing.T) {
	storeID := uuid.New().String()
	sheetID := uuid.New().String()
	window := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, uuid.New().String(), "shift_leader")

	svc, mockDB := newSetupSheetService(t, nil)

	now := time.Now().UTC()
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectQuery("FROM setup_sheets").
		WillReturnRows(testutil.MockRows("id", "store_id", "date", "shift_type", "notes", "created_at", "updated_at").
			AddRow(sheetID, storeID, now, "opening", nil, now, now))
	mockDB.Mock.ExpectQuery("FROM setup_positions").
		WillReturnRows(testutil.MockRows(positionColumns()...).
			AddRow(window, storeID, sheetID, "Order window", 0, nil, now, now))
	mockDB.ExpectRollback()

	err := svc.UnassignPosition(ctx, sheetID, window)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "STATE_CONFLICT", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}
