package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/smokestack/smokestack-backend/internal/team/events"
	"github.com/smokestack/smokestack-backend/internal/team/repository"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/messaging"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
	"github.com/smokestack/smokestack-backend/pkg/testutil"
)

func newProfileService(t *testing.T) (*ProfileService, *testutil.MockDB, *testutil.MockPublisher) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	pub := testutil.NewMockPublisher()
	svc := NewProfileService(
		repository.NewProfileRepository(mockDB.DB),
		repository.NewAuditLogRepository(mockDB.DB),
		events.NewTeamEventPublisher(pub, logger.Nop()),
		logger.Nop(),
	)
	return svc, mockDB, pub
}

func profileColumns() []string {
	return []string{
		"id", "store_id", "email", "first_name", "last_name", "role",
		"pin_hash", "permissions", "is_active", "created_at", "updated_at",
	}
}

func TestDeactivateRequiresManagerRole(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "shift_leader")

	svc, mockDB, pub := newProfileService(t)

	err := svc.Deactivate(ctx, uuid.New().String(), "")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestDeactivateWritesAuditAndPublishes(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	targetID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "manager")

	svc, mockDB, pub := newProfileService(t)

	now := time.Now().UTC()
	mockDB.ExpectStoreQuery(storeID, "FROM profiles WHERE id = $1",
		testutil.MockRows(profileColumns()...).
			AddRow(targetID, storeID, "marcus@smokestackbbq.com", "Marcus", "Webb", "pitmaster",
				nil, "{}", true, now, now),
	)
	mockDB.ExpectStoreExec(storeID, "UPDATE profiles SET is_active = $2 WHERE id = $1",
		sqlmock.NewResult(0, 1))
	mockDB.ExpectStoreQuery(storeID, "INSERT INTO audit_logs",
		testutil.MockRows("created_at").AddRow(now))

	err := svc.Deactivate(ctx, targetID, "left the company")
	require.NoError(t, err)

	pub.AssertEventPublished(t, messaging.EventStaffDeactivated)
	require.Len(t, pub.PublishedEvents, 1)
	payload, ok := pub.PublishedEvents[0].Payload.(messaging.StaffDeactivatedPayload)
	require.True(t, ok)
	assert.Equal(t, targetID, payload.ProfileID)
	assert.Equal(t, actorID, payload.DeactivatedBy)
	assert.Equal(t, "left the company", payload.Reason)

	mockDB.ExpectationsWereMet(t)
}

func TestDeactivateInactiveAccountConflicts(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	targetID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "operator")

	svc, mockDB, pub := newProfileService(t)

	now := time.Now().UTC()
	mockDB.ExpectStoreQuery(storeID, "FROM profiles WHERE id = $1",
		testutil.MockRows(profileColumns()...).
			AddRow(targetID, storeID, "dana@smokestackbbq.com", "Dana", "Ito", "team_member",
				nil, "{}", false, now, now),
	)

	err := svc.Deactivate(ctx, targetID, "")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "STATE_CONFLICT", appErr.Code)

	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestImportStaffCreatesBatchInOneTransaction(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "manager")

	svc, mockDB, _ := newProfileService(t)

	now := time.Now().UTC()
	mockDB.ExpectStoreBegin(storeID)
	mockDB.ExpectQuery("INSERT INTO profiles").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectQuery("INSERT INTO profiles").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectCommit()
	mockDB.ExpectStoreQuery(storeID, "INSERT INTO audit_logs",
		testutil.MockRows("created_at").AddRow(now))

	entries := []*repository.Profile{
		{Email: "sarah@smokestackbbq.com", FirstName: "Sarah", LastName: "Chen", Role: "pitmaster"},
		{Email: "luis@smokestackbbq.com", FirstName: "Luis", LastName: "Herrera"},
	}
	err := svc.ImportStaff(ctx, entries)
	require.NoError(t, err)

	for _, p := range entries {
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, storeID, p.StoreID)
		assert.True(t, p.IsActive)
	}
	// Role defaults apply per row.
	assert.Equal(t, "team_member", entries[1].Role)

	mockDB.ExpectationsWereMet(t)
}

func TestImportStaffRequiresManagerRole(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "shift_leader")

	svc, mockDB, _ := newProfileService(t)

	err := svc.ImportStaff(ctx, []*repository.Profile{
		{Email: "sarah@smokestackbbq.com", FirstName: "Sarah", LastName: "Chen"},
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestUpdateRoleChangeRequiresManager(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	targetID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "shift_leader")

	svc, mockDB, _ := newProfileService(t)

	now := time.Now().UTC()
	mockDB.ExpectStoreQuery(storeID, "FROM profiles WHERE id = $1",
		testutil.MockRows(profileColumns()...).
			AddRow(targetID, storeID, "joel@smokestackbbq.com", "Joel", "Reyes", "team_member",
				nil, "{}", true, now, now),
	)

	err := svc.Update(ctx, &repository.Profile{
		ID:        targetID,
		Email:     "joel@smokestackbbq.com",
		FirstName: "Joel",
		LastName:  "Reyes",
		Role:      "shift_leader",
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestSetPinValidatesFormat(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "manager")

	svc, mockDB, _ := newProfileService(t)

	for _, pin := range []string{"123", "123456789", "12ab"} {
		err := svc.SetPin(ctx, actorID, pin)
		require.Error(t, err, "pin %q should be rejected", pin)
		appErr, ok := err.(*errors.AppError)
		require.True(t, ok)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	}

	mockDB.ExpectationsWereMet(t)
}

func TestPinSignInMatchesHashedPin(t *testing.T) {
	storeID := uuid.New().String()
	profileID := uuid.New().String()
	otherID := uuid.New().String()

	svc, mockDB, _ := newProfileService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("4721"), bcrypt.MinCost)
	require.NoError(t, err)
	otherHash, err := bcrypt.GenerateFromPassword([]byte("9999"), bcrypt.MinCost)
	require.NoError(t, err)

	pinColumns := []string{"id", "store_id", "email", "first_name", "last_name", "role", "pin_hash"}
	mockDB.ExpectQuery("FROM active_pin_profiles()").WillReturnRows(
		testutil.MockRows(pinColumns...).
			AddRow(otherID, storeID, "dana@smokestackbbq.com", "Dana", "Ito", "team_member", string(otherHash)).
			AddRow(profileID, storeID, "marcus@smokestackbbq.com", "Marcus", "Webb", "pitmaster", string(hash)),
	)

	profile, err := svc.PinSignIn(context.Background(), "4721")
	require.NoError(t, err)
	assert.Equal(t, profileID, profile.ID)
	assert.Equal(t, storeID, profile.StoreID)

	mockDB.ExpectationsWereMet(t)
}

func TestPinSignInRejectsUnknownPin(t *testing.T) {
	storeID := uuid.New().String()

	svc, mockDB, _ := newProfileService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("4721"), bcrypt.MinCost)
	require.NoError(t, err)

	pinColumns := []string{"id", "store_id", "email", "first_name", "last_name", "role", "pin_hash"}
	mockDB.ExpectQuery("FROM active_pin_profiles()").WillReturnRows(
		testutil.MockRows(pinColumns...).
			AddRow(uuid.New().String(), storeID, "marcus@smokestackbbq.com", "Marcus", "Webb", "pitmaster", string(hash)),
	)

	_, err = svc.PinSignIn(context.Background(), "0000")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "INVALID_CREDENTIALS", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestListAuditLogRequiresLeader(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "team_member")

	svc, mockDB, _ := newProfileService(t)

	_, err := svc.ListAuditLog(ctx, 50)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}
