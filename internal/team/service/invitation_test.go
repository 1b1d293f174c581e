package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokestack/smokestack-backend/internal/team/events"
	"github.com/smokestack/smokestack-backend/internal/team/repository"
	"github.com/smokestack/smokestack-backend/pkg/config"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/messaging"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
	"github.com/smokestack/smokestack-backend/pkg/testutil"
)

func newInvitationService(t *testing.T) (*InvitationService, *testutil.MockDB, *testutil.MockPublisher) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	pub := testutil.NewMockPublisher()
	svc := NewInvitationService(
		repository.NewInvitationRepository(mockDB.DB),
		repository.NewProfileRepository(mockDB.DB),
		repository.NewStoreRepository(mockDB.DB),
		events.NewTeamEventPublisher(pub, logger.Nop()),
		&config.InviteConfig{BaseURL: "https://app.smokestackbbq.com", Expiry: 7 * 24 * time.Hour},
		logger.Nop(),
	)
	return svc, mockDB, pub
}

func invitationColumns() []string {
	return []string{
		"id", "store_id", "email", "first_name", "last_name", "role",
		"token_hash", "status", "invited_by", "expires_at", "accepted_at", "created_at",
	}
}

func TestInviteRequiresManagerRole(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "shift_leader")

	svc, mockDB, pub := newInvitationService(t)

	_, err := svc.Invite(ctx, &repository.Invitation{Email: "new@smokestackbbq.com"})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestInviteRejectsDuplicatePending(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "manager")

	svc, mockDB, pub := newInvitationService(t)

	now := time.Now().UTC()
	mockDB.ExpectStoreQuery(storeID, "FROM employee_invitations WHERE email = $1",
		testutil.MockRows(invitationColumns()...).
			AddRow(uuid.New().String(), storeID, "new@smokestackbbq.com", "Rosa", "Delgado", "team_member",
				"abc123", repository.InvitationPending, nil, now.Add(72*time.Hour), nil, now),
	)

	_, err := svc.Invite(ctx, &repository.Invitation{
		Email:     "new@smokestackbbq.com",
		FirstName: "Rosa",
		LastName:  "Delgado",
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "CONFLICT", appErr.Code)

	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestInviteHashesTokenAndPublishes(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "manager")

	svc, mockDB, pub := newInvitationService(t)

	now := time.Now().UTC()
	mockDB.ExpectStoreBegin(storeID)
	mockDB.ExpectQuery("FROM employee_invitations WHERE email = $1").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectRollback()

	mockDB.ExpectStoreQuery(storeID, "INSERT INTO employee_invitations",
		testutil.MockRows("created_at").AddRow(now))

	storeColumns := []string{"id", "name", "address", "phone", "timezone", "onboarding_step", "created_at", "updated_at"}
	addr := "412 Hickory Pit Rd"
	mockDB.ExpectQuery("FROM stores WHERE id = $1").WillReturnRows(
		testutil.MockRows(storeColumns...).
			AddRow(storeID, "Smokestack Riverside", addr, nil, "America/Chicago", "completed", now, now),
	)

	inv, err := svc.Invite(ctx, &repository.Invitation{
		Email:     "rosa@smokestackbbq.com",
		FirstName: "Rosa",
		LastName:  "Delgado",
	})
	require.NoError(t, err)
	assert.Equal(t, "team_member", inv.Role)
	assert.Equal(t, &actorID, inv.InvitedBy)

	pub.AssertEventPublished(t, messaging.EventStaffInvited)
	require.Len(t, pub.PublishedEvents, 1)
	payload, ok := pub.PublishedEvents[0].Payload.(messaging.StaffInvitedPayload)
	require.True(t, ok)
	assert.Equal(t, "Smokestack Riverside", payload.StoreName)
	require.NotEmpty(t, payload.InviteToken)

	// Only the hash is persisted; the raw token travels in the event.
	sum := sha256.Sum256([]byte(payload.InviteToken))
	assert.Equal(t, hex.EncodeToString(sum[:]), inv.TokenHash)

	mockDB.ExpectationsWereMet(t)
}

func TestAcceptExpiredInvitation(t *testing.T) {
	storeID := uuid.New().String()
	invitationID := uuid.New().String()

	svc, mockDB, _ := newInvitationService(t)

	now := time.Now().UTC()
	mockDB.ExpectQuery("FROM invitation_by_token_hash($1)").WillReturnRows(
		testutil.MockRows(invitationColumns()...).
			AddRow(invitationID, storeID, "rosa@smokestackbbq.com", "Rosa", "Delgado", "team_member",
				"hash", repository.InvitationPending, nil, now.Add(-time.Hour), nil, now.Add(-73*time.Hour)),
	)
	mockDB.ExpectStoreExec(storeID, "UPDATE employee_invitations",
		sqlmock.NewResult(0, 1))

	_, err := svc.Accept(context.Background(), "stale-token")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "STATE_CONFLICT", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestAcceptCreatesProfileInInvitingStore(t *testing.T) {
	storeID := uuid.New().String()
	invitationID := uuid.New().String()

	svc, mockDB, _ := newInvitationService(t)

	now := time.Now().UTC()
	mockDB.ExpectQuery("FROM invitation_by_token_hash($1)").WillReturnRows(
		testutil.MockRows(invitationColumns()...).
			AddRow(invitationID, storeID, "rosa@smokestackbbq.com", "Rosa", "Delgado", "prep_cook",
				"hash", repository.InvitationPending, nil, now.Add(48*time.Hour), nil, now),
	)
	mockDB.ExpectStoreQuery(storeID, "INSERT INTO profiles",
		testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectStoreExec(storeID, "UPDATE employee_invitations",
		sqlmock.NewResult(0, 1))

	profile, err := svc.Accept(context.Background(), "fresh-token")
	require.NoError(t, err)
	assert.Equal(t, storeID, profile.StoreID)
	assert.Equal(t, "rosa@smokestackbbq.com", profile.Email)
	assert.Equal(t, "prep_cook", profile.Role)
	assert.True(t, profile.IsActive)

	mockDB.ExpectationsWereMet(t)
}

func TestAcceptAlreadyAcceptedInvitation(t *testing.T) {
	storeID := uuid.New().String()

	svc, mockDB, _ := newInvitationService(t)

	now := time.Now().UTC()
	accepted := now.Add(-time.Hour)
	mockDB.ExpectQuery("FROM invitation_by_token_hash($1)").WillReturnRows(
		testutil.MockRows(invitationColumns()...).
			AddRow(uuid.New().String(), storeID, "rosa@smokestackbbq.com", "Rosa", "Delgado", "team_member",
				"hash", repository.InvitationAccepted, nil, now.Add(48*time.Hour), &accepted, now),
	)

	_, err := svc.Accept(context.Background(), "used-token")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "STATE_CONFLICT", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestRevokeNonPendingInvitation(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	invitationID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "manager")

	svc, mockDB, _ := newInvitationService(t)

	now := time.Now().UTC()
	accepted := now.Add(-time.Hour)
	mockDB.ExpectStoreQuery(storeID, "FROM employee_invitations WHERE id = $1",
		testutil.MockRows(invitationColumns()...).
			AddRow(invitationID, storeID, "rosa@smokestackbbq.com", "Rosa", "Delgado", "team_member",
				"hash", repository.InvitationAccepted, nil, now.Add(48*time.Hour), &accepted, now),
	)

	err := svc.Revoke(ctx, invitationID)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "INVALID_STATE_TRANSITION", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}
