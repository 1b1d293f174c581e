package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokestack/smokestack-backend/internal/team/repository"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
	"github.com/smokestack/smokestack-backend/pkg/testutil"
)

func newQcashService(t *testing.T) (*QcashService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	svc := NewQcashService(
		repository.NewQcashRepository(mockDB.DB),
		repository.NewProfileRepository(mockDB.DB),
		logger.Nop(),
	)
	return svc, mockDB
}

func TestAwardRequiresLeaderRole(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "team_member")

	svc, mockDB := newQcashService(t)

	_, err := svc.Award(ctx, uuid.New().String(), 50, "great brisket day")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestAwardInsertsLedgerEntry(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	targetID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "shift_leader")

	svc, mockDB := newQcashService(t)

	now := time.Now().UTC()
	mockDB.ExpectStoreQuery(storeID, "FROM profiles WHERE id = $1",
		testutil.MockRows(profileColumns()...).
			AddRow(targetID, storeID, "marcus@smokestackbbq.com", "Marcus", "Webb", "pitmaster",
				nil, "{}", true, now, now),
	)
	mockDB.ExpectStoreQuery(storeID, "INSERT INTO qcash_transactions",
		testutil.MockRows("created_at").AddRow(now))

	txn, err := svc.Award(ctx, targetID, 50, "great brisket day")
	require.NoError(t, err)
	assert.Equal(t, 50, txn.Amount)
	assert.Equal(t, repository.QcashAward, txn.Type)
	assert.Equal(t, &actorID, txn.AwardedBy)
	assert.Equal(t, storeID, txn.StoreID)

	mockDB.ExpectationsWereMet(t)
}

func TestAwardRejectsNonPositiveAmount(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "manager")

	svc, mockDB := newQcashService(t)

	for _, amount := range []int{0, -25} {
		_, err := svc.Award(ctx, uuid.New().String(), amount, "")
		require.Error(t, err)
		appErr, ok := err.(*errors.AppError)
		require.True(t, ok)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	}

	mockDB.ExpectationsWereMet(t)
}

func TestTransferRejectsSelfTransfer(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "team_member")

	svc, mockDB := newQcashService(t)

	err := svc.Transfer(ctx, actorID, actorID, 10, "")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "BAD_REQUEST", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestTransferByOtherRequiresLeader(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "team_member")

	svc, mockDB := newQcashService(t)

	err := svc.Transfer(ctx, uuid.New().String(), uuid.New().String(), 10, "")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestTransferRejectsInsufficientBalance(t *testing.T) {
	storeID := uuid.New().String()
	fromID := uuid.New().String()
	toID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, fromID, "team_member")

	svc, mockDB := newQcashService(t)

	now := time.Now().UTC()
	mockDB.ExpectStoreQuery(storeID, "FROM profiles WHERE id = $1",
		testutil.MockRows(profileColumns()...).
			AddRow(toID, storeID, "dana@smokestackbbq.com", "Dana", "Ito", "team_member",
				nil, "{}", true, now, now),
	)
	mockDB.ExpectStoreQuery(storeID, "FROM qcash_transactions WHERE profile_id = $1",
		testutil.MockRows("coalesce").AddRow(10))

	err := svc.Transfer(ctx, fromID, toID, 50, "")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "STATE_CONFLICT", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestTransferDebitsAndCreditsAtomically(t *testing.T) {
	storeID := uuid.New().String()
	fromID := uuid.New().String()
	toID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, fromID, "team_member")

	svc, mockDB := newQcashService(t)

	now := time.Now().UTC()
	mockDB.ExpectStoreQuery(storeID, "FROM profiles WHERE id = $1",
		testutil.MockRows(profileColumns()...).
			AddRow(toID, storeID, "dana@smokestackbbq.com", "Dana", "Ito", "team_member",
				nil, "{}", true, now, now),
	)
	mockDB.ExpectStoreQuery(storeID, "FROM qcash_transactions WHERE profile_id = $1",
		testutil.MockRows("coalesce").AddRow(100))

	// Debit and credit land in one transaction, behind a lock on the
	// sender's profile row and a re-checked balance.
	mockDB.ExpectStoreBegin(storeID)
	mockDB.ExpectQuery("FOR UPDATE").
		WillReturnRows(testutil.MockRows("id").AddRow(fromID))
	mockDB.ExpectQuery("FROM qcash_transactions WHERE profile_id = $1").
		WillReturnRows(testutil.MockRows("coalesce").AddRow(100))
	mockDB.ExpectQuery("INSERT INTO qcash_transactions").
		WillReturnRows(testutil.MockRows("created_at").AddRow(now))
	mockDB.ExpectQuery("INSERT INTO qcash_transactions").
		WillReturnRows(testutil.MockRows("created_at").AddRow(now))
	mockDB.ExpectCommit()

	err := svc.Transfer(ctx, fromID, toID, 40, "covering my shift")
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestTransferRechecksBalanceUnderLock(t *testing.T) {
	storeID := uuid.New().String()
	fromID := uuid.New().String()
	toID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, fromID, "team_member")

	svc, mockDB := newQcashService(t)

	now := time.Now().UTC()
	mockDB.ExpectStoreQuery(storeID, "FROM profiles WHERE id = $1",
		testutil.MockRows(profileColumns()...).
			AddRow(toID, storeID, "dana@smokestackbbq.com", "Dana", "Ito", "team_member",
				nil, "{}", true, now, now),
	)
	// The unlocked pre-check still sees enough funds.
	mockDB.ExpectStoreQuery(storeID, "FROM qcash_transactions WHERE profile_id = $1",
		testutil.MockRows("coalesce").AddRow(100))

	// A concurrent transfer drained the balance before the lock was taken.
	mockDB.ExpectStoreBegin(storeID)
	mockDB.ExpectQuery("FOR UPDATE").
		WillReturnRows(testutil.MockRows("id").AddRow(fromID))
	mockDB.ExpectQuery("FROM qcash_transactions WHERE profile_id = $1").
		WillReturnRows(testutil.MockRows("coalesce").AddRow(10))
	mockDB.ExpectRollback()

	err := svc.Transfer(ctx, fromID, toID, 40, "covering my shift")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "STATE_CONFLICT", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}
