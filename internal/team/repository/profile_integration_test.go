package repository_test

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokestack/smokestack-backend/internal/team/repository"
	"github.com/smokestack/smokestack-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func TestProfileRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	store := suite.SetupStore(t, ctx)
	manager := suite.SetupProfile(t, ctx, store.ID, testutil.WithRole("manager"))
	storeCtx := suite.StoreContext(store, manager.ID, "manager")

	repo := repository.NewProfileRepository(suite.DB)

	p := &repository.Profile{
		Email:     "sarah.chen@smokestackbbq.com",
		FirstName: "Sarah",
		LastName:  "Chen",
		Role:      "pitmaster",
		IsActive:  true,
	}
	err := repo.Create(storeCtx, p)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, store.ID, p.StoreID)

	got, err := repo.GetByID(storeCtx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sarah", got.FirstName)
	assert.Equal(t, "pitmaster", got.Role)
	assert.True(t, got.IsActive)
}

func TestProfileRepository_ListActiveOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	store := suite.SetupStore(t, ctx)
	manager := suite.SetupProfile(t, ctx, store.ID, testutil.WithRole("manager"))
	suite.SetupProfile(t, ctx, store.ID, testutil.WithName("Luis", "Herrera"))
	former := suite.SetupProfile(t, ctx, store.ID, testutil.WithName("Jamie", "Okafor"), testutil.Deactivated())
	storeCtx := suite.StoreContext(store, manager.ID, "manager")

	repo := repository.NewProfileRepository(suite.DB)

	all, err := repo.List(storeCtx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := repo.List(storeCtx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
	for _, p := range active {
		assert.NotEqual(t, former.ID, p.ID)
	}

	ids, err := repo.ActiveIDs(storeCtx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestProfileRepository_StoreIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	store1 := suite.SetupStore(t, ctx)
	store2 := suite.SetupStore(t, ctx)
	manager1 := suite.SetupProfile(t, ctx, store1.ID, testutil.WithRole("manager"))
	manager2 := suite.SetupProfile(t, ctx, store2.ID, testutil.WithRole("manager"))
	crew1 := suite.SetupProfile(t, ctx, store1.ID, testutil.WithName("Only", "StoreOne"))

	ctx1 := suite.StoreContext(store1, manager1.ID, "manager")
	ctx2 := suite.StoreContext(store2, manager2.ID, "manager")

	repo := repository.NewProfileRepository(suite.DB)

	// Store 1 sees its own crew member.
	got, err := repo.GetByID(ctx1, crew1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Only", got.FirstName)

	// Store 2 cannot see across the fence.
	notFound, err := repo.GetByID(ctx2, crew1.ID)
	assert.Error(t, err)
	assert.Nil(t, notFound)

	list2, err := repo.List(ctx2, false)
	require.NoError(t, err)
	for _, p := range list2 {
		assert.Equal(t, store2.ID, p.StoreID)
	}
}

func TestQcashRepository_LedgerBalance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	store := suite.SetupStore(t, ctx)
	leader := suite.SetupProfile(t, ctx, store.ID, testutil.WithRole("shift_leader"))
	crew := suite.SetupProfile(t, ctx, store.ID)
	storeCtx := suite.StoreContext(store, leader.ID, "shift_leader")

	repo := repository.NewQcashRepository(suite.DB)

	err := repo.Insert(storeCtx, &repository.QcashTransaction{
		ProfileID: crew.ID,
		Amount:    75,
		Type:      repository.QcashAward,
		AwardedBy: &leader.ID,
	})
	require.NoError(t, err)

	out := &repository.QcashTransaction{ProfileID: crew.ID, Amount: -25, Type: repository.QcashTransferOut}
	in := &repository.QcashTransaction{ProfileID: leader.ID, Amount: 25, Type: repository.QcashTransferIn}
	require.NoError(t, repo.InsertPair(storeCtx, out, in))

	balance, err := repo.Balance(storeCtx, crew.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)

	ledger, err := repo.ListByProfile(storeCtx, crew.ID, 10)
	require.NoError(t, err)
	assert.Len(t, ledger, 2)
}
