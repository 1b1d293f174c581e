package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/smokestack/smokestack-backend/pkg/database"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	globalAppDSN    string
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite. The container
// is shared across suites; migrations run once.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
//
//	func TestSomething(t *testing.T) {
//	    ctx := context.Background()
//	    store := suite.SetupStore(t, ctx)
//	    manager := suite.SetupProfile(t, ctx, store.ID, testutil.WithRole("manager"))
//	    ctx = suite.StoreContext(store, manager.ID, "manager")
//	    // ... run tests scoped to the store
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	// Repositories connect as the non-owner app role so the RLS policies
	// actually apply; RawDB keeps the owner connection for fixtures.
	log := logger.Nop()
	wrappedDB, err := database.NewWithDSN(globalAppDSN, log)
	if err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        wrappedDB,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// getOrCreateContainer returns the shared, migrated test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
		if containerErr != nil {
			return
		}
		containerErr = globalContainer.Migrate(ctx, globalDB)
		if containerErr != nil {
			return
		}
		globalAppDSN, containerErr = globalContainer.CreateAppRole(ctx, globalDB)
	})

	return globalContainer, globalDB, containerErr
}

// SetupStore creates a store row for a specific test. Each test should use
// its own store so RLS keeps its data isolated from other tests.
func (s *IntegrationSuite) SetupStore(t *testing.T, ctx context.Context, opts ...func(*StoreFixture)) StoreFixture {
	t.Helper()

	store := s.Fixtures.Store(opts...)
	_, err := s.RawDB.ExecContext(ctx,
		`INSERT INTO stores (id, name, address, phone, onboarding_step) VALUES ($1, $2, NULLIF($3, ''), $4, $5)`,
		store.ID, store.Name, store.Address, store.Phone, store.OnboardingStep,
	)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	t.Cleanup(func() {
		if _, err := s.RawDB.Exec(`DELETE FROM stores WHERE id = $1`, store.ID); err != nil {
			t.Logf("warning: failed to delete test store %s: %v", store.ID, err)
		}
	})

	return store
}

// SetupProfile inserts a profile fixture into the given store
func (s *IntegrationSuite) SetupProfile(t *testing.T, ctx context.Context, storeID string, opts ...func(*ProfileFixture)) ProfileFixture {
	t.Helper()

	profile := s.Fixtures.Profile(storeID, opts...)
	_, err := s.RawDB.ExecContext(ctx,
		`INSERT INTO profiles (id, store_id, email, first_name, last_name, role, pin_hash, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		profile.ID, profile.StoreID, profile.Email, profile.FirstName, profile.LastName,
		profile.Role, profile.PinHash, profile.IsActive,
	)
	if err != nil {
		t.Fatalf("failed to create test profile: %v", err)
	}

	return profile
}

// StoreContext returns a context scoped to the store with an acting profile
func (s *IntegrationSuite) StoreContext(store StoreFixture, profileID, role string) context.Context {
	return storectx.WithScope(context.Background(), store.ID, profileID, role)
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// UnitTestSuite provides a base for unit tests with mocked dependencies
type UnitTestSuite struct {
	MockDB   *MockDB
	Fixtures *FixtureFactory
	t        *testing.T
}

// NewUnitTestSuite creates a new unit test suite
func NewUnitTestSuite(t *testing.T) *UnitTestSuite {
	return &UnitTestSuite{
		MockDB:   NewMockDB(t),
		Fixtures: NewFixtureFactory(),
		t:        t,
	}
}

// Cleanup verifies expectations and cleans up
func (s *UnitTestSuite) Cleanup() {
	s.MockDB.ExpectationsWereMet(s.t)
	s.MockDB.Close()
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
