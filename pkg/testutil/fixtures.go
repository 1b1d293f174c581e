package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// StoreFixture represents test store data
type StoreFixture struct {
	ID             string
	Name           string
	Address        string
	Phone          string
	OnboardingStep string
	CreatedAt      time.Time
}

// ProfileFixture represents test staff profile data
type ProfileFixture struct {
	ID        string
	StoreID   string
	Email     string
	FirstName string
	LastName  string
	Role      string
	PinHash   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChecklistTemplateFixture represents test checklist template data
type ChecklistTemplateFixture struct {
	ID        string
	StoreID   string
	Name      string
	ShiftType string
	IsActive  bool
}

// TrainingTemplateFixture represents test training template data
type TrainingTemplateFixture struct {
	ID                    string
	StoreID               string
	Name                  string
	CertificationRequired bool
	ValidityDays          *int
}

// ShiftFixture represents test shift data
type ShiftFixture struct {
	ID        string
	StoreID   string
	Date      time.Time
	ShiftType string
	StartTime string
	EndTime   string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Store creates a store fixture with defaults
func (f *FixtureFactory) Store(opts ...func(*StoreFixture)) StoreFixture {
	seq := f.nextSeq()

	store := StoreFixture{
		ID:             uuid.New().String(),
		Name:           fmt.Sprintf("Smokestack BBQ #%d", seq),
		Address:        fmt.Sprintf("%d Brisket Lane, Austin, TX", 100+seq),
		Phone:          "512-555-0199",
		OnboardingStep: "completed",
		CreatedAt:      time.Now(),
	}

	for _, opt := range opts {
		opt(&store)
	}

	return store
}

// WithStoreName sets the store name
func WithStoreName(name string) func(*StoreFixture) {
	return func(s *StoreFixture) {
		s.Name = name
	}
}

// WithOnboardingStep sets the store's onboarding step
func WithOnboardingStep(step string) func(*StoreFixture) {
	return func(s *StoreFixture) {
		s.OnboardingStep = step
	}
}

// WithoutAddress clears the store address
func WithoutAddress() func(*StoreFixture) {
	return func(s *StoreFixture) {
		s.Address = ""
	}
}

// Profile creates a staff profile fixture with defaults
func (f *FixtureFactory) Profile(storeID string, opts ...func(*ProfileFixture)) ProfileFixture {
	seq := f.nextSeq()
	hash, _ := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)

	profile := ProfileFixture{
		ID:        uuid.New().String(),
		StoreID:   storeID,
		Email:     fmt.Sprintf("staff%d@smokestackbbq.com", seq),
		FirstName: fmt.Sprintf("Test%d", seq),
		LastName:  "Staff",
		Role:      "team_member",
		PinHash:   string(hash),
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&profile)
	}

	return profile
}

// WithEmail sets the profile email
func WithEmail(email string) func(*ProfileFixture) {
	return func(p *ProfileFixture) {
		p.Email = email
	}
}

// WithName sets the profile's first and last name
func WithName(first, last string) func(*ProfileFixture) {
	return func(p *ProfileFixture) {
		p.FirstName = first
		p.LastName = last
	}
}

// WithRole sets the profile role
func WithRole(role string) func(*ProfileFixture) {
	return func(p *ProfileFixture) {
		p.Role = role
	}
}

// WithPin sets the profile PIN (hashed)
func WithPin(pin string) func(*ProfileFixture) {
	return func(p *ProfileFixture) {
		hash, _ := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
		p.PinHash = string(hash)
	}
}

// Deactivated marks the profile as inactive
func Deactivated() func(*ProfileFixture) {
	return func(p *ProfileFixture) {
		p.IsActive = false
	}
}

// ChecklistTemplate creates a checklist template fixture with defaults
func (f *FixtureFactory) ChecklistTemplate(storeID string, opts ...func(*ChecklistTemplateFixture)) ChecklistTemplateFixture {
	seq := f.nextSeq()

	tmpl := ChecklistTemplateFixture{
		ID:        uuid.New().String(),
		StoreID:   storeID,
		Name:      fmt.Sprintf("Opening Checklist %d", seq),
		ShiftType: "opening",
		IsActive:  true,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	return tmpl
}

// WithShiftType sets the template shift type
func WithShiftType(shiftType string) func(*ChecklistTemplateFixture) {
	return func(t *ChecklistTemplateFixture) {
		t.ShiftType = shiftType
	}
}

// TrainingTemplate creates a training template fixture with defaults
func (f *FixtureFactory) TrainingTemplate(storeID string, opts ...func(*TrainingTemplateFixture)) TrainingTemplateFixture {
	seq := f.nextSeq()

	tmpl := TrainingTemplateFixture{
		ID:                    uuid.New().String(),
		StoreID:               storeID,
		Name:                  fmt.Sprintf("Food Safety Training %d", seq),
		CertificationRequired: false,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	return tmpl
}

// WithCertification marks the training as certification-bearing with a validity window
func WithCertification(validityDays int) func(*TrainingTemplateFixture) {
	return func(t *TrainingTemplateFixture) {
		t.CertificationRequired = true
		t.ValidityDays = &validityDays
	}
}

// Shift creates a shift fixture with defaults
func (f *FixtureFactory) Shift(storeID string, opts ...func(*ShiftFixture)) ShiftFixture {
	shift := ShiftFixture{
		ID:        uuid.New().String(),
		StoreID:   storeID,
		Date:      time.Now().Truncate(24 * time.Hour),
		ShiftType: "lunch",
		StartTime: "11:00",
		EndTime:   "15:00",
	}

	for _, opt := range opts {
		opt(&shift)
	}

	return shift
}

// DefaultTestCrew returns a standard set of profiles covering each role tier
func DefaultTestCrew(factory *FixtureFactory, storeID string) []ProfileFixture {
	return []ProfileFixture{
		factory.Profile(storeID, WithEmail("operator@smokestackbbq.com"), WithName("Ray", "Duvall"), WithRole("operator")),
		factory.Profile(storeID, WithEmail("manager@smokestackbbq.com"), WithName("Dana", "Whitfield"), WithRole("manager")),
		factory.Profile(storeID, WithEmail("lead@smokestackbbq.com"), WithName("Marcus", "Boone"), WithRole("shift_leader")),
		factory.Profile(storeID, WithEmail("pit@smokestackbbq.com"), WithName("Sarah", "Chen"), WithRole("pitmaster")),
		factory.Profile(storeID, WithEmail("prep@smokestackbbq.com"), WithName("Luis", "Herrera"), WithRole("prep_cook")),
		factory.Profile(storeID, WithEmail("crew@smokestackbbq.com"), WithName("Jamie", "Okafor")),
	}
}
