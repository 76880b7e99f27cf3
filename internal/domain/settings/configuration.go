package settings

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// SalaryConfig holds the global teacher/academy revenue shares used when a
// teacher's own compensation leaves them unset.
type SalaryConfig struct {
	TeacherSharePct decimal.Decimal `json:"teacherSharePct"`
	AcademySharePct decimal.Decimal `json:"academySharePct"`
}

// DefaultSalaryConfig returns the 70/30 teacher/academy split.
func DefaultSalaryConfig() SalaryConfig {
	return SalaryConfig{
		TeacherSharePct: decimal.NewFromInt(70),
		AcademySharePct: decimal.NewFromInt(30),
	}
}

// Validate checks that the shares are within range and add up to 100.
func (s SalaryConfig) Validate() error {
	verr := &shared.ValidationError{}
	if s.TeacherSharePct.IsNegative() || s.TeacherSharePct.GreaterThan(shared.Hundred) {
		verr.Add("teacherSharePct", "must be between 0 and 100")
	}
	if s.AcademySharePct.IsNegative() || s.AcademySharePct.GreaterThan(shared.Hundred) {
		verr.Add("academySharePct", "must be between 0 and 100")
	}
	if len(verr.Fields) == 0 && !s.TeacherSharePct.Add(s.AcademySharePct).Equal(shared.Hundred) {
		verr.Add("academySharePct", "teacher and academy shares must sum to 100")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// Configuration is the singleton finance configuration row.
type Configuration struct {
	ExpenseShares []ShareEntry
	Legacy        LegacySplit
	Salary        SalaryConfig
	UpdatedAt     time.Time
	UpdatedBy     string
}

// NewDefaultConfiguration is what the store holds on first boot.
func NewDefaultConfiguration(now time.Time) *Configuration {
	return &Configuration{
		Legacy: LegacySplit{
			Percentages: map[string]decimal.Decimal{},
			PartnerIDs:  map[string]string{},
		},
		Salary:    DefaultSalaryConfig(),
		UpdatedAt: now,
	}
}

// SplitMode resolves the active split variant. A non-empty dynamic table wins.
func (c *Configuration) SplitMode() SplitMode {
	if len(c.ExpenseShares) > 0 {
		return Dynamic(c.ExpenseShares)
	}
	return Legacy(c.Legacy)
}

// Clone returns a deep copy.
func (c *Configuration) Clone() *Configuration {
	cp := *c
	cp.ExpenseShares = append([]ShareEntry(nil), c.ExpenseShares...)
	cp.Legacy.Percentages = make(map[string]decimal.Decimal, len(c.Legacy.Percentages))
	for k, v := range c.Legacy.Percentages {
		cp.Legacy.Percentages[k] = v
	}
	cp.Legacy.PartnerIDs = make(map[string]string, len(c.Legacy.PartnerIDs))
	for k, v := range c.Legacy.PartnerIDs {
		cp.Legacy.PartnerIDs[k] = v
	}
	return &cp
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY & SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Repository persists the configuration singleton.
type Repository interface {
	// Get returns ErrSettingsNotFound before the first Save.
	Get(ctx context.Context) (*Configuration, error)

	// Save replaces the singleton.
	Save(ctx context.Context, cfg *Configuration) error

	// Init stores cfg unless a configuration already exists and returns the stored one.
	Init(ctx context.Context, cfg *Configuration) (*Configuration, error)
}

// Reader is the read API every finance component depends on.
type Reader interface {
	Current(ctx context.Context) (*Configuration, error)
}

// Service is the configuration store: a read API plus the admin write path.
type Service struct {
	repo   Repository
	now    func() time.Time
	salary SalaryConfig
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDefaultSalary sets the salary shares written on first boot.
func WithDefaultSalary(salary SalaryConfig) ServiceOption {
	return func(s *Service) {
		s.salary = salary
	}
}

// NewService creates a new configuration service.
func NewService(repo Repository, now func() time.Time, opts ...ServiceOption) *Service {
	if now == nil {
		now = time.Now
	}
	s := &Service{repo: repo, now: now, salary: DefaultSalaryConfig()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the active configuration, creating the default row on first boot.
func (s *Service) Current(ctx context.Context) (*Configuration, error) {
	cfg, err := s.repo.Get(ctx)
	if err == nil {
		return cfg, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	cfg = NewDefaultConfiguration(s.now())
	cfg.Salary = s.salary
	return s.repo.Init(ctx, cfg)
}

// ReplaceShares installs a new dynamic split table.
func (s *Service) ReplaceShares(ctx context.Context, entries []ShareEntry, updatedBy string) (*Configuration, error) {
	if err := ValidateEntries(entries); err != nil {
		return nil, err
	}
	return s.update(ctx, updatedBy, func(c *Configuration) {
		c.ExpenseShares = append([]ShareEntry(nil), entries...)
	})
}

// ReplaceLegacy installs a legacy map and clears the dynamic table so it takes effect.
func (s *Service) ReplaceLegacy(ctx context.Context, l LegacySplit, updatedBy string) (*Configuration, error) {
	if err := ValidateLegacy(l); err != nil {
		return nil, err
	}
	return s.update(ctx, updatedBy, func(c *Configuration) {
		c.ExpenseShares = nil
		c.Legacy = l
	})
}

// UpdateSalary replaces the global salary defaults.
func (s *Service) UpdateSalary(ctx context.Context, salary SalaryConfig, updatedBy string) (*Configuration, error) {
	if err := salary.Validate(); err != nil {
		return nil, err
	}
	return s.update(ctx, updatedBy, func(c *Configuration) {
		c.Salary = salary
	})
}

func (s *Service) update(ctx context.Context, updatedBy string, mutate func(*Configuration)) (*Configuration, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	mutate(next)
	next.UpdatedAt = s.now()
	next.UpdatedBy = updatedBy
	if err := s.repo.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}
