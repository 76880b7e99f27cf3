package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// SettingsRepository implements settings.Repository over the single-row
// finance_settings table.
type SettingsRepository struct {
	conn *Connection
}

var _ settings.Repository = (*SettingsRepository)(nil)

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(conn *Connection) *SettingsRepository {
	return &SettingsRepository{conn: conn}
}

// settingsDocument is the stored JSON shape of the configuration.
type settingsDocument struct {
	ExpenseShares []settings.ShareEntry `json:"expenseShares"`
	Legacy        settings.LegacySplit  `json:"legacy"`
	Salary        settings.SalaryConfig `json:"salaryConfig"`
}

// Get loads the configuration.
func (r *SettingsRepository) Get(ctx context.Context) (*settings.Configuration, error) {
	var (
		raw       []byte
		updatedAt time.Time
		updatedBy string
	)
	err := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT document, updated_at, updated_by FROM finance_settings WHERE id = 1`,
	).Scan(&raw, &updatedAt, &updatedBy)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	var doc settingsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	cfg := &settings.Configuration{
		ExpenseShares: doc.ExpenseShares,
		Legacy:        doc.Legacy,
		Salary:        doc.Salary,
		UpdatedAt:     updatedAt,
		UpdatedBy:     updatedBy,
	}
	if cfg.Legacy.Percentages == nil {
		cfg.Legacy.Percentages = map[string]decimal.Decimal{}
	}
	if cfg.Legacy.PartnerIDs == nil {
		cfg.Legacy.PartnerIDs = map[string]string{}
	}
	return cfg, nil
}

// Save replaces the configuration.
func (r *SettingsRepository) Save(ctx context.Context, cfg *settings.Configuration) error {
	return r.write(ctx, "SaveSettings", cfg, `
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by`)
}

// Init inserts cfg if the row does not exist yet and returns the stored row.
func (r *SettingsRepository) Init(ctx context.Context, cfg *settings.Configuration) (*settings.Configuration, error) {
	if err := r.write(ctx, "InitSettings", cfg, ` ON CONFLICT (id) DO NOTHING`); err != nil {
		return nil, err
	}
	return r.Get(ctx)
}

func (r *SettingsRepository) write(ctx context.Context, op string, cfg *settings.Configuration, onConflict string) error {
	raw, err := json.Marshal(settingsDocument{
		ExpenseShares: cfg.ExpenseShares,
		Legacy:        cfg.Legacy,
		Salary:        cfg.Salary,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO finance_settings (id, document, updated_at, updated_by)
		VALUES (1, $1, $2, $3)`+onConflict, raw, cfg.UpdatedAt, cfg.UpdatedBy)
	if err != nil {
		return mapError(op, fmt.Errorf("failed to save settings: %w", err))
	}
	return nil
}
