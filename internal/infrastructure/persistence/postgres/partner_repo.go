package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTNER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PartnerRepository implements partner.Repository for PostgreSQL.
type PartnerRepository struct {
	conn *Connection
}

var _ partner.Repository = (*PartnerRepository)(nil)

// NewPartnerRepository creates a new PartnerRepository.
func NewPartnerRepository(conn *Connection) *PartnerRepository {
	return &PartnerRepository{conn: conn}
}

const partnerColumns = `id, name, role, expense_debt, debt_to_owner, version, created_at, updated_at`

// GetByID returns a partner without locking it.
func (r *PartnerRepository) GetByID(ctx context.Context, id string) (*partner.Partner, error) {
	row := r.conn.Querier(ctx).QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = $1`, id)
	return scanPartner(row)
}

// GetForUpdate locks the partner row until the surrounding transaction ends.
func (r *PartnerRepository) GetForUpdate(ctx context.Context, id string) (*partner.Partner, error) {
	row := r.conn.Querier(ctx).QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = $1 FOR UPDATE`, id)
	return scanPartner(row)
}

// List returns all partners ordered by name.
func (r *PartnerRepository) List(ctx context.Context) ([]*partner.Partner, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx, `SELECT `+partnerColumns+` FROM partners ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query partners: %w", err)
	}
	defer rows.Close()

	var out []*partner.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Save inserts or updates a partner.
func (r *PartnerRepository) Save(ctx context.Context, p *partner.Partner) error {
	query := `
		INSERT INTO partners (` + partnerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			expense_debt = EXCLUDED.expense_debt,
			debt_to_owner = EXCLUDED.debt_to_owner,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.conn.Querier(ctx).Exec(ctx, query,
		p.ID,
		p.Name,
		string(p.Role),
		p.ExpenseDebt,
		p.DebtToOwner,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return mapError("SavePartner", fmt.Errorf("failed to save partner %s: %w", p.ID, err))
	}
	return nil
}

func scanPartner(row pgx.Row) (*partner.Partner, error) {
	var (
		p    partner.Partner
		role string
	)
	err := row.Scan(&p.ID, &p.Name, &role, &p.ExpenseDebt, &p.DebtToOwner, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPartnerNotFound
		}
		return nil, fmt.Errorf("failed to scan partner: %w", err)
	}
	p.Role = shared.Role(role)
	return &p, nil
}
