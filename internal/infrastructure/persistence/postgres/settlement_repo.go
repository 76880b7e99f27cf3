package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alem-hub/academy-finance/internal/domain/settlement"
)

// SettlementRepository implements settlement.Repository for PostgreSQL.
type SettlementRepository struct {
	conn *Connection
}

var _ settlement.Repository = (*SettlementRepository)(nil)

// NewSettlementRepository creates a new SettlementRepository.
func NewSettlementRepository(conn *Connection) *SettlementRepository {
	return &SettlementRepository{conn: conn}
}

const settlementColumns = `id, partner_id, partner_name, amount, date, method, notes, recorded_by, allocations, created_at`

// Create stores an immutable settlement record with its FIFO allocations.
func (r *SettlementRepository) Create(ctx context.Context, s *settlement.Settlement) error {
	allocations := s.Allocations
	if allocations == nil {
		allocations = []settlement.Allocation{}
	}
	raw, err := json.Marshal(allocations)
	if err != nil {
		return fmt.Errorf("failed to marshal allocations: %w", err)
	}

	_, err = r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO settlements (`+settlementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		s.ID,
		s.PartnerID,
		s.PartnerName,
		s.Amount,
		s.Date,
		string(s.Method),
		s.Notes,
		s.RecordedBy,
		raw,
		s.CreatedAt,
	)
	if err != nil {
		return mapError("CreateSettlement", fmt.Errorf("failed to insert settlement: %w", err))
	}
	return nil
}

// ListByPartner returns a partner's settlements, newest first.
func (r *SettlementRepository) ListByPartner(ctx context.Context, partnerID string) ([]*settlement.Settlement, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE partner_id = $1 ORDER BY seq DESC`, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var out []*settlement.Settlement
	for rows.Next() {
		var (
			s      settlement.Settlement
			method string
			raw    []byte
		)
		err := rows.Scan(
			&s.ID,
			&s.PartnerID,
			&s.PartnerName,
			&s.Amount,
			&s.Date,
			&method,
			&s.Notes,
			&s.RecordedBy,
			&raw,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		s.Method = settlement.Method(method)
		if err := json.Unmarshal(raw, &s.Allocations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allocations: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
