package command

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/application/validation"
	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/settlement"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SETTLEMENT COMMAND
// Records money a partner paid back and applies it to their oldest open shares.
// ══════════════════════════════════════════════════════════════════════════════

// RecordSettlementCommand contains the data needed to record a settlement.
type RecordSettlementCommand struct {
	PartnerID string          `json:"partnerId" validate:"notblank"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Method    string          `json:"method" validate:"omitempty,oneof=cash bank_transfer other"`
	Date      *time.Time      `json:"date"`
	Notes     string          `json:"notes" validate:"max=1000"`

	Caller shared.Caller `json:"-"`
}

// Validate validates the command.
func (c RecordSettlementCommand) Validate() error {
	return validation.Struct(c)
}

// RecordSettlementResult contains the settlement, updated balances and the touched shares.
type RecordSettlementResult struct {
	Settlement *settlement.Settlement
	Partner    *partner.Partner
	Shares     []*expense.Share
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordSettlementHandler handles the RecordSettlementCommand.
type RecordSettlementHandler struct {
	deps Deps
}

// NewRecordSettlementHandler creates a new handler.
func NewRecordSettlementHandler(deps Deps) *RecordSettlementHandler {
	return &RecordSettlementHandler{deps: deps}
}

// Handle executes the command. Work on one partner is serialized, so two
// settlements never read the same stale balance.
func (h *RecordSettlementHandler) Handle(ctx context.Context, cmd RecordSettlementCommand) (*RecordSettlementResult, error) {
	if err := cmd.Caller.Authorize("record_settlement", shared.ManagementRoles...); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	date, err := h.deps.floatingDate(cmd.Date)
	if err != nil {
		return nil, err
	}

	var result *RecordSettlementResult
	err = h.deps.atomically(ctx, []string{partnerLockKey(cmd.PartnerID)}, func(ctx context.Context) error {
		now := h.deps.now()

		p, err := h.deps.Partners.GetForUpdate(ctx, cmd.PartnerID)
		if err != nil {
			return err
		}

		shares, err := h.deps.Expenses.OpenSharesForUpdate(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("record_settlement: load open shares: %w", err)
		}

		alloc, err := settlement.Allocate(shares, cmd.Amount, now)
		if err != nil {
			return err
		}

		if err := p.ReduceDebt(alloc.Applied, now); err != nil {
			return err
		}

		st, err := settlement.New(settlement.NewSettlementParams{
			ID:          h.deps.IDs.NewID(),
			PartnerID:   p.ID,
			PartnerName: p.Name,
			Amount:      alloc.Applied,
			Date:        date,
			Method:      settlement.Method(cmd.Method),
			Notes:       cmd.Notes,
			RecordedBy:  cmd.Caller.UserID,
			Allocations: alloc.Allocations,
		}, now)
		if err != nil {
			return err
		}

		if err := h.deps.Expenses.UpdateShares(ctx, alloc.Touched); err != nil {
			return fmt.Errorf("record_settlement: save shares: %w", err)
		}
		if err := h.deps.Partners.Save(ctx, p); err != nil {
			return fmt.Errorf("record_settlement: save partner: %w", err)
		}
		if err := h.deps.Settlements.Create(ctx, st); err != nil {
			return fmt.Errorf("record_settlement: save settlement: %w", err)
		}

		tx, err := ledger.NewFloating(ledger.Entry{
			ID:          h.deps.IDs.NewID(),
			Type:        ledger.TypeIncome,
			Category:    ledger.CategoryPartnerSettlement,
			Amount:      st.Amount,
			Date:        st.Date,
			CollectedBy: cmd.Caller.UserID,
			Reference:   st.ID,
			Description: "settlement from " + p.Name,
		}, now)
		if err != nil {
			return err
		}
		if err := h.deps.Ledger.Append(ctx, tx); err != nil {
			return fmt.Errorf("record_settlement: append journal entry: %w", err)
		}

		result = &RecordSettlementResult{Settlement: st, Partner: p, Shares: alloc.Touched}
		return nil
	})
	if err != nil {
		return nil, err
	}

	settled := 0
	for _, a := range result.Settlement.Allocations {
		if a.Settled {
			settled++
		}
	}
	h.deps.publish("record_settlement", shared.NewSettlementRecordedEvent(
		result.Settlement.ID, result.Partner.ID, result.Settlement.Amount, settled, result.Partner.DebtToOwner))

	h.deps.log().Info("settlement recorded",
		logger.SettlementID(result.Settlement.ID),
		logger.PartnerID(result.Partner.ID),
		logger.Money("amount", result.Settlement.Amount),
		logger.Money("debt_to_owner", result.Partner.DebtToOwner),
	)
	return result, nil
}
