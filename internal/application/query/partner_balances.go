package query

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/settlement"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST PARTNER BALANCES QUERY
// Балансы партнёров и их непогашенные доли, самые старые первыми.
// ══════════════════════════════════════════════════════════════════════════════

// ListPartnerBalancesQuery содержит параметры запроса.
type ListPartnerBalancesQuery struct {
	// PartnerID - один партнёр; пусто = все.
	PartnerID string

	// WithHistory - добавить историю погашений.
	WithHistory bool

	Caller shared.Caller
}

// PartnerBalance - балансы одного партнёра.
type PartnerBalance struct {
	Partner     *partner.Partner
	OpenShares  []*expense.Share
	Outstanding decimal.Decimal
	Settlements []*settlement.Settlement
}

// ListPartnerBalancesHandler обрабатывает запрос.
type ListPartnerBalancesHandler struct {
	partners    partner.Repository
	expenses    expense.Repository
	settlements settlement.Repository
}

// NewListPartnerBalancesHandler создаёт обработчик.
func NewListPartnerBalancesHandler(partners partner.Repository, expenses expense.Repository, settlements settlement.Repository) *ListPartnerBalancesHandler {
	return &ListPartnerBalancesHandler{partners: partners, expenses: expenses, settlements: settlements}
}

// Handle выполняет запрос. Доступно OWNER и PARTNER.
func (h *ListPartnerBalancesHandler) Handle(ctx context.Context, q ListPartnerBalancesQuery) ([]PartnerBalance, error) {
	if err := q.Caller.Authorize("list_partner_balances", shared.ManagementRoles...); err != nil {
		return nil, err
	}

	var partners []*partner.Partner
	if q.PartnerID != "" {
		p, err := h.partners.GetByID(ctx, q.PartnerID)
		if err != nil {
			return nil, err
		}
		partners = []*partner.Partner{p}
	} else {
		var err error
		if partners, err = h.partners.List(ctx); err != nil {
			return nil, fmt.Errorf("list_partner_balances: list partners: %w", err)
		}
	}

	out := make([]PartnerBalance, 0, len(partners))
	for _, p := range partners {
		shares, err := h.expenses.OpenShares(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list_partner_balances: open shares of %s: %w", p.ID, err)
		}
		b := PartnerBalance{
			Partner:     p,
			OpenShares:  shares,
			Outstanding: settlement.OutstandingTotal(shares),
		}
		if q.WithHistory {
			if b.Settlements, err = h.settlements.ListByPartner(ctx, p.ID); err != nil {
				return nil, fmt.Errorf("list_partner_balances: settlements of %s: %w", p.ID, err)
			}
		}
		out = append(out, b)
	}
	return out, nil
}
