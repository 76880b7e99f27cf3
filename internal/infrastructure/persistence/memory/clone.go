package memory

import (
	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/settlement"
)

func clonePartner(p *partner.Partner) *partner.Partner {
	cp := *p
	return &cp
}

func cloneShare(s *expense.Share) *expense.Share {
	cp := *s
	if s.SettledAt != nil {
		t := *s.SettledAt
		cp.SettledAt = &t
	}
	return &cp
}

func cloneExpense(e *expense.Expense) *expense.Expense {
	cp := *e
	cp.Shares = make([]*expense.Share, 0, len(e.Shares))
	for _, s := range e.Shares {
		cp.Shares = append(cp.Shares, cloneShare(s))
	}
	cp.SplitRatio = make(map[string]decimal.Decimal, len(e.SplitRatio))
	for k, v := range e.SplitRatio {
		cp.SplitRatio[k] = v
	}
	if e.DueDate != nil {
		t := *e.DueDate
		cp.DueDate = &t
	}
	if e.PaidAt != nil {
		t := *e.PaidAt
		cp.PaidAt = &t
	}
	return &cp
}

func cloneSettlement(s *settlement.Settlement) *settlement.Settlement {
	cp := *s
	cp.Allocations = append([]settlement.Allocation(nil), s.Allocations...)
	return &cp
}

func cloneTransaction(t *ledger.Transaction) *ledger.Transaction {
	cp := *t
	if t.VerifiedAt != nil {
		v := *t.VerifiedAt
		cp.VerifiedAt = &v
	}
	return &cp
}

func clonePayment(p *payroll.TeacherPayment) *payroll.TeacherPayment {
	cp := *p
	if p.PaidAt != nil {
		t := *p.PaidAt
		cp.PaidAt = &t
	}
	return &cp
}
