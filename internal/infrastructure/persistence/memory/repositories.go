package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/enrollment"
	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/settlement"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// Compile-time interface checks.
var (
	_ partner.Repository        = (*PartnerRepository)(nil)
	_ expense.Repository        = (*ExpenseRepository)(nil)
	_ settlement.Repository     = (*SettlementRepository)(nil)
	_ ledger.Repository         = (*LedgerRepository)(nil)
	_ payroll.TeacherRepository = (*TeacherRepository)(nil)
	_ payroll.PaymentRepository = (*PaymentRepository)(nil)
	_ settings.Repository       = (*SettingsRepository)(nil)
	_ enrollment.Reader         = (*EnrollmentReader)(nil)
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTNERS
// ══════════════════════════════════════════════════════════════════════════════

// PartnerRepository implements partner.Repository.
type PartnerRepository struct{ db *DB }

// NewPartnerRepository creates a new repository.
func NewPartnerRepository(db *DB) *PartnerRepository { return &PartnerRepository{db: db} }

func (r *PartnerRepository) GetByID(ctx context.Context, id string) (*partner.Partner, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.data.partners[id]
	if !ok {
		return nil, shared.ErrPartnerNotFound
	}
	return clonePartner(p), nil
}

// GetForUpdate relies on the unit of work for isolation.
func (r *PartnerRepository) GetForUpdate(ctx context.Context, id string) (*partner.Partner, error) {
	return r.GetByID(ctx, id)
}

func (r *PartnerRepository) List(ctx context.Context) ([]*partner.Partner, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]*partner.Partner, 0, len(r.db.data.partners))
	for _, p := range r.db.data.partners {
		out = append(out, clonePartner(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *PartnerRepository) Save(ctx context.Context, p *partner.Partner) error {
	if err := r.db.injected("partner.Save"); err != nil {
		return err
	}
	defer r.db.lockWrite(ctx)()
	r.db.data.partners[p.ID] = clonePartner(p)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPENSES
// ══════════════════════════════════════════════════════════════════════════════

// ExpenseRepository implements expense.Repository.
type ExpenseRepository struct{ db *DB }

// NewExpenseRepository creates a new repository.
func NewExpenseRepository(db *DB) *ExpenseRepository { return &ExpenseRepository{db: db} }

func (r *ExpenseRepository) Create(ctx context.Context, e *expense.Expense) error {
	if err := r.db.injected("expense.Create"); err != nil {
		return err
	}
	defer r.db.lockWrite(ctx)()
	if _, exists := r.db.data.expenses[e.ID]; exists {
		return shared.NewDomainError("expense", "Create", shared.ErrAlreadyExists, "expense already exists")
	}
	r.db.data.nextSeq++
	r.db.data.expenseSeq[e.ID] = r.db.data.nextSeq
	r.db.data.expenses[e.ID] = cloneExpense(e)
	return nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*expense.Expense, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	e, ok := r.db.data.expenses[id]
	if !ok {
		return nil, shared.ErrExpenseNotFound
	}
	return cloneExpense(e), nil
}

func (r *ExpenseRepository) List(ctx context.Context, f expense.ListFilter) ([]*expense.Expense, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*expense.Expense
	for _, e := range r.db.data.expenses {
		if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
			continue
		}
		if f.From != nil && e.ExpenseDate.Before(*f.From) {
			continue
		}
		if f.To != nil && e.ExpenseDate.After(*f.To) {
			continue
		}
		out = append(out, cloneExpense(e))
	}
	seq := r.db.data.expenseSeq
	sort.Slice(out, func(i, j int) bool { return seq[out[i].ID] > seq[out[j].ID] })
	return paginate(out, f.Offset, f.Limit), nil
}

func (r *ExpenseRepository) UpdateStatus(ctx context.Context, e *expense.Expense) error {
	defer r.db.lockWrite(ctx)()
	stored, ok := r.db.data.expenses[e.ID]
	if !ok {
		return shared.ErrExpenseNotFound
	}
	stored.Status = e.Status
	stored.PaidAt = e.PaidAt
	return nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.injected("expense.Delete"); err != nil {
		return err
	}
	defer r.db.lockWrite(ctx)()
	if _, ok := r.db.data.expenses[id]; !ok {
		return shared.ErrExpenseNotFound
	}
	delete(r.db.data.expenses, id)
	delete(r.db.data.expenseSeq, id)
	return nil
}

func (r *ExpenseRepository) OpenSharesForUpdate(ctx context.Context, partnerID string) ([]*expense.Share, error) {
	return r.OpenShares(ctx, partnerID)
}

// OpenShares returns open shares oldest first: by creation time, then by insertion order.
func (r *ExpenseRepository) OpenShares(ctx context.Context, partnerID string) ([]*expense.Share, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	type ordered struct {
		share *expense.Share
		seq   int
	}
	var open []ordered
	for id, e := range r.db.data.expenses {
		for _, s := range e.Shares {
			if s.PartnerID == partnerID && s.IsOpen() {
				open = append(open, ordered{share: cloneShare(s), seq: r.db.data.expenseSeq[id]})
			}
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		a, b := open[i], open[j]
		if !a.share.CreatedAt.Equal(b.share.CreatedAt) {
			return a.share.CreatedAt.Before(b.share.CreatedAt)
		}
		return a.seq < b.seq
	})

	out := make([]*expense.Share, 0, len(open))
	for _, o := range open {
		out = append(out, o.share)
	}
	return out, nil
}

func (r *ExpenseRepository) UpdateShares(ctx context.Context, shares []*expense.Share) error {
	if err := r.db.injected("expense.UpdateShares"); err != nil {
		return err
	}
	defer r.db.lockWrite(ctx)()
	for _, s := range shares {
		e, ok := r.db.data.expenses[s.ExpenseID]
		if !ok {
			return fmt.Errorf("memory: share %s: %w", s.ID, shared.ErrExpenseNotFound)
		}
		found := false
		for i, stored := range e.Shares {
			if stored.ID == s.ID {
				e.Shares[i] = cloneShare(s)
				found = true
				break
			}
		}
		if !found {
			return shared.NewDomainError("expense", "UpdateShares", shared.ErrNotFound, "share "+s.ID+" not found")
		}
	}
	return nil
}

func (r *ExpenseRepository) TotalAmount(ctx context.Context) (decimal.Decimal, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	total := decimal.Zero
	for _, e := range r.db.data.expenses {
		total = total.Add(e.Amount)
	}
	return total, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTLEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// SettlementRepository implements settlement.Repository.
type SettlementRepository struct{ db *DB }

// NewSettlementRepository creates a new repository.
func NewSettlementRepository(db *DB) *SettlementRepository { return &SettlementRepository{db: db} }

func (r *SettlementRepository) Create(ctx context.Context, s *settlement.Settlement) error {
	if err := r.db.injected("settlement.Create"); err != nil {
		return err
	}
	defer r.db.lockWrite(ctx)()
	r.db.data.settlements = append(r.db.data.settlements, cloneSettlement(s))
	return nil
}

func (r *SettlementRepository) ListByPartner(ctx context.Context, partnerID string) ([]*settlement.Settlement, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*settlement.Settlement
	for i := len(r.db.data.settlements) - 1; i >= 0; i-- {
		if s := r.db.data.settlements[i]; s.PartnerID == partnerID {
			out = append(out, cloneSettlement(s))
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements ledger.Repository.
type LedgerRepository struct{ db *DB }

// NewLedgerRepository creates a new repository.
func NewLedgerRepository(db *DB) *LedgerRepository { return &LedgerRepository{db: db} }

func (r *LedgerRepository) Append(ctx context.Context, t *ledger.Transaction) error {
	if err := r.db.injected("ledger.Append"); err != nil {
		return err
	}
	defer r.db.lockWrite(ctx)()
	r.db.data.transactions = append(r.db.data.transactions, cloneTransaction(t))
	return nil
}

func (r *LedgerRepository) FloatingUntilForUpdate(ctx context.Context, boundary time.Time) ([]*ledger.Transaction, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*ledger.Transaction
	for _, t := range r.db.data.transactions {
		if t.IsFloating() && !t.Date.After(boundary) {
			out = append(out, cloneTransaction(t))
		}
	}
	return out, nil
}

func (r *LedgerRepository) MarkVerified(ctx context.Context, txs []*ledger.Transaction) (int, error) {
	if err := r.db.injected("ledger.MarkVerified"); err != nil {
		return 0, err
	}
	defer r.db.lockWrite(ctx)()

	byID := make(map[string]*ledger.Transaction, len(txs))
	for _, t := range txs {
		byID[t.ID] = t
	}
	n := 0
	for i, stored := range r.db.data.transactions {
		t, ok := byID[stored.ID]
		if !ok || !stored.IsFloating() {
			continue
		}
		r.db.data.transactions[i] = cloneTransaction(t)
		n++
	}
	return n, nil
}

func (r *LedgerRepository) List(ctx context.Context, f ledger.Filter) ([]*ledger.Transaction, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*ledger.Transaction
	for i := len(r.db.data.transactions) - 1; i >= 0; i-- {
		t := r.db.data.transactions[i]
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Type != nil && t.Type != *f.Type {
			continue
		}
		if f.From != nil && t.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && t.Date.After(*f.To) {
			continue
		}
		out = append(out, cloneTransaction(t))
	}
	return paginate(out, f.Offset, f.Limit), nil
}

func (r *LedgerRepository) SaveClosing(ctx context.Context, c *ledger.DayClosing) error {
	defer r.db.lockWrite(ctx)()
	cp := *c
	r.db.data.closings = append(r.db.data.closings, &cp)
	return nil
}

func (r *LedgerRepository) LastClosing(ctx context.Context, day string) (*ledger.DayClosing, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for i := len(r.db.data.closings) - 1; i >= 0; i-- {
		if c := r.db.data.closings[i]; c.Day == day {
			cp := *c
			return &cp, nil
		}
	}
	return nil, shared.NewDomainError("ledger", "LastClosing", shared.ErrNotFound, "day "+day+" has not been closed")
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYROLL
// ══════════════════════════════════════════════════════════════════════════════

// TeacherRepository implements payroll.TeacherRepository.
type TeacherRepository struct{ db *DB }

// NewTeacherRepository creates a new repository.
func NewTeacherRepository(db *DB) *TeacherRepository { return &TeacherRepository{db: db} }

func (r *TeacherRepository) GetByID(ctx context.Context, id string) (*payroll.Teacher, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.data.teachers[id]
	if !ok {
		return nil, shared.ErrTeacherNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *TeacherRepository) ListActive(ctx context.Context) ([]*payroll.Teacher, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*payroll.Teacher
	for _, t := range r.db.data.teachers {
		if t.IsActive() {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PaymentRepository implements payroll.PaymentRepository.
type PaymentRepository struct{ db *DB }

// NewPaymentRepository creates a new repository.
func NewPaymentRepository(db *DB) *PaymentRepository { return &PaymentRepository{db: db} }

func paymentKey(teacherID string, p shared.Period) string {
	return fmt.Sprintf("%s|%04d|%02d", teacherID, p.Year, p.Month)
}

func (r *PaymentRepository) GetForPeriodForUpdate(ctx context.Context, teacherID string, period shared.Period) (*payroll.TeacherPayment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.data.payments[paymentKey(teacherID, period)]
	if !ok {
		return nil, shared.NewDomainError("payroll", "GetPayment", shared.ErrNotFound, "no payment for period")
	}
	return clonePayment(p), nil
}

func (r *PaymentRepository) ListPaid(ctx context.Context, period shared.Period) ([]*payroll.TeacherPayment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*payroll.TeacherPayment
	for _, p := range r.db.data.payments {
		if p.Status == payroll.PaymentPaid && p.Period() == period {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeacherID < out[j].TeacherID })
	return out, nil
}

func (r *PaymentRepository) Save(ctx context.Context, p *payroll.TeacherPayment) error {
	if err := r.db.injected("payroll.Save"); err != nil {
		return err
	}
	defer r.db.lockWrite(ctx)()
	r.db.data.payments[paymentKey(p.TeacherID, p.Period())] = clonePayment(p)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS & ROSTER
// ══════════════════════════════════════════════════════════════════════════════

// SettingsRepository implements settings.Repository.
type SettingsRepository struct{ db *DB }

// NewSettingsRepository creates a new repository.
func NewSettingsRepository(db *DB) *SettingsRepository { return &SettingsRepository{db: db} }

func (r *SettingsRepository) Get(ctx context.Context) (*settings.Configuration, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if r.db.data.config == nil {
		return nil, shared.ErrSettingsNotFound
	}
	return r.db.data.config.Clone(), nil
}

func (r *SettingsRepository) Save(ctx context.Context, cfg *settings.Configuration) error {
	defer r.db.lockWrite(ctx)()
	r.db.data.config = cfg.Clone()
	return nil
}

func (r *SettingsRepository) Init(ctx context.Context, cfg *settings.Configuration) (*settings.Configuration, error) {
	defer r.db.lockWrite(ctx)()
	if r.db.data.config == nil {
		r.db.data.config = cfg.Clone()
	}
	return r.db.data.config.Clone(), nil
}

// EnrollmentReader implements enrollment.Reader over the seeded roster.
type EnrollmentReader struct{ db *DB }

// NewEnrollmentReader creates a new reader.
func NewEnrollmentReader(db *DB) *EnrollmentReader { return &EnrollmentReader{db: db} }

func (r *EnrollmentReader) ListStudents(ctx context.Context) ([]enrollment.Student, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return append([]enrollment.Student(nil), r.db.data.students...), nil
}

func (r *EnrollmentReader) ListClasses(ctx context.Context) ([]enrollment.Class, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return append([]enrollment.Class(nil), r.db.data.classes...), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
