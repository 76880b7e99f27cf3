// Package memory is an in-process implementation of every finance repository.
// It backs the application tests and local runs without PostgreSQL.
package memory

import (
	"context"
	"sync"

	"github.com/alem-hub/academy-finance/internal/domain/enrollment"
	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/settlement"
)

type tables struct {
	partners     map[string]*partner.Partner
	expenses     map[string]*expense.Expense
	expenseSeq   map[string]int
	nextSeq      int
	settlements  []*settlement.Settlement
	transactions []*ledger.Transaction
	closings     []*ledger.DayClosing
	teachers     map[string]*payroll.Teacher
	payments     map[string]*payroll.TeacherPayment
	students     []enrollment.Student
	classes      []enrollment.Class
	config       *settings.Configuration
}

func newTables() *tables {
	return &tables{
		partners:   map[string]*partner.Partner{},
		expenses:   map[string]*expense.Expense{},
		expenseSeq: map[string]int{},
		teachers:   map[string]*payroll.Teacher{},
		payments:   map[string]*payroll.TeacherPayment{},
	}
}

func (t *tables) clone() *tables {
	cp := newTables()
	for k, v := range t.partners {
		cp.partners[k] = clonePartner(v)
	}
	for k, v := range t.expenses {
		cp.expenses[k] = cloneExpense(v)
	}
	for k, v := range t.expenseSeq {
		cp.expenseSeq[k] = v
	}
	cp.nextSeq = t.nextSeq
	for _, s := range t.settlements {
		cp.settlements = append(cp.settlements, cloneSettlement(s))
	}
	for _, tx := range t.transactions {
		cp.transactions = append(cp.transactions, cloneTransaction(tx))
	}
	for _, c := range t.closings {
		c := *c
		cp.closings = append(cp.closings, &c)
	}
	for k, v := range t.teachers {
		v := *v
		cp.teachers[k] = &v
	}
	for k, v := range t.payments {
		cp.payments[k] = clonePayment(v)
	}
	cp.students = append(cp.students, t.students...)
	cp.classes = append(cp.classes, t.classes...)
	if t.config != nil {
		cp.config = t.config.Clone()
	}
	return cp
}

// DB holds all tables behind one lock.
type DB struct {
	mu   sync.RWMutex
	data *tables

	// unitMu serializes units of work; a unit sees and rolls back the whole store.
	// Writes outside a unit take it too, so a rollback never discards them.
	unitMu sync.Mutex

	failMu   sync.Mutex
	failures map[string]error
}

// New creates an empty store.
func New() *DB {
	return &DB{data: newTables(), failures: map[string]error{}}
}

// FailOn makes every later call of op return err until cleared with a nil err.
// Operation names are "<repo>.<Method>", e.g. "ledger.Append".
func (db *DB) FailOn(op string, err error) {
	db.failMu.Lock()
	defer db.failMu.Unlock()
	if err == nil {
		delete(db.failures, op)
		return
	}
	db.failures[op] = err
}

func (db *DB) injected(op string) error {
	db.failMu.Lock()
	defer db.failMu.Unlock()
	return db.failures[op]
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

type unitKey struct{}

// UnitOfWork runs units against a DB.
type UnitOfWork struct {
	db *DB
}

// NewUnitOfWork creates a unit of work bound to db.
func NewUnitOfWork(db *DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Do runs fn with exclusive access to the store. If fn fails, every change it
// made is discarded. Nested calls join the outer unit.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(unitKey{}) != nil {
		return fn(ctx)
	}

	u.db.unitMu.Lock()
	defer u.db.unitMu.Unlock()

	u.db.mu.RLock()
	snapshot := u.db.data.clone()
	u.db.mu.RUnlock()

	if err := fn(context.WithValue(ctx, unitKey{}, true)); err != nil {
		u.db.mu.Lock()
		u.db.data = snapshot
		u.db.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite takes the table lock for a write and returns its release. Outside a
// unit it first waits for any running unit to finish.
func (db *DB) lockWrite(ctx context.Context) func() {
	if ctx.Value(unitKey{}) != nil {
		db.mu.Lock()
		return db.mu.Unlock
	}
	db.unitMu.Lock()
	db.mu.Lock()
	return func() {
		db.mu.Unlock()
		db.unitMu.Unlock()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SEEDING (roster data owned by other services)
// ══════════════════════════════════════════════════════════════════════════════

// AddStudents appends student records.
func (db *DB) AddStudents(students ...enrollment.Student) {
	defer db.lockWrite(context.Background())()
	db.data.students = append(db.data.students, students...)
}

// AddClasses appends class records.
func (db *DB) AddClasses(classes ...enrollment.Class) {
	defer db.lockWrite(context.Background())()
	db.data.classes = append(db.data.classes, classes...)
}

// AddTeachers stores teacher records.
func (db *DB) AddTeachers(teachers ...*payroll.Teacher) {
	defer db.lockWrite(context.Background())()
	for _, t := range teachers {
		cp := *t
		db.data.teachers[t.ID] = &cp
	}
}
