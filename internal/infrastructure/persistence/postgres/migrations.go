package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMigrationFailed is returned when a schema change could not be applied.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// migrationLockID serializes Migrate across instances booting at the same time.
const migrationLockID = 7_201_605

// Migration is one forward-only schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationState reports whether a migration has been applied.
type MigrationState struct {
	Migration
	Applied   bool
	AppliedAt time.Time
}

// Migrations returns the schema history in order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_partners_and_expenses", SQL: schemaPartnersExpenses},
		{Version: 2, Name: "create_ledger", SQL: schemaJournal},
		{Version: 3, Name: "create_payroll_and_settings", SQL: schemaPayrollSettings},
	}
}

// Migrator applies Migrations to the database.
type Migrator struct {
	conn       *Connection
	uow        *UnitOfWork
	migrations []Migration
}

// NewMigrator creates a migrator for the built-in schema.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, uow: NewUnitOfWork(conn), migrations: Migrations()}
}

const createMigrationTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
)`

// Migrate applies every pending migration in one transaction. A failure
// leaves the schema as it was.
func (m *Migrator) Migrate(ctx context.Context) error {
	return m.uow.Do(ctx, func(ctx context.Context) error {
		q := m.conn.Querier(ctx)
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
			return fmt.Errorf("%w: take migration lock: %v", ErrMigrationFailed, err)
		}

		applied, err := m.applied(ctx)
		if err != nil {
			return err
		}
		for _, mig := range m.migrations {
			if _, ok := applied[mig.Version]; ok {
				continue
			}
			if _, err := q.Exec(ctx, mig.SQL); err != nil {
				return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.Version, mig.Name, err)
			}
			if _, err := q.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name,
			); err != nil {
				return fmt.Errorf("%w: record version %d: %v", ErrMigrationFailed, mig.Version, err)
			}
		}
		return nil
	})
}

// Status lists every known migration with its applied time.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationState, len(m.migrations))
	for i, mig := range m.migrations {
		at, ok := applied[mig.Version]
		out[i] = MigrationState{Migration: mig, Applied: ok, AppliedAt: at}
	}
	return out, nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	q := m.conn.Querier(ctx)
	if _, err := q.Exec(ctx, createMigrationTable); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := q.Query(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var (
			version int
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PARTNERS, EXPENSES, SHARES, SETTLEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const schemaPartnersExpenses = `
-- Partner balances. Both balances move together and never go below zero.
CREATE TABLE IF NOT EXISTS partners (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    role VARCHAR(20) NOT NULL,
    expense_debt NUMERIC(14,2) NOT NULL DEFAULT 0,
    debt_to_owner NUMERIC(14,2) NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_partner_role CHECK (role IN ('OWNER', 'PARTNER')),
    CONSTRAINT non_negative_expense_debt CHECK (expense_debt >= 0),
    CONSTRAINT non_negative_debt_to_owner CHECK (debt_to_owner >= 0)
);

CREATE TABLE IF NOT EXISTS expenses (
    id UUID PRIMARY KEY,
    seq BIGSERIAL NOT NULL,
    title VARCHAR(200) NOT NULL,
    category VARCHAR(100) NOT NULL,
    amount NUMERIC(14,2) NOT NULL,
    vendor_name VARCHAR(200) NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    expense_date TIMESTAMP WITH TIME ZONE NOT NULL,
    due_date TIMESTAMP WITH TIME ZONE,
    paid_by_type VARCHAR(30) NOT NULL,
    paid_by VARCHAR(64) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL,
    has_partner_debt BOOLEAN NOT NULL DEFAULT FALSE,
    split_ratio JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_by VARCHAR(64) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    paid_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT positive_expense_amount CHECK (amount > 0),
    CONSTRAINT valid_expense_status CHECK (status IN ('pending', 'paid'))
);

CREATE INDEX IF NOT EXISTS idx_expenses_seq ON expenses(seq DESC);
CREATE INDEX IF NOT EXISTS idx_expenses_category ON expenses(category);
CREATE INDEX IF NOT EXISTS idx_expenses_expense_date ON expenses(expense_date);

CREATE TABLE IF NOT EXISTS expense_shares (
    id UUID PRIMARY KEY,
    seq BIGSERIAL NOT NULL,
    expense_id UUID NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
    partner_id VARCHAR(64) NOT NULL REFERENCES partners(id),
    partner_name VARCHAR(200) NOT NULL DEFAULT '',
    percentage NUMERIC(6,2) NOT NULL,
    amount NUMERIC(14,2) NOT NULL,
    paid_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'UNPAID',
    repayment_status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    settled_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_share_status CHECK (status IN ('UNPAID', 'PAID')),
    CONSTRAINT valid_repayment_status CHECK (repayment_status IN ('PENDING', 'PARTIAL', 'SETTLED')),
    CONSTRAINT paid_within_amount CHECK (paid_amount >= 0 AND paid_amount <= amount)
);

-- FIFO lookup of a partner's open shares.
CREATE INDEX IF NOT EXISTS idx_expense_shares_open
    ON expense_shares(partner_id, created_at, seq) WHERE status = 'UNPAID';
CREATE INDEX IF NOT EXISTS idx_expense_shares_expense ON expense_shares(expense_id);

CREATE TABLE IF NOT EXISTS settlements (
    id UUID PRIMARY KEY,
    seq BIGSERIAL NOT NULL,
    partner_id VARCHAR(64) NOT NULL REFERENCES partners(id),
    partner_name VARCHAR(200) NOT NULL DEFAULT '',
    amount NUMERIC(14,2) NOT NULL,
    date TIMESTAMP WITH TIME ZONE NOT NULL,
    method VARCHAR(30) NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    recorded_by VARCHAR(64) NOT NULL DEFAULT '',
    allocations JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT positive_settlement_amount CHECK (amount > 0)
);

CREATE INDEX IF NOT EXISTS idx_settlements_partner ON settlements(partner_id, seq DESC);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: TRANSACTION JOURNAL
// ══════════════════════════════════════════════════════════════════════════════

const schemaJournal = `
CREATE TABLE IF NOT EXISTS transactions (
    id UUID PRIMARY KEY,
    seq BIGSERIAL NOT NULL,
    type VARCHAR(10) NOT NULL,
    category VARCHAR(100) NOT NULL,
    amount NUMERIC(14,2) NOT NULL,
    date TIMESTAMP WITH TIME ZONE NOT NULL,
    collected_by VARCHAR(64) NOT NULL DEFAULT '',
    status VARCHAR(10) NOT NULL DEFAULT 'FLOATING',
    reference VARCHAR(64) NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    verified_at TIMESTAMP WITH TIME ZONE,
    verified_by VARCHAR(64) NOT NULL DEFAULT '',

    CONSTRAINT valid_transaction_type CHECK (type IN ('INCOME', 'EXPENSE')),
    CONSTRAINT valid_transaction_status CHECK (status IN ('FLOATING', 'VERIFIED')),
    CONSTRAINT positive_transaction_amount CHECK (amount > 0)
);

CREATE INDEX IF NOT EXISTS idx_transactions_floating ON transactions(date) WHERE status = 'FLOATING';
CREATE INDEX IF NOT EXISTS idx_transactions_seq ON transactions(seq DESC);

CREATE TABLE IF NOT EXISTS day_closings (
    id UUID PRIMARY KEY,
    seq BIGSERIAL NOT NULL,
    day DATE NOT NULL,
    boundary TIMESTAMP WITH TIME ZONE NOT NULL,
    closed_by VARCHAR(64) NOT NULL,
    closed_at TIMESTAMP WITH TIME ZONE NOT NULL,
    transitioned INTEGER NOT NULL DEFAULT 0,
    income NUMERIC(14,2) NOT NULL DEFAULT 0,
    expense NUMERIC(14,2) NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_day_closings_day ON day_closings(day, seq DESC);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: PAYROLL, SETTINGS, ROSTER VIEWS
// ══════════════════════════════════════════════════════════════════════════════

const schemaPayrollSettings = `
-- Roster tables are written by the school administration service.
CREATE TABLE IF NOT EXISTS classes (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    subjects JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE TABLE IF NOT EXISTS students (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL DEFAULT '',
    class_id VARCHAR(64) REFERENCES classes(id),
    paid_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
    total_fee NUMERIC(14,2) NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_students_class ON students(class_id);

CREATE TABLE IF NOT EXISTS teachers (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    subject VARCHAR(100) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    compensation JSONB NOT NULL DEFAULT '{"type": "percentage"}'::jsonb
);

CREATE TABLE IF NOT EXISTS teacher_payments (
    id UUID PRIMARY KEY,
    teacher_id VARCHAR(64) NOT NULL REFERENCES teachers(id),
    month SMALLINT NOT NULL,
    year SMALLINT NOT NULL,
    amount_paid NUMERIC(14,2) NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    paid_at TIMESTAMP WITH TIME ZONE,
    recorded_by VARCHAR(64) NOT NULL DEFAULT '',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(teacher_id, year, month),
    CONSTRAINT valid_month CHECK (month BETWEEN 1 AND 12)
);

CREATE INDEX IF NOT EXISTS idx_teacher_payments_period ON teacher_payments(year, month) WHERE status = 'paid';

-- Single-row configuration store.
CREATE TABLE IF NOT EXISTS finance_settings (
    id SMALLINT PRIMARY KEY DEFAULT 1,
    document JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_by VARCHAR(64) NOT NULL DEFAULT '',

    CONSTRAINT single_row CHECK (id = 1)
);
`
