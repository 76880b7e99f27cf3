package postgres

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// statement is one SQL call seen by fakeDB.
type statement struct {
	inTx bool
	sql  string
	args []any
}

// fakeDB stands in for the pool. Queries answer with rows registered by SQL
// fragment; batched statements report the queued tags in order.
type fakeDB struct {
	mu         sync.Mutex
	statements []statement
	rows       map[string][][]any
	tags       []string
	execErr    error

	begins, commits, rollbacks, closes int
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: map[string][][]any{}}
}

func (f *fakeDB) record(inTx bool, sql string, args []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, statement{inTx: inTx, sql: sql, args: args})
}

func (f *fakeDB) rowsFor(sql string) [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fragment, rows := range f.rows {
		if strings.Contains(sql, fragment) {
			return rows
		}
	}
	return nil
}

// matching returns the statements whose SQL contains fragment.
func (f *fakeDB) matching(fragment string) []statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []statement
	for _, s := range f.statements {
		if strings.Contains(s.sql, fragment) {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeDB) last() statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statements[len(f.statements)-1]
}

func (f *fakeDB) exec(inTx bool, sql string, args []any) (pgconn.CommandTag, error) {
	f.record(inTx, sql, args)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDB) query(inTx bool, sql string, args []any) (pgx.Rows, error) {
	f.record(inTx, sql, args)
	return &fakeRows{data: f.rowsFor(sql)}, nil
}

func (f *fakeDB) queryRow(inTx bool, sql string, args []any) pgx.Row {
	f.record(inTx, sql, args)
	rows := f.rowsFor(sql)
	if len(rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: rows[0]}
}

func (f *fakeDB) sendBatch(inTx bool, b *pgx.Batch) pgx.BatchResults {
	for _, q := range b.QueuedQueries {
		f.record(inTx, q.SQL, q.Arguments)
	}
	return &fakeBatch{tags: f.tags}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.exec(false, sql, args)
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return f.query(false, sql, args)
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return f.queryRow(false, sql, args)
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	return f.sendBatch(false, b)
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begins++
	return &fakeTx{db: f}, nil
}

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.exec(true, sql, args)
}

func (t *fakeTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.db.query(true, sql, args)
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return t.db.queryRow(true, sql, args)
}

func (t *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	return t.db.sendBatch(true, b)
}

func (t *fakeTx) Commit(context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.rollbacks++
	return nil
}

type fakeBatch struct {
	pgx.BatchResults
	tags []string
	next int
}

func (b *fakeBatch) Exec() (pgconn.CommandTag, error) {
	tag := "UPDATE 1"
	if b.next < len(b.tags) {
		tag = b.tags[b.next]
	}
	b.next++
	return pgconn.NewCommandTag(tag), nil
}

func (b *fakeBatch) Close() error { return nil }

type fakeRows struct {
	pgx.Rows
	data [][]any
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(r.data[r.pos-1], dest)
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

func scanInto(values, dest []any) error {
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(values[i]))
	}
	return nil
}
