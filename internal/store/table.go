package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/relaydb/jobcore/internal/idgen"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, matching the teacher's
// rowScanner abstraction in internal/infrastructure/postgres/*_repo.go but
// generalized to cover Exec as well as Query.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PartialRow is an update payload: a nil pointer means "do not touch",
// matching spec.md §4.1's update() semantics.
type PartialRow struct {
	ID      string
	Ver     int64
	Dsmall  *string
	Dmedium *string
	Dlarge  *string
}

// IDVer identifies a row by its CAS key for delete().
type IDVer struct {
	ID  string
	Ver int64
}

// Table is the one concrete store type implementing select/insert/
// update/delete/selectCount/distinctDsmall/selectWhereDsmallIn, replacing
// original_source/database3.py's TableSelectMixin/TableInsertMixin/
// TableUpdateMixin/TableDeleteMixin inheritance chain with a single type
// per DESIGN NOTES' "collapse mixins" guidance.
type Table struct {
	db      *sql.DB
	dialect Dialect
	name    string
	idKind  IDKind

	mu    sync.Mutex
	stmts map[string]*sql.Stmt
}

// NewTable opens (preparing nothing yet — statements are cached lazily) a
// handle onto the physical table named name.
func NewTable(db *sql.DB, dialect Dialect, name string, idKind IDKind) *Table {
	return &Table{db: db, dialect: dialect, name: name, idKind: idKind, stmts: map[string]*sql.Stmt{}}
}

// CreateTableIfNotExists issues the DDL for this table: (id) primary key,
// (id, ver) unique, (dsmall) indexed — per spec.md §6.
func (t *Table) CreateTableIfNotExists(ctx context.Context) error {
	idCol := "id TEXT PRIMARY KEY"
	if t.idKind == IDKindInt {
		idCol = "id " + t.dialect.AutoIncrementType() + " PRIMARY KEY"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s,
		ver BIGINT NOT NULL,
		dsmall TEXT NOT NULL DEFAULT '',
		dmedium TEXT NOT NULL DEFAULT '',
		dlarge TEXT NOT NULL DEFAULT ''
	)`, t.name, idCol)
	if _, err := t.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("store: create table %s: %w", t.name, err)
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_dsmall_idx ON %s (dsmall)`, t.name, t.name)
	if _, err := t.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("store: create index on %s: %w", t.name, err)
	}
	idVerIdx := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_id_ver_idx ON %s (id, ver)`, t.name, t.name)
	if _, err := t.db.ExecContext(ctx, idVerIdx); err != nil {
		return fmt.Errorf("store: create index on %s: %w", t.name, err)
	}
	return nil
}

// prepared returns a cached *sql.Stmt for key, preparing it against t.db on
// first use. Per spec.md §4.1: "per-table cache keyed by operation shape
// (insert, delete, eight variants of update...)".
func (t *Table) prepared(ctx context.Context, key, sqlText string) (*sql.Stmt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.stmts[key]; ok {
		return s, nil
	}
	s, err := t.db.PrepareContext(ctx, t.rebind(sqlText))
	if err != nil {
		return nil, err
	}
	t.stmts[key] = s
	return s, nil
}

// execCached runs stmt through q, rebinding it onto the current
// transaction when q is one; falls back to re-issuing sqlText directly
// through q for Querier implementations that are neither *sql.Tx nor
// *sql.DB.
func execCached(ctx context.Context, q Querier, stmt *sql.Stmt, sqlText string, args ...any) (sql.Result, error) {
	switch v := q.(type) {
	case *sql.Tx:
		return v.StmtContext(ctx, stmt).ExecContext(ctx, args...)
	case *sql.DB:
		return stmt.ExecContext(ctx, args...)
	default:
		return q.ExecContext(ctx, sqlText, args...)
	}
}

func queryRowCached(ctx context.Context, q Querier, stmt *sql.Stmt, sqlText string, args ...any) *sql.Row {
	switch v := q.(type) {
	case *sql.Tx:
		return v.StmtContext(ctx, stmt).QueryRowContext(ctx, args...)
	case *sql.DB:
		return stmt.QueryRowContext(ctx, args...)
	default:
		return q.QueryRowContext(ctx, sqlText, args...)
	}
}

func (t *Table) rebind(sqlText string) string {
	if t.dialect == Postgres {
		n := 0
		var b strings.Builder
		for _, r := range sqlText {
			if r == '?' {
				n++
				b.WriteString(t.dialect.Placeholder(n))
			} else {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	return sqlText
}

// withTx runs fn inside q if q is non-nil, otherwise opens and
// commits/rolls back its own transaction around fn — per spec.md §4.1's
// "a supplied connection is neither begun nor committed by the store".
func (t *Table) withTx(ctx context.Context, q Querier, fn func(Querier) error) error {
	if q != nil {
		return fn(q)
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Insert assigns id (UUID tables) and ver=1 to each row and persists them.
// Integer-id tables insert one row at a time so the generated id can be
// returned; UUID-id tables insert in one bulk statement.
func (t *Table) Insert(ctx context.Context, q Querier, rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]Row, len(rows))
	err := t.withTx(ctx, q, func(qq Querier) error {
		if t.idKind == IDKindInt {
			sqlText := fmt.Sprintf("INSERT INTO %s (ver, dsmall, dmedium, dlarge) VALUES (1, ?, ?, ?) RETURNING id", t.name)
			stmt, err := t.prepared(ctx, "insert", sqlText)
			if err != nil {
				return unknown(t.name, err.Error())
			}
			for i, r := range rows {
				var id string
				if err := queryRowCached(ctx, qq, stmt, t.rebind(sqlText), r.Dsmall, r.Dmedium, r.Dlarge).Scan(&id); err != nil {
					return unknown(t.name, err.Error())
				}
				out[i] = Row{ID: id, Ver: 1, Dsmall: r.Dsmall, Dmedium: r.Dmedium, Dlarge: r.Dlarge}
			}
			return nil
		}

		ids := make([]string, len(rows))
		for i, r := range rows {
			id := r.ID
			if id == "" {
				id = idgen.New()
			}
			ids[i] = id
		}
		var b strings.Builder
		fmt.Fprintf(&b, "INSERT INTO %s (id, ver, dsmall, dmedium, dlarge) VALUES ", t.name)
		args := make([]any, 0, len(rows)*4)
		for i, r := range rows {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(?, 1, ?, ?, ?)")
			args = append(args, ids[i], r.Dsmall, r.Dmedium, r.Dlarge)
		}
		if _, err := qq.ExecContext(ctx, t.rebind(b.String()), args...); err != nil {
			return unknown(t.name, err.Error())
		}
		for i, r := range rows {
			out[i] = Row{ID: ids[i], Ver: 1, Dsmall: r.Dsmall, Dmedium: r.Dmedium, Dlarge: r.Dlarge}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies each PartialRow under an (id, ver) CAS, matching
// original_source/database3.py's TableUpdateMixin.update/check_update_failed.
func (t *Table) Update(ctx context.Context, q Querier, rows []PartialRow, fillMissing bool) ([]Row, error) {
	out := make([]Row, len(rows))
	err := t.withTx(ctx, q, func(qq Querier) error {
		for i, r := range rows {
			row, err := t.updateOne(ctx, qq, r, fillMissing)
			if err != nil {
				return err
			}
			out[i] = row
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// updateVariantKey picks one of the eight statement-cache slots for an
// update, keyed by which payload columns are present in this call — the
// variant that omits null-valued columns preserves their existing
// contents, per spec.md §4.1.
func updateVariantKey(r PartialRow) (int, string) {
	bit := 0
	if r.Dsmall != nil {
		bit |= 1
	}
	if r.Dmedium != nil {
		bit |= 2
	}
	if r.Dlarge != nil {
		bit |= 4
	}
	return bit, fmt.Sprintf("update:%d", bit)
}

func (t *Table) updateOne(ctx context.Context, q Querier, r PartialRow, fillMissing bool) (Row, error) {
	bit, key := updateVariantKey(r)
	sets := []string{"ver = ver + 1"}
	args := []any{}
	if bit&1 != 0 {
		sets = append(sets, "dsmall = ?")
		args = append(args, *r.Dsmall)
	}
	if bit&2 != 0 {
		sets = append(sets, "dmedium = ?")
		args = append(args, *r.Dmedium)
	}
	if bit&4 != 0 {
		sets = append(sets, "dlarge = ?")
		args = append(args, *r.Dlarge)
	}
	sqlText := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND ver = ?", t.name, strings.Join(sets, ", "))
	args = append(args, r.ID, r.Ver)

	stmt, err := t.prepared(ctx, key, sqlText)
	if err != nil {
		return Row{}, unknown(t.name, err.Error())
	}
	res, err := execCached(ctx, q, stmt, t.rebind(sqlText), args...)
	if err != nil {
		return Row{}, unknown(t.name, err.Error())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Row{}, unknown(t.name, err.Error())
	}
	if n == 0 {
		existing, err := t.selectOneRaw(ctx, q, r.ID)
		if err != nil {
			return Row{}, err
		}
		if existing == nil {
			return Row{}, notFound(t.name, r.ID)
		}
		if existing.Ver != r.Ver {
			return Row{}, concurrency(t.name, r.ID, r.Ver, existing.Ver)
		}
		return Row{}, unknown(t.name, "update affected zero rows for unknown reason")
	}

	result, err := t.selectOneRaw(ctx, q, r.ID)
	if err != nil {
		return Row{}, err
	}
	if result == nil {
		return Row{}, unknown(t.name, "row vanished immediately after update")
	}
	if !fillMissing {
		if r.Dsmall == nil {
			result.Dsmall = ""
		}
		if r.Dmedium == nil {
			result.Dmedium = ""
		}
		if r.Dlarge == nil {
			result.Dlarge = ""
		}
	}
	return *result, nil
}

// Delete removes rows by (id, ver); a missing row is a no-op per spec.md
// §4.1, unlike update where a missing row is NotFound.
func (t *Table) Delete(ctx context.Context, q Querier, keys []IDVer) error {
	return t.withTx(ctx, q, func(qq Querier) error {
		sqlText := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND ver = ?", t.name)
		stmt, err := t.prepared(ctx, "delete", sqlText)
		if err != nil {
			return unknown(t.name, err.Error())
		}
		for _, k := range keys {
			res, err := execCached(ctx, qq, stmt, t.rebind(sqlText), k.ID, k.Ver)
			if err != nil {
				return unknown(t.name, err.Error())
			}
			n, err := res.RowsAffected()
			if err != nil {
				return unknown(t.name, err.Error())
			}
			if n == 0 {
				existing, err := t.selectOneRaw(ctx, qq, k.ID)
				if err != nil {
					return err
				}
				if existing == nil {
					continue // already gone: no-op
				}
				if existing.Ver != k.Ver {
					return concurrency(t.name, k.ID, k.Ver, existing.Ver)
				}
				return unknown(t.name, "delete affected zero rows for unknown reason")
			}
		}
		return nil
	})
}

// DeleteByDsmall deletes every row whose dsmall matches one of values,
// returning the count deleted.
func (t *Table) DeleteByDsmall(ctx context.Context, q Querier, values []string) (int64, error) {
	pred := DsmallIn(values)
	var n int64
	err := t.withTx(ctx, q, func(qq Querier) error {
		sqlText := t.rebind(fmt.Sprintf("DELETE FROM %s WHERE %s", t.name, pred.Where))
		res, err := qq.ExecContext(ctx, sqlText, pred.Args...)
		if err != nil {
			return unknown(t.name, err.Error())
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// DeleteAll deletes every row in the table, returning the count deleted.
func (t *Table) DeleteAll(ctx context.Context, q Querier) (int64, error) {
	var n int64
	err := t.withTx(ctx, q, func(qq Querier) error {
		res, err := qq.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", t.name))
		if err != nil {
			return unknown(t.name, err.Error())
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

func (t *Table) columnList(mask ColumnMask) string {
	cols := []string{"id", "ver"}
	if mask.Has(ColDsmall) {
		cols = append(cols, "dsmall")
	}
	if mask.Has(ColDmedium) {
		cols = append(cols, "dmedium")
	}
	if mask.Has(ColDlarge) {
		cols = append(cols, "dlarge")
	}
	return strings.Join(cols, ", ")
}

func (t *Table) scanRow(rows *sql.Rows, mask ColumnMask) (Row, error) {
	var r Row
	dest := []any{&r.ID, &r.Ver}
	if mask.Has(ColDsmall) {
		dest = append(dest, &r.Dsmall)
	}
	if mask.Has(ColDmedium) {
		dest = append(dest, &r.Dmedium)
	}
	if mask.Has(ColDlarge) {
		dest = append(dest, &r.Dlarge)
	}
	if err := rows.Scan(dest...); err != nil {
		return Row{}, err
	}
	return r, nil
}

// Select runs a predicate-filtered query over mask, per spec.md §4.1.
func (t *Table) Select(ctx context.Context, q Querier, mask ColumnMask, pred Predicate) ([]Row, error) {
	qq := t.querier(q)
	sqlText := fmt.Sprintf("SELECT %s FROM %s", t.columnList(mask), t.name)
	var args []any
	if pred.Where != "" {
		sqlText += " WHERE " + pred.Where
		args = pred.Args
	}
	rows, err := qq.QueryContext(ctx, t.rebind(sqlText), args...)
	if err != nil {
		return nil, unknown(t.name, err.Error())
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		r, err := t.scanRow(rows, mask)
		if err != nil {
			return nil, unknown(t.name, err.Error())
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *Table) querier(q Querier) Querier {
	if q != nil {
		return q
	}
	return t.db
}

func (t *Table) selectOneRaw(ctx context.Context, q Querier, id string) (*Row, error) {
	sqlText := fmt.Sprintf("SELECT id, ver, dsmall, dmedium, dlarge FROM %s WHERE id = ?", t.name)
	stmt, err2 := t.prepared(ctx, "selectOne", sqlText)
	if err2 != nil {
		return nil, unknown(t.name, err2.Error())
	}
	var r Row
	err := queryRowCached(ctx, q, stmt, t.rebind(sqlText), id).Scan(&r.ID, &r.Ver, &r.Dsmall, &r.Dmedium, &r.Dlarge)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unknown(t.name, err.Error())
	}
	return &r, nil
}

// SelectOne fetches a single row by id, masked to mask. Returns NotFound if
// absent.
func (t *Table) SelectOne(ctx context.Context, q Querier, id string, mask ColumnMask) (Row, error) {
	raw, err := t.selectOneRaw(ctx, t.querier(q), id)
	if err != nil {
		return Row{}, err
	}
	if raw == nil {
		return Row{}, notFound(t.name, id)
	}
	if !mask.Has(ColDsmall) {
		raw.Dsmall = ""
	}
	if !mask.Has(ColDmedium) {
		raw.Dmedium = ""
	}
	if !mask.Has(ColDlarge) {
		raw.Dlarge = ""
	}
	return *raw, nil
}

// SelectAll fetches every row, masked to mask.
func (t *Table) SelectAll(ctx context.Context, q Querier, mask ColumnMask) ([]Row, error) {
	return t.Select(ctx, q, mask, Predicate{})
}

// SelectCount counts rows matching pred.
func (t *Table) SelectCount(ctx context.Context, q Querier, pred Predicate) (int64, error) {
	qq := t.querier(q)
	sqlText := fmt.Sprintf("SELECT COUNT(*) FROM %s", t.name)
	var args []any
	if pred.Where != "" {
		sqlText += " WHERE " + pred.Where
		args = pred.Args
	}
	var n int64
	if err := qq.QueryRowContext(ctx, t.rebind(sqlText), args...).Scan(&n); err != nil {
		return 0, unknown(t.name, err.Error())
	}
	return n, nil
}

// SelectCountAll counts every row in the table.
func (t *Table) SelectCountAll(ctx context.Context, q Querier) (int64, error) {
	return t.SelectCount(ctx, q, Predicate{})
}

// DistinctDsmall returns the set of distinct dsmall values present.
func (t *Table) DistinctDsmall(ctx context.Context, q Querier) ([]string, error) {
	qq := t.querier(q)
	rows, err := qq.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT dsmall FROM %s", t.name))
	if err != nil {
		return nil, unknown(t.name, err.Error())
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, unknown(t.name, err.Error())
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SelectWhereDsmallIn fetches every row whose dsmall is one of values.
func (t *Table) SelectWhereDsmallIn(ctx context.Context, q Querier, values []string, mask ColumnMask) ([]Row, error) {
	return t.Select(ctx, q, mask, DsmallIn(values))
}
