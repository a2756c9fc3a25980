package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect selects SQL placeholder style and error mapping
type Dialect int

const (
	// DialectSQLite targets mattn/go-sqlite3
	DialectSQLite Dialect = iota
	// DialectPostgres targets the pgx stdlib driver
	DialectPostgres
)

// String returns the string representation of the dialect
func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// querier abstracts *sql.DB and *sql.Tx so collection operations run
// identically inside and outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SQL is a Collection backed by a single table through database/sql. The
// table, identifier column, and data columns are fixed at construction; the
// table name and column names must come from configuration, never from user
// input, because SQL cannot parameterize them.
type SQL struct {
	db      *sql.DB
	q       querier
	dialect Dialect
	table   string
	idCol   string
	columns []string
}

// NewSQL creates a SQL-backed collection over the given table
func NewSQL(db *sql.DB, dialect Dialect, table, idColumn string, columns []string) *SQL {
	return &SQL{
		db:      db,
		q:       db,
		dialect: dialect,
		table:   table,
		idCol:   idColumn,
		columns: columns,
	}
}

// Query returns records matching all equality filters, ordered by identifier
func (s *SQL) Query(ctx context.Context, filters ...Filter) ([]Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", s.selectList(), s.table)

	var args []interface{}
	if len(filters) > 0 {
		var conditions []string
		for _, f := range filters {
			if !s.validColumn(f.Field) {
				return nil, fmt.Errorf("unknown column in filter: %s", f.Field)
			}
			conditions = append(conditions, fmt.Sprintf("%s = %s", f.Field, s.placeholder(len(args)+1)))
			args = append(args, f.Value)
		}
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s", s.idCol)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, convertDBError(err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns the record with the given identifier
func (s *SQL) Get(ctx context.Context, id interface{}) (Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		s.selectList(), s.table, s.idCol, s.placeholder(1))

	rows, err := s.q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, convertDBError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, convertDBError(err)
		}
		return nil, ErrNotFound
	}
	return s.scanRecord(rows)
}

// Create inserts a new record and returns it with its assigned identifier
func (s *SQL) Create(ctx context.Context, fields Record) (Record, error) {
	var cols []string
	var args []interface{}
	for _, col := range s.columns {
		if value, ok := fields[col]; ok {
			cols = append(cols, col)
			args = append(args, value)
		}
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = s.placeholder(i + 1)
	}

	if s.dialect == DialectPostgres {
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			s.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), s.idCol)
		var id interface{}
		if err := s.q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return nil, convertDBError(err)
		}
		return s.Get(ctx, id)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, convertDBError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, convertDBError(err)
	}
	return s.Get(ctx, id)
}

// Update overwrites the given fields on an existing record
func (s *SQL) Update(ctx context.Context, record Record, fields Record) (Record, error) {
	var sets []string
	var args []interface{}
	for _, col := range s.columns {
		if col == s.idCol {
			continue
		}
		if value, ok := fields[col]; ok {
			sets = append(sets, fmt.Sprintf("%s = %s", col, s.placeholder(len(args)+1)))
			args = append(args, value)
		}
	}
	if len(sets) == 0 {
		return s.Get(ctx, record[s.idCol])
	}

	args = append(args, record[s.idCol])
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		s.table, strings.Join(sets, ", "), s.idCol, s.placeholder(len(args)))

	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, convertDBError(err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, record[s.idCol])
}

// Delete removes an existing record
func (s *SQL) Delete(ctx context.Context, record Record) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", s.table, s.idCol, s.placeholder(1))
	result, err := s.q.ExecContext(ctx, query, record[s.idCol])
	if err != nil {
		return convertDBError(err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Atomic runs fn against a transaction-scoped view of the collection. The
// transaction commits when fn returns nil and rolls back on error or panic.
func (s *SQL) Atomic(ctx context.Context, fn func(tx Collection) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		// Already transaction-scoped; reuse the enclosing transaction.
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	scoped := &SQL{
		db:      s.db,
		q:       tx,
		dialect: s.dialect,
		table:   s.table,
		idCol:   s.idCol,
		columns: s.columns,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *SQL) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQL) selectList() string {
	cols := make([]string, 0, len(s.columns)+1)
	cols = append(cols, s.idCol)
	for _, c := range s.columns {
		if c != s.idCol {
			cols = append(cols, c)
		}
	}
	return strings.Join(cols, ", ")
}

func (s *SQL) validColumn(name string) bool {
	if name == s.idCol {
		return true
	}
	for _, c := range s.columns {
		if c == name {
			return true
		}
	}
	return false
}

func (s *SQL) scanRecord(rows *sql.Rows) (Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, convertDBError(err)
	}

	rec := make(Record, len(cols))
	for i, col := range cols {
		switch v := values[i].(type) {
		case []byte:
			rec[col] = string(v)
		default:
			rec[col] = v
		}
	}
	return rec, nil
}

// SQLStore groups named SQL-backed collections
type SQLStore struct {
	collections map[string]*SQL
}

// NewSQLStore creates an empty SQL store
func NewSQLStore() *SQLStore {
	return &SQLStore{collections: make(map[string]*SQL)}
}

// Register installs a collection under a resource name
func (s *SQLStore) Register(name string, col *SQL) *SQLStore {
	s.collections[name] = col
	return s
}

// Collection returns the named collection. An unregistered name yields a
// collection whose every operation fails, so a misdeclared relation target
// surfaces as an error instead of a nil dereference at request time.
func (s *SQLStore) Collection(name string) Collection {
	col, ok := s.collections[name]
	if !ok {
		return unregistered(name)
	}
	return col
}

type unregistered string

func (u unregistered) fail() error {
	return fmt.Errorf("no collection registered for %q", string(u))
}

func (u unregistered) Query(ctx context.Context, filters ...Filter) ([]Record, error) {
	return nil, u.fail()
}

func (u unregistered) Get(ctx context.Context, id interface{}) (Record, error) {
	return nil, u.fail()
}

func (u unregistered) Create(ctx context.Context, fields Record) (Record, error) {
	return nil, u.fail()
}

func (u unregistered) Update(ctx context.Context, record Record, fields Record) (Record, error) {
	return nil, u.fail()
}

func (u unregistered) Delete(ctx context.Context, record Record) error {
	return u.fail()
}

func (u unregistered) Atomic(ctx context.Context, fn func(tx Collection) error) error {
	return u.fail()
}
