package driver

import (
	"context"
	"database/sql"
	"time"

	"github.com/goentity/entitymap/logger"
)

// StdStatement is the database/sql-backed Statement every concrete
// driver in this module shares; only the dialect's placeholder style
// and identifier quoting differ between sqlite, mysql and postgres, so
// the statement mechanics live here once.
type StdStatement struct {
	Stmt       *sql.Stmt
	SQL        string
	ParamOrder []string
	Bound      map[string]any
	Log        logger.Logger

	// OnResult, when set, receives the sql.Result of a non-query
	// Execute so the owning driver can capture e.g. LastInsertId.
	OnResult func(sql.Result)

	// rows is the cursor Fetch holds open across calls so repeated
	// Fetch calls advance through one result set instead of re-running
	// the query from the top each time. Opened lazily on first Fetch,
	// closed and cleared once exhausted or on Close.
	rows *sql.Rows
}

func NewStdStatement(stmt *sql.Stmt, sqlText string, paramOrder []string, log logger.Logger, onResult func(sql.Result)) *StdStatement {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &StdStatement{
		Stmt:       stmt,
		SQL:        sqlText,
		ParamOrder: paramOrder,
		Bound:      make(map[string]any, len(paramOrder)),
		Log:        log,
		OnResult:   onResult,
	}
}

func (s *StdStatement) Bind(name string, value any) Statement {
	s.Bound[name] = value
	return s
}

func (s *StdStatement) args() []any {
	return OrderArgs(s.ParamOrder, s.Bound)
}

func (s *StdStatement) Execute(ctx context.Context) error {
	start := time.Now()
	result, err := s.Stmt.ExecContext(ctx, s.args()...)
	s.Log.LogSQL(s.SQL, s.Bound, float64(time.Since(start).Microseconds())/1000.0)
	if err != nil {
		return err
	}
	if s.OnResult != nil {
		s.OnResult(result)
	}
	return nil
}

func (s *StdStatement) query(ctx context.Context) (*sql.Rows, error) {
	start := time.Now()
	rows, err := s.Stmt.QueryContext(ctx, s.args()...)
	s.Log.LogSQL(s.SQL, s.Bound, float64(time.Since(start).Microseconds())/1000.0)
	return rows, err
}

func scanRow(rows *sql.Rows) (Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	pointers := make([]any, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, err
	}
	row := make(Row, len(cols))
	for i, col := range cols {
		row[col] = values[i]
	}
	return row, nil
}

// Fetch advances the statement's own held cursor, opening it on the
// first call and closing it once exhausted. Each call returns the next
// row in the result set, never the same row twice — callers that loop
// "for { row, ok := Fetch(); ... }" will see ok=false and stop once the
// query is drained, unlike re-running the query per call would.
func (s *StdStatement) Fetch(ctx context.Context) (Row, bool, error) {
	if s.rows == nil {
		rows, err := s.query(ctx)
		if err != nil {
			return nil, false, err
		}
		s.rows = rows
	}

	if !s.rows.Next() {
		err := s.rows.Err()
		s.rows.Close()
		s.rows = nil
		return nil, false, err
	}

	row, err := scanRow(s.rows)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

func (s *StdStatement) FetchAll(ctx context.Context) ([]Row, error) {
	rows, err := s.query(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *StdStatement) Close() error {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	return s.Stmt.Close()
}
