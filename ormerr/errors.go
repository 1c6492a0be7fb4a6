// Package ormerr defines the typed error kinds raised across the mapper
// core, so callers can errors.As against a specific failure instead of
// string-matching messages.
package ormerr

import "fmt"

// InvalidEntity is raised by the metadata registry when a type's
// descriptor cannot be built: missing table/entity marker, duplicate
// primary key, or an unresolved mapped_by target.
type InvalidEntity struct {
	TypeID string
	Reason string
}

func (e *InvalidEntity) Error() string {
	return fmt.Sprintf("invalid entity %s: %s", e.TypeID, e.Reason)
}

// MissingIdentifier is raised when an update or delete is attempted on a
// record whose primary key field is the zero value.
type MissingIdentifier struct {
	TypeID string
}

func (e *MissingIdentifier) Error() string {
	return fmt.Sprintf("%s: missing primary key value", e.TypeID)
}

// ConnectionError wraps a failure acquiring a database session.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("connect: %s", e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

// PrepareError wraps a failure preparing a parameterised statement.
type PrepareError struct {
	SQL string
	Err error
}

func (e *PrepareError) Error() string { return fmt.Sprintf("prepare %q: %s", e.SQL, e.Err) }
func (e *PrepareError) Unwrap() error { return e.Err }

// BindError wraps a failure binding a named parameter to a statement.
type BindError struct {
	Name string
	Err  error
}

func (e *BindError) Error() string { return fmt.Sprintf("bind %q: %s", e.Name, e.Err) }
func (e *BindError) Unwrap() error { return e.Err }

// ExecuteError wraps a failure executing a prepared statement.
type ExecuteError struct {
	SQL string
	Err error
}

func (e *ExecuteError) Error() string { return fmt.Sprintf("execute %q: %s", e.SQL, e.Err) }
func (e *ExecuteError) Unwrap() error { return e.Err }

// DbError is the Executor-level error for a failed step after a
// statement ran, such as reading back a generated key; Statement names
// that step (e.g. "last_insert_id"). Prepare and execute failures are
// returned as PrepareError and ExecuteError and are not wrapped in a
// DbError.
type DbError struct {
	Statement string
	Err       error
}

func (e *DbError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("db error: %s", e.Err)
	}
	return fmt.Sprintf("db error running %q: %s", e.Statement, e.Err)
}
func (e *DbError) Unwrap() error { return e.Err }

// HydrationError is raised when a row value cannot be coerced to its
// declared sql_type or assigned to its field. A column absent from the
// row is skipped, not reported.
type HydrationError struct {
	TypeID string
	Column string
	Reason string
}

func (e *HydrationError) Error() string {
	return fmt.Sprintf("hydrate %s.%s: %s", e.TypeID, e.Column, e.Reason)
}

// CascadeCycle is raised when the UnitOfWork cannot find a topological
// order for scheduled inserts or deletes because the scheduled types'
// owning-side relations form a cycle. The check is per type and ignores
// whether the foreign keys are nullable; such a cycle is not broken by
// inserting a null foreign key first.
type CascadeCycle struct {
	Cycle []string
}

func (e *CascadeCycle) Error() string {
	return fmt.Sprintf("cascade cycle prevents ordering: %v", e.Cycle)
}
