package backend

import "fmt"

// AuthError is returned by IdentityService for rejected credentials or a
// missing session. Callers surface a generic message to the user.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %s", e.Op, e.Err.Error())
	}
	return fmt.Sprintf("auth: %s", e.Op)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// QueryError wraps any read failure. Non-fatal to the session; callers
// render an empty/error state and keep prior valid state intact.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %s", e.Op, e.Err.Error())
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed write (completion upsert, message send).
// Local state must not advance; retry is caller-driven.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %s", e.Op, e.Err.Error())
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewAuthError(op string, err error) *AuthError {
	return &AuthError{Op: op, Err: err}
}

func NewQueryError(op string, err error) *QueryError {
	return &QueryError{Op: op, Err: err}
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}
