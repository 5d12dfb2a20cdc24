package meta

import (
	"errors"
	"fmt"
)

var (
	ErrDatabaseAlreadyExists = errors.New("database already exists")
	ErrUnknownDatabase       = errors.New("unknown database")
	ErrTableAlreadyExists    = errors.New("table already exists")
	ErrUnknownTable          = errors.New("unknown table")
	ErrTableVersionMismatch  = errors.New("table version mismatch")
	// ErrMetaNodeInternal wraps storage failures of the metadata node.
	ErrMetaNodeInternal = errors.New("meta node internal error")
)

// Error is a metadata error with a user-facing message. It matches its
// kind with errors.Is.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// TableVersionMismatchError is returned when an optimistic update targets a
// version the table no longer has.
type TableVersionMismatchError struct {
	TableID   uint64
	Requested MatchSeq
	Current   uint64
}

func (e *TableVersionMismatchError) Error() string {
	return fmt.Sprintf("targeting version %s, current version %d", e.Requested, e.Current)
}

func (e *TableVersionMismatchError) Unwrap() error { return ErrTableVersionMismatch }

func internalError(err error) error {
	var metaErr *Error
	var mismatch *TableVersionMismatchError
	if errors.As(err, &metaErr) || errors.As(err, &mismatch) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMetaNodeInternal, err)
}
