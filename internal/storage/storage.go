// Package storage defines the Archive interface: the append-only collection
// of every accepted contact-form submission.
//
// WHY AN INTERFACE?
// ─────────────────
// The contact handler should not know or care where submissions end up. By
// depending only on Archive:
//
//   - Switching backends = pick jsonfile or sqlite in main.go (driven by
//     storage.driver in the config). Zero handler changes.
//
//   - Writing tests = pass a fake that satisfies the interface. No files
//     or databases needed for handler tests.
//
// There is no Update or Delete: the archive only grows.
// Backends own their file handles and locks and never hand them out, so
// nothing outside a backend can touch the archive without its lock.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aanand-mishra/contact-form/internal/types"
)

// Archive is the record store contract.
// Any type with these three methods satisfies it implicitly, and every
// implementation must be safe for concurrent use.
type Archive interface {
	// Append atomically adds one record to the end of the archive.
	// Errors are *Error values with Kind LockTimeout or IOFailure.
	Append(ctx context.Context, rec types.Record) error

	// ReadAll returns every record in append order. An archive that has
	// never been written to yields an empty (non-nil) slice.
	ReadAll(ctx context.Context) ([]types.Record, error)

	// Close releases resources held by the backend.
	Close() error
}

// ─────────────────────────────────────────────────────────────────────────────
// Error taxonomy
//
// Store failures are never fatal to a request: the handler logs them, still
// sends the notification, and softens the reply. Callers only need to tell
// two cases apart, so there are two Kinds:
//
//	errors.Is(err, storage.ErrLockTimeout)  // another writer held the lock too long
//	errors.Is(err, storage.ErrIOFailure)    // anything else went wrong
//
// ─────────────────────────────────────────────────────────────────────────────

// Kind classifies store failures.
type Kind int

const (
	// IOFailure covers everything that is not lock contention: unreadable
	// or unwritable files, a full disk, a broken database.
	IOFailure Kind = iota
	// LockTimeout means the lock could not be taken within the retry budget.
	LockTimeout
)

func (k Kind) String() string {
	switch k {
	case LockTimeout:
		return "lock timeout"
	default:
		return "io failure"
	}
}

// Sentinels for errors.Is.
var (
	ErrLockTimeout = errors.New("archive lock timeout")
	ErrIOFailure   = errors.New("archive io failure")
)

// Error is returned by every Archive method.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("storage %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the Kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrLockTimeout:
		return e.Kind == LockTimeout
	case ErrIOFailure:
		return e.Kind == IOFailure
	}
	return false
}

// IOError wraps err as an IOFailure for op.
func IOError(op string, err error) *Error {
	return &Error{Op: op, Kind: IOFailure, Err: err}
}

// LockError wraps err as a LockTimeout for op.
func LockError(op string, err error) *Error {
	return &Error{Op: op, Kind: LockTimeout, Err: err}
}
