// Package jsonfile stores the archive as one pretty-printed JSON array on disk.
//
// Every append is a full read-modify-write cycle performed while holding an
// exclusive advisory lock on a sidecar "<archive>.lock" file. The new content
// is written to a temporary file in the same directory and renamed over the
// archive, so a reader sees either the previous array or the new one.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aanand-mishra/contact-form/internal/storage"
	"github.com/aanand-mishra/contact-form/internal/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/gofrs/flock"
)

// Default lock wait: 3 retries, 100ms apart.
const (
	DefaultLockRetries = 3
	DefaultLockBackoff = 100 * time.Millisecond
)

// Polling bounds inside the wait budget. A waiter re-checks the lock every
// few milliseconds with jitter, so a burst of writers drains one append at
// a time instead of colliding on the same retry tick.
const (
	minPoll = 2 * time.Millisecond
	maxPoll = 20 * time.Millisecond
)

var errLockBusy = errors.New("lock held by another writer")

// Options tunes lock acquisition.
//
// The two fields together set how long an operation may wait for the lock:
// LockRetries × LockBackoff. Within that window the lock is polled far more
// often than once per LockBackoff.
type Options struct {
	// LockRetries is the number of LockBackoff periods to wait after a
	// failed first attempt. Zero (or negative) means a single attempt.
	LockRetries int
	// LockBackoff is the length of one retry period. Zero selects
	// DefaultLockBackoff.
	LockBackoff time.Duration
}

// DefaultOptions returns the standard wait policy.
func DefaultOptions() Options {
	return Options{LockRetries: DefaultLockRetries, LockBackoff: DefaultLockBackoff}
}

// Archive is a storage.Archive backed by a single JSON file.
type Archive struct {
	path     string
	lockPath string
	wait     time.Duration
	poll     time.Duration
}

var _ storage.Archive = (*Archive)(nil)

// New returns an Archive for path. Nothing is created on disk until the
// first Append.
func New(path string, opts Options) *Archive {
	if opts.LockRetries < 0 {
		opts.LockRetries = 0
	}
	if opts.LockBackoff <= 0 {
		opts.LockBackoff = DefaultLockBackoff
	}
	return &Archive{
		path:     path,
		lockPath: path + ".lock",
		wait:     time.Duration(opts.LockRetries) * opts.LockBackoff,
		poll:     min(opts.LockBackoff, maxPoll),
	}
}

// Path returns the archive file location.
func (a *Archive) Path() string { return a.path }

// Append adds rec to the end of the archive.
func (a *Archive) Append(ctx context.Context, rec types.Record) error {
	const op = "append"

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return storage.IOError(op, fmt.Errorf("create archive dir: %w", err))
	}

	fl := flock.New(a.lockPath)
	if err := a.acquire(ctx, op, fl.TryLock); err != nil {
		return err
	}
	defer a.release(fl)

	records, err := a.load()
	if err != nil {
		return storage.IOError(op, err)
	}
	records = append(records, rec)

	if err := a.replace(records); err != nil {
		return storage.IOError(op, err)
	}
	return nil
}

// ReadAll returns every stored record in append order.
func (a *Archive) ReadAll(ctx context.Context) ([]types.Record, error) {
	const op = "read"

	if _, err := os.Stat(a.path); errors.Is(err, os.ErrNotExist) {
		return []types.Record{}, nil
	} else if err != nil {
		return nil, storage.IOError(op, err)
	}

	fl := flock.New(a.lockPath)
	if err := a.acquire(ctx, op, fl.TryRLock); err != nil {
		return nil, err
	}
	defer a.release(fl)

	records, err := a.load()
	if err != nil {
		return nil, storage.IOError(op, err)
	}
	return records, nil
}

// Close is a no-op; locks are scoped to single operations.
func (a *Archive) Close() error { return nil }

// acquire calls try until it reports success or the wait budget runs out.
// One attempt is always made, even with a zero budget.
func (a *Archive) acquire(ctx context.Context, op string, try func() (bool, error)) error {
	var hardErr error
	attempt := func() (struct{}, error) {
		ok, err := try()
		if err != nil {
			hardErr = err
			return struct{}{}, backoff.Permanent(err)
		}
		if !ok {
			return struct{}{}, errLockBusy
		}
		return struct{}{}, nil
	}

	opts := []backoff.RetryOption{backoff.WithMaxTries(1)}
	if a.wait > 0 {
		opts = []backoff.RetryOption{
			backoff.WithBackOff(&deadlineBackOff{
				BackOff: &backoff.ExponentialBackOff{
					InitialInterval:     min(minPoll, a.poll),
					RandomizationFactor: 0.5,
					Multiplier:          1.5,
					MaxInterval:         a.poll,
				},
				deadline: time.Now().Add(a.wait),
			}),
			backoff.WithMaxElapsedTime(0),
		}
	}

	_, err := backoff.Retry(ctx, attempt, opts...)
	if err == nil {
		return nil
	}
	if hardErr != nil {
		return storage.IOError(op, fmt.Errorf("lock %s: %w", a.lockPath, hardErr))
	}
	return storage.LockError(op, fmt.Errorf("%s not acquired within %s: %w", a.lockPath, a.wait, err))
}

// deadlineBackOff clips each pause to the time left before deadline so the
// final attempt lands on the deadline, then stops.
type deadlineBackOff struct {
	backoff.BackOff
	deadline time.Time
}

func (b *deadlineBackOff) NextBackOff() time.Duration {
	left := time.Until(b.deadline)
	if left <= 0 {
		return backoff.Stop
	}
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return backoff.Stop
	}
	return min(next, left)
}

func (a *Archive) release(fl *flock.Flock) {
	if err := fl.Unlock(); err != nil {
		slog.Warn("failed to release archive lock",
			slog.String("lock", a.lockPath),
			slog.String("error", err.Error()))
	}
}

// load reads the current archive. A missing, empty or unparsable file is an
// empty archive; unparsable content is copied aside before it is overwritten.
func (a *Archive) load() ([]types.Record, error) {
	data, err := os.ReadFile(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return []types.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []types.Record{}, nil
	}

	var records []types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		a.quarantine(data, err)
		return []types.Record{}, nil
	}
	if records == nil {
		records = []types.Record{}
	}
	return records, nil
}

func (a *Archive) quarantine(data []byte, cause error) {
	backup := a.path + ".corrupt-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	attrs := []any{
		slog.String("path", a.path),
		slog.String("error", cause.Error()),
	}
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		attrs = append(attrs, slog.String("backup_error", err.Error()))
	} else {
		attrs = append(attrs, slog.String("backup", backup))
	}
	slog.Warn("archive content is not a JSON array, starting a new one", attrs...)
}

// replace writes records to a temporary sibling file and renames it over the
// archive. The caller holds the exclusive lock.
func (a *Archive) replace(records []types.Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(a.path), filepath.Base(a.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, a.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	tmpName = ""
	return nil
}
