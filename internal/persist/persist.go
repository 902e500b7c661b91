// ABOUTME: Crash-safe persistence of a single mutable aggregate per file
// ABOUTME: Advisory-locked, refcounted, with atomic write-temp-then-rename commit

package persist

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Persistable is implemented by aggregates the store can hold. The store
// only performs a physical write on release when the object reports itself
// modified, so read-only runs never touch the file.
type Persistable interface {
	IsModified() bool
	SetModified(bool)
}

// ErrBusy is returned by a non-blocking Open when another process holds
// the file's lock. It is a distinct condition, not a failure.
var ErrBusy = errors.New("state file is locked by another process")

// Persister manages the set of persisted files of one aggregate type.
// Opening the same path twice within a process yields the same in-memory
// object; the file is written and unlocked only when the last handle is
// closed.
type Persister[T Persistable] struct {
	fresh  func() T
	encode func(T) ([]byte, error)
	decode func([]byte) (T, error)
	files  map[string]*Persisted[T]
}

// New creates a Persister for an aggregate type given its constructor and
// codec functions.
func New[T Persistable](fresh func() T, encode func(T) ([]byte, error), decode func([]byte) (T, error)) *Persister[T] {
	return &Persister[T]{
		fresh:  fresh,
		encode: encode,
		decode: decode,
		files:  make(map[string]*Persisted[T]),
	}
}

// Get returns the handle for a persisted file, creating one if the path is
// not already open. The same handle is returned for repeated calls with
// the same path.
func (p *Persister[T]) Get(path string) *Persisted[T] {
	if pd, ok := p.files[path]; ok {
		return pd
	}
	pd := &Persisted[T]{persister: p, path: path}
	p.files[path] = pd
	return pd
}

// Persisted is the handle for one persisted file.
type Persisted[T Persistable] struct {
	persister *Persister[T]
	path      string
	file      *os.File
	object    T
	refcount  int
}

// Open loads the persisted object, locking the backing file first. With
// block=false a lock held elsewhere yields ErrBusy instead of waiting.
// Each successful Open must be balanced by a Close.
//
// An empty or absent file produces a fresh aggregate marked modified; a
// file that cannot be decoded is an error the caller must treat as fatal,
// never as a reason to start over with empty state.
func (pd *Persisted[T]) Open(block bool) (T, error) {
	var zero T

	if pd.refcount > 0 {
		pd.refcount++
		return pd.object, nil
	}

	slog.Debug("loading state file", "path", pd.path)

	// O_RDWR|O_CREATE: the plain open modes either refuse to create or
	// truncate, neither of which is wanted here.
	f, err := os.OpenFile(pd.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return zero, fmt.Errorf("failed to open state file %s: %w", pd.path, err)
	}

	if err := lock(f, block); err != nil {
		f.Close()
		return zero, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return zero, fmt.Errorf("failed to read state file %s: %w", pd.path, err)
	}

	var obj T
	if len(data) > 0 {
		obj, err = pd.persister.decode(data)
		if err != nil {
			f.Close()
			abs, absErr := filepath.Abs(pd.path)
			if absErr != nil {
				abs = pd.path
			}
			return zero, fmt.Errorf("failed to load state from %s (this usually means the file is corrupt, and removing it will fix the problem): %w", abs, err)
		}
		obj.SetModified(false)
	} else {
		// Empty file: start fresh. A crash that leaves it empty again
		// is harmless, it is just detected again next time.
		obj = pd.persister.fresh()
		obj.SetModified(true)
	}

	pd.file = f
	pd.object = obj
	pd.refcount = 1
	return obj, nil
}

// Close drops one reference to the persisted object. When the last
// reference goes, a modified object is committed by writing a uniquely
// named sibling temp file and renaming it over the original, so a reader
// at any instant sees either the old or the new file, never a torn one.
// The lock is released only after the commit.
func (pd *Persisted[T]) Close() error {
	if pd.refcount <= 0 {
		return fmt.Errorf("close of unopened state file %s", pd.path)
	}
	pd.refcount--
	if pd.refcount > 0 {
		return nil
	}

	var commitErr error
	if pd.object.IsModified() {
		commitErr = pd.commit()
	}

	closeErr := pd.file.Close()
	pd.file = nil
	delete(pd.persister.files, pd.path)

	if commitErr != nil {
		return commitErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close state file %s: %w", pd.path, closeErr)
	}
	return nil
}

func (pd *Persisted[T]) commit() error {
	slog.Debug("saving state file", "path", pd.path)

	data, err := pd.persister.encode(pd.object)
	if err != nil {
		return fmt.Errorf("failed to encode state for %s: %w", pd.path, err)
	}

	tmp := fmt.Sprintf("%s.new-%s", pd.path, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmp, pd.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file %s: %w", pd.path, err)
	}
	return nil
}

// Rename moves the backing file to a new path. Works whether or not the
// file is currently open; an open handle keeps its lock and refcount.
func (pd *Persisted[T]) Rename(newPath string) error {
	if err := os.Rename(pd.path, newPath); err != nil {
		return fmt.Errorf("failed to rename state file %s: %w", pd.path, err)
	}
	delete(pd.persister.files, pd.path)
	pd.persister.files[newPath] = pd
	pd.path = newPath
	return nil
}

// Path returns the current backing file path.
func (pd *Persisted[T]) Path() string { return pd.path }

// lock takes an exclusive advisory lock on the open file. With
// block=false a conflict maps to ErrBusy.
func lock(f *os.File, block bool) error {
	how := unix.LOCK_EX
	if !block {
		how |= unix.LOCK_NB
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		if !block && (errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN)) {
			return ErrBusy
		}
		return fmt.Errorf("failed to lock state file %s: %w", f.Name(), err)
	}
	return nil
}
