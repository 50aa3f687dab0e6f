// Package lock serializes runs that write the same changelog.
package lock

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

// errWouldBlock is returned by tryLock when another process holds the lock.
var errWouldBlock = errors.New("lock is held by another process")

// Holder identifies the process that owns a lock.
type Holder struct {
	PID   int
	RunID string
}

// Locker is an exclusive, non-blocking lock keyed by a changelog path.
type Locker struct {
	lockFile string
	target   string
	runID    string
	file     *os.File
}

// New creates a Locker for the changelog at target. The lock file lives in
// dir, or in the system temp directory when dir is empty.
func New(target, dir string) (*Locker, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDirectory,
			fmt.Sprintf("cannot resolve %q", target))
	}
	if dir == "" {
		dir = os.TempDir()
	}

	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(abs)))[:16]
	return &Locker{
		lockFile: filepath.Join(dir, fmt.Sprintf("tag2changelog-%s.lock", hash)),
		target:   abs,
		runID:    uuid.NewString(),
	}, nil
}

// Path returns the lock file path.
func (l *Locker) Path() string {
	return l.lockFile
}

// RunID returns the identifier written into the lock file.
func (l *Locker) RunID() string {
	return l.runID
}

// Acquire takes the lock or fails immediately if another run holds it.
func (l *Locker) Acquire() error {
	if l.file != nil {
		return nil
	}

	// The file may be unlinked by the previous holder between open and
	// flock; retry once on a fresh inode.
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.lockFile, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrLockHeld, "failed to open lock file").
				WithContext("lock", l.lockFile)
		}

		if err := tryLock(f); err != nil {
			_ = f.Close()
			if errors.Is(err, errWouldBlock) {
				return l.heldError()
			}
			return apperrors.Wrap(err, apperrors.ErrLockHeld, "failed to lock").
				WithContext("lock", l.lockFile)
		}

		if sameFile(f, l.lockFile) {
			l.file = f
			return l.writeHolder()
		}
		_ = unlock(f)
		_ = f.Close()
	}
	return l.heldError()
}

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *Locker) Release() error {
	if l.file == nil {
		return nil
	}

	// Remove before unlocking so a waiter never locks an orphaned inode.
	removeErr := os.Remove(l.lockFile)
	unlockErr := unlock(l.file)
	closeErr := l.file.Close()
	l.file = nil

	for _, err := range []error{unlockErr, closeErr} {
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrLockHeld, "failed to release lock").
				WithContext("lock", l.lockFile)
		}
	}
	if removeErr != nil && !os.IsNotExist(removeErr) {
		apperrors.Debug("failed to remove lock file %s: %v", l.lockFile, removeErr)
	}
	return nil
}

// ReadHolder parses the holder recorded in a lock file.
func ReadHolder(path string) (Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return Holder{}, fmt.Errorf("lock file %s is empty", path)
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return Holder{}, fmt.Errorf("invalid PID in lock file: %w", err)
	}
	h := Holder{PID: pid}
	if len(fields) > 1 {
		h.RunID = fields[1]
	}
	return h, nil
}

func (l *Locker) writeHolder() error {
	content := fmt.Sprintf("%d %s\n", os.Getpid(), l.runID)
	if err := l.file.Truncate(0); err == nil {
		_, err = l.file.WriteAt([]byte(content), 0)
		if err == nil {
			return nil
		}
	}
	releaseErr := l.Release()
	if releaseErr != nil {
		apperrors.Debug("release after failed write: %v", releaseErr)
	}
	return apperrors.New(apperrors.ErrLockHeld, "failed to record lock holder").
		WithContext("lock", l.lockFile)
}

func (l *Locker) heldError() error {
	appErr := apperrors.New(apperrors.ErrLockHeld,
		fmt.Sprintf("another run is writing %s", l.target)).
		WithContext("lock", l.lockFile).
		WithSuggestion("Wait for the other run to finish, or disable locking with lock.enabled: false")
	if h, err := ReadHolder(l.lockFile); err == nil {
		appErr = appErr.WithContext("pid", h.PID)
		if h.RunID != "" {
			appErr = appErr.WithContext("run_id", h.RunID)
		}
	}
	return appErr
}

func sameFile(f *os.File, path string) bool {
	a, err := f.Stat()
	if err != nil {
		return false
	}
	b, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(a, b)
}
