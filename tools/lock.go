package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ritukeshbharali/jemjive-3.0/internal/config"
)

// ErrIndexLocked is returned when another live process keeps the symbol
// index locked for longer than lockWait.
var ErrIndexLocked = errors.New("symbol index is locked by another process")

// lockWait bounds how long a refresh waits for another server or CLI run
// sharing the data directory.
var lockWait = 5 * time.Second

const lockPoll = 250 * time.Millisecond

// indexLock is a PID file next to the index. It keeps two processes that
// share a data directory from rebuilding the catalog and index at once.
type indexLock struct {
	path string
}

func dataDirLock() indexLock {
	return indexLock{path: filepath.Join(dataDir, config.LockFile)}
}

// owner returns the PID recorded in the lock file, 0 when there is none and
// -1 when the file does not hold a PID.
func (l indexLock) owner() (int, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read lock file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return -1, nil
	}
	return pid, nil
}

// acquire records this process as the owner. A lock left by a dead process
// or holding garbage is taken over; a live owner is waited for.
func (l indexLock) acquire(ctx context.Context) error {
	self := os.Getpid()
	deadline := time.Now().Add(lockWait)

	for {
		pid, err := l.owner()
		if err != nil {
			return err
		}

		switch {
		case pid == self:
			return nil
		case pid < 0:
			log.Printf("Warning: Index lock %s holds no PID, taking it over", l.path)
		case pid > 0 && isProcessRunning(pid):
			if time.Now().After(deadline) {
				return fmt.Errorf("%w (PID %d)", ErrIndexLocked, pid)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(lockPoll):
			}
			continue
		case pid > 0:
			log.Printf("Index lock of exited process %d is stale, taking it over", pid)
		}

		if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
			return fmt.Errorf("failed to create lock directory: %w", err)
		}
		if err := os.WriteFile(l.path, []byte(strconv.Itoa(self)), 0644); err != nil {
			return fmt.Errorf("failed to create lock file: %w", err)
		}
		log.Printf("✓ Index lock acquired (PID %d)", self)
		return nil
	}
}

// release removes the lock file when this process owns it.
func (l indexLock) release() error {
	pid, err := l.owner()
	if err != nil {
		return err
	}
	switch {
	case pid == 0:
		return nil
	case pid != os.Getpid():
		log.Printf("Warning: Index lock belongs to PID %d, not removing", pid)
		return nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	log.Printf("✓ Index lock released")
	return nil
}
