package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/vasolab/vasostore/pkg/types"
)

// staleLockAge is how old a lock may be before it is reclaimed even when the
// holder's liveness cannot be determined (different host, unreadable pid).
const staleLockAge = time.Hour

// lockInfo is the JSON payload of a bundle's .lock file.
type lockInfo struct {
	PID       int    `json:"pid"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"timestamp"`
}

// Lock is an advisory single-writer lock over a bundle directory.
type Lock struct {
	path string
	info lockInfo
}

// acquireLock takes the bundle lock at path, reclaiming a stale one. A live
// lock held by another process fails with ErrBundleLocked.
func acquireLock(path string, log *slog.Logger) (*Lock, error) {
	hostname, _ := os.Hostname()
	info := lockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encoding lock: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if _, werr := f.Write(data); werr != nil {
				f.Close()
				os.Remove(path)
				return nil, fmt.Errorf("writing lock: %w", werr)
			}
			if cerr := f.Close(); cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("closing lock: %w", cerr)
			}
			return &Lock{path: path, info: info}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock: %w", err)
		}

		holder, readErr := readLock(path)
		if readErr == nil && !lockStale(holder, hostname) {
			return nil, fmt.Errorf("held by pid %d on %s since %s: %w",
				holder.PID, holder.Hostname, holder.Timestamp, types.ErrBundleLocked)
		}
		// Unreadable or stale lock: reclaim it and retry once.
		log.Warn("reclaiming stale bundle lock",
			"path", path, "holder_pid", holder.PID, "holder_host", holder.Hostname)
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, fmt.Errorf("removing stale lock: %w", rmErr)
		}
	}
	return nil, fmt.Errorf("lock contention at %s: %w", path, types.ErrBundleLocked)
}

func readLock(path string) (lockInfo, error) {
	var info lockInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, err
	}
	return info, nil
}

// lockStale reports whether a lock can be reclaimed: its holder process is
// dead on this host, or the lock is older than staleLockAge.
func lockStale(info lockInfo, hostname string) bool {
	if info.Hostname == hostname && info.PID > 0 && !pidAlive(info.PID) {
		return true
	}
	ts, err := time.Parse(time.RFC3339, info.Timestamp)
	if err != nil {
		return true
	}
	return time.Since(ts) > staleLockAge
}

func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Release removes the lock file. Only the owning process removes it; a lock
// reclaimed by someone else is left alone.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	current, err := readLock(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading lock before release: %w", err)
	}
	if current.PID != l.info.PID || current.Hostname != l.info.Hostname {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lock: %w", err)
	}
	return nil
}
