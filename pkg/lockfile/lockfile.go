// Package lockfile prevents two batch runs from interleaving writes into the
// same output directory. The lock is a PID file in the temp directory, named
// after a hash of the output path, with stale-lock recovery when the owning
// process is gone.
package lockfile

import (
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFile guards one output directory per process.
type LockFile struct {
	path string
	pid  int
}

// ForOutputDir creates a lock handle for outDir. The lock is not held until
// TryLock succeeds.
func ForOutputDir(outDir string) *LockFile {
	sum := sha1.Sum([]byte(filepath.Clean(outDir)))
	name := fmt.Sprintf("framed-%x.lock", sum[:6])
	return &LockFile{
		path: filepath.Join(os.TempDir(), name),
		pid:  os.Getpid(),
	}
}

// TryLock acquires the lock, removing a stale lock left by a dead process.
// Returns an error when another live process holds it.
func (l *LockFile) TryLock() error {
	if data, err := os.ReadFile(l.path); err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err == nil {
			if isProcessRunning(pid) {
				return fmt.Errorf("output directory is in use by another run (PID %d)", pid)
			}
			os.Remove(l.path)
		}
	}

	pidStr := fmt.Sprintf("%d\n", l.pid)
	if err := os.WriteFile(l.path, []byte(pidStr), 0644); err != nil {
		return fmt.Errorf("create lock file: %w", err)
	}
	return nil
}

// Unlock releases the lock if this process holds it.
func (l *LockFile) Unlock() error {
	if data, err := os.ReadFile(l.path); err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err == nil && pid == l.pid {
			return os.Remove(l.path)
		}
	}
	return nil
}

// isProcessRunning probes a PID with signal 0.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == syscall.ESRCH {
		return false
	}
	// EPERM means the process exists but belongs to someone else.
	if err == syscall.EPERM {
		return true
	}
	return false
}
