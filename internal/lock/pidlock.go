package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrHeld is returned when another process owns the PID file.
var ErrHeld = errors.New("pid file is locked by another process")

// PIDFile keeps one gateway per PID file. The lock lives as long as the file
// descriptor stays open.
type PIDFile struct {
	path string
	f    *os.File
}

// Acquire takes an exclusive non-blocking flock(2) on path and writes the
// current PID into it. If the lock is held, the error wraps ErrHeld and names
// the owning PID when it can be read.
func Acquire(path string) (*PIDFile, error) {
	if path == "" {
		return nil, fmt.Errorf("pid file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pid file directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			if pid, ok := Owner(path); ok {
				return nil, fmt.Errorf("%w (pid %d)", ErrHeld, pid)
			}
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("lock pid file: %w", err)
	}

	p := &PIDFile{path: path, f: f}
	if err := p.writePID(); err != nil {
		_ = p.Release()
		return nil, err
	}
	return p, nil
}

func (p *PIDFile) writePID() error {
	if err := p.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := p.f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	if err := p.f.Sync(); err != nil {
		return fmt.Errorf("sync pid file: %w", err)
	}
	return nil
}

// Owner reads the PID recorded in path.
func Owner(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func (p *PIDFile) Path() string { return p.path }

// Release unlocks and closes the file. The file itself is left in place.
func (p *PIDFile) Release() error {
	if p == nil || p.f == nil {
		return nil
	}
	_ = syscall.Flock(int(p.f.Fd()), syscall.LOCK_UN)
	err := p.f.Close()
	p.f = nil
	return err
}
