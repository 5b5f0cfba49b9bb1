package daemonctl

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/gofrs/flock"

	"webar/internal/config"
	"webar/internal/fileutil"
)

// ErrNotRunning reports that no daemon has published an API address.
var ErrNotRunning = errors.New("webar daemon is not running")

// Lease is exclusive use of a data directory.
type Lease struct {
	lock *flock.Flock
}

// TryAcquire takes the data directory lock without blocking. It returns
// nil, nil when another process holds it.
func TryAcquire(cfg *config.Config) (*Lease, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", cfg.LockPath(), err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{lock: lock}, nil
}

// Held reports whether some process currently holds the data directory lock.
func Held(cfg *config.Config) (bool, error) {
	lease, err := TryAcquire(cfg)
	if err != nil {
		return false, err
	}
	if lease == nil {
		return true, nil
	}
	return false, lease.Release()
}

// Release drops the lock. Releasing a nil lease is a no-op.
func (l *Lease) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// PublishAddress records the daemon's listen address. Unspecified hosts are
// rewritten to loopback so the CLI can dial them.
func PublishAddress(cfg *config.Config, addr string) error {
	if host, port, err := net.SplitHostPort(addr); err == nil {
		if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
			addr = net.JoinHostPort("127.0.0.1", port)
		}
	}
	return fileutil.WriteFileAtomic(cfg.AddressPath(), []byte(addr+"\n"), 0o644)
}

// ClearAddress removes the published address.
func ClearAddress(cfg *config.Config) error {
	if err := os.Remove(cfg.AddressPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ReadAddress returns the published daemon address, or ErrNotRunning.
func ReadAddress(cfg *config.Config) (string, error) {
	raw, err := os.ReadFile(cfg.AddressPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotRunning
	}
	if err != nil {
		return "", fmt.Errorf("read daemon address: %w", err)
	}
	addr := strings.TrimSpace(string(raw))
	if addr == "" {
		return "", ErrNotRunning
	}
	return addr, nil
}
