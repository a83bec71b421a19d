package health

import (
	"context"
	"fmt"
	"runtime"
	"syscall"
	"time"
)

// Probe is one independent health check. Run returns nil when the component
// is healthy; the monitor's state machine turns failures into degraded or
// critical status.
type Probe struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// runSafe executes the probe under its timeout, converting panics into
// errors so one bad probe cannot take the monitor down.
func (p Probe) runSafe(ctx context.Context) (err error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()
	return p.Run(pctx)
}

// DiskProbe checks free space headroom on the data directory.
func DiskProbe(dir string, minFreeMB int) Probe {
	return Probe{
		Name:    "disk",
		Timeout: 5 * time.Second,
		Run: func(ctx context.Context) error {
			var st syscall.Statfs_t
			if err := syscall.Statfs(dir, &st); err != nil {
				return fmt.Errorf("statfs %s: %w", dir, err)
			}
			freeMB := int(uint64(st.Bsize) * st.Bavail / (1 << 20))
			if freeMB < minFreeMB {
				return fmt.Errorf("low disk: %d MB free, need %d MB", freeMB, minFreeMB)
			}
			return nil
		},
	}
}

// BackendProbe checks reachability of an inference backend.
func BackendProbe(name string, ping func(ctx context.Context) error) Probe {
	return Probe{
		Name:    name,
		Timeout: 5 * time.Second,
		Run:     ping,
	}
}

// StoreProbe wraps a store's integrity check.
func StoreProbe(name string, check func() error) Probe {
	return Probe{
		Name:    name,
		Timeout: 10 * time.Second,
		Run: func(ctx context.Context) error {
			return check()
		},
	}
}

// MemoryProbe checks the process heap against a configured ceiling.
func MemoryProbe(maxAllocMB int) Probe {
	return Probe{
		Name:    "memory",
		Timeout: 5 * time.Second,
		Run: func(ctx context.Context) error {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			allocMB := int(ms.HeapAlloc / (1 << 20))
			if allocMB > maxAllocMB {
				return fmt.Errorf("memory pressure: %d MB allocated, cap %d MB", allocMB, maxAllocMB)
			}
			return nil
		},
	}
}
