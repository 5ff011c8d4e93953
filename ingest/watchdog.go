package ingest

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// WatchdogInterval is how often the parent-liveness check runs.
const WatchdogInterval = 1 * time.Second

// RunWatchdog checks once per WatchdogInterval that the parent process is
// still alive; if it has exited, onOrphaned is invoked (normally
// os.Exit(1)) so the ingestor never runs unsupervised. Mirrors the
// original's parent-PID poll via psutil.pids(), ported to
// github.com/shirou/gopsutil/v3/process's PidExists lookup.
func RunWatchdog(ctx context.Context, onOrphaned func()) {
	parentPID := int32(os.Getppid())
	ticker := time.NewTicker(WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			alive, err := process.PidExists(parentPID)
			if err != nil || !alive {
				onOrphaned()
				return
			}
		}
	}
}
