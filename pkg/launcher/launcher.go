// Package launcher provides a minimal reference Launcher collaborator. A
// real supervisor hands this off to a separate long-lived "launcher"
// process that outlives service restarts across supervisor crashes; here
// it just signals the locally supervised process, which covers the
// contract the updater core actually depends on (stop, swap, restart,
// synchronous from the caller's perspective) without reimplementing
// Habitat's launcher protocol.
package launcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/cuemby/svcupdater/pkg/adapters"
	"github.com/cuemby/svcupdater/pkg/log"
	"github.com/cuemby/svcupdater/pkg/types"
)

// RestartFunc stops and restarts the actual OS process backing a service,
// returning once the new package is live. Production wiring supplies one
// per service group; tests supply a stub.
type RestartFunc func(ctx context.Context, service types.Service, pkg adapters.Package) error

// Launcher is a reference adapters.Launcher that tracks a supervised PID
// per service group and sends it a graceful-then-forceful shutdown before
// invoking the caller's restart hook.
type Launcher struct {
	mu       sync.Mutex
	pids     map[string]int
	restart  RestartFunc
	gracePer time.Duration
}

// New builds a Launcher. restart is invoked after the previous process (if
// any) has been asked to exit; it is responsible for actually starting the
// new one and should not return until it is ready to serve.
func New(restart RestartFunc) *Launcher {
	return &Launcher{
		pids:     make(map[string]int),
		restart:  restart,
		gracePer: 5 * time.Second,
	}
}

// TrackPID records the currently running process for a service group, so
// Apply knows what to stop before restarting. Called by whatever started
// the service originally.
func (l *Launcher) TrackPID(serviceGroup string, pid int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pids[serviceGroup] = pid
}

// Apply implements adapters.Launcher: stop the tracked process, swap to
// pkg, and restart via the configured RestartFunc.
func (l *Launcher) Apply(service types.Service, pkg adapters.Package) error {
	logger := log.WithComponent("launcher")

	l.mu.Lock()
	pid, tracked := l.pids[service.ServiceGroup]
	l.mu.Unlock()

	if tracked {
		if err := l.stop(pid); err != nil {
			logger.Warn().Err(err).Str("service_group", service.ServiceGroup).Int("pid", pid).Msg("failed to stop process before swap")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.gracePer)
	defer cancel()

	if l.restart == nil {
		return fmt.Errorf("launcher: no restart hook configured for %s", service.ServiceGroup)
	}
	if err := l.restart(ctx, service, pkg); err != nil {
		return fmt.Errorf("launcher: restart failed for %s: %w", service.ServiceGroup, err)
	}

	logger.Info().Str("service_group", service.ServiceGroup).Str("ident", pkg.Ident().String()).Msg("service restarted with new package")
	return nil
}

// stop sends SIGTERM, then SIGKILL after the grace period if the process
// has not exited, mirroring a graceful-then-forceful container stop.
func (l *Launcher) stop(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("launcher: failed to find process %d: %w", pid, err)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("launcher: failed to signal SIGTERM to %d: %w", pid, err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = proc.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(l.gracePer):
		return proc.Signal(syscall.SIGKILL)
	}
}
