package updater

import (
	"context"
	"sync"

	"github.com/cuemby/svcupdater/pkg/adapters"
	"github.com/cuemby/svcupdater/pkg/log"
	"github.com/cuemby/svcupdater/pkg/metrics"
	"github.com/cuemby/svcupdater/pkg/types"
)

// Updater maps service group to its per-group state machine. It is driven
// by the supervisor's single-threaded main loop: callers must not invoke
// Tick for the same service group concurrently from two goroutines.
type Updater struct {
	mu         sync.RWMutex
	machines   map[string]*StateMachine
	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// NewUpdater builds an empty registry. rootCtx bounds the lifetime of every
// Worker spawned through this registry; cancelling it (or calling Close)
// tears down every live background poll.
func NewUpdater(rootCtx context.Context) *Updater {
	ctx, cancel := context.WithCancel(rootCtx)
	return &Updater{
		machines:   make(map[string]*StateMachine),
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// Add registers service if its strategy requires orchestration. It is
// idempotent: calling it twice for the same service group never spawns a
// second Worker. Returns true iff the service has a non-None strategy.
func (u *Updater) Add(service types.Service, installer adapters.Installer) bool {
	if service.UpdateStrategy == types.UpdateStrategyNone {
		return false
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if _, exists := u.machines[service.ServiceGroup]; exists {
		return true
	}

	sm := NewStateMachine(u.rootCtx, service, installer)
	u.machines[service.ServiceGroup] = sm
	metrics.GroupsTotal.WithLabelValues(string(service.UpdateStrategy), sm.phase.String()).Inc()
	return true
}

// Remove drops the entry for serviceGroup and releases its Worker, if any.
// Any in-flight Worker detects termination at its next send attempt (or
// immediately, if already parked there) because its context is cancelled.
// Idempotent: removing an unknown service group is a no-op.
func (u *Updater) Remove(serviceGroup string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	sm, exists := u.machines[serviceGroup]
	if !exists {
		return
	}
	sm.Close()
	metrics.GroupsTotal.WithLabelValues(string(sm.strategy), sm.phase.String()).Dec()
	delete(u.machines, serviceGroup)
}

// Tick advances the state machine for service by at most one transition
// and reports whether the caller must restart the service with a freshly
// installed package. If serviceGroup has not been registered via Add, Tick
// is a no-op returning false.
func (u *Updater) Tick(service types.Service, census adapters.Census, gossip adapters.Gossip, installer adapters.Installer, launcher adapters.Launcher) (restart bool) {
	u.mu.RLock()
	sm, exists := u.machines[service.ServiceGroup]
	u.mu.RUnlock()
	if !exists {
		return false
	}

	timer := metrics.NewTimer()
	outcome := "no-op"
	defer func() {
		timer.ObserveDuration(metrics.TickDuration)
		metrics.ChecksTotal.WithLabelValues(service.ServiceGroup, outcome).Inc()
	}()

	restart = sm.Tick(u.rootCtx, service, census, gossip, installer, launcher)
	if restart {
		outcome = "applied"
	}
	return restart
}

// Close cancels every Worker owned by this registry and clears its state.
func (u *Updater) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()

	for group, sm := range u.machines {
		sm.Close()
		delete(u.machines, group)
	}
	u.rootCancel()
}

// guardPanic recovers a fatal per-group panic (census group vanished
// mid-upgrade, per the error-handling design), logs it, and drops the
// offending entry so the registry's other groups are unaffected.
func (u *Updater) guardPanic(serviceGroup string) {
	if r := recover(); r != nil {
		log.WithComponent("updater").Error().
			Str("service_group", serviceGroup).
			Interface("panic", r).
			Msg("service group entry dropped after fatal error")

		u.mu.Lock()
		if sm, exists := u.machines[serviceGroup]; exists {
			sm.Close()
			delete(u.machines, serviceGroup)
		}
		u.mu.Unlock()
	}
}

// TickGuarded is the entry point the driver loop should use: it wraps Tick
// with guardPanic so one group's fatal census-disappearance does not take
// down the supervisor's main loop or any other group.
func (u *Updater) TickGuarded(service types.Service, census adapters.Census, gossip adapters.Gossip, installer adapters.Installer, launcher adapters.Launcher) (restart bool) {
	defer u.guardPanic(service.ServiceGroup)
	return u.Tick(service, census, gossip, installer, launcher)
}
