package updater

import (
	"sync"
	"time"

	"github.com/cuemby/svcupdater/pkg/adapters"
	"github.com/cuemby/svcupdater/pkg/log"
	"github.com/cuemby/svcupdater/pkg/types"
)

// ServiceSource enumerates the service groups currently supervised
// locally. The driver re-reads it on every cycle rather than caching a
// membership list itself, so it reflects config reloads and service
// start/stop without any extra signaling path.
type ServiceSource interface {
	Services() []types.Service
}

// Collaborators bundles the external adapters a Driver needs on every
// tick. All four are safe to share across service groups: Census and
// Gossip are read mostly, Installer and Launcher are already safe for
// concurrent per-group use.
type Collaborators struct {
	Census    adapters.Census
	Gossip    adapters.Gossip
	Installer adapters.Installer
	Launcher  adapters.Launcher
}

// Driver ticks every locally known service group on a fixed interval,
// registering newly seen groups and dropping ones that disappeared from
// the source. It is the long-running counterpart to the CLI's single-shot
// tick command.
type Driver struct {
	updater *Updater
	source  ServiceSource
	collab  Collaborators
	period  time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDriver builds a Driver. period is the fixed polling interval between
// reconciliation cycles, independent of each service group's own
// UpdatePeriod (which governs how often its Worker attempts an install,
// not how often the driver calls Tick).
func NewDriver(u *Updater, source ServiceSource, collab Collaborators, period time.Duration) *Driver {
	return &Driver{
		updater: u,
		source:  source,
		collab:  collab,
		period:  period,
	}
}

// Start begins the reconciliation loop in a background goroutine.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopCh != nil {
		return
	}
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	go d.run(d.stopCh, d.doneCh)
}

// Stop ends the reconciliation loop and waits for the current cycle, if
// any, to finish.
func (d *Driver) Stop() {
	d.mu.Lock()
	stopCh := d.stopCh
	doneCh := d.doneCh
	d.stopCh = nil
	d.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (d *Driver) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	logger := log.WithComponent("driver")

	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	logger.Info().Dur("period", d.period).Msg("driver started")

	for {
		select {
		case <-ticker.C:
			d.cycle()
		case <-stopCh:
			logger.Info().Msg("driver stopped")
			return
		}
	}
}

// cycle reconciles the registry against the current service list, then
// ticks every still-known group once. Errors from any single group never
// abort the cycle; Updater.TickGuarded already isolates per-group panics.
//
// source re-reports each service's statically-configured Ident every
// cycle, which would otherwise never reflect a package this same Driver
// already applied: refreshApplied overrides it with the state machine's
// own record of the last successful apply, so a respawned Worker compares
// against what is actually installed. The census learns of the bump
// separately, from StateMachine.apply.
func (d *Driver) cycle() {
	logger := log.WithComponent("driver")

	services := d.source.Services()
	seen := make(map[string]struct{}, len(services))

	for i := range services {
		seen[services[i].ServiceGroup] = struct{}{}
		d.refreshApplied(&services[i])
		d.updater.Add(services[i], d.collab.Installer)
	}

	for i := range services {
		service := services[i]
		if service.UpdateStrategy == types.UpdateStrategyNone {
			continue
		}
		restart := d.updater.TickGuarded(service, d.collab.Census, d.collab.Gossip, d.collab.Installer, d.collab.Launcher)
		if restart {
			logger.Info().Str("service_group", service.ServiceGroup).Msg("service restarted with new package")
		}
	}

	d.prune(seen)
}

// refreshApplied overwrites service.Ident with the state machine's last
// applied identity, if one has ever been recorded for this group.
func (d *Driver) refreshApplied(service *types.Service) {
	d.updater.mu.RLock()
	sm, exists := d.updater.machines[service.ServiceGroup]
	d.updater.mu.RUnlock()
	if !exists {
		return
	}

	if applied, ok := sm.LastApplied(); ok {
		service.Ident = applied
	}
}

// prune drops registry entries for groups no longer reported by source.
func (d *Driver) prune(seen map[string]struct{}) {
	d.updater.mu.RLock()
	stale := make([]string, 0)
	for group := range d.updater.machines {
		if _, ok := seen[group]; !ok {
			stale = append(stale, group)
		}
	}
	d.updater.mu.RUnlock()

	for _, group := range stale {
		d.updater.Remove(group)
	}
}
