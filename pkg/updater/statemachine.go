package updater

import (
	"context"
	"fmt"

	"github.com/cuemby/svcupdater/pkg/adapters"
	svcerrors "github.com/cuemby/svcupdater/pkg/errors"
	"github.com/cuemby/svcupdater/pkg/ident"
	"github.com/cuemby/svcupdater/pkg/log"
	"github.com/cuemby/svcupdater/pkg/metrics"
	"github.com/cuemby/svcupdater/pkg/types"
)

// phase tags the variant of a StateMachine. AtOnce has exactly one
// non-terminal phase; Rolling cycles through the remaining six. This is a
// tagged union expressed as an enum plus an opaque worker slot rather than
// a class hierarchy, per the nested-variant shape of the strategy itself.
type phase int

const (
	phaseAtOnce phase = iota
	phaseAwaitingElection
	phaseInElection
	phaseLeaderWaiting
	phaseLeaderPolling
	phaseFollowerWaiting
	phaseFollowerUpdating
)

func (p phase) String() string {
	switch p {
	case phaseAtOnce:
		return "at-once"
	case phaseAwaitingElection:
		return "awaiting-election"
	case phaseInElection:
		return "in-election"
	case phaseLeaderWaiting:
		return "leader-waiting"
	case phaseLeaderPolling:
		return "leader-polling"
	case phaseFollowerWaiting:
		return "follower-waiting"
	case phaseFollowerUpdating:
		return "follower-updating"
	default:
		return "unknown"
	}
}

// electionTerm is a monotonically increasing counter so a stale election
// result from a prior AwaitingElection pass never gets confused with the
// current one. The core does not interpret its value beyond incrementing
// it once per election start; the gossip collaborator owns comparison.
type electionTerm = uint64

// StateMachine drives one service group's upgrade orchestration: either
// AtOnce (one Worker, apply whatever it finds) or Rolling (leader-elected,
// one-member-at-a-time).
type StateMachine struct {
	serviceGroup string
	strategy     types.UpdateStrategy

	phase  phase
	worker *Worker
	cancel context.CancelFunc

	term electionTerm

	// lastApplied is the identity of the most recently successfully
	// applied package, if any. The driver reads it back via LastApplied
	// to refresh the service view it passes into the next tick, so a
	// respawned Worker compares against what is actually installed
	// rather than whatever stale ident its source last reported.
	lastApplied ident.PackageIdent
	everApplied bool
}

// NewStateMachine builds the initial state for service. AtOnce services
// start with a chase-latest Worker already running; Rolling services start
// in AwaitingElection.
func NewStateMachine(ctx context.Context, service types.Service, installer adapters.Installer) *StateMachine {
	sm := &StateMachine{serviceGroup: service.ServiceGroup, strategy: service.UpdateStrategy}

	switch service.UpdateStrategy {
	case types.UpdateStrategyAtOnce:
		sm.phase = phaseAtOnce
		sm.spawnChaseLatest(ctx, service, installer)
	case types.UpdateStrategyRolling:
		sm.phase = phaseAwaitingElection
	}
	return sm
}

func (sm *StateMachine) spawnChaseLatest(ctx context.Context, service types.Service, installer adapters.Installer) {
	wctx, cancel := context.WithCancel(ctx)
	sm.cancel = cancel
	sm.worker = newChaseLatestWorker(sm.serviceGroup, installer, service.Ident, service.SpecIdent, service.BuilderURL, service.Channel)
	sm.worker.Start(wctx)
	metrics.WorkersActive.Inc()
}

func (sm *StateMachine) spawnFetchExact(ctx context.Context, service types.Service, installer adapters.Installer, target ident.PackageIdent) {
	wctx, cancel := context.WithCancel(ctx)
	sm.cancel = cancel
	sm.worker = newFetchExactWorker(sm.serviceGroup, installer, service.Ident, target, service.BuilderURL, service.Channel)
	sm.worker.Start(wctx)
	metrics.WorkersActive.Inc()
}

// stopWorker releases the current worker's cancellation, matching the
// "dropping the receiver is the cancellation mechanism" design: the
// goroutine's context is cancelled and it exits at its next select.
func (sm *StateMachine) stopWorker() {
	if sm.cancel != nil {
		sm.cancel()
		sm.cancel = nil
	}
	if sm.worker != nil {
		sm.worker = nil
		metrics.WorkersActive.Dec()
	}
}

// Close releases any worker owned by this state machine. Called by the
// registry on Remove.
func (sm *StateMachine) Close() {
	sm.stopWorker()
}

// LastApplied returns the identity most recently applied by this state
// machine, and whether one has ever been applied at all.
func (sm *StateMachine) LastApplied() (ident.PackageIdent, bool) {
	return sm.lastApplied, sm.everApplied
}

// tickDeps bundles the per-tick collaborators so Tick's signature stays
// readable; these are borrowed immutably for the duration of one call.
type tickDeps struct {
	ctx       context.Context
	service   types.Service
	census    adapters.Census
	gossip    adapters.Gossip
	installer adapters.Installer
	launcher  adapters.Launcher
}

// Tick advances the state machine by at most one transition and reports
// whether the caller must now restart the service with a freshly applied
// package.
func (sm *StateMachine) Tick(ctx context.Context, service types.Service, census adapters.Census, gossip adapters.Gossip, installer adapters.Installer, launcher adapters.Launcher) bool {
	deps := tickDeps{ctx: ctx, service: service, census: census, gossip: gossip, installer: installer, launcher: launcher}

	if sm.strategy == types.UpdateStrategyAtOnce {
		return sm.tickAtOnce(deps)
	}
	return sm.tickRolling(deps)
}

// tickAtOnce drains the single chase-latest Worker, applying whatever it
// delivers and respawning on unexpected close. Respawn after a successful
// apply is deferred to the next tick, once the caller has refreshed
// service.Ident to the newly installed version.
func (sm *StateMachine) tickAtOnce(d tickDeps) bool {
	logger := log.WithComponent("state-machine")

	if sm.worker == nil {
		sm.spawnChaseLatest(d.ctx, d.service, d.installer)
		return false
	}

	select {
	case pkg, ok := <-sm.worker.Receiver():
		if !ok {
			logger.Warn().Str("service_group", sm.serviceGroup).Msg("worker channel closed unexpectedly, respawning")
			metrics.WorkersRespawnedTotal.WithLabelValues(sm.serviceGroup).Inc()
			sm.stopWorker()
			sm.spawnChaseLatest(d.ctx, d.service, d.installer)
			return false
		}
		sm.apply(d, pkg)
		sm.stopWorker()
		return true
	default:
		return false
	}
}

// tickRolling dispatches to the Rolling sub-phase handlers.
func (sm *StateMachine) tickRolling(d tickDeps) bool {
	group, ok := d.census.Group(sm.serviceGroup)
	if !ok {
		if sm.phase == phaseAwaitingElection || sm.phase == phaseInElection {
			// No worker is in flight yet and no upgrade is underway in
			// either phase; a transiently-missing view just means the
			// gossip layer has not converged. Stay put and retry.
			return false
		}
		// A missing census view for a group already mid-upgrade can only
		// happen if the group was removed mid-upgrade. Treat as fatal for
		// this group.
		panic(fmt.Errorf("%w: census group %q disappeared while in phase %s", svcerrors.ErrGroupRemoved, sm.serviceGroup, sm.phase))
	}

	switch sm.phase {
	case phaseAwaitingElection:
		return sm.tickAwaitingElection(d, group)
	case phaseInElection:
		return sm.tickInElection(d, group)
	case phaseLeaderWaiting:
		return sm.tickLeaderWaiting(d, group)
	case phaseLeaderPolling:
		return sm.tickLeaderPolling(d)
	case phaseFollowerWaiting:
		return sm.tickFollowerWaiting(d, group)
	case phaseFollowerUpdating:
		return sm.tickFollowerUpdating(d, group)
	default:
		return false
	}
}

func (sm *StateMachine) tickAwaitingElection(d tickDeps, group adapters.Group) bool {
	suitability := uint64(0)
	if d.service.Topology != types.TopologyStandalone {
		if group.Me().ID == "" {
			return false
		}
		leader, ok := group.Leader()
		if !ok {
			// No work leader elected yet for this topology: wait rather
			// than starting an election no member can yet be biased for.
			return false
		}
		if leader.IsLocal {
			suitability = adapters.MinSuitability
		} else {
			suitability = adapters.MaxSuitability
		}
	}

	sm.term++
	d.gossip.StartUpdateElection(sm.serviceGroup, suitability, sm.term)
	metrics.ElectionsStartedTotal.WithLabelValues(sm.serviceGroup).Inc()
	sm.phase = phaseInElection
	return false
}

func (sm *StateMachine) tickInElection(d tickDeps, group adapters.Group) bool {
	leader, ok := group.UpdateLeader()
	if !ok {
		return false
	}
	if leader.IsLocal {
		sm.phase = phaseLeaderWaiting
	} else {
		sm.phase = phaseFollowerWaiting
	}
	return false
}

func (sm *StateMachine) tickLeaderWaiting(d tickDeps, group adapters.Group) bool {
	me := group.Me()
	for _, member := range group.Members() {
		if member.Pkg.Compare(me.Pkg) != ident.Equal {
			return false
		}
	}
	sm.spawnChaseLatest(d.ctx, d.service, d.installer)
	sm.phase = phaseLeaderPolling
	return false
}

func (sm *StateMachine) tickLeaderPolling(d tickDeps) bool {
	if sm.worker == nil {
		sm.spawnChaseLatest(d.ctx, d.service, d.installer)
		return false
	}
	select {
	case pkg, ok := <-sm.worker.Receiver():
		if !ok {
			metrics.WorkersRespawnedTotal.WithLabelValues(sm.serviceGroup).Inc()
			sm.stopWorker()
			sm.spawnChaseLatest(d.ctx, d.service, d.installer)
			return false
		}
		sm.apply(d, pkg)
		sm.stopWorker()
		sm.phase = phaseLeaderWaiting
		return true
	default:
		return false
	}
}

func (sm *StateMachine) tickFollowerWaiting(d tickDeps, group adapters.Group) bool {
	leader, ok := group.UpdateLeader()
	if !ok {
		return false
	}
	me := group.Me()
	if leader.Pkg.Compare(me.Pkg) == ident.Equal {
		return false
	}
	prev, ok := group.PreviousPeer()
	if !ok {
		return false
	}
	if leader.Pkg.Compare(prev.Pkg) != ident.Equal {
		return false
	}

	sm.spawnFetchExact(d.ctx, d.service, d.installer, leader.Pkg)
	sm.phase = phaseFollowerUpdating
	return false
}

func (sm *StateMachine) tickFollowerUpdating(d tickDeps, group adapters.Group) bool {
	if sm.worker == nil {
		leader, ok := group.UpdateLeader()
		if !ok {
			sm.phase = phaseFollowerWaiting
			return false
		}
		sm.spawnFetchExact(d.ctx, d.service, d.installer, leader.Pkg)
		return false
	}
	select {
	case pkg, ok := <-sm.worker.Receiver():
		if !ok {
			leader, lok := group.UpdateLeader()
			metrics.WorkersRespawnedTotal.WithLabelValues(sm.serviceGroup).Inc()
			sm.stopWorker()
			if lok {
				sm.spawnFetchExact(d.ctx, d.service, d.installer, leader.Pkg)
			}
			return false
		}
		sm.apply(d, pkg)
		sm.stopWorker()
		sm.phase = phaseFollowerWaiting
		return true
	default:
		return false
	}
}

// apply invokes the launcher, records the package metric, and remembers
// the applied identity so the next tick's respawned Worker and the wider
// census both see it instead of a stale one. The caller is responsible for
// the resulting restart-required signal.
func (sm *StateMachine) apply(d tickDeps, pkg adapters.Package) {
	logger := log.WithComponent("state-machine")
	if err := d.launcher.Apply(d.service, pkg); err != nil {
		logger.Error().Err(err).Str("service_group", sm.serviceGroup).Str("ident", pkg.Ident().String()).Msg("launcher failed to apply package")
		return
	}
	metrics.PackagesAppliedTotal.WithLabelValues(sm.serviceGroup).Inc()
	logger.Info().Str("service_group", sm.serviceGroup).Str("ident", pkg.Ident().String()).Msg("applied package")

	sm.lastApplied = pkg.Ident()
	sm.everApplied = true
	d.census.AdvertiseLocalPackage(sm.serviceGroup, pkg.Ident())
}
