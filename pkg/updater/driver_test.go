package updater

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/svcupdater/pkg/types"
)

type fakeSource struct {
	mu       sync.Mutex
	services []types.Service
}

func (s *fakeSource) Services() []types.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Service, len(s.services))
	copy(out, s.services)
	return out
}

func (s *fakeSource) set(services ...types.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = services
}

func TestDriverRegistersAndPrunes(t *testing.T) {
	u := NewUpdater(context.Background())
	defer u.Close()

	installer := newFakeInstaller()
	census := newFakeCensus()
	gossip := newFakeGossip()
	launcher := newFakeLauncher()

	source := &fakeSource{}
	driver := NewDriver(u, source, Collaborators{
		Census:    census,
		Gossip:    gossip,
		Installer: installer,
		Launcher:  launcher,
	}, 10*time.Millisecond)

	svc := types.Service{ServiceGroup: "redis.default", UpdateStrategy: types.UpdateStrategyAtOnce, Ident: mustParse(t, "core/redis/1.0.0/20240101000000")}
	source.set(svc)

	driver.Start()
	defer driver.Stop()

	assert.Eventually(t, func() bool {
		u.mu.RLock()
		defer u.mu.RUnlock()
		_, ok := u.machines["redis.default"]
		return ok
	}, time.Second, 5*time.Millisecond)

	source.set()

	assert.Eventually(t, func() bool {
		u.mu.RLock()
		defer u.mu.RUnlock()
		_, ok := u.machines["redis.default"]
		return !ok
	}, time.Second, 5*time.Millisecond)
}

// TestDriverConvergesAfterApply reproduces the AtOnce convergence property
// end to end through the Driver: a static source keeps reporting the
// group's original (now stale) Ident every cycle, yet once the one
// available newer package has been applied, the Driver must not keep
// reinstalling it forever.
func TestDriverConvergesAfterApply(t *testing.T) {
	t.Setenv("HAB_UPDATE_STRATEGY_FREQUENCY_MS", "5")
	t.Setenv("HAB_UPDATE_STRATEGY_FREQUENCY_BYPASS_CHECK", "1")

	u := NewUpdater(context.Background())
	defer u.Close()

	installer := newFakeInstaller()
	census := newFakeCensus()
	gossip := newFakeGossip()
	launcher := newFakeLauncher()

	v1 := mustParse(t, "core/redis/1.0.0/20240101000000")
	v2 := mustParse(t, "core/redis/1.1.0/20240601000000")
	installer.setLatest(v2)

	source := &fakeSource{}
	source.set(types.Service{
		ServiceGroup:   "redis.default",
		Topology:       types.TopologyStandalone,
		UpdateStrategy: types.UpdateStrategyAtOnce,
		Ident:          v1,
		SpecIdent:      mustParse(t, "core/redis"),
	})

	driver := NewDriver(u, source, Collaborators{
		Census:    census,
		Gossip:    gossip,
		Installer: installer,
		Launcher:  launcher,
	}, 5*time.Millisecond)

	driver.Start()
	defer driver.Stop()

	assert.Eventually(t, func() bool {
		return len(launcher.appliedFor("redis.default")) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Give the driver several more cycles; source still reports the
	// original v1 every time, but nothing newer than v2 exists, so the
	// applied count must stay at exactly one.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, launcher.appliedFor("redis.default"), 1)
}
