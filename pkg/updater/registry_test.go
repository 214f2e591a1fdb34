package updater

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/svcupdater/pkg/types"
)

func TestRegistryAddIdempotent(t *testing.T) {
	reg := NewUpdater(context.Background())
	defer reg.Close()

	service := types.Service{
		ServiceGroup:   "foo.default",
		UpdateStrategy: types.UpdateStrategyAtOnce,
		Ident:          mustParse(t, "core/foo/1.0.0/20240101000000"),
		SpecIdent:      mustParse(t, "core/foo"),
	}
	installer := newFakeInstaller()
	installer.setLatest(service.Ident)

	assert.True(t, reg.Add(service, installer))
	first := reg.machines[service.ServiceGroup]

	assert.True(t, reg.Add(service, installer))
	assert.Same(t, first, reg.machines[service.ServiceGroup])
}

func TestRegistryAddNoneStrategy(t *testing.T) {
	reg := NewUpdater(context.Background())
	defer reg.Close()

	service := types.Service{ServiceGroup: "foo.default", UpdateStrategy: types.UpdateStrategyNone}
	assert.False(t, reg.Add(service, newFakeInstaller()))
	assert.Len(t, reg.machines, 0)
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	reg := NewUpdater(context.Background())
	defer reg.Close()

	reg.Remove("unknown.default") // must not panic

	service := types.Service{
		ServiceGroup:   "foo.default",
		UpdateStrategy: types.UpdateStrategyAtOnce,
		Ident:          mustParse(t, "core/foo/1.0.0/20240101000000"),
		SpecIdent:      mustParse(t, "core/foo"),
	}
	reg.Add(service, newFakeInstaller())
	reg.Remove(service.ServiceGroup)
	assert.Len(t, reg.machines, 0)

	reg.Remove(service.ServiceGroup) // second removal is a no-op
}

func TestRegistryTickUnknownGroupIsNoop(t *testing.T) {
	reg := NewUpdater(context.Background())
	defer reg.Close()

	service := types.Service{ServiceGroup: "ghost.default", UpdateStrategy: types.UpdateStrategyAtOnce}
	restart := reg.Tick(service, newFakeCensus(), newFakeGossip(), newFakeInstaller(), newFakeLauncher())
	assert.False(t, restart)
}

func TestRegistryNoCrosstalk(t *testing.T) {
	reg := NewUpdater(context.Background())
	defer reg.Close()

	atOnce := types.Service{
		ServiceGroup:   "atonce.default",
		UpdateStrategy: types.UpdateStrategyAtOnce,
		Ident:          mustParse(t, "core/a/1.0.0/20240101000000"),
		SpecIdent:      mustParse(t, "core/a"),
	}
	rolling := types.Service{
		ServiceGroup:   "rolling.default",
		Topology:       types.TopologyStandalone,
		UpdateStrategy: types.UpdateStrategyRolling,
	}

	atOnceInstaller := newFakeInstaller()
	atOnceInstaller.setLatest(atOnce.Ident)

	reg.Add(atOnce, atOnceInstaller)
	reg.Add(rolling, newFakeInstaller())

	census := newFakeCensus()
	gossip := newFakeGossip()
	launcher := newFakeLauncher()

	assert.False(t, reg.Tick(atOnce, census, gossip, atOnceInstaller, launcher))
	assert.False(t, reg.Tick(rolling, census, gossip, newFakeInstaller(), launcher))

	rollingSM := reg.machines[rolling.ServiceGroup]
	assert.Equal(t, phaseAwaitingElection, rollingSM.phase)
	assert.Empty(t, launcher.appliedFor(atOnce.ServiceGroup))
}
