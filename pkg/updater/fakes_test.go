package updater

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/svcupdater/pkg/adapters"
	"github.com/cuemby/svcupdater/pkg/ident"
	"github.com/cuemby/svcupdater/pkg/types"
)

// fakePackage is the minimal adapters.Package implementation tests need.
type fakePackage struct{ id ident.PackageIdent }

func (p fakePackage) Ident() ident.PackageIdent { return p.id }

// fakeInstaller always "finds" the package recorded in latest for a given
// (origin, name), or installs exactIdent verbatim for fetch-exact sources.
// Tests mutate latest to simulate new releases appearing in the repository.
type fakeInstaller struct {
	mu      sync.Mutex
	latest  map[string]ident.PackageIdent
	callLog []adapters.InstallSource
	fail    bool
}

func newFakeInstaller() *fakeInstaller {
	return &fakeInstaller{latest: make(map[string]ident.PackageIdent)}
}

func (f *fakeInstaller) setLatest(id ident.PackageIdent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest[id.Origin+"/"+id.Name] = id
}

func (f *fakeInstaller) Install(_ context.Context, _ string, source adapters.InstallSource, _ string) (adapters.Package, error) {
	f.mu.Lock()
	f.callLog = append(f.callLog, source)
	fail := f.fail
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("fake: install failed")
	}

	if source.Exact.FullyQualified() {
		return fakePackage{id: source.Exact}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.latest[source.Spec.Origin+"/"+source.Spec.Name]
	if !ok {
		return nil, fmt.Errorf("fake: no package known for %s", source.Spec)
	}
	return fakePackage{id: id}, nil
}

// fakeLauncher records every applied package per service group.
type fakeLauncher struct {
	mu      sync.Mutex
	applied map[string][]ident.PackageIdent
	fail    bool
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{applied: make(map[string][]ident.PackageIdent)}
}

func (f *fakeLauncher) Apply(service types.Service, pkg adapters.Package) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("fake: launcher failed")
	}
	f.applied[service.ServiceGroup] = append(f.applied[service.ServiceGroup], pkg.Ident())
	return nil
}

func (f *fakeLauncher) appliedFor(serviceGroup string) []ident.PackageIdent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ident.PackageIdent(nil), f.applied[serviceGroup]...)
}

// fakeGroup implements adapters.Group for tests that drive the Rolling
// state machine directly against a scripted census.
type fakeGroup struct {
	me           adapters.Member
	leader       *adapters.Member
	updateLeader *adapters.Member
	prevPeer     *adapters.Member
	members      []adapters.Member
}

func (g fakeGroup) Me() adapters.Member { return g.me }

func (g fakeGroup) Leader() (adapters.Member, bool) {
	if g.leader == nil {
		return adapters.Member{}, false
	}
	return *g.leader, true
}

func (g fakeGroup) UpdateLeader() (adapters.Member, bool) {
	if g.updateLeader == nil {
		return adapters.Member{}, false
	}
	return *g.updateLeader, true
}

func (g fakeGroup) PreviousPeer() (adapters.Member, bool) {
	if g.prevPeer == nil {
		return adapters.Member{}, false
	}
	return *g.prevPeer, true
}

func (g fakeGroup) Members() []adapters.Member { return g.members }

// fakeCensus is a mutable registry of fakeGroups keyed by service group,
// so tests can simulate the census view evolving tick over tick.
type fakeCensus struct {
	mu         sync.RWMutex
	groups     map[string]adapters.Group
	advertised map[string]ident.PackageIdent
}

func newFakeCensus() *fakeCensus {
	return &fakeCensus{
		groups:     make(map[string]adapters.Group),
		advertised: make(map[string]ident.PackageIdent),
	}
}

// AdvertiseLocalPackage implements adapters.Census, recording the last
// ident advertised per group so tests can assert on it if needed. It does
// not mutate any fakeGroup in place; tests that need a member's Pkg to
// change still do so explicitly via set, mirroring how they script every
// other part of the census view.
func (c *fakeCensus) AdvertiseLocalPackage(serviceGroup string, pkg ident.PackageIdent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advertised[serviceGroup] = pkg
}

func (c *fakeCensus) set(serviceGroup string, g adapters.Group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[serviceGroup] = g
}

func (c *fakeCensus) clear(serviceGroup string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.groups, serviceGroup)
}

func (c *fakeCensus) Group(serviceGroup string) (adapters.Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.groups[serviceGroup]
	return g, ok
}

// fakeGossip records every election started; last returns the most recent
// one. It resolves nothing: tests script the winner through fakeCensus.
type fakeGossip struct {
	mu        sync.Mutex
	elections []fakeElection
}

type fakeElection struct {
	serviceGroup string
	suitability  uint64
	term         uint64
}

func newFakeGossip() *fakeGossip {
	return &fakeGossip{}
}

func (g *fakeGossip) StartUpdateElection(serviceGroup string, suitability uint64, term uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.elections = append(g.elections, fakeElection{serviceGroup: serviceGroup, suitability: suitability, term: term})
}

func (g *fakeGossip) last() (fakeElection, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.elections) == 0 {
		return fakeElection{}, false
	}
	return g.elections[len(g.elections)-1], true
}
