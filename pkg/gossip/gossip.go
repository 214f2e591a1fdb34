// Package gossip provides an in-process reference implementation of the
// census and gossip collaborators. It is not a distributed membership
// protocol: real clusters replace this with an actual gossip/consensus
// layer. It borrows hashicorp/raft's ServerID/ServerAddress vocabulary for
// member identity; every mutation is taken under a single lock, which is
// what a real replicated FSM's Apply would do per command, even though
// there is only one in-memory copy of the state here.
package gossip

import (
	"sort"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/cuemby/svcupdater/pkg/adapters"
	"github.com/cuemby/svcupdater/pkg/ident"
	"github.com/cuemby/svcupdater/pkg/log"
)

// memberState is one member's advertised state within a group.
type memberState struct {
	ID      raft.ServerID
	Addr    raft.ServerAddress
	Pkg     ident.PackageIdent
	IsLocal bool
	IsLeader bool
}

// groupState is the mutable per-service-group state the Cluster holds:
// membership, ordering, and the outcome of the most recent election.
type groupState struct {
	members      []memberState
	updateLeader raft.ServerID
	hasLeader    bool
	election     *electionState
}

// electionState accumulates ballots for one in-flight election term. This
// reference implementation runs one Cluster per process with no real
// distributed quorum beneath it, so a single ballot resolves the election;
// the shape (accumulate ballots, pick lowest suitability once enough are
// in) is what a real quorum-based gossip layer would do with ballots
// arriving from multiple nodes instead of one.
type electionState struct {
	term    uint64
	ballots map[raft.ServerID]uint64
}

// Cluster is an in-memory Census + Gossip implementation covering one
// process's view of every service group it participates in.
type Cluster struct {
	mu     sync.RWMutex
	groups map[string]*groupState
	localID raft.ServerID
}

// NewCluster builds an empty Cluster. localID names this process's member
// identity across every group it is added to.
func NewCluster(localID raft.ServerID) *Cluster {
	return &Cluster{
		groups:  make(map[string]*groupState),
		localID: localID,
	}
}

// SetMembers installs (or replaces) the membership list for serviceGroup,
// in the group's deterministic ordering (index 0 precedes index 1, and so
// on, wrapping around). The caller is responsible for computing that order
// the same way on every node; this reference implementation just sorts by
// ServerID, which is deterministic but not meant to be the last word on
// how a production gossip layer orders a ring.
func (c *Cluster) SetMembers(serviceGroup string, members []Member) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	g := c.group(serviceGroup)
	g.members = g.members[:0]
	for _, m := range members {
		g.members = append(g.members, memberState{
			ID:       raft.ServerID(m.ID),
			Addr:     raft.ServerAddress(m.Addr),
			Pkg:      m.Pkg,
			IsLocal:  raft.ServerID(m.ID) == c.localID,
			IsLeader: m.IsWorkLeader,
		})
	}
}

// Member describes one participant supplied to SetMembers.
type Member struct {
	ID           string
	Addr         string
	Pkg          ident.PackageIdent
	IsWorkLeader bool
}

// AdvertisePackage updates one member's advertised identity, as happens
// after a local or remote package install completes and propagates.
func (c *Cluster) AdvertisePackage(serviceGroup, memberID string, pkg ident.PackageIdent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.group(serviceGroup)
	for i := range g.members {
		if g.members[i].ID == raft.ServerID(memberID) {
			g.members[i].Pkg = pkg
			return
		}
	}
}

// AdvertiseLocalPackage implements adapters.Census by advertising pkg
// under this Cluster's own localID.
func (c *Cluster) AdvertiseLocalPackage(serviceGroup string, pkg ident.PackageIdent) {
	c.AdvertisePackage(serviceGroup, string(c.localID), pkg)
}

func (c *Cluster) group(serviceGroup string) *groupState {
	g, ok := c.groups[serviceGroup]
	if !ok {
		g = &groupState{}
		c.groups[serviceGroup] = g
	}
	return g
}

// StartUpdateElection implements adapters.Gossip. It casts this node's own
// ballot for term and resolves the winner immediately from whatever
// ballots this single-process Cluster holds (always just its own, here)
// as the lowest suitability value, ties broken by ServerID, publishing it
// as the group's update leader for the census to surface. A real gossip
// layer would instead wait for ballots to converge across the full
// membership before resolving.
func (c *Cluster) StartUpdateElection(serviceGroup string, suitability uint64, term uint64) {
	logger := log.WithComponent("gossip")

	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.group(serviceGroup)
	if g.election == nil || g.election.term != term {
		g.election = &electionState{
			term:    term,
			ballots: make(map[raft.ServerID]uint64),
		}
	}
	g.election.ballots[c.localID] = suitability

	winner, best := raft.ServerID(""), ^uint64(0)
	ids := make([]raft.ServerID, 0, len(g.election.ballots))
	for id := range g.election.ballots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		suit := g.election.ballots[id]
		if suit < best {
			best, winner = suit, id
		}
	}

	g.updateLeader = winner
	g.hasLeader = true
	g.election = nil
	logger.Info().Str("service_group", serviceGroup).Str("winner", string(winner)).Msg("update election resolved")
}

// Group implements adapters.Census.
func (c *Cluster) Group(serviceGroup string) (adapters.Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, ok := c.groups[serviceGroup]
	if !ok || len(g.members) == 0 {
		return nil, false
	}
	return &censusGroup{cluster: c, serviceGroup: serviceGroup}, true
}

// censusGroup adapts one group's state to adapters.Group, re-reading the
// Cluster under lock on every accessor so callers always see a consistent
// snapshot for the duration of their call, not the whole tick.
type censusGroup struct {
	cluster      *Cluster
	serviceGroup string
}

func toMember(m memberState) adapters.Member {
	return adapters.Member{ID: string(m.ID), Pkg: m.Pkg, IsLocal: m.IsLocal}
}

func (g *censusGroup) Me() adapters.Member {
	g.cluster.mu.RLock()
	defer g.cluster.mu.RUnlock()
	for _, m := range g.cluster.groups[g.serviceGroup].members {
		if m.IsLocal {
			return toMember(m)
		}
	}
	return adapters.Member{}
}

func (g *censusGroup) Leader() (adapters.Member, bool) {
	g.cluster.mu.RLock()
	defer g.cluster.mu.RUnlock()
	for _, m := range g.cluster.groups[g.serviceGroup].members {
		if m.IsLeader {
			return toMember(m), true
		}
	}
	return adapters.Member{}, false
}

func (g *censusGroup) UpdateLeader() (adapters.Member, bool) {
	g.cluster.mu.RLock()
	defer g.cluster.mu.RUnlock()
	state := g.cluster.groups[g.serviceGroup]
	if !state.hasLeader {
		return adapters.Member{}, false
	}
	for _, m := range state.members {
		if m.ID == state.updateLeader {
			return toMember(m), true
		}
	}
	return adapters.Member{}, false
}

func (g *censusGroup) PreviousPeer() (adapters.Member, bool) {
	g.cluster.mu.RLock()
	defer g.cluster.mu.RUnlock()
	members := g.cluster.groups[g.serviceGroup].members
	for i, m := range members {
		if m.IsLocal {
			prev := (i - 1 + len(members)) % len(members)
			if len(members) < 2 {
				return adapters.Member{}, false
			}
			return toMember(members[prev]), true
		}
	}
	return adapters.Member{}, false
}

func (g *censusGroup) Members() []adapters.Member {
	g.cluster.mu.RLock()
	defer g.cluster.mu.RUnlock()
	out := make([]adapters.Member, 0, len(g.cluster.groups[g.serviceGroup].members))
	for _, m := range g.cluster.groups[g.serviceGroup].members {
		out = append(out, toMember(m))
	}
	return out
}
