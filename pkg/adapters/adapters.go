// Package adapters defines the contracts the updater core consumes from its
// external collaborators: census (cluster view), gossip (elections),
// installer (artifact fetch), and launcher (service restart). The core
// never reaches past these interfaces into how membership, consensus, or
// process lifecycle are actually implemented.
package adapters

import (
	"context"

	"github.com/cuemby/svcupdater/pkg/ident"
	"github.com/cuemby/svcupdater/pkg/types"
)

// Member is one participant in a service group's census view.
type Member struct {
	ID      string
	Pkg     ident.PackageIdent
	IsLocal bool
}

// Group is the read-only cluster view for one service group, as produced
// by the gossip layer and borrowed immutably by a single tick.
type Group interface {
	// Me returns the local member's entry in this group.
	Me() Member
	// Leader returns the service's own work leader, distinct from the
	// update leader. Ok is false if the service has no work leader
	// (e.g. Standalone topology).
	Leader() (Member, bool)
	// UpdateLeader returns the member elected to coordinate a rolling
	// upgrade. Ok is false until an election has produced one.
	UpdateLeader() (Member, bool)
	// PreviousPeer returns the member immediately preceding Me in the
	// group's deterministic membership ordering.
	PreviousPeer() (Member, bool)
	// Members returns every member of the group, each carrying its
	// advertised package identity.
	Members() []Member
}

// Census produces the read-only group view the core consults each tick.
type Census interface {
	// Group returns the view for serviceGroup, or ok=false if no census
	// data exists for it yet (e.g. the gossip layer has not converged).
	Group(serviceGroup string) (Group, bool)
	// AdvertiseLocalPackage publishes the local member's newly applied
	// package identity into the group's census view, so a Rolling
	// group's other members (comparing against PreviousPeer/UpdateLeader)
	// observe the version bump on their next tick.
	AdvertiseLocalPackage(serviceGroup string, pkg ident.PackageIdent)
}

// Gossip starts update elections. Suitability uses the inverted-scale
// convention from the update-election design: a lower value is more
// suitable, so the current work leader is biased toward winning with
// MinSuitability.
type Gossip interface {
	StartUpdateElection(serviceGroup string, suitability uint64, term uint64)
}

const (
	// MinSuitability biases the election toward the proposing member.
	MinSuitability uint64 = 0
	// MaxSuitability biases the election away from the proposing member.
	MaxSuitability uint64 = ^uint64(0)
)

// InstallSource names what a Worker is attempting to fetch: either a spec
// identity (chase-latest, Exact is zero-value) or a fully-qualified
// identity (fetch-exact).
type InstallSource struct {
	Spec  ident.PackageIdent
	Exact ident.PackageIdent
}

// Package is the result of a successful install.
type Package interface {
	Ident() ident.PackageIdent
}

// Installer fetches packages from the remote artifact repository. It owns
// all retry/backoff/verification concerns; the core only ever sees success
// or failure of one attempt.
type Installer interface {
	Install(ctx context.Context, builderURL string, source InstallSource, channel string) (Package, error)
}

// Launcher stops a service, swaps its installed package on disk, and
// restarts it. Synchronous from the state machine's perspective.
type Launcher interface {
	Apply(service types.Service, pkg Package) error
}
