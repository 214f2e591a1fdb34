package types

import (
	"time"

	"github.com/cuemby/svcupdater/pkg/ident"
)

// Service is the read-only input the updater consumes to decide how, and
// whether, to chase upgrades for one running service. The supervisor owns
// this struct; the updater core never mutates it directly — successful
// upgrades flow back through the Launcher collaborator instead.
type Service struct {
	// ServiceGroup is the cluster-wide identifier naming one logical
	// service across every node running it.
	ServiceGroup string

	// Topology distinguishes services with a designated work leader from
	// services where every member plays an identical role.
	Topology Topology

	// UpdateStrategy selects how (or whether) this service is kept current.
	UpdateStrategy UpdateStrategy

	// Ident is the fully-qualified identity of the package currently
	// installed for this service.
	Ident ident.PackageIdent

	// SpecIdent is the (possibly partial) identity the operator asked for,
	// e.g. "core/redis" with no version pinned.
	SpecIdent ident.PackageIdent

	// BuilderURL is the base URL of the remote artifact repository.
	BuilderURL string

	// Channel is the release channel to resolve SpecIdent against
	// (e.g. "stable", "unstable").
	Channel string

	CreatedAt time.Time
}

// Topology describes whether a service's members elect a work leader.
type Topology string

const (
	// TopologyStandalone means every member is a peer; there is no work leader.
	TopologyStandalone Topology = "standalone"
	// TopologyLeader means the service itself elects a work leader,
	// distinct from any update leader the rolling strategy elects.
	TopologyLeader Topology = "leader"
)

// UpdateStrategy selects the update orchestration a service group uses.
type UpdateStrategy string

const (
	// UpdateStrategyNone disables automatic updates entirely.
	UpdateStrategyNone UpdateStrategy = "none"
	// UpdateStrategyAtOnce applies any newer package immediately, independently on every member.
	UpdateStrategyAtOnce UpdateStrategy = "at-once"
	// UpdateStrategyRolling coordinates a cluster-wide, one-member-at-a-time rollout.
	UpdateStrategyRolling UpdateStrategy = "rolling"
)
