package main

import (
	"os"

	"github.com/hashicorp/raft"

	"github.com/cuemby/svcupdater/pkg/builder"
	"github.com/cuemby/svcupdater/pkg/gossip"
	"github.com/cuemby/svcupdater/pkg/launcher"
	"github.com/cuemby/svcupdater/pkg/types"
)

// localNodeID resolves the effective cluster member ID for this process:
// the explicit flag if given, else the hostname.
func localNodeID(flag string) string {
	if flag != "" {
		return flag
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return hostname
}

// bootstrapCluster builds a gossip.Cluster seeded with one local member
// per service, the minimal membership a single-process deployment needs
// for elections and census reads to resolve against something real.
func bootstrapCluster(nodeID string, services []types.Service) *gossip.Cluster {
	cluster := gossip.NewCluster(raft.ServerID(nodeID))
	for _, service := range services {
		cluster.SetMembers(service.ServiceGroup, []gossip.Member{
			{ID: nodeID, Pkg: service.Ident, IsWorkLeader: true},
		})
	}
	return cluster
}

// bootstrapCollaborators builds the reference adapters.Installer and
// adapters.Launcher used by both the run and tick subcommands.
func bootstrapCollaborators() (*builder.Installer, *launcher.Launcher) {
	return builder.NewInstaller(), launcher.New(nil)
}
