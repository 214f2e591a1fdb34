package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/svcupdater/pkg/config"
	"github.com/cuemby/svcupdater/pkg/log"
	"github.com/cuemby/svcupdater/pkg/updater"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Advance every declared service group by one tick and exit",
	Long: `tick loads the config file, registers every declared service group,
advances each by at most one state-machine transition, and exits. It does
not change the UpdatePeriod a Worker sleeps between attempts; a Worker that
has not yet delivered a package by the time its group is ticked leaves that
group's tick reporting restarted=false. Useful for scripted diagnostics
against a real config file.`,
	RunE: runTick,
}

func init() {
	tickCmd.Flags().String("node-id", "", "Local cluster member ID (defaults to hostname)")
}

func runTick(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	nodeID, _ := cmd.Flags().GetString("node-id")

	logger := log.WithComponent("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	services, err := cfg.ResolvedServices()
	if err != nil {
		return fmt.Errorf("failed to resolve services: %w", err)
	}

	nodeID = localNodeID(nodeID)
	cluster := bootstrapCluster(nodeID, services)
	installer, launch := bootstrapCollaborators()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := updater.NewUpdater(ctx)
	defer reg.Close()

	for _, service := range services {
		reg.Add(service, installer)
	}

	for _, service := range services {
		restart := reg.TickGuarded(service, cluster, cluster, installer, launch)
		logger.Info().Str("service_group", service.ServiceGroup).Bool("restarted", restart).Msg("tick complete")
		fmt.Printf("%-30s restarted=%v\n", service.ServiceGroup, restart)
	}

	return nil
}
