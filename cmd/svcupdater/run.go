package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/svcupdater/pkg/config"
	"github.com/cuemby/svcupdater/pkg/log"
	"github.com/cuemby/svcupdater/pkg/metrics"
	"github.com/cuemby/svcupdater/pkg/updater"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the updater supervisor loop",
	Long: `run starts the long-lived supervisor process: it loads the config
file's declared service groups, registers each with the updater registry,
and ticks every group on a fixed interval until interrupted.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("node-id", "", "Local cluster member ID (defaults to hostname)")
	runCmd.Flags().Duration("poll-interval", 5*time.Second, "How often the driver reconciles and ticks every service group")
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	nodeID, _ := cmd.Flags().GetString("node-id")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")

	logger := log.WithComponent("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	nodeID = localNodeID(nodeID)

	services, err := cfg.ResolvedServices()
	if err != nil {
		return fmt.Errorf("failed to resolve services: %w", err)
	}

	cluster := bootstrapCluster(nodeID, services)
	installer, launch := bootstrapCollaborators()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := updater.NewUpdater(ctx)
	defer reg.Close()

	source := config.NewFileSource(configPath)
	driver := updater.NewDriver(reg, source, updater.Collaborators{
		Census:    cluster,
		Gossip:    cluster,
		Installer: installer,
		Launcher:  launch,
	}, pollInterval)

	driver.Start()
	defer driver.Stop()

	metricsAddr := cfg.MetricsAddr
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error().Err(err).Msg("metrics server exited")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Int("services", len(services)).Msg("svcupdater running")

	metrics.SetCriticalComponents("registry", "gossip", "census")
	metrics.RegisterComponent("registry", true, "running")
	metrics.RegisterComponent("gossip", true, "running")
	metrics.RegisterComponent("census", true, "running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	return nil
}
