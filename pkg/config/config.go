// Package config loads the operator-visible settings for the service
// updater from a YAML file. Loading here stays deliberately thin; the
// update-period parsing the operator actually tunes at runtime lives in
// pkg/period, read from the environment rather than this file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/svcupdater/pkg/ident"
	"github.com/cuemby/svcupdater/pkg/types"
)

// Config holds process-wide defaults the CLI applies before the registry
// starts ticking, plus the statically-declared service groups it should
// supervise (the YAML-resource-list pattern the teacher's `apply` command
// uses for services, secrets, and volumes, flattened into one file here
// since there is only one resource kind).
type Config struct {
	// BuilderURL is the default artifact repository base URL for
	// services that don't specify their own.
	BuilderURL string `yaml:"builderUrl"`

	// Channel is the default release channel.
	Channel string `yaml:"channel"`

	// LogLevel is one of "debug", "info", "warn", "error". cmd/svcupdater
	// does not read it; its log level comes from the --log-level flag.
	LogLevel string `yaml:"logLevel"`

	// MetricsAddr is the listen address for the Prometheus/health HTTP
	// server, e.g. ":9090".
	MetricsAddr string `yaml:"metricsAddr"`

	// Services lists the service groups this process supervises.
	Services []ServiceSpec `yaml:"services"`
}

// ServiceSpec is one service group entry in the config file.
type ServiceSpec struct {
	ServiceGroup   string `yaml:"serviceGroup"`
	Topology       string `yaml:"topology"`
	UpdateStrategy string `yaml:"updateStrategy"`
	Ident          string `yaml:"ident"`
	BuilderURL     string `yaml:"builderUrl"`
	Channel        string `yaml:"channel"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		BuilderURL:  "https://bldr.habitat.sh",
		Channel:     "stable",
		LogLevel:    "info",
		MetricsAddr: ":9090",
	}
}

// Load reads and parses a YAML config file, filling in defaults for any
// field the file leaves zero-valued.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// ResolvedServices resolves every ServiceSpec into a types.Service, applying the
// config's defaults for any field a spec leaves blank.
func (c Config) ResolvedServices() ([]types.Service, error) {
	out := make([]types.Service, 0, len(c.Services))
	for _, spec := range c.Services {
		id, err := ident.Parse(spec.Ident)
		if err != nil {
			return nil, fmt.Errorf("config: service %q: %w", spec.ServiceGroup, err)
		}

		builderURL := spec.BuilderURL
		if builderURL == "" {
			builderURL = c.BuilderURL
		}
		channel := spec.Channel
		if channel == "" {
			channel = c.Channel
		}

		topology := types.Topology(spec.Topology)
		if topology == "" {
			topology = types.TopologyStandalone
		}

		out = append(out, types.Service{
			ServiceGroup:   spec.ServiceGroup,
			Topology:       topology,
			UpdateStrategy: types.UpdateStrategy(spec.UpdateStrategy),
			Ident:          id,
			SpecIdent:      ident.PackageIdent{Origin: id.Origin, Name: id.Name},
			BuilderURL:     builderURL,
			Channel:        channel,
		})
	}
	return out, nil
}
