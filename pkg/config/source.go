package config

import (
	"sync"

	"github.com/cuemby/svcupdater/pkg/log"
	"github.com/cuemby/svcupdater/pkg/types"
)

// FileSource implements updater.ServiceSource by re-reading a config file
// on every call to Services. This is what lets an operator add or remove a
// service group by editing the file, without restarting the process: the
// driver's next cycle picks up the change.
type FileSource struct {
	path string

	mu   sync.Mutex
	last []types.Service
}

// NewFileSource builds a FileSource reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Services re-reads and re-resolves the config file. On any read or parse
// error it logs the failure and returns the last successfully-resolved
// list, so a transient editing mistake does not tear down every already
// running service group.
func (s *FileSource) Services() []types.Service {
	cfg, err := Load(s.path)
	if err != nil {
		log.WithComponent("config").Warn().Err(err).Str("path", s.path).Msg("failed to reload config, keeping previous service list")
		return s.cached()
	}

	services, err := cfg.ResolvedServices()
	if err != nil {
		log.WithComponent("config").Warn().Err(err).Str("path", s.path).Msg("failed to resolve services from config, keeping previous service list")
		return s.cached()
	}

	s.mu.Lock()
	s.last = services
	s.mu.Unlock()
	return services
}

func (s *FileSource) cached() []types.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Service(nil), s.last...)
}
