// Package builder provides a minimal reference Installer collaborator that
// resolves and fetches packages from a Builder-compatible HTTP depot. Real
// artifact download, signature verification, and local unpacking are
// explicitly out of scope for the updater core; this package exists so the
// module is runnable end-to-end against a depot exposing the conventional
// "/v1/depot/channels/{origin}/{channel}/pkgs/{name}/latest" and
// "/v1/depot/pkgs/{origin}/{name}/{version}/{release}" routes.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/svcupdater/pkg/adapters"
	"github.com/cuemby/svcupdater/pkg/ident"
	"github.com/cuemby/svcupdater/pkg/log"
)

// pkgResponse is the subset of a Builder API package payload this client
// cares about.
type pkgResponse struct {
	Ident struct {
		Origin  string `json:"origin"`
		Name    string `json:"name"`
		Version string `json:"version"`
		Release string `json:"release"`
	} `json:"ident"`
}

// Installer is a reference adapters.Installer backed by net/http.
type Installer struct {
	HTTPClient *http.Client
}

// NewInstaller builds an Installer with a sane request timeout.
func NewInstaller() *Installer {
	return &Installer{HTTPClient: &http.Client{Timeout: 30 * time.Second}}
}

// installedPackage adapts a resolved identity to adapters.Package.
type installedPackage struct{ id ident.PackageIdent }

func (p installedPackage) Ident() ident.PackageIdent { return p.id }

// Install implements adapters.Installer. A fully-qualified source.Exact
// requests that exact release; otherwise source.Spec is resolved against
// the latest release on channel.
func (i *Installer) Install(ctx context.Context, builderURL string, source adapters.InstallSource, channel string) (adapters.Package, error) {
	logger := log.WithComponent("builder")

	var url string
	if source.Exact.FullyQualified() {
		url = fmt.Sprintf("%s/v1/depot/pkgs/%s/%s/%s/%s",
			builderURL, source.Exact.Origin, source.Exact.Name, source.Exact.Version, source.Exact.Release)
	} else {
		url = fmt.Sprintf("%s/v1/depot/channels/%s/%s/pkgs/%s/latest",
			builderURL, source.Spec.Origin, channel, source.Spec.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("builder: failed to build request: %w", err)
	}

	resp, err := i.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("builder: request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("builder: %s returned status %d", url, resp.StatusCode)
	}

	var payload pkgResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("builder: failed to decode response from %s: %w", url, err)
	}

	id := ident.PackageIdent{
		Origin:  payload.Ident.Origin,
		Name:    payload.Ident.Name,
		Version: payload.Ident.Version,
		Release: payload.Ident.Release,
	}
	logger.Debug().Str("ident", id.String()).Str("url", url).Msg("resolved package")
	return installedPackage{id: id}, nil
}
