package updater

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/svcupdater/pkg/adapters"
	"github.com/cuemby/svcupdater/pkg/ident"
	"github.com/cuemby/svcupdater/pkg/log"
	"github.com/cuemby/svcupdater/pkg/metrics"
	"github.com/cuemby/svcupdater/pkg/period"
)

// mission distinguishes the two things a Worker can be asked to fetch.
type mission int

const (
	// missionChaseLatest polls for the best package matching specIdent on
	// channel, strictly newer than current, and keeps running until it
	// finds one.
	missionChaseLatest mission = iota
	// missionFetchExact targets one fully-qualified identity and exits
	// as soon as it is installed.
	missionFetchExact
)

func (m mission) String() string {
	if m == missionFetchExact {
		return "fetch-exact"
	}
	return "chase-latest"
}

// Worker is a long-lived background task that polls the installer on a
// throttled schedule and publishes at most one eligible package on a
// zero-capacity (rendezvous) channel before exiting.
type Worker struct {
	id         string
	current    ident.PackageIdent
	specIdent  ident.PackageIdent
	exactIdent ident.PackageIdent
	builderURL string
	channel    string
	mission    mission

	installer    adapters.Installer
	serviceGroup string

	out chan adapters.Package
}

// newChaseLatestWorker builds a Worker that polls until it finds a package
// strictly newer than current matching specIdent.
func newChaseLatestWorker(serviceGroup string, installer adapters.Installer, current, specIdent ident.PackageIdent, builderURL, channel string) *Worker {
	return &Worker{
		id:           uuid.New().String(),
		current:      current,
		specIdent:    specIdent,
		builderURL:   builderURL,
		channel:      channel,
		mission:      missionChaseLatest,
		installer:    installer,
		serviceGroup: serviceGroup,
		out:          make(chan adapters.Package),
	}
}

// newFetchExactWorker builds a Worker that installs exactly exactIdent and
// exits, used by a rolling follower matching its leader's version.
func newFetchExactWorker(serviceGroup string, installer adapters.Installer, current, exactIdent ident.PackageIdent, builderURL, channel string) *Worker {
	return &Worker{
		id:           uuid.New().String(),
		current:      current,
		exactIdent:   exactIdent,
		builderURL:   builderURL,
		channel:      channel,
		mission:      missionFetchExact,
		installer:    installer,
		serviceGroup: serviceGroup,
		out:          make(chan adapters.Package),
	}
}

// Receiver returns the rendezvous channel the state machine polls. Only
// the state machine ever reads from it.
func (w *Worker) Receiver() <-chan adapters.Package {
	return w.out
}

// Start spawns the worker's background goroutine.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		switch w.mission {
		case missionFetchExact:
			w.runOnce(ctx)
		default:
			w.runPoll(ctx)
		}
	}()
}

// runPoll implements the chase-latest mission: poll until a strictly newer
// package is found, emit it, and exit.
func (w *Worker) runPoll(ctx context.Context) {
	logger := log.WithComponent("worker").With().
		Str("worker_id", w.id).
		Str("service_group", w.serviceGroup).
		Str("mission", w.mission.String()).
		Logger()
	defer close(w.out)

	for {
		nextTime := time.Now().Add(period.Effective())

		source := adapters.InstallSource{Spec: w.specIdent}
		pkg, err := w.installer.Install(ctx, w.builderURL, source, w.channel)
		if err != nil {
			logger.Warn().Err(err).Msg("install attempt failed, retrying next period")
			metrics.InstallFailuresTotal.WithLabelValues(w.serviceGroup, w.mission.String()).Inc()
		} else if pkg.Ident().NewerThan(w.current) {
			if !sendOrExit(ctx, w.out, pkg) {
				return
			}
			return
		}

		if !sleepUntil(ctx, nextTime) {
			return
		}
	}
}

// runOnce implements the fetch-exact mission: install one identity and
// exit, regardless of what "latest" happens to be.
func (w *Worker) runOnce(ctx context.Context) {
	logger := log.WithComponent("worker").With().
		Str("worker_id", w.id).
		Str("service_group", w.serviceGroup).
		Str("mission", w.mission.String()).
		Logger()
	defer close(w.out)

	for {
		nextTime := time.Now().Add(period.Effective())

		source := adapters.InstallSource{Exact: w.exactIdent}
		pkg, err := w.installer.Install(ctx, w.builderURL, source, w.channel)
		if err != nil {
			logger.Warn().Err(err).Msg("install attempt failed, retrying next period")
			metrics.InstallFailuresTotal.WithLabelValues(w.serviceGroup, w.mission.String()).Inc()
		} else {
			if !sendOrExit(ctx, w.out, pkg) {
				return
			}
			return
		}

		if !sleepUntil(ctx, nextTime) {
			return
		}
	}
}

// sendOrExit parks the worker in send until the state machine receives, or
// the context is cancelled (the supervisor is tearing this group down).
func sendOrExit(ctx context.Context, out chan<- adapters.Package, pkg adapters.Package) bool {
	select {
	case out <- pkg:
		return true
	case <-ctx.Done():
		return false
	}
}

// sleepUntil blocks until t or ctx cancellation, never sleeping a negative
// interval.
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
