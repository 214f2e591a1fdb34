// Package errors holds the sentinel errors collaborators of the updater
// core return. Callers use errors.Is/errors.As against these rather than a
// hand-rolled tagged error enum.
package errors

import "errors"

var (
	// ErrNoCensusGroup names the case where no gossip view exists yet for
	// a service group. adapters.Census.Group reports that case as ok=false
	// rather than returning this error.
	ErrNoCensusGroup = errors.New("svcupdater: no census group for service")

	// ErrGroupRemoved is wrapped by the panic a Rolling StateMachine raises
	// when its group's census view disappears mid-upgrade.
	ErrGroupRemoved = errors.New("svcupdater: service group removed")

	// ErrWorkerDisconnected signals a Worker's channel closed without
	// delivering a package, i.e. it died before completing its mission.
	ErrWorkerDisconnected = errors.New("svcupdater: worker disconnected without delivering a package")

	// ErrInstallFailed wraps a failed install attempt from the
	// installer collaborator.
	ErrInstallFailed = errors.New("svcupdater: install attempt failed")

	// ErrInvalidPeriod names malformed update-period input. period.Parse
	// returns strconv's parse error rather than this one.
	ErrInvalidPeriod = errors.New("svcupdater: invalid update period")
)

// New is re-exported so callers needn't import both this package and the
// standard errors package for a single New call.
func New(text string) error { return errors.New(text) }

// Is is re-exported for the same reason.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is re-exported for the same reason.
func As(err error, target interface{}) bool { return errors.As(err, target) }
