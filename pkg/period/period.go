// Package period implements the polling interval a Worker sleeps between
// iterations, and the operator-set floor that protects the artifact
// repository from being hammered by an accidental misconfiguration.
package period

import (
	"os"
	"strconv"
	"time"
)

const (
	// frequencyEnvVar names the variable carrying the configured period,
	// in milliseconds. The "FREQUENCY" name is a holdover from the
	// original supervisor's env var naming; it really means "period".
	frequencyEnvVar = "HAB_UPDATE_STRATEGY_FREQUENCY_MS"

	// bypassEnvVar, if set to any value, disables the floor below.
	bypassEnvVar = "HAB_UPDATE_STRATEGY_FREQUENCY_BYPASS_CHECK"

	// floor is the minimum polling period enforced unless bypassed.
	floor = 60_000 * time.Millisecond

	// defaultPeriod is used whenever the env var is unset or unparseable.
	defaultPeriod = floor
)

// UpdatePeriod is a non-negative polling interval.
type UpdatePeriod time.Duration

// Parse accepts a decimal string fitting in 32 unsigned bits and returns the
// corresponding UpdatePeriod. It rejects signs, whitespace, and non-digit
// input.
func Parse(text string) (UpdatePeriod, error) {
	raw, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, err
	}
	return UpdatePeriod(time.Duration(raw) * time.Millisecond), nil
}

// Configured reads HAB_UPDATE_STRATEGY_FREQUENCY_MS and returns the period
// it names. Any parse error, or the variable being unset, yields the
// default (the floor).
func Configured() UpdatePeriod {
	text, ok := os.LookupEnv(frequencyEnvVar)
	if !ok {
		return UpdatePeriod(defaultPeriod)
	}
	p, err := Parse(text)
	if err != nil {
		return UpdatePeriod(defaultPeriod)
	}
	return p
}

// Effective returns the duration a Worker should actually sleep: the
// configured period, unless it falls below the floor and no bypass is
// present, in which case the floor wins.
func Effective() time.Duration {
	configured := Configured()
	if time.Duration(configured) < floor {
		if _, bypassed := os.LookupEnv(bypassEnvVar); !bypassed {
			return floor
		}
	}
	return time.Duration(configured)
}
