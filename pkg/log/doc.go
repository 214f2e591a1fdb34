/*
Package log provides structured logging for the service updater using zerolog.

It wraps zerolog to give every component a JSON- or console-formatted logger
tagged with its name, so a single process running many per-service-group
state machines can be filtered and correlated in production.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	log.Info("updater starting")

	workerLog := log.WithComponent("worker").With().
		Str("service_group", "redis.default").Logger()
	workerLog.Warn().Err(err).Msg("install attempt failed")

# Levels

Debug is for poll/tick-level detail, Info for state transitions and applied
packages, Warn for install failures that will be retried, Error for
unexpected conditions the caller should investigate. Fatal exits the process
and is reserved for startup failures in cmd/svcupdater.
*/
package log
