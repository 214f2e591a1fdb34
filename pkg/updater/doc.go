/*
Package updater implements the per-service-group upgrade state machine and
the registry that drives it.

A service registered with UpdateStrategyAtOnce gets one background Worker
polling for a newer package and applying it the moment one appears.
UpdateStrategyRolling instead runs a leader-elected, one-member-at-a-time
rollout: AwaitingElection -> InElection -> Leader|Follower, cycling through
Waiting/Polling or Waiting/Updating as the group converges on each new
release in turn.

Updater.Tick, directly or through TickGuarded, is the only entry point the
supervisor's main loop calls, once per registered service group per outer
iteration; it is never safe to call concurrently for the same group.
TickGuarded wraps Tick and additionally recovers the
panic the state machine raises if a group's census view disappears mid
upgrade, dropping just that group rather than the whole process.

Driver is the reference main loop: it re-reads a ServiceSource on a fixed
interval, registers new groups, ticks every known group through
TickGuarded, and drops groups the source no longer reports.
*/
package updater
