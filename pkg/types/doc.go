// Package types defines the domain model the updater core and its
// collaborators share: the Service description a supervisor hands to the
// registry, and the Topology/UpdateStrategy enums that govern which state
// machine shape applies to it.
package types
