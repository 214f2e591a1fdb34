// Package ident implements the package identity tuple the updater core
// compares to decide whether a candidate package is newer than what is
// currently installed.
package ident

import (
	"fmt"
	"strings"
)

// Order is the result of comparing two PackageIdents.
type Order int

const (
	// Less means the receiver sorts before the argument.
	Less Order = -1
	// Equal means both identify the same version and release.
	Equal Order = 0
	// Greater means the receiver sorts after the argument.
	Greater Order = 1
	// Incomparable means the two idents do not share (Origin, Name) and
	// have no defined ordering; callers must not treat this as Equal.
	Incomparable Order = 2
)

// PackageIdent is the (origin, name, version, release) tuple naming one
// package. Spec identities (chase-latest targets) may leave Version and
// Release empty; fully-qualified identities (installed packages,
// fetch-exact targets) carry all four.
type PackageIdent struct {
	Origin  string
	Name    string
	Version string
	Release string
}

// FullyQualified reports whether every field is populated.
func (p PackageIdent) FullyQualified() bool {
	return p.Origin != "" && p.Name != "" && p.Version != "" && p.Release != ""
}

// Spec reports whether this identity is usable as a chase-latest target,
// i.e. it names an origin and a package but may omit version and release.
func (p PackageIdent) Spec() bool {
	return p.Origin != "" && p.Name != ""
}

// String renders the identity in origin/name/version/release form,
// omitting trailing empty fields.
func (p PackageIdent) String() string {
	parts := []string{p.Origin, p.Name}
	if p.Version != "" {
		parts = append(parts, p.Version)
		if p.Release != "" {
			parts = append(parts, p.Release)
		}
	}
	return strings.Join(parts, "/")
}

// Compare orders two fully-qualified identities lexicographically on
// (Version, Release) within the same (Origin, Name). Identities naming a
// different (Origin, Name) are Incomparable; the caller must not rank them
// against one another.
func (p PackageIdent) Compare(other PackageIdent) Order {
	if p.Origin != other.Origin || p.Name != other.Name {
		return Incomparable
	}
	if c := strings.Compare(p.Version, other.Version); c != 0 {
		return orderOf(c)
	}
	return orderOf(strings.Compare(p.Release, other.Release))
}

func orderOf(c int) Order {
	switch {
	case c < 0:
		return Less
	case c > 0:
		return Greater
	default:
		return Equal
	}
}

// NewerThan reports whether p is strictly newer than current under the
// ordering in Compare. An Incomparable result is never treated as newer.
func (p PackageIdent) NewerThan(current PackageIdent) bool {
	return p.Compare(current) == Greater
}

// Parse splits an "origin/name[/version[/release]]" string into a
// PackageIdent. It does not validate that the origin/name pair actually
// exists; that is the installer collaborator's concern.
func Parse(text string) (PackageIdent, error) {
	parts := strings.Split(text, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return PackageIdent{}, fmt.Errorf("ident: invalid identity %q: need at least origin/name", text)
	}
	p := PackageIdent{Origin: parts[0], Name: parts[1]}
	if len(parts) > 2 {
		p.Version = parts[2]
	}
	if len(parts) > 3 {
		p.Release = parts[3]
	}
	if len(parts) > 4 {
		return PackageIdent{}, fmt.Errorf("ident: invalid identity %q: too many segments", text)
	}
	return p, nil
}
