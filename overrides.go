package billingsync

import "time"

// OverrideKind labels a short-lived local access override.
type OverrideKind string

const (
	// OverrideSandbox marks access granted for store-review and QA builds.
	OverrideSandbox OverrideKind = "sandbox"
	// OverridePromo marks access granted through a local promo flag.
	OverridePromo OverrideKind = "promo"
)

// LocalOverride is a client-local escape hatch that bypasses the backend
// entirely. Overrides are deliberately kept out of BackendEntitlements and
// out of the entitlement predicates: they may never be mistaken for
// backend-confirmed access, and surfaces rendering them must mark them as
// overrides.
type LocalOverride struct {
	Kind      OverrideKind
	ExpiresAt time.Time
}

// ActiveAt reports whether the override is still in effect. A zero
// ExpiresAt never expires.
func (o LocalOverride) ActiveAt(now time.Time) bool {
	return o.ExpiresAt.IsZero() || now.Before(o.ExpiresAt)
}

// AccessDecision is the UI-boundary verdict combining backend entitlement
// with local overrides.
type AccessDecision struct {
	Granted bool
	// ByOverride is true when access comes from a local override rather
	// than the backend snapshot. Callers must render these differently.
	ByOverride bool
	Override   *LocalOverride
}

// DecideAccess wraps the sanctioned predicate with local overrides. The
// backend snapshot is consulted first; overrides only ever widen access.
func DecideAccess(ent *BackendEntitlements, productKey string, overrides []LocalOverride, now time.Time) AccessDecision {
	if HasEntitlement(ent, productKey) {
		return AccessDecision{Granted: true}
	}
	for i := range overrides {
		if overrides[i].ActiveAt(now) {
			return AccessDecision{Granted: true, ByOverride: true, Override: &overrides[i]}
		}
	}
	return AccessDecision{}
}
