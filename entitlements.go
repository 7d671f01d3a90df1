package billingsync

import (
	"strings"
	"time"
)

// SubscriptionStatus represents the status of a backend subscription record.
type SubscriptionStatus string

const (
	// SubscriptionStatusActive means the subscription is active and grants access.
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusCancelled means the subscription was cancelled and no longer grants access.
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	// SubscriptionStatusExpired means the subscription lapsed and no longer grants access.
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// Access sources reported by the backend. Informational only, never used for gating.
const (
	AccessSourceStore      = "store"
	AccessSourceWebPayment = "web-payment"
	AccessSourcePromo      = "promo"
)

// Subscription is the backend's view of a recurring subscription.
type Subscription struct {
	Status           SubscriptionStatus `json:"status"`
	CurrentPeriodEnd time.Time          `json:"currentPeriodEnd"`
	Platform         string             `json:"platform"`
}

// DecisionPass is a time-boxed, non-renewing full-access grant.
type DecisionPass struct {
	ExpiresAt time.Time `json:"expiresAt"`
	Active    bool      `json:"active"`
}

// BackendEntitlements is the authoritative entitlement snapshot owned by the
// backend. It is fetched fresh on every check and never persisted client-side
// as truth. The store SDK's local customer info is deliberately absent here:
// the store can report an entitlement as active seconds before the backend's
// webhook lands, and gating on it would grant access the backend has not
// confirmed.
type BackendEntitlements struct {
	HasFullAccess  bool          `json:"hasFullAccess"`
	AccessSource   string        `json:"accessSource,omitempty"`
	Subscription   *Subscription `json:"subscription,omitempty"`
	DecisionPass   *DecisionPass `json:"decisionPass,omitempty"`
	CountryUnlocks []string      `json:"countryUnlocks"`
}

// EmptyEntitlements returns a snapshot granting no access. It is the
// fail-closed value used whenever the backend cannot be reached.
func EmptyEntitlements() *BackendEntitlements {
	return &BackendEntitlements{CountryUnlocks: []string{}}
}

// IsEmpty reports whether the snapshot carries no entitlement data at all,
// as opposed to carrying data that simply grants no access. The poller uses
// this to count how often the backend answered with a fail-closed snapshot.
func (e *BackendEntitlements) IsEmpty() bool {
	if e == nil {
		return true
	}
	return !e.HasFullAccess &&
		e.AccessSource == "" &&
		e.Subscription == nil &&
		e.DecisionPass == nil &&
		len(e.CountryUnlocks) == 0
}

// countryProductPrefix is the store product key prefix for per-region
// lifetime unlocks, e.g. "country_new_zealand".
const countryProductPrefix = "country_"

// NormalizeRegionSlug converts a region identifier to its canonical
// hyphenated form ("new_zealand" -> "new-zealand"). Normalization is
// idempotent.
func NormalizeRegionSlug(slug string) string {
	return strings.ReplaceAll(slug, "_", "-")
}

// RegionSlugFromProductKey derives the canonical region slug from a store
// product key by stripping the country prefix and normalizing separators.
func RegionSlugFromProductKey(productKey string) string {
	return NormalizeRegionSlug(strings.TrimPrefix(productKey, countryProductPrefix))
}

// HasEntitlement reports whether the snapshot grants access, optionally
// scoped to a single store product key. It is true when the user has blanket
// full access, an active subscription, an active decision pass, or (when a
// product key is given) the matching region unlock.
//
// This function and HasCountryEntitlement are the only sanctioned way to
// decide access from a backend snapshot. Callers must not inline equivalent
// logic: UI gating and purchase-confirmation gating have to agree.
func HasEntitlement(ent *BackendEntitlements, productKey ...string) bool {
	if ent == nil {
		return false
	}
	if hasBlanketAccess(ent) {
		return true
	}
	if len(productKey) > 0 && productKey[0] != "" {
		return containsSlug(ent.CountryUnlocks, RegionSlugFromProductKey(productKey[0]))
	}
	return false
}

// HasCountryEntitlement reports whether the snapshot grants access to a
// single region, either through blanket access or a direct region unlock.
// The slug is normalized before the membership check, so underscore and
// hyphen forms are equivalent.
func HasCountryEntitlement(ent *BackendEntitlements, regionSlug string) bool {
	if ent == nil {
		return false
	}
	if hasBlanketAccess(ent) {
		return true
	}
	return containsSlug(ent.CountryUnlocks, NormalizeRegionSlug(regionSlug))
}

func hasBlanketAccess(ent *BackendEntitlements) bool {
	if ent.HasFullAccess {
		return true
	}
	if ent.Subscription != nil && ent.Subscription.Status == SubscriptionStatusActive {
		return true
	}
	if ent.DecisionPass != nil && ent.DecisionPass.Active {
		return true
	}
	return false
}

func containsSlug(unlocks []string, slug string) bool {
	for _, u := range unlocks {
		if NormalizeRegionSlug(u) == slug {
			return true
		}
	}
	return false
}
