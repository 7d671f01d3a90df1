package billingsync

import (
	"errors"
	"fmt"
	"time"
)

// ErrUserCancelled is the sentinel a StoreClient returns (possibly wrapped)
// when the user dismissed the store's purchase or restore dialog.
// Cancellation is not a failure to report to the user.
var ErrUserCancelled = errors.New("user cancelled the store operation")

// ErrStoreUnavailable indicates no store billing client exists on this
// platform (web build, or the native billing module is missing).
var ErrStoreUnavailable = errors.New("store billing client is not available on this platform")

// StoreOperationError means the store SDK's purchase, restore or login call
// itself failed or was cancelled. Operations that fail here never reach the
// backend, so no refresh call is made.
type StoreOperationError struct {
	// Op is the store operation that failed: "purchase", "restore", "login",
	// "logout" or "offerings".
	Op string
	// UserCancelled distinguishes a dismissed dialog from a real failure.
	UserCancelled bool
	Err           error
}

func (e *StoreOperationError) Error() string {
	if e.UserCancelled {
		return fmt.Sprintf("store %s cancelled by user", e.Op)
	}
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreOperationError) Unwrap() error {
	return e.Err
}

// IsUserCancelled reports whether err is a store operation the user
// cancelled. Callers treat this as a silent no-op, not an error state.
func IsUserCancelled(err error) bool {
	var serr *StoreOperationError
	if errors.As(err, &serr) {
		return serr.UserCancelled
	}
	return errors.Is(err, ErrUserCancelled)
}

// BillingRefreshError means the backend refresh call failed. This is fatal
// to the current operation: if the backend was never told to re-check with
// the store, polling its entitlement endpoint afterwards would be pointless.
// The refresh endpoint is idempotent per transaction, so retrying the whole
// operation is safe.
type BillingRefreshError struct {
	// StatusCode is the HTTP status the backend answered with, or 0 when the
	// request never completed.
	StatusCode int
	Err        error
}

func (e *BillingRefreshError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("billing refresh failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("billing refresh failed: %v", e.Err)
}

func (e *BillingRefreshError) Unwrap() error {
	return e.Err
}

// EntitlementPollingTimeoutError means the refresh succeeded but the
// authoritative snapshot never satisfied the predicate within the budget.
// This is the expected outcome of a slow webhook, not necessarily a bug:
// callers should show a "still confirming your purchase" state, and a later
// login sync will pick up the eventually-consistent entitlement.
type EntitlementPollingTimeoutError struct {
	Elapsed   time.Duration
	PollCount int
	// EmptySnapshots counts polls that returned a fail-closed empty snapshot,
	// separating "backend unreachable the whole time" from "webhook just
	// hasn't landed" in logs and diagnostics.
	EmptySnapshots int
}

func (e *EntitlementPollingTimeoutError) Error() string {
	return fmt.Sprintf("entitlement not confirmed after %d polls in %s (%d empty snapshots)",
		e.PollCount, e.Elapsed, e.EmptySnapshots)
}
