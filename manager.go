package billingsync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Status classifies the outcome of an orchestrator operation.
type Status string

const (
	// StatusConfirmed means the backend's authoritative snapshot satisfies
	// the entitlement predicate.
	StatusConfirmed Status = "confirmed"
	// StatusPending means the snapshot does not (yet) grant access. For a
	// login sync this is a normal outcome, not an error.
	StatusPending Status = "pending"
	// StatusTimeout means confirmation polling exhausted its budget.
	StatusTimeout Status = "timeout"
	// StatusError means a collaborator failed before any snapshot was usable.
	StatusError Status = "error"
)

// Result is the outcome of a Purchase, Restore or SyncOnLogin call. It is
// created fresh per call and never mutated after return.
type Result struct {
	Entitlements *BackendEntitlements
	Status       Status
}

// Manager orchestrates a purchase, restore or login-sync from "user tapped
// buy" to "backend confirms entitlement". Each operation is a linear
// pipeline with two hard-fail gates (store call, backend refresh) followed,
// for purchase and restore, by a bounded entitlement poll. There is no
// partial-success path that grants access: every exit is either a confirmed
// Result or a typed error.
//
// Operations for the same user are not run concurrently by contract; the
// cooldown tracker is the only cross-call shared state and tolerates
// last-writer-wins.
type Manager struct {
	store    StoreClient
	backend  Backend
	cooldown *CooldownTracker
	pending  PendingQueue
	metrics  Metrics
	logger   zerolog.Logger
	poll     PollConfig
	nowTime  func() time.Time
}

// NewManager creates a Manager over a store client and a backend client.
// Both are required; everything else has working defaults.
func NewManager(store StoreClient, backend Backend, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("billingsync: store client is required")
	}
	if backend == nil {
		return nil, errors.New("billingsync: backend client is required")
	}

	m := &Manager{
		store:    store,
		backend:  backend,
		cooldown: NewCooldownTracker(),
		pending:  NewInMemoryPendingQueue(),
		metrics:  &NoOpMetrics{},
		logger:   log.Logger,
		poll:     DefaultPollConfig(),
		nowTime:  time.Now,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Purchase runs the store purchase dialog for productID, nudges the backend
// to ingest the resulting transaction, then polls the authoritative snapshot
// until it grants the product or the budget elapses.
//
// Failures map onto the error taxonomy: a store failure (including user
// cancellation, see IsUserCancelled) never touches the backend; a refresh
// failure skips polling entirely; a poll timeout surfaces as
// *EntitlementPollingTimeoutError and the purchase is parked in the pending
// queue for a later sync to reconcile.
func (m *Manager) Purchase(ctx context.Context, productID, userID string) (*Result, error) {
	started := m.nowTime()
	logger := m.opLogger("purchase", userID).With().Str("product_id", productID).Logger()

	purchase, err := m.store.PurchasePackage(ctx, productID)
	if err != nil {
		serr := m.storeError("purchase", err)
		if serr.UserCancelled {
			logger.Debug().Msg("purchase cancelled by user")
		} else {
			logger.Error().Err(err).Msg("store purchase failed")
		}
		m.recordOperation("purchase", "store_error", m.nowTime().Sub(started))
		return nil, serr
	}

	// Only identifiers are read from the purchase result. Its local
	// customer info may already claim the entitlement is active; the
	// backend has not necessarily agreed yet.
	if err := m.backend.RefreshBilling(ctx, RefreshRequest{
		UserID:        userID,
		TransactionID: purchase.TransactionID,
		Action:        RefreshActionPurchase,
	}); err != nil {
		logger.Error().Err(err).Msg("billing refresh failed after purchase")
		m.recordOperation("purchase", "refresh_error", m.nowTime().Sub(started))
		return nil, err
	}
	m.cooldown.RecordRefresh(userID)

	ent, err := m.awaitEntitlement(ctx, "purchase", userID, productID, purchase.TransactionID, logger)
	if err != nil {
		m.recordOperation("purchase", pollFailureStatus(err), m.nowTime().Sub(started))
		return nil, err
	}

	logger.Info().Msg("purchase confirmed by backend")
	m.recordOperation("purchase", "confirmed", m.nowTime().Sub(started))
	return &Result{Entitlements: ent, Status: StatusConfirmed}, nil
}

// Restore replays the store account's prior purchases and waits for the
// backend to confirm the resulting entitlement. Same pipeline as Purchase
// with the store restore call in front and no product scoping on the poll.
func (m *Manager) Restore(ctx context.Context, userID string) (*Result, error) {
	started := m.nowTime()
	logger := m.opLogger("restore", userID)

	if _, err := m.store.RestorePurchases(ctx); err != nil {
		serr := m.storeError("restore", err)
		if serr.UserCancelled {
			logger.Debug().Msg("restore cancelled by user")
		} else {
			logger.Error().Err(err).Msg("store restore failed")
		}
		m.recordOperation("restore", "store_error", m.nowTime().Sub(started))
		return nil, serr
	}

	if err := m.backend.RefreshBilling(ctx, RefreshRequest{
		UserID: userID,
		Action: RefreshActionRestore,
	}); err != nil {
		logger.Error().Err(err).Msg("billing refresh failed after restore")
		m.recordOperation("restore", "refresh_error", m.nowTime().Sub(started))
		return nil, err
	}
	m.cooldown.RecordRefresh(userID)

	ent, err := m.awaitEntitlement(ctx, "restore", userID, "", "", logger)
	if err != nil {
		m.recordOperation("restore", pollFailureStatus(err), m.nowTime().Sub(started))
		return nil, err
	}

	logger.Info().Msg("restore confirmed by backend")
	m.recordOperation("restore", "confirmed", m.nowTime().Sub(started))
	return &Result{Entitlements: ent, Status: StatusConfirmed}, nil
}

// SyncOnLogin binds the store identity to userID, refreshes the backend when
// the cooldown window allows, and fetches the snapshot once. It never polls:
// a login reflects whatever the backend currently knows, it does not wait
// for a purchase to confirm. A no-access snapshot yields StatusPending, not
// an error.
func (m *Manager) SyncOnLogin(ctx context.Context, userID string) (*Result, error) {
	started := m.nowTime()
	logger := m.opLogger("sync", userID)

	login, err := m.store.LogIn(ctx, userID)
	if err != nil {
		serr := m.storeError("login", err)
		logger.Error().Err(err).Msg("store login failed")
		m.recordOperation("sync", "store_error", m.nowTime().Sub(started))
		return nil, serr
	}
	if login != nil && login.Created {
		logger.Debug().Msg("store identity created for user")
	}

	if m.cooldown.ShouldRefresh(userID) {
		if err := m.backend.RefreshBilling(ctx, RefreshRequest{UserID: userID}); err != nil {
			logger.Error().Err(err).Msg("billing refresh failed during login sync")
			m.recordOperation("sync", "refresh_error", m.nowTime().Sub(started))
			return nil, err
		}
		m.cooldown.RecordRefresh(userID)
	} else {
		logger.Debug().Msg("refresh skipped, cooldown window still open")
	}

	ent, err := m.backend.GetEntitlements(ctx, userID)
	if err != nil {
		m.recordOperation("sync", "error", m.nowTime().Sub(started))
		return nil, err
	}

	status := StatusPending
	if HasEntitlement(ent) {
		status = StatusConfirmed
		// A confirmed sync reconciles any purchase parked after a timeout.
		if err := m.pending.RemoveForUser(ctx, userID); err != nil {
			logger.Warn().Err(err).Msg("failed to drain pending confirmations")
		}
		m.recordPendingDepth()
	}

	m.recordOperation("sync", string(status), m.nowTime().Sub(started))
	return &Result{Entitlements: ent, Status: status}, nil
}

// ForceSync clears the user's cooldown record and runs SyncOnLogin, so the
// backend refresh happens regardless of the window. Manual "retry" actions
// use this.
func (m *Manager) ForceSync(ctx context.Context, userID string) (*Result, error) {
	m.cooldown.Clear(userID)
	return m.SyncOnLogin(ctx, userID)
}

// Logout unbinds the store identity and forgets the user's cooldown record
// so the next login syncs immediately.
func (m *Manager) Logout(ctx context.Context, userID string) error {
	if err := m.store.LogOut(ctx); err != nil {
		return m.storeError("logout", err)
	}
	m.cooldown.Clear(userID)
	return nil
}

// Offerings exposes the store catalog for paywall rendering.
func (m *Manager) Offerings(ctx context.Context) ([]Offering, error) {
	offerings, err := m.store.GetOfferings(ctx)
	if err != nil {
		return nil, m.storeError("offerings", err)
	}
	return offerings, nil
}

// PendingConfirmations lists purchases still awaiting backend confirmation,
// for account screens and debug surfaces.
func (m *Manager) PendingConfirmations(ctx context.Context, limit int) ([]*PendingPurchase, error) {
	return m.pending.List(ctx, limit)
}

// awaitEntitlement polls the authoritative snapshot until the predicate
// passes. An empty (fail-closed) snapshot is "not yet entitled", never
// success, so a backend outage mid-poll keeps the loop running until the
// budget elapses.
func (m *Manager) awaitEntitlement(ctx context.Context, op, userID, productID, transactionID string, logger zerolog.Logger) (*BackendEntitlements, error) {
	emptySnapshots := 0

	result, err := Poll(ctx, m.poll,
		func(ctx context.Context) (*BackendEntitlements, error) {
			ent, err := m.backend.GetEntitlements(ctx, userID)
			if err != nil {
				return nil, err
			}
			if ent.IsEmpty() {
				emptySnapshots++
			}
			return ent, nil
		},
		func(ent *BackendEntitlements) bool {
			if productID != "" {
				return HasEntitlement(ent, productID)
			}
			return HasEntitlement(ent)
		},
	)
	if err != nil {
		return nil, err
	}

	m.recordPoll(op, result.PollCount, result.Elapsed, result.TimedOut)
	if !result.TimedOut {
		return result.Value, nil
	}

	entry := &PendingPurchase{
		UserID:        userID,
		ProductID:     productID,
		TransactionID: transactionID,
		Operation:     op,
		PollCount:     result.PollCount,
		Elapsed:       result.Elapsed,
		Timestamp:     m.nowTime(),
	}
	if qerr := m.pending.Add(ctx, entry); qerr != nil {
		logger.Warn().Err(qerr).Msg("failed to park timed-out confirmation")
	}
	m.recordPendingDepth()

	logger.Warn().
		Int("poll_count", result.PollCount).
		Dur("elapsed", result.Elapsed).
		Int("empty_snapshots", emptySnapshots).
		Msg("entitlement confirmation timed out, parked for later sync")

	return nil, &EntitlementPollingTimeoutError{
		Elapsed:        result.Elapsed,
		PollCount:      result.PollCount,
		EmptySnapshots: emptySnapshots,
	}
}

// pollFailureStatus labels a failed confirmation phase for metrics: an
// exhausted budget is "timeout", anything else (cancellation, a backend
// error surfaced mid-poll) is "error".
func pollFailureStatus(err error) string {
	var terr *EntitlementPollingTimeoutError
	if errors.As(err, &terr) {
		return "timeout"
	}
	return "error"
}

// storeError normalizes a StoreClient failure into a *StoreOperationError,
// preserving an already-typed error and the cancellation sentinel.
func (m *Manager) storeError(op string, err error) *StoreOperationError {
	var serr *StoreOperationError
	if errors.As(err, &serr) {
		return serr
	}
	return &StoreOperationError{
		Op:            op,
		UserCancelled: errors.Is(err, ErrUserCancelled),
		Err:           err,
	}
}

func (m *Manager) opLogger(op, userID string) zerolog.Logger {
	return m.logger.With().
		Str("operation", op).
		Str("operation_id", uuid.NewString()).
		Str("user_id", userID).
		Logger()
}
