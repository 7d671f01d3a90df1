package billingsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// TokenGetter returns the current bearer token, or "" when none is
// available. It is read at call time, not captured once, so a token
// refreshed mid-session is picked up on the next request.
type TokenGetter func() string

// RefreshRequest is the body of POST /billing/refresh. It tells the backend
// a store billing event happened for this user and it should verify/ingest
// the event now, complementing the asynchronous webhook.
type RefreshRequest struct {
	UserID        string `json:"userId"`
	TransactionID string `json:"transactionId,omitempty"`
	Source        string `json:"source"`
	Action        string `json:"action,omitempty"`
}

// Refresh actions understood by the backend.
const (
	RefreshActionPurchase = "purchase"
	RefreshActionRestore  = "restore"
)

// Backend is the contract the orchestrator needs from the entitlement
// backend. BackendClient is the HTTP implementation.
type Backend interface {
	// RefreshBilling nudges the backend to verify a store event. Non-2xx
	// responses and transport failures surface as *BillingRefreshError.
	RefreshBilling(ctx context.Context, req RefreshRequest) error
	// GetEntitlements fetches the authoritative snapshot. It fails closed:
	// an unreachable backend yields an empty no-access snapshot, not an
	// error a naive caller might misread as "has access".
	GetEntitlements(ctx context.Context, userID string) (*BackendEntitlements, error)
}

// BackendClient is a thin REST client for the entitlement backend. It holds
// no connection state; every call is an independent request carrying the
// then-current auth token.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	token      TokenGetter
	source     string
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// BackendOption configures a BackendClient.
type BackendOption func(*BackendClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) BackendOption {
	return func(b *BackendClient) {
		if c != nil {
			b.httpClient = c
		}
	}
}

// WithTokenGetter sets the bearer token source. Without one (or when the
// getter yields ""), requests carry no Authorization header at all.
func WithTokenGetter(get TokenGetter) BackendOption {
	return func(b *BackendClient) {
		if get != nil {
			b.token = get
		}
	}
}

// WithRefreshSource overrides the source reported on refresh calls.
// Defaults to "store".
func WithRefreshSource(source string) BackendOption {
	return func(b *BackendClient) {
		if source != "" {
			b.source = source
		}
	}
}

// WithRefreshLimiter installs a client-side burst guard on refresh calls.
// It caps request bursts independently of the per-user cooldown window.
func WithRefreshLimiter(l *rate.Limiter) BackendOption {
	return func(b *BackendClient) {
		b.limiter = l
	}
}

// WithBackendLogger replaces the global logger.
func WithBackendLogger(logger zerolog.Logger) BackendOption {
	return func(b *BackendClient) {
		b.logger = logger
	}
}

// NewBackendClient creates a client for the given base URL. The base URL is
// mandatory: a build must never guess a backend host, so its absence is a
// construction-time error rather than a silent fallback. A trailing slash is
// normalized away.
func NewBackendClient(baseURL string, opts ...BackendOption) (*BackendClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("billingsync: backend base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("billingsync: invalid backend base URL: %w", err)
	}

	b := &BackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		source:     AccessSourceStore,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

type refreshResponse struct {
	Success bool `json:"success"`
}

// RefreshBilling implements Backend.
func (b *BackendClient) RefreshBilling(ctx context.Context, req RefreshRequest) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return &BillingRefreshError{Err: err}
		}
	}
	if req.Source == "" {
		req.Source = b.source
	}

	body, err := json.Marshal(req)
	if err != nil {
		return &BillingRefreshError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/billing/refresh", bytes.NewReader(body))
	if err != nil {
		return &BillingRefreshError{Err: err}
	}
	b.setHeaders(httpReq)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		b.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("billing refresh request failed")
		return &BillingRefreshError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b.logger.Warn().Int("status", resp.StatusCode).Str("user_id", req.UserID).Msg("billing refresh rejected")
		return &BillingRefreshError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("backend answered %s", resp.Status),
		}
	}

	var parsed refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil && !parsed.Success {
		return &BillingRefreshError{
			StatusCode: resp.StatusCode,
			Err:        errors.New("backend reported an unsuccessful refresh"),
		}
	}
	return nil
}

// GetEntitlements implements Backend.
func (b *BackendClient) GetEntitlements(ctx context.Context, userID string) (*BackendEntitlements, error) {
	endpoint := b.baseURL + "/entitlements?userId=" + url.QueryEscape(userID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return EmptyEntitlements(), nil
	}
	b.setHeaders(httpReq)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		b.logger.Warn().Err(err).Str("user_id", userID).Msg("entitlement fetch failed, failing closed")
		return EmptyEntitlements(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b.logger.Warn().Int("status", resp.StatusCode).Str("user_id", userID).Msg("entitlement fetch rejected, failing closed")
		return EmptyEntitlements(), nil
	}

	var ent BackendEntitlements
	if err := json.NewDecoder(resp.Body).Decode(&ent); err != nil {
		b.logger.Warn().Err(err).Str("user_id", userID).Msg("entitlement payload malformed, failing closed")
		return EmptyEntitlements(), nil
	}
	if ent.CountryUnlocks == nil {
		ent.CountryUnlocks = []string{}
	}
	return &ent, nil
}

func (b *BackendClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if b.token != nil {
		if tok := b.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
}
