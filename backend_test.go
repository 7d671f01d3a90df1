package billingsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackendClientRequiresBaseURL(t *testing.T) {
	_, err := NewBackendClient("")
	assert.Error(t, err)

	_, err = NewBackendClient("   ")
	assert.Error(t, err)
}

func TestNewBackendClientNormalizesTrailingSlash(t *testing.T) {
	client, err := NewBackendClient("https://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", client.baseURL)
}

func TestRefreshBillingSendsRequest(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/billing/refresh", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	client, err := NewBackendClient(srv.URL, WithTokenGetter(func() string { return "tok-123" }))
	require.NoError(t, err)

	err = client.RefreshBilling(context.Background(), RefreshRequest{
		UserID:        "user-1",
		TransactionID: "txn-9",
		Action:        RefreshActionPurchase,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "user-1", gotBody["userId"])
	assert.Equal(t, "txn-9", gotBody["transactionId"])
	assert.Equal(t, "store", gotBody["source"])
	assert.Equal(t, "purchase", gotBody["action"])
}

func TestRefreshBillingOmitsAuthHeaderWithoutToken(t *testing.T) {
	var authPresent bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authPresent = r.Header["Authorization"]
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	client, err := NewBackendClient(srv.URL)
	require.NoError(t, err)

	require.NoError(t, client.RefreshBilling(context.Background(), RefreshRequest{UserID: "user-1"}))
	assert.False(t, authPresent, "no token must mean no Authorization header at all")
}

func TestRefreshBillingNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewBackendClient(srv.URL)
	require.NoError(t, err)

	err = client.RefreshBilling(context.Background(), RefreshRequest{UserID: "user-1"})
	var rerr *BillingRefreshError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusBadGateway, rerr.StatusCode)
	assert.Contains(t, rerr.Error(), "502")
}

func TestRefreshBillingNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client, err := NewBackendClient(srv.URL)
	require.NoError(t, err)

	err = client.RefreshBilling(context.Background(), RefreshRequest{UserID: "user-1"})
	var rerr *BillingRefreshError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 0, rerr.StatusCode)
}

func TestGetEntitlementsDecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/entitlements", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("userId"))
		_, _ = w.Write([]byte(`{
			"hasFullAccess": false,
			"accessSource": "store",
			"subscription": {"status": "active", "currentPeriodEnd": "2026-01-01T00:00:00Z", "platform": "ios"},
			"countryUnlocks": ["japan"]
		}`))
	}))
	defer srv.Close()

	client, err := NewBackendClient(srv.URL)
	require.NoError(t, err)

	ent, err := client.GetEntitlements(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, ent.HasFullAccess)
	assert.Equal(t, AccessSourceStore, ent.AccessSource)
	require.NotNil(t, ent.Subscription)
	assert.Equal(t, SubscriptionStatusActive, ent.Subscription.Status)
	assert.Nil(t, ent.DecisionPass)
	assert.Equal(t, []string{"japan"}, ent.CountryUnlocks)
	assert.True(t, HasEntitlement(ent))
}

func TestGetEntitlementsDefaultsMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hasFullAccess": true}`))
	}))
	defer srv.Close()

	client, err := NewBackendClient(srv.URL)
	require.NoError(t, err)

	ent, err := client.GetEntitlements(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, ent.HasFullAccess)
	assert.Empty(t, ent.AccessSource)
	assert.Nil(t, ent.Subscription)
	assert.Nil(t, ent.DecisionPass)
	assert.NotNil(t, ent.CountryUnlocks)
	assert.Empty(t, ent.CountryUnlocks)
}

func TestGetEntitlementsFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewBackendClient(srv.URL)
	require.NoError(t, err)

	ent, err := client.GetEntitlements(context.Background(), "user-1")
	require.NoError(t, err, "backend failure must not surface as an error")
	assert.True(t, ent.IsEmpty())
	assert.False(t, HasEntitlement(ent))
}

func TestGetEntitlementsFailsClosedOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := NewBackendClient(srv.URL)
	require.NoError(t, err)

	ent, err := client.GetEntitlements(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, ent.IsEmpty())
}

func TestGetEntitlementsFailsClosedOnMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client, err := NewBackendClient(srv.URL)
	require.NoError(t, err)

	ent, err := client.GetEntitlements(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, ent.IsEmpty())
}

func TestTokenReadAtCallTime(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	token := "first"
	client, err := NewBackendClient(srv.URL, WithTokenGetter(func() string { return token }))
	require.NoError(t, err)

	require.NoError(t, client.RefreshBilling(context.Background(), RefreshRequest{UserID: "u"}))
	assert.Equal(t, "Bearer first", gotAuth)

	token = "second"
	require.NoError(t, client.RefreshBilling(context.Background(), RefreshRequest{UserID: "u"}))
	assert.Equal(t, "Bearer second", gotAuth)
}
