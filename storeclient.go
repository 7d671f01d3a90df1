package billingsync

import "context"

// LocalCustomerInfo is the store SDK's local view of the customer. It is
// carried through for diagnostics only and is opaque to this library:
// gating decisions never read it, because the store can report an
// entitlement as active before (or after) the backend agrees.
type LocalCustomerInfo map[string]any

// PurchaseResult is what the store SDK reports after a completed purchase
// dialog. Only the identifiers are read by the orchestrator.
type PurchaseResult struct {
	ProductIdentifier string
	TransactionID     string
	LocalCustomerInfo LocalCustomerInfo
}

// RestoreResult is what the store SDK reports after restoring purchases.
type RestoreResult struct {
	LocalCustomerInfo LocalCustomerInfo
}

// LoginResult reports whether the store-side identity was newly created.
type LoginResult struct {
	Created bool
}

// Package is a purchasable unit inside an offering.
type Package struct {
	Identifier string
	ProductID  string
}

// Offering is a group of packages the store currently presents.
type Offering struct {
	Identifier string
	Packages   []Package
}

// StoreClient is the contract for the platform billing SDK. The concrete
// implementation is an external collaborator supplied at composition time;
// on platforms without a billing module, wire UnavailableStoreClient
// instead of branching inside the orchestrator.
//
// Implementations signal a dismissed dialog by returning ErrUserCancelled
// (possibly wrapped) so the orchestrator can preserve the cancellation flag.
type StoreClient interface {
	// PurchasePackage runs the store purchase dialog for a product.
	PurchasePackage(ctx context.Context, productID string) (*PurchaseResult, error)
	// RestorePurchases re-syncs prior purchases with the store account.
	RestorePurchases(ctx context.Context) (*RestoreResult, error)
	// LogIn binds the store SDK identity to the app user.
	LogIn(ctx context.Context, userID string) (*LoginResult, error)
	// LogOut unbinds the store SDK identity.
	LogOut(ctx context.Context) error
	// GetOfferings returns the store's current product catalog.
	GetOfferings(ctx context.Context) ([]Offering, error)
}

// UnavailableStoreClient is the StoreClient for platforms without a billing
// module. Every operation fails with ErrStoreUnavailable.
type UnavailableStoreClient struct{}

func (UnavailableStoreClient) PurchasePackage(ctx context.Context, productID string) (*PurchaseResult, error) {
	return nil, ErrStoreUnavailable
}

func (UnavailableStoreClient) RestorePurchases(ctx context.Context) (*RestoreResult, error) {
	return nil, ErrStoreUnavailable
}

func (UnavailableStoreClient) LogIn(ctx context.Context, userID string) (*LoginResult, error) {
	return nil, ErrStoreUnavailable
}

func (UnavailableStoreClient) LogOut(ctx context.Context) error {
	return ErrStoreUnavailable
}

func (UnavailableStoreClient) GetOfferings(ctx context.Context) ([]Offering, error) {
	return nil, ErrStoreUnavailable
}
