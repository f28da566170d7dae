package core

import "context"

// TokenScope identifies the resource a credential is requested for.
type TokenScope string

// ScopeResourceManagement is the management-plane token scope used for
// subscription enumeration and graph queries.
const ScopeResourceManagement TokenScope = "https://management.azure.com/.default"

// CredentialResolver produces a short-lived credential for one tenant of an
// account. Called once per tenant per discovery pass. Failures are reported
// as *CredentialError.
type CredentialResolver interface {
	GetToken(ctx context.Context, account Account, tenantID string, scope TokenScope) (Credential, error)
}

// QueryTransport executes a graph query against a set of subscriptions.
// Implementations exhaust pagination internally and return the full result
// set. Failures are reported as *QueryExecutionError.
type QueryTransport interface {
	Execute(ctx context.Context, cred Credential, subscriptionIDs []string, query string) ([]RawGraphRow, error)
}

// SubscriptionLister enumerates the subscriptions visible to a credential
// within one tenant.
type SubscriptionLister interface {
	ListSubscriptions(ctx context.Context, cred Credential, tenantID string) ([]Subscription, error)
}
