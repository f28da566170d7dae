package core

// Tenant is the scope boundary for credential issuance and subscription
// enumeration. Identified by an opaque id; owned by exactly one Account.
type Tenant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Account is a signed-in identity. Accounts are created by the host's
// account provider at sign-in and are read-only to the discovery engine.
// An account embeds its tenants by value.
type Account struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"displayName"`
	Tenants     []Tenant `json:"tenants"`
}

// Subscription is a tenant-scoped billing/deployment boundary. Subscription
// lists are always tenant-scoped collections; the engine never merges them
// across tenants implicitly.
type Subscription struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TenantID string `json:"tenant"`
}

// Credential is a short-lived bearer token scoped to one tenant.
type Credential struct {
	Token     string
	TokenType string
}
