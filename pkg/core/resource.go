package core

// ResourceKind distinguishes the two shapes of converted resources.
type ResourceKind int

const (
	// KindServer is a top-level server-like resource (SQL server, synapse
	// workspace, kusto cluster, cosmos account, ...).
	KindServer ResourceKind = iota

	// KindDatabase is a child resource that belongs to a server.
	KindDatabase
)

// String returns the kind name for logging.
func (k ResourceKind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// RawGraphRow is an untyped record returned by the graph query transport.
// Rows are ephemeral: they are never persisted, only converted.
type RawGraphRow struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	Kind           string         `json:"kind,omitempty"`
	SubscriptionID string         `json:"subscriptionId"`
	TenantID       string         `json:"tenantId"`
	ResourceGroup  string         `json:"resourceGroup"`
	Properties     map[string]any `json:"properties,omitempty"`
}

// Resource is a converted, typed resource. It is a tagged variant: Kind
// selects which of the server/database field groups is meaningful.
//
// Every Resource that reaches the tree hierarchy carries a non-empty
// Provider so it can be traced back to its descriptor.
type Resource struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Kind          ResourceKind `json:"kind"`
	Provider      string       `json:"provider"`
	Subscription  Subscription `json:"subscription"`
	TenantID      string       `json:"tenantId"`
	ResourceGroup string       `json:"resourceGroup"`

	// Server fields (Kind == KindServer).
	LoginName           string `json:"loginName,omitempty"`
	FullName            string `json:"fullName,omitempty"`
	DefaultDatabaseName string `json:"defaultDatabaseName,omitempty"`

	// Database fields (Kind == KindDatabase).
	ServerName     string `json:"serverName,omitempty"`
	ServerFullName string `json:"serverFullName,omitempty"`
}

// DisplayItem is the UI-facing shape of a tree node. The engine decides
// which provider produces an item; the host owns its visual rendering.
type DisplayItem struct {
	ID           string
	Label        string
	Icon         string
	ContextValue string
	Collapsible  bool

	// Payload carries the connection details the host needs when the user
	// acts on the item (server name, login, default database).
	Payload map[string]string
}
