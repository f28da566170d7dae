// Package tree implements the lazily-populated resource tree: account,
// tenant, subscription and resource nodes with per-container caching,
// explicit invalidation, and change notification for the host's pull-based
// tree view.
package tree

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

// NodeKind tags the single node structure with its role. Rendering and
// child-fetching dispatch on the kind instead of an inheritance chain.
type NodeKind int

const (
	KindAccount NodeKind = iota
	KindTenant
	KindSubscription
	KindResource
	KindMessage
	KindProvider
)

// String returns the kind name for ids and logging.
func (k NodeKind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindTenant:
		return "tenant"
	case KindSubscription:
		return "subscription"
	case KindResource:
		return "resource"
	case KindMessage:
		return "message"
	case KindProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// Node is one entry of the resource tree. Only the payload fields matching
// Kind are meaningful. A parent exclusively owns its children and recreates
// them on refresh; nodes are never shared between parents.
type Node struct {
	Kind NodeKind

	// ID is the node path value, e.g.
	// account_<id>.tenant_<tid>.subscription_<sid>.
	ID string

	// Payload, selected by Kind.
	Account      core.Account
	Tenant       core.Tenant
	Subscription core.Subscription
	Resource     core.Resource
	Message      string
	Provider     string
	IsError      bool

	// Count bookkeeping for container labels.
	SelectedCount int
	TotalCount    int

	// clearingCache marks the container for a fresh fetch on the next
	// Children call. True from construction so the first call always
	// fetches.
	clearingCache bool

	// lastLabel is the most recently rendered label, used to suppress
	// redundant node-changed notifications.
	lastLabel string

	// children is populated for server resource nodes, which receive their
	// databases at conversion time, and for provider containers in the flat
	// loader view.
	children []*Node
}

// NewAccountNode creates the root container for an account.
func NewAccountNode(account core.Account) *Node {
	return &Node{
		Kind:          KindAccount,
		ID:            fmt.Sprintf("account_%s", account.Key),
		Account:       account,
		clearingCache: true,
	}
}

func newTenantNode(parent *Node, tenant core.Tenant) *Node {
	return &Node{
		Kind:          KindTenant,
		ID:            fmt.Sprintf("%s.tenant_%s", parent.ID, tenant.ID),
		Account:       parent.Account,
		Tenant:        tenant,
		clearingCache: true,
	}
}

func newSubscriptionNode(parent *Node, sub core.Subscription) *Node {
	return &Node{
		Kind:          KindSubscription,
		ID:            fmt.Sprintf("%s.subscription_%s", parent.ID, sub.ID),
		Account:       parent.Account,
		Tenant:        parent.Tenant,
		Subscription:  sub,
		clearingCache: true,
	}
}

func newResourceNode(account core.Account, res core.Resource) *Node {
	return &Node{
		Kind:         KindResource,
		ID:           fmt.Sprintf("%s.%s", res.Provider, res.ID),
		Account:      account,
		Subscription: res.Subscription,
		Tenant:       core.Tenant{ID: res.TenantID},
		Resource:     res,
	}
}

// NewProviderNode creates a flat container that aggregates one provider's
// resources across tenants, used by the incremental loader view.
func NewProviderNode(providerID string) *Node {
	return &Node{
		Kind:     KindProvider,
		ID:       providerID,
		Provider: providerID,
	}
}

// NewMessageNode creates a synthetic leaf carrying a user-visible message.
// Message nodes stand in for empty result sets so the host never renders an
// unexplained blank branch.
func NewMessageNode(text string) *Node {
	return &Node{
		Kind:    KindMessage,
		ID:      fmt.Sprintf("message_%s", uuid.NewString()),
		Message: text,
	}
}

// NewErrorNode creates a message leaf for a branch-level failure. Errors
// never propagate upward through Children; they become this node.
func NewErrorNode(err error) *Node {
	n := NewMessageNode(fmt.Sprintf("Error: %v", err))
	n.IsError = true
	return n
}

// IsContainer reports whether the node can have children.
func (n *Node) IsContainer() bool {
	switch n.Kind {
	case KindAccount, KindTenant, KindSubscription:
		return true
	case KindResource:
		return n.Resource.Kind == core.KindServer
	case KindProvider:
		return true
	default:
		return false
	}
}

// AppendChild attaches a child node. Only server resource nodes and provider
// containers carry attached children.
func (n *Node) AppendChild(child *Node) {
	n.children = append(n.children, child)
}

// ChildNodes returns the attached children.
func (n *Node) ChildNodes() []*Node {
	return n.children
}

// Snapshot returns a copy of the node with a detached child slice, so the
// caller's view is unaffected by appends that happen after the call.
func (n *Node) Snapshot() *Node {
	c := *n
	c.children = append([]*Node(nil), n.children...)
	return &c
}

// ClearCache flips the re-fetch flag. The fetch itself happens lazily on
// the next Children call, honoring pull-based tree semantics.
func (n *Node) ClearCache() {
	n.clearingCache = true
}

// IsClearingCache reports whether the next Children call will fetch fresh.
func (n *Node) IsClearingCache() bool {
	return n.clearingCache
}

// UseCachedChildren makes the next Children call serve from the cache
// store when an entry exists. A cache miss still fetches.
func (n *Node) UseCachedChildren() {
	n.clearingCache = false
}

// Label renders the node's display label. Container nodes with count
// bookkeeping carry a live "(selected / total)" suffix.
func (n *Node) Label() string {
	switch n.Kind {
	case KindAccount:
		if n.TotalCount == 0 {
			return n.Account.DisplayName
		}
		if len(n.Account.Tenants) > 1 {
			return fmt.Sprintf("%s (%d / %d tenants)", n.Account.DisplayName, n.SelectedCount, n.TotalCount)
		}
		return fmt.Sprintf("%s (%d / %d subscriptions)", n.Account.DisplayName, n.SelectedCount, n.TotalCount)
	case KindTenant:
		if n.TotalCount == 0 {
			return n.Tenant.DisplayName
		}
		return fmt.Sprintf("%s (%d / %d subscriptions)", n.Tenant.DisplayName, n.SelectedCount, n.TotalCount)
	case KindSubscription:
		return n.Subscription.Name
	case KindResource:
		return n.Resource.Name
	case KindMessage:
		return n.Message
	case KindProvider:
		return n.Provider
	default:
		return n.ID
	}
}
