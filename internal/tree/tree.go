package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/cloudscape-labs/cloudscape/internal/cache"
	"github.com/cloudscape-labs/cloudscape/internal/dispatch"
	"github.com/cloudscape-labs/cloudscape/internal/filter"
	"github.com/cloudscape-labs/cloudscape/internal/registry"
	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

// Synthetic leaf messages.
const (
	msgNoSubscriptions = "No Subscriptions found."
	msgNoResources     = "No Resources found."
	msgNoTenants       = "No Tenants found."
)

// DisplayFactory produces the host-facing item for a resource. The engine
// decides which provider's factory to call; the host owns the visuals.
type DisplayFactory func(res core.Resource, account core.Account) core.DisplayItem

// Options carries the collaborators a Tree needs. Explicit injection, no
// global service pool: tests construct a fresh Tree per case.
type Options struct {
	Cache         cache.Store
	Filters       *filter.Store
	Subscriptions core.SubscriptionLister
	Credentials   core.CredentialResolver
	Dispatch      *dispatch.Service
	Registry      *registry.Registry
	Logger        *slog.Logger

	// SignInPrompt is fired when a branch fails with a credential error.
	// Optional.
	SignInPrompt func(account core.Account)
}

// Tree drives child fetching, caching and change notification for the
// resource node hierarchy.
type Tree struct {
	cache         cache.Store
	filters       *filter.Store
	subscriptions core.SubscriptionLister
	credentials   core.CredentialResolver
	dispatch      *dispatch.Service
	registry      *registry.Registry
	notifier      *Notifier
	signInPrompt  func(core.Account)
	logger        *slog.Logger

	factoryMu sync.RWMutex
	factories map[string]DisplayFactory
}

// New creates a Tree from its collaborators. A nil logger uses
// slog.Default().
func New(opts Options) *Tree {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree{
		cache:         opts.Cache,
		filters:       opts.Filters,
		subscriptions: opts.Subscriptions,
		credentials:   opts.Credentials,
		dispatch:      opts.Dispatch,
		registry:      opts.Registry,
		notifier:      NewNotifier(),
		signInPrompt:  opts.SignInPrompt,
		logger:        logger,
		factories:     make(map[string]DisplayFactory),
	}
}

// OnChanged subscribes to node-changed events; the returned function
// unsubscribes.
func (t *Tree) OnChanged(cb func(*Node)) (unsubscribe func()) {
	return t.notifier.OnChanged(cb)
}

// ProviderIDs returns the registered resource provider ids.
func (t *Tree) ProviderIDs() []string {
	return t.registry.List()
}

// ProviderForNodeID maps a rendered node id back to its owning provider.
func (t *Tree) ProviderForNodeID(nodeID string) (string, error) {
	return t.registry.ProviderForNodeID(nodeID)
}

// RegisterDisplayFactory installs the host's display-item factory for one
// provider's resources.
func (t *Tree) RegisterDisplayFactory(providerID string, f DisplayFactory) {
	t.factoryMu.Lock()
	defer t.factoryMu.Unlock()
	t.factories[providerID] = f
}

// Children returns a container node's children, fetching on the first call
// (or after ClearCache) and serving from the cache store otherwise. Errors
// never propagate: a failed branch renders as a single error message leaf,
// and credential failures additionally fire the sign-in prompt.
func (t *Tree) Children(ctx context.Context, node *Node) []*Node {
	switch node.Kind {
	case KindAccount:
		return t.accountChildren(ctx, node)
	case KindTenant:
		return t.loadSubscriptionNodes(ctx, node, node.Tenant.ID)
	case KindSubscription:
		return t.subscriptionChildren(ctx, node)
	case KindResource, KindProvider:
		return node.children
	default:
		return nil
	}
}

// accountChildren lists tenant nodes for multi-tenant accounts, honoring
// the tenant selection filter. Single-tenant accounts skip the tenant
// level and list their subscriptions directly.
func (t *Tree) accountChildren(ctx context.Context, node *Node) []*Node {
	account := node.Account

	if len(account.Tenants) <= 1 {
		if len(account.Tenants) == 0 {
			return []*Node{NewMessageNode(msgNoTenants)}
		}
		return t.loadSubscriptionNodes(ctx, node, account.Tenants[0].ID)
	}

	selected, ok, err := t.filters.SelectedTenants(account)
	if err != nil {
		return []*Node{NewErrorNode(err)}
	}

	shown := account.Tenants
	if ok && len(selected) > 0 {
		selectedIDs := make(map[string]struct{}, len(selected))
		for _, tenant := range selected {
			selectedIDs[tenant.ID] = struct{}{}
		}
		shown = nil
		for _, tenant := range account.Tenants {
			if _, keep := selectedIDs[tenant.ID]; keep {
				shown = append(shown, tenant)
			}
		}
	}

	node.SelectedCount = len(shown)
	node.TotalCount = len(account.Tenants)
	node.clearingCache = false
	t.refreshLabel(node)

	children := make([]*Node, 0, len(shown))
	for _, tenant := range shown {
		children = append(children, newTenantNode(node, tenant))
	}
	if len(children) == 0 {
		return []*Node{NewMessageNode(msgNoTenants)}
	}
	sortNodes(children)
	return children
}

// loadSubscriptionNodes performs the scoped subscription fetch for an
// account or tenant container, caching the full list under the node's
// cache key and intersecting it with the selection filter for display.
func (t *Tree) loadSubscriptionNodes(ctx context.Context, node *Node, tenantID string) []*Node {
	cacheKey := cache.GenerateKey(node.ID + ".subscriptions")

	var subs []core.Subscription
	fetch := node.IsClearingCache()
	if !fetch {
		found, err := cache.GetJSON(t.cache, cacheKey, &subs)
		if err != nil {
			return t.branchError(node, err)
		}
		// A missing entry means this branch was never loaded; fetch it.
		fetch = !found
	}
	if fetch {
		fetched, err := t.fetchSubscriptions(ctx, node.Account, tenantID)
		if err != nil {
			return t.branchError(node, err)
		}
		if err := cache.SetJSON(t.cache, cacheKey, fetched); err != nil {
			return t.branchError(node, err)
		}
		// The fetch succeeded; subsequent calls are served from cache.
		node.clearingCache = false
		subs = fetched
	}

	selected, ok, err := t.filters.SelectedSubscriptionsForTenant(node.Account, tenantID)
	if err != nil {
		return t.branchError(node, err)
	}

	shown := subs
	if ok && len(selected) > 0 {
		selectedIDs := make(map[string]struct{}, len(selected))
		for _, sub := range selected {
			selectedIDs[sub.ID] = struct{}{}
		}
		shown = nil
		for _, sub := range subs {
			if _, keep := selectedIDs[sub.ID]; keep {
				shown = append(shown, sub)
			}
		}
	}

	node.TotalCount = len(subs)
	node.SelectedCount = len(shown)
	t.refreshLabel(node)

	if len(shown) == 0 {
		return []*Node{NewMessageNode(msgNoSubscriptions)}
	}

	children := make([]*Node, 0, len(shown))
	for _, sub := range shown {
		children = append(children, newSubscriptionNode(node, sub))
	}
	sortNodes(children)
	return children
}

// subscriptionChildren fetches (or serves from cache) the resources of one
// subscription and groups databases under their servers.
func (t *Tree) subscriptionChildren(ctx context.Context, node *Node) []*Node {
	cacheKey := cache.GenerateKey(node.ID + ".dataresources")

	var resources []core.Resource
	fetch := node.IsClearingCache()
	if !fetch {
		found, err := cache.GetJSON(t.cache, cacheKey, &resources)
		if err != nil {
			return t.branchError(node, err)
		}
		fetch = !found
	}
	if fetch {
		fetched, err := t.dispatch.RunTenant(ctx, node.Account, node.Subscription.TenantID, []core.Subscription{node.Subscription})
		if err != nil {
			return t.branchError(node, err)
		}
		if err := cache.SetJSON(t.cache, cacheKey, fetched); err != nil {
			return t.branchError(node, err)
		}
		node.clearingCache = false
		resources = fetched
	}

	children := BuildResourceNodes(node.Account, resources)
	if len(children) == 0 {
		return []*Node{NewMessageNode(msgNoResources)}
	}
	return children
}

// BuildResourceNodes turns a flat resource list into server nodes with
// their databases attached, sorted at every level. The incremental loader
// shares this grouping for its flat per-provider view.
func BuildResourceNodes(account core.Account, resources []core.Resource) []*Node {
	type serverKey struct {
		name           string
		subscriptionID string
	}

	var nodes []*Node
	servers := make(map[serverKey]*Node)

	for _, res := range resources {
		if res.Kind != core.KindServer {
			continue
		}
		n := newResourceNode(account, res)
		servers[serverKey{res.Name, res.Subscription.ID}] = n
		nodes = append(nodes, n)
	}
	for _, res := range resources {
		if res.Kind != core.KindDatabase {
			continue
		}
		parent, ok := servers[serverKey{res.ServerName, res.Subscription.ID}]
		if !ok {
			// Dispatch already dropped orphans; a miss here means the cache
			// holds a database whose server was filtered out. Skip it.
			continue
		}
		parent.children = append(parent.children, newResourceNode(account, res))
	}

	for _, n := range nodes {
		sortNodes(n.children)
	}
	sortNodes(nodes)
	return nodes
}

// fetchSubscriptions resolves the tenant credential and lists the tenant's
// subscriptions. Subscriptions the caller cannot authenticate for are not
// listed: a failed tenant credential surfaces as a sign-in branch rather
// than silently passing every subscription through.
func (t *Tree) fetchSubscriptions(ctx context.Context, account core.Account, tenantID string) ([]core.Subscription, error) {
	cred, err := t.credentials.GetToken(ctx, account, tenantID, core.ScopeResourceManagement)
	if err != nil {
		if core.IsCredentialError(err) {
			return nil, err
		}
		return nil, &core.CredentialError{TenantID: tenantID, Err: err}
	}
	subs, err := t.subscriptions.ListSubscriptions(ctx, cred, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for tenant %q: %w", tenantID, err)
	}
	return subs, nil
}

// AllSubscriptions lists every tenant's subscriptions concurrently.
// Subscription enumeration is cheap and not rate limited the way graph
// queries are, so tenants are fanned out instead of walked sequentially.
// The first tenant failure cancels the rest.
func (t *Tree) AllSubscriptions(ctx context.Context, account core.Account) ([]core.Subscription, error) {
	g, ctx := errgroup.WithContext(ctx)

	results := make([][]core.Subscription, len(account.Tenants))
	for i, tenant := range account.Tenants {
		g.Go(func() error {
			subs, err := t.fetchSubscriptions(ctx, account, tenant.ID)
			if err != nil {
				return err
			}
			results[i] = subs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []core.Subscription
	for _, subs := range results {
		all = append(all, subs...)
	}
	return all, nil
}

// branchError converts a branch failure into its single error leaf and
// fires the sign-in prompt for credential errors. It does not touch the
// clearing flag: a failed fetch stays due for retry on the next call.
func (t *Tree) branchError(node *Node, err error) []*Node {
	t.logger.Warn("tree branch failed", "node", node.ID, "error", err)

	var ce *core.CredentialError
	if errors.As(err, &ce) && t.signInPrompt != nil {
		t.signInPrompt(node.Account)
	}
	return []*Node{NewErrorNode(err)}
}

// refreshLabel notifies the host about the node only when its rendered
// label actually changed, avoiding redundant redraw signaling.
func (t *Tree) refreshLabel(node *Node) {
	label := node.Label()
	if label == node.lastLabel {
		return
	}
	node.lastLabel = label
	t.notifier.Notify(node)
}

// TreeItem renders the host-facing display item for a node, delegating
// resource items to the owning provider's registered factory when one
// exists.
func (t *Tree) TreeItem(node *Node) core.DisplayItem {
	if node.Kind == KindResource {
		t.factoryMu.RLock()
		factory, ok := t.factories[node.Resource.Provider]
		t.factoryMu.RUnlock()
		if ok {
			item := factory(node.Resource, node.Account)
			if item.ID == "" {
				item.ID = node.ID
			}
			return item
		}
	}

	return core.DisplayItem{
		ID:           node.ID,
		Label:        node.Label(),
		Icon:         node.Kind.String(),
		ContextValue: node.Kind.String(),
		Collapsible:  node.IsContainer(),
	}
}

// RootChildren returns one provider's server nodes within a subscription,
// the per-provider entry point the host uses outside the account tree.
func (t *Tree) RootChildren(ctx context.Context, providerID string, account core.Account, sub core.Subscription) ([]*Node, error) {
	if _, err := t.registry.Get(providerID); err != nil {
		return nil, err
	}

	resources, err := t.dispatch.RunTenant(ctx, account, sub.TenantID, []core.Subscription{sub})
	if err != nil {
		return nil, err
	}

	var scoped []core.Resource
	for _, res := range resources {
		if res.Provider == providerID || res.Kind == core.KindDatabase {
			scoped = append(scoped, res)
		}
	}

	nodes := BuildResourceNodes(account, scoped)
	out := nodes[:0]
	for _, n := range nodes {
		if n.Resource.Provider == providerID {
			out = append(out, n)
		}
	}
	return out, nil
}

// sortNodes orders nodes by display label using a locale-aware,
// case-insensitive comparison, keeping UI ordering stable regardless of
// the arrival order of asynchronous sub-fetches.
func sortNodes(nodes []*Node) {
	if len(nodes) < 2 {
		return
	}
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(nodes, func(i, j int) bool {
		return c.CompareString(nodes[i].Label(), nodes[j].Label()) < 0
	})
}
