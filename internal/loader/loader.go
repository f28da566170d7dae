// Package loader populates a flattened, per-provider resource view across an
// entire account without making the caller wait for the slowest tenant. It
// coalesces discovery updates onto a fixed-interval ticker so the host
// redraws at most once per tick regardless of how fast resources arrive.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudscape-labs/cloudscape/internal/dispatch"
	"github.com/cloudscape-labs/cloudscape/internal/filter"
	"github.com/cloudscape-labs/cloudscape/internal/tree"
	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

// State tracks a loader pass.
type State int

const (
	StateNotStarted State = iota
	StateLoading
	StateComplete
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateComplete:
		return "complete"
	default:
		return "not-started"
	}
}

// ErrAlreadyRunning is returned by Start while a pass is in flight. A
// loader instance never runs two overlapping passes.
var ErrAlreadyRunning = errors.New("load already in progress")

// DefaultInterval is the coalescing tick for resources-changed events.
const DefaultInterval = 500 * time.Millisecond

// User-visible messages.
const (
	msgNoResourcesFound = "no resources found"
	msgTooManyRequests  = "too many requests: narrow your subscription selection"
)

// Options carries the loader's collaborators.
type Options struct {
	Dispatch      *dispatch.Service
	Subscriptions core.SubscriptionLister
	Credentials   core.CredentialResolver
	Filters       *filter.Store
	Logger        *slog.Logger

	// Interval overrides the coalescing tick; zero means DefaultInterval.
	Interval time.Duration

	// SignInPrompt is fired on credential failures. Optional.
	SignInPrompt func(account core.Account)

	// Notify surfaces user-visible load problems (rate limiting, tenant
	// failures). Optional.
	Notify func(message string)
}

// Loader walks an account's tenants sequentially, merges discovered
// resources into one flat container per provider, and signals observers at
// most once per tick.
type Loader struct {
	dispatch      *dispatch.Service
	subscriptions core.SubscriptionLister
	credentials   core.CredentialResolver
	filters       *filter.Store
	interval      time.Duration
	logger        *slog.Logger
	signInPrompt  func(core.Account)
	notifyUser    func(string)
	changed       *tree.Notifier

	mu         sync.Mutex
	state      State
	dirty      bool
	containers map[string]*tree.Node
	order      []string
	done       chan struct{}
}

// New creates a loader in the NotStarted state. A nil logger uses
// slog.Default().
func New(opts Options) *Loader {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		dispatch:      opts.Dispatch,
		subscriptions: opts.Subscriptions,
		credentials:   opts.Credentials,
		filters:       opts.Filters,
		interval:      interval,
		logger:        logger,
		signInPrompt:  opts.SignInPrompt,
		notifyUser:    opts.Notify,
		changed:       tree.NewNotifier(),
	}
}

// State returns the current loader state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// OnResourcesChanged subscribes to coalesced resources-changed events; the
// returned function unsubscribes. Events carry no node: observers re-read
// Children.
func (l *Loader) OnResourcesChanged(cb func()) (unsubscribe func()) {
	return l.changed.OnChanged(func(*tree.Node) { cb() })
}

// Start begins one loading pass for the account and returns immediately.
// Calling Start while a pass is in flight fails with ErrAlreadyRunning; a
// completed loader may be restarted, which discards the previous results.
func (l *Loader) Start(ctx context.Context, account core.Account) error {
	l.mu.Lock()
	if l.state == StateLoading {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.state = StateLoading
	l.dirty = false
	l.containers = make(map[string]*tree.Node)
	l.order = nil
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go l.run(ctx, account, done)
	return nil
}

// Wait blocks until the in-flight pass reaches Complete. Waiting on a
// loader that was never started returns immediately.
func (l *Loader) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Children returns the aggregated top-level nodes: one container per
// provider plus any synthetic message leaves, in discovery order. Each
// call returns snapshot copies, so observers may read the result while a
// pass is still merging into the containers.
func (l *Loader) Children() []*tree.Node {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*tree.Node, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.containers[id].Snapshot())
	}
	return out
}

// run is the single loading pass: ticker up, sequential tenant walk, ticker
// down, one final flush so data landing between the last tick and
// completion is never lost.
func (l *Loader) run(ctx context.Context, account core.Account, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	stop := make(chan struct{})
	var flusher sync.WaitGroup
	flusher.Add(1)
	go func() {
		defer flusher.Done()
		for {
			select {
			case <-ticker.C:
				l.flush()
			case <-stop:
				return
			}
		}
	}()

	// Sequential on purpose: parallel tenant querying trips provider-side
	// rate limits.
	for _, tenant := range account.Tenants {
		if ctx.Err() != nil {
			break
		}
		l.loadTenant(ctx, account, tenant)
	}

	ticker.Stop()
	close(stop)
	flusher.Wait()
	l.flush()

	l.mu.Lock()
	l.state = StateComplete
	l.mu.Unlock()
}

// loadTenant discovers one tenant's resources and merges them into the
// aggregate view. Failures are reported and swallowed so the remaining
// tenants still load.
func (l *Loader) loadTenant(ctx context.Context, account core.Account, tenant core.Tenant) {
	subs, err := l.fetchSubscriptions(ctx, account, tenant.ID)
	if err != nil {
		l.reportError(account, tenant, err)
		return
	}

	selected, ok, err := l.filters.SelectedSubscriptionsForTenant(account, tenant.ID)
	if err != nil {
		l.reportError(account, tenant, err)
		return
	}
	if ok && len(selected) > 0 {
		selectedIDs := make(map[string]struct{}, len(selected))
		for _, sub := range selected {
			selectedIDs[sub.ID] = struct{}{}
		}
		var scoped []core.Subscription
		for _, sub := range subs {
			if _, keep := selectedIDs[sub.ID]; keep {
				scoped = append(scoped, sub)
			}
		}
		subs = scoped
	}

	var resources []core.Resource
	if len(subs) > 0 {
		resources, err = l.dispatch.RunTenant(ctx, account, tenant.ID, subs)
		if err != nil {
			l.reportError(account, tenant, err)
			return
		}
	}

	if len(resources) == 0 {
		l.appendLeaf("tenant_"+tenant.ID, tree.NewMessageNode(msgNoResourcesFound))
		return
	}
	l.merge(account, resources)
}

// fetchSubscriptions resolves the tenant credential and lists its
// subscriptions. An unauthenticated tenant contributes nothing.
func (l *Loader) fetchSubscriptions(ctx context.Context, account core.Account, tenantID string) ([]core.Subscription, error) {
	cred, err := l.credentials.GetToken(ctx, account, tenantID, core.ScopeResourceManagement)
	if err != nil {
		if core.IsCredentialError(err) {
			return nil, err
		}
		return nil, &core.CredentialError{TenantID: tenantID, Err: err}
	}
	subs, err := l.subscriptions.ListSubscriptions(ctx, cred, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for tenant %q: %w", tenantID, err)
	}
	return subs, nil
}

// merge groups resources by provider and appends them to the per-provider
// containers, never replacing earlier tenants' entries.
func (l *Loader) merge(account core.Account, resources []core.Resource) {
	nodes := tree.BuildResourceNodes(account, resources)
	if len(nodes) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, n := range nodes {
		id := n.Resource.Provider
		container := l.containers[id]
		if container == nil {
			container = tree.NewProviderNode(id)
			l.containers[id] = container
			l.order = append(l.order, id)
		}
		container.AppendChild(n)
	}
	l.dirty = true
}

// appendLeaf inserts a synthetic leaf directly into the aggregate view.
func (l *Loader) appendLeaf(key string, node *tree.Node) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.containers[key]; !exists {
		l.order = append(l.order, key)
	}
	l.containers[key] = node
	l.dirty = true
}

// flush emits at most one coalesced resources-changed event per call.
func (l *Loader) flush() {
	l.mu.Lock()
	fire := l.dirty
	l.dirty = false
	l.mu.Unlock()

	if fire {
		l.changed.Notify(nil)
	}
}

// reportError maps a tenant failure onto its side effect: credential
// errors fire the sign-in prompt, rate limiting becomes an actionable
// message, anything else surfaces verbatim. The walk continues either way.
func (l *Loader) reportError(account core.Account, tenant core.Tenant, err error) {
	l.logger.Warn("tenant load failed", "tenant", tenant.ID, "error", err)

	var ce *core.CredentialError
	if errors.As(err, &ce) {
		if l.signInPrompt != nil {
			l.signInPrompt(account)
		}
		return
	}
	if l.notifyUser == nil {
		return
	}
	if core.IsRateLimited(err) {
		l.notifyUser(msgTooManyRequests)
		return
	}
	l.notifyUser(fmt.Sprintf("Error loading resources for tenant %s: %v", tenant.DisplayName, err))
}
