package loader

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudscape-labs/cloudscape/internal/cache"
	"github.com/cloudscape-labs/cloudscape/internal/dispatch"
	"github.com/cloudscape-labs/cloudscape/internal/filter"
	"github.com/cloudscape-labs/cloudscape/internal/registry"
	"github.com/cloudscape-labs/cloudscape/internal/testutil"
	"github.com/cloudscape-labs/cloudscape/internal/tree"
	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

var (
	tenantOne = core.Tenant{ID: "tenant-1", DisplayName: "Tenant One"}
	tenantTwo = core.Tenant{ID: "tenant-2", DisplayName: "Tenant Two"}

	account = core.Account{
		Key:         "acct-1",
		DisplayName: "mock_account@test.com",
		Tenants:     []core.Tenant{tenantOne, tenantTwo},
	}

	subOne = core.Subscription{ID: "sub-1", Name: "subscription one", TenantID: "tenant-1"}
	subTwo = core.Subscription{ID: "sub-2", Name: "subscription two", TenantID: "tenant-2"}
)

func serverRow(sub, name string) core.RawGraphRow {
	return core.RawGraphRow{
		ID:             fmt.Sprintf("/subscriptions/%s/resourceGroups/rg/providers/Microsoft.Sql/servers/%s", sub, name),
		Name:           name,
		Type:           "microsoft.sql/servers",
		SubscriptionID: sub,
	}
}

type fakeResolver struct {
	mu          sync.Mutex
	failTenants map[string]error
	calls       int
}

func (f *fakeResolver) GetToken(_ context.Context, _ core.Account, tenantID string, _ core.TokenScope) (core.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.failTenants[tenantID]; err != nil {
		return core.Credential{}, err
	}
	return core.Credential{Token: "token-" + tenantID, TokenType: "Bearer"}, nil
}

type fakeLister struct {
	subs map[string][]core.Subscription
}

func (f *fakeLister) ListSubscriptions(_ context.Context, _ core.Credential, tenantID string) ([]core.Subscription, error) {
	return f.subs[tenantID], nil
}

type fakeTransport struct {
	mu        sync.Mutex
	rowsBySub map[string][]core.RawGraphRow
	errBySub  map[string]error
	calls     [][]string
	block     chan struct{}

	// gateSub holds the call for one subscription until gate is closed,
	// closing gateEntered on arrival.
	gateSub     string
	gate        chan struct{}
	gateEntered chan struct{}
	gateOnce    sync.Once
}

func (f *fakeTransport) Execute(_ context.Context, _ core.Credential, subscriptionIDs []string, _ string) ([]core.RawGraphRow, error) {
	if f.block != nil {
		<-f.block
	}
	if f.gateSub != "" && slices.Contains(subscriptionIDs, f.gateSub) {
		f.gateOnce.Do(func() { close(f.gateEntered) })
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]string(nil), subscriptionIDs...))
	var rows []core.RawGraphRow
	for _, id := range subscriptionIDs {
		if err := f.errBySub[id]; err != nil {
			return nil, err
		}
		rows = append(rows, f.rowsBySub[id]...)
	}
	return rows, nil
}

type fixture struct {
	loader    *Loader
	transport *fakeTransport
	resolver  *fakeResolver
	lister    *fakeLister
	filters   *filter.Store

	mu       sync.Mutex
	events   int
	prompts  int
	messages []string
}

func newFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()

	f := &fixture{
		transport: &fakeTransport{
			rowsBySub: map[string][]core.RawGraphRow{
				"sub-1": {serverRow("sub-1", "alpha")},
				"sub-2": {serverRow("sub-2", "beta")},
			},
			errBySub: map[string]error{},
		},
		resolver: &fakeResolver{failTenants: map[string]error{}},
		lister: &fakeLister{subs: map[string][]core.Subscription{
			"tenant-1": {subOne},
			"tenant-2": {subTwo},
		}},
		filters: filter.NewStore(cache.NewMemoryStore()),
	}

	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Descriptor{
		ProviderID:  "sqlServer",
		QueryFilter: `type == "microsoft.sql/servers"`,
		Matches:     []registry.TypeKindMatch{{ResourceType: "microsoft.sql/servers", Category: registry.CategoryServer}},
		ConvertServer: func(row core.RawGraphRow) (*core.Resource, bool) {
			return &core.Resource{ID: row.ID, Name: row.Name, Kind: core.KindServer, Provider: "sqlServer"}, true
		},
	}))

	logger := testutil.NewTestLogger(t)
	f.loader = New(Options{
		Dispatch:      dispatch.New(reg, f.transport, f.resolver, logger),
		Subscriptions: f.lister,
		Credentials:   f.resolver,
		Filters:       f.filters,
		Logger:        logger,
		Interval:      interval,
		SignInPrompt: func(core.Account) {
			f.mu.Lock()
			f.prompts++
			f.mu.Unlock()
		},
		Notify: func(msg string) {
			f.mu.Lock()
			f.messages = append(f.messages, msg)
			f.mu.Unlock()
		},
	})
	f.loader.OnResourcesChanged(func() {
		f.mu.Lock()
		f.events++
		f.mu.Unlock()
	})
	return f
}

func (f *fixture) snapshot() (events, prompts int, messages []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events, f.prompts, append([]string(nil), f.messages...)
}

func TestLoader_AggregatesAcrossTenants(t *testing.T) {
	f := newFixture(t, time.Millisecond)

	require.NoError(t, f.loader.Start(context.Background(), account))
	f.loader.Wait()

	assert.Equal(t, StateComplete, f.loader.State())

	children := f.loader.Children()
	require.Len(t, children, 1, "both tenants feed the same provider container")
	container := children[0]
	assert.Equal(t, tree.KindProvider, container.Kind)
	assert.Equal(t, "sqlServer", container.Label())

	names := make([]string, 0, 2)
	for _, n := range container.ChildNodes() {
		names = append(names, n.Resource.Name)
	}
	assert.Equal(t, []string{"alpha", "beta"}, names, "append-only merge keeps discovery order")

	events, _, _ := f.snapshot()
	assert.GreaterOrEqual(t, events, 1, "at least one coalesced event fires")
}

func TestLoader_StartWhileLoadingFails(t *testing.T) {
	f := newFixture(t, time.Millisecond)
	f.transport.block = make(chan struct{})

	require.NoError(t, f.loader.Start(context.Background(), account))
	assert.Equal(t, StateLoading, f.loader.State())
	assert.ErrorIs(t, f.loader.Start(context.Background(), account), ErrAlreadyRunning)

	close(f.transport.block)
	f.loader.Wait()
	assert.Equal(t, StateComplete, f.loader.State())

	// Completed loaders may be restarted.
	f.transport.block = nil
	require.NoError(t, f.loader.Start(context.Background(), account))
	f.loader.Wait()
}

func TestLoader_FinalFlushNotifies(t *testing.T) {
	// An interval far longer than the pass: no tick ever fires, so the one
	// event observed must come from the completion flush.
	f := newFixture(t, time.Minute)

	require.NoError(t, f.loader.Start(context.Background(), account))
	f.loader.Wait()

	events, _, _ := f.snapshot()
	assert.Equal(t, 1, events)
}

func TestLoader_EmptyTenantGetsMessageLeaf(t *testing.T) {
	f := newFixture(t, time.Millisecond)
	f.transport.rowsBySub["sub-2"] = nil

	require.NoError(t, f.loader.Start(context.Background(), account))
	f.loader.Wait()

	children := f.loader.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "sqlServer", children[0].Label())
	assert.Equal(t, tree.KindMessage, children[1].Kind)
	assert.Equal(t, "no resources found", children[1].Label())
}

func TestLoader_TenantWithoutSubscriptionsGetsMessageLeaf(t *testing.T) {
	f := newFixture(t, time.Millisecond)
	f.lister.subs["tenant-2"] = nil

	require.NoError(t, f.loader.Start(context.Background(), account))
	f.loader.Wait()

	children := f.loader.Children()
	require.Len(t, children, 2)
	assert.Equal(t, tree.KindMessage, children[1].Kind)
	assert.Equal(t, "no resources found", children[1].Label())
}

func TestLoader_RateLimitNotifiesAndContinues(t *testing.T) {
	f := newFixture(t, time.Millisecond)
	f.transport.errBySub["sub-1"] = &core.QueryExecutionError{StatusCode: 429, Err: fmt.Errorf("throttled")}

	require.NoError(t, f.loader.Start(context.Background(), account))
	f.loader.Wait()

	assert.Equal(t, StateComplete, f.loader.State())

	_, _, messages := f.snapshot()
	require.Len(t, messages, 1)
	assert.Equal(t, "too many requests: narrow your subscription selection", messages[0])

	// The second tenant still loaded.
	children := f.loader.Children()
	require.Len(t, children, 1)
	require.Len(t, children[0].ChildNodes(), 1)
	assert.Equal(t, "beta", children[0].ChildNodes()[0].Resource.Name)
}

func TestLoader_CredentialErrorPromptsSignInAndContinues(t *testing.T) {
	f := newFixture(t, time.Millisecond)
	f.resolver.failTenants["tenant-1"] = fmt.Errorf("interaction required")

	require.NoError(t, f.loader.Start(context.Background(), account))
	f.loader.Wait()

	_, prompts, messages := f.snapshot()
	assert.Equal(t, 1, prompts)
	assert.Empty(t, messages, "credential failures prompt, they do not toast")

	children := f.loader.Children()
	require.Len(t, children, 1)
	require.Len(t, children[0].ChildNodes(), 1)
	assert.Equal(t, "beta", children[0].ChildNodes()[0].Resource.Name)
}

func TestLoader_HonorsSubscriptionFilter(t *testing.T) {
	f := newFixture(t, time.Millisecond)
	f.lister.subs["tenant-1"] = []core.Subscription{
		subOne,
		{ID: "sub-extra", Name: "extra", TenantID: "tenant-1"},
	}
	require.NoError(t, f.filters.SaveSelectedSubscriptions(account, []core.Subscription{subOne, subTwo}))

	require.NoError(t, f.loader.Start(context.Background(), account))
	f.loader.Wait()

	f.transport.mu.Lock()
	calls := f.transport.calls
	f.transport.mu.Unlock()

	require.Len(t, calls, 2)
	assert.Equal(t, []string{"sub-1"}, calls[0], "unselected subscriptions never reach the transport")
	assert.Equal(t, []string{"sub-2"}, calls[1])
}

func TestLoader_RestartDiscardsPreviousResults(t *testing.T) {
	f := newFixture(t, time.Millisecond)

	require.NoError(t, f.loader.Start(context.Background(), account))
	f.loader.Wait()
	require.Len(t, f.loader.Children()[0].ChildNodes(), 2)

	f.transport.mu.Lock()
	f.transport.rowsBySub["sub-2"] = nil
	f.transport.mu.Unlock()

	require.NoError(t, f.loader.Start(context.Background(), account))
	f.loader.Wait()

	children := f.loader.Children()
	require.Len(t, children, 2)
	assert.Len(t, children[0].ChildNodes(), 1, "restart starts from an empty aggregate")
}

func TestLoader_ChildrenStableAfterComplete(t *testing.T) {
	f := newFixture(t, time.Millisecond)

	require.NoError(t, f.loader.Start(context.Background(), account))
	f.loader.Wait()

	first := f.loader.Children()
	second := f.loader.Children()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Len(t, second[i].ChildNodes(), len(first[i].ChildNodes()))
	}

	f.transport.mu.Lock()
	calls := len(f.transport.calls)
	f.transport.mu.Unlock()
	assert.Equal(t, 2, calls, "reading children never refetches")
}

func TestLoader_ChildrenSnapshotsSafeDuringMerge(t *testing.T) {
	f := newFixture(t, time.Millisecond)
	f.transport.gateSub = "sub-2"
	f.transport.gate = make(chan struct{})
	f.transport.gateEntered = make(chan struct{})

	require.NoError(t, f.loader.Start(context.Background(), account))
	<-f.transport.gateEntered

	// Tenant one has merged; tenant two is held at the transport.
	snap := f.loader.Children()
	require.Len(t, snap, 1)
	require.Len(t, snap[0].ChildNodes(), 1)

	// Keep reading the snapshot while the second tenant merges, the way an
	// observer reacting to a resources-changed event does.
	var reader sync.WaitGroup
	reader.Add(1)
	go func() {
		defer reader.Done()
		for i := 0; i < 200; i++ {
			for _, n := range snap[0].ChildNodes() {
				_ = n.Resource.Name
			}
		}
	}()

	close(f.transport.gate)
	f.loader.Wait()
	reader.Wait()

	assert.Len(t, snap[0].ChildNodes(), 1, "a snapshot taken mid-pass never grows")
	children := f.loader.Children()
	require.Len(t, children, 1)
	assert.Len(t, children[0].ChildNodes(), 2)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "not-started", StateNotStarted.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "complete", StateComplete.String())
}
