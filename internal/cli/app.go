package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cloudscape-labs/cloudscape/internal/azure"
	"github.com/cloudscape-labs/cloudscape/internal/cache"
	"github.com/cloudscape-labs/cloudscape/internal/config"
	"github.com/cloudscape-labs/cloudscape/internal/dispatch"
	"github.com/cloudscape-labs/cloudscape/internal/filter"
	"github.com/cloudscape-labs/cloudscape/internal/loader"
	"github.com/cloudscape-labs/cloudscape/internal/registry"
	"github.com/cloudscape-labs/cloudscape/internal/tree"
	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

// App wires the discovery engine for one command invocation.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Cache    cache.Store
	Filters  *filter.Store
	Registry *registry.Registry
	Dispatch *dispatch.Service
	Tree     *tree.Tree
	Loader   *loader.Loader
	Account  core.Account
}

// newApp builds the engine from the command's configuration. The returned
// cleanup closes the cache store.
func newApp(cmd *cobra.Command) (*App, func(), error) {
	cfg := GetConfig(cmd.Context())
	logger := GetLogger(cmd.Context())

	store, cleanup, err := openCache(cfg)
	if err != nil {
		return nil, nil, err
	}

	reg := registry.New()
	if err := registerProviders(reg, cfg.Providers); err != nil {
		cleanup()
		return nil, nil, err
	}

	filters := filter.NewStore(store)
	account := cfg.AccountValue()
	if err := seedFilters(filters, account, cfg.Filters); err != nil {
		cleanup()
		return nil, nil, err
	}

	resolver := azure.NewCLICredentialResolver()
	transport := azure.NewGraphTransport()
	subscriptions := azure.NewSubscriptionClient()
	svc := dispatch.New(reg, transport, resolver, logger)

	signIn := func(a core.Account) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Sign-in required for account %s. Run `az login` and retry.\n", a.DisplayName)
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Cache:    store,
		Filters:  filters,
		Registry: reg,
		Dispatch: svc,
		Account:  account,
		Tree: tree.New(tree.Options{
			Cache:         store,
			Filters:       filters,
			Subscriptions: subscriptions,
			Credentials:   resolver,
			Dispatch:      svc,
			Registry:      reg,
			Logger:        logger,
			SignInPrompt:  signIn,
		}),
		Loader: loader.New(loader.Options{
			Dispatch:      svc,
			Subscriptions: subscriptions,
			Credentials:   resolver,
			Filters:       filters,
			Logger:        logger,
			Interval:      cfg.CoalesceInterval,
			SignInPrompt:  signIn,
			Notify: func(msg string) {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			},
		}),
	}
	return app, cleanup, nil
}

func openCache(cfg *config.Config) (cache.Store, func(), error) {
	if cfg.CachePath == ":memory:" {
		return cache.NewMemoryStore(), func() {}, nil
	}

	dir := filepath.Dir(cfg.CachePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	store := cache.NewSQLiteStore()
	if err := store.Open(cfg.CachePath); err != nil {
		return nil, nil, fmt.Errorf("open cache database: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// registerProviders installs the built-in descriptors, restricted to the
// configured subset when one is given.
func registerProviders(reg *registry.Registry, enabled []string) error {
	if len(enabled) == 0 {
		return azure.RegisterBuiltins(reg)
	}

	wanted := make(map[string]struct{}, len(enabled))
	for _, id := range enabled {
		wanted[id] = struct{}{}
	}
	for _, d := range azure.BuiltinProviders() {
		if _, ok := wanted[d.ProviderID]; !ok {
			continue
		}
		if err := reg.Register(d); err != nil {
			return err
		}
		delete(wanted, d.ProviderID)
	}
	for id := range wanted {
		return fmt.Errorf("unknown provider %q in configuration", id)
	}
	return nil
}

// seedFilters writes the configured selection into the filter store. IDs
// from configuration carry no tenant; with a single-tenant account they are
// stamped so per-tenant narrowing applies.
func seedFilters(filters *filter.Store, account core.Account, seeds config.FiltersConfig) error {
	if len(seeds.Subscriptions) > 0 {
		subs := make([]core.Subscription, 0, len(seeds.Subscriptions))
		for _, id := range seeds.Subscriptions {
			sub := core.Subscription{ID: id}
			if len(account.Tenants) == 1 {
				sub.TenantID = account.Tenants[0].ID
			}
			subs = append(subs, sub)
		}
		if err := filters.SaveSelectedSubscriptions(account, subs); err != nil {
			return err
		}
	}
	if len(seeds.Tenants) > 0 {
		tenants := make([]core.Tenant, 0, len(seeds.Tenants))
		for _, id := range seeds.Tenants {
			tenants = append(tenants, core.Tenant{ID: id})
		}
		if err := filters.SaveSelectedTenants(account, tenants); err != nil {
			return err
		}
	}
	return nil
}
