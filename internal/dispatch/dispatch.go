// Package dispatch implements the universal resource dispatch service. It
// composes every registered provider's query filter into one aggregate
// graph query, executes it once per tenant credential, and routes each
// returned row to the owning provider's converter.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/cloudscape-labs/cloudscape/internal/registry"
	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

// queryTable is the graph table every provider filter applies to.
const queryTable = "Resources"

// systemDatabaseSuffix marks internal engine databases that are never
// surfaced, regardless of server match success.
const systemDatabaseSuffix = "system"

// Service executes aggregate queries and fans rows out to converters.
type Service struct {
	registry  *registry.Registry
	transport core.QueryTransport
	resolver  core.CredentialResolver
	logger    *slog.Logger

	// Aggregate query string cache, invalidated by registry generation.
	mu         sync.Mutex
	cachedGen  uint64
	cachedText string
}

// New creates a dispatch service. A nil logger uses slog.Default().
func New(reg *registry.Registry, transport core.QueryTransport, resolver core.CredentialResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:  reg,
		transport: transport,
		resolver:  resolver,
		logger:    logger,
	}
}

// Query returns the aggregate query string: the boolean OR of every
// registered provider's filter in registration order, with no trailing
// operator artifacts. The string is computed once and cached until the
// registry changes.
func (s *Service) Query() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.registry.Generation()
	if s.cachedText != "" && gen == s.cachedGen {
		return s.cachedText, nil
	}

	ids := s.registry.List()
	if len(ids) == 0 {
		return "", &core.UnregisteredProviderError{}
	}

	filters := make([]string, 0, len(ids))
	for _, id := range ids {
		d, err := s.registry.Get(id)
		if err != nil {
			return "", err
		}
		filters = append(filters, fmt.Sprintf("(%s)", d.QueryFilter))
	}

	s.cachedText = fmt.Sprintf("%s | where %s", queryTable, strings.Join(filters, " or "))
	s.cachedGen = gen
	return s.cachedText, nil
}

// Run executes the aggregate query once for the given credential and
// subscriptions and converts the result rows. Row-level problems
// (unrecognized types, orphaned databases, converter rejections) are logged
// and skipped; only transport-level failures are returned.
func (s *Service) Run(ctx context.Context, cred core.Credential, subscriptions []core.Subscription) ([]core.Resource, error) {
	query, err := s.Query()
	if err != nil {
		return nil, err
	}

	subscriptionIDs := make([]string, 0, len(subscriptions))
	bySubscription := make(map[string]core.Subscription, len(subscriptions))
	for _, sub := range subscriptions {
		subscriptionIDs = append(subscriptionIDs, sub.ID)
		bySubscription[sub.ID] = sub
	}

	rows, err := s.transport.Execute(ctx, cred, subscriptionIDs, query)
	if err != nil {
		return nil, err
	}

	return s.convert(rows, bySubscription), nil
}

// convert routes deduplicated rows to the registered converters. Servers
// are converted first so database rows can locate their owning server
// within the same batch.
func (s *Service) convert(rows []core.RawGraphRow, bySubscription map[string]core.Subscription) []core.Resource {
	// A row can match more than one provider's filter, and pagination can
	// repeat rows across pages. Exactly one resource per unique id.
	unique := make([]core.RawGraphRow, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}
		unique = append(unique, row)
	}

	type databaseRow struct {
		row        core.RawGraphRow
		providerID string
	}

	var resources []core.Resource
	var databases []databaseRow

	// Server rows from this batch, for database-to-server matching.
	serverRows := make(map[string]map[string]core.RawGraphRow)

	for _, row := range unique {
		providerID, category, err := s.registry.ResolveTypeKind(row.Type, row.Kind)
		if err != nil {
			s.logger.Warn("dropping row with unrecognized resource type",
				"id", row.ID, "type", row.Type, "kind", row.Kind)
			continue
		}

		switch category {
		case registry.CategoryServer:
			byName := serverRows[row.SubscriptionID]
			if byName == nil {
				byName = make(map[string]core.RawGraphRow)
				serverRows[row.SubscriptionID] = byName
			}
			byName[row.Name] = row

			d, err := s.registry.Get(providerID)
			if err != nil || d.ConvertServer == nil {
				s.logger.Warn("no server converter for provider", "provider", providerID, "id", row.ID)
				continue
			}
			converted, ok := d.ConvertServer(row)
			if !ok || converted == nil {
				s.logger.Debug("server converter rejected row", "provider", providerID, "id", row.ID)
				continue
			}
			s.fillScope(converted, row, bySubscription)
			resources = append(resources, *converted)

		case registry.CategoryDatabase:
			databases = append(databases, databaseRow{row: row, providerID: providerID})
		}
	}

	for _, db := range databases {
		row := db.row
		if strings.HasSuffix(strings.ToLower(row.Kind), systemDatabaseSuffix) {
			continue
		}

		serverName := ServerNameFromResourceID(row.ID)
		if serverName == "" {
			s.logger.Debug("database row has no parseable server segment", "id", row.ID)
			continue
		}
		serverRow, ok := serverRows[row.SubscriptionID][serverName]
		if !ok {
			// Never surface an orphaned database.
			s.logger.Debug("dropping database without a matching server in batch",
				"id", row.ID, "server", serverName)
			continue
		}

		d, err := s.registry.Get(db.providerID)
		if err != nil || d.ConvertDatabase == nil {
			s.logger.Warn("no database converter for provider", "provider", db.providerID, "id", row.ID)
			continue
		}
		converted, ok := d.ConvertDatabase(row, serverRow)
		if !ok || converted == nil {
			s.logger.Debug("database converter rejected row", "provider", db.providerID, "id", row.ID)
			continue
		}
		s.fillScope(converted, row, bySubscription)
		resources = append(resources, *converted)
	}

	return resources
}

// fillScope stamps the subscription/tenant scope onto a converted resource
// so every resource reaching the tree can be traced back to its origin.
func (s *Service) fillScope(res *core.Resource, row core.RawGraphRow, bySubscription map[string]core.Subscription) {
	if res.Subscription.ID == "" {
		if sub, ok := bySubscription[row.SubscriptionID]; ok {
			res.Subscription = sub
		} else {
			res.Subscription = core.Subscription{ID: row.SubscriptionID, TenantID: row.TenantID}
		}
	}
	if res.TenantID == "" {
		res.TenantID = res.Subscription.TenantID
	}
	if res.ResourceGroup == "" {
		res.ResourceGroup = row.ResourceGroup
	}
}

// RunTenant acquires a credential for one tenant and runs the aggregate
// query against the tenant's subscriptions. Credential failures are
// reported as *core.CredentialError.
func (s *Service) RunTenant(ctx context.Context, account core.Account, tenantID string, subscriptions []core.Subscription) ([]core.Resource, error) {
	if len(subscriptions) == 0 {
		return nil, nil
	}
	cred, err := s.resolver.GetToken(ctx, account, tenantID, core.ScopeResourceManagement)
	if err != nil {
		return nil, &core.CredentialError{TenantID: tenantID, Err: err}
	}
	return s.Run(ctx, cred, subscriptions)
}

// RunAccount walks the account's tenants sequentially (upstream rate limits
// make parallel tenant querying a bad idea), runs the aggregate query per
// tenant, and returns partial results plus the collected per-tenant errors.
// Only UnregisteredProviderError aborts the walk: it indicates a setup
// defect, not a remote failure.
func (s *Service) RunAccount(ctx context.Context, account core.Account, subscriptions []core.Subscription) ([]core.Resource, error) {
	var resources []core.Resource
	var errs *multierror.Error

	for _, tenant := range account.Tenants {
		var tenantSubs []core.Subscription
		for _, sub := range subscriptions {
			if sub.TenantID == tenant.ID {
				tenantSubs = append(tenantSubs, sub)
			}
		}
		if len(tenantSubs) == 0 {
			// The tenant may simply have no subscriptions in scope.
			continue
		}

		found, err := s.RunTenant(ctx, account, tenant.ID, tenantSubs)
		if err != nil {
			var unregistered *core.UnregisteredProviderError
			if errors.As(err, &unregistered) {
				return nil, err
			}
			s.logger.Warn("tenant query failed", "tenant", tenant.ID, "error", err)
			errs = multierror.Append(errs, err)
			continue
		}
		resources = append(resources, found...)
	}

	return resources, errs.ErrorOrNil()
}
