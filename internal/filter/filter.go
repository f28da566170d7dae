// Package filter persists the user's narrowed selection of subscriptions
// and tenants per account. Absence of a selection means everything is
// selected (default-allow).
package filter

import (
	"fmt"

	"github.com/cloudscape-labs/cloudscape/internal/cache"
	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

// Fixed cache ids for the two selection kinds. Each entry holds a map
// keyed by account id so one write never clobbers other accounts.
const (
	subscriptionsKeyID = "filters.selectedSubscriptions"
	tenantsKeyID       = "filters.selectedTenants"
)

// Store reads and writes selection filters through the cache store.
type Store struct {
	cache cache.Store
}

// NewStore creates a filter store backed by c.
func NewStore(c cache.Store) *Store {
	return &Store{cache: c}
}

// SelectedSubscriptions returns the saved subscription selection for the
// account. ok=false means no selection was ever saved: callers must treat
// every subscription as selected.
func (s *Store) SelectedSubscriptions(account core.Account) ([]core.Subscription, bool, error) {
	byAccount, err := s.loadSubscriptions()
	if err != nil {
		return nil, false, err
	}
	selected, ok := byAccount[account.Key]
	return selected, ok, nil
}

// SelectedSubscriptionsForTenant narrows the saved selection to one tenant.
// ok follows the same default-allow semantics as SelectedSubscriptions.
func (s *Store) SelectedSubscriptionsForTenant(account core.Account, tenantID string) ([]core.Subscription, bool, error) {
	selected, ok, err := s.SelectedSubscriptions(account)
	if err != nil || !ok {
		return nil, ok, err
	}
	var scoped []core.Subscription
	for _, sub := range selected {
		if sub.TenantID == tenantID {
			scoped = append(scoped, sub)
		}
	}
	return scoped, true, nil
}

// SaveSelectedSubscriptions replaces the account's subscription selection.
// The whole map is read, merged, and written back so selections for other
// accounts survive (last writer wins across the map, per account).
func (s *Store) SaveSelectedSubscriptions(account core.Account, selected []core.Subscription) error {
	byAccount, err := s.loadSubscriptions()
	if err != nil {
		return err
	}
	byAccount[account.Key] = selected
	if err := cache.SetJSON(s.cache, cache.GenerateKey(subscriptionsKeyID), byAccount); err != nil {
		return fmt.Errorf("save subscription selection: %w", err)
	}
	return nil
}

// SelectedTenants returns the saved tenant selection for the account.
// ok=false means no selection was ever saved (all tenants selected).
func (s *Store) SelectedTenants(account core.Account) ([]core.Tenant, bool, error) {
	byAccount, err := s.loadTenants()
	if err != nil {
		return nil, false, err
	}
	selected, ok := byAccount[account.Key]
	return selected, ok, nil
}

// SaveSelectedTenants replaces the account's tenant selection with the same
// read-merge-write discipline as subscriptions.
func (s *Store) SaveSelectedTenants(account core.Account, selected []core.Tenant) error {
	byAccount, err := s.loadTenants()
	if err != nil {
		return err
	}
	byAccount[account.Key] = selected
	if err := cache.SetJSON(s.cache, cache.GenerateKey(tenantsKeyID), byAccount); err != nil {
		return fmt.Errorf("save tenant selection: %w", err)
	}
	return nil
}

func (s *Store) loadSubscriptions() (map[string][]core.Subscription, error) {
	byAccount := make(map[string][]core.Subscription)
	if _, err := cache.GetJSON(s.cache, cache.GenerateKey(subscriptionsKeyID), &byAccount); err != nil {
		return nil, fmt.Errorf("load subscription selection: %w", err)
	}
	return byAccount, nil
}

func (s *Store) loadTenants() (map[string][]core.Tenant, error) {
	byAccount := make(map[string][]core.Tenant)
	if _, err := cache.GetJSON(s.cache, cache.GenerateKey(tenantsKeyID), &byAccount); err != nil {
		return nil, fmt.Errorf("load tenant selection: %w", err)
	}
	return byAccount, nil
}
