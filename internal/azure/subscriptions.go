package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

// SubscriptionClient enumerates tenants and subscriptions through the ARM
// subscriptions API.
type SubscriptionClient struct{}

// NewSubscriptionClient creates a client.
func NewSubscriptionClient() *SubscriptionClient {
	return &SubscriptionClient{}
}

// ListSubscriptions returns the subscriptions visible to the tenant-scoped
// credential, stamped with the tenant id the credential was issued for.
func (c *SubscriptionClient) ListSubscriptions(ctx context.Context, cred core.Credential, tenantID string) ([]core.Subscription, error) {
	client, err := armsubscriptions.NewClient(staticTokenCredential{token: cred.Token}, nil)
	if err != nil {
		return nil, fmt.Errorf("create subscriptions client: %w", err)
	}

	var subs []core.Subscription
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapQueryError(err)
		}
		for _, s := range page.Value {
			if s == nil || s.SubscriptionID == nil {
				continue
			}
			sub := core.Subscription{ID: *s.SubscriptionID, TenantID: tenantID}
			if s.DisplayName != nil {
				sub.Name = *s.DisplayName
			}
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

// ListTenants returns the tenants visible to the credential, used when an
// account is registered without an explicit tenant list.
func (c *SubscriptionClient) ListTenants(ctx context.Context, cred core.Credential) ([]core.Tenant, error) {
	client, err := armsubscriptions.NewTenantsClient(staticTokenCredential{token: cred.Token}, nil)
	if err != nil {
		return nil, fmt.Errorf("create tenants client: %w", err)
	}

	var tenants []core.Tenant
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapQueryError(err)
		}
		for _, t := range page.Value {
			if t == nil || t.TenantID == nil {
				continue
			}
			tenant := core.Tenant{ID: *t.TenantID}
			if t.DisplayName != nil {
				tenant.DisplayName = *t.DisplayName
			}
			tenants = append(tenants, tenant)
		}
	}
	return tenants, nil
}
