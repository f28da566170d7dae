package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudscape-labs/cloudscape/internal/cache"
	"github.com/cloudscape-labs/cloudscape/internal/config"
	"github.com/cloudscape-labs/cloudscape/internal/filter"
	"github.com/cloudscape-labs/cloudscape/internal/registry"
	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	cfg := writeConfig(t, "")
	out, _, err := execute(t, "version", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "cloudscape v")
}

func TestProvidersCommand_Plain(t *testing.T) {
	cfg := writeConfig(t, "")
	out, _, err := execute(t, "providers", "--config", cfg, "--cache-path", ":memory:", "-o", "plain")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlServer\tmicrosoft.sql/servers\n")
	assert.Contains(t, out, "cosmosDbMongo\tmicrosoft.documentdb/databaseaccounts (kind mongodb)\n")
}

func TestProvidersCommand_Table(t *testing.T) {
	cfg := writeConfig(t, "")
	out, _, err := execute(t, "providers", "--config", cfg, "--cache-path", ":memory:")
	require.NoError(t, err)
	assert.Contains(t, out, "PROVIDER")
	assert.Contains(t, out, "(12 providers)")
}

func TestProvidersCommand_ConfiguredSubset(t *testing.T) {
	cfg := writeConfig(t, "providers:\n  - sqlServer\n")
	out, _, err := execute(t, "providers", "--config", cfg, "--cache-path", ":memory:", "-o", "plain")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlServer")
	assert.NotContains(t, out, "kustoCluster")
}

func TestProvidersCommand_UnknownProvider(t *testing.T) {
	cfg := writeConfig(t, "providers:\n  - nope\n")
	_, _, err := execute(t, "providers", "--config", cfg, "--cache-path", ":memory:")
	assert.ErrorContains(t, err, `unknown provider "nope"`)
}

func TestTreeCommand_RequiresAccount(t *testing.T) {
	cfg := writeConfig(t, "")
	_, _, err := execute(t, "tree", "--config", cfg, "--cache-path", ":memory:")
	assert.ErrorContains(t, err, "no account configured")
}

func TestTreeCommand_RefreshFlagRegistered(t *testing.T) {
	cfg := writeConfig(t, "")
	_, _, err := execute(t, "tree", "--refresh", "--config", cfg, "--cache-path", ":memory:")
	assert.ErrorContains(t, err, "no account configured")
}

func TestSubscriptionsCommand_RequiresAccount(t *testing.T) {
	cfg := writeConfig(t, "")
	_, _, err := execute(t, "subscriptions", "--config", cfg, "--cache-path", ":memory:")
	assert.ErrorContains(t, err, "no account configured")
}

func TestResourcesCommand_RequiresAccount(t *testing.T) {
	cfg := writeConfig(t, "")
	_, _, err := execute(t, "resources", "--config", cfg, "--cache-path", ":memory:")
	assert.ErrorContains(t, err, "no account configured")
}

func TestCacheClearCommand_MemoryStore(t *testing.T) {
	cfg := writeConfig(t, "")
	out, _, err := execute(t, "cache", "clear", "--config", cfg, "--cache-path", ":memory:")
	require.NoError(t, err)
	assert.Contains(t, out, "in-memory")
}

func TestCacheClearCommand_SQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	cfg := writeConfig(t, "")
	out, _, err := execute(t, "cache", "clear", "--config", cfg, "--cache-path", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared")
}

func TestRegisterProviders_Subset(t *testing.T) {
	reg := registry.New()
	require.NoError(t, registerProviders(reg, []string{"sqlServer", "sqlDatabase"}))
	assert.Equal(t, []string{"sqlServer", "sqlDatabase"}, reg.List())
}

func TestSeedFilters_SingleTenantStampsTenantID(t *testing.T) {
	filters := filter.NewStore(cache.NewMemoryStore())
	account := core.Account{
		Key:     "acct-1",
		Tenants: []core.Tenant{{ID: "tenant-1"}},
	}

	require.NoError(t, seedFilters(filters, account, config.FiltersConfig{
		Subscriptions: []string{"sub-1"},
		Tenants:       []string{"tenant-1"},
	}))

	subs, ok, err := filters.SelectedSubscriptionsForTenant(account, "tenant-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, subs, 1)
	assert.Equal(t, "sub-1", subs[0].ID)

	tenants, ok, err := filters.SelectedTenants(account)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, tenants, 1)
}
