package azure

import (
	"github.com/cloudscape-labs/cloudscape/internal/registry"
	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

// Graph resource type strings, lower-cased the way the graph service
// reports them.
const (
	typeSQLServer              = "microsoft.sql/servers"
	typeSQLDatabase            = "microsoft.sql/servers/databases"
	typeSQLManagedInstance     = "microsoft.sql/managedinstances"
	typeSynapseWorkspace       = "microsoft.synapse/workspaces"
	typeSynapseSQLPool         = "microsoft.synapse/workspaces/sqlpools"
	typeKustoCluster           = "microsoft.kusto/clusters"
	typeMySQLFlexibleServer    = "microsoft.dbformysql/flexibleservers"
	typePostgresServer         = "microsoft.dbforpostgresql/servers"
	typePostgresFlexibleServer = "microsoft.dbforpostgresql/flexibleservers"
	typeCosmosAccount          = "microsoft.documentdb/databaseaccounts"
	typeCosmosPostgresCluster  = "microsoft.documentdb/postgresclusters"
)

// Cosmos account kinds. One graph type maps to several providers, so the
// kind acts as the dispatch tiebreaker.
const (
	kindCosmosNoSQL = "globaldocumentdb"
	kindCosmosMongo = "mongodb"
)

// BuiltinProviders returns the static descriptor set covering the data
// services the engine discovers out of the box.
func BuiltinProviders() []*registry.Descriptor {
	return []*registry.Descriptor{
		serverDescriptor("sqlServer", typeSQLServer),
		databaseDescriptor("sqlDatabase", typeSQLDatabase),
		serverDescriptor("sqlInstance", typeSQLManagedInstance),
		serverDescriptor("synapseWorkspace", typeSynapseWorkspace),
		databaseDescriptor("synapseSqlPool", typeSynapseSQLPool),
		serverDescriptor("kustoCluster", typeKustoCluster),
		serverDescriptor("mysqlFlexibleServer", typeMySQLFlexibleServer),
		serverDescriptor("postgresServer", typePostgresServer),
		serverDescriptor("postgresFlexibleServer", typePostgresFlexibleServer),
		cosmosDescriptor("cosmosDbNoSql", kindCosmosNoSQL),
		cosmosDescriptor("cosmosDbMongo", kindCosmosMongo),
		serverDescriptor("cosmosDbPostgres", typeCosmosPostgresCluster),
	}
}

// RegisterBuiltins registers every built-in provider.
func RegisterBuiltins(reg *registry.Registry) error {
	for _, d := range BuiltinProviders() {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func serverDescriptor(providerID, resourceType string) *registry.Descriptor {
	return &registry.Descriptor{
		ProviderID:    providerID,
		QueryFilter:   typeFilter(resourceType),
		Matches:       []registry.TypeKindMatch{{ResourceType: resourceType, Category: registry.CategoryServer}},
		ConvertServer: convertServer(providerID),
	}
}

func databaseDescriptor(providerID, resourceType string) *registry.Descriptor {
	return &registry.Descriptor{
		ProviderID:      providerID,
		QueryFilter:     typeFilter(resourceType),
		Matches:         []registry.TypeKindMatch{{ResourceType: resourceType, Category: registry.CategoryDatabase}},
		ConvertDatabase: convertDatabase(providerID),
	}
}

func cosmosDescriptor(providerID, kind string) *registry.Descriptor {
	return &registry.Descriptor{
		ProviderID:    providerID,
		QueryFilter:   typeFilter(typeCosmosAccount) + ` and kind == "` + kind + `"`,
		Matches:       []registry.TypeKindMatch{{ResourceType: typeCosmosAccount, Kind: kind, Category: registry.CategoryServer}},
		ConvertServer: convertServer(providerID),
	}
}

func typeFilter(resourceType string) string {
	return `type == "` + resourceType + `"`
}

func convertServer(providerID string) func(core.RawGraphRow) (*core.Resource, bool) {
	return func(row core.RawGraphRow) (*core.Resource, bool) {
		if row.ID == "" || row.Name == "" {
			return nil, false
		}
		res := &core.Resource{
			ID:        row.ID,
			Name:      row.Name,
			Kind:      core.KindServer,
			Provider:  providerID,
			LoginName: propString(row.Properties, "administratorLogin"),
			FullName:  propString(row.Properties, "fullyQualifiedDomainName"),
		}
		if res.FullName == "" {
			res.FullName = row.Name
		}
		return res, true
	}
}

func convertDatabase(providerID string) func(row, serverRow core.RawGraphRow) (*core.Resource, bool) {
	return func(row, serverRow core.RawGraphRow) (*core.Resource, bool) {
		if row.ID == "" || row.Name == "" {
			return nil, false
		}
		serverFullName := propString(serverRow.Properties, "fullyQualifiedDomainName")
		if serverFullName == "" {
			serverFullName = serverRow.Name
		}
		return &core.Resource{
			ID:             row.ID,
			Name:           row.Name,
			Kind:           core.KindDatabase,
			Provider:       providerID,
			ServerName:     serverRow.Name,
			ServerFullName: serverFullName,
		}, true
	}
}

func propString(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	s, _ := props[key].(string)
	return s
}
