// Package registry provides resource provider registration and dispatch
// resolution. It maps provider ids to their descriptors and (type, kind)
// pairs from raw graph rows to the provider that converts them, enabling
// one aggregate query per tenant instead of one query per provider.
package registry

import (
	"strings"
	"sync"

	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

// Category classifies what a (type, kind) match produces.
type Category int

const (
	// CategoryServer routes the row to the provider's server converter.
	CategoryServer Category = iota

	// CategoryDatabase routes the row to the provider's database converter
	// after its owning server has been located.
	CategoryDatabase
)

// String returns the category name for logging.
func (c Category) String() string {
	if c == CategoryDatabase {
		return "database"
	}
	return "server"
}

// TypeKindMatch declares one (resource type, kind) combination a provider
// handles. An empty Kind matches any kind; a non-empty Kind acts as the
// tiebreaker for ambiguous types (the cosmos account type maps to several
// providers by kind).
type TypeKindMatch struct {
	ResourceType string
	Kind         string
	Category     Category
}

// Descriptor describes one resource provider. Descriptors are immutable
// after registration; the ProviderID doubles as the dispatch key and the
// tree-node-id prefix.
type Descriptor struct {
	ProviderID  string
	QueryFilter string
	Matches     []TypeKindMatch

	// ConvertServer converts a server-category row. ok=false drops the row.
	ConvertServer func(row core.RawGraphRow) (*core.Resource, bool)

	// ConvertDatabase converts a database-category row given the row of its
	// owning server. ok=false drops the row.
	ConvertDatabase func(row, serverRow core.RawGraphRow) (*core.Resource, bool)
}

// resolution is one entry of the static dispatch table.
type resolution struct {
	providerID string
	kind       string
	category   Category
}

// Registry is the pluggable table of resource providers. Registration
// happens once at startup, before any discovery call.
type Registry struct {
	mu sync.RWMutex

	// byID maps provider ids to descriptors.
	byID map[string]*Descriptor

	// order preserves registration order; it is not significant for
	// correctness but keeps the aggregate query string deterministic.
	order []string

	// byType maps lower-cased resource types to dispatch entries.
	byType map[string][]resolution

	// generation increments on every mutation so dependants can cache
	// derived state (the aggregate query string) until it changes.
	generation uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byID:   make(map[string]*Descriptor),
		byType: make(map[string][]resolution),
	}
}

// Register adds a provider keyed by its ProviderID. Registering a duplicate
// id or a descriptor without an id fails with UnregisteredProviderError
// semantics inverted at the call site; both indicate a setup defect.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || d.ProviderID == "" {
		return &core.UnregisteredProviderError{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[d.ProviderID]; exists {
		return &DuplicateProviderError{ProviderID: d.ProviderID}
	}

	r.byID[d.ProviderID] = d
	r.order = append(r.order, d.ProviderID)
	for _, m := range d.Matches {
		key := strings.ToLower(m.ResourceType)
		r.byType[key] = append(r.byType[key], resolution{
			providerID: d.ProviderID,
			kind:       strings.ToLower(m.Kind),
			category:   m.Category,
		})
	}
	r.generation++
	return nil
}

// Get returns the descriptor for a provider id.
func (r *Registry) Get(providerID string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.byID) == 0 {
		return nil, &core.UnregisteredProviderError{}
	}
	d, ok := r.byID[providerID]
	if !ok {
		return nil, &core.UnregisteredProviderError{ProviderID: providerID}
	}
	return d, nil
}

// List returns all registered provider ids in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Clear removes every provider. Only used by tests and reinitialization.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID = make(map[string]*Descriptor)
	r.order = nil
	r.byType = make(map[string][]resolution)
	r.generation++
}

// Generation returns a counter that changes whenever the registry does.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// ResolveTypeKind resolves a row's (type, kind) to the owning provider and
// category. Type matches first; kind is the tiebreaker when several
// providers share a type. An entry with an empty kind is the fallback for
// its type. Unknown combinations fail with UnrecognizedResourceTypeError.
func (r *Registry) ResolveTypeKind(resourceType, kind string) (string, Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byType[strings.ToLower(resourceType)]
	lowerKind := strings.ToLower(kind)

	var fallback *resolution
	for i := range entries {
		e := &entries[i]
		if e.kind == lowerKind && e.kind != "" {
			return e.providerID, e.category, nil
		}
		if e.kind == "" && fallback == nil {
			fallback = e
		}
	}
	if fallback != nil {
		return fallback.providerID, fallback.category, nil
	}
	return "", 0, &core.UnrecognizedResourceTypeError{ResourceType: resourceType, ResourceKind: kind}
}

// ProviderForNodeID maps an already-rendered node id back to the provider
// that owns it, using the `<providerID>.` id prefix convention. The longest
// matching provider id wins so nested provider ids resolve correctly.
func (r *Registry) ProviderForNodeID(nodeID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := ""
	for id := range r.byID {
		if nodeID != id && !strings.HasPrefix(nodeID, id+".") {
			continue
		}
		if len(id) > len(best) {
			best = id
		}
	}
	if best == "" {
		return "", &core.UnregisteredProviderError{ProviderID: nodeID}
	}
	return best, nil
}
