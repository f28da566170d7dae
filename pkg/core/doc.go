// Package core defines the shared language of the cloudscape system.
//
// This package contains:
//   - Domain entities (Account, Tenant, Subscription, Resource, RawGraphRow)
//   - Boundary interfaces (CredentialResolver, QueryTransport, SubscriptionLister)
//   - The error taxonomy used across the discovery engine
//
// The Golden Rule: pkg/core imports ONLY the stdlib. All other packages
// depend on core, not the reverse. Nothing in this package talks to the
// network; concrete cloud backends live in internal/azure.
package core
