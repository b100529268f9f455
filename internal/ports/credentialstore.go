package ports

import (
	"context"
	"wolff/internal/types"
)

// CredentialStore persists per-client, per-service secret bundles and the service
// identifier resources (e.g. shipping template ids) a client owns.
// Implementations MUST write a bundle atomically: a reader never observes a partial bundle.
type CredentialStore interface {
	// Get returns the bundle for (clientID, service).
	// MUST return types.ErrNoSuchCredential if absent.
	Get(ctx context.Context, clientID, service string) (types.CredentialBundle, error)

	// Put stores the bundle. Unless overwrite is true it MUST fail with
	// types.ErrAlreadyExists when a bundle is already present.
	Put(ctx context.Context, clientID, service string, bundle types.CredentialBundle, overwrite bool) error

	// ListClients returns every client id that owns at least one bundle or resource.
	ListClients(ctx context.Context) ([]string, error)

	// GetResource returns the values of a named resource.
	// MUST return types.ErrNotFound if the client has no such resource.
	GetResource(ctx context.Context, clientID, service, resource string) ([]string, error)

	// PutResource replaces the values of a named resource.
	PutResource(ctx context.Context, clientID, service, resource string, values []string) error
	// Close releases the connection to the backing service, if any.
	Close() error
}
