package ports

import "context"

// RecordStore maps internal record ids to upstream listing ids, owning clients and the
// last stock quantity seen. Lookups MUST return types.ErrNotFound for unknown keys.
type RecordStore interface {
	CreateListing(ctx context.Context, listingID string) (int64, error)
	LinkClientToListing(ctx context.Context, listingID, clientID string) error
	ClientForListing(ctx context.Context, listingID string) (string, error)
	RecordIDForListing(ctx context.Context, listingID string) (int64, error)
	ListingForRecord(ctx context.Context, recordID int64) (string, error)

	AddStock(ctx context.Context, recordID int64, quantity int) error
	SetStock(ctx context.Context, recordID int64, quantity int) error
	GetStock(ctx context.Context, recordID int64) (int, error)

	// RecordListing inserts the listing, links it to clientID and seeds its stock in a
	// single transaction, returning the new record id.
	RecordListing(ctx context.Context, listingID, clientID string, quantity int) (int64, error)

	// ReconcileStock stores current as the stock of recordID and returns the previous
	// value. The read and the write happen under one row lock.
	ReconcileStock(ctx context.Context, recordID int64, current int) (int, error)

	Close() error
}
