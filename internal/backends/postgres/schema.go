package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	record_id  BIGSERIAL PRIMARY KEY,
	listing_id TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS listing_owners (
	listing_id TEXT PRIMARY KEY,
	client_id  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listing_owners_client ON listing_owners (client_id);

CREATE TABLE IF NOT EXISTS listing_stock (
	record_id BIGINT PRIMARY KEY REFERENCES listings (record_id) ON DELETE CASCADE,
	quantity  INTEGER NOT NULL DEFAULT 0
);
`

// InitializeSchema creates the record tables if they are missing.
func InitializeSchema(ctx context.Context, pool *pgxpool.Pool) error {
	log.Debug("checking record store schema")
	_, err := pool.Exec(ctx, schema)
	return err
}
