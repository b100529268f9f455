package postgres

import (
	"context"
	"errors"
	"time"
	"wolff/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordStore implements ports.RecordStore on a pgx connection pool.
type RecordStore struct {
	pool *pgxpool.Pool
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewRecordStore(ctx context.Context, dsn string) (*RecordStore, error) {
	if dsn == "" {
		return nil, types.Err(types.ErrInvalidBackend, nil, "postgres dsn is required")
	}
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, types.Err(types.ErrStorage, err, "parse postgres dsn")
	}
	config.MaxConns = 20
	config.MinConns = 1

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, config)
	if err != nil {
		return nil, types.Err(types.ErrStorage, err, "create pool")
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, types.Err(types.ErrStorage, err, "ping")
	}
	if err := InitializeSchema(connectCtx, pool); err != nil {
		pool.Close()
		return nil, types.Err(types.ErrStorage, err, "initialize schema")
	}
	return &RecordStore{pool: pool}, nil
}

func (s *RecordStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *RecordStore) CreateListing(ctx context.Context, listingID string) (int64, error) {
	return createListing(ctx, s.pool, listingID)
}

func createListing(ctx context.Context, q querier, listingID string) (int64, error) {
	var value *string
	if listingID != "" {
		value = &listingID
	}
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO listings (listing_id) VALUES ($1) RETURNING record_id`, value).Scan(&id)
	if err != nil {
		return 0, storageErr(err)
	}
	return id, nil
}

func (s *RecordStore) LinkClientToListing(ctx context.Context, listingID, clientID string) error {
	return linkClient(ctx, s.pool, listingID, clientID)
}

func linkClient(ctx context.Context, q querier, listingID, clientID string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO listing_owners (listing_id, client_id) VALUES ($1, $2)
		 ON CONFLICT (listing_id) DO UPDATE SET client_id = EXCLUDED.client_id`,
		listingID, clientID)
	return storageErr(err)
}

func (s *RecordStore) ClientForListing(ctx context.Context, listingID string) (string, error) {
	var clientID string
	err := s.pool.QueryRow(ctx, `SELECT client_id FROM listing_owners WHERE listing_id = $1`, listingID).Scan(&clientID)
	if err != nil {
		return "", notFoundOr(err, "owner of listing %s", listingID)
	}
	return clientID, nil
}

func (s *RecordStore) RecordIDForListing(ctx context.Context, listingID string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT record_id FROM listings WHERE listing_id = $1`, listingID).Scan(&id)
	if err != nil {
		return 0, notFoundOr(err, "listing %s", listingID)
	}
	return id, nil
}

func (s *RecordStore) ListingForRecord(ctx context.Context, recordID int64) (string, error) {
	var listingID *string
	err := s.pool.QueryRow(ctx, `SELECT listing_id FROM listings WHERE record_id = $1`, recordID).Scan(&listingID)
	if err != nil {
		return "", notFoundOr(err, "record %d", recordID)
	}
	if listingID == nil {
		return "", types.Err(types.ErrNotFound, nil, "record %d has no listing id", recordID)
	}
	return *listingID, nil
}

func (s *RecordStore) AddStock(ctx context.Context, recordID int64, quantity int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO listing_stock (record_id, quantity) VALUES ($1, $2)
		 ON CONFLICT (record_id) DO UPDATE SET quantity = listing_stock.quantity + EXCLUDED.quantity`,
		recordID, quantity)
	return storageErr(err)
}

func (s *RecordStore) SetStock(ctx context.Context, recordID int64, quantity int) error {
	return setStock(ctx, s.pool, recordID, quantity)
}

func setStock(ctx context.Context, q querier, recordID int64, quantity int) error {
	_, err := q.Exec(ctx,
		`INSERT INTO listing_stock (record_id, quantity) VALUES ($1, $2)
		 ON CONFLICT (record_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		recordID, quantity)
	return storageErr(err)
}

func (s *RecordStore) GetStock(ctx context.Context, recordID int64) (int, error) {
	var q int
	err := s.pool.QueryRow(ctx, `SELECT quantity FROM listing_stock WHERE record_id = $1`, recordID).Scan(&q)
	if err != nil {
		return 0, notFoundOr(err, "stock of record %d", recordID)
	}
	return q, nil
}

func (s *RecordStore) RecordListing(ctx context.Context, listingID, clientID string, quantity int) (int64, error) {
	var recordID int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		id, err := createListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if err := linkClient(ctx, tx, listingID, clientID); err != nil {
			return err
		}
		if err := setStock(ctx, tx, id, quantity); err != nil {
			return err
		}
		recordID = id
		return nil
	})
	return recordID, err
}

func (s *RecordStore) ReconcileStock(ctx context.Context, recordID int64, current int) (int, error) {
	var previous int
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT quantity FROM listing_stock WHERE record_id = $1 FOR UPDATE`, recordID).Scan(&previous)
		if err != nil {
			return notFoundOr(err, "stock of record %d", recordID)
		}
		_, err = tx.Exec(ctx, `UPDATE listing_stock SET quantity = $2 WHERE record_id = $1`, recordID, current)
		return storageErr(err)
	})
	return previous, err
}

func (s *RecordStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return storageErr(tx.Commit(ctx))
}

func notFoundOr(err error, msg string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Err(types.ErrNotFound, nil, msg, args...)
	}
	return storageErr(err)
}

func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return types.Err(types.ErrStorage, err, "")
}
