package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"wolff/internal/types"
)

// RecordStore implements ports.RecordStore on a local SQLite file.
type RecordStore struct {
	db *sql.DB
}

func NewRecordStore(path string, openParams ...string) (*RecordStore, error) {
	db, err := Open(path, openParams...)
	if err != nil {
		return nil, types.Err(types.ErrStorage, err, "")
	}
	return &RecordStore{db: db}, nil
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *RecordStore) CreateListing(ctx context.Context, listingID string) (int64, error) {
	return createListing(ctx, s.db, listingID)
}

func createListing(ctx context.Context, q execer, listingID string) (int64, error) {
	var value any
	if listingID != "" {
		value = listingID
	}
	res, err := q.ExecContext(ctx, `INSERT INTO listings (listing_id) VALUES (?)`, value)
	if err != nil {
		return 0, storageErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr(err)
	}
	return id, nil
}

func (s *RecordStore) LinkClientToListing(ctx context.Context, listingID, clientID string) error {
	return linkClient(ctx, s.db, listingID, clientID)
}

func linkClient(ctx context.Context, q execer, listingID, clientID string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO listing_owners (listing_id, client_id) VALUES (?, ?)
		 ON CONFLICT (listing_id) DO UPDATE SET client_id = excluded.client_id`,
		listingID, clientID)
	return storageErr(err)
}

func (s *RecordStore) ClientForListing(ctx context.Context, listingID string) (string, error) {
	var clientID string
	err := s.db.QueryRowContext(ctx,
		`SELECT client_id FROM listing_owners WHERE listing_id = ?`, listingID).Scan(&clientID)
	if err != nil {
		return "", notFoundOr(err, "owner of listing %s", listingID)
	}
	return clientID, nil
}

func (s *RecordStore) RecordIDForListing(ctx context.Context, listingID string) (int64, error) {
	var recordID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT record_id FROM listings WHERE listing_id = ?`, listingID).Scan(&recordID)
	if err != nil {
		return 0, notFoundOr(err, "listing %s", listingID)
	}
	return recordID, nil
}

func (s *RecordStore) ListingForRecord(ctx context.Context, recordID int64) (string, error) {
	var listingID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT listing_id FROM listings WHERE record_id = ?`, recordID).Scan(&listingID)
	if err != nil {
		return "", notFoundOr(err, "record %d", recordID)
	}
	if !listingID.Valid {
		return "", types.Err(types.ErrNotFound, nil, "record %d has no listing id", recordID)
	}
	return listingID.String, nil
}

func (s *RecordStore) AddStock(ctx context.Context, recordID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO listing_stock (record_id, quantity) VALUES (?, ?)
		 ON CONFLICT (record_id) DO UPDATE SET quantity = quantity + excluded.quantity`,
		recordID, quantity)
	return storageErr(err)
}

func (s *RecordStore) SetStock(ctx context.Context, recordID int64, quantity int) error {
	return setStock(ctx, s.db, recordID, quantity)
}

func setStock(ctx context.Context, q execer, recordID int64, quantity int) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO listing_stock (record_id, quantity) VALUES (?, ?)
		 ON CONFLICT (record_id) DO UPDATE SET quantity = excluded.quantity`,
		recordID, quantity)
	return storageErr(err)
}

func (s *RecordStore) GetStock(ctx context.Context, recordID int64) (int, error) {
	return getStock(ctx, s.db, recordID)
}

func getStock(ctx context.Context, q execer, recordID int64) (int, error) {
	var quantity int
	err := q.QueryRowContext(ctx,
		`SELECT quantity FROM listing_stock WHERE record_id = ?`, recordID).Scan(&quantity)
	if err != nil {
		return 0, notFoundOr(err, "stock of record %d", recordID)
	}
	return quantity, nil
}

func (s *RecordStore) RecordListing(ctx context.Context, listingID, clientID string, quantity int) (int64, error) {
	var recordID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
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
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		prev, err := getStock(ctx, tx, recordID)
		if err != nil {
			return err
		}
		if err := setStock(ctx, tx, recordID, current); err != nil {
			return err
		}
		previous = prev
		return nil
	})
	return previous, err
}

func (s *RecordStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return storageErr(tx.Commit())
}

func notFoundOr(err error, msg string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
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
