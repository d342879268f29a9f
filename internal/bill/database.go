package bill

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const billsBucket = "bills"

// DB defines the interface for bill persistence
type DB interface {
	// SaveBill inserts or replaces a bill
	SaveBill(bill *Bill) error

	// GetBill retrieves a bill by ID, returning ErrNotFound if absent
	GetBill(id string) (*Bill, error)

	// ListBills returns all bills in key order
	ListBills() ([]*Bill, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements DB on top of a bbolt file
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(billsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveBill inserts or replaces a bill
func (b *BoltDB) SaveBill(bill *Bill) error {
	if bill.ID == "" {
		return fmt.Errorf("saving bill: empty id")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(bill)
		if err != nil {
			return fmt.Errorf("marshaling bill: %w", err)
		}
		return tx.Bucket([]byte(billsBucket)).Put([]byte(bill.ID), data)
	})
}

// GetBill retrieves a bill by ID
func (b *BoltDB) GetBill(id string) (*Bill, error) {
	var bill *Bill
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(billsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &bill)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// ListBills returns all bills
func (b *BoltDB) ListBills() ([]*Bill, error) {
	bills := make([]*Bill, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(billsBucket)).ForEach(func(k, v []byte) error {
			var bill Bill
			if err := json.Unmarshal(v, &bill); err != nil {
				return fmt.Errorf("unmarshaling bill %s: %w", k, err)
			}
			bills = append(bills, &bill)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return bills, nil
}

// Close closes the database
func (b *BoltDB) Close() error {
	return b.db.Close()
}
