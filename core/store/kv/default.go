package kv

import (
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// lockTimeout is how long a second process waits for the file of a database
// already in use.
const lockTimeout = 5 * time.Second

// boltDB stores the buckets in a single bbolt file.
//
// - implements kv.DB
type boltDB struct {
	bolt *bbolt.DB
}

// New opens the database file, which is created when missing.
func New(path string) (DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, xerrors.Errorf("failed to open db: %v", err)
	}

	return boltDB{bolt: db}, nil
}

// View implements kv.DB.
func (db boltDB) View(name []byte, fn func(Bucket) error) error {
	return db.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		if b == nil {
			return xerrors.Errorf("bucket '%s': %w", name, ErrBucketNotFound)
		}

		return fn(boltBucket{b})
	})
}

// Update implements kv.DB.
func (db boltDB) Update(name []byte, fn func(Bucket) error) error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(name)
		if err != nil {
			return xerrors.Errorf("failed to create bucket: %v", err)
		}

		return fn(boltBucket{b})
	})
}

// Close implements kv.DB. Later transactions fail.
func (db boltDB) Close() error {
	return db.bolt.Close()
}

// - implements kv.Bucket
type boltBucket struct {
	*bbolt.Bucket
}

// Set implements kv.Bucket.
func (b boltBucket) Set(key, value []byte) error {
	return b.Put(key, value)
}

// Last implements kv.Bucket.
func (b boltBucket) Last() ([]byte, []byte) {
	return b.Cursor().Last()
}
