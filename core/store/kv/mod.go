// Package kv defines the key/value storage of the node, where the committed
// proposals are archived. Keys are compared byte-wise so that a big-endian
// encoding keeps them sorted.
//
// The default implementation is backed by bbolt (https://github.com/etcd-io/bbolt).
package kv

import "golang.org/x/xerrors"

// ErrBucketNotFound is returned by a view of a bucket that was never updated.
var ErrBucketNotFound = xerrors.New("bucket not found")

// Bucket is the set of keys of one kind of record.
type Bucket interface {
	// Get returns the value of the key, or nil if it does not exist. The
	// value is only valid during the transaction.
	Get(key []byte) []byte

	// Set assigns the value to the key.
	Set(key, value []byte) error

	// Last returns the greatest key and its value, or nils if the bucket is
	// empty.
	Last() (key, value []byte)
}

// DB is a database of buckets.
type DB interface {
	// View runs the function in a read-only transaction. It returns
	// ErrBucketNotFound if the bucket does not exist.
	View(bucket []byte, fn func(Bucket) error) error

	// Update runs the function in a read-write transaction and creates the
	// bucket if necessary. Returning an error rolls back the changes.
	Update(bucket []byte, fn func(Bucket) error) error

	Close() error
}
