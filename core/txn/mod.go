// Package txn defines the abstraction of transactions and of the batches that
// group them.
//
// A transaction reaching this package has already been validated by the
// caller. It is uniquely identifiable via a digest and it may carry a batch key
// which is the identifier shared by the transactions submitted together.
//
// A batch is an immutable, non-empty and ordered list of transactions. Its
// identifier is derived from the identifiers of its transactions so that two
// batches with the same content are equal.
package txn

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/xerrors"
)

// Transaction is a validated transaction that can be ordered.
type Transaction interface {
	// GetID returns the unique identifier for the transaction.
	GetID() []byte

	// GetPayload returns the opaque content of the transaction.
	GetPayload() []byte

	// GetBatchKey returns the identifier shared by the transactions submitted
	// together, or nil.
	GetBatchKey() []byte
}

// Factory is the definition of a factory to instantiate transactions from the
// content received from the network. It is the place where an implementation
// can reject a transaction.
type Factory interface {
	TransactionOf(payload, batchKey []byte) (Transaction, error)
}

// basicTx is the default implementation of a transaction. Its identifier is the
// SHA-256 digest of the payload.
//
// - implements txn.Transaction
type basicTx struct {
	id       []byte
	payload  []byte
	batchKey []byte
}

// NewTransaction creates a new transaction from the payload and the optional
// batch key.
func NewTransaction(payload, batchKey []byte) Transaction {
	h := sha256.Sum256(payload)

	return basicTx{
		id:       h[:],
		payload:  payload,
		batchKey: batchKey,
	}
}

// GetID implements txn.Transaction. It returns the digest of the payload.
func (tx basicTx) GetID() []byte {
	return tx.id
}

// GetPayload implements txn.Transaction.
func (tx basicTx) GetPayload() []byte {
	return tx.payload
}

// GetBatchKey implements txn.Transaction.
func (tx basicTx) GetBatchKey() []byte {
	return tx.batchKey
}

// basicFactory accepts any transaction.
//
// - implements txn.Factory
type basicFactory struct{}

// NewFactory returns a factory that creates basic transactions.
func NewFactory() Factory {
	return basicFactory{}
}

// TransactionOf implements txn.Factory. It never fails.
func (basicFactory) TransactionOf(payload, batchKey []byte) (Transaction, error) {
	return NewTransaction(payload, batchKey), nil
}

// BatchIDLength is the length in bytes of a batch identifier.
const BatchIDLength = sha256.Size

// BatchID is the content-addressed identifier of a batch.
type BatchID [BatchIDLength]byte

// String implements fmt.Stringer. It returns a short string representation of
// the identifier.
func (id BatchID) String() string {
	return fmt.Sprintf("%#x", id[:4])
}

// Batch is an ordered group of transactions.
type Batch struct {
	id  BatchID
	txs []Transaction
}

// NewBatch creates a batch out of the transactions. It returns an error if the
// list is empty.
func NewBatch(txs ...Transaction) (Batch, error) {
	if len(txs) == 0 {
		return Batch{}, xerrors.New("batch must contain at least one transaction")
	}

	list := make([]Transaction, len(txs))
	copy(list, txs)

	return Batch{
		id:  computeID(list),
		txs: list,
	}, nil
}

// GetID returns the identifier of the batch.
func (b Batch) GetID() BatchID {
	return b.id
}

// GetTransactions returns the transactions of the batch in order.
func (b Batch) GetTransactions() []Transaction {
	return append([]Transaction{}, b.txs...)
}

// Len returns the number of transactions in the batch.
func (b Batch) Len() int {
	return len(b.txs)
}

// Equal returns true when both batches have the same identifier.
func (b Batch) Equal(other Batch) bool {
	return b.id == other.id
}

// String implements fmt.Stringer.
func (b Batch) String() string {
	return fmt.Sprintf("Batch[%v:%d]", b.id, len(b.txs))
}

// computeID hashes the length-prefixed identifiers of the transactions so that
// two different splits of the same bytes cannot collide.
func computeID(txs []Transaction) BatchID {
	h := sha256.New()
	buffer := make([]byte, 8)

	for _, tx := range txs {
		id := tx.GetID()

		binary.LittleEndian.PutUint64(buffer, uint64(len(id)))
		h.Write(buffer)
		h.Write(id)
	}

	var id BatchID
	copy(id[:], h.Sum(nil))

	return id
}

// SameBatchKey returns true when both transactions have the same non-empty
// batch key.
func SameBatchKey(a, b Transaction) bool {
	ka := a.GetBatchKey()

	return len(ka) > 0 && bytes.Equal(ka, b.GetBatchKey())
}
