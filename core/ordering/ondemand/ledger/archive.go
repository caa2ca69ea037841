package ledger

import (
	"encoding/binary"

	"go.dedis.ch/odo/core/ordering/ondemand/json"
	"go.dedis.ch/odo/core/ordering/ondemand/types"
	"go.dedis.ch/odo/core/store/kv"
	"go.dedis.ch/odo/core/txn"
	"golang.org/x/xerrors"
)

// archiveBucket is the name of the bucket of the committed proposals.
var archiveBucket = []byte("ondemand-proposals")

// Archive is the storage of the committed proposals.
type Archive interface {
	// Store writes the proposal. A proposal already stored for the same round
	// is replaced.
	Store(types.Proposal) error

	// Load returns the proposal of the round if it exists.
	Load(types.Round) (types.Proposal, bool, error)

	// Last returns the proposal of the latest round if any.
	Last() (types.Proposal, bool, error)
}

// KvArchive is an archive stored in a key/value database. The keys are the
// big-endian encoding of the rounds so that they are sorted.
//
// - implements ledger.Archive
type KvArchive struct {
	db     kv.DB
	format json.Format
}

// NewArchive creates an archive using the database. The transactions of the
// proposals are instantiated with the factory.
func NewArchive(db kv.DB, fac txn.Factory) KvArchive {
	return KvArchive{
		db:     db,
		format: json.NewFormat(fac),
	}
}

// Store implements ledger.Archive.
func (a KvArchive) Store(p types.Proposal) error {
	data, err := a.format.Encode(p)
	if err != nil {
		return xerrors.Errorf("failed to encode proposal: %v", err)
	}

	err = a.db.Update(archiveBucket, func(b kv.Bucket) error {
		return b.Set(roundKey(p.GetRound()), data)
	})
	if err != nil {
		return xerrors.Errorf("failed to store proposal: %v", err)
	}

	return nil
}

// Load implements ledger.Archive.
func (a KvArchive) Load(round types.Round) (types.Proposal, bool, error) {
	return a.read(func(b kv.Bucket) []byte {
		return b.Get(roundKey(round))
	})
}

// Last implements ledger.Archive.
func (a KvArchive) Last() (types.Proposal, bool, error) {
	return a.read(func(b kv.Bucket) []byte {
		_, value := b.Last()
		return value
	})
}

// read decodes the value returned by the function. Nothing was committed yet
// when the bucket is missing.
func (a KvArchive) read(fn func(kv.Bucket) []byte) (types.Proposal, bool, error) {
	var data []byte

	err := a.db.View(archiveBucket, func(b kv.Bucket) error {
		data = copyBytes(fn(b))
		return nil
	})
	if xerrors.Is(err, kv.ErrBucketNotFound) {
		return types.Proposal{}, false, nil
	}
	if err != nil {
		return types.Proposal{}, false, xerrors.Errorf("failed to read db: %v", err)
	}

	return a.decode(data)
}

func (a KvArchive) decode(data []byte) (types.Proposal, bool, error) {
	if data == nil {
		return types.Proposal{}, false, nil
	}

	p, err := a.format.Decode(data)
	if err != nil {
		return types.Proposal{}, false, xerrors.Errorf("failed to decode proposal: %v", err)
	}

	return p, true, nil
}

func roundKey(round types.Round) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint64(key, round.BlockRound)
	binary.BigEndian.PutUint32(key[8:], round.RejectRound)

	return key
}

// copyBytes copies the value as it is only valid during the transaction.
func copyBytes(value []byte) []byte {
	if value == nil {
		return nil
	}

	return append([]byte{}, value...)
}
