// Package bloom implements the exclusion filters of the on-demand ordering
// service.
//
// A filter is a probabilistic set of batch identifiers with no false negative.
// Every node uses the same parameters so that the filters of two nodes can be
// merged. The cache keeps one filter per block round, which accumulates the
// batches proposed during every reject round of that block round.
package bloom

import (
	"bytes"

	"github.com/bits-and-blooms/bloom/v3"
	"go.dedis.ch/odo/core/txn"
	"golang.org/x/xerrors"
)

// ErrMalformedFilter is returned when a serialized filter can't be decoded or
// does not match the parameters.
var ErrMalformedFilter = xerrors.New("malformed bloom filter")

const (
	// DefaultCapacity is the default number of identifiers a filter is sized
	// for.
	DefaultCapacity = 3000

	// DefaultFalsePositiveRate is the default false positive rate at capacity.
	DefaultFalsePositiveRate = 0.01
)

// Params are the parameters of a filter. They must be the same for every
// participant.
type Params struct {
	Capacity          uint
	FalsePositiveRate float64
}

// DefaultParams returns the default parameters.
func DefaultParams() Params {
	return Params{
		Capacity:          DefaultCapacity,
		FalsePositiveRate: DefaultFalsePositiveRate,
	}
}

// Size returns the number of bits and hash functions of a filter.
func (p Params) Size() (m uint, k uint) {
	return bloom.EstimateParameters(p.Capacity, p.FalsePositiveRate)
}

// EncodedLen returns the length in bytes of a serialized filter, which is the
// number of bits, the number of hash functions, and the length of the bitset
// followed by its words.
func (p Params) EncodedLen() int {
	m, _ := p.Size()

	words := (m + 63) / 64

	return 8 + 8 + 8 + int(words)*8
}

// Filter is a bloom filter over batch identifiers.
type Filter struct {
	params Params
	bf     *bloom.BloomFilter
}

// NewFilter returns an empty filter.
func NewFilter(params Params) *Filter {
	m, k := params.Size()

	return &Filter{
		params: params,
		bf:     bloom.New(m, k),
	}
}

// FromBytes decodes a filter. It returns ErrMalformedFilter if the data is not
// a filter with the expected parameters.
func FromBytes(params Params, data []byte) (*Filter, error) {
	// The length is checked first so that a forged header can't request a
	// large allocation.
	expected := params.EncodedLen()
	if len(data) != expected {
		return nil, xerrors.Errorf("invalid length %d != %d: %w",
			len(data), expected, ErrMalformedFilter)
	}

	bf := &bloom.BloomFilter{}

	_, err := bf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Errorf("failed to read: %v: %w", err, ErrMalformedFilter)
	}

	m, k := params.Size()

	if bf.Cap() != m || bf.K() != k || bf.BitSet().Len() != m {
		return nil, xerrors.Errorf("got (m=%d, k=%d), expected (m=%d, k=%d): %w",
			bf.Cap(), bf.K(), m, k, ErrMalformedFilter)
	}

	return &Filter{params: params, bf: bf}, nil
}

// Add adds the identifier to the filter.
func (f *Filter) Add(id txn.BatchID) {
	f.bf.Add(id[:])
}

// MayContain returns false if the identifier has never been added, and true if
// it has possibly been added.
func (f *Filter) MayContain(id txn.BatchID) bool {
	return f.bf.Test(id[:])
}

// Merge adds every element of the other filter into this one.
func (f *Filter) Merge(other *Filter) error {
	if other == nil {
		return nil
	}

	err := f.bf.Merge(other.bf)
	if err != nil {
		return xerrors.Errorf("failed to merge: %v", err)
	}

	return nil
}

// Copy returns an independent copy of the filter.
func (f *Filter) Copy() *Filter {
	return &Filter{
		params: f.params,
		bf:     f.bf.Copy(),
	}
}

// IsEmpty returns true if no identifier has been added.
func (f *Filter) IsEmpty() bool {
	return f.bf.BitSet().None()
}

// FillRatio returns the proportion of bits set.
func (f *Filter) FillRatio() float64 {
	bits := f.bf.BitSet()

	return float64(bits.Count()) / float64(bits.Len())
}

// Equal returns true if both filters have the same parameters and bits.
func (f *Filter) Equal(other *Filter) bool {
	return other != nil && f.bf.Equal(other.bf)
}

// MarshalBinary implements encoding.BinaryMarshaler. It returns the
// serialized filter.
func (f *Filter) MarshalBinary() ([]byte, error) {
	buffer := new(bytes.Buffer)

	_, err := f.bf.WriteTo(buffer)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return buffer.Bytes(), nil
}
