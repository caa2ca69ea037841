// Package ptypes contains the messages of the ordering RPCs and their encoding
// in the protobuf wire format. The definitions are in ordering.proto.
//
// The messages are encoded by hand with protowire so that no code generation
// is required. An optional field is encoded only when it is present, which is
// how a oneof with a single member behaves, so that an absent value and an
// empty one stay different.
package ptypes

import (
	"google.golang.org/protobuf/encoding/protowire"
	"golang.org/x/xerrors"
)

// ProtoFile is the name of the file defining the messages and the services.
const ProtoFile = "ordering.proto"

// Message is implemented by the messages of the package.
type Message interface {
	// AppendTo appends the encoding of the message to the buffer and returns
	// the extended buffer.
	AppendTo(b []byte) []byte

	// Unmarshal resets the message with the content of the data.
	Unmarshal(data []byte) error
}

// Transaction is the message of a transaction.
type Transaction struct {
	Payload  []byte
	BatchKey []byte
}

// AppendTo implements ptypes.Message.
func (m *Transaction) AppendTo(b []byte) []byte {
	b = appendBytes(b, 1, m.Payload)
	b = appendBytes(b, 2, m.BatchKey)

	return b
}

// Unmarshal implements ptypes.Message.
func (m *Transaction) Unmarshal(data []byte) error {
	*m = Transaction{}

	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.Payload)
		case 2:
			return consumeBytes(typ, b, &m.BatchKey)
		}

		return 0, nil
	})
}

// Batch is the message of a batch.
type Batch struct {
	Transactions []*Transaction
}

// AppendTo implements ptypes.Message.
func (m *Batch) AppendTo(b []byte) []byte {
	for _, tx := range m.Transactions {
		b = appendMessage(b, 1, tx)
	}

	return b
}

// Unmarshal implements ptypes.Message.
func (m *Batch) Unmarshal(data []byte) error {
	*m = Batch{}

	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			tx := new(Transaction)
			m.Transactions = append(m.Transactions, tx)

			return consumeMessage(typ, b, tx)
		}

		return 0, nil
	})
}

// Round is the message of a round.
type Round struct {
	BlockRound  uint64
	RejectRound uint32
}

// AppendTo implements ptypes.Message.
func (m *Round) AppendTo(b []byte) []byte {
	b = appendVarint(b, 1, m.BlockRound)
	b = appendVarint(b, 2, uint64(m.RejectRound))

	return b
}

// Unmarshal implements ptypes.Message.
func (m *Round) Unmarshal(data []byte) error {
	*m = Round{}

	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeVarint(typ, b, func(v uint64) { m.BlockRound = v })
		case 2:
			return consumeVarint(typ, b, func(v uint64) { m.RejectRound = uint32(v) })
		}

		return 0, nil
	})
}

// Proposal is the message of a proposal. The hash is not part of it as it is
// derived from the batches.
type Proposal struct {
	Round   *Round
	Batches []*Batch
}

// AppendTo implements ptypes.Message.
func (m *Proposal) AppendTo(b []byte) []byte {
	if m.Round != nil {
		b = appendMessage(b, 1, m.Round)
	}

	for _, batch := range m.Batches {
		b = appendMessage(b, 2, batch)
	}

	return b
}

// Unmarshal implements ptypes.Message.
func (m *Proposal) Unmarshal(data []byte) error {
	*m = Proposal{}

	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			m.Round = new(Round)
			return consumeMessage(typ, b, m.Round)
		case 2:
			batch := new(Batch)
			m.Batches = append(m.Batches, batch)

			return consumeMessage(typ, b, batch)
		}

		return 0, nil
	})
}

// TransactionList is the message of the raw transactions.
type TransactionList struct {
	Transactions []*Transaction
}

// AppendTo implements ptypes.Message.
func (m *TransactionList) AppendTo(b []byte) []byte {
	for _, tx := range m.Transactions {
		b = appendMessage(b, 1, tx)
	}

	return b
}

// Unmarshal implements ptypes.Message.
func (m *TransactionList) Unmarshal(data []byte) error {
	// The encoding is the same as a batch.
	batch := Batch{}

	err := batch.Unmarshal(data)
	if err != nil {
		return err
	}

	m.Transactions = batch.Transactions

	return nil
}

// BatchList is the message of the submission of batches.
type BatchList struct {
	Batches []*Batch
}

// AppendTo implements ptypes.Message.
func (m *BatchList) AppendTo(b []byte) []byte {
	for _, batch := range m.Batches {
		b = appendMessage(b, 1, batch)
	}

	return b
}

// Unmarshal implements ptypes.Message.
func (m *BatchList) Unmarshal(data []byte) error {
	*m = BatchList{}

	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			batch := new(Batch)
			m.Batches = append(m.Batches, batch)

			return consumeMessage(typ, b, batch)
		}

		return 0, nil
	})
}

// ProposalRequest is the message of a proposal request. A nil bloom filter is
// absent, while a non-nil empty one is present.
type ProposalRequest struct {
	Round       *Round
	BloomFilter []byte
}

// AppendTo implements ptypes.Message.
func (m *ProposalRequest) AppendTo(b []byte) []byte {
	if m.Round != nil {
		b = appendMessage(b, 1, m.Round)
	}

	if m.BloomFilter != nil {
		b = appendPresentBytes(b, 2, m.BloomFilter)
	}

	return b
}

// Unmarshal implements ptypes.Message.
func (m *ProposalRequest) Unmarshal(data []byte) error {
	*m = ProposalRequest{}

	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			m.Round = new(Round)
			return consumeMessage(typ, b, m.Round)
		case 2:
			return consumeBytes(typ, b, &m.BloomFilter)
		}

		return 0, nil
	})
}

// ProposalResponse is the message of the response to a proposal request. A
// nil hash is absent.
type ProposalResponse struct {
	BloomFilter  []byte
	Proposal     *Proposal
	ProposalHash []byte
}

// AppendTo implements ptypes.Message.
func (m *ProposalResponse) AppendTo(b []byte) []byte {
	b = appendBytes(b, 1, m.BloomFilter)

	if m.Proposal != nil {
		b = appendMessage(b, 2, m.Proposal)
	}

	if m.ProposalHash != nil {
		b = appendPresentBytes(b, 3, m.ProposalHash)
	}

	return b
}

// Unmarshal implements ptypes.Message.
func (m *ProposalResponse) Unmarshal(data []byte) error {
	*m = ProposalResponse{}

	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.BloomFilter)
		case 2:
			m.Proposal = new(Proposal)
			return consumeMessage(typ, b, m.Proposal)
		case 3:
			return consumeBytes(typ, b, &m.ProposalHash)
		}

		return 0, nil
	})
}

// Empty is the message without content.
type Empty struct{}

// AppendTo implements ptypes.Message.
func (m *Empty) AppendTo(b []byte) []byte {
	return b
}

// Unmarshal implements ptypes.Message. Unknown fields are ignored.
func (m *Empty) Unmarshal(data []byte) error {
	return consumeFields(data, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return 0, nil
	})
}

// appendBytes appends the field unless it is empty, which is the default
// value.
func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}

	return appendPresentBytes(b, num, v)
}

func appendPresentBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, m Message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.AppendTo(nil))
}

// fieldFn decodes the value of the field at the beginning of the data and
// returns the number of bytes read. It returns zero for an unknown field.
type fieldFn func(num protowire.Number, typ protowire.Type, data []byte) (int, error)

func consumeFields(data []byte, fn fieldFn) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return xerrors.Errorf("invalid tag: %v", protowire.ParseError(n))
		}

		data = data[n:]

		n, err := fn(num, typ, data)
		if err != nil {
			return xerrors.Errorf("field %d: %v", num, err)
		}

		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return xerrors.Errorf("field %d: %v", num, protowire.ParseError(n))
			}
		}

		data = data[n:]
	}

	return nil
}

func consumeBytes(typ protowire.Type, data []byte, out *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, xerrors.Errorf("unexpected wire type %d", typ)
	}

	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}

	// The value is copied so that it is never nil once present.
	*out = append([]byte{}, v...)

	return n, nil
}

func consumeVarint(typ protowire.Type, data []byte, set func(uint64)) (int, error) {
	if typ != protowire.VarintType {
		return 0, xerrors.Errorf("unexpected wire type %d", typ)
	}

	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}

	set(v)

	return n, nil
}

func consumeMessage(typ protowire.Type, data []byte, m Message) (int, error) {
	var raw []byte

	n, err := consumeBytes(typ, data, &raw)
	if err != nil {
		return 0, err
	}

	err = m.Unmarshal(raw)
	if err != nil {
		return 0, err
	}

	return n, nil
}
