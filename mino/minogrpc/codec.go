package minogrpc

import (
	"go.dedis.ch/odo/mino/minogrpc/ptypes"
	"golang.org/x/xerrors"
)

// codecName is the content subtype of the messages. It is the one of protobuf
// as the peers expect this format.
const codecName = "proto"

// codec encodes the messages of the ptypes package.
//
// - implements encoding.Codec
type codec struct{}

// Marshal implements encoding.Codec.
func (codec) Marshal(v interface{}) ([]byte, error) {
	msg, ok := v.(ptypes.Message)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", v)
	}

	return msg.AppendTo(nil), nil
}

// Unmarshal implements encoding.Codec.
func (codec) Unmarshal(data []byte, v interface{}) error {
	msg, ok := v.(ptypes.Message)
	if !ok {
		return xerrors.Errorf("unsupported message of type '%T'", v)
	}

	err := msg.Unmarshal(data)
	if err != nil {
		return xerrors.Errorf("failed to decode: %v", err)
	}

	return nil
}

// Name implements encoding.Codec.
func (codec) Name() string {
	return codecName
}
