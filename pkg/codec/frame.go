package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/piscesgamedev/pisces/pkg/route"
)

// Field numbers of the frame envelope. The layout is wire compatible with a
// protobuf message so servers can decode it with generated code.
const (
	fieldCmdCode        protowire.Number = 1
	fieldProtocolSwitch protowire.Number = 2
	fieldCmdMerge       protowire.Number = 3
	fieldResponseStatus protowire.Number = 4
	fieldValidMsg       protowire.Number = 5
	fieldData           protowire.Number = 6
	fieldMsgID          protowire.Number = 7
)

// ErrMalformedFrame is returned by Decode for bytes that are not a valid envelope.
var ErrMalformedFrame = errors.New("codec: malformed frame")

// Encode appends the wire form of m to a new buffer. Zero-valued fields are omitted.
func Encode(m *Message) []byte {
	return AppendFrame(nil, m)
}

// AppendFrame appends the wire form of m to b.
func AppendFrame(b []byte, m *Message) []byte {
	if m.CmdCode != 0 {
		b = protowire.AppendTag(b, fieldCmdCode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(m.CmdCode)))
	}
	if m.ProtocolSwitch != 0 {
		b = protowire.AppendTag(b, fieldProtocolSwitch, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(m.ProtocolSwitch)))
	}
	if m.Route != 0 {
		b = protowire.AppendTag(b, fieldCmdMerge, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Route))
	}
	if m.ResponseStatus != 0 {
		b = protowire.AppendTag(b, fieldResponseStatus, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(m.ResponseStatus)))
	}
	if m.ValidMsg != "" {
		b = protowire.AppendTag(b, fieldValidMsg, protowire.BytesType)
		b = protowire.AppendString(b, m.ValidMsg)
	}
	if len(m.Data) > 0 {
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Data)
	}
	if m.MsgID != 0 {
		b = protowire.AppendTag(b, fieldMsgID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.MsgID))
	}
	return b
}

// Decode parses a frame. Unknown fields are skipped. The returned message
// does not alias b.
func Decode(b []byte) (*Message, error) {
	m := &Message{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: tag: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldValidMsg && typ == protowire.BytesType,
			num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedFrame, num, protowire.ParseError(n))
			}
			if num == fieldValidMsg {
				m.ValidMsg = string(v)
			} else {
				m.Data = append([]byte(nil), v...)
			}
			b = b[n:]

		case num >= fieldCmdCode && num <= fieldMsgID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedFrame, num, protowire.ParseError(n))
			}
			setVarint(m, num, v)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedFrame, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return m, nil
}

func setVarint(m *Message, num protowire.Number, v uint64) {
	switch num {
	case fieldCmdCode:
		m.CmdCode = CmdCode(int32(v))
	case fieldProtocolSwitch:
		m.ProtocolSwitch = int32(v)
	case fieldCmdMerge:
		m.Route = route.ID(uint32(v))
	case fieldResponseStatus:
		m.ResponseStatus = int32(protowire.DecodeZigZag(v))
	case fieldMsgID:
		m.MsgID = uint32(v)
	}
}
