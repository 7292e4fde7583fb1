package codec

import (
	"fmt"

	"github.com/piscesgamedev/pisces/pkg/route"
)

// CmdCode distinguishes keepalive frames from business frames.
type CmdCode int32

const (
	CmdHeartbeat CmdCode = 0
	CmdBusiness  CmdCode = 1
)

// String returns a human-readable representation of the command code.
func (c CmdCode) String() string {
	switch c {
	case CmdHeartbeat:
		return "Heartbeat"
	case CmdBusiness:
		return "Business"
	default:
		return "Unknown"
	}
}

// Message is one frame exchanged with the server. Data is opaque to this
// package.
type Message struct {
	CmdCode        CmdCode
	ProtocolSwitch int32
	Route          route.ID
	ResponseStatus int32
	ValidMsg       string
	Data           []byte
	MsgID          uint32
}

// NewRequest builds a business message for the given route.
func NewRequest(r route.ID, data []byte) *Message {
	return &Message{CmdCode: CmdBusiness, Route: r, Data: data}
}

// NewHeartbeat builds a keepalive message: route 0, message id 0, no data.
func NewHeartbeat() *Message {
	return &Message{CmdCode: CmdHeartbeat}
}

// IsHeartbeat reports whether the message is a keepalive. Keepalives never
// carry a message id.
func (m *Message) IsHeartbeat() bool {
	return m.CmdCode == CmdHeartbeat && m.MsgID == 0
}

// IsBroadcast reports whether the message is a server push not tied to a request.
func (m *Message) IsBroadcast() bool {
	return m.CmdCode == CmdBusiness && m.MsgID == 0
}

// Err returns a *ResponseError when the server reported a failure status.
func (m *Message) Err() error {
	if m.ResponseStatus == 0 {
		return nil
	}
	return &ResponseError{Route: m.Route, Status: m.ResponseStatus, Message: m.ValidMsg}
}

// ResponseError carries a non-zero response status from the server.
type ResponseError struct {
	Route   route.ID
	Status  int32
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("route %s: server status %d", e.Route, e.Status)
	}
	return fmt.Sprintf("route %s: server status %d: %s", e.Route, e.Status, e.Message)
}
