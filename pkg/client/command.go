package client

import (
	"sync"

	"github.com/piscesgamedev/pisces/pkg/codec"
	"github.com/piscesgamedev/pisces/pkg/route"
)

// requestCommand is one outbound frame on its way to the transport.
type requestCommand struct {
	kind           codec.CmdCode
	msgID          uint32
	route          route.ID
	protocolSwitch int32
	payload        []byte
}

var commandPool = sync.Pool{
	New: func() any { return new(requestCommand) },
}

func newBusinessCommand(msg *codec.Message, msgID uint32) *requestCommand {
	cmd := commandPool.Get().(*requestCommand)
	cmd.kind = codec.CmdBusiness
	cmd.msgID = msgID
	cmd.route = msg.Route
	cmd.protocolSwitch = msg.ProtocolSwitch
	cmd.payload = msg.Data
	return cmd
}

func newHeartbeatCommand() *requestCommand {
	cmd := commandPool.Get().(*requestCommand)
	cmd.kind = codec.CmdHeartbeat
	return cmd
}

// encode returns a new frame. The frame is not reused, so it may be queued
// by the transport after the command is released.
func (c *requestCommand) encode() []byte {
	buf := make([]byte, 0, 24+len(c.payload))
	return codec.AppendFrame(buf, &codec.Message{
		CmdCode:        c.kind,
		ProtocolSwitch: c.protocolSwitch,
		Route:          c.route,
		Data:           c.payload,
		MsgID:          c.msgID,
	})
}

func (c *requestCommand) reset() {
	*c = requestCommand{}
}

func (c *requestCommand) release() {
	c.reset()
	commandPool.Put(c)
}
