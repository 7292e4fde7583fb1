// Package transport provides the connection drivers used by the session
// layer.
//
// Every driver implements Channel: a blocking Connect, a non-blocking Send
// that queues whole frames for a writer goroutine, and event handlers for
// sent, received, and disconnected. Three drivers are provided:
//
//   - TCPChannel (Stream): 4-byte big-endian length prefix per frame.
//   - UDPChannel (Datagram): one frame per datagram.
//   - WSChannel (Message): one binary WebSocket message per frame.
//
// MockChannel and MockFactory simulate the network in tests.
package transport
