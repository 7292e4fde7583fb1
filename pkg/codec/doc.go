// Package codec encodes the frame envelope exchanged with the game server
// and issues message ids.
//
// The envelope carries the command code, route, message id, response
// status, and an opaque data payload. Payload encoding is left to the
// application.
package codec
