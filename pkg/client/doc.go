// Package client provides an embeddable game server session.
//
// A Client keeps one connection to a game server over a stream (TCP),
// datagram (UDP), or message (WebSocket) channel. It correlates requests
// with responses by message id, allows one in-flight request per route,
// throttles outbound traffic with a token bucket, and keeps the connection
// alive with heartbeats and automatic reconnects.
//
// # Basic Usage
//
//	cfg := client.DefaultConfig()
//	cfg.Host = "game.example.com"
//	cfg.Port = 9090
//
//	c, err := client.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	if err := c.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := c.Request(ctx, route.Merge(1, 5), payload)
//
// # Sending
//
// [Client.SendAsync] returns a [SendResult] synchronously; anything other
// than ResultSuccess means nothing was sent and the call may be retried.
// [Client.Send] and [Client.Request] wait for the response. [Client.Notify]
// sends without expecting one.
//
// # Event Handling
//
// To receive state changes, server broadcasts, and connection errors,
// implement [EventHandler] (or use [EventHandlerFuncs]) and pass it via
// [WithEventHandler]. Events are delivered in order on a dedicated
// goroutine, so handlers may call back into the client.
//
// # Connection States
//
// The client moves through these states:
//   - StateDisconnected: initial state, or after Disconnect or a failed connect
//   - StateConnecting: first connection attempt in progress
//   - StateConnected: session is usable
//   - StateReconnecting: connection lost, reconnect attempts in progress
//   - StateClosed: terminal, after Close
//
// # Plugins
//
// Plugins registered with [WithPlugin] are initialized on the first Connect
// and receive a [Tuner] for changing rate limiting and deduplication at
// runtime.
package client
