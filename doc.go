// Package toolrelay relays tool calls over the SSE pairing: a long-lived
// Server-Sent-Events stream per session plus a companion POST endpoint
// (the MCP 2024-11-05 HTTP+SSE transport shape).
//
// The package provides both halves of the wire:
//
//   - [Server] owns sessions, accepts calls with 202 and streams each
//     ToolResponse back on the session's stream.
//   - [Client] connects a stream, completes the endpoint handshake and
//     exposes a synchronous [Client.Call] over the asynchronous wire.
//   - [Registry] holds the tools; [RegisterTool] derives and enforces a
//     JSON Schema from the tool's typed input struct.
//
// # Quick Start
//
//	srv := toolrelay.NewServer()
//	toolkit.RegisterAll(srv.Registry())
//	go srv.ListenAndServe(":8941")
//
//	c, _ := toolrelay.NewClient("http://127.0.0.1:8941")
//	if err := c.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//	result, err := c.Call(ctx, "get_weather", map[string]string{"location": "London"})
//
// Call correlates by request id, so any number of calls may be in flight
// on one session; responses arrive in completion order.
//
// # Sub-packages
//
//   - [toolkit] provides ready-made tools (weather, echo, sleep, glob).
package toolrelay
