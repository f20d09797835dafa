// ABOUTME: Package gateway assembles the relay gateway server
// ABOUTME: Websocket endpoint, HTTP API, metrics, and lifecycle orchestration

// Package gateway wires the connection registry, history sampler, and
// service manager behind one HTTP server and owns their shared lifecycle:
// Run blocks until the context is canceled, then shuts every component down
// in dependency order.
package gateway
