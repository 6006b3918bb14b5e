// Package timeouts defines shared timeout constants used across the relay,
// the scene store and the client runtime.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing the scene store.
const GRPCDial = 2 * time.Second

// GRPCRequest caps a single scene store call.
const GRPCRequest = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long a server waits for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// Persist caps one commit's save through the persistence gateway.
const Persist = 5 * time.Second

// JoinAck is how long a session waits for the relay roster after join.
const JoinAck = 5 * time.Second

// WSWrite caps a single relay frame write.
const WSWrite = 5 * time.Second
