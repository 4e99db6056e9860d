//file: internal/broker/types.go
// Package broker owns the two MQTT connections, their subscription
// state, and the forwarding/reload machinery built on top of them.
package broker

import (
	"time"

	"mqtt-span-bridge/internal/rule"
)

// State represents the current state of a broker connection
type State string

const (
	// StateDisconnected indicates the side is not connected
	StateDisconnected State = "disconnected"
	// StateConnecting indicates the side is attempting its first connect
	StateConnecting State = "connecting"
	// StateConnected indicates the side is connected
	StateConnected State = "connected"
	// StateReconnecting indicates the client is re-establishing a lost
	// connection
	StateReconnecting State = "reconnecting"
)

// Connection is the transport capability one side exposes to the engine.
// The supervisor implements it against a live MQTT client; tests provide
// their own.
type Connection interface {
	// Subscribe adds a topic filter subscription at the given QoS.
	Subscribe(filter string, qos byte) error

	// Unsubscribe removes a topic filter subscription.
	Unsubscribe(filter string) error

	// Publish publishes a message on this side.
	Publish(topic string, payload []byte, qos byte, retain bool) error

	// IsConnected reports whether the side is currently connected.
	IsConnected() bool

	// Side returns which side of the bridge this connection serves.
	Side() rule.Side
}

// MessageHandler receives inbound messages from a side's connection. It
// is invoked off the client's read path and may block on I/O.
type MessageHandler func(msg rule.Inbound)

// Timeouts applied to individual client operations. A timed-out
// operation is reported as a failure and feeds the normal retry path.
const (
	connectTimeout   = 10 * time.Second
	operationTimeout = 5 * time.Second
	disconnectGrace  = 250 // milliseconds, paho quiesce
)

// Backoff returns the delay before the given consecutive failed connect
// attempt. Pure function: base 500ms doubling per attempt, capped at 30s.
func Backoff(attempt int) time.Duration {
	const (
		base = 500 * time.Millisecond
		max  = 30 * time.Second
	)
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}
