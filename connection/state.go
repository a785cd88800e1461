// Package connection maintains a long-lived session over an injected
// transport: connect with bounded jittered retry, heartbeat while connected,
// and advisory quality scoring from ping round-trip times.
package connection

import (
	"context"
	"time"
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateOffline      State = "offline"
	StateError        State = "error"
)

// Quality classifies recent heartbeat round-trip times. Quality is advisory
// only and never gates a state transition.
type Quality string

const (
	QualityUnknown   Quality = "unknown"
	QualityPoor      Quality = "poor"
	QualityFair      Quality = "fair"
	QualityGood      Quality = "good"
	QualityExcellent Quality = "excellent"
)

// RTT thresholds for quality classification.
const (
	rttExcellent = 150 * time.Millisecond
	rttGood      = 400 * time.Millisecond
	rttFair      = 900 * time.Millisecond
)

func classifyRTT(rtt time.Duration) Quality {
	switch {
	case rtt < rttExcellent:
		return QualityExcellent
	case rtt < rttGood:
		return QualityGood
	case rtt < rttFair:
		return QualityFair
	default:
		return QualityPoor
	}
}

// Transport is the capability interface a session transport must implement
// in full. Adapters own the decision of which underlying SDK calls back
// these three operations; the manager never probes for optional methods.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	// Ping measures one round trip. Implementations should honor the
	// context deadline; a timeout is treated as a transport drop.
	Ping(ctx context.Context) (time.Duration, error)
}

// Session is a read-only view of the manager's current session.
type Session struct {
	State            State
	Quality          Quality
	ReconnectAttempt int
	LastError        error
}

// Callbacks are optional observer hooks. They are invoked from the
// manager's own goroutine; implementations must not call back into the
// manager synchronously and should return quickly.
type Callbacks struct {
	OnStateChange      func(from, to State)
	OnQualityChange    func(Quality)
	OnReconnectAttempt func(attempt int, delay time.Duration)
	OnError            func(error)
}

// Config holds tunables for the connection manager.
type Config struct {
	// BaseDelay seeds the exponential backoff; it is also the jitter bound.
	BaseDelay time.Duration
	// MaxDelay caps the exponential term of the backoff.
	MaxDelay time.Duration
	// MaxAttempts is the number of consecutive failed connects tolerated
	// before the manager settles into StateError.
	MaxAttempts int
	// ConnectTimeout bounds a single transport connect call.
	ConnectTimeout time.Duration
	// HeartbeatInterval is how often to ping while connected.
	HeartbeatInterval time.Duration
	// PingTimeout bounds a single ping; exceeding it counts as a drop.
	PingTimeout time.Duration
	// QualityWindow is how many recent round trips feed the quality score.
	QualityWindow int
}

// DefaultConfig returns the default connection tunables.
func DefaultConfig() Config {
	return Config{
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       10,
		ConnectTimeout:    15 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		PingTimeout:       10 * time.Second,
		QualityWindow:     5,
	}
}
