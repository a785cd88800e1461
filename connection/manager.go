package connection

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdReconnect
	cmdRetryNow
	cmdOnline
	cmdOffline
)

type command struct {
	kind commandKind
}

// Manager drives one session over a Transport through the connection state
// machine. All transitions are processed by a single goroutine, so no two
// transitions ever run concurrently. Public methods enqueue commands and
// return immediately.
type Manager struct {
	transport Transport
	call      MediaCall
	cfg       Config
	cb        Callbacks
	clock     clockwork.Clock

	ctx       context.Context
	cancel    context.CancelFunc
	cmdCh     chan command
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.RWMutex
	session Session
	rtts    []time.Duration

	// Owned exclusively by the run goroutine.
	wantConnected bool
	backoffTimer  clockwork.Timer
	heartbeat     clockwork.Ticker
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock swaps the manager's clock. Tests use a clockwork fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithMediaCall attaches a stream media call whose lifecycle follows the
// session: joined after a successful connect, left before disconnect. Join
// failures do not fail the session; the auction remains usable without media.
func WithMediaCall(call MediaCall) Option {
	return func(m *Manager) {
		m.call = call
	}
}

// NewManager builds a manager over the transport and starts its run
// goroutine. The session begins in StateDisconnected; nothing happens until
// Connect is called. Callers must Close the manager when done with it.
func NewManager(transport Transport, cfg Config, cb Callbacks, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		transport: transport,
		cfg:       cfg,
		cb:        cb,
		clock:     clockwork.NewRealClock(),
		ctx:       ctx,
		cancel:    cancel,
		cmdCh:     make(chan command, 16),
		done:      make(chan struct{}),
		session:   Session{State: StateDisconnected, Quality: QualityUnknown},
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.run()
	return m
}

// Connect asks the manager to establish the session. Ignored unless the
// session is currently disconnected.
func (m *Manager) Connect() { m.send(cmdConnect) }

// Disconnect tears the session down. This is terminal for the session: no
// automatic reconnection happens afterwards until Connect is called again.
func (m *Manager) Disconnect() { m.send(cmdDisconnect) }

// Reconnect resumes connecting after the manager has settled into
// StateError. It resets the attempt counter and tries immediately.
func (m *Manager) Reconnect() { m.send(cmdReconnect) }

// RetryNow short-circuits a pending backoff timer. Foreground and
// network-restore events should call this rather than waiting the timer out.
func (m *Manager) RetryNow() { m.send(cmdRetryNow) }

// SetOnline feeds device network reachability into the state machine. When
// the device reports no network the session parks in StateOffline; when the
// network returns a wanted session is retried immediately.
func (m *Manager) SetOnline(online bool) {
	if online {
		m.send(cmdOnline)
	} else {
		m.send(cmdOffline)
	}
}

// Session returns a read-only copy of the current session.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// State returns the current connection state.
func (m *Manager) State() State { return m.Session().State }

// Quality returns the current advisory connection quality.
func (m *Manager) Quality() Quality { return m.Session().Quality }

// Close cancels all timers, stops the run goroutine, and disconnects the
// transport. It is idempotent and safe to call from any goroutine.
func (m *Manager) Close() {
	m.closeOnce.Do(m.cancel)
	<-m.done
}

func (m *Manager) send(k commandKind) {
	select {
	case m.cmdCh <- command{kind: k}:
	case <-m.ctx.Done():
	}
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		var backoffCh <-chan time.Time
		if m.backoffTimer != nil {
			backoffCh = m.backoffTimer.Chan()
		}
		var heartbeatCh <-chan time.Time
		if m.heartbeat != nil {
			heartbeatCh = m.heartbeat.Chan()
		}

		select {
		case <-m.ctx.Done():
			m.stopTimers()
			if s := m.State(); s == StateConnected || s == StateConnecting || s == StateReconnecting {
				m.disconnectTransport()
			}
			log.Debug().Msg("connection manager closed")
			return
		case cmd := <-m.cmdCh:
			m.handleCommand(cmd)
		case <-backoffCh:
			m.backoffTimer = nil
			m.attemptConnect()
		case <-heartbeatCh:
			m.runHeartbeat()
		}
	}
}

func (m *Manager) handleCommand(cmd command) {
	state := m.State()
	switch cmd.kind {
	case cmdConnect:
		if state != StateDisconnected {
			return
		}
		m.wantConnected = true
		m.resetAttempts()
		m.attemptConnect()

	case cmdDisconnect:
		m.wantConnected = false
		m.stopTimers()
		if state == StateDisconnected {
			return
		}
		if state == StateConnected || state == StateConnecting || state == StateReconnecting {
			m.disconnectTransport()
		}
		m.resetQuality()
		m.setState(StateDisconnected)

	case cmdReconnect:
		if state != StateError && state != StateDisconnected {
			return
		}
		m.wantConnected = true
		m.resetAttempts()
		m.attemptConnect()

	case cmdRetryNow:
		if state != StateReconnecting || m.backoffTimer == nil {
			return
		}
		stopAndDrainTimer(m.backoffTimer)
		m.backoffTimer = nil
		m.attemptConnect()

	case cmdOffline:
		if state == StateOffline {
			return
		}
		m.stopTimers()
		if state == StateConnected {
			m.disconnectTransport()
		}
		m.resetQuality()
		m.setState(StateOffline)

	case cmdOnline:
		if state != StateOffline {
			return
		}
		if !m.wantConnected {
			m.setState(StateDisconnected)
			return
		}
		m.resetAttempts()
		m.setState(StateConnecting)
		m.attemptConnect()
	}
}

// attemptConnect performs one transport connect. On success the session
// moves to StateConnected and the heartbeat starts; on failure the next
// attempt is scheduled with backoff, or the session settles into StateError
// once the attempt ceiling is reached.
func (m *Manager) attemptConnect() {
	if m.State() != StateReconnecting {
		m.setState(StateConnecting)
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.ConnectTimeout)
	err := m.transport.Connect(ctx)
	cancel()

	if err == nil {
		m.mu.Lock()
		m.session.ReconnectAttempt = 0
		m.session.LastError = nil
		m.mu.Unlock()
		m.setState(StateConnected)
		m.joinCall()
		m.startHeartbeat()
		return
	}

	m.recordError(err)
	attempt := m.incrementAttempt()
	if attempt >= m.cfg.MaxAttempts {
		log.Warn().
			Int("attempts", attempt).
			Msg("reconnect attempts exhausted, settling into error state")
		m.setState(StateError)
		return
	}

	m.setState(StateReconnecting)
	delay := m.backoffDelay(attempt)
	if m.cb.OnReconnectAttempt != nil {
		m.cb.OnReconnectAttempt(attempt, delay)
	}
	log.Debug().
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("scheduling reconnect attempt")
	m.backoffTimer = m.clock.NewTimer(delay)
}

// backoffDelay computes the delay before the next attempt: exponential in
// the number of failures, capped at MaxDelay, plus jitter in [0, BaseDelay)
// so a fleet of clients does not reconnect in lockstep.
func (m *Manager) backoffDelay(attempt int) time.Duration {
	exp := m.cfg.MaxDelay
	if shift := attempt - 1; shift < 32 {
		if d := m.cfg.BaseDelay << shift; d > 0 && d < m.cfg.MaxDelay {
			exp = d
		}
	}
	jitter := time.Duration(rand.Int64N(int64(m.cfg.BaseDelay)))
	return exp + jitter
}

func (m *Manager) runHeartbeat() {
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.PingTimeout)
	rtt, err := m.transport.Ping(ctx)
	cancel()

	if err != nil {
		log.Warn().Err(err).Msg("heartbeat failed, treating as transport drop")
		m.recordError(fmt.Errorf("heartbeat: %w", err))
		m.stopHeartbeat()
		m.resetQuality()
		m.disconnectTransport()
		m.resetAttempts()
		m.setState(StateReconnecting)
		m.attemptConnect()
		return
	}
	m.observeRTT(rtt)
}

func (m *Manager) observeRTT(rtt time.Duration) {
	m.mu.Lock()
	m.rtts = append(m.rtts, rtt)
	if len(m.rtts) > m.cfg.QualityWindow {
		m.rtts = m.rtts[len(m.rtts)-m.cfg.QualityWindow:]
	}
	var total time.Duration
	for _, d := range m.rtts {
		total += d
	}
	quality := classifyRTT(total / time.Duration(len(m.rtts)))
	changed := quality != m.session.Quality
	m.session.Quality = quality
	m.mu.Unlock()

	if changed {
		log.Debug().Str("quality", string(quality)).Dur("rtt", rtt).Msg("connection quality changed")
		if m.cb.OnQualityChange != nil {
			m.cb.OnQualityChange(quality)
		}
	}
}

func (m *Manager) setState(next State) {
	m.mu.Lock()
	prev := m.session.State
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.session.State = next
	m.mu.Unlock()

	log.Debug().Str("from", string(prev)).Str("to", string(next)).Msg("connection state changed")
	if m.cb.OnStateChange != nil {
		m.cb.OnStateChange(prev, next)
	}
}

func (m *Manager) recordError(err error) {
	m.mu.Lock()
	m.session.LastError = err
	m.mu.Unlock()
	if m.cb.OnError != nil {
		m.cb.OnError(err)
	}
}

func (m *Manager) incrementAttempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.ReconnectAttempt++
	return m.session.ReconnectAttempt
}

func (m *Manager) resetAttempts() {
	m.mu.Lock()
	m.session.ReconnectAttempt = 0
	m.mu.Unlock()
}

func (m *Manager) resetQuality() {
	m.mu.Lock()
	m.rtts = nil
	changed := m.session.Quality != QualityUnknown
	m.session.Quality = QualityUnknown
	m.mu.Unlock()
	if changed && m.cb.OnQualityChange != nil {
		m.cb.OnQualityChange(QualityUnknown)
	}
}

func (m *Manager) startHeartbeat() {
	m.stopHeartbeat()
	m.heartbeat = m.clock.NewTicker(m.cfg.HeartbeatInterval)
}

func (m *Manager) stopHeartbeat() {
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
}

func (m *Manager) stopTimers() {
	if m.backoffTimer != nil {
		stopAndDrainTimer(m.backoffTimer)
		m.backoffTimer = nil
	}
	m.stopHeartbeat()
}

func (m *Manager) disconnectTransport() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()
	if m.call != nil {
		if err := m.call.Leave(ctx); err != nil {
			log.Debug().Err(err).Msg("media call leave failed")
		}
	}
	if err := m.transport.Disconnect(ctx); err != nil {
		log.Debug().Err(err).Msg("transport disconnect failed")
	}
}

func (m *Manager) joinCall() {
	if m.call == nil {
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.ConnectTimeout)
	defer cancel()
	if err := m.call.Join(ctx); err != nil {
		log.Warn().Err(err).Msg("media call join failed, continuing without media")
	}
}

// stopAndDrainTimer stops a timer and drains its channel so a fired-but-
// unread tick cannot leak into a later select.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
