// Package realtime provides the concrete transport and push-channel
// adapters: a websocket session transport for the connection manager and a
// NATS subscriber for the reconciler's push channel.
package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/connection"
)

// ErrNotConnected is returned when an operation needs a live websocket and
// there is none.
var ErrNotConnected = errors.New("websocket not connected")

const websocketWriteTimeout = 10 * time.Second

// WebsocketTransport implements connection.Transport over a gorilla
// websocket. Ping round trips ride on websocket ping/pong control frames.
type WebsocketTransport struct {
	url    string
	header http.Header
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	pongCh chan struct{}
}

var _ connection.Transport = (*WebsocketTransport)(nil)

// NewWebsocketTransport builds a transport that dials the given websocket
// URL. The header is sent on every dial (auth tokens and the like).
func NewWebsocketTransport(url string, header http.Header) *WebsocketTransport {
	return &WebsocketTransport{
		url:    url,
		header: header,
		dialer: websocket.DefaultDialer,
	}
}

// Connect dials the websocket. Any previous connection is discarded first.
func (t *WebsocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.mu.Unlock()

	conn, _, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return err
	}

	pongCh := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	t.mu.Lock()
	t.conn = conn
	t.pongCh = pongCh
	t.mu.Unlock()

	// Pong handlers only fire while a read is in progress, so a reader must
	// run for the lifetime of the connection.
	go t.readLoop(conn)

	log.Debug().Str("url", t.url).Msg("websocket connected")
	return nil
}

// Disconnect sends a close frame and tears the connection down.
func (t *WebsocketTransport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.pongCh = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	deadline := time.Now().Add(websocketWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

// Ping sends a websocket ping and waits for the pong, returning the round
// trip time. A context deadline overrun counts as a transport drop.
func (t *WebsocketTransport) Ping(ctx context.Context) (time.Duration, error) {
	t.mu.Lock()
	conn := t.conn
	pongCh := t.pongCh
	t.mu.Unlock()

	if conn == nil {
		return 0, ErrNotConnected
	}

	// Drain a stale pong left over from an earlier timed-out ping.
	select {
	case <-pongCh:
	default:
	}

	start := time.Now()
	deadline := start.Add(websocketWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		return 0, err
	}

	select {
	case <-pongCh:
		return time.Since(start), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// readLoop keeps the connection's read side alive so control frames are
// processed. Data frames from the session are not consumed here; the push
// channel carries them separately.
func (t *WebsocketTransport) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("websocket read loop ended")
			}
			return
		}
	}
}
