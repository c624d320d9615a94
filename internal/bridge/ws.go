package bridge

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/avatarsync/internal/bus"
)

// WSClient is the producer end of a websocket bridge: it dials the consumer
// runtime, writes batch envelopes, and reads fence/telemetry envelopes.
type WSClient struct {
	url    string
	events *bus.EventBus
	logger zerolog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc

	fences    chan Fence
	telemetry chan Telemetry
}

// NewWSClient creates a producer-side websocket transport. A nil event bus
// disables connection-event publication.
func NewWSClient(url string, events *bus.EventBus, logger zerolog.Logger) *WSClient {
	return &WSClient{
		url:       url,
		events:    events,
		logger:    logger.With().Str("component", "bridge-ws-client").Logger(),
		fences:    make(chan Fence, 16),
		telemetry: make(chan Telemetry, 16),
	}
}

func (c *WSClient) publish(ev bus.Event) {
	if c.events != nil {
		c.events.Publish(ev)
	}
}

// Connect establishes the connection and starts the read loop with
// reconnection backoff.
func (c *WSClient) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.connectLoop(ctx)
	return nil
}

func (c *WSClient) connectLoop(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.runConn(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("bridge connection lost, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func (c *WSClient) runConn(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.logger.Info().Str("url", c.url).Msg("bridge connected")
	c.publish(bus.Event{Type: bus.EventTypeBridgeConnected, Data: map[string]any{"url": c.url}})

	defer func() {
		c.mu.Lock()
		c.connected = false
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
		c.publish(bus.Event{Type: bus.EventTypeBridgeDisconnected, Data: map[string]any{"url": c.url}})
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch env.Type {
		case EnvelopeFence:
			if env.Fence != nil {
				select {
				case c.fences <- *env.Fence:
				default:
				}
			}
		case EnvelopeTelemetry:
			if env.Telemetry != nil {
				select {
				case c.telemetry <- *env.Telemetry:
				default:
				}
			}
		default:
			c.logger.Debug().Str("type", env.Type).Msg("unexpected envelope from consumer")
		}
	}
}

func (c *WSClient) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *WSClient) SendBatch(b Batch) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotReady
	}
	if err := conn.WriteJSON(Envelope{Type: EnvelopeBatch, Batch: &b}); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

func (c *WSClient) Fences() <-chan Fence        { return c.fences }
func (c *WSClient) Telemetry() <-chan Telemetry { return c.telemetry }

func (c *WSClient) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	return nil
}

// WSEndpoint is the consumer end: an HTTP handler that accepts the
// producer's connection and relays envelopes. One producer at a time; a new
// connection replaces the old one.
type WSEndpoint struct {
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	conn *websocket.Conn

	batches chan Batch
}

// NewWSEndpoint creates a consumer-side websocket transport.
func NewWSEndpoint(logger zerolog.Logger) *WSEndpoint {
	return &WSEndpoint{
		logger: logger.With().Str("component", "bridge-ws-endpoint").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		batches: make(chan Batch, 16),
	}
}

// ServeHTTP upgrades the producer's connection and reads batch envelopes
// until it drops. Malformed envelopes are logged and skipped; prior targets
// stay in effect.
func (e *WSEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}

	e.mu.Lock()
	if e.conn != nil {
		e.conn.Close()
	}
	e.conn = conn
	e.mu.Unlock()
	e.logger.Info().Str("remote", r.RemoteAddr).Msg("producer connected")

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			e.logger.Info().Err(err).Msg("producer disconnected")
			break
		}

		if env.Type != EnvelopeBatch || env.Batch == nil {
			e.logger.Warn().Str("type", env.Type).Msg("malformed envelope discarded")
			continue
		}

		select {
		case e.batches <- *env.Batch:
		default:
			// Consumer is behind; the batch is lost, later ones
			// supersede it anyway.
		}
	}

	e.mu.Lock()
	if e.conn == conn {
		e.conn = nil
	}
	e.mu.Unlock()
}

func (e *WSEndpoint) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.conn != nil
}

func (e *WSEndpoint) Batches() <-chan Batch { return e.batches }

func (e *WSEndpoint) write(env Envelope) error {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()

	if conn == nil {
		return ErrNotReady
	}
	return conn.WriteJSON(env)
}

func (e *WSEndpoint) SignalFence(f Fence) error {
	return e.write(Envelope{Type: EnvelopeFence, Fence: &f})
}

func (e *WSEndpoint) SendTelemetry(t Telemetry) error {
	return e.write(Envelope{Type: EnvelopeTelemetry, Telemetry: &t})
}

func (e *WSEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	return nil
}
