package ontime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"github.com/stagekit/ontime-bridge/internal/host"
	"github.com/stagekit/ontime-bridge/internal/metrics"
)

const (
	defaultReconnectInterval = time.Second
	defaultHTTPTimeout       = 10 * time.Second
	closeWriteTimeout        = 2 * time.Second
)

var (
	// ErrBadConfig is returned by Connect when host or port are missing.
	ErrBadConfig = errors.New("ontime host and port must be configured")

	// ErrNotConnected reports an absent socket, e.g. to readiness checks.
	ErrNotConnected = errors.New("device socket is not connected")
)

// Config holds the device endpoint and connection policy.
type Config struct {
	// Host may carry a leading http:// or https:// scheme; it is stripped
	// before the connection URLs are built.
	Host string
	Port int

	// ReconnectInterval is the fixed delay between reconnect attempts.
	// Zero means the 1-second default. There is no backoff.
	ReconnectInterval time.Duration

	// HTTPTimeout bounds the event directory fetch. Zero means 10s.
	HTTPTimeout time.Duration
}

func (c Config) reconnectInterval() time.Duration {
	if c.ReconnectInterval <= 0 {
		return defaultReconnectInterval
	}
	return c.ReconnectInterval
}

// stripScheme removes a leading http:// or https:// from a configured host.
func stripScheme(h string) string {
	h = strings.TrimPrefix(h, "https://")
	h = strings.TrimPrefix(h, "http://")
	return strings.TrimSpace(h)
}

// Dialer opens WebSocket connections. *websocket.Dialer satisfies it; tests
// may substitute their own.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*ws.Conn, *http.Response, error)
}

// Client owns the single connection to an ontime device: its lifecycle,
// the fixed-delay reconnect policy, inbound message dispatch, and the
// in-memory event directory. All state the device pushes flows out through
// the injected host.Sink.
//
// At most one socket is open at a time. A scheduled reconnect re-validates
// at fire time that the socket is still closed and that no newer Connect
// or Disconnect superseded it.
type Client struct {
	cfg  Config
	sink host.Sink

	dialer     Dialer
	httpClient *http.Client

	// onEventsRefreshed is invoked after a successful refetch, taking the
	// place of the host's action re-registration.
	onEventsRefreshed func([]Event)

	mu         sync.Mutex
	conn       *ws.Conn
	timer      *time.Timer // pending reconnect, nil when none
	reconnect  bool        // false once Disconnect has been called
	generation int         // bumped by Connect/Disconnect to invalidate stale timers
	state      *State
	events     []Event

	writeMu sync.Mutex // serializes writes to conn
}

// Option configures a Client beyond the required Config and Sink.
type Option func(*Client)

// WithDialer substitutes the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithHTTPClient substitutes the HTTP client used for the event fetch.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEventsRefreshed registers a hook invoked with the new directory after
// every successful refetch.
func WithEventsRefreshed(fn func([]Event)) Option {
	return func(c *Client) { c.onEventsRefreshed = fn }
}

// NewClient creates a client for the given device endpoint. It does not
// connect; call Connect.
func NewClient(cfg Config, sink host.Sink, opts ...Option) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	c := &Client{
		cfg:        cfg,
		sink:       sink,
		dialer:     ws.DefaultDialer,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wsURL and httpURL build the device endpoints from the scheme-stripped host.
func (c *Client) wsURL() string {
	return fmt.Sprintf("ws://%s:%d/ws", stripScheme(c.cfg.Host), c.cfg.Port)
}

func (c *Client) httpURL() string {
	return fmt.Sprintf("http://%s:%d", stripScheme(c.cfg.Host), c.cfg.Port)
}

// Connect validates configuration and opens the socket, replacing any
// previous one. On dial failure the normal reconnect policy applies, so a
// returned error does not mean the client has given up.
func (c *Client) Connect(ctx context.Context) error {
	if stripScheme(c.cfg.Host) == "" || c.cfg.Port == 0 {
		c.sink.UpdateStatus(host.StatusBadConfig, "host and port are required")
		return ErrBadConfig
	}

	c.mu.Lock()
	c.reconnect = true
	c.generation++
	gen := c.generation
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	old := c.conn
	c.conn = nil
	c.mu.Unlock()

	// Close any pre-existing socket before opening the replacement.
	if old != nil {
		old.Close() //nolint:errcheck
	}

	return c.dial(ctx, gen)
}

// dial performs one connection attempt for the given generation.
func (c *Client) dial(ctx context.Context, gen int) error {
	c.sink.UpdateStatus(host.StatusConnecting, "")
	metrics.ConnectAttempts.Inc()

	attempt := uuid.NewString()[:8]
	url := c.wsURL()
	slog.Info("ontime.client.connecting",
		"component", "ontime",
		"event", "client.dial",
		"attempt", attempt,
		"url", url,
	)

	conn, resp, err := c.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck
	}
	if err != nil {
		slog.Warn("ontime.client.dial_failed",
			"component", "ontime",
			"event", "client.dial_error",
			"attempt", attempt,
			"error", err,
		)
		c.sink.UpdateStatus(host.StatusDisconnected, err.Error())
		c.scheduleReconnect(gen)
		return err
	}

	c.mu.Lock()
	if gen != c.generation || !c.reconnect {
		// A newer Connect or a Disconnect won the race; this socket is stale.
		c.mu.Unlock()
		conn.Close() //nolint:errcheck
		return nil
	}
	c.conn = conn
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	metrics.ConnectionUp.Set(1)
	c.sink.UpdateStatus(host.StatusOK, "")
	slog.Info("ontime.client.connected",
		"component", "ontime",
		"event", "client.connected",
		"attempt", attempt,
	)

	go c.readLoop(conn, gen)
	return nil
}

// readLoop consumes frames until the socket fails, then hands over to the
// close handling. One readLoop exists per open socket.
func (c *Client) readLoop(conn *ws.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, gen, err)
			return
		}
		c.handleFrame(data)
	}
}

// handleClose reports the loss and schedules a reconnect when still enabled.
// Socket errors carry no state transition of their own: close drives it all.
func (c *Client) handleClose(conn *ws.Conn, gen int, err error) {
	conn.Close() //nolint:errcheck

	detail := err.Error()
	var ce *ws.CloseError
	if errors.As(err, &ce) {
		detail = fmt.Sprintf("close %d: %s", ce.Code, ce.Text)
	}

	c.mu.Lock()
	if gen != c.generation || c.conn != conn {
		// A newer connection already replaced this one; nothing to report.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	metrics.ConnectionUp.Set(0)
	slog.Warn("ontime.client.disconnected",
		"component", "ontime",
		"event", "client.closed",
		"detail", detail,
	)
	c.sink.UpdateStatus(host.StatusDisconnected, detail)
	c.scheduleReconnect(gen)
}

// scheduleReconnect arms the single reconnect timer for the generation.
// At fire time the attempt is skipped if reconnection was disabled, a newer
// Connect bumped the generation, or a socket is already open again.
func (c *Client) scheduleReconnect(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.reconnect || gen != c.generation {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}

	metrics.ReconnectsScheduled.Inc()
	interval := c.cfg.reconnectInterval()
	slog.Debug("ontime.client.reconnect_scheduled",
		"component", "ontime",
		"event", "client.reconnect_scheduled",
		"interval", interval,
	)

	c.timer = time.AfterFunc(interval, func() {
		c.mu.Lock()
		stale := !c.reconnect || gen != c.generation || c.conn != nil
		if !stale {
			c.timer = nil
		}
		c.mu.Unlock()
		if stale {
			return
		}
		c.dial(context.Background(), gen) //nolint:errcheck
	})
}

// Disconnect permanently disables reconnection, cancels any pending timer
// and closes the socket. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.reconnect = false
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}

	metrics.ConnectionUp.Set(0)
	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))                                        //nolint:errcheck
	conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "bridge stop")) //nolint:errcheck
	c.writeMu.Unlock()
	conn.Close() //nolint:errcheck
}

// Connected reports whether a socket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// State returns a copy of the last snapshot, or nil before the first one.
func (c *Client) State() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil
	}
	st := *c.state
	return &st
}

// Events returns a copy of the current event directory. Empty until the
// first successful refetch.
func (c *Client) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// SendRaw sends a text frame to the device. When no socket is open the
// frame is silently dropped: no queueing, no error.
func (c *Client) SendRaw(text string) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	c.writeMu.Lock()
	err := conn.WriteMessage(ws.TextMessage, []byte(text))
	c.writeMu.Unlock()
	if err != nil {
		// The read loop will observe the failure and drive reconnection.
		slog.Debug("ontime.client.send_failed",
			"component", "ontime",
			"event", "client.send_error",
			"error", err,
		)
	}
}

// SendJSON serializes {type, payload} and sends it like SendRaw. A nil
// payload is omitted from the frame.
func (c *Client) SendJSON(msgType string, payload any) {
	env := Envelope{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			slog.Error("ontime.client.bad_payload",
				"component", "ontime",
				"event", "client.encode_error",
				"type", msgType,
				"error", err,
			)
			return
		}
		env.Payload = data
	}

	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.SendRaw(string(data))
}

// handleFrame dispatches one inbound frame by its type tag. Malformed
// frames and unrecognized types are dropped without surfacing an error;
// they are counted and logged at debug for diagnosis.
func (c *Client) handleFrame(data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		metrics.FramesDropped.Inc()
		slog.Debug("ontime.client.frame_dropped",
			"component", "ontime",
			"event", "client.frame_error",
			"error", err,
		)
		return
	}

	metrics.MessagesReceived.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case msgTypeState:
		var st State
		if err := json.Unmarshal(env.Payload, &st); err != nil {
			metrics.FramesDropped.Inc()
			slog.Debug("ontime.client.frame_dropped",
				"component", "ontime",
				"event", "client.frame_error",
				"type", env.Type,
				"error", err,
			)
			return
		}
		c.applyState(&st)

	case msgTypeRefetch:
		c.refetchEvents()

	default:
		// Other consumers share the socket; unknown types are normal traffic.
	}
}

// applyState replaces the stored snapshot wholesale and publishes the
// derived variables and feedback re-evaluations.
func (c *Client) applyState(st *State) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()

	c.sink.SetVariableValues(BuildVariables(st))
	c.sink.CheckFeedbacks(FeedbackNames()...)
}

// refetchEvents clears the directory and reloads it over HTTP. A failed
// fetch leaves the directory empty with no automatic retry: the device
// signals again when it wants a reload.
func (c *Client) refetchEvents() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()

	timeout := c.httpClient.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	events, err := fetchEvents(ctx, c.httpClient, c.httpURL())
	metrics.EventFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EventFetches.WithLabelValues("error").Inc()
		slog.Error("ontime.client.event_fetch_failed",
			"component", "ontime",
			"event", "client.fetch_error",
			"error", err,
		)
		return
	}
	metrics.EventFetches.WithLabelValues("success").Inc()

	c.mu.Lock()
	c.events = events
	c.mu.Unlock()

	slog.Info("ontime.client.events_refreshed",
		"component", "ontime",
		"event", "client.events_refreshed",
		"count", len(events),
	)

	if c.onEventsRefreshed != nil {
		c.onEventsRefreshed(events)
	}
}
