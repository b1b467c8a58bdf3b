// Package livesession is the kiosk side of live face attendance. A Session
// captures frames on a fixed interval, streams them to the attendance
// gateway and correlates the asynchronous results with the frames it sent.
package livesession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/imageutil"
	"github.com/kozaktomas/face-attendance/internal/live"
	"go.uber.org/zap"
)

// State of a session.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateClosed     State = "closed"
	StateError      State = "error"
	StateStopped    State = "stopped"
)

// StateChange is passed to state listeners.
type StateChange struct {
	From State
	To   State
	Err  error
}

// Outcome kinds besides the gateway message types.
const (
	KindTimeout = "timeout"
)

// Outcome is what became of a frame, or a result broadcast by another member of the room.
type Outcome struct {
	// Kind is a gateway message type (result, throttle, busy, error) or KindTimeout.
	Kind    string
	FrameID string
	Message *live.Outbound
	// Latency is the round trip for own frames, or the age of an expired frame.
	Latency time.Duration
	// Foreign is set for messages about frames this session did not send.
	Foreign bool
	// Late is set for a reply to a frame that had already timed out.
	Late bool
}

// Stats counts session activity.
type Stats struct {
	Sent       int `json:"sent"`
	Results    int `json:"results"`
	Matched    int `json:"matched"`
	Throttled  int `json:"throttled"`
	Busy       int `json:"busy"`
	Errors     int `json:"errors"`
	Timeouts   int `json:"timeouts"`
	Skipped    int `json:"skipped"`
	Dropped    int `json:"dropped"`
	Foreign    int `json:"foreign"`
	Reconnects int `json:"reconnects"`
}

// Session defaults not shared with the gateway.
const (
	DefaultMaxInFlight    = 1
	DefaultPendingTimeout = 5 * time.Second
)

// Config configures a session.
type Config struct {
	// URL of the gateway, e.g. ws://localhost:8080/api/ws/attendance.
	URL      string
	DeviceID string
	// Token is sent as the token query parameter when set.
	Token string
	// Interval between captures.
	Interval time.Duration
	// MaxInFlight skips a capture while this many frames are pending.
	MaxInFlight int
	// PendingTimeout expires frames that got no reply.
	PendingTimeout    time.Duration
	MaxFrameDimension int
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	// HandshakeTimeout bounds dial plus hello/ack.
	HandshakeTimeout time.Duration
	// ReadTimeout drops a connection on which neither a message nor a ping arrived for this long.
	ReadTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.DeviceID == "" {
		c.DeviceID = constants.DefaultDeviceID
	}
	if c.Interval <= 0 {
		c.Interval = constants.DefaultCaptureInterval
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.PendingTimeout <= 0 {
		c.PendingTimeout = DefaultPendingTimeout
	}
	if c.MaxFrameDimension <= 0 {
		c.MaxFrameDimension = constants.MaxFrameDimension
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = constants.PongWait
	}
	return c
}

// Session streams frames to the gateway until stopped.
type Session struct {
	cfg    Config
	source FrameSource
	logger *zap.Logger
	dialer *websocket.Dialer
	now    func() time.Time
	newID  func() string

	mu        sync.Mutex
	state     State
	stats     Stats
	pending   map[string]time.Time
	expired   map[string]time.Time
	stateFns  []func(StateChange)
	outcomeFn []func(Outcome)
	cancel    context.CancelFunc
}

// New creates an idle session.
func New(cfg Config, source FrameSource, logger *zap.Logger) (*Session, error) {
	if cfg.URL == "" {
		return nil, errors.New("gateway URL is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	if source == nil {
		return nil, errors.New("frame source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cfg:     cfg.withDefaults(),
		source:  source,
		logger:  logger,
		dialer:  websocket.DefaultDialer,
		now:     time.Now,
		newID:   uuid.NewString,
		state:   StateIdle,
		pending: make(map[string]time.Time),
		expired: make(map[string]time.Time),
	}, nil
}

// OnStateChange registers a listener for state transitions.
// Listeners run on session goroutines and must not block.
func (s *Session) OnStateChange(fn func(StateChange)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateFns = append(s.stateFns, fn)
}

// OnOutcome registers a listener for frame outcomes.
// Listeners run on session goroutines and must not block.
func (s *Session) OnOutcome(fn func(Outcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomeFn = append(s.outcomeFn, fn)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Pending returns the number of frames awaiting a reply.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop ends a running session.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run connects and streams frames, reconnecting with exponential backoff,
// until ctx is cancelled or Stop is called. It always ends in StateStopped.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("session already %s", s.state)
	}
	s.cancel = cancel
	s.mu.Unlock()

	defer s.setState(StateStopped, nil)

	attempt := 0
	connected := false
	for ctx.Err() == nil {
		s.setState(StateConnecting, nil)
		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("Gateway connection failed",
				zap.String("url", s.cfg.URL),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			s.setState(StateError, err)
			if !sleepContext(ctx, Backoff(s.cfg.BackoffBase, s.cfg.BackoffMax, attempt)) {
				return nil
			}
			attempt++
			continue
		}

		if connected {
			s.mu.Lock()
			s.stats.Reconnects++
			s.mu.Unlock()
		}
		connected = true
		attempt = 0
		s.setState(StateConnected, nil)
		s.logger.Info("Connected to gateway",
			zap.String("url", s.cfg.URL),
			zap.String("device_id", s.cfg.DeviceID))

		err = s.stream(ctx, conn)
		s.dropPending()
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("Gateway connection lost", zap.Error(err))
		s.setState(StateClosed, err)
		if !sleepContext(ctx, Backoff(s.cfg.BackoffBase, s.cfg.BackoffMax, attempt)) {
			return nil
		}
		attempt++
	}
	return nil
}

// Backoff returns base * 2^attempt capped at limit.
func Backoff(base, limit time.Duration, attempt int) time.Duration {
	d := base
	for range attempt {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return min(d, limit)
}

func (s *Session) gatewayURL() string {
	if s.cfg.Token == "" {
		return s.cfg.URL
	}
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return s.cfg.URL
	}
	q := u.Query()
	q.Set("token", s.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String()
}

// connect dials the gateway and completes the hello/ack handshake.
func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	conn, resp, err := s.dialer.DialContext(dialCtx, s.gatewayURL(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial gateway: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	deadline := time.Now().Add(s.cfg.HandshakeTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(live.Inbound{Type: live.TypeHello, DeviceID: s.cfg.DeviceID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}

	_ = conn.SetReadDeadline(deadline)
	var ack live.Outbound
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read ack: %w", err)
	}
	if ack.Type != live.TypeAck {
		conn.Close()
		return nil, fmt.Errorf("expected ack, got %q", ack.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return conn, nil
}

// stream runs the capture loop on this goroutine and the reader on another.
// All writes happen here.
func (s *Session) stream(ctx context.Context, conn *websocket.Conn) error {
	readErr := make(chan error, 1)
	go func() {
		readErr <- s.readLoop(conn)
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(constants.WriteWait))
			select {
			case <-readErr:
			case <-time.After(time.Second):
			}
			conn.Close()
			return ctx.Err()
		case err := <-readErr:
			conn.Close()
			return err
		case <-ticker.C:
			s.expirePending()
			if err := s.capture(conn); err != nil {
				conn.Close()
				<-readErr
				return err
			}
		}
	}
}

// capture sends one frame unless too many are pending. Source errors are
// logged and the tick is skipped; only socket errors are returned.
func (s *Session) capture(conn *websocket.Conn) error {
	s.mu.Lock()
	if len(s.pending) >= s.cfg.MaxInFlight {
		s.stats.Skipped++
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	img, err := s.source.Next()
	if err != nil {
		s.logger.Warn("Frame capture failed", zap.Error(err))
		return nil
	}
	data, err := imageutil.EncodeJPEG(img, s.cfg.MaxFrameDimension)
	if err != nil {
		s.logger.Warn("Frame encoding failed", zap.Error(err))
		return nil
	}

	id := s.newID()
	s.mu.Lock()
	s.pending[id] = s.now()
	s.mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(constants.WriteWait))
	err = conn.WriteJSON(live.Inbound{
		Type:     live.TypeFrame,
		DeviceID: s.cfg.DeviceID,
		FrameID:  id,
		Image:    imageutil.EncodeDataURL(data),
	})
	if err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return fmt.Errorf("send frame: %w", err)
	}

	s.mu.Lock()
	s.stats.Sent++
	s.mu.Unlock()
	return nil
}

// readLoop reads gateway messages. The gateway pings periodically, so a link
// that stays silent past ReadTimeout is treated as lost.
func (s *Session) readLoop(conn *websocket.Conn) error {
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(constants.WriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg live.Outbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("Ignoring malformed gateway message", zap.Error(err))
			continue
		}
		s.handle(&msg)
	}
}

func (s *Session) handle(msg *live.Outbound) {
	switch msg.Type {
	case live.TypeResult, live.TypeThrottle, live.TypeBusy, live.TypeError:
	default:
		return
	}

	now := s.now()
	out := Outcome{Kind: msg.Type, FrameID: msg.FrameID, Message: msg}

	s.mu.Lock()
	if sent, ok := s.pending[msg.FrameID]; ok {
		delete(s.pending, msg.FrameID)
		out.Latency = now.Sub(sent)
	} else if sent, ok := s.expired[msg.FrameID]; ok {
		delete(s.expired, msg.FrameID)
		out.Latency = now.Sub(sent)
		out.Late = true
	} else if msg.FrameID != "" || msg.Type == live.TypeResult {
		out.Foreign = true
		s.stats.Foreign++
	}
	switch msg.Type {
	case live.TypeResult:
		s.stats.Results++
		if msg.Succeeded() {
			s.stats.Matched++
		}
	case live.TypeThrottle:
		s.stats.Throttled++
	case live.TypeBusy:
		s.stats.Busy++
	case live.TypeError:
		s.stats.Errors++
	}
	fns := append([]func(Outcome){}, s.outcomeFn...)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(out)
	}
}

// expirePending reports frames that waited longer than PendingTimeout.
func (s *Session) expirePending() {
	now := s.now()
	var timedOut []Outcome

	s.mu.Lock()
	for id, sent := range s.pending {
		if age := now.Sub(sent); age >= s.cfg.PendingTimeout {
			delete(s.pending, id)
			s.expired[id] = sent
			s.stats.Timeouts++
			timedOut = append(timedOut, Outcome{Kind: KindTimeout, FrameID: id, Latency: age})
		}
	}
	for id, sent := range s.expired {
		if now.Sub(sent) >= 4*s.cfg.PendingTimeout {
			delete(s.expired, id)
		}
	}
	fns := append([]func(Outcome){}, s.outcomeFn...)
	s.mu.Unlock()

	for _, out := range timedOut {
		for _, fn := range fns {
			fn(out)
		}
	}
}

// dropPending forgets frames sent on a connection that is gone.
func (s *Session) dropPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.pending); n > 0 {
		s.stats.Dropped += n
		s.logger.Debug("Dropping pending frames", zap.Int("count", n))
	}
	clear(s.pending)
	clear(s.expired)
}

func (s *Session) setState(to State, err error) {
	s.mu.Lock()
	from := s.state
	if from == to {
		s.mu.Unlock()
		return
	}
	s.state = to
	fns := append([]func(StateChange){}, s.stateFns...)
	s.mu.Unlock()

	change := StateChange{From: from, To: to, Err: err}
	for _, fn := range fns {
		fn(change)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
