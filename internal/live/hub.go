// Package live is the server side of live face attendance: kiosks stream
// webcam frames over a websocket, frames are verified against the recognition
// service and results are broadcast to every socket of the kiosk's room.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/cache"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/mlclient"
	"go.uber.org/zap"
)

// Verifier matches a face image against enrolled employees.
type Verifier interface {
	Verify(ctx context.Context, image []byte, threshold float64) (*mlclient.VerifyResult, error)
}

// Marker toggles attendance for a recognized employee.
type Marker interface {
	Mark(ctx context.Context, req attendance.MarkRequest) (*attendance.MarkResult, error)
}

// EmployeeLookup resolves employee names.
type EmployeeLookup interface {
	Get(ctx context.Context, id int64) (*database.Employee, error)
}

// Options tunes the gateway.
type Options struct {
	// FrameInterval is the minimum gap between two processed frames on one socket.
	FrameInterval time.Duration
	// VerifyTimeout bounds one recognition call.
	VerifyTimeout time.Duration
	// Threshold is forwarded to the recognition service; zero keeps its default.
	Threshold float64
	// CacheTTL is how long a frame fingerprint stays mapped to an employee.
	CacheTTL time.Duration
	// MaxFrameDimension bounds the frame forwarded to the recognition service.
	MaxFrameDimension int
	// AllowedOrigins restricts browser origins; empty allows any.
	AllowedOrigins []string
}

// DefaultOptions returns the gateway defaults.
func DefaultOptions() Options {
	return Options{
		FrameInterval:     constants.DefaultFrameInterval,
		VerifyTimeout:     15 * time.Second,
		Threshold:         constants.DefaultVerifyThreshold,
		CacheTTL:          constants.RecognitionCacheTTL,
		MaxFrameDimension: constants.MaxFrameDimension,
	}
}

// Stats is a snapshot of the gateway.
type Stats struct {
	Rooms       int            `json:"rooms"`
	Connections int            `json:"connections"`
	PerRoom     map[string]int `json:"per_room"`
}

// Hub tracks device rooms and the sockets in them.
type Hub struct {
	verifier  Verifier
	cache     cache.RecognitionCache
	marker    Marker
	employees EmployeeLookup
	opts      Options
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	rooms  map[string]map[*Conn]struct{}
	closed bool
}

// NewHub creates a gateway. cache, marker and employees may be nil.
func NewHub(verifier Verifier, recognitionCache cache.RecognitionCache, marker Marker, employees EmployeeLookup, opts Options, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		verifier:  verifier,
		cache:     recognitionCache,
		marker:    marker,
		employees: employees,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		rooms:     make(map[string]map[*Conn]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and serves the socket until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already wrote an error response.
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	h.Serve(ws, r.RemoteAddr)
}

// Serve runs the read and write pumps of an upgraded socket and blocks until it closes.
func (h *Hub) Serve(ws *websocket.Conn, remoteAddr string) {
	h.mu.RLock()
	closed := h.closed
	if !closed {
		h.wg.Add(1)
	}
	h.mu.RUnlock()
	if closed {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(constants.WriteWait))
		ws.Close()
		return
	}
	defer h.wg.Done()

	c := newConn(h, ws, remoteAddr)
	hello, ok := c.readHello()
	if !ok {
		ws.Close()
		return
	}

	if !h.register(c, NormalizeDeviceID(hello.DeviceID)) {
		ws.Close()
		return
	}
	h.logger.Info("Kiosk connected",
		zap.String("device_id", c.deviceID),
		zap.String("remote_addr", remoteAddr))

	writerDone := make(chan struct{})
	go func() {
		c.writePump()
		close(writerDone)
	}()

	c.send(&Outbound{Type: TypeAck, DeviceID: c.deviceID})
	if hello.Type == TypeFrame {
		c.handleFrame(hello)
	}
	c.readPump()

	<-writerDone
	c.wait()
	h.logger.Info("Kiosk disconnected",
		zap.String("device_id", c.room()),
		zap.String("remote_addr", remoteAddr))
}

// register adds the socket to its device room. It fails once the hub is closed.
func (h *Hub) register(c *Conn, deviceID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.joinLocked(c, deviceID)
	return true
}

func (h *Hub) joinLocked(c *Conn, deviceID string) {
	room, ok := h.rooms[deviceID]
	if !ok {
		room = make(map[*Conn]struct{})
		h.rooms[deviceID] = room
	}
	room[c] = struct{}{}
	c.deviceID = deviceID
}

func (h *Hub) leaveLocked(c *Conn) {
	room, ok := h.rooms[c.deviceID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.deviceID)
	}
}

// unregister drops the socket from its room; empty rooms are removed.
func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
}

// move switches a socket to another device room.
func (h *Hub) move(c *Conn, deviceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.deviceID == deviceID {
		return
	}
	if _, ok := h.rooms[c.deviceID][c]; !ok {
		// Already unregistered.
		return
	}
	h.leaveLocked(c)
	h.joinLocked(c, deviceID)
}

// Broadcast sends a message to every socket in the device room.
// Sockets whose buffer is full are disconnected.
func (h *Hub) Broadcast(deviceID string, msg *Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[deviceID]))
	for c := range h.rooms[deviceID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

// Stats returns the current rooms and socket counts.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := Stats{Rooms: len(h.rooms), PerRoom: make(map[string]int, len(h.rooms))}
	for id, room := range h.rooms {
		s.PerRoom[id] = len(room)
		s.Connections += len(room)
	}
	return s
}

// Close disconnects every socket and waits for their pumps and in-flight verifications to finish.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var conns []*Conn
	for _, room := range h.rooms {
		for c := range room {
			conns = append(conns, c)
		}
	}
	h.mu.Unlock()

	h.cancel()
	for _, c := range conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	h.wg.Wait()
}
