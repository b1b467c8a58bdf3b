package live

import (
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/imageutil"
	"go.uber.org/zap"
)

// Conn is one kiosk socket.
type Conn struct {
	hub        *Hub
	ws         *websocket.Conn
	remoteAddr string

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closeCode int
	closeText string

	// deviceID is guarded by hub.mu.
	deviceID string

	// lastFrame is only touched by the read pump.
	lastFrame time.Time
	inFlight  atomic.Bool
	work      sync.WaitGroup
}

func newConn(h *Hub, ws *websocket.Conn, remoteAddr string) *Conn {
	return &Conn{
		hub:        h,
		ws:         ws,
		remoteAddr: remoteAddr,
		out:        make(chan []byte, constants.SendBufferSize),
		done:       make(chan struct{}),
		closeCode:  websocket.CloseNormalClosure,
	}
}

func (c *Conn) room() string {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	return c.deviceID
}

// location is stored on attendances recorded through this socket.
func (c *Conn) location() string {
	host, _, err := net.SplitHostPort(c.remoteAddr)
	if err != nil {
		host = c.remoteAddr
	}
	if host == "" {
		return c.room()
	}
	return c.room() + " (" + host + ")"
}

func (c *Conn) readHello() (*Inbound, bool) {
	c.ws.SetReadLimit(constants.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(constants.PongWait))
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, false
	}
	var hello Inbound
	if err := json.Unmarshal(data, &hello); err != nil {
		return &Inbound{}, true
	}
	return &hello, true
}

func (c *Conn) readPump() {
	defer c.close()

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(constants.PongWait))
	})

	for {
		_ = c.ws.SetReadDeadline(time.Now().Add(constants.PongWait))
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Warn("Websocket read failed",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err))
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(constants.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(constants.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(constants.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(c.closeCode, c.closeText),
				time.Now().Add(constants.WriteWait))
			return
		}
	}
}

func (c *Conn) handleMessage(data []byte) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.send(&Outbound{Type: TypeError, Message: MsgInvalidJSON})
		return
	}

	switch msg.Type {
	case TypeFrame:
		c.handleFrame(&msg)
	case TypePing:
		c.send(&Outbound{Type: TypePong, DeviceID: c.room()})
	default:
		c.send(&Outbound{Type: TypeNoop})
	}
}

func (c *Conn) handleFrame(msg *Inbound) {
	if msg.DeviceID != "" {
		c.hub.move(c, NormalizeDeviceID(msg.DeviceID))
	}
	deviceID := c.room()

	now := c.hub.now()
	if !c.lastFrame.IsZero() && now.Sub(c.lastFrame) < c.hub.opts.FrameInterval {
		c.send(&Outbound{Type: TypeThrottle, DeviceID: deviceID, FrameID: msg.FrameID})
		return
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		c.send(&Outbound{Type: TypeBusy, DeviceID: deviceID, FrameID: msg.FrameID})
		return
	}
	c.lastFrame = now

	image, err := imageutil.DecodeDataURL(msg.Image)
	if err != nil {
		c.inFlight.Store(false)
		c.send(&Outbound{Type: TypeError, DeviceID: deviceID, FrameID: msg.FrameID, Message: MsgBadBase64})
		return
	}

	c.work.Add(1)
	go func() {
		defer c.work.Done()
		defer c.inFlight.Store(false)
		c.hub.recognize(c, msg.FrameID, image)
	}()
}

// send queues a message for this socket only.
func (c *Conn) send(msg *Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	c.enqueue(data)
}

// enqueue never blocks; a socket that cannot keep up is disconnected.
func (c *Conn) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.out <- data:
	default:
		c.hub.logger.Warn("Dropping slow websocket client",
			zap.String("device_id", c.room()),
			zap.String("remote_addr", c.remoteAddr))
		c.closeWith(websocket.ClosePolicyViolation, "client too slow")
	}
}

func (c *Conn) close() {
	c.closeWith(websocket.CloseNormalClosure, "")
}

func (c *Conn) closeWith(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = text
		c.hub.unregister(c)
		close(c.done)
	})
}

// wait blocks until in-flight recognition for this socket has finished.
func (c *Conn) wait() {
	c.work.Wait()
}
