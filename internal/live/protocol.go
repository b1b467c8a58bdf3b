package live

import (
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Message types exchanged over the attendance socket.
const (
	TypeHello    = "hello"
	TypeFrame    = "frame"
	TypePing     = "ping"
	TypeAck      = "ack"
	TypeResult   = "result"
	TypeThrottle = "throttle"
	TypeBusy     = "busy"
	TypeError    = "error"
	TypePong     = "pong"
	TypeNoop     = "noop"
)

// Error messages sent to clients.
const (
	MsgInvalidJSON  = "Invalid JSON"
	MsgBadBase64    = "Bad base64"
	MsgInvalidImage = "Invalid image"
)

const maxDeviceIDLength = 64

// Inbound is a client message. The first message on a socket is the hello;
// only its deviceId is used.
type Inbound struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId"`
	FrameID  string `json:"frameId,omitempty"`
	Image    string `json:"image,omitempty"`
}

// Outbound is a server message. Control messages (ack, throttle, busy, error,
// pong, noop) only fill Type, DeviceID, FrameID and Message.
type Outbound struct {
	Type       string               `json:"type"`
	DeviceID   string               `json:"deviceId,omitempty"`
	FrameID    string               `json:"frameId,omitempty"`
	Success    *bool                `json:"success,omitempty"`
	EmployeeID int64                `json:"employee_id,omitempty"`
	Name       string               `json:"name,omitempty"`
	Score      *float64             `json:"score,omitempty"`
	Cached     bool                 `json:"cached,omitempty"`
	Action     string               `json:"action,omitempty"`
	Attendance *database.Attendance `json:"attendance,omitempty"`
	Message    string               `json:"message,omitempty"`
}

// Succeeded reports whether a result message is a positive recognition.
func (o *Outbound) Succeeded() bool {
	return o.Success != nil && *o.Success
}

func resultMessage(deviceID, frameID string, success bool) *Outbound {
	return &Outbound{Type: TypeResult, DeviceID: deviceID, FrameID: frameID, Success: &success}
}

// NormalizeDeviceID trims a device ID and falls back to the default room.
func NormalizeDeviceID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxDeviceIDLength {
		return constants.DefaultDeviceID
	}
	return id
}
