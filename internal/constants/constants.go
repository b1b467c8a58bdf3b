// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Pagination constants
const (
	// DefaultPageSize is the page size used when a list request does not specify one
	DefaultPageSize = 10

	// MaxPageSize caps the page size a client may request
	MaxPageSize = 200
)

// Recognition constants
const (
	// DefaultVerifyThreshold is the minimum cosine score the recognition service
	// needs to report a match
	DefaultVerifyThreshold = 0.7

	// DefaultDuplicateThreshold is the score above which an enrollment is treated
	// as a face already enrolled under a different employee
	DefaultDuplicateThreshold = 0.7

	// MaxFrameDimension is the maximum width or height forwarded to the recognition service
	MaxFrameDimension = 1280

	// MaxEnrollDimension mirrors the recognition service's own clamp for enrollment photos
	MaxEnrollDimension = 3000

	// RecognitionCacheTTL is how long a frame hash stays mapped to an employee
	RecognitionCacheTTL = 24 * time.Hour
)

// Live session constants
const (
	// DefaultFrameInterval is the minimum gap between two processed frames on one socket
	DefaultFrameInterval = 400 * time.Millisecond

	// DefaultCaptureInterval is the kiosk capture period; it stays above DefaultFrameInterval
	DefaultCaptureInterval = 450 * time.Millisecond

	// SendBufferSize is the per-socket outbound message buffer
	SendBufferSize = 256

	// PingInterval is how often the gateway pings idle sockets
	PingInterval = 30 * time.Second

	// PongWait is how long the gateway waits for a pong before dropping the socket
	PongWait = 60 * time.Second

	// WriteWait bounds a single websocket write
	WriteWait = 10 * time.Second

	// MaxMessageSize bounds a single inbound websocket message (base64 frames)
	MaxMessageSize = 8 << 20

	// DefaultDeviceID is the room used when a client does not identify itself
	DefaultDeviceID = "default"
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum multipart upload size in bytes (32MB)
	MaxUploadSize = 32 << 20
)
