package live

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/cache"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/events"
	"github.com/kozaktomas/face-attendance/internal/imageutil"
	"go.uber.org/zap"
)

// Result messages for failed recognition and marking.
const (
	MsgTimeout         = "Recognition timed out"
	MsgUnavailable     = "Recognition service unavailable"
	MsgCooldown        = "Attendance already recorded recently"
	MsgMarkFailed      = "Failed to record attendance"
	msgUnknownEmployee = "Employee %d is not registered"
)

// recognize verifies a frame, marks attendance for a match and broadcasts
// the result to the socket's room.
func (h *Hub) recognize(c *Conn, frameID string, image []byte) {
	ctx, cancel := context.WithTimeout(h.ctx, h.opts.VerifyTimeout)
	defer cancel()

	res := h.identify(ctx, c.room(), frameID, image)
	if res.Succeeded() {
		h.markAttendance(ctx, c, res)
	}
	h.Broadcast(c.room(), res)
}

func (h *Hub) identify(ctx context.Context, deviceID, frameID string, image []byte) *Outbound {
	hash := cache.HashFrame(image)
	if h.cache != nil {
		id, ok, err := h.cache.GetEmployee(ctx, hash)
		switch {
		case err != nil:
			h.logger.Warn("Recognition cache lookup failed", zap.Error(err))
		case ok:
			res := resultMessage(deviceID, frameID, true)
			res.EmployeeID = id
			res.Cached = true
			h.resolveName(ctx, res)
			return res
		}
	}

	normalized, err := imageutil.NormalizeJPEG(image, h.opts.MaxFrameDimension)
	if err != nil {
		res := resultMessage(deviceID, frameID, false)
		res.Message = MsgInvalidImage
		return res
	}

	vr, err := h.verifier.Verify(ctx, normalized, h.opts.Threshold)
	if err != nil {
		res := resultMessage(deviceID, frameID, false)
		if errors.Is(err, context.DeadlineExceeded) {
			res.Message = MsgTimeout
		} else {
			res.Message = MsgUnavailable
		}
		h.logger.Warn("Face verification failed",
			zap.String("device_id", deviceID),
			zap.Error(err))
		return res
	}

	res := resultMessage(deviceID, frameID, vr.Matched)
	score := vr.Score
	res.Score = &score
	res.Message = vr.Message
	if !vr.Matched {
		return res
	}

	res.EmployeeID = vr.EmployeeID
	if h.cache != nil {
		if err := h.cache.SetEmployee(ctx, hash, vr.EmployeeID, h.opts.CacheTTL); err != nil {
			h.logger.Warn("Recognition cache store failed", zap.Error(err))
		}
	}
	h.resolveName(ctx, res)
	return res
}

// resolveName fills the employee name; an employee missing from the
// database turns the result into a failure.
func (h *Hub) resolveName(ctx context.Context, res *Outbound) {
	if h.employees == nil {
		return
	}
	emp, err := h.employees.Get(ctx, res.EmployeeID)
	if errors.Is(err, database.ErrNotFound) {
		failed := false
		res.Success = &failed
		res.Message = fmt.Sprintf(msgUnknownEmployee, res.EmployeeID)
		return
	}
	if err != nil {
		h.logger.Warn("Employee lookup failed",
			zap.Int64("employee_id", res.EmployeeID),
			zap.Error(err))
		return
	}
	res.Name = emp.Name
}

func (h *Hub) markAttendance(ctx context.Context, c *Conn, res *Outbound) {
	if h.marker == nil {
		return
	}
	mr, err := h.marker.Mark(ctx, attendance.MarkRequest{
		EmployeeID:      res.EmployeeID,
		Location:        c.location(),
		DeviceID:        res.DeviceID,
		Source:          events.SourceLive,
		EnforceCooldown: true,
	})
	switch {
	case errors.Is(err, attendance.ErrCooldown):
		res.Message = MsgCooldown
	case err != nil:
		h.logger.Error("Failed to mark attendance",
			zap.Int64("employee_id", res.EmployeeID),
			zap.Error(err))
		res.Message = MsgMarkFailed
	default:
		res.Action = string(mr.Action)
		res.Attendance = mr.Attendance
	}
}
