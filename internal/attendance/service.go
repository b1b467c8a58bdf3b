// Package attendance implements check-in/check-out rules and dashboard summaries.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/events"
	"go.uber.org/zap"
)

var (
	// ErrInvalidStatus is returned for an unknown attendance status
	ErrInvalidStatus = errors.New("invalid attendance status")
	// ErrCooldown is returned when the employee was marked too recently
	ErrCooldown = errors.New("attendance marked too recently")
)

// Action tells whether a mark opened or closed an attendance.
type Action string

const (
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
)

// MarkRequest describes one check-in/check-out toggle.
type MarkRequest struct {
	EmployeeID int64
	Note       string
	Location   string
	DeviceID   string
	Source     string
	// EnforceCooldown rejects the mark with ErrCooldown when the employee
	// was marked less than the cooldown ago.
	EnforceCooldown bool
}

// MarkResult is the outcome of a mark.
type MarkResult struct {
	Action     Action               `json:"action"`
	Attendance *database.Attendance `json:"attendance"`
}

// Service applies attendance rules on top of the stores.
type Service struct {
	attendances database.AttendanceStore
	employees   database.EmployeeStore
	publisher   events.Publisher
	rules       Rules
	cooldown    time.Duration
	logger      *zap.Logger
	now         func() time.Time

	// mu serializes marks so concurrent kiosks cannot open two attendances.
	mu       sync.Mutex
	lastMark map[int64]time.Time
}

// NewService creates an attendance service.
func NewService(
	attendances database.AttendanceStore,
	employees database.EmployeeStore,
	publisher events.Publisher,
	policy config.Policy,
	cooldown time.Duration,
	logger *zap.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		attendances: attendances,
		employees:   employees,
		publisher:   publisher,
		rules:       NewRules(policy),
		cooldown:    cooldown,
		logger:      logger,
		now:         time.Now,
		lastMark:    make(map[int64]time.Time),
	}
}

// Mark checks the employee out when an attendance is open, otherwise checks them in.
func (s *Service) Mark(ctx context.Context, req MarkRequest) (*MarkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if req.EnforceCooldown && s.cooldown > 0 {
		if last, ok := s.lastMark[req.EmployeeID]; ok && now.Sub(last) < s.cooldown {
			return nil, fmt.Errorf("employee %d: %w", req.EmployeeID, ErrCooldown)
		}
	}

	open, err := s.attendances.FindOpen(ctx, req.EmployeeID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("find open attendance: %w", err)
	}

	var result *MarkResult
	if open != nil {
		if req.EnforceCooldown && s.cooldown > 0 && now.Sub(open.CheckIn) < s.cooldown {
			return nil, fmt.Errorf("employee %d: %w", req.EmployeeID, ErrCooldown)
		}
		result, err = s.checkOut(ctx, open, req, now)
	} else {
		result, err = s.checkIn(ctx, req, now)
	}
	if err != nil {
		return nil, err
	}

	s.lastMark[req.EmployeeID] = now
	s.publish(ctx, events.Event{
		Type:       string(result.Action),
		Source:     req.Source,
		DeviceID:   req.DeviceID,
		Attendance: result.Attendance,
		At:         now,
	})
	return result, nil
}

func (s *Service) checkIn(ctx context.Context, req MarkRequest, now time.Time) (*MarkResult, error) {
	a := &database.Attendance{
		EmployeeID: req.EmployeeID,
		CheckIn:    now,
		Status:     s.rules.CheckInStatus(now),
		Note:       req.Note,
		Location:   req.Location,
	}
	if err := s.attendances.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("check in employee %d: %w", req.EmployeeID, err)
	}
	s.logger.Info("Employee checked in",
		zap.Int64("employee_id", a.EmployeeID),
		zap.String("status", string(a.Status)),
		zap.String("device_id", req.DeviceID))
	return &MarkResult{Action: ActionCheckIn, Attendance: a}, nil
}

func (s *Service) checkOut(ctx context.Context, a *database.Attendance, req MarkRequest, now time.Time) (*MarkResult, error) {
	a.CheckOut = &now
	if overtime := s.rules.Overtime(a.CheckIn, now); overtime > 0 {
		a.OverTime = FormatOvertime(overtime)
		a.Status = database.StatusOvertime
	}
	if req.Note != "" {
		a.Note = req.Note
	}
	if req.Location != "" {
		a.Location = req.Location
	}
	if err := s.attendances.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("check out employee %d: %w", a.EmployeeID, err)
	}
	s.logger.Info("Employee checked out",
		zap.Int64("employee_id", a.EmployeeID),
		zap.String("status", string(a.Status)),
		zap.String("over_time", a.OverTime),
		zap.String("device_id", req.DeviceID))
	return &MarkResult{Action: ActionCheckOut, Attendance: a}, nil
}

// Create records a check-in now with the given status (PRESENT when empty).
func (s *Service) Create(ctx context.Context, employeeID int64, status string) (*database.Attendance, error) {
	st, err := parseStatus(status)
	if err != nil {
		return nil, err
	}

	a := &database.Attendance{
		EmployeeID: employeeID,
		CheckIn:    s.now(),
		Status:     st,
	}
	if err := s.attendances.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create attendance: %w", err)
	}

	s.publish(ctx, events.Event{Type: events.TypeCreated, Source: events.SourceManual, Attendance: a, At: a.CheckIn})
	return a, nil
}

// Update reassigns the employee and status and stamps the check-out now.
func (s *Service) Update(ctx context.Context, id, employeeID int64, status string) (*database.Attendance, error) {
	st, err := parseStatus(status)
	if err != nil {
		return nil, err
	}

	a, err := s.attendances.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	a.EmployeeID = employeeID
	a.Status = st
	a.CheckOut = &now
	if err := s.attendances.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update attendance: %w", err)
	}

	s.publish(ctx, events.Event{Type: events.TypeUpdated, Source: events.SourceManual, Attendance: a, At: now})
	return a, nil
}

// Delete removes an attendance record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.attendances.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.Event{
		Type:       events.TypeDeleted,
		Source:     events.SourceManual,
		Attendance: &database.Attendance{ID: id},
		At:         s.now(),
	})
	return nil
}

// Get returns one attendance record.
func (s *Service) Get(ctx context.Context, id int64) (*database.Attendance, error) {
	return s.attendances.Get(ctx, id)
}

// List returns a page of all attendance records.
func (s *Service) List(ctx context.Context, req database.PageRequest) (database.Page[database.Attendance], error) {
	return s.attendances.List(ctx, req)
}

// ListByEmployee returns a page of one employee's attendance records.
func (s *Service) ListByEmployee(ctx context.Context, employeeID int64, req database.PageRequest) (database.Page[database.Attendance], error) {
	return s.attendances.ListByEmployee(ctx, employeeID, req)
}

// ListBetween returns records with check-in in [from, to).
func (s *Service) ListBetween(ctx context.Context, from, to time.Time) ([]database.Attendance, error) {
	return s.attendances.ListBetween(ctx, from, to)
}

// Rules returns the working-day rules in effect.
func (s *Service) Rules() Rules {
	return s.rules
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("Failed to publish attendance event",
			zap.String("type", e.Type),
			zap.Error(err))
	}
}

func parseStatus(s string) (database.AttendanceStatus, error) {
	if s == "" {
		return database.StatusPresent, nil
	}
	st, ok := database.ParseAttendanceStatus(s)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}
