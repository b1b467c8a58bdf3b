package attendance

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// SummaryItem is one labelled counter.
type SummaryItem struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// SummaryGroup is a titled set of counters.
type SummaryGroup struct {
	Title string        `json:"title"`
	Items []SummaryItem `json:"items"`
}

// DaySummary holds today's attendance counters.
type DaySummary struct {
	ByStatus   map[database.AttendanceStatus]int64
	NoClockIn  int64
	NoClockOut int64
	DayOff     int64
	TimeOff    int64
}

// Today counts today's attendance by status and finds missing clock-ins and clock-outs.
func (s *Service) Today(ctx context.Context) (*DaySummary, error) {
	now := s.now()
	from, to := s.rules.Day(now)

	records, err := s.attendances.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list today's attendance: %w", err)
	}
	total, err := s.employees.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count employees: %w", err)
	}

	summary := &DaySummary{ByStatus: make(map[database.AttendanceStatus]int64)}
	present := make(map[int64]bool)
	for _, a := range records {
		summary.ByStatus[a.Status]++
		present[a.EmployeeID] = true
		if a.Open() {
			summary.NoClockOut++
		}
	}

	if !s.rules.IsWorkDay(now) {
		summary.DayOff = int64(total - len(present))
	} else if missing := total - len(present); missing > 0 {
		summary.NoClockIn = int64(missing)
	}
	if summary.DayOff < 0 {
		summary.DayOff = 0
	}
	return summary, nil
}

// SummaryGroups returns the dashboard's grouped counters.
func (s *Service) SummaryGroups(ctx context.Context) ([]SummaryGroup, error) {
	d, err := s.Today(ctx)
	if err != nil {
		return nil, err
	}
	return []SummaryGroup{
		{Title: "Present Summary", Items: []SummaryItem{
			{Label: "On time", Value: d.ByStatus[database.StatusPresent]},
			{Label: "Late clock-in", Value: d.ByStatus[database.StatusLate]},
			{Label: "Overtime", Value: d.ByStatus[database.StatusOvertime]},
		}},
		{Title: "Not Present Summary", Items: []SummaryItem{
			{Label: "Absent", Value: d.ByStatus[database.StatusAbsent]},
			{Label: "No clock-in", Value: d.NoClockIn},
			{Label: "No clock-out", Value: d.NoClockOut},
		}},
		{Title: "Away Summary", Items: []SummaryItem{
			{Label: "Day off", Value: d.DayOff},
			{Label: "Time off", Value: d.TimeOff},
		}},
	}, nil
}

// StatusCards returns today's counters keyed by card label.
func (s *Service) StatusCards(ctx context.Context) (map[string]int64, error) {
	d, err := s.Today(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int64{
		"On Time":  d.ByStatus[database.StatusPresent],
		"Late":     d.ByStatus[database.StatusLate],
		"Absent":   d.ByStatus[database.StatusAbsent],
		"Overtime": d.ByStatus[database.StatusOvertime],
	}, nil
}
