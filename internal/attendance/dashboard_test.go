package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestSummaryGroups(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	// Employee 1 on time and still in, employee 2 late and gone, employee 3 missing.
	f.attendances.AddAttendance(database.Attendance{EmployeeID: 1, CheckIn: monday(8, 50), Status: database.StatusPresent})
	out := monday(17, 0)
	f.attendances.AddAttendance(database.Attendance{EmployeeID: 2, CheckIn: monday(9, 40), CheckOut: &out, Status: database.StatusLate})
	// Yesterday's record is ignored.
	f.attendances.AddAttendance(database.Attendance{EmployeeID: 3, CheckIn: monday(9, 0).Add(-24 * time.Hour), Status: database.StatusAbsent})

	f.now = monday(18, 0)
	groups, err := f.svc.SummaryGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}

	want := map[string]map[string]int64{
		"Present Summary":     {"On time": 1, "Late clock-in": 1, "Overtime": 0},
		"Not Present Summary": {"Absent": 0, "No clock-in": 1, "No clock-out": 1},
		"Away Summary":        {"Day off": 0, "Time off": 0},
	}
	for _, g := range groups {
		items, ok := want[g.Title]
		if !ok {
			t.Errorf("unexpected group %q", g.Title)
			continue
		}
		for _, item := range g.Items {
			if items[item.Label] != item.Value {
				t.Errorf("%s/%s = %d, want %d", g.Title, item.Label, item.Value, items[item.Label])
			}
		}
	}
}

func TestSummaryGroups_DayOff(t *testing.T) {
	f := newFixture(t, 0)
	f.now = monday(10, 0).AddDate(0, 0, 5) // Saturday
	f.attendances.AddAttendance(database.Attendance{EmployeeID: 1, CheckIn: f.now, Status: database.StatusPresent})

	d, err := f.svc.Today(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d.DayOff != 2 || d.NoClockIn != 0 {
		t.Errorf("unexpected weekend summary %+v", d)
	}
}

func TestStatusCards(t *testing.T) {
	f := newFixture(t, 0)
	f.attendances.AddAttendance(database.Attendance{EmployeeID: 1, CheckIn: monday(9, 0), Status: database.StatusOvertime})
	f.attendances.AddAttendance(database.Attendance{EmployeeID: 2, CheckIn: monday(9, 0), Status: database.StatusAbsent})
	f.now = monday(20, 0)

	cards, err := f.svc.StatusCards(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{"On Time": 0, "Late": 0, "Absent": 1, "Overtime": 1}
	for k, v := range want {
		if cards[k] != v {
			t.Errorf("%s = %d, want %d", k, cards[k], v)
		}
	}
	if len(cards) != 4 {
		t.Errorf("expected 4 cards, got %d", len(cards))
	}
}

func TestToday_CountError(t *testing.T) {
	f := newFixture(t, 0)
	f.employees.CountError = context.DeadlineExceeded

	if _, err := f.svc.Today(context.Background()); err == nil {
		t.Error("expected error")
	}
}
