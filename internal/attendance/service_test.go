package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/events"
)

type fixture struct {
	svc         *Service
	employees   *mock.MockEmployeeStore
	attendances *mock.MockAttendanceStore
	broadcaster *events.Broadcaster
	now         time.Time
}

func newFixture(t *testing.T, cooldown time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		employees:   mock.NewMockEmployeeStore(),
		broadcaster: events.NewBroadcaster(),
		now:         monday(8, 55),
	}
	f.attendances = mock.NewMockAttendanceStore(f.employees)
	f.employees.AddEmployee(database.Employee{ID: 1, Name: "Lan"})
	f.employees.AddEmployee(database.Employee{ID: 2, Name: "Minh"})
	f.employees.AddEmployee(database.Employee{ID: 3, Name: "Hoa"})

	f.svc = NewService(f.attendances, f.employees, f.broadcaster, testPolicy(), cooldown, nil)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestMark_TogglesCheckInAndCheckOut(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	listener := f.broadcaster.AddListener()

	res, err := f.svc.Mark(ctx, MarkRequest{EmployeeID: 1, Location: "10.0.0.5", Source: events.SourceManual})
	if err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if res.Action != ActionCheckIn || res.Attendance.Status != database.StatusPresent {
		t.Fatalf("unexpected check-in %+v", res)
	}
	if res.Attendance.EmployeeName != "Lan" || res.Attendance.Location != "10.0.0.5" {
		t.Errorf("unexpected attendance %+v", res.Attendance)
	}

	f.now = monday(18, 30)
	res, err = f.svc.Mark(ctx, MarkRequest{EmployeeID: 1, Note: "late shift"})
	if err != nil {
		t.Fatalf("check-out failed: %v", err)
	}
	if res.Action != ActionCheckOut {
		t.Fatalf("expected check-out, got %s", res.Action)
	}
	a := res.Attendance
	if a.CheckOut == nil || !a.CheckOut.Equal(monday(18, 30)) {
		t.Errorf("unexpected check-out %v", a.CheckOut)
	}
	if a.Status != database.StatusOvertime || a.OverTime != "1h30m" || a.Note != "late shift" {
		t.Errorf("unexpected closed attendance %+v", a)
	}
	if a.Location != "10.0.0.5" {
		t.Errorf("location should be kept, got %q", a.Location)
	}

	for _, want := range []string{events.TypeCheckIn, events.TypeCheckOut} {
		select {
		case e := <-listener:
			if e.Type != want {
				t.Errorf("expected %s event, got %s", want, e.Type)
			}
		default:
			t.Fatalf("missing %s event", want)
		}
	}

	// A third mark opens a new attendance.
	f.now = monday(19, 0)
	res, err = f.svc.Mark(ctx, MarkRequest{EmployeeID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != ActionCheckIn || res.Attendance.Status != database.StatusLate {
		t.Errorf("unexpected third mark %+v", res)
	}
}

func TestMark_CheckOutBeforeEndKeepsStatus(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.now = monday(9, 30)
	if _, err := f.svc.Mark(ctx, MarkRequest{EmployeeID: 2}); err != nil {
		t.Fatal(err)
	}
	f.now = monday(16, 0)
	res, err := f.svc.Mark(ctx, MarkRequest{EmployeeID: 2})
	if err != nil {
		t.Fatal(err)
	}
	if res.Attendance.Status != database.StatusLate || res.Attendance.OverTime != "" {
		t.Errorf("unexpected attendance %+v", res.Attendance)
	}
}

func TestMark_Cooldown(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	if _, err := f.svc.Mark(ctx, MarkRequest{EmployeeID: 1, EnforceCooldown: true}); err != nil {
		t.Fatal(err)
	}

	f.now = f.now.Add(30 * time.Second)
	_, err := f.svc.Mark(ctx, MarkRequest{EmployeeID: 1, EnforceCooldown: true})
	if !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected ErrCooldown, got %v", err)
	}

	// Manual marks ignore the cooldown.
	res, err := f.svc.Mark(ctx, MarkRequest{EmployeeID: 1})
	if err != nil {
		t.Fatalf("manual mark failed: %v", err)
	}
	if res.Action != ActionCheckOut {
		t.Errorf("expected check-out, got %s", res.Action)
	}

	// Other employees are not affected.
	if _, err := f.svc.Mark(ctx, MarkRequest{EmployeeID: 2, EnforceCooldown: true}); err != nil {
		t.Errorf("unexpected error for another employee: %v", err)
	}

	f.now = f.now.Add(2 * time.Minute)
	if _, err := f.svc.Mark(ctx, MarkRequest{EmployeeID: 1, EnforceCooldown: true}); err != nil {
		t.Errorf("expected mark after cooldown, got %v", err)
	}
}

func TestMark_UnknownEmployee(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.svc.Mark(context.Background(), MarkRequest{EmployeeID: 99})
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMark_StoreError(t *testing.T) {
	f := newFixture(t, 0)
	f.attendances.FindOpenError = errors.New("connection reset")

	if _, err := f.svc.Mark(context.Background(), MarkRequest{EmployeeID: 1}); err == nil {
		t.Error("expected error")
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != database.StatusPresent || !a.CheckIn.Equal(f.now) {
		t.Errorf("unexpected attendance %+v", a)
	}

	a, err = f.svc.Create(ctx, 2, "absent")
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != database.StatusAbsent {
		t.Errorf("expected ABSENT, got %s", a.Status)
	}

	if _, err := f.svc.Create(ctx, 1, "HOLIDAY"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, 1, "PRESENT")
	if err != nil {
		t.Fatal(err)
	}

	f.now = monday(12, 0)
	updated, err := f.svc.Update(ctx, a.ID, 2, "LATE")
	if err != nil {
		t.Fatal(err)
	}
	if updated.EmployeeID != 2 || updated.EmployeeName != "Minh" || updated.Status != database.StatusLate {
		t.Errorf("unexpected attendance %+v", updated)
	}
	if updated.CheckOut == nil || !updated.CheckOut.Equal(monday(12, 0)) {
		t.Errorf("expected check-out to be stamped, got %v", updated.CheckOut)
	}

	if _, err := f.svc.Update(ctx, 999, 1, "PRESENT"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Update(ctx, a.ID, 1, "nope"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Delete(ctx, a.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

type errPublisher struct{}

func (errPublisher) Publish(context.Context, events.Event) error { return errors.New("broker down") }

func TestMark_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, 0)
	f.svc.publisher = errPublisher{}

	if _, err := f.svc.Mark(context.Background(), MarkRequest{EmployeeID: 1}); err != nil {
		t.Errorf("publish errors must not fail the mark: %v", err)
	}
}

func TestMark_ConcurrentKiosksOpenOneAttendance(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	const kiosks = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		checkIns  int
		cooldowns int
		failures  []error
	)
	start := make(chan struct{})
	for i := range kiosks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := f.svc.Mark(ctx, MarkRequest{
				EmployeeID:      1,
				DeviceID:        fmt.Sprintf("kiosk-%d", i),
				Source:          events.SourceLive,
				EnforceCooldown: true,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrCooldown):
				cooldowns++
			case err != nil:
				failures = append(failures, err)
			case res.Action == ActionCheckIn:
				checkIns++
			default:
				failures = append(failures, fmt.Errorf("unexpected action %s", res.Action))
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if checkIns != 1 || cooldowns != kiosks-1 {
		t.Errorf("expected 1 check-in and %d cooldowns, got %d and %d", kiosks-1, checkIns, cooldowns)
	}

	page, err := f.attendances.ListByEmployee(ctx, 1, database.PageRequest{Page: 0, Size: 50})
	if err != nil {
		t.Fatalf("ListByEmployee failed: %v", err)
	}
	if page.TotalElements != 1 || page.Content[0].CheckOut != nil {
		t.Errorf("expected a single open attendance, got %+v", page.Content)
	}
}
