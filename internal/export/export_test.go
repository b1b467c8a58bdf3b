package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/xuri/excelize/v2"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, time.UTC)
}

func sampleRecords() []database.Attendance {
	out1 := at(2, 17, 0)
	out2 := at(3, 18, 30)
	return []database.Attendance{
		{ID: 1, EmployeeID: 2, EmployeeName: "Minh", CheckIn: at(2, 8, 55), CheckOut: &out1, Status: database.StatusPresent, Location: "kiosk-1"},
		{ID: 2, EmployeeID: 1, EmployeeName: "Lan", CheckIn: at(2, 9, 20), Status: database.StatusLate, Note: "traffic"},
		{ID: 3, EmployeeID: 2, EmployeeName: "Minh", CheckIn: at(3, 8, 50), CheckOut: &out2, Status: database.StatusOvertime, OverTime: "1h30m"},
		{ID: 4, EmployeeID: 2, EmployeeName: "Minh", CheckIn: at(3, 19, 0), Status: database.StatusPresent},
	}
}

func TestSummarize(t *testing.T) {
	rows := Summarize(sampleRecords(), nil)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	lan, minh := rows[0], rows[1]
	if lan.Name != "Lan" || lan.Days != 1 || lan.Late != 1 || lan.Open != 1 {
		t.Errorf("unexpected row for Lan: %+v", lan)
	}
	if minh.Name != "Minh" || minh.Days != 2 || minh.Present != 2 || minh.Overtime != 1 || minh.Open != 1 {
		t.Errorf("unexpected row for Minh: %+v", minh)
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	report := Report{From: at(1, 0, 0), To: at(31, 0, 0), Records: sampleRecords()}
	if err := Write(&buf, report); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 2 || sheets[0] != SheetAttendance || sheets[1] != SheetSummary {
		t.Fatalf("unexpected sheets %v", sheets)
	}

	rows, err := f.GetRows(SheetAttendance)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header + 4 rows, got %d", len(rows))
	}
	if rows[0][2] != "Employee" || rows[0][6] != "Status" {
		t.Errorf("unexpected header %v", rows[0])
	}
	first := rows[1]
	if first[2] != "Minh" || first[3] != "2026-03-02" || first[4] != "08:55" || first[5] != "17:00" || first[6] != "PRESENT" {
		t.Errorf("unexpected first row %v", first)
	}
	if rows[3][7] != "1h30m" {
		t.Errorf("expected over time on third row, got %v", rows[3])
	}

	summary, err := f.GetRows(SheetSummary)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(summary) < 3 || summary[1][1] != "Lan" || summary[2][1] != "Minh" {
		t.Errorf("unexpected summary %v", summary)
	}
	if last := summary[len(summary)-1]; last[0] != "Period: 2026-03-01 to 2026-03-31" {
		t.Errorf("unexpected footer %v", last)
	}
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Report{From: at(1, 0, 0), To: at(1, 0, 0)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetAttendance)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected only the header, got %d rows", len(rows))
	}
}

func TestFileName(t *testing.T) {
	r := Report{From: at(1, 0, 0), To: at(31, 0, 0)}
	if got := r.FileName(); got != "attendance_2026-03-01_2026-03-31.xlsx" {
		t.Errorf("unexpected file name %q", got)
	}
}
