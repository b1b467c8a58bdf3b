// Package export writes attendance reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/xuri/excelize/v2"
)

// Sheet names
const (
	SheetAttendance = "Attendance"
	SheetSummary    = "Summary"
)

// ContentType of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var attendanceHeader = []any{
	"ID", "Employee ID", "Employee", "Date", "Check in", "Check out",
	"Status", "Over time", "Location", "Note",
}

var summaryHeader = []any{
	"Employee ID", "Employee", "Days", "Present", "Late", "Overtime", "Absent", "Open",
}

// Report is an attendance export for a period.
type Report struct {
	From     time.Time
	To       time.Time
	Location *time.Location
	Records  []database.Attendance
}

// FileName returns the download name for the report.
func (r Report) FileName() string {
	return fmt.Sprintf("attendance_%s_%s.xlsx", r.From.Format(dateLayout), r.To.Format(dateLayout))
}

// SummaryRow aggregates one employee over the period.
type SummaryRow struct {
	EmployeeID int64
	Name       string
	Days       int
	Present    int
	Late       int
	Overtime   int
	Absent     int
	Open       int
}

// Summarize counts attendances per employee, ordered by name.
func Summarize(records []database.Attendance, loc *time.Location) []SummaryRow {
	if loc == nil {
		loc = time.UTC
	}
	byEmployee := make(map[int64]*SummaryRow)
	days := make(map[int64]map[string]struct{})

	for _, a := range records {
		row, ok := byEmployee[a.EmployeeID]
		if !ok {
			row = &SummaryRow{EmployeeID: a.EmployeeID, Name: a.EmployeeName}
			byEmployee[a.EmployeeID] = row
			days[a.EmployeeID] = make(map[string]struct{})
		}
		days[a.EmployeeID][a.CheckIn.In(loc).Format(dateLayout)] = struct{}{}

		switch a.Status {
		case database.StatusPresent:
			row.Present++
		case database.StatusLate:
			row.Late++
		case database.StatusOvertime:
			row.Overtime++
		case database.StatusAbsent:
			row.Absent++
		}
		if a.Open() {
			row.Open++
		}
	}

	rows := make([]SummaryRow, 0, len(byEmployee))
	for id, row := range byEmployee {
		row.Days = len(days[id])
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].EmployeeID < rows[j].EmployeeID
	})
	return rows
}

// Write renders the report as an XLSX workbook with an attendance sheet and a per-employee summary.
func Write(w io.Writer, r Report) error {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetAttendance); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	rows := make([][]any, 0, len(r.Records))
	for _, a := range r.Records {
		checkIn := a.CheckIn.In(loc)
		checkOut := ""
		if a.CheckOut != nil {
			checkOut = a.CheckOut.In(loc).Format(timeLayout)
		}
		rows = append(rows, []any{
			a.ID, a.EmployeeID, a.EmployeeName,
			checkIn.Format(dateLayout), checkIn.Format(timeLayout), checkOut,
			string(a.Status), a.OverTime, a.Location, a.Note,
		})
	}
	if err := writeTable(f, SheetAttendance, attendanceHeader, rows, headerStyle); err != nil {
		return err
	}
	widths := map[string]float64{"A": 8, "B": 12, "C": 28, "D": 12, "E": 10, "F": 10, "G": 11, "H": 10, "I": 24, "J": 40}
	for col, width := range widths {
		if err := f.SetColWidth(SheetAttendance, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	summary := Summarize(r.Records, loc)
	rows = rows[:0]
	for _, s := range summary {
		rows = append(rows, []any{s.EmployeeID, s.Name, s.Days, s.Present, s.Late, s.Overtime, s.Absent, s.Open})
	}
	if err := writeTable(f, SheetSummary, summaryHeader, rows, headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetSummary, "B", "B", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	period := fmt.Sprintf("Period: %s to %s", r.From.In(loc).Format(dateLayout), r.To.In(loc).Format(dateLayout))
	footer, err := excelize.CoordinatesToCellName(1, len(rows)+3)
	if err != nil {
		return fmt.Errorf("footer cell: %w", err)
	}
	if err := f.SetCellValue(SheetSummary, footer, period); err != nil {
		return fmt.Errorf("write period: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d cell: %w", i, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze %s header: %w", sheet, err)
	}
	if len(rows) > 0 {
		end, err := excelize.CoordinatesToCellName(len(header), len(rows)+1)
		if err != nil {
			return fmt.Errorf("filter range: %w", err)
		}
		if err := f.AutoFilter(sheet, "A1:"+end, nil); err != nil {
			return fmt.Errorf("filter %s: %w", sheet, err)
		}
	}
	return nil
}
