package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceSelect = `
	SELECT a.id, a.employee_id, e.name, a.check_in, a.check_out, a.status, a.note,
	       a.over_time, a.location, a.created_at, a.updated_at
	FROM attendances a
	JOIN employees e ON e.id = a.employee_id
`

// Create inserts an attendance record
func (r *AttendanceRepository) Create(ctx context.Context, a *database.Attendance) error {
	query := `
		WITH inserted AS (
			INSERT INTO attendances (employee_id, check_in, check_out, status, note, over_time, location)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, employee_id, created_at, updated_at
		)
		SELECT i.id, e.name, i.created_at, i.updated_at
		FROM inserted i
		JOIN employees e ON e.id = i.employee_id
	`
	err := r.pool.QueryRow(ctx, query,
		a.EmployeeID, a.CheckIn, a.CheckOut, string(a.Status), a.Note, a.OverTime, a.Location,
	).Scan(&a.ID, &a.EmployeeName, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create attendance for employee %d: %w", a.EmployeeID, mapError(err))
	}
	return nil
}

// Get retrieves an attendance record by ID
func (r *AttendanceRepository) Get(ctx context.Context, id int64) (*database.Attendance, error) {
	a, err := scanAttendance(r.pool.QueryRow(ctx, attendanceSelect+` WHERE a.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get attendance %d: %w", id, mapError(err))
	}
	return a, nil
}

// List returns a page of all attendance records, newest first
func (r *AttendanceRepository) List(ctx context.Context, req database.PageRequest) (database.Page[database.Attendance], error) {
	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM attendances").Scan(&total); err != nil {
		return database.Page[database.Attendance]{}, fmt.Errorf("count attendances: %w", err)
	}

	rows, err := r.pool.Query(ctx, attendanceSelect+`
		ORDER BY a.check_in DESC, a.id DESC
		LIMIT $1 OFFSET $2
	`, req.Size, req.Offset())
	if err != nil {
		return database.Page[database.Attendance]{}, fmt.Errorf("list attendances: %w", err)
	}
	defer rows.Close()

	items, err := scanAttendances(rows)
	if err != nil {
		return database.Page[database.Attendance]{}, err
	}
	return database.NewPage(items, total, req), nil
}

// ListByEmployee returns a page of one employee's records, newest first
func (r *AttendanceRepository) ListByEmployee(ctx context.Context, employeeID int64, req database.PageRequest) (database.Page[database.Attendance], error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM attendances WHERE employee_id = $1", employeeID,
	).Scan(&total); err != nil {
		return database.Page[database.Attendance]{}, fmt.Errorf("count attendances of employee %d: %w", employeeID, err)
	}

	rows, err := r.pool.Query(ctx, attendanceSelect+`
		WHERE a.employee_id = $1
		ORDER BY a.check_in DESC, a.id DESC
		LIMIT $2 OFFSET $3
	`, employeeID, req.Size, req.Offset())
	if err != nil {
		return database.Page[database.Attendance]{}, fmt.Errorf("list attendances of employee %d: %w", employeeID, err)
	}
	defer rows.Close()

	items, err := scanAttendances(rows)
	if err != nil {
		return database.Page[database.Attendance]{}, err
	}
	return database.NewPage(items, total, req), nil
}

// ListBetween returns records with check-in in [from, to), oldest first
func (r *AttendanceRepository) ListBetween(ctx context.Context, from, to time.Time) ([]database.Attendance, error) {
	rows, err := r.pool.Query(ctx, attendanceSelect+`
		WHERE a.check_in >= $1 AND a.check_in < $2
		ORDER BY a.check_in, a.id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list attendances between %s and %s: %w", from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return scanAttendances(rows)
}

// FindOpen returns the latest record without a check-out
func (r *AttendanceRepository) FindOpen(ctx context.Context, employeeID int64) (*database.Attendance, error) {
	a, err := scanAttendance(r.pool.QueryRow(ctx, attendanceSelect+`
		WHERE a.employee_id = $1 AND a.check_out IS NULL
		ORDER BY a.check_in DESC
		LIMIT 1
	`, employeeID))
	if err != nil {
		return nil, fmt.Errorf("find open attendance of employee %d: %w", employeeID, mapError(err))
	}
	return a, nil
}

// Update replaces the mutable fields of a record
func (r *AttendanceRepository) Update(ctx context.Context, a *database.Attendance) error {
	query := `
		WITH updated AS (
			UPDATE attendances
			SET employee_id = $2, check_out = $3, status = $4, note = $5, over_time = $6,
			    location = $7, updated_at = NOW()
			WHERE id = $1
			RETURNING employee_id, check_in, created_at, updated_at
		)
		SELECT e.name, u.check_in, u.created_at, u.updated_at
		FROM updated u
		JOIN employees e ON e.id = u.employee_id
	`
	err := r.pool.QueryRow(ctx, query,
		a.ID, a.EmployeeID, a.CheckOut, string(a.Status), a.Note, a.OverTime, a.Location,
	).Scan(&a.EmployeeName, &a.CheckIn, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update attendance %d: %w", a.ID, mapError(err))
	}
	return nil
}

// Delete removes an attendance record
func (r *AttendanceRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM attendances WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete attendance %d: %w", id, err)
	}
	if err := requireAffected(result); err != nil {
		return fmt.Errorf("delete attendance %d: %w", id, err)
	}
	return nil
}

func scanAttendance(row rowScanner) (*database.Attendance, error) {
	var (
		a        database.Attendance
		checkOut sql.NullTime
		status   string
	)
	if err := row.Scan(
		&a.ID, &a.EmployeeID, &a.EmployeeName, &a.CheckIn, &checkOut, &status,
		&a.Note, &a.OverTime, &a.Location, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if checkOut.Valid {
		t := checkOut.Time
		a.CheckOut = &t
	}
	a.Status = database.AttendanceStatus(status)
	return &a, nil
}

func scanAttendances(rows *sql.Rows) ([]database.Attendance, error) {
	var items []database.Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendances: %w", err)
	}
	return items, nil
}
