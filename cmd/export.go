package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/export"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance records to an XLSX spreadsheet",
	Long: `Export attendance records with check-in between --from and --to (both inclusive)
to an XLSX spreadsheet. Without dates the current month is exported.
Dates are interpreted in the attendance policy time zone.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("from", "", "First day to export (YYYY-MM-DD)")
	exportCmd.Flags().String("to", "", "Last day to export (YYYY-MM-DD)")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default attendance_<from>_<to>.xlsx)")
}

// exportPeriod resolves the inclusive day range, defaulting to the month containing now.
func exportPeriod(fromStr, toStr string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	now = now.In(loc)
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, -1)

	if fromStr != "" {
		d, err := time.ParseInLocation(dateLayout, fromStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date %q", fromStr)
		}
		from = d
	}
	if toStr != "" {
		d, err := time.ParseInLocation(dateLayout, toStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date %q", toStr)
		}
		to = d
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("--to must not be before --from")
	}
	return from, to, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	loc := cfg.Policy.Location()
	from, to, err := exportPeriod(mustGetString(cmd, "from"), mustGetString(cmd, "to"), time.Now(), loc)
	if err != nil {
		return err
	}

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	ctx := context.Background()
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	records, err := postgres.NewAttendanceRepository(pool).ListBetween(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("loading attendance: %w", err)
	}

	report := export.Report{From: from, To: to, Location: loc, Records: records}
	output := mustGetString(cmd, "output")
	if output == "" {
		output = report.FileName()
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if err := export.Write(f, report); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", output, err)
	}

	fmt.Printf("Exported %d records (%s to %s) to %s\n",
		len(records), from.Format(dateLayout), to.Format(dateLayout), output)
	return nil
}
