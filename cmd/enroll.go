package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/imageutil"
	"github.com/kozaktomas/face-attendance/internal/mlclient"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <directory>",
	Short: "Bulk enroll employee faces from a directory",
	Long: `Enroll face photos for many employees at once.

The directory must contain one subdirectory per employee, named by the
employee ID, holding that employee's photos:

  faces/
    12/front.jpg
    12/left.jpg
    13/photo.png

Every photo is normalized to JPEG before it is sent to the recognition service.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Bool("deny-if-exists", false, "Skip employees that are already enrolled")
	enrollCmd.Flags().Bool("prevent-duplicate", true, "Reject faces that match a different enrolled employee")
	enrollCmd.Flags().Float64("threshold", constants.DefaultDuplicateThreshold, "Duplicate face similarity threshold")
	enrollCmd.Flags().Int("concurrency", 4, "Number of employees enrolled in parallel")
	enrollCmd.Flags().Bool("json", false, "Output as JSON")
}

// enrollBatch is the set of photos found for one employee.
type enrollBatch struct {
	EmployeeID int64
	Files      []string
}

// EnrollResult summarizes a bulk enrollment run.
type EnrollResult struct {
	Employees     int               `json:"employees"`
	Enrolled      int               `json:"enrolled"`
	Skipped       int               `json:"skipped"`
	Errors        int               `json:"errors"`
	Failures      map[string]string `json:"failures,omitempty"`
	DurationMs    int64             `json:"duration_ms"`
	DurationHuman string            `json:"-"`
}

// collectEnrollments scans dir for <employeeID>/ subdirectories holding images.
// Entries that are not numeric directories or not regular files are ignored.
func collectEnrollments(dir string) ([]enrollBatch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var batches []enrollBatch
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil || id <= 0 {
			continue
		}

		files, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		batch := enrollBatch{EmployeeID: id}
		for _, f := range files {
			if f.Type().IsRegular() {
				batch.Files = append(batch.Files, filepath.Join(dir, entry.Name(), f.Name()))
			}
		}
		if len(batch.Files) > 0 {
			sort.Strings(batch.Files)
			batches = append(batches, batch)
		}
	}

	sort.Slice(batches, func(i, j int) bool { return batches[i].EmployeeID < batches[j].EmployeeID })
	return batches, nil
}

// loadEnrollImages reads and normalizes the batch photos, skipping files that are not images.
func loadEnrollImages(files []string) ([][]byte, error) {
	var images [][]byte
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if !imageutil.IsImage(data) {
			continue
		}
		normalized, err := imageutil.NormalizeJPEG(data, constants.MaxEnrollDimension)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		images = append(images, normalized)
	}
	if len(images) == 0 {
		return nil, errors.New("no images found")
	}
	return images, nil
}

// enrollOne enrolls a single batch. It reports skipped=true when the employee was already enrolled.
func enrollOne(ctx context.Context, client *mlclient.Client, employees database.EmployeeStore, batch enrollBatch, template mlclient.EnrollRequest) (bool, error) {
	if _, err := employees.Get(ctx, batch.EmployeeID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, errors.New("employee not found")
		}
		return false, err
	}

	images, err := loadEnrollImages(batch.Files)
	if err != nil {
		return false, err
	}

	req := template
	req.EmployeeID = batch.EmployeeID
	req.Images = images
	if _, err := client.Enroll(ctx, req); err != nil {
		if req.DenyIfExists && mlclient.IsConflict(err) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	jsonOutput := mustGetBool(cmd, "json")
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}
	template := mlclient.EnrollRequest{
		DenyIfExists:         mustGetBool(cmd, "deny-if-exists"),
		PreventDuplicateFace: mustGetBool(cmd, "prevent-duplicate"),
		Threshold:            mustGetFloat64(cmd, "threshold"),
	}

	batches, err := collectEnrollments(args[0])
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		return fmt.Errorf("no employee directories found in %s", args[0])
	}

	ctx := context.Background()
	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	client := mlclient.New(cfg.ML.URL)
	startTime := time.Now()

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		fmt.Printf("Enrolling %d employees from %s\n", len(batches), args[0])
		bar = progressbar.NewOptions(len(batches),
			progressbar.OptionSetDescription("Enrolling faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("employees"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	var enrolled, skipped int64
	var mu sync.Mutex
	failures := make(map[string]string)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, batch := range batches {
		wg.Add(1)
		go func(batch enrollBatch) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			wasSkipped, err := enrollOne(ctx, client, b.employees, batch, template)
			switch {
			case err != nil:
				mu.Lock()
				failures[strconv.FormatInt(batch.EmployeeID, 10)] = err.Error()
				mu.Unlock()
			case wasSkipped:
				atomic.AddInt64(&skipped, 1)
			default:
				atomic.AddInt64(&enrolled, 1)
			}

			if bar != nil {
				bar.Add(1)
			}
		}(batch)
	}

	wg.Wait()

	if bar != nil {
		fmt.Println()
	}

	duration := time.Since(startTime)
	result := EnrollResult{
		Employees:     len(batches),
		Enrolled:      int(enrolled),
		Skipped:       int(skipped),
		Errors:        len(failures),
		Failures:      failures,
		DurationMs:    duration.Milliseconds(),
		DurationHuman: formatDuration(duration),
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println("\nEnrollment complete!")
	fmt.Printf("  Employees: %d\n", result.Employees)
	fmt.Printf("  Enrolled:  %d\n", result.Enrolled)
	if result.Skipped > 0 {
		fmt.Printf("  Skipped:   %d (already enrolled)\n", result.Skipped)
	}
	if result.Errors > 0 {
		fmt.Printf("  Errors:    %d\n", result.Errors)
		ids := make([]string, 0, len(failures))
		for id := range failures {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("    %s: %s\n", id, failures[id])
		}
	}
	fmt.Printf("  Duration:  %s\n", result.DurationHuman)

	return nil
}
