package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/live"
	"github.com/kozaktomas/face-attendance/internal/livesession"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var kioskCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Stream frames to the live attendance gateway",
	Long: `Run a headless kiosk that streams frames to the live attendance gateway
and prints recognition results.

Frames come from --source, either a single image or a directory of images
that is replayed in a loop. The session reconnects with backoff when the
gateway goes away. The token defaults to the KIOSK_TOKEN environment variable.`,
	RunE: runKiosk,
}

func init() {
	rootCmd.AddCommand(kioskCmd)

	kioskCmd.Flags().String("url", "ws://localhost:8080/api/ws/attendance", "Gateway WebSocket URL")
	kioskCmd.Flags().String("device", "kiosk-1", "Device ID used as the gateway room")
	kioskCmd.Flags().String("source", "", "Image file or directory of frames (required)")
	kioskCmd.Flags().String("token", "", "Bearer token for gateways that require authentication")
	kioskCmd.Flags().Duration("interval", constants.DefaultCaptureInterval, "Time between frames")
	kioskCmd.Flags().Int("max-in-flight", livesession.DefaultMaxInFlight, "Maximum unanswered frames")
	kioskCmd.Flags().Duration("pending-timeout", livesession.DefaultPendingTimeout, "Time after which an unanswered frame is dropped")
}

// kioskConfig builds the session configuration from flags.
func kioskConfig(cmd *cobra.Command) livesession.Config {
	token := mustGetString(cmd, "token")
	if token == "" {
		token = os.Getenv("KIOSK_TOKEN")
	}
	return livesession.Config{
		URL:            mustGetString(cmd, "url"),
		DeviceID:       mustGetString(cmd, "device"),
		Token:          token,
		Interval:       mustGetDuration(cmd, "interval"),
		MaxInFlight:    mustGetInt(cmd, "max-in-flight"),
		PendingTimeout: mustGetDuration(cmd, "pending-timeout"),
	}
}

func printOutcome(o livesession.Outcome) {
	msg := o.Message
	switch {
	case o.Kind == livesession.KindTimeout:
		fmt.Printf("frame %s timed out after %s\n", o.FrameID, o.Latency.Round(time.Millisecond))
	case msg == nil:
		return
	case o.Foreign && msg.Succeeded():
		fmt.Printf("%s recognized on %s\n", msg.Name, msg.DeviceID)
	case msg.Succeeded():
		score := 0.0
		if msg.Score != nil {
			score = *msg.Score
		}
		fmt.Printf("%s recognized (%.2f, %s) in %s\n", msg.Name, score, msg.Action, o.Latency.Round(time.Millisecond))
	case msg.Type == live.TypeError:
		fmt.Printf("error: %s\n", msg.Message)
	}
}

func runKiosk(cmd *cobra.Command, args []string) error {
	_, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	sourcePath := mustGetString(cmd, "source")
	if sourcePath == "" {
		return errors.New("--source is required")
	}
	source, err := livesession.OpenSource(sourcePath)
	if err != nil {
		return err
	}

	session, err := livesession.New(kioskConfig(cmd), source, logger.Named("kiosk"))
	if err != nil {
		return err
	}
	session.OnStateChange(func(c livesession.StateChange) {
		if c.Err != nil {
			fmt.Printf("[%s -> %s] %v\n", c.From, c.To, c.Err)
			return
		}
		fmt.Printf("[%s -> %s]\n", c.From, c.To)
	})
	session.OnOutcome(printOutcome)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Press Ctrl+C to stop")
	runErr := session.Run(ctx)

	stats := session.Stats()
	fmt.Println("\nKiosk stopped")
	fmt.Printf("  Frames sent:  %d\n", stats.Sent)
	fmt.Printf("  Results:      %d\n", stats.Results)
	fmt.Printf("  Matched:      %d\n", stats.Matched)
	fmt.Printf("  Throttled:    %d\n", stats.Throttled)
	fmt.Printf("  Busy:         %d\n", stats.Busy)
	fmt.Printf("  Timeouts:     %d\n", stats.Timeouts)
	fmt.Printf("  Reconnects:   %d\n", stats.Reconnects)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("Kiosk session failed", zap.Error(runErr))
		return runErr
	}
	return nil
}
