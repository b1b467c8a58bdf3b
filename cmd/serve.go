package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/events"
	"github.com/kozaktomas/face-attendance/internal/live"
	"github.com/kozaktomas/face-attendance/internal/mlclient"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const janitorInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance web server.
The server provides the REST API for employees, users and attendance,
an SSE feed of attendance events, and the live WebSocket gateway that
recognizes faces in kiosk frames and marks attendance.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides WEB_HOST)")
}

// resolveServeHostPort applies explicitly set flags over the environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.WebConfig) {
	if cmd.Flags().Changed("port") {
		cfg.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = mustGetString(cmd, "host")
	}
}

// newPublisher fans events out to in-process listeners and, when configured, RabbitMQ.
func newPublisher(cfg *config.Config, broadcaster *events.Broadcaster, logger *zap.Logger) (events.Publisher, func(), error) {
	if cfg.AMQP.URL == "" {
		return broadcaster, func() {}, nil
	}
	broker, err := events.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return events.Multi{broadcaster, broker}, func() { broker.Close() }, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	resolveServeHostPort(cmd, &cfg.Web)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()
	go b.runJanitor(ctx, janitorInterval, logger)

	broadcaster := events.NewBroadcaster()
	publisher, closePublisher, err := newPublisher(cfg, broadcaster, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	service := attendance.NewService(b.attendances, b.employees, publisher, cfg.Policy, cfg.Attendance.Cooldown, logger)
	recognizer := mlclient.New(cfg.ML.URL)
	tokens := middleware.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiration, b.denylist())

	opts := live.DefaultOptions()
	opts.FrameInterval = cfg.Live.FrameInterval
	opts.VerifyTimeout = cfg.ML.Timeout
	opts.Threshold = cfg.ML.VerifyThreshold
	opts.AllowedOrigins = cfg.Web.AllowedOrigins
	hub := live.NewHub(recognizer, b.recognitionCache(), service, b.employees, opts, logger.Named("live"))

	server := web.NewServer(cfg.Web, web.Deps{
		Users:           b.users,
		Employees:       b.employees,
		Attendance:      service,
		Tokens:          tokens,
		Recognizer:      recognizer,
		Live:            hub,
		Events:          broadcaster,
		Health:          b.healthChecks(),
		VerifyThreshold: cfg.ML.VerifyThreshold,
		LiveRequireAuth: cfg.Live.RequireAuth,
	}, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sigChan
		logger.Info("Shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		// Close long-lived connections first, the HTTP server does not track them.
		hub.Close()
		broadcaster.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	}()

	fmt.Printf("Starting Face Attendance on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-shutdownDone
	return nil
}
