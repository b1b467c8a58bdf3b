package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance server and kiosk client",
	Long: `Face Attendance records employee check-ins and check-outs from webcam
frames. The server exposes a REST API for employees, users and attendance,
and a WebSocket gateway that recognizes faces through an external
recognition service. The kiosk command streams frames to that gateway.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadRuntime reads the configuration and builds the logger for a command.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
