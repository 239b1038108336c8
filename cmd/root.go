// Package cmd contains the CLI commands for tlareport
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ConfigEnv names the environment variable holding the config path
const ConfigEnv = "TLAREPORT_CONFIG"

//nolint:gochecknoglobals // Global vars needed for cobra CLI
var (
	cfgFile string
	logger  *logrus.Logger
)

// rootCmd represents the base command
//
//nolint:gochecknoglobals // Cobra commands are typically global
var rootCmd = &cobra.Command{
	Use:   "tlareport",
	Short: "TLA Report - failure reports from test station exports",
	Long: `tlareport reads the xlsx and csv exports of the test stations, keeps a
columnar cache per source, and produces the daily failure report: the top
failure categories, per-shift failure rates and optional daily and weekly
trends.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $TLAREPORT_CONFIG or ./tlareport.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error, fatal, panic), overrides the config file")

	// Initialize logger
	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func initConfig() {
	// A .env file is optional
	_ = godotenv.Load()

	if cfgFile == "" {
		cfgFile = os.Getenv(ConfigEnv)
	}
}
