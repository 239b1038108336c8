package cmd

import (
	"github.com/ethpandaops/tlareport/pkg/report"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// loadConfig reads the configuration and applies its log level, unless
// --log-level was given
func loadConfig(cmd *cobra.Command) (*report.Config, error) {
	cfg, err := report.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	logLevel := cfg.Logging
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		logLevel = flag
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, defaulting to info")

		level = logrus.InfoLevel
	}

	logger.SetLevel(level)

	logger.WithField("config", cfgFile).Debug("Configuration loaded")

	return cfg, nil
}

// newService loads the configuration and wires a report service
func newService(cmd *cobra.Command, opts ...report.Option) (*report.Service, *report.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	svc, err := report.NewService(logger, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}

	return svc, cfg, nil
}

func closeService(svc *report.Service) {
	if err := svc.Close(); err != nil {
		logger.WithError(err).Error("Failed to close report service")
	}
}
