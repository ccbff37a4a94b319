package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lightkeeper-hq/lightkeeper/pkg/ui"
	"github.com/lightkeeper-hq/lightkeeper/pkg/version"
)

// Build-time variables set via ldflags.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

func init() {
	version.Version = buildVersion
	version.Commit = buildCommit
	version.Date = buildDate
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	logWriter := ui.NewConditionalWriter(os.Stdout, true)
	log := logrus.New()
	log.SetOutput(logWriter)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd := &cobra.Command{
		Use:     "lightkeeper",
		Short:   "Host-fleet observability and remediation",
		Long:    `lightkeeper watches a fleet of hosts via pluggable monitors and drives remediation via pluggable commands.`,
		Version: version.GetFullVersion(),
	}

	var (
		mainConfigPath   string
		hostsConfigPath  string
		groupsConfigPath string
		logLevel         string
		verbose          bool
	)

	rootCmd.PersistentFlags().StringVar(&mainConfigPath, "config", "lightkeeper.yaml", "Path to main config file")
	rootCmd.PersistentFlags().StringVar(&hostsConfigPath, "hosts", "hosts.yaml", "Path to hosts config file")
	rootCmd.PersistentFlags().StringVar(&groupsConfigPath, "groups", "groups.yaml", "Path to groups config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (show all logs)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}

		log.SetLevel(level)
		logWriter.SetEnabled(verbose || level >= logrus.InfoLevel)

		return nil
	}

	cfgPaths := configPaths(func() (string, string, string) {
		return mainConfigPath, hostsConfigPath, groupsConfigPath
	})

	rootCmd.AddCommand(newServeCommand(log, cfgPaths))
	rootCmd.AddCommand(newHostsCommand(log, cfgPaths))
	rootCmd.AddCommand(newMonitorCommand(log, cfgPaths))
	rootCmd.AddCommand(newCommandCommand(log, cfgPaths))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
