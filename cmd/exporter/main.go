package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"nimbus-benchmark-exporter/internal/collector"
	"nimbus-benchmark-exporter/internal/config"
	"nimbus-benchmark-exporter/internal/router"
	"nimbus-benchmark-exporter/internal/util"
)

const logFileName = "exporter.log"

var flags config.Flags

var rootCmd = &cobra.Command{
	Use:   "nimbus-benchmark-exporter",
	Short: "Expose Nimbus benchmark results and cgroup usage as Prometheus metrics",
	Long: `nimbus-benchmark-exporter serves /metrics and /health.

On each scrape older than the refresh interval it re-reads the benchmark
metrics file and samples the cgroup v2 accounting files of every discovered
benchmark service.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags.Register(rootCmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func LoggerInitialize(cfg *config.Config) (*util.MetricsLogger, error) {
	level, err := util.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	metricsLogger := &util.MetricsLogger{}
	if err := metricsLogger.Init(cfg.LogDir, logFileName, level); err != nil {
		return nil, err
	}
	return metricsLogger, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := flags.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := LoggerInitialize(cfg)
	if err != nil {
		return errors.Wrap(err, "initializing logger")
	}
	defer logger.DeInit()

	exporter := collector.FromConfig(cfg, logger)

	// Serve real data from the first scrape on.
	if err := exporter.Refresh(cmd.Context()); err != nil {
		logger.LogEvent(util.LOG_LEVEL_WARN, "Initial refresh failed:", err)
	}

	logger.LogEvent(util.LOG_LEVEL_INFO, "Starting Nimbus benchmark metrics exporter on", cfg.Addr())
	logger.LogEvent(util.LOG_LEVEL_INFO, "Metrics file:", cfg.MetricsFile)
	logger.LogEvent(util.LOG_LEVEL_INFO, "Refresh interval:", cfg.RefreshInterval)
	logger.LogEvent(util.LOG_LEVEL_INFO, "Endpoints: /metrics, /health")

	fmt.Fprintf(os.Stderr, "\n%s: Nimbus benchmark exporter started \n", time.Now().Format(time.RFC3339))

	return router.Run(cmd.Context(), cfg.Addr(), exporter, logger)
}
