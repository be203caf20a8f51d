// Command dump refreshes once and prints the exposition document, for checking
// what the exporter would serve from a given metrics file and cgroup tree.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nimbus-benchmark-exporter/internal/collector"
	"nimbus-benchmark-exporter/internal/config"
	"nimbus-benchmark-exporter/internal/util"
)

var flags config.Flags

var rootCmd = &cobra.Command{
	Use:          "dump",
	Short:        "Print the metrics the exporter would serve right now",
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

func run(cmd *cobra.Command, args []string) error {
	cfg, err := flags.Load(cmd.Flags())
	if err != nil {
		return err
	}

	level, err := util.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := &util.MetricsLogger{}
	// Diagnostics go to stderr (or the log dir) so stdout stays a clean document.
	if err := logger.Init(cfg.LogDir, "dump.log", level); err != nil {
		return err
	}
	defer logger.DeInit()

	exporter := collector.FromConfig(cfg, logger)
	if err := exporter.Refresh(context.Background()); err != nil {
		return err
	}

	out, err := exporter.Serialize()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
