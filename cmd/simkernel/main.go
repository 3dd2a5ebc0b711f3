// Command simkernel runs a small demo simulation on top of the kernel
// package, to exercise the frame scheduler end to end: a synchronous
// integrator and an asynchronous snapshot-on-demand telemetry module, both
// driven through one RunFrame loop.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to the kernel via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"simkernel/internal/logging"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug, // allow all levels; filtering done by ComponentFilterHandler
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "simkernel",
		Short: "Data-oriented simulation kernel demo host",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			component, _ := cmd.Flags().GetString("debug-component")
			if component != "" {
				filterHandler.SetLevel(component, slog.LevelDebug)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().String("debug-component", "", "enable debug logging for one component (kernel, scheduler, provider, ...)")

	rootCmd.AddCommand(newRunCommand(logger), newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
