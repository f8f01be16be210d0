package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/searchktools/tiny-server/app"
	"github.com/searchktools/tiny-server/config"
)

func main() {
	if err := newCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "tiny-server",
		Short:         "Minimal HTTP/1.1 server on raw TCP sockets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			if err := registerRoutes(a.Engine()); err != nil {
				return fmt.Errorf("failed to register routes: %w", err)
			}
			return a.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.IntP("port", "p", 8080, "TCP port to listen on")
	flags.BoolP("listen", "l", false, "listen on every interface instead of loopback")
	flags.IntP("workers", "w", 0, "number of processors (default: number of CPUs)")
	flags.Bool("debug", false, "development logging at debug level")
	flags.Bool("exposing", false, "include error details in 500 responses")
	flags.Int("buffer-size", 4096, "socket read chunk size in bytes")
	flags.Duration("read-timeout", 0, "request read timeout (0 disables)")
	flags.Duration("write-timeout", 0, "response write timeout (0 disables)")
	flags.Duration("drain-timeout", time.Second, "how long shutdown waits on requests still being read")
	flags.Int("queue-bound", 0, "bound of the accepted and incoming queues (0 = unbounded)")
	flags.String("queue-policy", "block", "what a full queue does: block or reject")
	flags.Int("max-connections", 0, "cap on open connections (0 = no cap)")
	flags.Bool("trace", false, "export request spans to stdout")
	flags.String("env", "development", "deployment environment")

	// flags left unset fall back to TINY_* variables, then to the defaults
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return v.BindPFlags(cmd.Flags())
	}

	return cmd
}
