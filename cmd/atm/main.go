package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/atmsvr/internal/client"
	"github.com/gyaneshwarpardhi/atmsvr/internal/connector"
	"github.com/gyaneshwarpardhi/atmsvr/internal/exitcode"
	"github.com/gyaneshwarpardhi/atmsvr/internal/telemetry"
)

type options struct {
	host      string
	port      string
	localPort int
	origin    uint32
	heartbeat time.Duration
	freeform  bool
	logLevel  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		slog.Error("atm terminated", "err", err)
	}
	stop()
	os.Exit(exitcode.FromError(err))
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "atm -d host -p port [-l localport]",
		Short: "Report ATM events read from standard input to the collector",
		Long: `Read one event per line from standard input and send each to the
collector over a fresh TCP connection. A heartbeat is sent periodically
while input is being read.

Input lines have the form:
  MONTH:DAY:YEAR:HOUR:MINUTE:SERIAL MESSAGE
where MESSAGE is an event name such as "Low Cash alert". With --freeform
each line is taken as a bare MESSAGE.

Example:
  atm -d svr.example.com -p 9000 < events.txt
  atm -d 10.0.0.5 -p 9000 -l 4000 --heartbeat 10s`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unexpected arguments %v", exitcode.ErrUsage, args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.host == "" || opts.port == "" {
				_ = cmd.Usage()
				return fmt.Errorf("%w: -d and -p are required", exitcode.ErrUsage)
			}
			if opts.localPort < 0 || opts.localPort > 65535 {
				return fmt.Errorf("%w: invalid local port %d", exitcode.ErrUsage, opts.localPort)
			}
			telemetry.Init(telemetry.ParseLevel(opts.logLevel), os.Stderr)
			return run(cmd.Context(), opts)
		},
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		_ = cmd.Usage()
		return fmt.Errorf("%w: %w", exitcode.ErrUsage, err)
	})

	f := cmd.Flags()
	f.StringVarP(&opts.host, "host", "d", "", "collector host name or IPv4 address (required)")
	f.StringVarP(&opts.port, "port", "p", "", "collector port (required)")
	f.IntVarP(&opts.localPort, "local-port", "l", 0, "local port to send from, any when 0")
	f.Uint32Var(&opts.origin, "origin", 0, "terminal id, random when 0")
	f.DurationVar(&opts.heartbeat, "heartbeat", client.DefaultHeartbeatInterval, "heartbeat interval")
	f.BoolVar(&opts.freeform, "freeform", false, "treat each input line as a bare event message")
	f.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}

func run(ctx context.Context, opts *options) error {
	var connOpts []connector.Option
	if opts.localPort > 0 {
		connOpts = append(connOpts, connector.WithLocalPort(opts.localPort))
	}
	c, err := connector.New(opts.host, opts.port, connOpts...)
	if err != nil {
		return fmt.Errorf("%w: %w", exitcode.ErrUsage, err)
	}

	d := client.New(connector.NewSender(c), client.Config{
		Origin:            opts.origin,
		HeartbeatInterval: opts.heartbeat,
		Freeform:          opts.freeform,
	})
	slog.Info("atm started", "origin", d.Origin(), "collector", opts.host+":"+opts.port)

	if err := d.Run(ctx, os.Stdin); err != nil {
		return err
	}
	slog.Info("end of input")
	return nil
}
