package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/csta/internal/engine"
	"github.com/danmuck/csta/internal/protocol/command"
)

func sendCmd(configPath *string) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "send <command> [key=value...]",
		Short: "Send one command and print the events that follow",
		Example: `  cstactl send presence status=Away note=lunch
  cstactl send message userId=42 text="hello" --wait 5s`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, *configPath)
			if err != nil {
				return err
			}
			defer s.close()
			if _, ok := s.engine.Registry().Lookup(name); !ok {
				return fmt.Errorf("unknown command %q (known: %v)", name, s.engine.Registry().Names())
			}

			out := cmd.OutOrStdout()
			s.engine.Subscribe(func(ev engine.Event) {
				if ev.Command != command.LoginName {
					printEvent(out, ev)
				}
			})
			if err := s.login(ctx); err != nil {
				return err
			}

			seq, err := s.engine.ExecuteHandler(name, params)
			if err != nil {
				return err
			}
			if seq < 0 {
				return fmt.Errorf("%s not sent", name)
			}
			fmt.Fprintf(out, "sent %s seq=%d\n", name, seq)

			waitCtx, cancel := context.WithTimeout(ctx, wait)
			defer cancel()
			return s.wait(waitCtx)
		},
	}
	cmd.Flags().DurationVarP(&wait, "wait", "w", 2*time.Second, "how long to print events after sending")
	return cmd
}
