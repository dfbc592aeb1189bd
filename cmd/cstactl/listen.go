package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danmuck/csta/internal/engine"
	"github.com/danmuck/csta/internal/transport"
)

func listenCmd(configPath *string) *cobra.Command {
	var reconnect int

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect, log in and print every event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, *configPath)
			if err != nil {
				return err
			}
			defer s.close()

			out := cmd.OutOrStdout()
			s.engine.Subscribe(func(ev engine.Event) { printEvent(out, ev) })
			if err := s.login(ctx); err != nil {
				return err
			}
			for {
				err := s.wait(ctx)
				if err == nil || reconnect == 0 || transport.IsFatal(err) {
					return err
				}
				s.logger.Warn().Err(err).Int("attempts", reconnect).Msg("reconnecting")
				ok, err := s.engine.ConnectRetry(ctx, s.cfg.Host, s.cfg.Port, s.cfg.Mode, engine.DefaultBackoff(), reconnect)
				if err != nil {
					return err
				}
				if !ok {
					return errReconnectFailed
				}
				if err := s.login(ctx); err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().IntVarP(&reconnect, "reconnect", "r", 0, "reconnect attempts after the connection drops (negative retries forever)")
	return cmd
}
