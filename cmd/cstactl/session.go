package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/csta/internal/config"
	"github.com/danmuck/csta/internal/engine"
	"github.com/danmuck/csta/internal/observability"
	"github.com/danmuck/csta/internal/protocol/command"
	"github.com/danmuck/csta/internal/protocol/tree"
)

var (
	errLoginFailed     = errors.New("login failed")
	errReconnectFailed = errors.New("reconnect failed")
)

// session is one connected and logged in engine plus the optional metrics
// listener.
type session struct {
	cfg     config.Client
	engine  *engine.Engine
	metrics *http.Server
	logger  zerolog.Logger
}

func openSession(ctx context.Context, path string) (*session, error) {
	logger := observability.InitLogger("cstactl")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger, engine: engine.New(cfg.Engine)}
	for _, cmd := range command.Builtins() {
		if err := s.engine.AddHandler(cmd); err != nil {
			return nil, err
		}
	}
	if cfg.MetricsAddr != "" {
		s.serveMetrics()
	}

	ok, err := s.engine.Connect(ctx, cfg.Host, cfg.Port, cfg.Mode)
	if err != nil {
		s.close()
		return nil, err
	}
	if !ok {
		s.close()
		return nil, fmt.Errorf("connect %s:%s (%s) failed", cfg.Host, cfg.Port, cfg.Mode)
	}
	return s, nil
}

func (s *session) serveMetrics() {
	s.metrics = &http.Server{
		Addr:              s.cfg.MetricsAddr,
		Handler:           observability.MetricsHandler(s.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Str("addr", s.cfg.MetricsAddr).Msg("metrics server stopped")
		}
	}()
	s.logger.Info().Str("addr", s.cfg.MetricsAddr).Msg("metrics listening")
}

// login sends the configured credentials and waits for the outcome.
func (s *session) login(ctx context.Context) error {
	if s.cfg.Username == "" {
		return nil
	}
	result := make(chan engine.Event, 1)
	unsubscribe := s.engine.Subscribe(func(ev engine.Event) {
		if ev.Command != command.LoginName {
			return
		}
		select {
		case result <- ev:
		default:
		}
	})
	defer unsubscribe()

	seq, err := s.engine.Login(s.cfg.Username, s.cfg.Password)
	if err != nil {
		return err
	}
	if seq < 0 {
		return fmt.Errorf("%w: request not sent", errLoginFailed)
	}
	select {
	case ev := <-result:
		if ev.Name != command.EventLoginResponse {
			code, _ := ev.Payload.Text("Code")
			return fmt.Errorf("%w: code %s", errLoginFailed, code)
		}
		s.logger.Info().Str("user", s.cfg.Username).Msg("logged in")
		return nil
	case err := <-s.engine.Fatal():
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wait blocks until ctx ends, the connection drops or a fatal error arrives.
func (s *session) wait(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-s.engine.Fatal():
			return err
		case <-ticker.C:
			if !s.engine.Connected() {
				return fmt.Errorf("connection to %s:%s closed", s.cfg.Host, s.cfg.Port)
			}
		}
	}
}

func (s *session) close() {
	s.engine.Disconnect()
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.metrics.Shutdown(ctx)
	}
}

func printEvent(w io.Writer, ev engine.Event) {
	fmt.Fprintf(w, "%s seq=%d\n", ev.Name, ev.Sequence)
	if len(ev.Payload) > 0 {
		fmt.Fprint(w, indent(tree.Dump(ev.Payload)))
	}
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(line)
	}
	return b.String()
}

// parseParams turns key=value arguments into command params. A bare key
// maps to the empty string.
func parseParams(args []string) (command.Params, error) {
	params := make(command.Params, len(args))
	for _, arg := range args {
		key, value, _ := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid param %q: want key=value", arg)
		}
		params[key] = value
	}
	return params, nil
}
