package engine

import (
	"context"
	"testing"
	"time"

	"github.com/danmuck/csta/internal/protocol/command"
	"github.com/danmuck/csta/internal/testutil/cstatest"
	"github.com/danmuck/csta/internal/transport"
)

const waitTimeout = 2 * time.Second

func newTestEngine(t *testing.T, keepalive time.Duration) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.KeepAliveInterval = keepalive
	cfg.Transport.ConnectTimeout = time.Second
	cfg.Transport.HandshakeTimeout = time.Second
	cfg.Transport.WriteTimeout = time.Second
	e := New(cfg)
	for _, cmd := range command.Builtins() {
		if err := e.AddHandler(cmd); err != nil {
			t.Fatalf("add %s: %v", cmd.Name(), err)
		}
	}
	t.Cleanup(e.Disconnect)
	return e
}

func connectPlain(t *testing.T, e *Engine) (*cstatest.Server, *cstatest.Peer) {
	t.Helper()
	srv := cstatest.NewServer(t)
	ok, err := e.Connect(context.Background(), srv.Host(), srv.Port(), transport.ModePlain)
	if err != nil || !ok {
		t.Fatalf("connect ok=%v err=%v", ok, err)
	}
	return srv, srv.Accept(waitTimeout)
}

type recorder chan Event

func record(e *Engine) recorder {
	rec := make(recorder, 32)
	e.Subscribe(func(ev Event) { rec <- ev })
	return rec
}

func (r recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r:
		return ev
	case <-time.After(waitTimeout):
		t.Fatalf("no event within %v", waitTimeout)
		return Event{}
	}
}

func (r recorder) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-r:
		t.Fatalf("unexpected event %s seq=%d", ev.Name, ev.Sequence)
	case <-time.After(d):
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
