package engine

import (
	"testing"
	"time"

	"github.com/danmuck/csta/internal/protocol/command"
	"github.com/danmuck/csta/internal/protocol/frame"
	"github.com/danmuck/csta/internal/testutil/testlog"
)

func TestKeepaliveSentEachInterval(t *testing.T) {
	testlog.Start(t)
	const interval = 300 * time.Millisecond
	e := newTestEngine(t, interval)
	_, peer := connectPlain(t, e)

	peer.ExpectNone(t, interval/2)
	want := command.XMLDeclaration + "<keepalive/>"
	for i := 1; i <= 2; i++ {
		fr := peer.Next(t, interval*2)
		if string(fr.Body) != want {
			t.Fatalf("tick %d body=%s", i, fr.Body)
		}
		if fr.Sequence != frame.FormatSequence(i) {
			t.Fatalf("tick %d seq=%s", i, fr.Sequence)
		}
	}
}

func TestKeepaliveStopsOnDisconnect(t *testing.T) {
	testlog.Start(t)
	const interval = 100 * time.Millisecond
	e := newTestEngine(t, interval)
	_, peer := connectPlain(t, e)
	peer.Next(t, interval*3)

	e.Disconnect()
	if !peer.Closed(waitTimeout) {
		t.Fatalf("connection still open")
	}
	time.Sleep(interval * 3)
	select {
	case err := <-e.Fatal():
		t.Fatalf("unexpected fatal: %v", err)
	default:
	}
}
