// Package cstatest runs a scripted CSTA peer on a loopback listener.
package cstatest

import (
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danmuck/csta/internal/protocol/frame"
	"github.com/danmuck/csta/internal/transport"
)

// Server accepts client connections and hands each one out as a Peer.
type Server struct {
	t     testing.TB
	addr  net.Addr
	peers chan *Peer
	close func()
	once  sync.Once
}

// NewServer listens for plain TCP clients.
func NewServer(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return serve(t, ln)
}

// NewTLSServer listens for TLS clients with cfg.
func NewTLSServer(t testing.TB, cfg *tls.Config) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return serve(t, tls.NewListener(ln, cfg))
}

func serve(t testing.TB, ln net.Listener) *Server {
	s := &Server{t: t, addr: ln.Addr(), peers: make(chan *Peer, 8)}
	s.close = func() { _ = ln.Close() }
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if tc, ok := conn.(*tls.Conn); ok {
				// Handshake here so failed TLS clients never surface as peers.
				if err := tc.Handshake(); err != nil {
					_ = conn.Close()
					continue
				}
			}
			s.peers <- newPeer(conn)
		}
	}()
	t.Cleanup(s.Close)
	return s
}

// NewWebSocketServer upgrades HTTP requests on any path.
func NewWebSocketServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{t: t, peers: make(chan *Peer, 8)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.peers <- newPeer(transport.WrapWebSocket(ws, time.Second))
	}))
	s.addr = hs.Listener.Addr()
	s.close = hs.Close
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.addr.String())
	return host
}

func (s *Server) Port() string {
	_, port, _ := net.SplitHostPort(s.addr.String())
	return port
}

// Accept waits for the next client.
func (s *Server) Accept(timeout time.Duration) *Peer {
	s.t.Helper()
	select {
	case p := <-s.peers:
		s.t.Cleanup(p.Close)
		return p
	case <-time.After(timeout):
		s.t.Fatalf("cstatest: no client within %v", timeout)
		return nil
	}
}

func (s *Server) Close() {
	s.once.Do(s.close)
}

type conn interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	Close() error
}

// Peer is the server side of one client connection. Frames from the client
// are read in the background and queued.
type Peer struct {
	conn   conn
	frames chan frame.Frame
	done   chan struct{}
	err    error
	wmu    sync.Mutex
}

func newPeer(c conn) *Peer {
	p := &Peer{conn: c, frames: make(chan frame.Frame, 64), done: make(chan struct{})}
	go p.readLoop()
	return p
}

func (p *Peer) readLoop() {
	defer close(p.done)
	for {
		fr, err := frame.ReadFrame(p.conn)
		if err != nil {
			p.err = err
			return
		}
		p.frames <- fr
	}
}

// Next returns the next frame the client sent.
func (p *Peer) Next(t testing.TB, timeout time.Duration) frame.Frame {
	t.Helper()
	select {
	case fr := <-p.frames:
		return fr
	case <-time.After(timeout):
		t.Fatalf("cstatest: no frame within %v", timeout)
		return frame.Frame{}
	}
}

// ExpectNone fails if the client sends a frame within d.
func (p *Peer) ExpectNone(t testing.TB, d time.Duration) {
	t.Helper()
	select {
	case fr := <-p.frames:
		t.Fatalf("cstatest: unexpected frame seq=%s body=%s", fr.Sequence, fr.Body)
	case <-time.After(d):
	}
}

// Send writes one frame with the given sequence and XML body.
func (p *Peer) Send(t testing.TB, seq int, body string) {
	t.Helper()
	buf, err := frame.Encode(seq, []byte(body))
	if err != nil {
		t.Fatalf("cstatest: encode: %v", err)
	}
	p.WriteRaw(t, buf)
}

// WriteRaw writes b unchanged.
func (p *Peer) WriteRaw(t testing.TB, b []byte) {
	t.Helper()
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if _, err := p.conn.Write(b); err != nil {
		t.Fatalf("cstatest: write: %v", err)
	}
}

// Closed reports whether the client side went away within timeout.
func (p *Peer) Closed(timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Err is the error that ended the read loop, once Closed returned true.
func (p *Peer) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return errors.New("cstatest: peer still open")
	}
}

func (p *Peer) Close() {
	_ = p.conn.Close()
}
