package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/csta/internal/observability"
	"github.com/danmuck/csta/internal/protocol/command"
	"github.com/danmuck/csta/internal/protocol/frame"
	"github.com/danmuck/csta/internal/transport"
)

const fatalBuffer = 8

// Engine drives one CSTA connection: it owns the transport, the command
// registry, outbound sequencing and inbound dispatch.
type Engine struct {
	cfg      Config
	dialer   *transport.Dialer
	registry *command.Registry
	seq      Sequencer
	sendMu   sync.Mutex
	subs     broadcaster
	fatal    chan error

	mu    sync.Mutex
	state State
	link  *link

	loginMu sync.Mutex
	login   loginSession
}

// link is one established connection. Goroutines started for a link only
// act on the engine while it is still the current link.
type link struct {
	conn     transport.Conn
	stop     chan struct{}
	stopOnce sync.Once
}

func newLink(conn transport.Conn) *link {
	return &link{conn: conn, stop: make(chan struct{})}
}

func (l *link) halt() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *link) stopping() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

type Option func(*Engine)

// WithDialer replaces the transport dialer built from Config.Transport.
func WithDialer(d *transport.Dialer) Option {
	return func(e *Engine) {
		if d != nil {
			e.dialer = d
		}
	}
}

// WithLogin registers a login command in place of the default SHA-1 one.
func WithLogin(cmd command.Command) Option {
	return func(e *Engine) {
		if cmd == nil {
			return
		}
		e.registry.Unregister(command.LoginName)
		if err := e.registry.Register(cmd); err != nil {
			log.Warn().Err(err).Str("command", cmd.Name()).Msg("engine login command rejected")
		}
	}
}

func New(cfg Config, opts ...Option) *Engine {
	cfg = cfg.WithDefaults()
	e := &Engine{
		cfg:      cfg,
		dialer:   transport.NewDialer(cfg.Transport),
		registry: command.NewRegistry(),
		fatal:    make(chan error, fatalBuffer),
	}
	if err := e.registry.Register(command.NewLogin()); err != nil {
		log.Error().Err(err).Msg("engine register login command")
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) Registry() *command.Registry {
	return e.registry
}

func (e *Engine) AddHandler(cmd command.Command) error {
	return e.registry.Register(cmd)
}

func (e *Engine) RemoveHandler(name string) {
	e.registry.Unregister(name)
}

// Subscribe registers fn for every matched inbound event. Handlers run on
// the read goroutine in arrival order. The returned func unsubscribes.
func (e *Engine) Subscribe(fn Handler) func() {
	if fn == nil {
		return func() {}
	}
	return e.subs.subscribe(fn)
}

// Fatal delivers errors that ended a connection outside of a caller's
// Connect or ExecuteHandler call.
func (e *Engine) Fatal() <-chan error {
	return e.fatal
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Connected() bool {
	return e.State() == StateConnected
}

// Connect dials host:port with mode. It returns false without an error
// when already connected or when the failure is recoverable.
func (e *Engine) Connect(ctx context.Context, host, port string, mode transport.Mode) (bool, error) {
	e.mu.Lock()
	if e.state != StateDisconnected {
		state := e.state
		e.mu.Unlock()
		log.Warn().Str("state", state.String()).Msg("engine connect ignored")
		return false, nil
	}
	e.state = StateConnecting
	e.mu.Unlock()

	conn, err := e.dialer.Dial(ctx, host, port, mode)
	if err != nil {
		e.setState(StateDisconnected)
		if transport.IsFatal(err) {
			log.Error().Err(err).Str("host", host).Str("port", port).Str("mode", mode.String()).Msg("engine connect fatal")
			return false, err
		}
		log.Warn().Err(err).Str("host", host).Str("port", port).Str("mode", mode.String()).
			Str("class", transport.Classify(err).String()).Msg("engine connect failed")
		return false, nil
	}

	l := newLink(conn)
	e.mu.Lock()
	e.link = l
	e.state = StateConnected
	e.mu.Unlock()

	log.Info().Str("remote", conn.RemoteAddr()).Str("mode", mode.String()).Msg("engine connected")
	go e.readLoop(l)
	go e.keepalive(l)
	return true, nil
}

// Disconnect stops keepalive and closes the transport. Safe to call
// repeatedly and from a subscriber.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	l := e.link
	e.mu.Unlock()
	if l == nil {
		return
	}
	e.teardown(l)
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) current() *link {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateConnected {
		return nil
	}
	return e.link
}

func (e *Engine) teardown(l *link) {
	e.mu.Lock()
	if e.link != l || e.state == StateClosing {
		e.mu.Unlock()
		return
	}
	e.state = StateClosing
	e.mu.Unlock()

	l.halt()
	if err := l.conn.Close(); err != nil {
		log.Debug().Err(err).Msg("engine close transport")
	}

	e.mu.Lock()
	e.link = nil
	e.state = StateDisconnected
	e.mu.Unlock()
	log.Info().Str("remote", l.conn.RemoteAddr()).Msg("engine disconnected")
}

func (e *Engine) reportFatal(err error) {
	log.Error().Err(err).Msg("engine fatal")
	select {
	case e.fatal <- err:
	default:
		log.Warn().Err(err).Msg("engine fatal channel full")
	}
}

// ExecuteHandler renders the named command with params and sends it. It
// returns the sequence number used, or -1 when the command is unknown, the
// engine is not connected, or the send failed. A non-nil error is fatal and
// the connection has already been closed.
func (e *Engine) ExecuteHandler(name string, params command.Params) (int, error) {
	if name == command.LoginName {
		return e.startLogin(params)
	}
	cmd, ok := e.registry.Lookup(name)
	if !ok {
		log.Debug().Str("command", name).Msg("engine execute unknown command")
		return -1, nil
	}
	if !e.Connected() {
		log.Debug().Str("command", name).Msg("engine execute while disconnected")
		return -1, nil
	}
	body, err := cmd.Render(params)
	if err != nil {
		log.Warn().Err(err).Str("command", name).Msg("engine render failed")
		return -1, nil
	}
	return e.send(name, body)
}

// send assigns the next sequence number and writes one frame. Sequence
// assignment and encoding happen under sendMu; the write does not.
func (e *Engine) send(name, body string) (int, error) {
	l := e.current()
	if l == nil {
		return -1, nil
	}

	e.sendMu.Lock()
	seq := e.seq.Next()
	buf, err := frame.Encode(seq, []byte(body))
	e.sendMu.Unlock()
	if err != nil {
		observability.RecordFrameSent(name, len(body), false)
		log.Warn().Err(err).Str("command", name).Int("body_len", len(body)).Msg("engine encode failed")
		return -1, nil
	}

	if _, err := l.conn.Write(buf); err != nil {
		observability.RecordFrameSent(name, len(buf), false)
		if transport.Classify(err) == transport.ClassUnknown {
			// The connection is unusable after an unclassified write error.
			e.teardown(l)
			return -1, &transport.FatalError{Op: "write", Err: err}
		}
		log.Warn().Err(err).Str("command", name).Int("seq", seq).Msg("engine write failed")
		return -1, nil
	}
	observability.RecordFrameSent(name, len(buf), true)
	log.Debug().Str("command", name).Int("seq", seq).Int("len", len(buf)).Msg("engine frame sent")
	return seq, nil
}
