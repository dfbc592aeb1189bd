package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/csta/internal/observability"
)

// DialFunc opens the raw TCP connection under every mode.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Dialer establishes Conns according to Mode. Recoverable failures wrap
// ErrConnectFailed; unrecognized ones are returned as *FatalError.
type Dialer struct {
	cfg     Config
	netDial DialFunc
}

func NewDialer(cfg Config) *Dialer {
	cfg = cfg.WithDefaults()
	nd := &net.Dialer{Timeout: cfg.ConnectTimeout}
	return &Dialer{cfg: cfg, netDial: nd.DialContext}
}

// WithDialFunc replaces the TCP dial step.
func (d *Dialer) WithDialFunc(fn DialFunc) *Dialer {
	if fn != nil {
		d.netDial = fn
	}
	return d
}

func (d *Dialer) Config() Config {
	return d.cfg
}

func (d *Dialer) Dial(ctx context.Context, host, port string, mode Mode) (Conn, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, connectFailed(ErrHostRequired)
	}
	var (
		conn Conn
		err  error
	)
	switch mode {
	case ModePlain:
		conn, err = d.dialPlain(ctx, host, port)
	case ModeSecure:
		conn, err = d.dialSecure(ctx, host, port)
	case ModeWebSocket:
		conn, err = d.dialWebSocket(ctx, host, port)
	case ModeWebSocketSecure:
		err = connectFailed(fmt.Errorf("%w: %s", ErrUnsupportedMode, mode))
	default:
		err = connectFailed(fmt.Errorf("%w: %s", ErrInvalidMode, mode))
	}
	observability.RecordConnectAttempt(mode.String(), resultLabel(err))
	return conn, err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return observability.ResultOK
	case IsFatal(err):
		return observability.ResultFatal
	default:
		return observability.ResultFailed
	}
}

func (d *Dialer) dialPlain(ctx context.Context, host, port string) (Conn, error) {
	raw, err := d.dialTCP(ctx, host, port)
	if err != nil {
		return nil, d.classifyConnect(err)
	}
	return newStreamConn(raw, ModePlain, d.cfg.WriteTimeout), nil
}

func (d *Dialer) dialTCP(ctx context.Context, host, port string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	return d.netDial(ctx, "tcp", net.JoinHostPort(host, port))
}

func (d *Dialer) classifyConnect(err error) error {
	if Classify(err) == ClassUnknown {
		return &FatalError{Op: "connect", Err: err}
	}
	return connectFailed(err)
}

// dialSecure makes at most two attempts: the second only after a host
// lookup failure or an ignorable certificate error the policy accepted.
func (d *Dialer) dialSecure(ctx context.Context, host, port string) (Conn, error) {
	relaxed := false
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		conn, err := d.dialTLS(ctx, host, port, relaxed)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		class := Classify(err)
		log.Warn().Err(err).Int("attempt", attempt).Str("host", host).Str("class", class.String()).Msg("transport tls connect failed")
		switch class {
		case ClassUnknown:
			return nil, &FatalError{Op: "tls connect", Err: err}
		case ClassHostNotFound:
		case ClassCertIgnorable:
			if !d.cfg.CertPolicy(host, err) {
				return nil, connectFailed(err)
			}
			relaxed = true
		default:
			return nil, connectFailed(err)
		}
	}
	return nil, connectFailed(lastErr)
}

func (d *Dialer) dialTLS(ctx context.Context, host, port string, relaxed bool) (Conn, error) {
	tlsCfg, err := d.clientTLSConfig(host, relaxed)
	if err != nil {
		return nil, err
	}
	raw, err := d.dialTCP(ctx, host, port)
	if err != nil {
		return nil, err
	}
	conn := tls.Client(raw, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, d.cfg.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return newStreamConn(conn, ModeSecure, d.cfg.WriteTimeout), nil
}

func (d *Dialer) clientTLSConfig(host string, relaxed bool) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: d.cfg.TLS.InsecureSkipVerify,
	}
	serverName := strings.TrimSpace(d.cfg.TLS.ServerName)
	if serverName == "" {
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(d.cfg.TLS.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, &FatalError{Op: "load tls ca", Err: err}
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, &FatalError{Op: "load tls ca", Err: fmt.Errorf("parse ca bundle: %s", caPath)}
		}
		cfg.RootCAs = pool
	}

	if relaxed && !cfg.InsecureSkipVerify {
		// Verification runs by hand so only ignorable chain errors are waived.
		roots := cfg.RootCAs
		cfg.InsecureSkipVerify = true
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			err := verifyPeer(cs, roots, serverName)
			if err == nil || Classify(err) == ClassCertIgnorable {
				return nil
			}
			return err
		}
	}
	return cfg, nil
}

func verifyPeer(cs tls.ConnectionState, roots *x509.CertPool, serverName string) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("transport: server sent no certificate")
	}
	opts := x509.VerifyOptions{
		DNSName:       serverName,
		Roots:         roots,
		Intermediates: x509.NewCertPool(),
	}
	for _, cert := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(cert)
	}
	_, err := cs.PeerCertificates[0].Verify(opts)
	return err
}

func (d *Dialer) dialWebSocket(ctx context.Context, host, port string) (Conn, error) {
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: d.cfg.WebSocketPath}
	wd := websocket.Dialer{
		NetDialContext:   d.netDial,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	ws, resp, err := wd.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		log.Warn().Err(err).Str("url", u.String()).Int("status", status).Msg("transport websocket connect failed")
		return nil, d.classifyConnect(err)
	}
	return WrapWebSocket(ws, d.cfg.WriteTimeout), nil
}
