package transport

import "time"

// TLSConfig holds client-side TLS settings for ModeSecure.
type TLSConfig struct {
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// CertPolicy decides whether ignorable certificate errors (self-signed or
// untrusted root, name mismatch, expiry) may be accepted for one retry.
type CertPolicy func(host string, err error) bool

// AcceptIgnorable is the default CertPolicy.
func AcceptIgnorable(string, error) bool { return true }

// RejectIgnorable refuses every certificate problem.
func RejectIgnorable(string, error) bool { return false }

// Config defines dial and write behavior.
type Config struct {
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	WebSocketPath    string
	TLS              TLSConfig
	CertPolicy       CertPolicy
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     15 * time.Second,
		WebSocketPath:    "/",
		CertPolicy:       AcceptIgnorable,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.WebSocketPath == "" {
		c.WebSocketPath = d.WebSocketPath
	}
	if c.CertPolicy == nil {
		c.CertPolicy = d.CertPolicy
	}
	return c
}
