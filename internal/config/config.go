package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/csta/internal/engine"
	"github.com/danmuck/csta/internal/transport"
)

// File is the on-disk TOML shape. Durations are Go duration strings.
type File struct {
	Host                      string `toml:"host"`
	Port                      string `toml:"port"`
	Mode                      string `toml:"mode" comment:"plain | secure | websocket | websocket-secure"`
	Username                  string `toml:"username"`
	Password                  string `toml:"password"`
	Keepalive                 string `toml:"keepalive"`
	Platform                  string `toml:"platform"`
	ClientVersion             string `toml:"client_version"`
	ConnectTimeout            string `toml:"connect_timeout"`
	WebSocketPath             string `toml:"websocket_path"`
	TLSCAFile                 string `toml:"tls_ca_file"`
	TLSServerName             string `toml:"tls_server_name"`
	TLSInsecureSkipVerify     bool   `toml:"tls_insecure_skip_verify"`
	AcceptIgnorableCertErrors bool   `toml:"accept_ignorable_cert_errors"`
	MetricsAddr               string `toml:"metrics_addr" comment:"serves /metrics when set, e.g. \":9464\""`
}

// Client is the resolved configuration for one cstactl session.
type Client struct {
	Host        string
	Port        string
	Mode        transport.Mode
	Username    string
	Password    string
	MetricsAddr string
	Engine      engine.Config
}

func Default() Client {
	return Client{
		Port:   "7778",
		Mode:   transport.ModeSecure,
		Engine: engine.DefaultConfig(),
	}
}

// Load reads path and applies every key it defines over Default.
func Load(path string) (Client, error) {
	cfg := Default()

	var raw File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Client{}, fmt.Errorf("load csta config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Client{}, fmt.Errorf("load csta config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("mode") {
		mode, err := transport.ParseMode(raw.Mode)
		if err != nil {
			return Client{}, fmt.Errorf("parse mode: %w", err)
		}
		cfg.Mode = mode
	}
	if meta.IsDefined("username") {
		cfg.Username = strings.TrimSpace(raw.Username)
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("keepalive") {
		d, err := parseDuration("keepalive", raw.Keepalive)
		if err != nil {
			return Client{}, err
		}
		cfg.Engine.KeepAliveInterval = d
	}
	if meta.IsDefined("platform") {
		cfg.Engine.Platform = strings.TrimSpace(raw.Platform)
	}
	if meta.IsDefined("client_version") {
		cfg.Engine.ClientVersion = strings.TrimSpace(raw.ClientVersion)
	}
	if meta.IsDefined("connect_timeout") {
		d, err := parseDuration("connect_timeout", raw.ConnectTimeout)
		if err != nil {
			return Client{}, err
		}
		cfg.Engine.Transport.ConnectTimeout = d
		cfg.Engine.Transport.HandshakeTimeout = d
	}
	if meta.IsDefined("websocket_path") {
		cfg.Engine.Transport.WebSocketPath = strings.TrimSpace(raw.WebSocketPath)
	}
	if meta.IsDefined("tls_ca_file") {
		cfg.Engine.Transport.TLS.CAFile = strings.TrimSpace(raw.TLSCAFile)
	}
	if meta.IsDefined("tls_server_name") {
		cfg.Engine.Transport.TLS.ServerName = strings.TrimSpace(raw.TLSServerName)
	}
	if meta.IsDefined("tls_insecure_skip_verify") {
		cfg.Engine.Transport.TLS.InsecureSkipVerify = raw.TLSInsecureSkipVerify
	}
	if meta.IsDefined("accept_ignorable_cert_errors") {
		cfg.Engine.Transport.CertPolicy = transport.RejectIgnorable
		if raw.AcceptIgnorableCertErrors {
			cfg.Engine.Transport.CertPolicy = transport.AcceptIgnorable
		}
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if err := Validate(cfg); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse %s: must be positive, got %s", key, raw)
	}
	return d, nil
}

func Validate(cfg Client) error {
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("csta config missing host")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return fmt.Errorf("csta config missing port")
	}
	if cfg.Mode == transport.ModeWebSocketSecure {
		return fmt.Errorf("csta config mode %s: %w", cfg.Mode, transport.ErrUnsupportedMode)
	}
	if cfg.Engine.Transport.TLS.CAFile != "" && cfg.Mode != transport.ModeSecure {
		return fmt.Errorf("csta config tls_ca_file requires mode secure")
	}
	return nil
}
