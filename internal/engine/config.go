package engine

import (
	"time"

	"github.com/danmuck/csta/internal/transport"
)

// Config defines engine behavior for one connection.
type Config struct {
	KeepAliveInterval time.Duration
	LoginType         string
	Platform          string
	ClientVersion     string
	Transport         transport.Config
}

func DefaultConfig() Config {
	return Config{
		KeepAliveInterval: 45 * time.Second,
		LoginType:         "User",
		Platform:          "iPhone",
		ClientVersion:     "7.0",
		Transport:         transport.DefaultConfig(),
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = d.KeepAliveInterval
	}
	if c.LoginType == "" {
		c.LoginType = d.LoginType
	}
	if c.Platform == "" {
		c.Platform = d.Platform
	}
	if c.ClientVersion == "" {
		c.ClientVersion = d.ClientVersion
	}
	c.Transport = c.Transport.WithDefaults()
	return c
}
