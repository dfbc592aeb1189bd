package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is the file form of Default with placeholder credentials.
func DefaultFile() File {
	d := Default()
	return File{
		Host:                      "pbx.example.net",
		Port:                      d.Port,
		Mode:                      d.Mode.String(),
		Username:                  "alice",
		Password:                  "secret",
		Keepalive:                 d.Engine.KeepAliveInterval.String(),
		Platform:                  d.Engine.Platform,
		ClientVersion:             d.Engine.ClientVersion,
		ConnectTimeout:            d.Engine.Transport.ConnectTimeout.String(),
		WebSocketPath:             d.Engine.Transport.WebSocketPath,
		AcceptIgnorableCertErrors: true,
	}
}

// Template renders DefaultFile as TOML.
func Template() (string, error) {
	out, err := toml.Marshal(DefaultFile())
	if err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return string(out), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
