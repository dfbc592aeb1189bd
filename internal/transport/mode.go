package transport

import (
	"fmt"
	"strings"
)

// Mode selects how the byte stream to the server is established.
type Mode int

const (
	ModePlain Mode = iota
	ModeSecure
	ModeWebSocket
	// ModeWebSocketSecure is recognized but not supported.
	ModeWebSocketSecure
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeSecure:
		return "secure"
	case ModeWebSocket:
		return "websocket"
	case ModeWebSocketSecure:
		return "websocket-secure"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "plain", "tcp":
		return ModePlain, nil
	case "secure", "tls":
		return ModeSecure, nil
	case "websocket", "ws":
		return ModeWebSocket, nil
	case "websocket-secure", "websocketsecure", "wss":
		return ModeWebSocketSecure, nil
	default:
		return ModePlain, fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}
