package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/csta/internal/observability"
	"github.com/danmuck/csta/internal/protocol/command"
)

// keepalive sends one keepalive frame per interval until the link stops.
// A failed send is only logged; the next tick tries again.
func (e *Engine) keepalive(l *link) {
	ticker := time.NewTicker(e.cfg.KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}
		if l.stopping() {
			return
		}
		seq, err := e.send(command.KeepaliveName, command.KeepaliveBody)
		observability.RecordKeepalive(seq >= 0)
		if err != nil {
			e.reportFatal(err)
			return
		}
		if seq < 0 {
			log.Warn().Msg("engine keepalive send failed")
		}
	}
}
