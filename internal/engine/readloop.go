package engine

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/csta/internal/observability"
	"github.com/danmuck/csta/internal/protocol/command"
	"github.com/danmuck/csta/internal/protocol/decode"
	"github.com/danmuck/csta/internal/protocol/frame"
	"github.com/danmuck/csta/internal/transport"
)

func (e *Engine) readLoop(l *link) {
	for {
		fr, err := frame.ReadFrame(l.conn)
		if errors.Is(err, frame.ErrShortPayload) {
			observability.RecordFrameReceived(observability.ResultMalformed, frame.HeaderLen)
			log.Warn().Err(err).Msg("engine dropped short frame")
			continue
		}
		if err != nil {
			e.readFailed(l, err)
			return
		}
		e.dispatch(fr)
	}
}

func (e *Engine) readFailed(l *link, err error) {
	class := transport.Classify(err)
	switch {
	case l.stopping():
		log.Debug().Err(err).Msg("engine read loop stopped")
	case errors.Is(err, frame.ErrTruncatedFrame), errors.Is(err, frame.ErrInvalidLength), errors.Is(err, frame.ErrShortHeader):
		observability.RecordFrameReceived(observability.ResultMalformed, 0)
		log.Warn().Err(err).Msg("engine read bad frame; closing")
	case class == transport.ClassUnknown:
		e.reportFatal(&transport.FatalError{Op: "read", Err: err})
	default:
		log.Warn().Err(err).Str("class", class.String()).Msg("engine connection lost")
	}
	e.teardown(l)
}

// dispatch decodes one frame and publishes it when a registered command
// claims its root. Malformed and unmatched documents are dropped.
func (e *Engine) dispatch(fr frame.Frame) {
	seq := frame.ParseSequence(fr.Sequence)
	res, err := decode.Decode(fr.Body, e.registry)
	if err != nil {
		observability.RecordFrameReceived(observability.ResultMalformed, fr.Len())
		log.Warn().Err(err).Int("seq", seq).Msg("engine dropped malformed frame")
		return
	}
	if !res.Matched() {
		observability.RecordFrameReceived(observability.ResultNoMatch, fr.Len())
		log.Debug().Str("root", res.Root).Int("seq", seq).Msg("engine no handler for event")
		return
	}
	observability.RecordFrameReceived(observability.ResultMatched, fr.Len())

	if res.Command.Name() == command.LoginName && !e.onLoginEvent(res) {
		return
	}
	e.subs.publish(Event{
		Name:     res.EventName,
		Command:  res.Command.Name(),
		Sequence: seq,
		Payload:  res.Tree,
	})
}
