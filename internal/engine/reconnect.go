package engine

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/csta/internal/transport"
)

// Backoff defines the delay between reconnect attempts.
type Backoff struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
		Jitter:       true,
	}
}

// Delay returns the wait before attempt N (1-based). Jitter scales the
// delay into [0.5, 1.5) of its nominal value.
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if b.InitialDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if b.Multiplier < 1.0 {
		b.Multiplier = 1.0
	}
	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// ConnectRetry calls Connect until it succeeds, a fatal error occurs, ctx
// ends or maxAttempts is used up. maxAttempts <= 0 retries forever.
func (e *Engine) ConnectRetry(ctx context.Context, host, port string, mode transport.Mode, b Backoff, maxAttempts int) (bool, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for attempt := 1; maxAttempts <= 0 || attempt <= maxAttempts; attempt++ {
		ok, err := e.Connect(ctx, host, port, mode)
		if ok || err != nil {
			return ok, err
		}
		if e.State() != StateDisconnected {
			// Already connected or another caller is connecting.
			return false, nil
		}
		if maxAttempts > 0 && attempt == maxAttempts {
			break
		}
		delay := b.Delay(attempt, rng)
		log.Info().Int("attempt", attempt).Dur("delay", delay).Str("host", host).Msg("engine reconnect scheduled")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	return false, nil
}
