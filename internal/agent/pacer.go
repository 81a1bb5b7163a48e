package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vkotlar/deskbridge/internal/protocol"
)

// failureBackoff is the pause after a capture or send failure before the
// next attempt.
const failureBackoff = time.Second

// SendFunc transmits one encoded message to the relay.
type SendFunc func(ctx context.Context, payload []byte) error

// Pacer produces screen frames at a target rate. The inter-frame interval
// is measured from the end of the previous transmission, so a slow capture
// or send stretches the effective rate instead of queueing frames.
type Pacer struct {
	capture Capturer
	send    SendFunc
	fps     atomic.Int64
}

// NewPacer creates a Pacer capturing with c and transmitting with send.
func NewPacer(c Capturer, send SendFunc, fps int) *Pacer {
	p := &Pacer{capture: c, send: send}
	p.SetFPS(fps)
	return p
}

// SetFPS changes the target frame rate. Values below 1 are clamped to 1.
// The new rate takes effect at the next frame boundary.
func (p *Pacer) SetFPS(fps int) {
	if fps < 1 {
		fps = 1
	}
	p.fps.Store(int64(fps))
}

// FPS returns the current target frame rate.
func (p *Pacer) FPS() int {
	return int(p.fps.Load())
}

// Run streams frames until ctx is cancelled. Capture and send failures are
// logged and retried after a short backoff; they never terminate the loop.
func (p *Pacer) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		wait := p.interval()
		if err := p.frame(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Screen frame failed", "error", err)
			wait = failureBackoff
		}
		timer.Reset(wait)
	}
}

func (p *Pacer) interval() time.Duration {
	return time.Second / time.Duration(p.fps.Load())
}

func (p *Pacer) frame(ctx context.Context) error {
	img, err := p.capture.Capture()
	if err != nil {
		return err
	}
	encoded, err := EncodeFrame(img)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(protocol.NewFrameEnvelope(encoded, time.Now()))
	if err != nil {
		return err
	}
	return p.send(ctx, payload)
}
