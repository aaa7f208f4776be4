package escalate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/logging"
	"github.com/fyrsmithlabs/remedyd/internal/metrics"
)

// ChannelResult is the outcome of one channel delivery.
type ChannelResult struct {
	Channel  string
	Err      error
	Duration time.Duration
}

// Dispatcher fans a notification out to every enabled channel.
type Dispatcher struct {
	channels []Channel
	logger   *logging.Logger
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(channels []Channel, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{channels: channels, logger: logger}
}

// Escalate delivers the notification to all enabled channels in the
// background and returns immediately. Failures are logged and counted, never
// surfaced to the caller.
func (d *Dispatcher) Escalate(ctx context.Context, n Notification) {
	// Detach from the caller's cancellation so an in-flight delivery
	// survives the triggering request.
	sendCtx := context.WithoutCancel(ctx)
	go func() {
		d.EscalateAndCollect(sendCtx, n)
	}()
}

// EscalateAndCollect delivers the notification to all enabled channels
// concurrently and waits for every delivery, returning one result per
// enabled channel. It never returns an error.
func (d *Dispatcher) EscalateAndCollect(ctx context.Context, n Notification) []ChannelResult {
	var enabled []Channel
	for _, ch := range d.channels {
		if ch.Enabled() {
			enabled = append(enabled, ch)
		} else {
			d.logger.Debug(ctx, "escalation channel disabled, skipping",
				zap.String("channel", ch.Name()))
		}
	}

	results := make([]ChannelResult, len(enabled))
	var wg sync.WaitGroup
	for i, ch := range enabled {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			results[i] = d.send(ctx, ch, n)
		}(i, ch)
	}
	wg.Wait()

	metrics.EscalationsTotal.Inc()
	return results
}

// send delivers to one channel, containing any failure to that channel.
func (d *Dispatcher) send(ctx context.Context, ch Channel, n Notification) (result ChannelResult) {
	result.Channel = ch.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("channel panicked: %v", r)
		}
		result.Duration = time.Since(start)

		metrics.RecordChannelSend(ch.Name(), result.Err == nil)
		if result.Err != nil {
			d.logger.Warn(ctx, "escalation channel delivery failed",
				zap.String("channel", ch.Name()),
				zap.Error(result.Err))
		} else {
			d.logger.Info(ctx, "escalation delivered",
				zap.String("channel", ch.Name()),
				zap.Duration("duration", result.Duration))
		}
	}()

	result.Err = ch.Send(ctx, n)
	return result
}
