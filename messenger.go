package dialogsdk

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// ──────────────────────────────────────────────
// Outbound Messenger — asynchronous delivery with bounded retry
// ──────────────────────────────────────────────

// Messenger delivers an outbound message to a user. Implementations wrap the
// actual channel (WhatsApp gateway, chat API, stdout in examples).
type Messenger interface {
	Send(ctx context.Context, userKey, text string) error
}

// MessengerFunc adapts a plain function to Messenger.
type MessengerFunc func(ctx context.Context, userKey, text string) error

func (f MessengerFunc) Send(ctx context.Context, userKey, text string) error {
	return f(ctx, userKey, text)
}

// AsyncMessengerConfig tunes the async dispatcher.
type AsyncMessengerConfig struct {
	// MaxInFlight bounds concurrent deliveries. Default 8.
	MaxInFlight int
	// Retries is the number of re-attempts after a failed send. Default 2.
	// Failures past the last attempt are logged, never retried further.
	Retries int
	// RetryDelay between attempts. Default 500ms.
	RetryDelay time.Duration
}

// DefaultAsyncMessengerConfig returns sensible defaults.
func DefaultAsyncMessengerConfig() AsyncMessengerConfig {
	return AsyncMessengerConfig{
		MaxInFlight: 8,
		Retries:     2,
		RetryDelay:  500 * time.Millisecond,
	}
}

// AsyncMessenger decouples dialogue processing from channel latency: Send
// enqueues and returns immediately, deliveries run on a bounded worker pool
// with a small bounded retry.
type AsyncMessenger struct {
	inner  Messenger
	config AsyncMessengerConfig
	pool   *pool.Pool
}

// NewAsyncMessenger wraps inner with async bounded-retry delivery.
func NewAsyncMessenger(inner Messenger, config ...AsyncMessengerConfig) *AsyncMessenger {
	cfg := DefaultAsyncMessengerConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 8
	}
	return &AsyncMessenger{
		inner:  inner,
		config: cfg,
		pool:   pool.New().WithMaxGoroutines(cfg.MaxInFlight),
	}
}

// Send enqueues the delivery and returns immediately.
func (m *AsyncMessenger) Send(ctx context.Context, userKey, text string) error {
	m.pool.Go(func() {
		m.deliver(userKey, text)
	})
	return nil
}

// Wait blocks until all enqueued deliveries finished. Call on shutdown.
func (m *AsyncMessenger) Wait() {
	m.pool.Wait()
}

func (m *AsyncMessenger) deliver(userKey, text string) {
	logger := componentLogger("messenger")
	for attempt := 0; attempt <= m.config.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(m.config.RetryDelay)
		}
		err := m.inner.Send(context.Background(), userKey, text)
		if err == nil {
			return
		}
		logger.Warn().Str("user", userKey).Int("attempt", attempt+1).Err(err).Msg("send failed")
	}
	logger.Error().Str("user", userKey).Int("attempts", m.config.Retries+1).Msg("message dropped after retries")
}

// Compile-time interface checks.
var (
	_ Messenger = MessengerFunc(nil)
	_ Messenger = (*AsyncMessenger)(nil)
)
