package mpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrComputationTimeout is returned when no completion signal arrives within
// the wait bound. It does not mean the computation failed: the ledger/MPC work
// is not cancellable, only the local wait stops. Callers must re-check ledger
// state instead of retrying blindly.
var ErrComputationTimeout = errors.New("no completion signal within timeout; computation may still finish, re-check ledger state before retrying")

// Signal is one asynchronous completion notification from the MPC network.
type Signal struct {
	Handle uint64   `json:"handle"`
	Kind   string   `json:"kind"` // circuit name that finished
	Output []uint64 `json:"output,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Waiter is a one-shot subscription for a single computation handle. A handle
// is consumed by completion or timeout and never reused.
type Waiter struct {
	handle uint64
	ch     chan Signal
}

// NewWaiter builds a waiter for a handle. Bus implementations call this from
// Register.
func NewWaiter(handle uint64) *Waiter {
	return &Waiter{handle: handle, ch: make(chan Signal, 1)}
}

// Handle returns the computation handle the waiter is subscribed to.
func (w *Waiter) Handle() uint64 { return w.handle }

// Deliver hands the waiter its signal. The one-element buffer means delivery
// never blocks the bus; a second delivery on a consumed waiter is a bus bug.
func (w *Waiter) Deliver(sig Signal) {
	w.ch <- sig
}

// Bus delivers completion signals to registered waiters.
type Bus interface {
	// Register must be called before submitting the instruction that carries
	// the handle: the network's callback can land faster than submission
	// confirmation, and a signal with no waiter is dropped.
	Register(handle uint64) *Waiter
	// Cancel releases a waiter whose signal is no longer wanted.
	Cancel(w *Waiter)
}

// Await blocks for the waiter's signal, bounded by timeout. The waiter is
// consumed either way.
func Await(ctx context.Context, bus Bus, w *Waiter, timeout time.Duration) (Signal, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	defer bus.Cancel(w)

	select {
	case sig := <-w.ch:
		if sig.Error != "" {
			return sig, fmt.Errorf("computation %d failed: %s", w.handle, sig.Error)
		}
		return sig, nil
	case <-timer.C:
		return Signal{}, ErrComputationTimeout
	case <-ctx.Done():
		return Signal{}, ctx.Err()
	}
}

// RedisBus subscribes to the MPC network's completion channel and fans signals
// out to waiters by handle. Subscription survives connection loss; Redis
// pub/sub reconnects under the hood and unmatched signals are logged, since a
// dropped signal still has the ledger-state fallback behind it.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
	waiters *xsync.Map[uint64, *Waiter]
	cancel  context.CancelFunc
}

// NewRedisBus starts consuming completion signals from the given channel.
func NewRedisBus(ctx context.Context, client *redis.Client, channel string, logger *zap.Logger) *RedisBus {
	runCtx, cancel := context.WithCancel(ctx)
	b := &RedisBus{
		client:  client,
		channel: channel,
		logger:  logger,
		waiters: xsync.NewMap[uint64, *Waiter](),
		cancel:  cancel,
	}
	go b.consume(runCtx)
	return b
}

func (b *RedisBus) Register(handle uint64) *Waiter {
	w := NewWaiter(handle)
	b.waiters.Store(handle, w)
	return w
}

func (b *RedisBus) Cancel(w *Waiter) {
	if w == nil {
		return
	}
	b.waiters.Delete(w.handle)
}

// Close stops the consumer loop.
func (b *RedisBus) Close() { b.cancel() }

func (b *RedisBus) consume(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var sig Signal
			if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
				b.logger.Warn("Discarding malformed completion signal",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			b.dispatch(sig)
		}
	}
}

func (b *RedisBus) dispatch(sig Signal) {
	w, ok := b.waiters.LoadAndDelete(sig.Handle)
	if !ok {
		// Not an error: the waiter may have timed out already, or the signal
		// belongs to another process.
		b.logger.Debug("Completion signal without waiter",
			zap.Uint64("handle", sig.Handle),
			zap.String("kind", sig.Kind))
		return
	}
	w.Deliver(sig)
}
