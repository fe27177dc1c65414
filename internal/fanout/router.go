// Package fanout routes messages to at most one live subscriber per identity.
//
// All registry state is owned by a single control loop (Run). Producers on
// any goroutine submit commands through a bounded queue; the loop applies them
// strictly in arrival order, so the registry needs no lock.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-fanout-relay/internal/domain"
	"github.com/go-fanout-relay/internal/pkg/metrics"
)

// Options configures a Router. Every field except Logger and Metrics must be set.
type Options struct {
	// QueueCapacity bounds the command queue shared by all producers.
	QueueCapacity int
	// SendTimeout is the longest the loop waits on a full outbound.
	SendTimeout time.Duration
	// EvictUnresponsive drops a subscription whose outbound stayed full for
	// SendTimeout. When false the subscription is kept and later publishes
	// are attempted again.
	EvictUnresponsive bool
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
}

// Router is the single-writer fanout actor.
type Router struct {
	queue       chan command
	sendTimeout time.Duration
	evict       bool
	logger      *slog.Logger
	metrics     *metrics.Metrics

	// mu orders producers against shutdown: producers hold it shared while
	// enqueueing, shutdown takes it exclusively before draining the queue, so
	// no command can land after the drain.
	mu        sync.RWMutex
	stopped   bool
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
	running   atomic.Bool
	live      atomic.Int64

	// owned by the loop
	subscribers map[domain.Identity]*subscription
}

type subscription struct {
	out       *Outbound
	createdAt time.Time
	// stalled is set when a delivery timed out and the subscription was kept.
	// Until the outbound drains, publishes to it do not wait.
	stalled bool
}

// New validates opts and returns a router that is not yet running.
func New(opts Options) (*Router, error) {
	if opts.QueueCapacity <= 0 {
		return nil, fmt.Errorf("fanout: queue capacity must be positive, got %d", opts.QueueCapacity)
	}
	if opts.SendTimeout <= 0 {
		return nil, fmt.Errorf("fanout: send timeout must be positive, got %s", opts.SendTimeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		queue:       make(chan command, opts.QueueCapacity),
		sendTimeout: opts.SendTimeout,
		evict:       opts.EvictUnresponsive,
		logger:      logger.With("component", "fanout_router"),
		metrics:     opts.Metrics,
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
		subscribers: make(map[domain.Identity]*subscription),
	}, nil
}

// Subscribe makes out the live outbound for identity. A previous outbound for
// the same identity is closed by the router once the command is applied.
// An outbound the router already closed, or one bound to another identity,
// is ignored.
func (r *Router) Subscribe(ctx context.Context, identity domain.Identity, out *Outbound) error {
	if out == nil {
		return fmt.Errorf("subscribe %q with nil outbound: %w", identity, domain.ErrBadRequest)
	}
	return r.enqueue(ctx, subscribeCmd{identity: identity, out: out})
}

// Publish hands msg to identity's live outbound and reports the outcome.
// If ctx ends while waiting for the verdict the message may still be delivered.
func (r *Router) Publish(ctx context.Context, identity domain.Identity, msg domain.Message) (domain.DeliveryOutcome, error) {
	reply := make(chan publishResult, 1)
	if err := r.enqueue(ctx, publishCmd{identity: identity, msg: msg, reply: reply}); err != nil {
		return domain.NoSubscriber, err
	}
	select {
	case res := <-reply:
		return res.outcome, res.err
	case <-ctx.Done():
		return domain.NoSubscriber, ctx.Err()
	}
}

// Close permanently shuts the queue to producers. Run notices, closes every
// outbound and returns. Safe to call more than once.
func (r *Router) Close() {
	r.closeOnce.Do(func() { close(r.closing) })
}

// Done is closed once Run has returned.
func (r *Router) Done() <-chan struct{} { return r.done }

// Live reports the number of live subscriptions.
func (r *Router) Live() int { return int(r.live.Load()) }

func (r *Router) enqueue(ctx context.Context, cmd command) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return domain.ErrRouterClosed
	}
	select {
	case r.queue <- cmd:
		return nil
	case <-r.closing:
		return domain.ErrRouterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the control loop. It returns nil after an orderly shutdown, which
// happens when Close is called or ctx ends; it never panics the process on
// either. Run may only be called once.
func (r *Router) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("fanout: router already running")
	}
	defer close(r.done)
	r.logger.Info("router started", "send_timeout", r.sendTimeout, "evict_unresponsive", r.evict)

	for {
		// A closed queue wins over pending commands.
		select {
		case <-r.closing:
			r.shutdown("queue closed")
			return nil
		default:
		}

		select {
		case cmd := <-r.queue:
			r.handle(cmd)
		case <-r.closing:
			r.shutdown("queue closed")
			return nil
		case <-ctx.Done():
			r.Close()
			r.shutdown(ctx.Err().Error())
			return nil
		}
	}
}

func (r *Router) handle(cmd command) {
	switch c := cmd.(type) {
	case subscribeCmd:
		r.subscribe(c)
	case publishCmd:
		c.reply <- publishResult{outcome: r.publish(c)}
	default:
		r.logger.Error("dropping unknown command", "type", fmt.Sprintf("%T", cmd))
	}
}

func (r *Router) subscribe(c subscribeCmd) {
	log := r.logger.With("identity", c.identity.String())
	if c.out.closed {
		log.Warn("ignoring subscribe with a closed outbound")
		return
	}
	if c.out.bound && c.out.owner != c.identity {
		log.Warn("ignoring subscribe with an outbound bound elsewhere", "bound_to", c.out.owner.String())
		return
	}
	if prev, ok := r.subscribers[c.identity]; ok {
		if prev.out != c.out {
			prev.out.close()
		}
		r.metrics.IncReplaced()
		log.Debug("subscription replaced", "previous_age", time.Since(prev.createdAt))
	} else {
		r.live.Add(1)
	}
	c.out.bound, c.out.owner = true, c.identity
	r.subscribers[c.identity] = &subscription{out: c.out, createdAt: time.Now()}
	r.metrics.IncSubscribed()
	log.Debug("subscribed")
}

func (r *Router) publish(c publishCmd) domain.DeliveryOutcome {
	log := r.logger.With("identity", c.identity.String(), "msg_id", c.msg.ID)

	sub, ok := r.subscribers[c.identity]
	if !ok {
		r.metrics.IncNoSubscriber()
		log.Info("no live subscriber, message not delivered")
		return domain.NoSubscriber
	}
	if sub.out.isReleased() {
		r.remove(c.identity, sub)
		r.metrics.IncNoSubscriber()
		log.Info("subscriber went away, message not delivered")
		return domain.NoSubscriber
	}

	select {
	case sub.out.ch <- c.msg:
		sub.stalled = false
		r.metrics.IncDelivered()
		return domain.Delivered
	default:
	}
	if sub.stalled {
		r.metrics.IncUnresponsive()
		log.Debug("subscriber still unresponsive")
		return domain.SubscriberUnresponsive
	}

	timer := time.NewTimer(r.sendTimeout)
	defer timer.Stop()
	select {
	case sub.out.ch <- c.msg:
		r.metrics.IncDelivered()
		return domain.Delivered
	case <-sub.out.released:
		r.remove(c.identity, sub)
		r.metrics.IncNoSubscriber()
		log.Info("subscriber went away, message not delivered")
		return domain.NoSubscriber
	case <-timer.C:
		r.metrics.IncUnresponsive()
		if r.evict {
			r.remove(c.identity, sub)
			r.metrics.IncEvicted()
			log.Warn("subscriber unresponsive, evicted", "timeout", r.sendTimeout)
		} else {
			sub.stalled = true
			log.Warn("subscriber unresponsive", "timeout", r.sendTimeout)
		}
		return domain.SubscriberUnresponsive
	}
}

func (r *Router) remove(identity domain.Identity, sub *subscription) {
	delete(r.subscribers, identity)
	sub.out.close()
	r.live.Add(-1)
}

// shutdown runs on the loop after the queue is closed. Commands that were
// accepted but not applied are answered with ErrRouterClosed.
func (r *Router) shutdown(cause string) {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	rejected := 0
	for drained := false; !drained; {
		select {
		case cmd := <-r.queue:
			r.reject(cmd)
			rejected++
		default:
			drained = true
		}
	}

	closed := len(r.subscribers)
	for identity, sub := range r.subscribers {
		sub.out.close()
		delete(r.subscribers, identity)
	}
	r.live.Store(0)
	r.logger.Info("router stopped", "cause", cause, "closed_outbounds", closed, "rejected_commands", rejected)
}

func (r *Router) reject(cmd command) {
	switch c := cmd.(type) {
	case subscribeCmd:
		c.out.close()
	case publishCmd:
		c.reply <- publishResult{outcome: domain.NoSubscriber, err: domain.ErrRouterClosed}
	}
}
