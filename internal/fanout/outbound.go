package fanout

import (
	"sync"

	"github.com/go-fanout-relay/internal/domain"
)

// Outbound is the delivery channel of one subscriber. The gateway reads from
// Messages and calls Release when its connection goes away; only the router
// sends on or closes the underlying channel.
type Outbound struct {
	ch        chan domain.Message
	released  chan struct{}
	release   sync.Once
	closeOnce sync.Once

	// owned by the router loop
	closed bool
	bound  bool
	owner  domain.Identity
}

// NewOutbound returns an outbound buffering up to capacity undelivered messages.
func NewOutbound(capacity int) *Outbound {
	if capacity < 1 {
		capacity = 1
	}
	return &Outbound{
		ch:       make(chan domain.Message, capacity),
		released: make(chan struct{}),
	}
}

// Messages yields delivered messages in publish order. It is closed when the
// subscription is replaced, evicted or the router shuts down.
func (o *Outbound) Messages() <-chan domain.Message { return o.ch }

// Release tells the router nobody reads this outbound any more. The router
// drops the subscription on its next delivery attempt. Safe to call twice.
func (o *Outbound) Release() {
	o.release.Do(func() { close(o.released) })
}

func (o *Outbound) isReleased() bool {
	select {
	case <-o.released:
		return true
	default:
		return false
	}
}

// close is called from the router loop only. A closed outbound is never
// bound again.
func (o *Outbound) close() {
	o.closed = true
	o.bound = false
	o.closeOnce.Do(func() { close(o.ch) })
}
