package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics is a small in-memory counter set for the relay. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	subscribed    atomic.Int64
	replaced      atomic.Int64
	delivered     atomic.Int64
	noSubscriber  atomic.Int64
	unresponsive  atomic.Int64
	evicted       atomic.Int64
	codesIssued   atomic.Int64
	codesVerified atomic.Int64
	codesRejected atomic.Int64
}

// New returns a zeroed Metrics collector.
func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncSubscribed() {
	if m != nil {
		m.subscribed.Add(1)
	}
}

func (m *Metrics) IncReplaced() {
	if m != nil {
		m.replaced.Add(1)
	}
}

func (m *Metrics) IncDelivered() {
	if m != nil {
		m.delivered.Add(1)
	}
}

func (m *Metrics) IncNoSubscriber() {
	if m != nil {
		m.noSubscriber.Add(1)
	}
}

func (m *Metrics) IncUnresponsive() {
	if m != nil {
		m.unresponsive.Add(1)
	}
}

func (m *Metrics) IncEvicted() {
	if m != nil {
		m.evicted.Add(1)
	}
}

func (m *Metrics) IncCodesIssued() {
	if m != nil {
		m.codesIssued.Add(1)
	}
}

func (m *Metrics) IncCodesVerified() {
	if m != nil {
		m.codesVerified.Add(1)
	}
}

func (m *Metrics) IncCodesRejected() {
	if m != nil {
		m.codesRejected.Add(1)
	}
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Subscribed    int64 `json:"subscribed"`
	Replaced      int64 `json:"replaced"`
	Delivered     int64 `json:"delivered"`
	NoSubscriber  int64 `json:"no_subscriber"`
	Unresponsive  int64 `json:"unresponsive"`
	Evicted       int64 `json:"evicted"`
	CodesIssued   int64 `json:"codes_issued"`
	CodesVerified int64 `json:"codes_verified"`
	CodesRejected int64 `json:"codes_rejected"`
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Subscribed:    m.subscribed.Load(),
		Replaced:      m.replaced.Load(),
		Delivered:     m.delivered.Load(),
		NoSubscriber:  m.noSubscriber.Load(),
		Unresponsive:  m.unresponsive.Load(),
		Evicted:       m.evicted.Load(),
		CodesIssued:   m.codesIssued.Load(),
		CodesVerified: m.codesVerified.Load(),
		CodesRejected: m.codesRejected.Load(),
	}
}

// Handler exposes the counters as JSON.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Snapshot())
	})
}
