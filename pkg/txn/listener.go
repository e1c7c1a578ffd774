package txn

import (
	"sync"

	"github.com/cuemby/estore/pkg/events"
	"github.com/cuemby/estore/pkg/metrics"
)

// Listener receives every published transaction event.
type Listener func(*events.Event)

// TransactionListenerRegistry fans committed/failed/cancelled/closed
// transaction events out to registered listeners over the shared
// events.Broker, guaranteeing each terminal event type fires at most
// once per transaction even if Publish were ever called twice with it.
type TransactionListenerRegistry struct {
	broker *events.Broker
	mu     sync.Mutex
	fired  map[string]bool
}

// NewTransactionListenerRegistry starts a broker and wires in the
// built-in metrics listener that increments estore_transactions_total.
func NewTransactionListenerRegistry() *TransactionListenerRegistry {
	r := &TransactionListenerRegistry{
		broker: events.NewBroker(),
		fired:  make(map[string]bool),
	}
	r.broker.Start()
	r.Register(metricsListener)
	return r
}

// Register installs listener against every published event.
func (r *TransactionListenerRegistry) Register(l Listener) {
	sub := r.broker.Subscribe()
	go func() {
		for ev := range sub {
			l(ev)
		}
	}()
}

// RegisterFiltered installs listener only for events whose Type is in
// kinds.
func (r *TransactionListenerRegistry) RegisterFiltered(l Listener, kinds ...events.EventType) {
	allowed := make(map[events.EventType]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	r.Register(func(ev *events.Event) {
		if allowed[ev.Type] {
			l(ev)
		}
	})
}

// Publish emits ev to every listener. A terminal event (committed,
// failed, cancelled, closed) is delivered once per transaction id and
// event type; a repeated publish of the same terminal type for the same
// transaction id is dropped, while distinct terminal types (committed,
// then closed) are each delivered.
func (r *TransactionListenerRegistry) Publish(ev *events.Event) {
	if ev.Type.Terminal() {
		key := ev.TransactionID + ":" + string(ev.Type)
		r.mu.Lock()
		if r.fired[key] {
			r.mu.Unlock()
			return
		}
		r.fired[key] = true
		r.mu.Unlock()
	}
	r.broker.Publish(ev)
}

// Close stops the underlying broker.
func (r *TransactionListenerRegistry) Close() {
	r.broker.Stop()
}

func metricsListener(ev *events.Event) {
	switch ev.Type {
	case events.EventTransactionCommitted:
		metrics.TransactionsTotal.WithLabelValues("committed").Inc()
	case events.EventTransactionFailed:
		metrics.TransactionsTotal.WithLabelValues("failed").Inc()
	case events.EventTransactionCancelled:
		metrics.TransactionsTotal.WithLabelValues("cancelled").Inc()
	}
}
