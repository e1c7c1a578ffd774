package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTerminalClassifiesLifecycleStages(t *testing.T) {
	assert.False(t, EventTransactionCreated.Terminal())
	assert.False(t, EventTransactionCommitting.Terminal())
	assert.True(t, EventTransactionCommitted.Terminal())
	assert.True(t, EventTransactionFailed.Terminal())
	assert.True(t, EventTransactionCancelled.Terminal())
	assert.True(t, EventTransactionClosed.Terminal())
}

func TestBrokerDeliversPublishedEventToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Event{TransactionID: "t1", Type: EventTransactionCommitted})

	select {
	case ev := <-sub:
		assert.Equal(t, "t1", ev.TransactionID)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscriberCountTracksSubscriptions(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	assert.Equal(t, 0, b.SubscriberCount())
	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())
}
