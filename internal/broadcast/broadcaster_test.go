package broadcast

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSubscriber mimics a connection outbox: buffered, dropping when full.
type chanSubscriber struct {
	messages chan any
}

func newChanSubscriber(size int) *chanSubscriber {
	return &chanSubscriber{messages: make(chan any, size)}
}

func (that *chanSubscriber) Send(message any) bool {
	select {
	case that.messages <- message:
		return true
	default:
		return false
	}
}

func (that *chanSubscriber) received(t *testing.T) []any {
	t.Helper()

	var messages []any
	for {
		select {
		case message := <-that.messages:
			messages = append(messages, message)
		default:
			return messages
		}
	}
}

func TestBroadcaster_Publish(t *testing.T) {
	t.Run("Every topic subscriber receives the message", func(t *testing.T) {
		// Given: two connections subscribed to the same game topic
		broadcaster := New(slog.Default())

		first := newChanSubscriber(4)
		second := newChanSubscriber(4)
		broadcaster.Register("conn-1", first)
		broadcaster.Register("conn-2", second)
		broadcaster.Subscribe(TopicFor("123"), "conn-1")
		broadcaster.Subscribe(TopicFor("123"), "conn-2")

		// When: publishing on that topic
		broadcaster.Publish(TopicFor("123"), "state")

		// Then: both connections received it
		assert.Equal(t, []any{"state"}, first.received(t))
		assert.Equal(t, []any{"state"}, second.received(t))
	})

	t.Run("Other topics stay quiet", func(t *testing.T) {
		// Given: two connections on different game topics
		broadcaster := New(slog.Default())

		first := newChanSubscriber(4)
		second := newChanSubscriber(4)
		broadcaster.Register("conn-1", first)
		broadcaster.Register("conn-2", second)
		broadcaster.Subscribe(TopicFor("123"), "conn-1")
		broadcaster.Subscribe(TopicFor("456"), "conn-2")

		// When: publishing on the first topic only
		broadcaster.Publish(TopicFor("123"), "state")

		// Then: the second connection received nothing
		assert.Equal(t, []any{"state"}, first.received(t))
		assert.Empty(t, second.received(t))
	})

	t.Run("A slow subscriber loses the message without blocking", func(t *testing.T) {
		// Given: a subscriber whose outbox is already full
		broadcaster := New(slog.Default())

		slow := newChanSubscriber(1)
		require.True(t, slow.Send("old"))
		broadcaster.Register("conn-1", slow)
		broadcaster.Subscribe(TopicFor("123"), "conn-1")

		// When: publishing over the full outbox
		broadcaster.Publish(TopicFor("123"), "new")

		// Then: the publish returned, the new message was dropped
		assert.Equal(t, []any{"old"}, slow.received(t))
	})
}

func TestBroadcaster_Subscriptions(t *testing.T) {
	t.Run("Subscribing an unregistered connection is a no-op", func(t *testing.T) {
		broadcaster := New(slog.Default())
		stranger := newChanSubscriber(4)

		// When: subscribing without registering first
		broadcaster.Subscribe(TopicFor("123"), "conn-1")
		broadcaster.Publish(TopicFor("123"), "state")

		// Then: nothing is delivered
		assert.Empty(t, stranger.received(t))
	})

	t.Run("Unsubscribe stops delivery for one connection", func(t *testing.T) {
		// Given: two subscribers on the same topic
		broadcaster := New(slog.Default())

		first := newChanSubscriber(4)
		second := newChanSubscriber(4)
		broadcaster.Register("conn-1", first)
		broadcaster.Register("conn-2", second)
		broadcaster.Subscribe(TopicFor("123"), "conn-1")
		broadcaster.Subscribe(TopicFor("123"), "conn-2")

		// When: the first connection unsubscribes
		broadcaster.Unsubscribe(TopicFor("123"), "conn-1")
		broadcaster.Publish(TopicFor("123"), "state")

		// Then: only the second connection still receives
		assert.Empty(t, first.received(t))
		assert.Equal(t, []any{"state"}, second.received(t))
	})

	t.Run("Unregister scrubs all topic subscriptions", func(t *testing.T) {
		// Given: one connection subscribed to two game topics
		broadcaster := New(slog.Default())

		subscriber := newChanSubscriber(4)
		broadcaster.Register("conn-1", subscriber)
		broadcaster.Subscribe(TopicFor("123"), "conn-1")
		broadcaster.Subscribe(TopicFor("456"), "conn-1")

		// When: the connection unregisters
		broadcaster.Unregister("conn-1")
		broadcaster.Publish(TopicFor("123"), "state")
		broadcaster.Publish(TopicFor("456"), "state")

		// Then: no topic delivers to it any more
		assert.Empty(t, subscriber.received(t))
	})
}

func TestBroadcaster_SendTo(t *testing.T) {
	t.Run("Delivers a personal message", func(t *testing.T) {
		// Given: a registered connection
		broadcaster := New(slog.Default())
		subscriber := newChanSubscriber(4)
		broadcaster.Register("conn-1", subscriber)

		// When: sending directly to it
		err := broadcaster.SendTo("conn-1", "details")
		require.NoError(t, err)

		// Then: the message arrived
		assert.Equal(t, []any{"details"}, subscriber.received(t))
	})

	t.Run("Error on an unknown connection", func(t *testing.T) {
		broadcaster := New(slog.Default())

		err := broadcaster.SendTo("missing", "details")

		require.ErrorIs(t, err, ErrUnknownConnection)
	})

	t.Run("Error when the outbox is full", func(t *testing.T) {
		// Given: a connection whose outbox has no room left
		broadcaster := New(slog.Default())
		subscriber := newChanSubscriber(1)
		require.True(t, subscriber.Send("old"))
		broadcaster.Register("conn-1", subscriber)

		// When: sending another personal message
		err := broadcaster.SendTo("conn-1", "details")

		// Then: the send reports the drop
		require.Error(t, err)
	})
}
