package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerLocalBroadcast(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to every subscriber of the session", func(t *testing.T) {
		broker := NewBroker(nil)
		defer broker.Close()

		first := broker.Subscribe("123456")
		second := broker.Subscribe("123456")
		other := broker.Subscribe("654321")

		event := Event{Type: EventPeerJoined, Data: json.RawMessage(`{"clientId":"c1"}`)}
		require.NoError(t, broker.Publish(ctx, "123456", event))

		for _, client := range []*Client{first, second} {
			select {
			case got := <-client.Events:
				assert.Equal(t, EventPeerJoined, got.Type)
			case <-time.After(time.Second):
				t.Fatal("subscriber did not receive the event")
			}
		}

		select {
		case <-other.Events:
			t.Fatal("event leaked to another session")
		default:
		}
	})

	t.Run("unsubscribe closes the client and drops the session entry", func(t *testing.T) {
		broker := NewBroker(nil)
		defer broker.Close()

		client := broker.Subscribe("123456")
		assert.Equal(t, 1, broker.ClientCount("123456"))

		broker.Unsubscribe(client)
		assert.Equal(t, 0, broker.ClientCount("123456"))

		select {
		case <-client.Done:
		default:
			t.Fatal("done channel not closed")
		}
	})

	t.Run("publishing to a session with no subscribers is a no-op", func(t *testing.T) {
		broker := NewBroker(nil)
		defer broker.Close()

		err := broker.Publish(ctx, "000000", Event{Type: EventSignal})
		assert.NoError(t, err)
	})

	t.Run("a full client buffer drops events instead of blocking", func(t *testing.T) {
		broker := NewBroker(nil)
		defer broker.Close()

		client := broker.Subscribe("123456")
		for i := 0; i < cap(client.Events)+10; i++ {
			require.NoError(t, broker.Publish(ctx, "123456", Event{Type: EventChatMessage}))
		}

		assert.Len(t, client.Events, cap(client.Events))
	})

	t.Run("close releases every subscriber", func(t *testing.T) {
		broker := NewBroker(nil)

		first := broker.Subscribe("123456")
		second := broker.Subscribe("654321")
		assert.Equal(t, 2, broker.TotalClients())

		broker.Close()

		for _, client := range []*Client{first, second} {
			select {
			case <-client.Done:
			default:
				t.Fatal("done channel not closed on broker close")
			}
		}
		assert.Equal(t, 0, broker.TotalClients())
	})
}
