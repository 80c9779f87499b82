package feed

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/agentpulse/pkg/logger"
)

func TestHubSubscribeBroadcast(t *testing.T) {
	hub := NewHub("claude", 4, logger.Noop())

	a := hub.Subscribe()
	b := hub.Subscribe()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, hub.Count())

	delivered := hub.Broadcast(Event{Type: KindUser, Text: "hi"})
	assert.Equal(t, 2, delivered)

	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, "hi", ev.Text)
		default:
			t.Fatalf("subscriber %s got nothing", sub.ID)
		}
	}
}

func TestHubDropsFullSubscriberOnly(t *testing.T) {
	hub := NewHub("claude", 1, logger.Noop())

	slow := hub.Subscribe()
	fast := hub.Subscribe()

	hub.Broadcast(Event{Text: "1"})
	<-fast.Events()

	// slow still holds "1" and cannot take "2".
	delivered := hub.Broadcast(Event{Text: "2"})
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, hub.Count())

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow subscriber was not closed")
	}
	select {
	case <-fast.Done():
		t.Fatal("fast subscriber was closed")
	default:
	}
	assert.Equal(t, "2", (<-fast.Events()).Text)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub("claude", 0, logger.Noop())
	sub := hub.Subscribe()

	assert.True(t, hub.Unsubscribe(sub.ID))
	assert.False(t, hub.Unsubscribe(sub.ID))
	assert.Zero(t, hub.Count())
	assert.Zero(t, hub.Broadcast(Event{}))

	_, open := <-sub.Done()
	assert.False(t, open)
}

func TestHubConcurrentUse(t *testing.T) {
	hub := NewHub("claude", 8, logger.Noop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe()
			hub.Unsubscribe(sub.ID)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast(Event{Type: KindAssistant})
		}()
	}
	wg.Wait()

	assert.Zero(t, hub.Count())
}

func TestHubClose(t *testing.T) {
	hub := NewHub("claude", 1, logger.Noop())
	sub := hub.Subscribe()

	hub.Close()
	assert.Zero(t, hub.Count())
	<-sub.Done()
}

type staticRoots []string

func (s staticRoots) Roots() []string { return s }

func TestRegistrySubscribe(t *testing.T) {
	reg := NewRegistry(4, logger.Noop())
	hub := reg.Register("claude", staticRoots{"/logs"})
	reg.Register("codex", staticRoots{})

	assert.Same(t, hub, reg.Register("claude", staticRoots{}))
	assert.Equal(t, []string{"claude", "codex"}, reg.Agents())

	_, _, err := reg.Subscribe("claude")
	assert.ErrorIs(t, err, ErrUnavailable, "no pump follows claude yet")

	reg.SetLive("claude", true)
	reg.SetLive("gemini", true)

	got, sub, err := reg.Subscribe("claude")
	require.NoError(t, err)
	assert.Same(t, hub, got)
	assert.Equal(t, 1, hub.Count())
	hub.Unsubscribe(sub.ID)

	_, _, err = reg.Subscribe("codex")
	assert.True(t, errors.Is(err, ErrUnavailable))

	_, _, err = reg.Subscribe("gemini")
	assert.True(t, errors.Is(err, ErrUnavailable))

	reg.Close()
}
