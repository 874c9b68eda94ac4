// SPDX-License-Identifier: MIT

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversToSubscriber(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), TopicPlaybackState)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	require.NoError(t, b.Publish(context.Background(), TopicPlaybackState, "msg"))

	select {
	case msg := <-sub.C():
		assert.Equal(t, "msg", msg)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMemoryBusPublishContextTimeout(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "topic")
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	// Fill the subscriber buffer without draining.
	for i := 0; i < 64; i++ {
		require.NoError(t, b.Publish(context.Background(), "topic", i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = b.Publish(ctx, "topic", "blocked")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBusPublishRejectsNilContext(t *testing.T) {
	b := NewMemoryBus()
	err := b.Publish(nil, "topic", "msg") //nolint:staticcheck // exercising contract
	require.Error(t, err)
}

func TestMemoryBusCloseRemovesSubscriber(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "topic")
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	// Publishing after close must not block or panic.
	require.NoError(t, b.Publish(context.Background(), "topic", "msg"))

	_, open := <-sub.C()
	assert.False(t, open, "channel should be closed")
}
