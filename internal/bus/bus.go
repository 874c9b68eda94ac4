// SPDX-License-Identifier: MIT

// Package bus provides the event transport for state-change notifications.
package bus

import "context"

// Message is an opaque event payload.
type Message interface{}

// Subscriber receives messages for a single subscription.
type Subscriber interface {
	// C returns a read-only message channel.
	C() <-chan Message
	// Close unsubscribes.
	Close() error
}

// Bus is the event transport abstraction. The manager publishes a message
// for every observable state transition; UI layers subscribe.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

// TopicPlaybackState carries state-change notifications for admitted items.
const TopicPlaybackState = "playback.state"
