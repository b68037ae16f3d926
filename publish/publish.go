// Package publish defines the transport contract the orchestrator uses to
// emit serialized window results, and supplies two reference
// implementations: a channel-backed publisher with a high-water mark (for
// tests) and a log-backed publisher (for demo wiring).
package publish

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/grailbio/pando/schema"
)

// Publisher sends one topic/payload frame. Publish must not block; if the
// transport's outgoing queue is full it returns an error rather than
// waiting, mirroring the high-water-mark behavior of the pub/sub socket
// this replaces.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Serializer turns a schema.Packet into wire bytes. codec.GogoSerializer
// is the default implementation.
type Serializer interface {
	Marshal(pkt schema.Packet) ([]byte, error)
}

// Message is one frame accepted by ChannelPublisher.
type Message struct {
	Topic   string
	Payload []byte
}

// ChannelPublisher is a bounded, non-blocking Publisher backed by a
// buffered channel; Publish returns an error once the channel is full
// instead of blocking, standing in for a pub/sub socket's HWM policy.
type ChannelPublisher struct {
	mu   sync.Mutex
	ch   chan Message
}

// NewChannelPublisher constructs a ChannelPublisher with the given queue
// capacity.
func NewChannelPublisher(capacity int) *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan Message, capacity)}
}

// Publish enqueues topic/payload, or errors if the queue is full.
func (p *ChannelPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	select {
	case p.ch <- Message{Topic: topic, Payload: payload}:
		return nil
	default:
		return errors.E(fmt.Sprintf("publish: high water mark reached for topic %q", topic))
	}
}

// Messages returns the channel published frames are delivered on.
func (p *ChannelPublisher) Messages() <-chan Message {
	return p.ch
}

// LogPublisher logs each publish via github.com/grailbio/base/log,
// standing in for a real transport in CLI demo wiring.
type LogPublisher struct{}

// Publish logs topic and payload length at Debug level and never fails.
func (LogPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	log.Debug.Printf("publish: topic=%s bytes=%d", topic, len(payload))
	return nil
}
