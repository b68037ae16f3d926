package publish

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelPublisherDeliversAndReportsHighWaterMark(t *testing.T) {
	p := NewChannelPublisher(1)
	require.NoError(t, p.Publish(context.Background(), "counts", []byte("a")))

	err := p.Publish(context.Background(), "counts", []byte("b"))
	assert.Error(t, err)

	msg := <-p.Messages()
	assert.Equal(t, "counts", msg.Topic)
	assert.Equal(t, []byte("a"), msg.Payload)
}

func TestLogPublisherNeverFails(t *testing.T) {
	var p LogPublisher
	assert.NoError(t, p.Publish(context.Background(), "event", []byte("x")))
}
