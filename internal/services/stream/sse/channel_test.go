package sse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelStreamDeliversInOrder(t *testing.T) {
	stream := NewChannelStream(4)

	go func() {
		ctx := context.Background()
		for _, chunk := range []any{"a", "b", "c"} {
			if err := stream.Send(ctx, chunk); err != nil {
				stream.CloseSend(err)
				return
			}
		}
		stream.CloseSend(nil)
	}()

	var got []any
	for stream.Next() {
		got = append(got, stream.Current())
	}

	require.NoError(t, stream.Err())
	assert.Equal(t, []any{"a", "b", "c"}, got)
}

func TestChannelStreamSurfacesTerminalError(t *testing.T) {
	stream := NewChannelStream(1)
	terminal := errors.New("provider hung up")

	go func() {
		_ = stream.Send(context.Background(), "partial")
		stream.CloseSend(terminal)
	}()

	require.True(t, stream.Next())
	assert.Equal(t, "partial", stream.Current())
	require.False(t, stream.Next())
	assert.ErrorIs(t, stream.Err(), terminal)
}

func TestChannelStreamCloseSendFirstWins(t *testing.T) {
	stream := NewChannelStream(0)
	first := errors.New("first")

	stream.CloseSend(first)
	stream.CloseSend(errors.New("second"))

	require.False(t, stream.Next())
	assert.ErrorIs(t, stream.Err(), first)
}

func TestChannelStreamCloseUnblocksProducer(t *testing.T) {
	stream := NewChannelStream(0)
	sendResult := make(chan error, 1)

	go func() {
		// Unbuffered channel and no consumer: Send blocks until Close.
		sendResult <- stream.Send(context.Background(), "stuck")
	}()

	require.NoError(t, stream.Close())

	select {
	case err := <-sendResult:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(time.Second):
		t.Fatal("Send did not unblock after Close")
	}
}

func TestChannelStreamSendRespectsContext(t *testing.T) {
	stream := NewChannelStream(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := stream.Send(ctx, "never delivered")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannelStreamCloseIsIdempotent(t *testing.T) {
	stream := NewChannelStream(1)
	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
}
