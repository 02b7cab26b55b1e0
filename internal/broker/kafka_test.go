package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sliceReader struct {
	messages  []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *sliceReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *sliceReader) Close() error { return nil }

func TestStartConsumingSkipsFailedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &sliceReader{
		messages: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}},
		cancel:   cancel,
	}
	consumer := &Consumer{reader: reader, topic: "orders", logger: zap.NewNop()}

	var handled []int64
	err := consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		handled = append(handled, msg.Offset)
		if msg.Offset == 2 {
			return errors.New("handler failed")
		}
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{1, 2, 3}, handled)
	assert.Equal(t, []int64{1, 3}, reader.committed)
}
