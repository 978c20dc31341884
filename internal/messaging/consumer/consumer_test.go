package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"hashauth/config"
	"hashauth/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	queue     []kafka.Message
	committed []int64
	fetchErr  error
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if f.fetchErr != nil {
		return kafka.Message{}, f.fetchErr
	}
	if len(f.queue) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func encode(t *testing.T, msg *models.ProductMessage) []byte {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return raw
}

func TestKafkaConsumer_Consume(t *testing.T) {
	sample := SampleMessages(time.Unix(1700000000, 0))[1]
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 10, Value: []byte("{not json")},
		{Offset: 11, Value: []byte(`{"Product":{}}`)},
		{Offset: 12, Value: encode(t, sample)},
		{Offset: 13, Value: encode(t, sample)},
	}}
	c := &KafkaConsumer{reader: reader, logger: zap.NewNop()}
	ctx := context.Background()

	_, _, err := c.Consume(ctx)
	assert.Error(t, err)
	_, _, err = c.Consume(ctx)
	assert.Error(t, err)
	assert.Equal(t, []int64{10, 11}, reader.committed)

	msg, ack, err := c.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, sample.RequestID, msg.RequestID)
	assert.Equal(t, "Viribus", msg.Product.Name)
	assert.Equal(t, 0, big.NewInt(73737373).Cmp(msg.Product.FdaNo))
	ack(true)
	assert.Equal(t, []int64{10, 11, 12}, reader.committed)

	_, ack, err = c.Consume(ctx)
	require.NoError(t, err)
	ack(false)
	assert.Equal(t, []int64{10, 11, 12}, reader.committed)

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}

func TestKafkaConsumer_ConsumeCancelled(t *testing.T) {
	c := &KafkaConsumer{reader: &fakeReader{}, logger: zap.NewNop()}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := c.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c = &KafkaConsumer{reader: &fakeReader{fetchErr: errors.New("broker down")}, logger: zap.NewNop()}
	_, _, err = c.Consume(context.Background())
	assert.EqualError(t, err, "broker down")
}

func TestNewKafkaConsumer_Incomplete(t *testing.T) {
	_, err := NewKafkaConsumer(config.KafkaConsumerConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)
}

func TestMockConsumer(t *testing.T) {
	msgs := SampleMessages(time.Now())
	m := NewMockConsumer(nil, msgs...)
	ctx := context.Background()

	first, ack, err := m.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, msgs[0].RequestID, first.RequestID)
	ack(false)

	second, ack, err := m.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, msgs[1].RequestID, second.RequestID)
	ack(true)

	again, _, err := m.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, msgs[0].RequestID, again.RequestID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = m.Consume(cancelled)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	_, _, err = m.Consume(ctx)
	assert.Error(t, err)
}

func TestSampleMessages_RandomProductMovesWithClock(t *testing.T) {
	a := SampleMessages(time.Unix(1700000000, 0))
	b := SampleMessages(time.Unix(1700000100, 0))
	assert.NotEqual(t, 0, a[0].Product.ExpiryDate.Cmp(b[0].Product.ExpiryDate))
	assert.Equal(t, 0, a[1].Product.ExpiryDate.Cmp(b[1].Product.ExpiryDate))
}
