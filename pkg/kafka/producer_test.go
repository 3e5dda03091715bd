package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observed struct {
	topic    string
	messages int
	bytes    int64
	err      error
}

type recordingObserver struct{ calls []observed }

func (r *recordingObserver) ObservePublish(topic string, messages int, bytes int64, _ time.Duration, err error) {
	r.calls = append(r.calls, observed{topic: topic, messages: messages, bytes: bytes, err: err})
}

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)

	_, err = NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("brotli"))
	assert.ErrorContains(t, err, "brotli")

	_, err = NewProducer(WithBrokers([]string{"localhost:9092"}), WithRequiredAcks(2))
	assert.Error(t, err)

	p, err := NewProducer(
		WithBrokers([]string{"localhost:9092"}),
		WithCompression("zstd"),
		WithHashByKey(true),
		WithBatching(10, 0, 0),
		WithClientID("screener-test"),
	)
	require.NoError(t, err)
	assert.Equal(t, 10, p.writer.BatchSize)
	assert.Equal(t, int64(1<<20), p.writer.BatchBytes)
	assert.IsType(t, &kafka.Hash{}, p.writer.Balancer)
	assert.Nil(t, p.writer.Completion)
	assert.NoError(t, p.Close())
}

func TestAsyncCompletionReportsToObserver(t *testing.T) {
	obs := &recordingObserver{}
	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithAsync(true), WithObserver(obs))
	require.NoError(t, err)
	require.NotNil(t, p.writer.Completion)

	p.writer.Completion([]kafka.Message{
		{Topic: "finscreen.runs", Value: []byte(`{"a":1}`), Time: time.Now()},
		{Topic: "finscreen.runs", Value: []byte(`{}`), Time: time.Now()},
	}, nil)
	p.writer.Completion(nil, nil)

	require.Len(t, obs.calls, 1)
	assert.Equal(t, observed{topic: "finscreen.runs", messages: 2, bytes: 9}, obs.calls[0])
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"rows": 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":2}`, string(b))

	b, err = encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}

func TestHeaders(t *testing.T) {
	assert.Nil(t, headers(nil))
	h := headers(map[string]string{"event": "run.finished"})
	require.Len(t, h, 1)
	assert.Equal(t, "event", h[0].Key)
	assert.Equal(t, []byte("run.finished"), h[0].Value)
}
