package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestKafkaPublisherWritesKeyedJSON(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw, quietLogger())

	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), Event{
		Type:       SalePosted,
		Key:        "party-apollo",
		OccurredAt: at,
		Payload:    map[string]string{"invoiceNumber": "INV/2025-26/00001"},
	})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "party-apollo", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, SalePosted, string(msg.Headers[0].Value))

	var decoded struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, SalePosted, decoded.Type)
	assert.Equal(t, "INV/2025-26/00001", decoded.Payload["invoiceNumber"])

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestKafkaPublisherReturnsWriteError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisherWithWriter(fw, quietLogger())

	err := p.Publish(context.Background(), Event{Type: StockAdjusted, Key: "batch-1"})
	assert.EqualError(t, err, "broker down")
}
