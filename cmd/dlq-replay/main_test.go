package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/messaging/kafka"
)

type fakeOffsetClient struct {
	partitions []int32
	oldest     map[int32]int64
	newest     map[int32]int64
	err        error
}

func (c fakeOffsetClient) Partitions(string) ([]int32, error) {
	return c.partitions, c.err
}

func (c fakeOffsetClient) GetOffset(_ string, partition int32, at int64) (int64, error) {
	if at == sarama.OffsetOldest {
		return c.oldest[partition], nil
	}
	return c.newest[partition], nil
}

type fakePartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (c *fakePartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return c.messages }
func (c *fakePartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return c.errors }
func (c *fakePartitionConsumer) Close() error                             { return nil }

type fakeConsumerSource struct {
	byPartition map[int32][]*sarama.ConsumerMessage
}

func (s fakeConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	msgs := s.byPartition[partition]
	pc := &fakePartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage, len(msgs)),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	for _, msg := range msgs {
		if msg.Offset >= offset {
			pc.messages <- msg
		}
	}
	return pc, nil
}

type recordingPublisher struct {
	published []domain.OutboxMessage
	err       error
}

func (p *recordingPublisher) Publish(event domain.OutboxMessage) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

func dlqValue(t *testing.T, orderID, eventType string) []byte {
	t.Helper()

	letter, err := json.Marshal(map[string]any{
		"outbox_id":        "outbox-" + orderID + "-" + eventType,
		"aggregate_type":   "order",
		"aggregate_id":     orderID,
		"event_type":       eventType,
		"payload":          map[string]string{"order_id": orderID},
		"publish_error":    "kafka: broker not available",
		"dlq_published_at": time.Now().UTC(),
	})
	require.NoError(t, err)

	value, err := json.Marshal(map[string]any{
		"id":             "outbox-" + orderID,
		"aggregate_type": "order",
		"aggregate_id":   orderID,
		"event_type":     eventType,
		"payload":        json.RawMessage(letter),
		"published_at":   time.Now().UTC(),
	})
	require.NoError(t, err)
	return value
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

func testConfig() config {
	return config{
		brokers:     []string{"localhost:9092"},
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicOrderEvents,
		limit:       defaultReplayLimit,
		idleTimeout: 50 * time.Millisecond,
	}
}

func newTestReplayer(t *testing.T, cfg config, publisher domain.OutboxPublisher) *replayer {
	t.Helper()

	msgs := []*sarama.ConsumerMessage{
		{Partition: 0, Offset: 0, Value: dlqValue(t, "order-1", "order.created")},
		{Partition: 0, Offset: 1, Value: []byte("not json")},
		{Partition: 0, Offset: 2, Value: dlqValue(t, "order-2", "order.status_changed")},
		{Partition: 1, Offset: 5, Value: dlqValue(t, "order-1", "order.cancelled")},
	}
	byPartition := map[int32][]*sarama.ConsumerMessage{}
	for _, msg := range msgs {
		byPartition[msg.Partition] = append(byPartition[msg.Partition], msg)
	}

	return &replayer{
		cfg: cfg,
		client: fakeOffsetClient{
			partitions: []int32{1, 0},
			oldest:     map[int32]int64{0: 0, 1: 5},
			newest:     map[int32]int64{0: 3, 1: 6},
		},
		consumer:  fakeConsumerSource{byPartition: byPartition},
		publisher: publisher,
		logger:    quietLogger(),
	}
}

func TestReadConfig(t *testing.T) {
	getenv := func(key string) string {
		if key == envKafkaBrokers {
			return " kafka-1:9092 , kafka-2:9092 ,"
		}
		return ""
	}

	cfg, err := readConfig([]string{"-execute", "-order-id", "order-1", "-limit", "10"}, getenv, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.brokers)
	assert.Equal(t, kafka.TopicDeadLetterQueue, cfg.sourceTopic)
	assert.Equal(t, kafka.TopicOrderEvents, cfg.targetTopic)
	assert.True(t, cfg.execute)
	assert.Equal(t, "order-1", cfg.orderID)
	assert.Equal(t, 10, cfg.limit)
}

func TestReadConfigFlagBrokersWinOverEnv(t *testing.T) {
	cfg, err := readConfig([]string{"-brokers", "flag:9092"}, func(string) string { return "env:9092" }, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"flag:9092"}, cfg.brokers)
	assert.False(t, cfg.execute)
}

func TestReadConfigRejectsInvalidInput(t *testing.T) {
	noEnv := func(string) string { return "" }
	cases := map[string][]string{
		"no brokers":     {},
		"same topics":    {"-brokers", "b:9092", "-source-topic", "t", "-target-topic", "t"},
		"zero limit":     {"-brokers", "b:9092", "-limit", "0"},
		"zero idle":      {"-brokers", "b:9092", "-idle-timeout", "0s"},
		"empty target":   {"-brokers", "b:9092", "-target-topic", " "},
		"unknown option": {"-brokers", "b:9092", "-bogus"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := readConfig(args, noEnv, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestDecodeDeadLetter(t *testing.T) {
	event, publishErr, err := decodeDeadLetter(dlqValue(t, "order-7", "order.payment_changed"))
	require.NoError(t, err)
	assert.Equal(t, "outbox-order-7-order.payment_changed", event.ID)
	assert.Equal(t, "order-7", event.AggregateID)
	assert.Equal(t, "order.payment_changed", event.EventType)
	assert.JSONEq(t, `{"order_id":"order-7"}`, string(event.Payload))
	assert.Equal(t, "kafka: broker not available", publishErr)
}

func TestDecodeDeadLetterRejectsForeignMessages(t *testing.T) {
	for name, value := range map[string]string{
		"garbage":       "not json",
		"no payload":    `{"id":"x"}`,
		"plain event":   `{"id":"x","payload":{"order_id":"order-1"}}`,
		"null original": `{"id":"x","payload":{"event_type":"order.created","payload":null}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := decodeDeadLetter([]byte(value))
			assert.ErrorIs(t, err, errNotDeadLetter)
		})
	}
}

func TestReplayerDryRunPublishesNothing(t *testing.T) {
	publisher := &recordingPublisher{}
	r := newTestReplayer(t, testConfig(), publisher)

	got, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report{scanned: 4, replayed: 3, skipped: 1}, got)
	assert.Empty(t, publisher.published)
}

func TestReplayerExecuteAppliesFilters(t *testing.T) {
	cfg := testConfig()
	cfg.execute = true
	cfg.orderID = "order-1"
	publisher := &recordingPublisher{}
	r := newTestReplayer(t, cfg, publisher)

	got, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got.replayed)
	assert.Equal(t, 1, got.filtered)
	require.Len(t, publisher.published, 2)
	assert.Equal(t, "order.created", publisher.published[0].EventType)
	assert.Equal(t, "order.cancelled", publisher.published[1].EventType)

	cfg.orderID = ""
	cfg.eventType = "order.status_changed"
	publisher = &recordingPublisher{}
	_, err = newTestReplayer(t, cfg, publisher).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, "order-2", publisher.published[0].AggregateID)
}

func TestReplayerRespectsLimit(t *testing.T) {
	cfg := testConfig()
	cfg.limit = 2
	got, err := newTestReplayer(t, cfg, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got.scanned)
}

func TestReplayerStopsOnPublishError(t *testing.T) {
	cfg := testConfig()
	cfg.execute = true
	r := newTestReplayer(t, cfg, &recordingPublisher{err: errors.New("broker down")})

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestReplayerExecuteRequiresPublisher(t *testing.T) {
	cfg := testConfig()
	cfg.execute = true
	_, err := newTestReplayer(t, cfg, nil).Run(context.Background())
	require.Error(t, err)
}

func TestReplayerPartitionsError(t *testing.T) {
	r := newTestReplayer(t, testConfig(), nil)
	r.client = fakeOffsetClient{err: errors.New("metadata unavailable")}

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata unavailable")
}

func TestReplayerRepublishesToOrderEventsTopic(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var envelope struct {
			AggregateID string          `json:"aggregate_id"`
			EventType   string          `json:"event_type"`
			Payload     json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(val, &envelope); err != nil {
			return err
		}
		if envelope.AggregateID != "order-2" || envelope.EventType != "order.status_changed" {
			return errors.New("unexpected envelope " + string(val))
		}
		if string(envelope.Payload) != `{"order_id":"order-2"}` {
			return errors.New("original payload was not restored: " + string(envelope.Payload))
		}
		return nil
	})

	cfg := testConfig()
	cfg.execute = true
	cfg.eventType = "order.status_changed"
	publisher := kafka.NewOutboxPublisher(kafka.NewProducerWithClient(producer, quietLogger()), cfg.targetTopic)

	got, err := newTestReplayer(t, cfg, publisher).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got.replayed)
	require.NoError(t, producer.Close())
}
