// Команда dlq-replay перечитывает DLQ outbox и возвращает события заказов
// в основной топик. По умолчанию работает в режиме dry-run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	envKafkaBrokers    = "WATERMATE_KAFKA_BROKERS"
)

var errNotDeadLetter = errors.New("message is not an outbox dead letter")

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	orderID     string
	eventType   string
	idleTimeout time.Duration
}

// deadLetter — полезная нагрузка, которую outbox worker кладёт в DLQ.
type deadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
}

type dlqEnvelope struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return a.consumer.ConsumePartition(topic, partition, offset)
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	_ = godotenv.Load()

	cfg, err := readConfig(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func readConfig(args []string, getenv func(string) string, output io.Writer) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	fs := flag.NewFlagSet("dlq-replay", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	fs.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicOrderEvents, "target topic for replay")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan")
	fs.BoolVar(&cfg.execute, "execute", false, "publish replayed events; default is dry-run")
	fs.StringVar(&cfg.orderID, "order-id", "", "replay only events of this order")
	fs.StringVar(&cfg.eventType, "event-type", "", "replay only events of this type, e.g. order.status_changed")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = getenv(envKafkaBrokers)
	}
	cfg.brokers = parseBrokers(brokersRaw)
	cfg.sourceTopic = strings.TrimSpace(cfg.sourceTopic)
	cfg.targetTopic = strings.TrimSpace(cfg.targetTopic)

	switch {
	case len(cfg.brokers) == 0:
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	case cfg.sourceTopic == "":
		return config{}, errors.New("source-topic is required")
	case cfg.targetTopic == "":
		return config{}, errors.New("target-topic is required")
	case cfg.sourceTopic == cfg.targetTopic:
		return config{}, errors.New("source-topic and target-topic must differ")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return fmt.Errorf("create kafka client: %w", err)
	}
	defer func() { _ = client.Close() }()

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	var publisher domain.OutboxPublisher
	if cfg.execute {
		producer, err := kafka.NewProducer(cfg.brokers, "watermate-dlq-replay", log.WithField("component", "dlq-replay"))
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer func() { _ = producer.Close() }()
		publisher = kafka.NewOutboxPublisher(producer, cfg.targetTopic)
	}

	r := &replayer{
		cfg:       cfg,
		client:    client,
		consumer:  saramaConsumerAdapter{consumer: consumer},
		publisher: publisher,
		logger:    log.WithField("component", "dlq-replay"),
	}
	_, err = r.Run(ctx)
	return err
}

type report struct {
	scanned  int
	replayed int
	filtered int
	skipped  int
}

type replayer struct {
	cfg       config
	client    offsetClient
	consumer  partitionConsumerSource
	publisher domain.OutboxPublisher
	logger    *log.Entry
}

// Run просматривает партиции DLQ до снимка newest-offset, снятого на старте,
// и публикует подходящие под фильтр события. publisher обязателен только в режиме execute.
func (r *replayer) Run(ctx context.Context) (report, error) {
	var total report
	if r.cfg.execute && r.publisher == nil {
		return total, errors.New("publisher is required in execute mode")
	}

	r.logger.WithFields(log.Fields{
		"source_topic": r.cfg.sourceTopic,
		"target_topic": r.cfg.targetTopic,
		"limit":        r.cfg.limit,
		"execute":      r.cfg.execute,
		"order_id":     r.cfg.orderID,
		"event_type":   r.cfg.eventType,
	}).Info("starting dlq replay")

	partitions, err := r.client.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", r.cfg.sourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if total.scanned >= r.cfg.limit {
			break
		}
		if err := r.replayPartition(ctx, partition, &total); err != nil {
			return total, err
		}
	}

	mode := "dry-run"
	if r.cfg.execute {
		mode = "execute"
	}
	r.logger.WithFields(log.Fields{
		"mode":     mode,
		"scanned":  total.scanned,
		"replayed": total.replayed,
		"filtered": total.filtered,
		"skipped":  total.skipped,
	}).Info("dlq replay finished")
	return total, nil
}

func (r *replayer) replayPartition(ctx context.Context, partition int32, total *report) error {
	oldest, err := r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return nil
	}

	pc, err := r.consumer.ConsumePartition(r.cfg.sourceTopic, partition, oldest)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for total.scanned < r.cfg.limit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cerr := <-pc.Errors():
			if cerr != nil {
				return fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case <-idle.C:
			return nil
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(r.cfg.idleTimeout)

			total.scanned++
			if err := r.handle(msg, total); err != nil {
				return err
			}
			if msg.Offset+1 >= newest {
				return nil
			}
		}
	}
	return nil
}

func (r *replayer) handle(msg *sarama.ConsumerMessage, total *report) error {
	fields := log.Fields{"partition": msg.Partition, "offset": msg.Offset}

	event, publishErr, err := decodeDeadLetter(msg.Value)
	if err != nil {
		total.skipped++
		r.logger.WithError(err).WithFields(fields).Warn("skip unsupported dlq message")
		return nil
	}
	if !r.matches(event) {
		total.filtered++
		return nil
	}

	fields["order_id"] = event.AggregateID
	fields["event_type"] = event.EventType
	fields["publish_error"] = publishErr

	if !r.cfg.execute {
		total.replayed++
		r.logger.WithFields(fields).Info("dlq replay candidate")
		return nil
	}
	if err := r.publisher.Publish(event); err != nil {
		return fmt.Errorf("replay outbox %s: %w", event.ID, err)
	}
	total.replayed++
	r.logger.WithFields(fields).Info("dlq event replayed")
	return nil
}

func (r *replayer) matches(event domain.OutboxMessage) bool {
	if r.cfg.orderID != "" && event.AggregateID != r.cfg.orderID {
		return false
	}
	if r.cfg.eventType != "" && event.EventType != r.cfg.eventType {
		return false
	}
	return true
}

// decodeDeadLetter восстанавливает исходное событие outbox из сообщения DLQ
// и возвращает текст ошибки публикации, из-за которой оно попало в DLQ.
func decodeDeadLetter(value []byte) (domain.OutboxMessage, string, error) {
	var envelope dlqEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return domain.OutboxMessage{}, "", errNotDeadLetter
	}

	var letter deadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return domain.OutboxMessage{}, "", fmt.Errorf("decode dead letter: %w", err)
	}
	if letter.EventType == "" || len(letter.Payload) == 0 || string(letter.Payload) == "null" {
		return domain.OutboxMessage{}, "", fmt.Errorf("%w: original event is missing", errNotDeadLetter)
	}

	id := letter.OutboxID
	if id == "" {
		id = envelope.ID
	}
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: letter.AggregateType,
		AggregateID:   letter.AggregateID,
		EventType:     letter.EventType,
		Payload:       letter.Payload,
	}, letter.PublishError, nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
