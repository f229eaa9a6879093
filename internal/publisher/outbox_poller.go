package publisher

import (
	"context"
	"time"

	"github.com/dimamanhura/rozetka/internal/repository"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventTypeHeader = "event_type"

// MessageWriter is the part of *kafka.Writer the poller needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Options struct {
	BatchSize    int
	EventTick    time.Duration
	CleanupTick  time.Duration
	Retention    time.Duration
	WriteTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.EventTick <= 0 {
		o.EventTick = time.Second
	}
	if o.CleanupTick <= 0 {
		o.CleanupTick = time.Hour
	}
	if o.Retention <= 0 {
		o.Retention = 7 * 24 * time.Hour
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
}

// OutboxPoller relays committed outbox rows to Kafka. Rows are marked
// processed only after the broker acknowledges them, so delivery is at
// least once and consumers must tolerate duplicates.
type OutboxPoller struct {
	repo   repository.OutboxRepository
	writer MessageWriter
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo repository.OutboxRepository, writer MessageWriter, opts Options, log *zap.Logger) *OutboxPoller {
	opts.withDefaults()
	return &OutboxPoller{repo: repo, writer: writer, opts: opts, log: log, now: time.Now}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.opts.EventTick)
	cleanupTicker := time.NewTicker(p.opts.CleanupTick)
	defer eventTicker.Stop()
	defer cleanupTicker.Stop()

	p.log.Info("outbox poller started", zap.Duration("tick", p.opts.EventTick))
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-cleanupTicker.C:
			p.cleanupProcessedEvents(ctx)
		case <-ctx.Done():
			p.log.Info("outbox poller stopped")
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

// processUnpublishedEvents publishes one batch and reports how many rows
// were marked processed.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.opts.BatchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", zap.Error(err))
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.Warn("failed to publish outbox event",
				zap.Int64("event_id", event.ID),
				zap.String("aggregate_id", event.AggregateID),
				zap.Error(err),
			)
			// keep per-aggregate order: later rows wait for the next tick
			break
		}
		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error("failed to mark outbox event processed", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) cleanupProcessedEvents(ctx context.Context) {
	n, err := p.repo.DeleteProcessedEvents(ctx, p.now().Add(-p.opts.Retention))
	if err != nil {
		p.log.Error("failed to delete processed outbox events", zap.Error(err))
		return
	}
	if n > 0 {
		p.log.Info("deleted processed outbox events", zap.Int64("count", n))
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.WriteTimeout)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: EventTypeHeader, Value: []byte(event.EventType)},
		},
	})
}
