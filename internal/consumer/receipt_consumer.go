package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/publisher"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ReceiptSender delivers a paid-order receipt to the customer. The poller
// delivers at least once, so implementations should tolerate repeats.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, receipt domain.Receipt) error
}

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	initialRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
)

type Consumer struct {
	reader MessageReader
	sender ReceiptSender
	log    *zap.Logger

	retryDelay    time.Duration
	maxRetryDelay time.Duration
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewConsumer(reader MessageReader, sender ReceiptSender, log *zap.Logger) *Consumer {
	return &Consumer{
		reader:        reader,
		sender:        sender,
		log:           log,
		retryDelay:    initialRetryDelay,
		maxRetryDelay: maxRetryDelay,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("receipt consumer started")
	for {
		if ctx.Err() != nil {
			c.log.Info("receipt consumer stopped")
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", zap.Error(err))
	}
}

// processMessage handles one message. The offset is committed once the
// receipt is sent or the message is known to be unusable.
//
// A kafka-go reader keeps fetching past an uncommitted message, so a failed
// send is retried here, in place, until it succeeds. Only shutdown ends the
// retries early; the offset then stays uncommitted and the group redelivers
// the message on the next start.
func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.log.Error("error reading message", zap.Error(err))
		return
	}

	log := c.log.With(zap.String("key", string(m.Key)), zap.Int64("offset", m.Offset))

	if eventType := headerValue(m, publisher.EventTypeHeader); eventType != domain.EventOrderPaid {
		log.Debug("skipping event", zap.String("event_type", eventType))
		c.commit(ctx, log, m)
		return
	}

	receipt, err := decodeReceipt(m.Value)
	if err != nil {
		log.Error("error parsing receipt", zap.Error(err))
		c.commit(ctx, log, m)
		return
	}

	if err := c.sendWithRetry(ctx, log, receipt); err != nil {
		log.Warn("receipt left uncommitted", zap.String("order_id", receipt.OrderID), zap.Error(err))
		return
	}
	c.commit(ctx, log, m)
}

// sendWithRetry backs off exponentially between attempts, capped at
// maxRetryDelay. It returns an error only when ctx is done.
func (c *Consumer) sendWithRetry(ctx context.Context, log *zap.Logger, receipt domain.Receipt) error {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := c.sender.SendReceipt(ctx, receipt)
		if err == nil {
			return nil
		}
		log.Error("failed to send receipt",
			zap.String("order_id", receipt.OrderID),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, c.maxRetryDelay)
	}
}

func (c *Consumer) commit(ctx context.Context, log *zap.Logger, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Warn("failed to commit offset", zap.Error(err))
	}
}

func decodeReceipt(value []byte) (domain.Receipt, error) {
	var r domain.Receipt
	if err := json.Unmarshal(value, &r); err != nil {
		return domain.Receipt{}, err
	}
	if r.OrderID == "" {
		return domain.Receipt{}, fmt.Errorf("receipt without order_id")
	}
	return r, nil
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// LogReceiptSender writes receipts to the log instead of mailing them.
type LogReceiptSender struct {
	log *zap.Logger
}

func NewLogReceiptSender(log *zap.Logger) *LogReceiptSender {
	return &LogReceiptSender{log: log}
}

func (s *LogReceiptSender) SendReceipt(_ context.Context, r domain.Receipt) error {
	s.log.Info("purchase receipt",
		zap.String("order_id", r.OrderID),
		zap.String("to", r.UserEmail),
		zap.String("name", r.UserName),
		zap.String("total", r.TotalPrice),
		zap.Int("items", len(r.Items)),
		zap.Time("paid_at", r.PaidAt),
	)
	return nil
}
