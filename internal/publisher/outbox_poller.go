package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	r "github.com/fjod/go_checkout/internal/repository"
)

const (
	DefaultTopic = "payments-outbox"

	batchSize = 100
)

// MessageWriter is the subset of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	repo         r.OutboxStore
	writer       MessageWriter
	log          *zap.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo r.OutboxStore, writer MessageWriter, log *zap.Logger) *OutboxPoller {
	return &OutboxPoller{
		eventTick:    time.Second,
		recoveryTick: time.Second * 30,
		repo:         repo,
		writer:       writer,
		log:          log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverUnrecordedExecutions(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error("outbox_fetch_failed", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.Warn("outbox_publish_failed", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Warn("outbox_mark_failed", zap.Int64("event_id", event.ID), zap.Error(err))
		}
	}
}

// recoverUnrecordedExecutions records payments that were executed while the
// order store was failing.
func (p *OutboxPoller) recoverUnrecordedExecutions(ctx context.Context) {
	intents, err := p.repo.GetUnrecordedExecutions(ctx, batchSize)
	if err != nil {
		p.log.Error("unrecorded_executions_fetch_failed", zap.Error(err))
		return
	}

	for _, intent := range intents {
		if intent.Result == nil {
			p.log.Warn("executed_intent_without_result", zap.String("intent_id", intent.ID))
			continue
		}
		if err := p.repo.OnPaymentExecuted(ctx, intent.ID, intent.Result); err != nil {
			p.log.Warn("execution_recovery_failed", zap.String("intent_id", intent.ID), zap.Error(err))
			continue
		}
		p.log.Info("execution_recovered", zap.String("intent_id", intent.ID))
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}
