// Package kafka moves order notifications through a Kafka topic so that mail
// delivery can run in a separate consumer process.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"fulfillment-service/internal/notify"
	"fulfillment-service/pkg/logkey"

	"github.com/twmb/franz-go/pkg/kgo"
)

const deliveryTimeout = 10 * time.Second

type Conf struct {
	client *kgo.Client
}

// NewConf connects to brokers. Pass kgo.ConsumerGroup and kgo.ConsumeTopics
// in opts for a consuming client.
func NewConf(brokers []string, opts ...kgo.Opt) (*Conf, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordDeliveryTimeout(deliveryTimeout),
	}, opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &Conf{client: client}, nil
}

// NewConsumerConf joins the notifier consumer group on the order events topic.
func NewConsumerConf(brokers []string) (*Conf, error) {
	return NewConf(brokers,
		kgo.ConsumerGroup(ConsumerGroup),
		kgo.ConsumeTopics(TopicOrderEvents),
	)
}

func (c *Conf) Close() {
	c.client.Close()
}

type producer interface {
	TryProduce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Publisher writes notify events to the order events topic keyed by order id,
// so every event of one order lands on the same partition. Publish only
// buffers the record; delivery failures are logged by the promise.
type Publisher struct {
	p     producer
	topic string
}

var _ notify.Publisher = (*Publisher)(nil)

func NewPublisher(c *Conf) *Publisher {
	return &Publisher{p: c.client, topic: TopicOrderEvents}
}

func (p *Publisher) Publish(ctx context.Context, e notify.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(e.OrderID, 10)),
		Value: data,
		Headers: []kgo.RecordHeader{
			{Key: HeaderKind, Value: []byte(e.Kind)},
			{Key: HeaderEventID, Value: []byte(e.ID)},
		},
	}
	// the record outlives the request that emitted it
	p.p.TryProduce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			slog.ErrorContext(ctx, "failed to produce order event",
				slog.String(logkey.Event, string(e.Kind)),
				slog.Int64(logkey.OrderID, e.OrderID),
				slog.String(logkey.ERROR, err.Error()))
		}
	})
	return nil
}

// Consume polls the topic and hands each event to h until ctx is done or the
// client is closed. A record that fails to decode or deliver is logged and
// skipped.
func (c *Conf) Consume(ctx context.Context, h notify.Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			slog.Error("kafka fetch failed",
				slog.String("topic", topic),
				slog.Int("partition", int(partition)),
				slog.String(logkey.ERROR, err.Error()))
		})
		fetches.EachRecord(func(r *kgo.Record) {
			if err := handleRecord(ctx, h, r); err != nil {
				slog.Error("order event not handled",
					slog.String("topic", r.Topic),
					slog.Int64("offset", r.Offset),
					slog.String(logkey.ERROR, err.Error()))
			}
		})
	}
}

var errUndecodable = errors.New("undecodable event")

func handleRecord(ctx context.Context, h notify.Handler, r *kgo.Record) error {
	var e notify.Event
	if err := json.Unmarshal(r.Value, &e); err != nil {
		return fmt.Errorf("%w: %w", errUndecodable, err)
	}
	return h.Handle(ctx, e)
}
