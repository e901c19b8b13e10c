// Package kafkaauthority publishes audit work items to a Kafka topic as
// JSON documents keyed by audit ID or logon ID.
package kafkaauthority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/goRefMon/audit"
	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic is used when Config.Topic is empty.
const DefaultTopic = "refmon.audit"

// Producer is the subset of *kgo.Client used for delivery.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Config configures an Authority.
type Config struct {
	Topic string
}

// Authority is an audit.Authority that produces one record per work item.
type Authority struct {
	producer Producer
	topic    string
}

func New(producer Producer, cfg Config) *Authority {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return &Authority{producer: producer, topic: cfg.Topic}
}

// NewClient builds a franz-go client for the given seed brokers that
// produces to topic by default.
func NewClient(seeds []string, topic string, opts ...kgo.Opt) (*kgo.Client, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(seeds...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	return kgo.NewClient(append(base, opts...)...)
}

func (a *Authority) Deliver(ctx context.Context, item *audit.WorkItem) error {
	doc, err := audit.NewDocument(item)
	if err != nil {
		return err
	}
	value, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	key := doc.LogonID
	if item.Tag == audit.TagAuditRecord {
		key = strconv.Itoa(int(doc.AuditID))
	}
	rec := &kgo.Record{
		Topic: a.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "tag", Value: []byte(doc.Tag)},
			{Key: "id", Value: []byte(doc.ID)},
		},
	}

	if err := a.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		if errors.Is(err, kgo.ErrClientClosed) {
			return fmt.Errorf("%w: %v", audit.ErrAuthorityGone, err)
		}
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}
