package propagate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
)

// producer is the subset of *kgo.Client used here.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Kafka publishes payloads to a Kafka-compatible topic, keyed by page name
// so a page's runs stay ordered within a partition.
type Kafka struct {
	client producer
	topic  string
	mu     sync.RWMutex
	closed bool
}

// NewKafka connects a producer to brokers.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

// Propagate implements Propagator.
func (k *Kafka) Propagate(ctx context.Context, p Payload) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return fmt.Errorf("kafka propagator is closed")
	}

	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(p.PageName),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "validation_id", Value: []byte(p.ValidationID)},
			{Key: "status", Value: []byte(p.Status)},
		},
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// Close implements Propagator.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.closed {
		k.closed = true
		k.client.Close()
	}
	return nil
}
