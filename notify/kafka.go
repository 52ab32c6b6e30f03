package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// signalEvent is the record published for each buy or gap signal.
type signalEvent struct {
	Kind       string  `json:"kind"`
	RouteID    string  `json:"route_id"`
	Transport  string  `json:"transport_type"`
	Cabin      string  `json:"cabin"`
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
	Threshold  float64 `json:"threshold"`
	Gap        float64 `json:"gap"`
	Estimated  bool    `json:"estimated"`
	TravelDate string  `json:"travel_date"`
	Carrier    string  `json:"carrier,omitempty"`
	Provider   string  `json:"provider,omitempty"`
	ObservedAt string  `json:"observed_at"`
}

// KafkaNotifier publishes the signals attached to a message as JSON
// records keyed by route id so that every signal of a route lands on the
// same partition.
type KafkaNotifier struct {
	writer messageWriter
}

// NewKafkaNotifier returns nil when no brokers are configured.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	if len(brokers) == 0 {
		return nil
	}
	return &KafkaNotifier{writer: kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		Balancer:    &kafka.Hash{},
		MaxAttempts: 3,
	})}
}

func (n *KafkaNotifier) Name() string { return "kafka" }

func (n *KafkaNotifier) Notify(ctx context.Context, msg Message) error {
	if len(msg.Signals) == 0 {
		return nil
	}
	records := make([]kafka.Message, 0, len(msg.Signals))
	for _, s := range msg.Signals {
		obs := s.Observation
		carrier := obs.Airline
		if carrier == "" {
			carrier = obs.TrainType
		}
		value, err := json.Marshal(signalEvent{
			Kind:       string(s.Kind),
			RouteID:    s.RouteID,
			Transport:  string(s.Transport),
			Cabin:      s.Cabin,
			Price:      s.Price,
			Currency:   obs.Currency,
			Threshold:  s.Threshold,
			Gap:        s.Gap,
			Estimated:  obs.Estimated,
			TravelDate: obs.TravelDate,
			Carrier:    carrier,
			Provider:   obs.Provider,
			ObservedAt: obs.Timestamp.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("kafka: encode signal: %w", err)
		}
		records = append(records, kafka.Message{
			Key:   []byte(s.RouteID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(s.Kind)},
			},
		})
	}
	if err := n.writer.WriteMessages(ctx, records...); err != nil {
		return fmt.Errorf("kafka: publish %d signals: %w", len(records), err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
