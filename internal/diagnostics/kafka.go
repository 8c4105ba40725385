package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
)

// KafkaSink publishes events as JSON, keyed by city. Record hands the message
// to the async producer without waiting; a full input buffer drops the event.
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewProducerConfig is the producer setup used for diagnostic events.
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	return config
}

// DialKafkaSink connects an async producer to brokers.
func DialKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	producer, err := sarama.NewAsyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	return NewKafkaSink(producer, topic, logger), nil
}

// NewKafkaSink starts draining the producer's error channel. The producer
// must be configured with Return.Errors set.
func NewKafkaSink(producer sarama.AsyncProducer, topic string, logger *slog.Logger) *KafkaSink {
	s := &KafkaSink{
		producer: producer,
		topic:    topic,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go s.drainErrors()
	return s
}

func (s *KafkaSink) drainErrors() {
	defer close(s.done)
	for perr := range s.producer.Errors() {
		s.logger.Warn("Failed to publish diagnostic event",
			"topic", s.topic,
			"error", perr.Err)
	}
}

// Record never blocks and never fails the caller.
func (s *KafkaSink) Record(_ context.Context, ev Event) {
	bytes, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Failed to encode diagnostic event", "error", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(ev.City),
		Value: sarama.ByteEncoder(bytes),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.producer.Input() <- msg:
	default:
		s.logger.Warn("Diagnostic event dropped, producer buffer is full",
			"topic", s.topic,
			"stage", ev.Stage)
	}
}

// Close flushes buffered events and waits for the error drain to finish.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.producer.Close()
	<-s.done
	return err
}
