package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"

	"github.com/gometeo/citypage/internal/config"
	"github.com/gometeo/citypage/internal/diagnostics"
)

// Tails the diagnostics topic and writes every event to the log, so failures
// from all page servers can be followed in one place.
func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger.Info("Starting diagnostics tail...")

	cfg := config.Load()
	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS is empty")
		os.Exit(1)
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumer, err := sarama.NewConsumerGroup(cfg.KafkaBrokers, cfg.DiagnosticsGroup, saramaCfg)
	if err != nil {
		logger.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		handler := &consumerHandler{sink: diagnostics.NewLogSink(logger), logger: logger}
		for {
			if err := consumer.Consume(ctx, []string{cfg.DiagnosticsTopic}, handler); err != nil {
				logger.Error("Error while reading Kafka", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range consumer.Errors() {
			logger.Error("Consumer error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Stopping...")
	cancel()
	wg.Wait()
	if err := consumer.Close(); err != nil {
		logger.Error("Failed to close consumer", "error", err)
	}
}

type consumerHandler struct {
	sink   diagnostics.Sink
	logger *slog.Logger
}

func (h *consumerHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var ev diagnostics.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			h.logger.Error("Malformed diagnostic event", "offset", msg.Offset, "error", err)
			sess.MarkMessage(msg, "")
			continue
		}

		h.sink.Record(sess.Context(), ev)
		sess.MarkMessage(msg, "")
	}
	return nil
}
