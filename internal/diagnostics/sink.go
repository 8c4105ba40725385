// Package diagnostics carries failure events out of the resolver: always to
// the operational log, optionally to a Kafka topic.
package diagnostics

import (
	"context"
	"log/slog"
	"time"
)

const (
	StageWeather = "weather"
	StageImage   = "image"
)

// Event is one failure seen while resolving a city page.
type Event struct {
	Stage string    `json:"stage"`
	Kind  string    `json:"kind"`
	City  string    `json:"city"`
	Error string    `json:"error"`
	Time  time.Time `json:"time"`
}

type Sink interface {
	Record(ctx context.Context, ev Event)
}

// LogSink writes events to slog. Weather failures are errors, image failures
// are warnings.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, ev Event) {
	level := slog.LevelError
	msg := "Weather lookup failed"
	if ev.Stage == StageImage {
		level = slog.LevelWarn
		msg = "Image search failed"
	}
	s.logger.Log(ctx, level, msg,
		"stage", ev.Stage,
		"kind", ev.Kind,
		"city", ev.City,
		"error", ev.Error)
}

type multiSink []Sink

// Multi fans an event out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) Record(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Record(ctx, ev)
	}
}
