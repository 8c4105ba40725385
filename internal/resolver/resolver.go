// Package resolver decides what a city page shows. It performs the weather
// lookup and the optional image search in sequence and always returns a fully
// populated result: either the real data or the fixed fallback.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gometeo/citypage/internal/diagnostics"
	"github.com/gometeo/citypage/internal/model"
	"github.com/gometeo/citypage/internal/weather"
)

const tracerName = "github.com/gometeo/citypage/internal/resolver"

// DefaultCity is used when no city is given and on every fallback.
const DefaultCity = "indore"

type WeatherFetcher interface {
	Current(ctx context.Context, city string) (weather.Conditions, error)
}

type ImageFinder interface {
	Enabled() bool
	Find(ctx context.Context, city string) (string, error)
}

type Options struct {
	Weather WeatherFetcher
	// Images may be nil; a disabled finder is never called.
	Images ImageFinder
	Sink   diagnostics.Sink
	Logger *slog.Logger
	// DefaultCity replaces a blank request city. Defaults to DefaultCity.
	DefaultCity string
	Now         func() time.Time
}

type Resolver struct {
	weather     WeatherFetcher
	images      ImageFinder
	sink        diagnostics.Sink
	logger      *slog.Logger
	defaultCity string
	now         func() time.Time
	tracer      trace.Tracer
}

func New(opts Options) *Resolver {
	r := &Resolver{
		weather:     opts.Weather,
		images:      opts.Images,
		sink:        opts.Sink,
		logger:      opts.Logger,
		defaultCity: opts.DefaultCity,
		now:         opts.Now,
		tracer:      otel.Tracer(tracerName),
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.sink == nil {
		r.sink = diagnostics.NewLogSink(r.logger)
	}
	if r.defaultCity == "" {
		r.defaultCity = DefaultCity
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Fallback is the fixed result shown whenever the weather lookup fails. city is
// the default city, never the one that failed.
func Fallback(city string, day time.Time) model.WeatherResult {
	return model.WeatherResult{
		City:          city,
		Description:   "clear sky",
		Icon:          "01d",
		Temperature:   25,
		Date:          day,
		ErrorOccurred: true,
		ImageURL:      "",
	}
}

// Resolve never fails: weather errors become the fallback result with Kind
// and Err set, image errors become an empty ImageURL.
func (r *Resolver) Resolve(ctx context.Context, city string) Outcome {
	city = strings.TrimSpace(city)
	if city == "" {
		city = r.defaultCity
	}
	day := today(r.now())

	ctx, span := r.tracer.Start(ctx, "resolver.resolve",
		trace.WithAttributes(attribute.String("resolver.city", city)))
	defer span.End()

	cond, err := r.fetchWeather(ctx, city)
	if err != nil {
		kind := Classify(err)
		span.SetAttributes(attribute.String("resolver.error_kind", kind.String()))
		r.sink.Record(ctx, diagnostics.Event{
			Stage: diagnostics.StageWeather,
			Kind:  kind.String(),
			City:  city,
			Error: err.Error(),
			Time:  r.now(),
		})
		return Outcome{Result: Fallback(r.defaultCity, day), Kind: kind, Err: err}
	}

	imageURL := r.findImage(ctx, city)
	span.SetAttributes(attribute.Bool("resolver.image", imageURL != ""))
	r.logger.Debug("City page resolved", "city", city, "image", imageURL != "")

	return Outcome{
		Result: model.WeatherResult{
			City:          city,
			Description:   cond.Description,
			Icon:          cond.Icon,
			Temperature:   cond.Temperature,
			Date:          day,
			ErrorOccurred: false,
			ImageURL:      imageURL,
		},
		Kind: KindNone,
	}
}

func (r *Resolver) fetchWeather(ctx context.Context, city string) (cond weather.Conditions, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p}
		}
	}()
	if r.weather == nil {
		return weather.Conditions{}, errors.New("no weather client configured")
	}
	return r.weather.Current(ctx, city)
}

func (r *Resolver) findImage(ctx context.Context, city string) (link string) {
	if r.images == nil || !r.images.Enabled() {
		return ""
	}
	defer func() {
		if p := recover(); p != nil {
			r.recordImageFailure(ctx, city, &panicError{value: p})
			link = ""
		}
	}()

	link, err := r.images.Find(ctx, city)
	if err != nil {
		r.recordImageFailure(ctx, city, err)
		return ""
	}
	return link
}

func (r *Resolver) recordImageFailure(ctx context.Context, city string, err error) {
	r.sink.Record(ctx, diagnostics.Event{
		Stage: diagnostics.StageImage,
		Kind:  "image_fetch",
		City:  city,
		Error: err.Error(),
		Time:  r.now(),
	})
}

func today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
