package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gometeo/citypage/internal/diagnostics"
	"github.com/gometeo/citypage/internal/imagesearch"
	"github.com/gometeo/citypage/internal/model"
	"github.com/gometeo/citypage/internal/weather"
)

var fixedNow = time.Date(2024, 6, 12, 15, 4, 5, 0, time.UTC)

var fixedDay = time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)

type fakeWeather struct {
	cond   weather.Conditions
	err    error
	panics bool
	cities []string
}

func (f *fakeWeather) Current(_ context.Context, city string) (weather.Conditions, error) {
	f.cities = append(f.cities, city)
	if f.panics {
		panic("index out of range")
	}
	return f.cond, f.err
}

type fakeImages struct {
	enabled bool
	link    string
	err     error
	panics  bool
	calls   int
}

func (f *fakeImages) Enabled() bool { return f.enabled }

func (f *fakeImages) Find(context.Context, string) (string, error) {
	f.calls++
	if f.panics {
		panic("bad item")
	}
	return f.link, f.err
}

type recordingSink struct {
	events []diagnostics.Event
}

func (r *recordingSink) Record(_ context.Context, ev diagnostics.Event) {
	r.events = append(r.events, ev)
}

func newResolver(w WeatherFetcher, img ImageFinder, sink diagnostics.Sink) *Resolver {
	return New(Options{
		Weather: w,
		Images:  img,
		Sink:    sink,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:     func() time.Time { return fixedNow },
	})
}

var sunny = weather.Conditions{Description: "few clouds", Icon: "02d", Temperature: 31.2}

func TestResolveSuccess(t *testing.T) {
	w := &fakeWeather{cond: sunny}
	img := &fakeImages{enabled: true, link: "https://img.example/pune.jpg"}
	sink := &recordingSink{}

	out := newResolver(w, img, sink).Resolve(context.Background(), "pune")

	want := model.WeatherResult{
		City:        "pune",
		Description: "few clouds",
		Icon:        "02d",
		Temperature: 31.2,
		Date:        fixedDay,
		ImageURL:    "https://img.example/pune.jpg",
	}
	if diff := cmp.Diff(want, out.Result); diff != "" {
		t.Errorf("Result mismatch (-want +got):\n%s", diff)
	}
	if out.Failed() || out.Err != nil || out.Message() != "" {
		t.Errorf("unexpected failure: kind=%v err=%v", out.Kind, out.Err)
	}
	if len(sink.events) != 0 {
		t.Errorf("unexpected diagnostics: %+v", sink.events)
	}
}

func TestResolveWithoutImageCredentials(t *testing.T) {
	tests := []struct {
		name   string
		images ImageFinder
	}{
		{"nil finder", nil},
		{"disabled finder", &fakeImages{enabled: false, link: "https://never"}},
		{"nil client", (*imagesearch.Client)(nil)},
	}
	weathers := []*fakeWeather{
		{cond: sunny},
		{err: fmt.Errorf("wrapped: %w", weather.ErrMissingFields)},
	}

	for _, tt := range tests {
		for _, w := range weathers {
			out := newResolver(w, tt.images, &recordingSink{}).Resolve(context.Background(), "pune")
			if out.Result.ImageURL != "" {
				t.Errorf("%s: ImageURL = %q, want empty", tt.name, out.Result.ImageURL)
			}
		}
		if f, ok := tt.images.(*fakeImages); ok && f.calls != 0 {
			t.Errorf("%s: disabled finder was called %d times", tt.name, f.calls)
		}
	}
}

func TestResolveFallback(t *testing.T) {
	refused := &url.Error{Op: "Get", URL: "http://weather", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}

	tests := []struct {
		name    string
		weather *fakeWeather
		kind    Kind
		message string
	}{
		{
			name:    "missing fields",
			weather: &fakeWeather{err: fmt.Errorf("%w: main.temp", weather.ErrMissingFields)},
			kind:    KindDataShape,
			message: "Entered data is not available to API",
		},
		{
			name:    "city not found",
			weather: &fakeWeather{err: &weather.StatusError{Code: http.StatusNotFound}},
			kind:    KindDataShape,
			message: "Entered data is not available to API",
		},
		{
			name:    "transport error",
			weather: &fakeWeather{err: fmt.Errorf("failed to execute request: %w", refused)},
			kind:    KindNetwork,
			message: "Network error while contacting Weather API",
		},
		{
			name:    "upstream 503",
			weather: &fakeWeather{err: &weather.StatusError{Code: http.StatusServiceUnavailable}},
			kind:    KindNetwork,
			message: "Network error while contacting Weather API",
		},
		{
			name:    "other error",
			weather: &fakeWeather{err: errors.New("something odd")},
			kind:    KindUnexpected,
			message: "An unexpected error occurred",
		},
		{
			name:    "panic",
			weather: &fakeWeather{panics: true},
			kind:    KindUnexpected,
			message: "An unexpected error occurred",
		},
	}

	want := model.WeatherResult{
		City:          "indore",
		Description:   "clear sky",
		Icon:          "01d",
		Temperature:   25,
		Date:          fixedDay,
		ErrorOccurred: true,
		ImageURL:      "",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := &fakeImages{enabled: true, link: "https://img"}
			sink := &recordingSink{}

			out := newResolver(tt.weather, img, sink).Resolve(context.Background(), "atlantis")

			if diff := cmp.Diff(want, out.Result); diff != "" {
				t.Errorf("Result mismatch (-want +got):\n%s", diff)
			}
			if out.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", out.Kind, tt.kind)
			}
			if out.Message() != tt.message {
				t.Errorf("Message() = %q, want %q", out.Message(), tt.message)
			}
			if out.Err == nil {
				t.Error("Err should be set on fallback")
			}
			if img.calls != 0 {
				t.Errorf("image search called %d times after weather failure", img.calls)
			}
			if len(sink.events) != 1 || sink.events[0].Stage != diagnostics.StageWeather || sink.events[0].City != "atlantis" {
				t.Errorf("diagnostics = %+v", sink.events)
			}
		})
	}
}

func TestResolveImageFailureKeepsWeather(t *testing.T) {
	tests := []struct {
		name   string
		images *fakeImages
	}{
		{"non-200", &fakeImages{enabled: true, err: &imagesearch.StatusError{Code: 500}}},
		{"transport", &fakeImages{enabled: true, err: errors.New("dial tcp: timeout")}},
		{"panic", &fakeImages{enabled: true, panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			out := newResolver(&fakeWeather{cond: sunny}, tt.images, sink).Resolve(context.Background(), "pune")

			if out.Failed() || out.Result.ErrorOccurred {
				t.Fatalf("image failure flipped the outcome: %+v", out)
			}
			if out.Message() != "" {
				t.Errorf("Message() = %q, want empty", out.Message())
			}
			if out.Result.ImageURL != "" {
				t.Errorf("ImageURL = %q, want empty", out.Result.ImageURL)
			}
			if out.Result.Description != sunny.Description || out.Result.City != "pune" {
				t.Errorf("weather fields lost: %+v", out.Result)
			}
			if len(sink.events) != 1 || sink.events[0].Stage != diagnostics.StageImage {
				t.Errorf("diagnostics = %+v", sink.events)
			}
		})
	}
}

func TestResolveDefaultCity(t *testing.T) {
	for _, city := range []string{"", "   "} {
		w := &fakeWeather{cond: sunny}
		out := newResolver(w, nil, &recordingSink{}).Resolve(context.Background(), city)

		if out.Result.City != "indore" {
			t.Errorf("City = %q, want indore", out.Result.City)
		}
		if len(w.cities) != 1 || w.cities[0] != "indore" {
			t.Errorf("weather asked for %v", w.cities)
		}
	}
}

func TestResolveConfiguredDefaultCity(t *testing.T) {
	r := New(Options{
		Weather:     &fakeWeather{err: weather.ErrMissingFields},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		DefaultCity: "bhopal",
	})
	if got := r.Resolve(context.Background(), "nowhere").Result.City; got != "bhopal" {
		t.Errorf("fallback City = %q, want bhopal", got)
	}
}

func TestResolveNoWeatherClient(t *testing.T) {
	out := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}).Resolve(context.Background(), "x")
	if out.Kind != KindUnexpected || !out.Result.ErrorOccurred {
		t.Errorf("outcome = %+v", out)
	}
}

// End to end over real HTTP clients pointed at test servers.
func TestResolveOverHTTP(t *testing.T) {
	owm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "atlantis" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"cod":"404","message":"city not found"}`))
			return
		}
		w.Write([]byte(`{"weather":[{"description":"mist","icon":"50n"}],"main":{"temp":12}}`))
	}))
	defer owm.Close()

	cse := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"link":"https://a"},{"url":"https://b"}]}`))
	}))
	defer cse.Close()

	r := newResolver(
		weather.NewClient("k", owm.URL, 5*time.Second),
		imagesearch.NewClient("g", "cx", cse.URL, 5*time.Second),
		&recordingSink{},
	)

	out := r.Resolve(context.Background(), "oslo")
	if out.Failed() || out.Result.Description != "mist" || out.Result.ImageURL != "https://b" {
		t.Errorf("oslo outcome = %+v", out)
	}

	out = r.Resolve(context.Background(), "atlantis")
	if out.Kind != KindDataShape || out.Result.City != "indore" {
		t.Errorf("atlantis outcome = %+v", out)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{weather.ErrMissingFields, KindDataShape},
		{&weather.StatusError{Code: 404}, KindDataShape},
		{&weather.StatusError{Code: 401}, KindNetwork},
		{&url.Error{Op: "Get", URL: "x", Err: errors.New("eof")}, KindNetwork},
		{context.DeadlineExceeded, KindNetwork},
		{errors.New("x"), KindUnexpected},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
