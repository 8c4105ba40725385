package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/gometeo/citypage/internal/api/handlers"
	"github.com/gometeo/citypage/internal/config"
	"github.com/gometeo/citypage/internal/diagnostics"
	"github.com/gometeo/citypage/internal/imagesearch"
	"github.com/gometeo/citypage/internal/resolver"
	"github.com/gometeo/citypage/internal/telemetry"
	"github.com/gometeo/citypage/internal/weather"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := setupLogger(cfg)
	if envErr != nil {
		logger.Debug(".env not loaded", "error", envErr)
	}
	logger.Info("Starting city weather page...")
	logger.Info("Configuration loaded",
		"port", cfg.HTTPPort,
		"default_city", cfg.DefaultCity,
		"upstream_timeout", cfg.UpstreamTimeout,
		"image_search", cfg.ImageSearchEnabled(),
		"kafka_brokers", cfg.KafkaBrokers)

	if cfg.WeatherAPIKey == "" {
		logger.Warn("OPENWEATHER_API_KEY is empty, every lookup will fall back")
	}

	// 1. Tracing, when an OTLP endpoint is configured.
	tp, err := telemetry.Setup(context.Background(), cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Error("Tracing disabled", "error", err)
	} else if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Failed to flush traces", "error", err)
			}
		}()
		logger.Info("Tracing enabled", "endpoint", cfg.OTLPEndpoint, "service", cfg.ServiceName)
	}

	// 2. Diagnostics: slog always, Kafka when brokers are configured.
	sinks := []diagnostics.Sink{diagnostics.NewLogSink(logger)}
	var kafkaSink *diagnostics.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err = diagnostics.DialKafkaSink(cfg.KafkaBrokers, cfg.DiagnosticsTopic, logger)
		if err != nil {
			logger.Error("Kafka unavailable, diagnostics go to the log only", "error", err)
		} else {
			defer func() {
				if err := kafkaSink.Close(); err != nil {
					logger.Error("Failed to close Kafka producer", "error", err)
				}
			}()
			sinks = append(sinks, kafkaSink)
			logger.Info("Diagnostics published to Kafka", "topic", cfg.DiagnosticsTopic)
		}
	}

	// 3. Upstream clients and the resolver.
	res := resolver.New(resolver.Options{
		Weather:     weather.NewClient(cfg.WeatherAPIKey, cfg.WeatherURL, cfg.UpstreamTimeout),
		Images:      imagesearch.NewClient(cfg.GoogleAPIKey, cfg.SearchEngineID, cfg.ImageSearchURL, cfg.UpstreamTimeout),
		Sink:        diagnostics.Multi(sinks...),
		Logger:      logger,
		DefaultCity: cfg.DefaultCity,
	})

	// 4. Routes
	router := mux.NewRouter()
	weatherHandler := handlers.NewWeatherHandler(res, handlers.Status{
		ImageSearch: cfg.ImageSearchEnabled(),
		Kafka:       kafkaSink != nil,
	}, logger)

	router.HandleFunc("/", weatherHandler.Page).Methods(http.MethodGet, http.MethodPost)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/weather/{city}", weatherHandler.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/health", weatherHandler.HealthCheck).Methods(http.MethodGet)

	router.MethodNotAllowedHandler = http.HandlerFunc(handlers.NotAllowed)
	router.Use(loggingMiddleware(logger))

	// Upstream calls take up to two timeouts per request.
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Graceful shutdown
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stopChan
	logger.Info("Shutdown signal received...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Error while stopping server", "error", err)
	} else {
		logger.Info("Server stopped")
	}
}

func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)

	if cfg.Env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, status: 200}

			next.ServeHTTP(rw, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", r.UserAgent(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// responseWriter records the status code for the request log.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
