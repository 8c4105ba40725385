package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gometeo/citypage/internal/model"
	"github.com/gometeo/citypage/internal/resolver"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Resolver is the part of resolver.Resolver the handlers need.
type Resolver interface {
	Resolve(ctx context.Context, city string) resolver.Outcome
}

// Status describes optional collaborators for the health check.
type Status struct {
	ImageSearch bool
	Kafka       bool
}

type WeatherHandler struct {
	resolver Resolver
	status   Status
	logger   *slog.Logger
}

func NewWeatherHandler(r Resolver, status Status, logger *slog.Logger) *WeatherHandler {
	return &WeatherHandler{
		resolver: r,
		status:   status,
		logger:   logger,
	}
}

type pageView struct {
	model.WeatherResult
	Day     string
	Message string
}

// Page renders the city page. The city comes from the "city" form field of a
// POST; a GET shows the default city.
func (h *WeatherHandler) Page(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var city string
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			h.logger.Warn("Invalid form", "error", err)
		}
		city = r.PostForm.Get("city")
	}

	out := h.resolver.Resolve(r.Context(), city)

	view := pageView{
		WeatherResult: out.Result,
		Day:           out.Result.Date.Format("January 2, 2006"),
		Message:       out.Message(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := pageTemplate.Execute(w, view); err != nil {
		h.logger.Error("Failed to render page", "city", out.Result.City, "error", err)
		return
	}

	h.logger.Info("Page rendered",
		"city", out.Result.City,
		"fallback", out.Result.ErrorOccurred,
		"error_kind", out.Kind.String(),
		"duration_ms", time.Since(start).Milliseconds())
}

// GetWeather returns the same result as the page, as JSON.
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city := mux.Vars(r)["city"]

	out := h.resolver.Resolve(r.Context(), city)

	sendJSON(w, http.StatusOK, model.WeatherResponse{
		Result:    out.Result,
		ErrorKind: out.Kind.String(),
		Message:   out.Message(),
	})
}

// HealthCheck reports which optional collaborators are wired.
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{
		"status":       "ok",
		"time":         time.Now().Format(time.RFC3339),
		"image_search": "disabled",
		"diagnostics":  "log",
	}
	if h.status.ImageSearch {
		health["image_search"] = "enabled"
	}
	if h.status.Kafka {
		health["diagnostics"] = "kafka"
	}

	sendJSON(w, http.StatusOK, health)
}

// NotAllowed is the router's MethodNotAllowedHandler.
func NotAllowed(w http.ResponseWriter, r *http.Request) {
	sendError(w, http.StatusMethodNotAllowed, "Method not allowed", r.Method)
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, status int, errorMsg, details string) {
	response := model.ErrorResponse{
		Error:   errorMsg,
		Message: details,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
