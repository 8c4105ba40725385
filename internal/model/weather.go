package model

import "time"

// WeatherResult is everything the page needs for one city. It is always fully
// populated: on failure it carries the fallback values.
type WeatherResult struct {
	City          string    `json:"city"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	Temperature   float64   `json:"temperature"`
	Date          time.Time `json:"date"`
	ErrorOccurred bool      `json:"error_occurred"`
	ImageURL      string    `json:"image_url"`
}

// WeatherResponse is the JSON body of /api/v1/weather/{city}.
type WeatherResponse struct {
	Result    WeatherResult `json:"result"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Message   string        `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
