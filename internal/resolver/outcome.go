package resolver

import (
	"encoding/json"
	"errors"
	"net"
	"net/url"

	"github.com/gometeo/citypage/internal/model"
	"github.com/gometeo/citypage/internal/weather"
)

// Kind tells why the weather lookup failed. It only changes the user message
// and the log text; the fallback result is the same for every kind.
type Kind int

const (
	KindNone Kind = iota
	KindDataShape
	KindNetwork
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return ""
	case KindDataShape:
		return "data_shape"
	case KindNetwork:
		return "network"
	default:
		return "unexpected"
	}
}

// Message is the notice shown to the user.
func (k Kind) Message() string {
	switch k {
	case KindNone:
		return ""
	case KindDataShape:
		return "Entered data is not available to API"
	case KindNetwork:
		return "Network error while contacting Weather API"
	default:
		return "An unexpected error occurred"
	}
}

type Outcome struct {
	Result model.WeatherResult
	Kind   Kind
	// Err is the weather error behind a fallback; nil on success.
	Err error
}

func (o Outcome) Failed() bool { return o.Kind != KindNone }

func (o Outcome) Message() string { return o.Kind.Message() }

// Classify maps a weather lookup error onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	if errors.Is(err, weather.ErrMissingFields) {
		return KindDataShape
	}

	var statusErr *weather.StatusError
	if errors.As(err, &statusErr) {
		// An unknown city is bad input, not a failed exchange, so it
		// reports the data-shape message.
		if statusErr.NotFound() {
			return KindDataShape
		}
		return KindNetwork
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return KindNetwork
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return KindNetwork
	}

	return KindUnexpected
}
