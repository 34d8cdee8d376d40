package mapview

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable wraps transport failures talking to the backend.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrMalformed wraps responses that could not be decoded or lack required fields.
	ErrMalformed = errors.New("malformed backend response")
	// ErrNotLoaded is returned by operations that need a rendered snapshot.
	ErrNotLoaded = errors.New("no snapshot loaded")
	// ErrUnknownBot is returned when a bot id is not in the current snapshot.
	ErrUnknownBot = errors.New("unknown bot")
	// ErrUnknownAirport is returned when an airport id is not known.
	ErrUnknownAirport = errors.New("unknown airport")
	// ErrNoSelection is returned when an action needs a selected bot.
	ErrNoSelection = errors.New("no bot selected")
	// ErrOutOfBounds is returned for coordinates outside the grid.
	ErrOutOfBounds = errors.New("coordinate outside map")
)

// ServerError is a failure reported by the backend itself: a non-2xx status
// or a body with success=false. Message is what the server said.
type ServerError struct {
	Status   int
	Endpoint string
	Message  string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

// UserMessage returns the text to surface to a user for err.
func UserMessage(err error) string {
	var se *ServerError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	switch {
	case errors.Is(err, ErrUnavailable):
		return "Backend unavailable"
	case errors.Is(err, ErrMalformed):
		return "Unexpected response from backend"
	}
	return err.Error()
}
