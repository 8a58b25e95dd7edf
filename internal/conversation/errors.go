package conversation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xaenox/moodlift-bot/internal/mood"
)

var (
	// ErrMissingInput is returned for blank text.
	ErrMissingInput = errors.New("missing input")
	// ErrMalformedRating is returned for a rating outside [1,5] or text that
	// is not a number.
	ErrMalformedRating = errors.New("malformed rating")
	// ErrReplyFailure wraps failures of the chat-reply collaborator.
	ErrReplyFailure = errors.New("reply failure")
	// ErrInputNotAccepted is returned when the current phase does not take
	// this kind of input.
	ErrInputNotAccepted = errors.New("input not accepted in current phase")
	// ErrBusy is returned while a paced message or a reply is pending.
	ErrBusy = errors.New("conversation is busy")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("conversation closed")
	// ErrUnsupportedLanguage is returned for a language without content.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// ParseRating strictly parses an assessment answer.
func ParseRating(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrMalformedRating, trimmed)
	}
	if err := checkRating(n); err != nil {
		return 0, err
	}
	return n, nil
}

func checkRating(n int) error {
	if n < mood.MinAnswer || n > mood.MaxAnswer {
		return fmt.Errorf("%w: %d is outside %d-%d", ErrMalformedRating, n, mood.MinAnswer, mood.MaxAnswer)
	}
	return nil
}
