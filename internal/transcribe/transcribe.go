// Package transcribe turns recorded voice clips into text.
package transcribe

import (
	"context"
	"errors"

	"github.com/xaenox/moodlift-bot/internal/models"
)

// Clip is one finished recording.
type Clip struct {
	Audio []byte
	// Filename carries the container extension, for example voice.ogg.
	Filename string
	Language models.Language
}

// Transcriber converts a clip to text in the clip's language.
type Transcriber interface {
	Transcribe(ctx context.Context, clip Clip) (string, error)
}

var (
	ErrNoSpeech      = errors.New("no speech recognized")
	ErrEmptyClip     = errors.New("empty audio clip")
	ErrRemoteFailure = errors.New("transcription service failed")
)

// DefaultFilename is used when a clip has no name.
const DefaultFilename = "voice.ogg"
