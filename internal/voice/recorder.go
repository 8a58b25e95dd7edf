// Package voice captures spoken input and hands it to a transcriber.
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/models"
	"github.com/xaenox/moodlift-bot/internal/transcribe"
)

var (
	// ErrMissingInput means the recording held no audio or no speech.
	ErrMissingInput = errors.New("missing voice input")
	// ErrTranscriptionFailure wraps transcriber errors.
	ErrTranscriptionFailure = errors.New("transcription failure")
	// ErrCapture means the audio source could not be opened or read.
	ErrCapture          = errors.New("audio capture failed")
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

// Stream is a live capture. Stop releases the underlying device or
// connection and must be safe to call more than once.
type Stream interface {
	io.Reader
	Stop() error
}

// Capture opens audio streams.
type Capture interface {
	Start(ctx context.Context) (Stream, error)
}

// Named is implemented by streams that know their container file name.
type Named interface {
	Filename() string
}

// Sink receives transcribed text.
type Sink interface {
	SubmitInput(ctx context.Context, text string, origin models.Origin) error
}

const chunkSize = 4096

// Recorder runs at most one capture at a time.
type Recorder struct {
	transcriber transcribe.Transcriber
	maxBytes    int
	logger      *zap.Logger

	mu     sync.Mutex
	active *session
}

type session struct {
	stream   Stream
	buf      bytes.Buffer
	done     chan struct{}
	readErr  error
	stopOnce sync.Once
	stopErr  error
}

// NewRecorder returns a recorder. Audio beyond maxBytes is dropped; zero
// means no limit.
func NewRecorder(t transcribe.Transcriber, maxBytes int, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{transcriber: t, maxBytes: maxBytes, logger: logger}
}

// Start opens the capture and buffers audio until Stop or Abort.
func (r *Recorder) Start(ctx context.Context, capture Capture) error {
	_, err := r.start(ctx, capture)
	return err
}

// Recording reports whether a capture is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Stop releases the stream, waits for buffered audio and transcribes it in
// lang. The stream is released even when transcription fails.
func (r *Recorder) Stop(ctx context.Context, lang models.Language) (string, error) {
	s, err := r.take()
	if err != nil {
		return "", err
	}
	if err := s.release(); err != nil {
		r.logger.Warn("Failed to release audio stream", zap.Error(err))
	}
	return r.finish(ctx, s, lang)
}

// Abort releases the stream and discards the recording.
func (r *Recorder) Abort() {
	s, err := r.take()
	if err != nil {
		return
	}
	if err := s.release(); err != nil {
		r.logger.Warn("Failed to release audio stream", zap.Error(err))
	}
	<-s.done
}

// Record captures a finite clip until the stream ends, then transcribes
// it.
func (r *Recorder) Record(ctx context.Context, capture Capture, lang models.Language) (string, error) {
	s, err := r.start(ctx, capture)
	if err != nil {
		return "", err
	}

	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return r.Stop(ctx, lang)
}

// Dictate records a clip and submits the transcription as voice input.
// Nothing reaches sink when recording or transcription fails.
func (r *Recorder) Dictate(ctx context.Context, capture Capture, lang models.Language, sink Sink) (string, error) {
	text, err := r.Record(ctx, capture, lang)
	if err != nil {
		return "", err
	}
	return text, sink.SubmitInput(ctx, text, models.OriginVoice)
}

func (r *Recorder) start(ctx context.Context, capture Capture) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, ErrAlreadyRecording
	}

	stream, err := capture.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	s := &session{stream: stream, done: make(chan struct{})}
	r.active = s
	go r.pump(s)
	return s, nil
}

func (r *Recorder) take() (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.active
	if s == nil {
		return nil, ErrNotRecording
	}
	r.active = nil
	return s, nil
}

func (r *Recorder) finish(ctx context.Context, s *session, lang models.Language) (string, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if s.readErr != nil {
		r.logger.Error("Recording error", zap.Error(s.readErr))
		return "", fmt.Errorf("%w: %w", ErrCapture, s.readErr)
	}
	if s.buf.Len() == 0 {
		return "", ErrMissingInput
	}

	clip := transcribe.Clip{
		Audio:    s.buf.Bytes(),
		Filename: transcribe.DefaultFilename,
		Language: lang,
	}
	if named, ok := s.stream.(Named); ok && named.Filename() != "" {
		clip.Filename = named.Filename()
	}

	text, err := r.transcriber.Transcribe(ctx, clip)
	if errors.Is(err, transcribe.ErrNoSpeech) {
		return "", fmt.Errorf("%w: %w", ErrMissingInput, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscriptionFailure, err)
	}
	return text, nil
}

// pump copies the stream into the session buffer until EOF or a read
// error.
func (r *Recorder) pump(s *session) {
	defer close(s.done)

	buf := make([]byte, chunkSize)
	for {
		n, err := s.stream.Read(buf)
		if n > 0 {
			room := n
			if r.maxBytes > 0 && s.buf.Len()+n > r.maxBytes {
				room = r.maxBytes - s.buf.Len()
			}
			if room > 0 {
				s.buf.Write(buf[:room])
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				s.readErr = err
			}
			return
		}
	}
}

func (s *session) release() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stream.Stop()
	})
	return s.stopErr
}
