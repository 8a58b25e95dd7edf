package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/content"
	"github.com/xaenox/moodlift-bot/internal/conversation"
	"github.com/xaenox/moodlift-bot/internal/models"
	"github.com/xaenox/moodlift-bot/internal/schedule"
	"github.com/xaenox/moodlift-bot/internal/transcribe"
)

type fakeTranscriber struct {
	mu   sync.Mutex
	text string
	err  error
	got  []transcribe.Clip
}

func (f *fakeTranscriber) Transcribe(_ context.Context, clip transcribe.Clip) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, clip)
	return f.text, f.err
}

func (f *fakeTranscriber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

// fakeStream reads a fixed clip and counts Stop calls.
type fakeStream struct {
	io.Reader
	stops atomic.Int32
	name  string
}

func (s *fakeStream) Stop() error {
	s.stops.Add(1)
	return nil
}

func (s *fakeStream) Filename() string { return s.name }

type fakeCapture struct {
	stream *fakeStream
	err    error
}

func (c *fakeCapture) Start(context.Context) (Stream, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

func clipCapture(audio string) *fakeCapture {
	return &fakeCapture{stream: &fakeStream{Reader: bytes.NewBufferString(audio)}}
}

// pipeStream stays open until Stop, like a microphone.
type pipeStream struct {
	r     *io.PipeReader
	w     *io.PipeWriter
	stops atomic.Int32
}

func newPipeStream() *pipeStream {
	r, w := io.Pipe()
	return &pipeStream{r: r, w: w}
}

func (s *pipeStream) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *pipeStream) Stop() error {
	s.stops.Add(1)
	return s.w.Close()
}

type pipeCapture struct{ stream *pipeStream }

func (c pipeCapture) Start(context.Context) (Stream, error) { return c.stream, nil }

func TestRecordTranscribes(t *testing.T) {
	fake := &fakeTranscriber{text: "I feel calm"}
	rec := NewRecorder(fake, 0, zap.NewNop())
	capture := clipCapture("ogg-bytes")
	capture.stream.name = "note.oga"

	text, err := rec.Record(context.Background(), capture, models.Hindi)
	require.NoError(t, err)
	assert.Equal(t, "I feel calm", text)

	require.Len(t, fake.got, 1)
	assert.Equal(t, []byte("ogg-bytes"), fake.got[0].Audio)
	assert.Equal(t, "note.oga", fake.got[0].Filename)
	assert.Equal(t, models.Hindi, fake.got[0].Language)
	assert.Equal(t, int32(1), capture.stream.stops.Load())
	assert.False(t, rec.Recording())
}

func TestRecordDefaultFilename(t *testing.T) {
	fake := &fakeTranscriber{text: "ok"}
	rec := NewRecorder(fake, 0, nil)

	_, err := rec.Record(context.Background(), clipCapture("x"), models.English)
	require.NoError(t, err)
	assert.Equal(t, transcribe.DefaultFilename, fake.got[0].Filename)
}

func TestRecordEmptyClip(t *testing.T) {
	fake := &fakeTranscriber{text: "unused"}
	rec := NewRecorder(fake, 0, zap.NewNop())
	capture := clipCapture("")

	_, err := rec.Record(context.Background(), capture, models.English)
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.Zero(t, fake.calls())
	assert.Equal(t, int32(1), capture.stream.stops.Load())
}

func TestRecordNoSpeech(t *testing.T) {
	fake := &fakeTranscriber{err: transcribe.ErrNoSpeech}
	rec := NewRecorder(fake, 0, zap.NewNop())

	_, err := rec.Record(context.Background(), clipCapture("hiss"), models.English)
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.ErrorIs(t, err, transcribe.ErrNoSpeech)
}

func TestRecordTranscriptionFailure(t *testing.T) {
	cause := errors.New("model offline")
	fake := &fakeTranscriber{err: cause}
	rec := NewRecorder(fake, 0, zap.NewNop())
	capture := clipCapture("audio")

	_, err := rec.Record(context.Background(), capture, models.English)
	assert.ErrorIs(t, err, ErrTranscriptionFailure)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, int32(1), capture.stream.stops.Load())
	assert.False(t, rec.Recording())
}

func TestRecordCaptureFailure(t *testing.T) {
	rec := NewRecorder(&fakeTranscriber{}, 0, zap.NewNop())

	_, err := rec.Record(context.Background(), &fakeCapture{err: errors.New("no device")}, models.English)
	assert.ErrorIs(t, err, ErrCapture)
	assert.False(t, rec.Recording())
}

func TestRecordTruncatesAtMaxBytes(t *testing.T) {
	fake := &fakeTranscriber{text: "ok"}
	rec := NewRecorder(fake, 4, zap.NewNop())

	_, err := rec.Record(context.Background(), clipCapture("abcdefgh"), models.English)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), fake.got[0].Audio)
}

func TestStartStopLiveStream(t *testing.T) {
	fake := &fakeTranscriber{text: "hello"}
	rec := NewRecorder(fake, 0, zap.NewNop())
	stream := newPipeStream()

	require.NoError(t, rec.Start(context.Background(), pipeCapture{stream}))
	assert.True(t, rec.Recording())
	assert.ErrorIs(t, rec.Start(context.Background(), pipeCapture{stream}), ErrAlreadyRecording)

	_, err := stream.w.Write([]byte("pcm"))
	require.NoError(t, err)

	text, err := rec.Stop(context.Background(), models.English)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, []byte("pcm"), fake.got[0].Audio)
	assert.Equal(t, int32(1), stream.stops.Load())

	_, err = rec.Stop(context.Background(), models.English)
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestAbortDiscards(t *testing.T) {
	fake := &fakeTranscriber{text: "unused"}
	rec := NewRecorder(fake, 0, zap.NewNop())
	stream := newPipeStream()

	require.NoError(t, rec.Start(context.Background(), pipeCapture{stream}))
	rec.Abort()

	assert.False(t, rec.Recording())
	assert.Zero(t, fake.calls())
	assert.Equal(t, int32(1), stream.stops.Load())

	rec.Abort()
	assert.Equal(t, int32(1), stream.stops.Load())
}

func newMachine(t *testing.T) (*conversation.Machine, *schedule.Manual) {
	t.Helper()
	table, err := content.Load()
	require.NoError(t, err)

	clock := schedule.NewManual()
	m, err := conversation.New(table, nil, nil, nil, conversation.DefaultConfig(),
		conversation.WithScheduler(clock),
		conversation.WithSpawn(func(fn func()) { fn() }))
	require.NoError(t, err)
	t.Cleanup(m.Close)

	require.NoError(t, m.Begin())
	clock.Advance(800 * time.Millisecond)
	return m, clock
}

func TestDictateSubmitsVoiceInput(t *testing.T) {
	m, _ := newMachine(t)
	rec := NewRecorder(&fakeTranscriber{text: " 4 "}, 0, zap.NewNop())

	text, err := rec.Dictate(context.Background(), clipCapture("audio"), models.English, m)
	require.NoError(t, err)
	assert.Equal(t, " 4 ", text)

	state := m.Snapshot()
	assert.Equal(t, []int{4}, state.Assessment.Answers)
	last := state.Messages[len(state.Messages)-1]
	assert.Equal(t, models.RoleUser, last.Role)
	assert.Equal(t, models.OriginVoice, last.Origin)
}

func TestDictateFailureLeavesConversationUnchanged(t *testing.T) {
	m, _ := newMachine(t)
	before := m.Snapshot()

	rec := NewRecorder(&fakeTranscriber{err: errors.New("offline")}, 0, zap.NewNop())
	_, err := rec.Dictate(context.Background(), clipCapture("audio"), models.English, m)
	require.ErrorIs(t, err, ErrTranscriptionFailure)

	assert.Equal(t, before, m.Snapshot())
}

func TestDownloadCapture(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file/voice.oga" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("OggS"))
	}))
	t.Cleanup(server.Close)

	fake := &fakeTranscriber{text: "namaste"}
	rec := NewRecorder(fake, 0, zap.NewNop())

	text, err := rec.Record(context.Background(), DownloadCapture{
		URL:      server.URL + "/file/voice.oga",
		Filename: "voice.oga",
		Client:   server.Client(),
	}, models.Hindi)
	require.NoError(t, err)
	assert.Equal(t, "namaste", text)
	assert.Equal(t, []byte("OggS"), fake.got[0].Audio)
	assert.Equal(t, "voice.oga", fake.got[0].Filename)

	_, err = rec.Record(context.Background(), DownloadCapture{URL: server.URL + "/missing"}, models.Hindi)
	assert.ErrorIs(t, err, ErrCapture)
}
