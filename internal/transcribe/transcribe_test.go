package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/models"
)

type fakeTranscriber struct {
	text string
	err  error
	got  []Clip
}

func (f *fakeTranscriber) Transcribe(_ context.Context, clip Clip) (string, error) {
	f.got = append(f.got, clip)
	return f.text, f.err
}

func multipartRequest(t *testing.T, audio []byte, lang string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if audio != nil {
		part, err := mw.CreateFormFile("audio", "clip.webm")
		require.NoError(t, err)
		_, err = part.Write(audio)
		require.NoError(t, err)
	}
	if lang != "" {
		require.NoError(t, mw.WriteField("language", lang))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, Path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, body io.Reader) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestHandlerTranscribes(t *testing.T) {
	fake := &fakeTranscriber{text: "I feel better"}
	srv := NewServer(NewHandler(fake, 1<<20, zap.NewNop()))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, multipartRequest(t, []byte("opus-bytes"), "hi"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"transcription": "I feel better"}, decode(t, w.Body))
	require.Len(t, fake.got, 1)
	assert.Equal(t, []byte("opus-bytes"), fake.got[0].Audio)
	assert.Equal(t, "clip.webm", fake.got[0].Filename)
	assert.Equal(t, models.Hindi, fake.got[0].Language)
}

func TestHandlerDefaultsToEnglish(t *testing.T) {
	fake := &fakeTranscriber{text: "ok"}
	srv := NewServer(NewHandler(fake, 0, zap.NewNop()))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, multipartRequest(t, []byte("x"), ""))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.English, fake.got[0].Language)
}

func TestHandlerMissingAudio(t *testing.T) {
	fake := &fakeTranscriber{text: "unused"}
	srv := NewServer(NewHandler(fake, 1<<20, zap.NewNop()))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, multipartRequest(t, nil, "en"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]string{"error": "No audio file provided"}, decode(t, w.Body))
	assert.Empty(t, fake.got)
}

func TestHandlerTranscriptionFailure(t *testing.T) {
	fake := &fakeTranscriber{err: errors.New("model offline")}
	srv := NewServer(NewHandler(fake, 1<<20, zap.NewNop()))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, multipartRequest(t, []byte("x"), "en"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]string{"error": "Failed to transcribe audio"}, decode(t, w.Body))
}

func TestHandlerRejectsGet(t *testing.T) {
	srv := NewServer(NewHandler(&fakeTranscriber{}, 0, zap.NewNop()))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, Path, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientRoundTrip(t *testing.T) {
	fake := &fakeTranscriber{text: "  namaste  "}
	server := httptest.NewServer(NewServer(NewHandler(fake, 1<<20, zap.NewNop())))
	t.Cleanup(server.Close)

	client := NewClient(server.URL+Path, server.Client())
	text, err := client.Transcribe(context.Background(), Clip{Audio: []byte("ogg"), Language: models.Hindi})
	require.NoError(t, err)
	assert.Equal(t, "namaste", text)
	require.Len(t, fake.got, 1)
	assert.Equal(t, DefaultFilename, fake.got[0].Filename)
	assert.Equal(t, models.Hindi, fake.got[0].Language)
}

func TestClientServerFailure(t *testing.T) {
	fake := &fakeTranscriber{err: errors.New("boom")}
	server := httptest.NewServer(NewServer(NewHandler(fake, 1<<20, zap.NewNop())))
	t.Cleanup(server.Close)

	client := NewClient(server.URL+Path, server.Client())
	_, err := client.Transcribe(context.Background(), Clip{Audio: []byte("ogg"), Language: models.English})
	require.ErrorIs(t, err, ErrRemoteFailure)
	assert.Contains(t, err.Error(), "Failed to transcribe audio")
}

func TestClientEmptyTranscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"transcription": " "})
	}))
	t.Cleanup(server.Close)

	_, err := NewClient(server.URL, nil).Transcribe(context.Background(), Clip{Audio: []byte("x")})
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestClientEmptyClip(t *testing.T) {
	_, err := NewClient("http://unused.invalid", nil).Transcribe(context.Background(), Clip{})
	assert.ErrorIs(t, err, ErrEmptyClip)
}

func TestOpenAITranscribe(t *testing.T) {
	var gotLang, gotModel, gotFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		gotLang = r.FormValue("language")
		gotModel = r.FormValue("model")
		if _, header, err := r.FormFile("file"); err == nil {
			gotFile = header.Filename
		}
		writeJSON(w, http.StatusOK, map[string]string{"text": " I am okay "})
	}))
	t.Cleanup(server.Close)

	tr, err := NewOpenAI("test-key", server.URL+"/v1", "", zap.NewNop())
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), Clip{Audio: []byte("ogg"), Language: models.Hindi})
	require.NoError(t, err)
	assert.Equal(t, "I am okay", text)
	assert.Equal(t, "hi", gotLang)
	assert.Equal(t, "whisper-1", gotModel)
	assert.Equal(t, DefaultFilename, gotFile)
}

func TestOpenAIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "boom", "type": "server_error"},
		})
	}))
	t.Cleanup(server.Close)

	tr, err := NewOpenAI("test-key", server.URL+"/v1", "", zap.NewNop())
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), Clip{Audio: []byte("ogg")})
	assert.Error(t, err)

	_, err = tr.Transcribe(context.Background(), Clip{})
	assert.ErrorIs(t, err, ErrEmptyClip)
}
