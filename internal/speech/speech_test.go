package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/models"
)

func TestOpenAISynthesize(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "audio/ogg")
		_, _ = w.Write([]byte("OggS-opus"))
	}))
	t.Cleanup(server.Close)

	s, err := NewOpenAI("test-key", server.URL+"/v1", "", "", zap.NewNop())
	require.NoError(t, err)

	audio, err := s.Synthesize(context.Background(), " Take a deep breath. ", models.English)
	require.NoError(t, err)
	defer audio.Close()

	raw, err := io.ReadAll(audio)
	require.NoError(t, err)
	assert.Equal(t, "OggS-opus", string(raw))
	assert.Equal(t, "Take a deep breath.", body["input"])
	assert.Equal(t, "opus", body["response_format"])
	assert.Equal(t, "tts-1", body["model"])
	assert.Equal(t, "alloy", body["voice"])
}

func TestOpenAISynthesizeRejectsBlank(t *testing.T) {
	s, err := NewOpenAI("test-key", "", "", "", zap.NewNop())
	require.NoError(t, err)

	_, err = s.Synthesize(context.Background(), "  ", models.Hindi)
	assert.Error(t, err)
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI("", "", "", "", zap.NewNop())
	assert.Error(t, err)
}
