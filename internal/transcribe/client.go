package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// Client calls a remote transcription endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient posts clips to endpoint, a full URL ending in /api/transcribe.
// A nil httpClient uses http.DefaultClient.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

func (c *Client) Transcribe(ctx context.Context, clip Clip) (string, error) {
	if len(clip.Audio) == 0 {
		return "", ErrEmptyClip
	}
	filename := clip.Filename
	if filename == "" {
		filename = DefaultFilename
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(clip.Audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := mw.WriteField("language", string(clip.Language)); err != nil {
		return "", fmt.Errorf("write language: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrRemoteFailure, err)
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: status %d: undecodable body", ErrRemoteFailure, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || out.Error != "" {
		return "", fmt.Errorf("%w: status %d: %s", ErrRemoteFailure, resp.StatusCode, out.Error)
	}

	text := strings.TrimSpace(out.Transcription)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
