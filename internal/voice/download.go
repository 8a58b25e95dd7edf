package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// DownloadCapture reads an already recorded clip, such as a Telegram voice
// note, over HTTP.
type DownloadCapture struct {
	URL      string
	Filename string
	Client   *http.Client
}

func (c DownloadCapture) Start(ctx context.Context) (Stream, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download clip: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download clip: unexpected status %d", resp.StatusCode)
	}
	return &httpStream{body: resp.Body, filename: c.Filename}, nil
}

type httpStream struct {
	body     io.ReadCloser
	filename string

	once sync.Once
	err  error
}

func (s *httpStream) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

func (s *httpStream) Stop() error {
	s.once.Do(func() {
		s.err = s.body.Close()
	})
	return s.err
}

func (s *httpStream) Filename() string {
	return s.filename
}
