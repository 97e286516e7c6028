package httpds

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"magload/internal/datasource"
)

// IsURL reports whether path names an HTTP(S) resource rather than a file.
func IsURL(path string) bool {
	p := strings.ToLower(path)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// Source downloads one export URL.
type Source struct {
	client *Client
	url    string
}

// NewSource returns a Source for url using a client built from cfg.
func NewSource(url string, cfg Config) *Source {
	return &Source{client: NewClient(cfg), url: url}
}

// URL returns the configured URL.
func (s *Source) URL() string { return s.url }

// Open starts the download. 404 and 410 wrap datasource.ErrNotFound; a 2xx
// response with no body wraps datasource.ErrEmpty; any other non-2xx status
// is an error.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.url, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: %s: %w", s.url, resp.Status, datasource.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: unexpected status %s", s.url, resp.Status)
	}

	br := bufio.NewReader(resp.Body)
	if _, err := br.Peek(1); err != nil {
		resp.Body.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("get %s: %w", s.url, datasource.ErrEmpty)
		}
		return nil, fmt.Errorf("get %s: %w", s.url, err)
	}
	return &body{Reader: br, c: resp.Body}, nil
}

// body reads through the peek buffer and closes the response.
type body struct {
	*bufio.Reader
	c io.Closer
}

func (b *body) Close() error { return b.c.Close() }
