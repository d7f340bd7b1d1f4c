package artifact

import (
	"context"
	"fmt"
	"os"

	"github.com/crimson-sun/pilar/internal/httpclient"
)

// Source fetches the raw bytes of a bundle.
type Source interface {
	// Name identifies the source in logs and status output.
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads a bundle from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("artifact: reading %s: %w", s.Path, err)
	}
	return data, nil
}

// HTTPSource downloads a bundle from a URL.
type HTTPSource struct {
	URL    string
	Client *httpclient.Client
}

// NewHTTPSource creates an HTTPSource. An empty token sends no auth header.
func NewHTTPSource(url, token string, opts ...httpclient.Option) *HTTPSource {
	return &HTTPSource{URL: url, Client: httpclient.New(token, opts...)}
}

func (s *HTTPSource) Name() string { return "http:" + s.URL }

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := s.Client.Get(ctx, s.URL)
	if err != nil {
		return nil, fmt.Errorf("artifact: downloading %s: %w", s.URL, err)
	}
	return data, nil
}
