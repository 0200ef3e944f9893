package schedule

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/utils"
)

// maxDocumentSize caps how much of a remote schedule is read.
const maxDocumentSize = 32 << 20

// Loader reads the raw schedule document from a URL or a local file.
type Loader struct {
	source string
	client *http.Client
}

// NewLoader creates a loader for source. URLs are fetched with timeout.
func NewLoader(source string, timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Loader{
		source: source,
		client: &http.Client{Timeout: timeout},
	}
}

// Source returns the identifier the conference is tracked by.
func (l *Loader) Source() string { return l.source }

// Load returns the raw document. Every failure wraps domain.ErrUpstreamFetch.
func (l *Loader) Load(ctx context.Context) ([]byte, error) {
	if l.source == "" {
		return nil, fmt.Errorf("%w: empty schedule source", domain.ErrUpstreamFetch)
	}
	if isURL(l.source) {
		return l.fetch(ctx)
	}

	data, err := os.ReadFile(l.source)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read schedule file: %v", domain.ErrUpstreamFetch, err)
	}
	return data, nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", domain.ErrUpstreamFetch, err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamFetch, err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", domain.ErrUpstreamFetch, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", domain.ErrUpstreamFetch, err)
	}
	return body, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
