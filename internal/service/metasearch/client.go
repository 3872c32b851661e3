package metasearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	domrepo "BarPulse/internal/domain/repository"
	xhttp "BarPulse/pkg/http"
	xlogger "BarPulse/pkg/logger"
)

// Client queries the external stock metadata search service. The service is
// optional: a Client built without a URL stays constructible so the rest of
// the wiring does not care, but every Search fails with a 503-style error
// instead of pretending the lookup ran.
type Client struct {
	baseURL string
	http    *xhttp.Client
	l       *xlogger.Logger
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// SetLogger injects a structured logger.
func (c *Client) SetLogger(l *xlogger.Logger) { c.l = l }

// Search looks up stock metadata by symbol or company name and returns the
// listing as plain text.
func (c *Client) Search(ctx context.Context, keyword string) (string, error) {
	if c.baseURL == "" {
		return "", xhttp.UnavailableError("stock metadata search is not configured")
	}

	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      http.MethodGet,
		URL:         fmt.Sprintf("%s/search", c.baseURL),
		QueryParams: map[string][]string{"keyword": {keyword}},
	}, &body)
	if err != nil {
		if c.l != nil {
			c.l.Error("metadata search failed",
				xlogger.String("keyword", keyword),
				xlogger.Error(err))
		}
		return "", xhttp.UnavailableError("stock metadata search failed").WithError(err)
	}

	if c.l != nil {
		c.l.Debug("metadata search ok",
			xlogger.String("keyword", keyword),
			xlogger.Int("bytes", len(body)))
	}
	return string(body), nil
}

var _ domrepo.MetaSearcher = (*Client)(nil)
