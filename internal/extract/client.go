// Package extract wraps the external page-to-text extraction service. The
// service takes a URL and returns the page's main content as an HTML
// fragment plus a title; this package reduces the fragment to plain text.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/askcorpus/askcorpus/pkg/config"
	apperrors "github.com/askcorpus/askcorpus/pkg/errors"
	"github.com/askcorpus/askcorpus/pkg/metrics"
)

// parsedPage is the JSON payload returned by the extraction service.
type parsedPage struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

// Client calls the extraction service. It is stateless and safe for
// concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewClient creates a Client for the configured parser endpoint. metrics may
// be nil.
func NewClient(cfg config.ParserConfig, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: timeout},
		metrics:  m,
		logger:   slog.Default().With("component", "extract-client"),
	}
}

// Fetch retrieves pageURL through the extraction service and returns its
// title and plain text. A transport failure or a payload missing the title
// or content field is reported as ErrFetchFailed.
func (c *Client) Fetch(ctx context.Context, pageURL string) (string, string, error) {
	start := time.Now()
	form := url.Values{"url": {pageURL}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", apperrors.Newf(apperrors.ErrFetchFailed, http.StatusBadGateway, "building parser request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", apperrors.Newf(apperrors.ErrFetchFailed, http.StatusBadGateway, "parser unreachable: %v", err)
	}
	defer resp.Body.Close()
	c.observe("fetch", start)

	if resp.StatusCode != http.StatusOK {
		return "", "", apperrors.Newf(apperrors.ErrFetchFailed, http.StatusBadGateway, "parser returned status %d", resp.StatusCode)
	}

	var page parsedPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return "", "", apperrors.Newf(apperrors.ErrFetchFailed, http.StatusBadGateway, "decoding parser response: %v", err)
	}
	if page.Title == "" || page.Content == "" {
		return "", "", apperrors.New(apperrors.ErrFetchFailed, http.StatusBadGateway, "parser response missing title or content")
	}

	text, err := paragraphText(page.Content)
	if err != nil {
		return "", "", apperrors.Newf(apperrors.ErrFetchFailed, http.StatusBadGateway, "parsing page content: %v", err)
	}

	c.logger.Debug("page fetched", "url", pageURL, "title", page.Title, "text_len", len(text))
	return page.Title, text, nil
}

// paragraphText concatenates the text of every paragraph element in the
// fragment, in document order, joined by newlines.
func paragraphText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parsing HTML fragment: %w", err)
	}
	var paragraphs []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		paragraphs = append(paragraphs, sel.Text())
	})
	return strings.Join(paragraphs, "\n"), nil
}

func (c *Client) observe(op string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ExternalCallDuration.WithLabelValues("parser", op).Observe(time.Since(start).Seconds())
}
