package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hooka/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	minPageChars = 100
	maxPageChars = 35000
	// maxPageBytes bounds the body read before truncation to maxPageChars.
	maxPageBytes = 4 << 20
)

var (
	ErrPageUnreadable = errors.New("page content unusable")
	errReaderStatus   = errors.New("reader returned non-success status")
)

// botWallMarkers identify interstitial pages instead of real content.
var botWallMarkers = []string{"Cloudflare", "Verify you are human", "Access denied"}

// PageReader fetches a page as plain text.
type PageReader interface {
	Read(ctx context.Context, url string) (string, error)
}

type readerBridge struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewPageReader returns a PageReader that fetches through a markdown reader
// service at baseURL, e.g. https://r.jina.ai/.
func NewPageReader(baseURL string, timeout time.Duration, m *metrics.Metrics, logger zerolog.Logger) PageReader {
	return &readerBridge{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{},
		metrics: m,
		logger:  logger.With().Str("service", "PageReader").Logger(),
	}
}

// NormalizeURL adds an https scheme when url has none.
func NormalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http") {
		return "https://" + url
	}
	return url
}

func (r *readerBridge) Read(ctx context.Context, url string) (string, error) {
	text, err := r.read(ctx, NormalizeURL(url))
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrPageUnreadable) {
			status = "rejected"
		}
		r.logger.Warn().Err(err).Str("url", url).Msg("Page scrape failed")
	}
	if r.metrics != nil {
		r.metrics.ScrapeRequests.WithLabelValues(status).Inc()
	}
	return text, err
}

func (r *readerBridge) read(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+url, nil)
	if err != nil {
		return "", fmt.Errorf("build reader request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("X-Return-Format", "markdown")
	req.Header.Set("X-With-Generated-Alt", "true")
	req.Header.Set("User-Agent", "Hypeakz-Scanner/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", errReaderStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return cleanPage(string(body))
}

// cleanPage rejects pages that are too short or are error and bot-check
// screens, and truncates the rest.
func cleanPage(text string) (string, error) {
	if len(text) < minPageChars {
		return "", fmt.Errorf("%w: too short", ErrPageUnreadable)
	}
	if strings.Contains(text, "Jina Reader") && strings.Contains(text, "Error") {
		return "", fmt.Errorf("%w: reader error page", ErrPageUnreadable)
	}
	for _, marker := range botWallMarkers {
		if strings.Contains(text, marker) {
			return "", fmt.Errorf("%w: bot protection", ErrPageUnreadable)
		}
	}
	if len(text) > maxPageChars {
		text = truncateUTF8(text, maxPageChars)
	}
	return text, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
