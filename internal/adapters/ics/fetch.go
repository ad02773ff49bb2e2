package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/logging"
)

// maxBodySize caps a single calendar download.
const maxBodySize = 10 << 20

// cacheEntry holds the last good body of a feed with its validators.
type cacheEntry struct {
	ETag         string
	LastModified string
	Body         []byte
	UpdatedAt    time.Time
}

// fetcher downloads a calendar feed with conditional requests. Bodies are
// cached per credential so owners sharing a feed URL never see each
// other's calendars.
type fetcher struct {
	url    string
	client *http.Client
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

func newFetcher(url string, timeout time.Duration) *fetcher {
	return &fetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logging.Component("ics").With().Str("url", logging.RedactURL(url)).Logger(),
		cache:  make(map[string]*cacheEntry),
	}
}

// fetch returns the feed body. A transport failure or server error falls
// back to the cached body when one exists.
func (f *fetcher) fetch(ctx context.Context, authorization string) ([]byte, error) {
	key := cacheKey(authorization)

	f.mu.Lock()
	cached := f.cache[key]
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	req.Header.Set("Accept", "text/calendar")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if cached != nil {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if cached != nil {
			f.logger.Warn().Err(err).Msg("calendar fetch failed, using cached body")
			return cached.Body, nil
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("%w: reading body: %w", domain.ErrNetwork, err)
		}

		f.mu.Lock()
		f.cache[key] = &cacheEntry{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Body:         body,
			UpdatedAt:    time.Now(),
		}
		f.mu.Unlock()

		f.logger.Debug().Int("bytes", len(body)).Msg("calendar fetched")
		return body, nil

	case http.StatusNotModified:
		if cached == nil {
			return nil, fmt.Errorf("%w: 304 Not Modified without a cached body", domain.ErrRemoteFormat)
		}
		f.logger.Debug().Msg("calendar not modified, using cache")
		return cached.Body, nil

	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", domain.ErrAuth, resp.Status)

	default:
		if cached != nil && resp.StatusCode >= http.StatusInternalServerError {
			f.logger.Warn().Int("status", resp.StatusCode).Msg("calendar server error, using cached body")
			return cached.Body, nil
		}
		return nil, fmt.Errorf("%w: unexpected status %s", domain.ErrNetwork, resp.Status)
	}
}

func cacheKey(authorization string) string {
	sum := sha256.Sum256([]byte(authorization))
	return hex.EncodeToString(sum[:8])
}
