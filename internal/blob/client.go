// Package blob fetches flashcard content stored in the core blob API.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jarrod-lowe/jmap-service-libs/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Error types for blob operations.
var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrForbidden    = errors.New("forbidden")
	ErrServerFail   = errors.New("server error")
	ErrTooLarge     = errors.New("blob too large")
)

// DefaultMaxBytes caps the size of a fetched blob.
const DefaultMaxBytes = 4 << 20

// HTTPDoer abstracts HTTP client operations for dependency inversion.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient downloads blobs over HTTP, retrying transport errors and 5xx
// responses with exponential back-off.
type HTTPClient struct {
	baseURL    string
	httpClient HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxBytes   int64
	sleepFunc  func(time.Duration)
}

// NewHTTPClient creates an HTTPClient with default retry settings.
func NewHTTPClient(baseURL string, httpClient HTTPDoer) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: 2,
		baseDelay:  100 * time.Millisecond,
		maxBytes:   DefaultMaxBytes,
		sleepFunc:  time.Sleep,
	}
}

func (c *HTTPClient) downloadURL(accountID, blobID string) string {
	return c.baseURL + "/download-iam/" + accountID + "/" + blobID
}

// FetchBlob returns the content of a blob.
func (c *HTTPClient) FetchBlob(ctx context.Context, accountID, blobID string) ([]byte, error) {
	tracer := tracing.Tracer("flashcard-blob-client")
	ctx, span := tracer.Start(ctx, "blob.FetchBlob",
		trace.WithAttributes(
			tracing.AccountID(accountID),
			attribute.String("blob_id", blobID),
		))
	defer span.End()

	body, attempts, err := c.fetch(ctx, c.downloadURL(accountID, blobID))
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("size", len(body)))
	return body, nil
}

func (c *HTTPClient) fetch(ctx context.Context, url string) ([]byte, int, error) {
	attempts := c.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt, err
		}
		if attempt > 0 && c.sleepFunc != nil && c.baseDelay > 0 {
			c.sleepFunc(c.baseDelay << (attempt - 1))
		}

		body, retry, err := c.get(ctx, url)
		if err == nil {
			return body, attempt + 1, nil
		}
		if !retry {
			return nil, attempt + 1, err
		}
		lastErr = err
	}
	return nil, attempts, lastErr
}

// get performs a single request. retry reports whether a failure is worth
// another attempt.
func (c *HTTPClient) get(ctx context.Context, url string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrBlobNotFound
	case resp.StatusCode == http.StatusForbidden:
		return nil, false, ErrForbidden
	case resp.StatusCode >= 500:
		return nil, true, ErrServerFail
	case resp.StatusCode >= 300:
		return nil, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	limit := c.maxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	body, err = io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return nil, false, ErrTooLarge
	}
	return body, false, nil
}
