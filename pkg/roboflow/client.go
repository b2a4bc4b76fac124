package roboflow

import (
	"RailscanGolang/internal/entity"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// ErrRateLimitExhausted is returned when the endpoint keeps answering 429
// past the configured attempt cap.
var ErrRateLimitExhausted = errors.New("detection endpoint rate limit retries exhausted")

// RequestError is a non-2xx, non-429 answer from the detection endpoint.
// The frame stays unprocessed and can be retried manually.
type RequestError struct {
	StatusCode int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("detection request failed with status %d", e.StatusCode)
}

const (
	defaultMaxAttempts   = 3
	defaultRetryAfter    = 5 * time.Second
	maxBackoff           = 20 * time.Second
	defaultClientTimeout = 60 * time.Second
)

type IRoboflow interface {
	Detect(ctx context.Context, imageData []byte, filename string) (*entity.DetectionResult, error)
}

type roboflowClient struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	maxAttempts int
	log         *logrus.Logger
}

func New(log *logrus.Logger) (IRoboflow, error) {
	endpoint := os.Getenv("ROBOFLOW_API_URL")
	if endpoint == "" {
		return nil, errors.New("ROBOFLOW_API_URL not set")
	}

	apiKey := os.Getenv("ROBOFLOW_API_KEY")
	if apiKey == "" {
		return nil, errors.New("ROBOFLOW_API_KEY not set")
	}

	maxAttempts := defaultMaxAttempts
	if raw := os.Getenv("ROBOFLOW_MAX_RETRIES"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			maxAttempts = parsed
		}
	}

	return &roboflowClient{
		httpClient:  &http.Client{Timeout: defaultClientTimeout},
		endpoint:    endpoint,
		apiKey:      apiKey,
		maxAttempts: maxAttempts,
		log:         log,
	}, nil
}

// Detect submits raw frame bytes to the inference endpoint and normalizes
// the response. A 429 is retried after the server-advertised delay (capped
// exponential fallback when Retry-After is missing), at most maxAttempts
// tries in total.
func (c *roboflowClient) Detect(ctx context.Context, imageData []byte, filename string) (*entity.DetectionResult, error) {
	for attempt := 1; ; attempt++ {
		result, retryAfter, err := c.doDetect(ctx, imageData, filename)
		if err == nil {
			return result, nil
		}

		if !errors.Is(err, errRateLimited) {
			return nil, err
		}

		if attempt >= c.maxAttempts {
			c.log.WithFields(logrus.Fields{
				"attempts": attempt,
				"filename": filename,
			}).Error("Detection endpoint still rate limited, giving up")
			return nil, ErrRateLimitExhausted
		}

		wait := retryAfter
		if wait <= 0 {
			wait = backoffFor(attempt)
		}

		c.log.WithFields(logrus.Fields{
			"attempt":  attempt,
			"wait":     wait.String(),
			"filename": filename,
		}).Warn("Detection endpoint rate limited, retrying after delay")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

var errRateLimited = errors.New("rate limited")

func (c *roboflowClient) doDetect(ctx context.Context, imageData []byte, filename string) (*entity.DetectionResult, time.Duration, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, 0, err
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, 0, err
	}
	if err := writer.Close(); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.WithError(closeErr).Warn("Failed to close detection response body")
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, parseRetryAfter(resp), errRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WithFields(logrus.Fields{
			"status":   resp.StatusCode,
			"filename": filename,
		}).Error("Detection request failed")
		return nil, 0, &RequestError{StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	var result entity.DetectionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, 0, fmt.Errorf("failed to decode detection response: %w", err)
	}

	if result.Predictions == nil {
		result.Predictions = []entity.Prediction{}
	}

	return &result, 0, nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func backoffFor(attempt int) time.Duration {
	wait := defaultRetryAfter << (attempt - 1)
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}
