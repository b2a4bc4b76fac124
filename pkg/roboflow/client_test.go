package roboflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, endpoint string, maxAttempts int) *roboflowClient {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return &roboflowClient{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		endpoint:    endpoint,
		apiKey:      "test-key",
		maxAttempts: maxAttempts,
		log:         log,
	}
}

func TestDetect_ParsesPredictions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		require.NoError(t, r.ParseMultipartForm(10<<20))
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		require.Equal(t, "10.jpg", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"time":0.1,"image":{"width":640,"height":480},"predictions":[{"x":100,"y":50,"width":40,"height":20,"confidence":0.87,"class":"crack"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)

	result, err := client.Detect(context.Background(), []byte("jpegbytes"), "10.jpg")
	require.NoError(t, err)
	require.Len(t, result.Predictions, 1)

	pred := result.Predictions[0]
	require.True(t, pred.HasGeometry())
	require.Equal(t, 100.0, *pred.X)
	require.Equal(t, 50.0, *pred.Y)
	require.Equal(t, 40.0, *pred.Width)
	require.Equal(t, 20.0, *pred.Height)
	require.Equal(t, 0.87, pred.Confidence)
	require.Equal(t, "crack", pred.Class)

	confidence, ok := result.PrimaryConfidence()
	require.True(t, ok)
	require.Equal(t, 0.87, confidence)
	require.Equal(t, 640, result.Image.Width)
}

func TestDetect_EmptyPredictions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)

	result, err := client.Detect(context.Background(), []byte("jpegbytes"), "10.jpg")
	require.NoError(t, err)
	require.NotNil(t, result.Predictions)
	require.Empty(t, result.Predictions)

	_, ok := result.PrimaryConfidence()
	require.False(t, ok)
}

func TestDetect_AbsentPredictionsField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"time":0.2}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)

	result, err := client.Detect(context.Background(), []byte("jpegbytes"), "10.jpg")
	require.NoError(t, err)
	require.NotNil(t, result.Predictions)
	require.Empty(t, result.Predictions)
}

func TestDetect_RetriesAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"predictions":[{"confidence":0.5,"class":"crack"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)

	start := time.Now()
	result, err := client.Detect(context.Background(), []byte("jpegbytes"), "10.jpg")
	require.NoError(t, err)
	require.Len(t, result.Predictions, 1)
	require.EqualValues(t, 2, calls.Load())
	require.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestDetect_RateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 1)

	_, err := client.Detect(context.Background(), []byte("jpegbytes"), "10.jpg")
	require.ErrorIs(t, err, ErrRateLimitExhausted)
	require.EqualValues(t, 1, calls.Load())
}

func TestDetect_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)

	_, err := client.Detect(context.Background(), []byte("jpegbytes"), "10.jpg")

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	require.Equal(t, http.StatusBadGateway, reqErr.StatusCode)
}

func TestDetect_ContextCancelledDuringWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Detect(ctx, []byte("jpegbytes"), "10.jpg")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
