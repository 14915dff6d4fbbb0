package bls

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/blsgeo/internal/apperr"
	"github.com/sells-group/blsgeo/internal/observability"
	"github.com/sells-group/blsgeo/internal/series"
)

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 64 << 10

// ClientOptions configures the BLS client.
type ClientOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond paces sequential POSTs; 0 disables pacing.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Metrics           *observability.Metrics
}

// Client posts batched series requests to the BLS API, one batch at a time.
type Client struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	metrics   *observability.Metrics
}

// NewClient creates a Client with the given options.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "blsgeo/1.0"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		client:    hc,
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		metrics:   opts.Metrics,
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// FetchObservations retrieves every data point of the given series. The ids
// are sent in consecutive batches of at most MaxSeriesPerRequest, strictly in
// order. Any failed batch aborts the whole retrieval; nothing is retried.
func (c *Client) FetchObservations(ctx context.Context, ids []string, opts FetchOptions) ([]Observation, error) {
	log := zap.L().With(zap.String("component", "bls.client"))

	batches := series.Chunk(ids, MaxSeriesPerRequest)
	var out []Observation
	for i, batch := range batches {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "bls: rate limiter wait")
			}
		}

		obs, err := c.post(ctx, batch, opts)
		if err != nil {
			return nil, eris.Wrapf(err, "bls: batch %d of %d", i+1, len(batches))
		}
		log.Debug("batch retrieved",
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Int("series", len(batch)),
			zap.Int("observations", len(obs)),
		)
		out = append(out, obs...)
	}

	if len(out) == 0 {
		log.Warn("BLS returned no observations", zap.Int("series", len(ids)))
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, ids []string, opts FetchOptions) ([]Observation, error) {
	body, err := json.Marshal(newRequest(ids, opts))
	if err != nil {
		return nil, eris.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.countSeries(len(ids))
	start := time.Now()
	resp, err := c.client.Do(req)
	c.observeDuration(time.Since(start))
	if err != nil {
		c.countRequest("transport_error")
		return nil, eris.Wrap(err, "post series request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		c.countRequest("http_error")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, eris.Wrap(&apperr.ExternalServiceError{
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
		}, "post series request")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countRequest("transport_error")
		return nil, eris.Wrap(err, "read response")
	}

	obs, err := decodeResponse(data)
	if err != nil {
		c.countRequest("decode_error")
		return nil, err
	}
	c.countRequest("success")
	c.countObservations(len(obs))
	return obs, nil
}

// decodeResponse turns a v2 response body into observations.
func decodeResponse(data []byte) ([]Observation, error) {
	var resp seriesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperr.DataFormat(eris.Wrap(err, "decode BLS response"))
	}

	for _, msg := range resp.Message {
		zap.L().Warn("BLS API message",
			zap.String("component", "bls.client"),
			zap.String("status", resp.Status),
			zap.String("message", msg),
		)
	}

	if resp.Results == nil {
		return nil, apperr.DataFormat(eris.Errorf("BLS response has no Results (status %q)", resp.Status))
	}
	if resp.Results.Series == nil {
		return nil, apperr.DataFormat(eris.New("BLS response has no Results.series"))
	}

	var out []Observation
	for i, s := range *resp.Results.Series {
		if s.SeriesID == "" {
			return nil, apperr.DataFormat(eris.Errorf("BLS series %d has no seriesID", i))
		}
		if s.Data == nil {
			return nil, apperr.DataFormat(eris.Errorf("BLS series %s has no data", s.SeriesID))
		}
		for _, dp := range *s.Data {
			out = append(out, dp.observation(s.SeriesID))
		}
	}
	return out, nil
}

func (c *Client) countRequest(outcome string) {
	if c.metrics != nil {
		c.metrics.BLSRequests.WithLabelValues(outcome).Inc()
	}
}

func (c *Client) countSeries(n int) {
	if c.metrics != nil {
		c.metrics.SeriesRequested.Add(float64(n))
	}
}

func (c *Client) countObservations(n int) {
	if c.metrics != nil {
		c.metrics.ObservationsParsed.Add(float64(n))
	}
}

func (c *Client) observeDuration(d time.Duration) {
	if c.metrics != nil {
		c.metrics.BLSRequestDuration.Observe(d.Seconds())
	}
}
