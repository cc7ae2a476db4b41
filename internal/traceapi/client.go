package traceapi

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/traveler/internal/trace"
)

// DefaultChunkSize is the number of streamed records handed to a ChunkFunc at once.
const DefaultChunkSize = 256

// maxStreamLineBytes bounds one NDJSON line of an interval stream.
const maxStreamLineBytes = 4 << 20

// maxErrorBodyBytes bounds how much of an error response is quoted.
const maxErrorBodyBytes = 512

// ErrIncompleteStream is returned when an interval stream ends without its
// completion line. It wraps ErrQueryFailed.
var ErrIncompleteStream = fmt.Errorf("%w: stream ended before completion", ErrQueryFailed)

// HTTPClient talks to a query service over HTTP.
type HTTPClient struct {
	base      *url.URL
	http      *http.Client
	logger    *slog.Logger
	chunkSize int
	timeout   time.Duration
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *HTTPClient) { c.logger = logger }
}

// WithChunkSize sets how many streamed records are batched per ChunkFunc call.
func WithChunkSize(n int) ClientOption {
	return func(c *HTTPClient) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithRequestTimeout bounds unary requests. Interval streams are never timed out.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.timeout = d }
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse service url %q: %w", baseURL, err)
	}

	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: service url %q needs scheme and host", ErrInvalidQuery, baseURL)
	}

	c := &HTTPClient{
		base:      base,
		http:      http.DefaultClient,
		logger:    slog.Default(),
		chunkSize: DefaultChunkSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Histogram implements Client.
func (c *HTTPClient) Histogram(ctx context.Context, dataset string, bins int, begin, end float64) ([]Bin, error) {
	body, err := c.get(ctx, datasetPath(dataset, "histogram"), rangeParams(bins, begin, end))
	if err != nil {
		return nil, err
	}

	return DecodeHistogram(body)
}

// PrimitiveTraceForward implements Client.
func (c *HTTPClient) PrimitiveTraceForward(
	ctx context.Context, dataset, nodeID string, bins int, begin, end float64,
) (Forward, error) {
	path := datasetPath(dataset, "primitives", nodeID, "traceForward")

	body, err := c.get(ctx, path, rangeParams(bins, begin, end))
	if err != nil {
		return nil, err
	}

	return DecodeForward(body)
}

// UtilizationHistogram implements Client.
func (c *HTTPClient) UtilizationHistogram(
	ctx context.Context, dataset, primitive string, locations []string, bins int, begin, end float64,
) (map[string][]float64, error) {
	params := rangeParams(bins, begin, end)
	params.Set(ParamPrimitive, primitive)

	if len(locations) > 0 {
		params.Set(ParamLocations, JoinLocations(locations))
	}

	body, err := c.get(ctx, datasetPath(dataset, "utilizationHistogram"), params)
	if err != nil {
		return nil, err
	}

	return DecodeUtilization(body)
}

// MergedUtilization implements Client.
func (c *HTTPClient) MergedUtilization(
	ctx context.Context, dataset, primitive string, mode UtilMode, bins int, begin, end float64,
) ([]float64, error) {
	params := rangeParams(bins, begin, end)
	params.Set(ParamPrimitive, primitive)
	params.Set(ParamMode, string(mode))

	body, err := c.get(ctx, datasetPath(dataset, "mergedUtilization"), params)
	if err != nil {
		return nil, err
	}

	return DecodeSeries(body)
}

// Intervals implements Client. Records are delivered in arrival order in
// chunks of at most the configured chunk size. A context cancellation is
// returned as the bare context error.
func (c *HTTPClient) Intervals(ctx context.Context, q IntervalQuery, fn ChunkFunc) error {
	params := url.Values{}
	params.Set(ParamBegin, formatFloat(q.Begin))
	params.Set(ParamEnd, formatFloat(q.End))

	if len(q.Locations) > 0 {
		params.Set(ParamLocations, JoinLocations(q.Locations))
	}

	resp, err := c.do(ctx, datasetPath(q.Dataset, "intervals"), params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	err = c.readStream(resp.Body, fn)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

func (c *HTTPClient) readStream(body io.Reader, fn ChunkFunc) error {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxStreamLineBytes)

	chunk := make([]trace.Interval, 0, c.chunkSize)
	received := 0

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}

		err := fn(chunk)
		chunk = make([]trace.Interval, 0, c.chunkSize)

		return err
	}

	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		iv, done, err := DecodeStreamLine(line)
		if err != nil {
			return err
		}

		if done {
			c.logger.Debug("traceapi: stream complete", "records", received)

			return flush()
		}

		received++
		chunk = append(chunk, iv)

		if len(chunk) >= c.chunkSize {
			if err = flush(); err != nil {
				return err
			}
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: read stream: %w", ErrQueryFailed, err)
	}

	return ErrIncompleteStream
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, path, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("%w: read body: %w", ErrQueryFailed, err)
	}

	return body, nil
}

func (c *HTTPClient) do(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	target := c.base.JoinPath(path)
	target.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrQueryFailed, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("%w: %s: %w", ErrQueryFailed, path, err)
	}

	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%s: %w", path, ErrStillLoading)
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	return nil, fmt.Errorf("%w: %s: status %d: %s", ErrQueryFailed, path, resp.StatusCode, bytes.TrimSpace(snippet))
}

// IsStillLoading reports whether err means the service index is not ready.
func IsStillLoading(err error) bool {
	return errors.Is(err, ErrStillLoading)
}

func datasetPath(dataset string, parts ...string) string {
	var sb strings.Builder

	sb.WriteString("/datasets/")
	sb.WriteString(url.PathEscape(dataset))

	for _, p := range parts {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(p))
	}

	return sb.String()
}

func rangeParams(bins int, begin, end float64) url.Values {
	params := url.Values{}
	params.Set(ParamBins, strconv.Itoa(bins))
	params.Set(ParamBegin, formatFloat(begin))
	params.Set(ParamEnd, formatFloat(end))

	return params
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
