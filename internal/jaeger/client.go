// Package jaeger is the trace-backend collaborator: it retrieves
// time-bounded trace batches from the Jaeger query HTTP API.
package jaeger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/couplinglab/coupling-monitor/internal/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// The all-in-one image traces itself; its self-reported service is
// noise in the dependency graph.
const selfServiceName = "jaeger-all-in-one"

// Config holds Jaeger client settings.
type Config struct {
	URL            string
	TraceLimit     int
	RequestsPerSec float64
	Timeout        time.Duration
}

// Client queries the Jaeger HTTP API with a request rate limit.
type Client struct {
	baseURL    string
	traceLimit int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a Jaeger API client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.TraceLimit <= 0 {
		cfg.TraceLimit = 100
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.URL,
		traceLimit: cfg.TraceLimit,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		logger:     logger,
	}
}

type servicesResponse struct {
	Data []string `json:"data"`
}

type tracesResponse struct {
	Data []trace.Trace `json:"data"`
}

// Services returns all service names known to Jaeger, sorted, with the
// backend's own service filtered out.
func (c *Client) Services(ctx context.Context) ([]string, error) {
	var resp servicesResponse
	if err := c.get(ctx, c.baseURL+"/api/services", &resp); err != nil {
		return nil, fmt.Errorf("fetch services: %w", err)
	}

	services := make([]string, 0, len(resp.Data))
	for _, s := range resp.Data {
		if s != selfServiceName {
			services = append(services, s)
		}
	}
	sort.Strings(services)
	return services, nil
}

// Traces returns traces for one service within [startUs, endUs], epoch
// microseconds.
func (c *Client) Traces(ctx context.Context, service string, startUs, endUs int64) ([]trace.Trace, error) {
	params := url.Values{}
	params.Set("service", service)
	params.Set("start", strconv.FormatInt(startUs, 10))
	params.Set("end", strconv.FormatInt(endUs, 10))
	params.Set("limit", strconv.Itoa(c.traceLimit))

	var resp tracesResponse
	if err := c.get(ctx, c.baseURL+"/api/traces?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch traces for %s: %w", service, err)
	}
	return resp.Data, nil
}

// TracesInWindow fans out across every known service and returns the
// deduplicated union of traces in the window. A single service failing
// does not fail the batch.
func (c *Client) TracesInWindow(ctx context.Context, startUs, endUs int64) ([]trace.Trace, error) {
	services, err := c.Services(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var traces []trace.Trace
	for _, service := range services {
		batch, err := c.Traces(ctx, service, startUs, endUs)
		if err != nil {
			c.logger.Warn("Failed to fetch traces for service",
				zap.String("service", service),
				zap.Error(err),
			)
			continue
		}
		for _, tr := range batch {
			if _, ok := seen[tr.TraceID]; ok {
				continue
			}
			seen[tr.TraceID] = struct{}{}
			traces = append(traces, tr)
		}
	}

	c.logger.Info("Fetched trace window",
		zap.Int64("start_us", startUs),
		zap.Int64("end_us", endUs),
		zap.Int("services", len(services)),
		zap.Int("traces", len(traces)),
	)
	return traces, nil
}

func (c *Client) get(ctx context.Context, rawURL string, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
