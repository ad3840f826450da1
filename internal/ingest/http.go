package ingest

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/safestreets/safestreets/internal/metrics"
)

// doInstrumented performs a single request with latency and outcome metrics.
// Sources that need retry wrap this in their own backoff loop.
func doInstrumented(client *http.Client, req *http.Request, source string) ([]byte, error) {
	start := time.Now()
	resp, err := client.Do(req)
	metrics.UpstreamLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamCallsTotal.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamCallsTotal.WithLabelValues(source, "error").Inc()
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch %s: status %d: %s", source, resp.StatusCode, string(b))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamCallsTotal.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("read %s body: %w", source, err)
	}
	metrics.UpstreamCallsTotal.WithLabelValues(source, "ok").Inc()
	return body, nil
}
