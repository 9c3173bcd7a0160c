package metrics

import (
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	mu       sync.Mutex
	upstream map[string]*upstreamStats
}

type upstreamStats struct {
	calls      uint64
	failures   uint64
	throttled  uint64
	durationMs uint64
}

func New() *Collector {
	return &Collector{upstream: map[string]*upstreamStats{}}
}

// Record counts one inbound HTTP request.
func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == http.StatusTooManyRequests {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordUpstream counts one attempt against Deputy, Xero or Vend. Status 0
// is a transport failure.
func (c *Collector) RecordUpstream(service string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.upstream[service]
	if !ok {
		st = &upstreamStats{}
		c.upstream[service] = st
	}
	st.calls++
	if status == 0 || status >= 500 {
		st.failures++
	}
	if status == http.StatusTooManyRequests {
		st.throttled++
	}
	st.durationMs += uint64(duration.Milliseconds())
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	names := make([]string, 0, len(c.upstream))
	for name := range c.upstream {
		names = append(names, name)
	}
	sort.Strings(names)
	upstream := make(map[string]any, len(names))
	for _, name := range names {
		st := c.upstream[name]
		upstream[name] = map[string]uint64{
			"calls":      st.calls,
			"failures":   st.failures,
			"throttled":  st.throttled,
			"durationMs": st.durationMs,
		}
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"upstream":         upstream,
	}
}
