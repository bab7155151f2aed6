// Package metrics keeps process-wide counters and renders them in the
// Prometheus text exposition format.
package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

type collector interface {
	write(buf *bytes.Buffer)
}

type counter struct {
	name, help string
	v          atomic.Uint64
}

func (c *counter) write(buf *bytes.Buffer) {
	header(buf, c.name, c.help, "counter")
	fmt.Fprintf(buf, "%s %d\n", c.name, c.v.Load())
}

// labeledCounter is a counter family keyed by one label.
type labeledCounter struct {
	name, help, label string
	mu                sync.Mutex
	values            map[string]uint64
}

func (c *labeledCounter) inc(value string) {
	c.mu.Lock()
	c.values[value]++
	c.mu.Unlock()
}

func (c *labeledCounter) write(buf *bytes.Buffer) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	header(buf, c.name, c.help, "counter")
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", c.name, c.label, k, c.values[k])
	}
	c.mu.Unlock()
}

type gauge struct {
	name, help string
	v          atomic.Int64
}

func (g *gauge) write(buf *bytes.Buffer) {
	header(buf, g.name, g.help, "gauge")
	fmt.Fprintf(buf, "%s %d\n", g.name, g.v.Load())
}

// histogram stores per-bucket counts; write makes them cumulative.
type histogram struct {
	name, help string
	bounds     []float64

	mu     sync.Mutex
	counts []uint64
	sum    float64
	total  uint64
}

func (h *histogram) observe(v float64) {
	i := sort.SearchFloat64s(h.bounds, v)
	h.mu.Lock()
	if i < len(h.bounds) {
		h.counts[i]++
	}
	h.sum += v
	h.total++
	h.mu.Unlock()
}

func (h *histogram) write(buf *bytes.Buffer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	header(buf, h.name, h.help, "histogram")
	var acc uint64
	for i, b := range h.bounds {
		acc += h.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", h.name, strconv.FormatFloat(b, 'f', -1, 64), acc)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.total)
	fmt.Fprintf(buf, "%s_sum %s\n", h.name, strconv.FormatFloat(h.sum, 'f', -1, 64))
	fmt.Fprintf(buf, "%s_count %d\n", h.name, h.total)
}

func header(buf *bytes.Buffer, name, help, kind string) {
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

var (
	uploads       = &counter{name: "documents_uploaded_total", help: "Uploads accepted"}
	downloads     = &counter{name: "downloads_total", help: "Files served"}
	fallbacks     = &counter{name: "enrichment_fallback_total", help: "Enrichments served by the local fallback"}
	notifySent    = &counter{name: "notifications_sent_total", help: "Events delivered to live connections"}
	notifyDropped = &counter{name: "notifications_dropped_total", help: "Events with no live receiver or a send failure"}
	jobs          = &labeledCounter{name: "processing_jobs_total", help: "Processing jobs by outcome", label: "outcome", values: map[string]uint64{}}
	depth         = &gauge{name: "processing_queue_depth", help: "Jobs waiting for a worker"}
	duration      = newHistogram("processing_duration_ms", "Processing duration in milliseconds",
		100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000)

	registry = []collector{uploads, downloads, fallbacks, notifySent, notifyDropped, jobs, depth, duration}
)

func newHistogram(name, help string, bounds ...float64) *histogram {
	return &histogram{name: name, help: help, bounds: bounds, counts: make([]uint64, len(bounds))}
}

func IncDocumentsUploaded()    { uploads.v.Add(1) }
func IncDownloads()            { downloads.v.Add(1) }
func IncEnrichmentFallback()   { fallbacks.v.Add(1) }
func IncNotificationsDropped() { notifyDropped.v.Add(1) }
func IncProcessingStarted()    { jobs.inc("started") }
func IncProcessingCompleted()  { jobs.inc("completed") }
func IncProcessingFailed()     { jobs.inc("failed") }

// AddNotificationsSent counts events written to live connections.
func AddNotificationsSent(n int) {
	if n > 0 {
		notifySent.v.Add(uint64(n))
	}
}

func SetQueueDepth(n int) { depth.v.Store(int64(n)) }

// ObserveProcessingDurationMs records one job's wall time. Negative values clamp to zero.
func ObserveProcessingDurationMs(ms float64) {
	if ms < 0 {
		ms = 0
	}
	duration.observe(ms)
}

// Render writes every registered metric.
func Render() string {
	var buf bytes.Buffer
	for _, c := range registry {
		c.write(&buf)
	}
	return buf.String()
}

// Handler serves Render at the scrape endpoint.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(Render()))
	}
}
