package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector aggregates loader metrics. The in-process histograms and counters
// are authoritative for the JSON snapshot; every observation is mirrored into
// Prometheus collectors when a registerer is provided.
type Collector struct {
	startTime time.Time

	LoadLatency    *Histogram
	CompileLatency *Histogram

	LoadErrors       *Counter
	CompileErrors    *Counter
	Requests         *Counter
	ModulesLoaded    *Counter
	CircularWarnings *Counter

	promLoadLatency    prometheus.Histogram
	promCompileLatency prometheus.Histogram
	promLoadErrors     prometheus.Counter
	promCompileErrors  prometheus.Counter
	promRequests       prometheus.Counter
	promModulesLoaded  prometheus.Counter
	promCircularWarns  prometheus.Counter
}

// MemoryUsage reports process memory in bytes.
type MemoryUsage struct {
	RSS       uint64 `json:"rss"`
	HeapTotal uint64 `json:"heapTotal"`
	HeapUsed  uint64 `json:"heapUsed"`
}

// Snapshot is the full numeric view served by the management endpoints.
// Derived rates are computed at read time, never cached.
type Snapshot struct {
	Uptime             float64        `json:"uptime"`
	ProcessMemoryUsage MemoryUsage    `json:"processMemoryUsage"`
	SystemLoad         [3]float64     `json:"systemLoad"`
	LoadLatency        HistogramStats `json:"loadLatency"`
	CompileLatency     HistogramStats `json:"compileLatency"`
	LoadErrors         uint64         `json:"loadErrors"`
	CompileErrors      uint64         `json:"compileErrors"`
	RequestCount       uint64         `json:"requestCount"`
	ErrorRate          float64        `json:"errorRate"`
	CacheHitRate       float64        `json:"cacheHitRate"`
	ModulesLoaded      uint64         `json:"modulesLoaded"`
}

// NewCollector creates a collector. reg may be nil to skip the Prometheus
// mirror (tests, metrics feature disabled).
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		startTime:        time.Now(),
		LoadLatency:      NewHistogram(),
		CompileLatency:   NewHistogram(),
		LoadErrors:       NewCounter(),
		CompileErrors:    NewCounter(),
		Requests:         NewCounter(),
		ModulesLoaded:    NewCounter(),
		CircularWarnings: NewCounter(),
	}
	if reg == nil {
		return c
	}

	latencyBuckets := []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	c.promLoadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "slovo_module_load_duration_seconds",
		Help:    "Module load duration in seconds",
		Buckets: latencyBuckets,
	})
	c.promCompileLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "slovo_module_compile_duration_seconds",
		Help:    "Module compile duration in seconds",
		Buckets: latencyBuckets,
	})
	c.promLoadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slovo_module_load_errors_total",
		Help: "Total number of module load errors",
	})
	c.promCompileErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slovo_module_compile_errors_total",
		Help: "Total number of module compile errors",
	})
	c.promRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slovo_module_requests_total",
		Help: "Total number of module load requests, cached or not",
	})
	c.promModulesLoaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slovo_modules_loaded_total",
		Help: "Total number of modules compiled and cached",
	})
	c.promCircularWarns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slovo_circular_dependency_warnings_total",
		Help: "Total number of import cycles broken under the warn policy",
	})
	reg.MustRegister(
		c.promLoadLatency,
		c.promCompileLatency,
		c.promLoadErrors,
		c.promCompileErrors,
		c.promRequests,
		c.promModulesLoaded,
		c.promCircularWarns,
	)
	return c
}

// RecordLoad records one cache-miss load duration.
func (c *Collector) RecordLoad(d time.Duration) {
	c.LoadLatency.Record(float64(d.Milliseconds()))
	if c.promLoadLatency != nil {
		c.promLoadLatency.Observe(d.Seconds())
	}
}

// RecordCompile records one compile duration.
func (c *Collector) RecordCompile(d time.Duration) {
	c.CompileLatency.Record(float64(d.Milliseconds()))
	if c.promCompileLatency != nil {
		c.promCompileLatency.Observe(d.Seconds())
	}
}

// IncLoadErrors counts a resolution or read failure.
func (c *Collector) IncLoadErrors() {
	c.LoadErrors.Inc()
	if c.promLoadErrors != nil {
		c.promLoadErrors.Inc()
	}
}

// IncCompileErrors counts a compiler-reported or verification failure.
func (c *Collector) IncCompileErrors() {
	c.CompileErrors.Inc()
	if c.promCompileErrors != nil {
		c.promCompileErrors.Inc()
	}
}

// IncRequests counts one module load request, cache hit or miss.
func (c *Collector) IncRequests() {
	c.Requests.Inc()
	if c.promRequests != nil {
		c.promRequests.Inc()
	}
}

// IncModulesLoaded counts a module entering the cache.
func (c *Collector) IncModulesLoaded() {
	c.ModulesLoaded.Inc()
	if c.promModulesLoaded != nil {
		c.promModulesLoaded.Inc()
	}
}

// IncCircularWarnings counts a cycle broken under the warn policy.
func (c *Collector) IncCircularWarnings() {
	c.CircularWarnings.Inc()
	if c.promCircularWarns != nil {
		c.promCircularWarns.Inc()
	}
}

// Uptime returns seconds since the collector was created.
func (c *Collector) Uptime() float64 {
	return time.Since(c.startTime).Seconds()
}

// ErrorRate derives (loadErrors + compileErrors) / max(requestCount, 1).
func (c *Collector) ErrorRate() float64 {
	requests := c.Requests.Value()
	if requests == 0 {
		requests = 1
	}
	return float64(c.LoadErrors.Value()+c.CompileErrors.Value()) / float64(requests)
}

// CacheHitRate derives (requestCount - loadCount) / requestCount, where the
// load histogram only sees cache misses. Zero when no requests were made.
func (c *Collector) CacheHitRate() float64 {
	requests := c.Requests.Value()
	if requests == 0 {
		return 0
	}
	loads := c.LoadLatency.Count()
	if loads >= requests {
		return 0
	}
	return float64(requests-loads) / float64(requests)
}

// Read assembles the full snapshot.
func (c *Collector) Read() Snapshot {
	return Snapshot{
		Uptime:             c.Uptime(),
		ProcessMemoryUsage: ReadMemory(),
		SystemLoad:         ReadLoadAverages(),
		LoadLatency:        c.LoadLatency.Stats(),
		CompileLatency:     c.CompileLatency.Stats(),
		LoadErrors:         c.LoadErrors.Value(),
		CompileErrors:      c.CompileErrors.Value(),
		RequestCount:       c.Requests.Value(),
		ErrorRate:          c.ErrorRate(),
		CacheHitRate:       c.CacheHitRate(),
		ModulesLoaded:      c.ModulesLoaded.Value(),
	}
}
