// Package metrics exposes Prometheus instrumentation for the import
// pipeline. Recorder implements core.Observer; LimiterCollector reads the
// live import slot state on each scrape.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/kwimport/internal/core"
)

const namespace = "kwimport"

// Recorder counts pipeline events.
type Recorder struct {
	jobs        *prometheus.CounterVec
	duration    prometheus.Histogram
	ingested    prometheus.Counter
	dropped     prometheus.Counter
	detections  *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	mergeErrors *prometheus.CounterVec
	keywords    *prometheus.CounterVec
}

var _ core.Observer = (*Recorder)(nil)

// NewRecorder creates the pipeline metrics and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Import jobs finished, by terminal status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of finished import jobs.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}),
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_ingested_total",
			Help:      "Data rows parsed from uploaded files.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows dropped during mapping for lack of a usable keyword.",
		}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Resolved export formats, by tool.",
		}, []string{"tool"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Field conflicts found while reconciling, by resolution.",
		}, []string{"resolution"}),
		mergeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_errors_total",
			Help:      "Per-record reconciliation errors, by type.",
		}, []string{"type"}),
		keywords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keywords_total",
			Help:      "Imported keywords, by outcome (matched or new).",
		}, []string{"outcome"}),
	}

	reg.MustRegister(r.jobs, r.duration, r.ingested, r.dropped, r.detections, r.conflicts, r.mergeErrors, r.keywords)
	return r
}

func (r *Recorder) JobFinished(status core.JobStatus, d time.Duration) {
	r.jobs.WithLabelValues(string(status)).Inc()
	r.duration.Observe(d.Seconds())
}

func (r *Recorder) RowsIngested(n int) { r.ingested.Add(float64(n)) }

func (r *Recorder) RowsDropped(n int) { r.dropped.Add(float64(n)) }

func (r *Recorder) FormatDetected(tool core.ToolSource) {
	r.detections.WithLabelValues(string(tool)).Inc()
}

func (r *Recorder) MergeFinished(res core.MergeResult) {
	for _, c := range res.Conflicts {
		resolution := string(c.Resolution)
		if resolution == "" {
			resolution = "unresolved"
		}
		r.conflicts.WithLabelValues(resolution).Inc()
	}
	for _, e := range res.Errors {
		r.mergeErrors.WithLabelValues(string(e.Type)).Inc()
	}
	r.keywords.WithLabelValues("matched").Add(float64(len(res.Matched)))
	r.keywords.WithLabelValues("new").Add(float64(len(res.NewKeywords)))
}

var (
	activeImportsDesc = prometheus.NewDesc(
		"kwimport_imports_active",
		"Imports currently holding a slot",
		nil, nil,
	)
	availableSlotsDesc = prometheus.NewDesc(
		"kwimport_import_slots_available",
		"Free import slots",
		nil, nil,
	)
)

// LimiterStatus is implemented by core.ImportLimiter.
type LimiterStatus interface {
	Status() core.ImportLimiterStatus
}

// LimiterCollector reports import slot usage on each scrape.
type LimiterCollector struct {
	limiter LimiterStatus
}

func NewLimiterCollector(l LimiterStatus) *LimiterCollector {
	return &LimiterCollector{limiter: l}
}

func (c *LimiterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- activeImportsDesc
	ch <- availableSlotsDesc
}

func (c *LimiterCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.limiter.Status()
	ch <- prometheus.MustNewConstMetric(activeImportsDesc, prometheus.GaugeValue, float64(st.Active))
	ch <- prometheus.MustNewConstMetric(availableSlotsDesc, prometheus.GaugeValue, float64(st.Available))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
