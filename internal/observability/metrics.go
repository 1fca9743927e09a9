package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/types"
)

// Metrics is the engine's Prometheus exposition surface. Counters and
// histograms are hand-rolled over the text format; there is no registry
// dependency and no label cardinality beyond what the engine itself emits.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter
	apiReqGood  *Counter

	responseTotal  *CounterVec
	diagnosisTotal *CounterVec
	masteryLevel   *CounterVec

	pathDuration *HistogramVec
	pathAtoms    *HistogramVec
	gapTotal     *CounterVec
	gapBacklog   *Gauge

	edgeMutations *CounterVec
	graphVersion  *Gauge
	graphEdges    *Gauge
	waiverTotal   *CounterVec

	rankDuration      *HistogramVec
	rankSubstitutions *Counter

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	sloLatencyThreshold float64
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Current returns the initialized metrics instance, or nil when metrics are
// disabled. All recording methods are nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		latencyThreshold := 0.5
		if v := strings.TrimSpace(os.Getenv("SLO_API_LATENCY_THRESHOLD_SECONDS")); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				latencyThreshold = f
			}
		}
		instance = &Metrics{
			apiRequests: NewCounterVec("ce_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
			apiLatency: NewHistogramVec(
				"ce_api_request_duration_seconds",
				"API request latency in seconds by method/route/status.",
				[]string{"method", "route", "status"},
				[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			),
			apiInflight: NewGauge("ce_api_inflight_requests", "In-flight API requests."),
			apiReqTotal: NewCounter("ce_api_requests_total_all", "Total API requests (all)."),
			apiReqError: NewCounter("ce_api_requests_error_total", "Total API requests with 5xx status."),
			apiReqGood:  NewCounter("ce_api_requests_good_latency_total", "Total API requests under SLO latency threshold."),

			responseTotal:  NewCounterVec("ce_responses_total", "Recorded responses by correctness/rating.", []string{"correct", "rating"}),
			diagnosisTotal: NewCounterVec("ce_diagnoses_total", "Failure diagnoses by fail mode/remediation.", []string{"fail_mode", "remediation"}),
			masteryLevel:   NewCounterVec("ce_mastery_level_total", "Mastery recomputations landing on each level.", []string{"level"}),

			pathDuration: NewHistogramVec(
				"ce_path_build_duration_seconds",
				"Learning path build duration in seconds.",
				[]string{"status"},
				[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			),
			pathAtoms: NewHistogramVec(
				"ce_path_atoms",
				"Atoms per built learning path.",
				[]string{},
				[]float64{0, 5, 10, 20, 30, 50, 80, 120},
			),
			gapTotal:   NewCounterVec("ce_content_gaps_total", "Content gaps reported by atom type.", []string{"atom_type"}),
			gapBacklog: NewGauge("ce_content_gap_backlog", "Unresolved content gap rows."),

			edgeMutations: NewCounterVec("ce_graph_edge_mutations_total", "Graph edge mutations by op/outcome.", []string{"op", "outcome"}),
			graphVersion:  NewGauge("ce_graph_version", "Monotonic version of the published graph snapshot."),
			graphEdges:    NewGauge("ce_graph_edges", "Active edges in the published graph snapshot."),
			waiverTotal:   NewCounterVec("ce_waivers_granted_total", "Waivers granted by type.", []string{"waiver_type"}),

			rankDuration: NewHistogramVec(
				"ce_rank_duration_seconds",
				"Candidate ranking duration in seconds.",
				[]string{},
				[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			),
			rankSubstitutions: NewCounter("ce_rank_substitutions_total", "Ranked picks replaced by a prerequisite via backtracking."),

			pgStats:   NewGaugeVec("ce_postgres_stats", "Postgres connection stats.", []string{"metric"}),
			redisUp:   NewGauge("ce_redis_up", "Redis connectivity (1=up, 0=down)."),
			redisPing: NewGauge("ce_redis_ping_seconds", "Redis ping latency in seconds."),

			sloLatencyThreshold: latencyThreshold,
		}
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError, m.apiReqGood,
		m.responseTotal, m.diagnosisTotal, m.masteryLevel,
		m.pathDuration, m.pathAtoms, m.gapTotal, m.gapBacklog,
		m.edgeMutations, m.graphVersion, m.graphEdges, m.waiverTotal,
		m.rankDuration, m.rankSubstitutions,
		m.pgStats, m.redisUp, m.redisPing,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
	if dur.Seconds() <= m.sloLatencyThreshold {
		m.apiReqGood.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveResponse(correct bool, rating string) {
	if m == nil {
		return
	}
	m.responseTotal.Inc(strconv.FormatBool(correct), rating)
}

func (m *Metrics) ObserveDiagnosis(failMode, remediation string) {
	if m == nil {
		return
	}
	m.diagnosisTotal.Inc(failMode, remediation)
}

func (m *Metrics) ObserveMasteryLevel(level string) {
	if m == nil {
		return
	}
	m.masteryLevel.Inc(level)
}

func (m *Metrics) ObservePathBuild(status string, dur time.Duration, atoms int, gaps []types.AtomType) {
	if m == nil {
		return
	}
	m.pathDuration.Observe(dur.Seconds(), status)
	m.pathAtoms.Observe(float64(atoms))
	for _, t := range gaps {
		m.gapTotal.Inc(string(t))
	}
}

func (m *Metrics) ObserveEdgeMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.edgeMutations.Inc(op, outcome)
}

func (m *Metrics) SetGraphSnapshot(version uint64, edges int) {
	if m == nil {
		return
	}
	m.graphVersion.Set(float64(version))
	m.graphEdges.Set(float64(edges))
}

func (m *Metrics) ObserveWaiver(waiverType string) {
	if m == nil {
		return
	}
	m.waiverTotal.Inc(waiverType)
}

func (m *Metrics) ObserveRank(dur time.Duration, substituted int) {
	if m == nil {
		return
	}
	m.rankDuration.Observe(dur.Seconds())
	m.rankSubstitutions.Add(float64(substituted))
}

// StartRuntimePoller samples infrastructure health and the content gap
// backlog on a fixed interval until ctx is done.
func (m *Metrics) StartRuntimePoller(ctx context.Context, log *logger.Logger, db *gorm.DB, rdb redis.UniversalClient) {
	if m == nil {
		return
	}
	interval := 30 * time.Second
	if v := strings.TrimSpace(os.Getenv("METRICS_POLL_INTERVAL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sampleOnce(ctx, log, db, rdb)
			}
		}
	}()
}

func (m *Metrics) sampleOnce(ctx context.Context, log *logger.Logger, db *gorm.DB, rdb redis.UniversalClient) {
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			s := sqlDB.Stats()
			m.pgStats.Set(float64(s.OpenConnections), "open")
			m.pgStats.Set(float64(s.InUse), "in_use")
			m.pgStats.Set(float64(s.Idle), "idle")
			m.pgStats.Set(float64(s.WaitCount), "wait_count")
		}
		var backlog int64
		if err := db.WithContext(ctx).Model(&types.ContentGap{}).Count(&backlog).Error; err != nil {
			if log != nil {
				log.Warn("metrics: content gap backlog query failed", "error", err)
			}
		} else {
			m.gapBacklog.Set(float64(backlog))
		}
	}
	if rdb != nil {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
		} else {
			m.redisUp.Set(1)
			m.redisPing.Set(time.Since(start).Seconds())
		}
	}
}

// ---- lightweight metric primitives (Prometheus exposition) ----

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl]++
	c.mu.Unlock()
}

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type Counter struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val++
	c.mu.Unlock()
}

func (c *Counter) Add(v float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", c.name, c.val)
	return err
}

type Gauge struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Set(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val++
	g.mu.Unlock()
}

func (g *Gauge) Dec() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val--
	g.mu.Unlock()
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", g.name, g.val)
	return err
}

type GaugeVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	lbl := labelString(g.labelNames, values)
	g.mu.Lock()
	g.values[lbl] = v
	g.mu.Unlock()
}

func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for k, v := range g.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", g.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	total   uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	}
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.values[lbl]
	if !ok {
		hist = &histogram{
			buckets: h.buckets,
			counts:  make([]uint64, len(h.buckets)+1),
		}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range hist.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	hist.counts[len(hist.counts)-1]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s histogram\n", h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, v := range h.values {
		for i, b := range v.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), v.counts[len(v.counts)-1]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %f\n", h.name, k, v.sum); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_count%s %d\n", h.name, k, v.total); err != nil {
			return err
		}
	}
	return nil
}

func labelString(names []string, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("{")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		b.WriteString(name)
		b.WriteString("=\"")
		b.WriteString(escapeLabel(val))
		b.WriteString("\"")
	}
	b.WriteString("}")
	return b.String()
}

func escapeLabel(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}

func withLe(labels string, le string) string {
	le = escapeLabel(le)
	if labels == "" || labels == "{}" {
		return "{le=\"" + le + "\"}"
	}
	if strings.HasSuffix(labels, "}") {
		return strings.TrimSuffix(labels, "}") + ",le=\"" + le + "\"}"
	}
	return "{le=\"" + le + "\"}"
}

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	if len(status) < 3 {
		return false
	}
	return status[0] == '5'
}
