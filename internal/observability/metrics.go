package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

// Metrics is the process-wide metric set. Every method is safe on a nil
// receiver so callers never branch on whether metrics are enabled.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	mutations       *CounterVec
	mutationLatency *HistogramVec
	rollbacks       *CounterVec
	coalesced       *CounterVec
	sessions        *Gauge

	mediaIngest  *CounterVec
	mediaDeleted *Counter
	mediaLeaked  *Counter

	pgStats *GaugeVec
	redisUp *Gauge

	all []collector
}

// Counter is a CounterVec without labels.
type Counter struct{ v *CounterVec }

func NewCounter(name, help string) *Counter {
	return &Counter{v: NewCounterVec(name, help, nil)}
}

func (c *Counter) Add(v float64) {
	if c != nil {
		c.v.Add(v)
	}
}

func (c *Counter) Value() float64 {
	if c == nil {
		return 0
	}
	return c.v.Value()
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	return c.v.WritePrometheus(w)
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
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func Current() *Metrics {
	return instance
}

// Init builds the process metrics once. It returns nil when METRICS_ENABLED
// is off.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func NewMetrics() *Metrics {
	latency := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	m := &Metrics{
		apiRequests: NewCounterVec("ds_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("ds_api_request_duration_seconds", "API request latency by method/route/status.", []string{"method", "route", "status"}, latency),
		apiInflight: NewGauge("ds_api_inflight_requests", "In-flight API requests."),

		aggregateOps:       NewCounterVec("ds_aggregate_operations_total", "Aggregate writes by operation/status.", []string{"op", "status"}),
		aggregateLatency:   NewHistogramVec("ds_aggregate_operation_duration_seconds", "Aggregate write latency.", []string{"op"}, latency),
		aggregateConflicts: NewCounterVec("ds_aggregate_conflicts_total", "Aggregate writes rejected by a conflict.", []string{"op"}),
		aggregateRetries:   NewCounterVec("ds_aggregate_retryable_total", "Aggregate writes failing with a retryable error.", []string{"op"}),

		mutations:       NewCounterVec("ds_mutations_total", "Draft mutations by kind/outcome.", []string{"kind", "outcome"}),
		mutationLatency: NewHistogramVec("ds_mutation_commit_duration_seconds", "Remote commit latency of draft mutations.", []string{"kind"}, latency),
		rollbacks:       NewCounterVec("ds_mutation_rollbacks_total", "Scoped rollbacks by kind/error code.", []string{"kind", "code"}),
		coalesced:       NewCounterVec("ds_mutation_coalesced_total", "Debounced edits folded into a pending burst.", []string{"kind"}),
		sessions:        NewGauge("ds_editing_sessions", "Live draft editing sessions."),

		mediaIngest:  NewCounterVec("ds_media_ingest_total", "Media ingestions by intent/outcome.", []string{"intent", "outcome"}),
		mediaDeleted: NewCounter("ds_media_deleted_total", "Media assets deleted by commit-deletion."),
		mediaLeaked:  NewCounter("ds_media_leaked_objects_total", "Storage objects left behind after their asset row was deleted."),

		pgStats: NewGaugeVec("ds_postgres_pool", "database/sql pool statistics.", []string{"stat"}),
		redisUp: NewGauge("ds_redis_up", "1 when the last redis ping succeeded."),
	}
	m.all = []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries,
		m.mutations, m.mutationLatency, m.rollbacks, m.coalesced, m.sessions,
		m.mediaIngest, m.mediaDeleted, m.mediaLeaked,
		m.pgStats, m.redisUp,
	}
	return m
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
	for _, c := range m.all {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflight(delta float64) {
	if m != nil {
		m.apiInflight.Add(delta)
	}
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Inc(op, status)
	m.aggregateLatency.Observe(dur.Seconds(), op)
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m != nil {
		m.aggregateConflicts.Inc(op)
	}
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m != nil {
		m.aggregateRetries.Inc(op)
	}
}

// ObserveMutation records a settled mutation. outcome is committed,
// rolled_back or invalid.
func (m *Metrics) ObserveMutation(kind, outcome string, commit time.Duration) {
	if m == nil {
		return
	}
	m.mutations.Inc(kind, outcome)
	if commit > 0 {
		m.mutationLatency.Observe(commit.Seconds(), kind)
	}
}

func (m *Metrics) IncRollback(kind, code string) {
	if m != nil {
		m.rollbacks.Inc(kind, code)
	}
}

func (m *Metrics) IncCoalesced(kind string) {
	if m != nil {
		m.coalesced.Inc(kind)
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Add(1)
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Add(-1)
	}
}

// IncMediaIngest records one ingestion. outcome is stored, deduplicated,
// or restored, or the failure code.
func (m *Metrics) IncMediaIngest(intent, outcome string) {
	if m != nil {
		m.mediaIngest.Inc(intent, outcome)
	}
}

func (m *Metrics) AddMediaDeleted(deleted, leaked int) {
	if m == nil {
		return
	}
	m.mediaDeleted.Add(float64(deleted))
	m.mediaLeaked.Add(float64(leaked))
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

// StartRedisCollector pings through an existing client; the caller owns it.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
			}
		}
	}()
}
