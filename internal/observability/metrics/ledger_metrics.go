package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	JobGenerateCharges = "generate_charges"
	JobRecordPayment   = "record_payment"
	JobRecalculate     = "recalculate"
	JobRebuild         = "rebuild"
)

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonLockUnavailable      = "lock_unavailable"
	JobReasonUnknown              = "unknown"
)

// ErrLockUnavailable is matched by reason classification. The studentlock
// package wraps it when a lock cannot be obtained before its deadline.
var ErrLockUnavailable = errors.New("lock_unavailable")

// LedgerMetrics tracks the health of ledger mutations in Prometheus.
type LedgerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobErrors      *prometheus.CounterVec
	lockWait       *prometheus.HistogramVec
	studentsLocked *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetrics     *LedgerMetrics
)

// Ledger returns the singleton ledger metrics registry.
func Ledger() *LedgerMetrics {
	return LedgerWithConfig(Config{})
}

// LedgerWithConfig returns the singleton ledger metrics registry using config labels.
func LedgerWithConfig(cfg Config) *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerMetrics = newLedgerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ledgerMetrics
}

func newLedgerMetrics(registerer prometheus.Registerer, cfg Config) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tuitionledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tuition_ledger_job_runs_total",
		Help:        "Ledger mutations by job.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "tuition_ledger_job_duration_seconds",
		Help:        "Ledger mutation latency including lock wait.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tuition_ledger_job_errors_total",
		Help:        "Ledger mutation errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "tuition_student_lock_wait_seconds",
		Help:        "Time spent waiting for per-student ledger locks.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"backend"})
	studentsLocked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tuition_student_locks_acquired_total",
		Help:        "Per-student ledger locks acquired.",
		ConstLabels: constLabels,
	}, []string{"backend"})

	registerer.MustRegister(jobRuns, jobDuration, jobErrors, lockWait, studentsLocked)

	return &LedgerMetrics{
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		jobErrors:      jobErrors,
		lockWait:       lockWait,
		studentsLocked: studentsLocked,
	}
}

// ObserveJob records one ledger mutation with its latency and outcome.
func (m *LedgerMetrics) ObserveJob(job string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
	}
}

// ObserveLockWait records how long a caller waited for a set of student locks.
func (m *LedgerMetrics) ObserveLockWait(backend string, students int, duration time.Duration) {
	if m == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.lockWait.WithLabelValues(backend).Observe(duration.Seconds())
	if students > 0 {
		m.studentsLocked.WithLabelValues(backend).Add(float64(students))
	}
}

// ClassifyJobReason maps ledger errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	if errors.Is(err, ErrLockUnavailable) {
		return JobReasonLockUnavailable
	}
	if hasPGCode(err, "55P03") {
		return JobReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return JobReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return JobReasonUniqueViolation
	}
	return JobReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
