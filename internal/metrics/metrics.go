// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 退会判定の結果ラベル
const (
	DeletionDeleted          = "deleted"
	DeletionBlockedOwned     = "blocked_owned"
	DeletionBlockedAttending = "blocked_attending"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordValidationFailure(kind string, fields []string)
	RecordDeletionOutcome(outcome string)
	RecordUserCreated(provider string)
	RecordTicketCreated()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	validationFail  *prometheus.CounterVec
	deletionOutcome *prometheus.CounterVec
	usersCreated    *prometheus.CounterVec
	ticketsCreated  prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	sessionsPurged  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		validationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awesome_events_validation_failures_total",
			Help: "入力検証で違反となったフィールド数",
		}, []string{"kind", "field"}),
		deletionOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awesome_events_user_deletion_total",
			Help: "退会判定の結果別件数",
		}, []string{"outcome"}),
		usersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awesome_events_users_created_total",
			Help: "新規作成されたユーザー数",
		}, []string{"provider"}),
		ticketsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "awesome_events_tickets_created_total",
			Help: "作成された参加登録の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awesome_events_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "awesome_events_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "awesome_events_sessions_purged_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.validationFail,
		c.deletionOutcome,
		c.usersCreated,
		c.ticketsCreated,
		c.httpStatus,
		c.requestLatency,
		c.sessionsPurged,
	)

	return c
}

// RecordValidationFailure は違反のあったフィールドごとにカウントする。
// kindは "event" または "ticket"。
func (c *Collector) RecordValidationFailure(kind string, fields []string) {
	for _, f := range fields {
		c.validationFail.WithLabelValues(kind, f).Inc()
	}
}

// RecordDeletionOutcome は退会判定の結果を記録する。
func (c *Collector) RecordDeletionOutcome(outcome string) {
	c.deletionOutcome.WithLabelValues(outcome).Inc()
}

// RecordUserCreated は新規ユーザー作成を記録する。
func (c *Collector) RecordUserCreated(provider string) {
	c.usersCreated.WithLabelValues(provider).Inc()
}

// RecordTicketCreated は参加登録の作成を記録する。
func (c *Collector) RecordTicketCreated() {
	c.ticketsCreated.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionsPurged は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordValidationFailure(string, []string) {}
func (Nop) RecordDeletionOutcome(string)             {}
func (Nop) RecordUserCreated(string)                 {}
func (Nop) RecordTicketCreated()                     {}
func (Nop) RecordHTTPStatus(int)                     {}
func (Nop) RecordRequestLatency(time.Duration)       {}
func (Nop) RecordSessionsPurged(int64)               {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
