// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// auth.MetricsRecorderを満たす。
type Collector struct {
	loginSuccess    prometheus.Counter
	loginFail       *prometheus.CounterVec
	sessionCreated  prometheus.Counter
	sessionRevoked  prometheus.Counter
	tokenIssued     prometheus.Counter
	tokenVerifyFail *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardpost_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardpost_login_fail_total",
			Help: "失敗理由別のログイン失敗数",
		}, []string{"reason"}),
		sessionCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardpost_sessions_created_total",
			Help: "作成されたセッションの合計数",
		}),
		sessionRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardpost_sessions_revoked_total",
			Help: "破棄されたセッションの合計数",
		}),
		tokenIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardpost_tokens_issued_total",
			Help: "発行されたAPIトークンの合計数",
		}),
		tokenVerifyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardpost_token_verify_fail_total",
			Help: "失敗種別（expired/invalid）ごとのトークン検証失敗数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.sessionCreated,
		c.sessionRevoked,
		c.tokenIssued,
		c.tokenVerifyFail,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を失敗理由付きで記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFail.WithLabelValues(reason).Inc()
}

// RecordSessionCreated はセッション作成を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionCreated.Inc()
}

// RecordSessionRevoked はセッション破棄を記録する。
func (c *Collector) RecordSessionRevoked() {
	c.sessionRevoked.Inc()
}

// RecordTokenIssued はAPIトークン発行を記録する。
func (c *Collector) RecordTokenIssued() {
	c.tokenIssued.Inc()
}

// RecordTokenVerifyFailure はトークン検証失敗を失敗種別付きで記録する。
func (c *Collector) RecordTokenVerifyFailure(kind string) {
	c.tokenVerifyFail.WithLabelValues(kind).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
