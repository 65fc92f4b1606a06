package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verdict label for accepted validations; rejections use the reason code.
const VerdictAccepted = "accepted"

var (
	ValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tollcrypt_validations_total",
		Help: "Authorization validations by outcome (accepted or rejection reason).",
	}, []string{"reason"})

	WalletResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tollcrypt_wallet_resolutions_total",
		Help: "Wallet resolutions by provenance tier.",
	}, []string{"provenance"})

	TierFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tollcrypt_tier_failures_total",
		Help: "Wallet tier calls that stayed unreachable after the retry.",
	}, []string{"tier"})

	BalanceRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tollcrypt_balance_refresh_total",
		Help: "Balance refreshes by winning source.",
	}, []string{"source"})

	ScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tollcrypt_scans_total",
		Help: "Booth scans by verdict.",
	}, []string{"verdict"})

	PassesIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tollcrypt_passes_issued_total",
		Help: "Issued toll passes by vehicle class.",
	}, []string{"class"})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tollcrypt_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// Init registers all collectors. Call once from main.
func Init() {
	prometheus.MustRegister(
		ValidationsTotal,
		WalletResolutionsTotal,
		TierFailuresTotal,
		BalanceRefreshTotal,
		ScansTotal,
		PassesIssuedTotal,
		RequestDuration,
	)
}

// Handler exposes the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
