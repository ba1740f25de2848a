package metrics

// CounterDef binds a MetricID to its exported name and help text.
type CounterDef struct {
	ID   MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name and help text.
type HistogramDef struct {
	ID   MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: MetricLoginSuccess, Name: "authguard_login_success_total", Help: "Successful login attempts."},
	{ID: MetricLoginFailure, Name: "authguard_login_failure_total", Help: "Failed login attempts."},
	{ID: MetricLoginRateLimited, Name: "authguard_login_rate_limited_total", Help: "Login attempts denied by the local rate limiter."},
	{ID: MetricMFARequired, Name: "authguard_mfa_required_total", Help: "Login flows requiring an MFA step-up."},
	{ID: MetricMFASuccess, Name: "authguard_mfa_success_total", Help: "Successful MFA confirmations."},
	{ID: MetricMFAFailure, Name: "authguard_mfa_failure_total", Help: "Failed MFA confirmations."},
	{ID: MetricMFAExpired, Name: "authguard_mfa_expired_total", Help: "MFA sessions rejected as expired."},
	{ID: MetricRefreshSuccess, Name: "authguard_refresh_success_total", Help: "Successful token refresh exchanges."},
	{ID: MetricRefreshFailure, Name: "authguard_refresh_failure_total", Help: "Failed token refresh exchanges."},
	{ID: MetricRefreshCoalesced, Name: "authguard_refresh_coalesced_total", Help: "Refresh callers that joined an in-flight exchange."},
	{ID: MetricRequestRetried, Name: "authguard_request_retried_total", Help: "Requests replayed once after a refresh."},
	{ID: MetricAuthFailure, Name: "authguard_auth_failure_total", Help: "Terminal authentication failures that cleared local state."},
	{ID: MetricCSRFIssued, Name: "authguard_csrf_issued_total", Help: "CSRF tokens issued."},
	{ID: MetricCSRFRejected, Name: "authguard_csrf_rejected_total", Help: "CSRF validations that failed."},
	{ID: MetricLogout, Name: "authguard_logout_total", Help: "Logout operations."},
	{ID: MetricSessionRestored, Name: "authguard_session_restored_total", Help: "Sessions restored from persisted tokens."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: MetricRequestLatency, Name: "authguard_request_latency_seconds", Help: "Secured request round-trip latency."},
}

// HistogramBounds holds the upper bounds of the latency buckets as
// Prometheus `le` label values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
