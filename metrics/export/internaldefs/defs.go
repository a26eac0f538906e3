package internaldefs

import (
	"math"

	goToken "github.com/MrEthical07/goToken"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram.
type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goToken.MetricLoginSuccess, Name: "gotoken_login_success_total", Help: "Successful logins."},
	{ID: goToken.MetricLoginFailure, Name: "gotoken_login_failure_total", Help: "Rejected logins."},
	{ID: goToken.MetricLoginRateLimited, Name: "gotoken_login_rate_limited_total", Help: "Logins refused by throttling."},
	{ID: goToken.MetricRegisterSuccess, Name: "gotoken_register_success_total", Help: "Successful registrations."},
	{ID: goToken.MetricRegisterDuplicate, Name: "gotoken_register_duplicate_total", Help: "Registrations rejected for a taken email."},
	{ID: goToken.MetricRegisterFailure, Name: "gotoken_register_failure_total", Help: "Registrations failed for other reasons."},
	{ID: goToken.MetricRefreshSuccess, Name: "gotoken_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goToken.MetricRefreshFailure, Name: "gotoken_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: goToken.MetricRefreshTokenNotFound, Name: "gotoken_refresh_token_not_found_total", Help: "Refreshes with no stored token."},
	{ID: goToken.MetricRefreshTokenMismatch, Name: "gotoken_refresh_token_mismatch_total", Help: "Refreshes presenting a token other than the stored one."},
	{ID: goToken.MetricRefreshTokenExpired, Name: "gotoken_refresh_token_expired_total", Help: "Refreshes presenting an expired token."},
	{ID: goToken.MetricRefreshRateLimited, Name: "gotoken_refresh_rate_limited_total", Help: "Refreshes refused by throttling."},
	{ID: goToken.MetricRefreshRaceLost, Name: "gotoken_refresh_race_lost_total", Help: "Compare-and-swap rotations lost to a concurrent refresh."},
	{ID: goToken.MetricLogout, Name: "gotoken_logout_total", Help: "Logouts."},
	{ID: goToken.MetricValidateSuccess, Name: "gotoken_validate_success_total", Help: "Accepted access tokens."},
	{ID: goToken.MetricValidateFailure, Name: "gotoken_validate_failure_total", Help: "Rejected access tokens."},
	{ID: goToken.MetricPasswordUpgraded, Name: "gotoken_password_upgraded_total", Help: "Stored password hashes re-encoded on login."},
}

// HistogramDefs lists the latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricValidateLatency, Name: "gotoken_validate_latency_seconds", Help: "Access token validation latency."},
	{ID: goToken.MetricRefreshLatency, Name: "gotoken_refresh_latency_seconds", Help: "Refresh rotation latency."},
}

// AuditDroppedName is the counter for events the audit dispatcher dropped.
const (
	AuditDroppedName = "gotoken_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
)

// BucketCount matches the engine's histogram layout.
const BucketCount = 8

// HistogramUpperBounds are the bucket upper bounds in seconds; the last one
// is +Inf.
var HistogramUpperBounds = [BucketCount]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, math.Inf(1)}

// HistogramBoundSuffix names each bucket in instrument names.
var HistogramBoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-padding short
// input.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
