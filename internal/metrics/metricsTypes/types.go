package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_ClaimRequest  = "claim.request"
	Metric_Incr_ClaimGranted  = "claim.granted"
	Metric_Incr_ClaimRejected = "claim.rejected"

	Metric_Gauge_FaucetBalanceWei = "faucetBalanceWei"

	Metric_Timing_ClaimDuration  = "claim.duration"
	Metric_Timing_PayoutDuration = "payout.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_ClaimRequest,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ClaimGranted,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ClaimRejected,
			Labels: []string{"reason"},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_FaucetBalanceWei,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_ClaimDuration,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_PayoutDuration,
			Labels: []string{},
		},
	},
}
