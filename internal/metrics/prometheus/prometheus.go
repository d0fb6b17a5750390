package prometheus

import (
	"time"

	"github.com/freemoonfaucet/gas-faucet/internal/metrics/metricsTypes"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type PrometheusMetricsConfig struct {
	Metrics map[metricsTypes.MetricsType][]metricsTypes.MetricsTypeConfig

	// Label names the sink attaches to every call, registered into each
	// vector on top of its declared labels.
	DefaultLabelNames []string
}

type PrometheusMetricsClient struct {
	logger *zap.Logger
	config *PrometheusMetricsConfig

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labelNames map[string][]string
}

func NewPrometheusMetricsClient(config *PrometheusMetricsConfig, l *zap.Logger) (*PrometheusMetricsClient, error) {
	client := &PrometheusMetricsClient{
		config: config,
		logger: l,

		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labelNames: make(map[string][]string),
	}

	client.initializeTypes()

	return client, nil
}

func (pmc *PrometheusMetricsClient) logExistingMetric(t metricsTypes.MetricsType, metric metricsTypes.MetricsTypeConfig) {
	pmc.logger.Sugar().Warnw("Prometheus metric already exists for type",
		zap.String("type", string(t)),
		zap.String("name", metric.Name),
	)
}

func (pmc *PrometheusMetricsClient) initializeTypes() {
	for t, types := range pmc.config.Metrics {
		for _, mt := range types {
			name := sanitizeMetricName(mt.Name)
			labels := pmc.registeredLabels(mt.Labels)
			pmc.labelNames[mt.Name] = labels
			switch t {
			case metricsTypes.MetricsType_Incr:
				if _, ok := pmc.counters[mt.Name]; ok {
					pmc.logExistingMetric(t, mt)
					continue
				}
				pmc.counters[mt.Name] = prometheus.NewCounterVec(prometheus.CounterOpts{
					Name: name,
				}, labels)
				prometheus.MustRegister(pmc.counters[mt.Name])
			case metricsTypes.MetricsType_Gauge:
				if _, ok := pmc.gauges[mt.Name]; ok {
					pmc.logExistingMetric(t, mt)
					continue
				}
				pmc.gauges[mt.Name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
					Name: name,
				}, labels)
				prometheus.MustRegister(pmc.gauges[mt.Name])
			case metricsTypes.MetricsType_Timing:
				if _, ok := pmc.histograms[mt.Name]; ok {
					pmc.logExistingMetric(t, mt)
					continue
				}
				pmc.histograms[mt.Name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
					Name: name,
				}, labels)
				prometheus.MustRegister(pmc.histograms[mt.Name])
			}
		}
	}
}

// registeredLabels merges a metric's declared labels with the default
// label names, deduplicated, preserving declaration order.
func (pmc *PrometheusMetricsClient) registeredLabels(declared []string) []string {
	merged := make([]string, 0, len(declared)+len(pmc.config.DefaultLabelNames))
	seen := make(map[string]bool)
	for _, name := range declared {
		if !seen[name] {
			merged = append(merged, name)
			seen[name] = true
		}
	}
	for _, name := range pmc.config.DefaultLabelNames {
		if !seen[name] {
			merged = append(merged, name)
			seen[name] = true
		}
	}
	return merged
}

// Prometheus metric names cannot contain dots.
func sanitizeMetricName(name string) string {
	replaced := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			replaced = append(replaced, '_')
		} else {
			replaced = append(replaced, name[i])
		}
	}
	return string(replaced)
}

// formatLabels projects the caller's labels onto the label set the
// vector was registered with. With() panics on any cardinality mismatch,
// so extras are dropped and missing names get an empty value.
func (pmc *PrometheusMetricsClient) formatLabels(name string, labels []metricsTypes.MetricsLabel) prometheus.Labels {
	values := make(map[string]string)
	for _, label := range labels {
		values[label.Name] = label.Value
	}

	l := make(prometheus.Labels)
	for _, registered := range pmc.labelNames[name] {
		l[registered] = values[registered]
	}
	return l
}

func (pmc *PrometheusMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	m, ok := pmc.counters[name]
	if !ok {
		pmc.logger.Sugar().Warnw("Prometheus incr not found",
			zap.String("name", name),
		)
		return nil
	}
	m.With(pmc.formatLabels(name, labels)).Add(value)
	return nil
}

func (pmc *PrometheusMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	m, ok := pmc.gauges[name]
	if !ok {
		pmc.logger.Sugar().Warnw("Prometheus gauge not found",
			zap.String("name", name),
		)
		return nil
	}
	m.With(pmc.formatLabels(name, labels)).Set(value)
	return nil
}

func (pmc *PrometheusMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	m, ok := pmc.histograms[name]
	if !ok {
		pmc.logger.Sugar().Warnw("Prometheus histogram not found",
			zap.String("name", name),
		)
		return nil
	}
	m.With(pmc.formatLabels(name, labels)).Observe(float64(value.Milliseconds()))
	return nil
}
