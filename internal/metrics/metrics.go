package metrics

import (
	"time"

	"github.com/freemoonfaucet/gas-faucet/internal/config"
	"github.com/freemoonfaucet/gas-faucet/internal/metrics/dogstatsd"
	"github.com/freemoonfaucet/gas-faucet/internal/metrics/metricsTypes"
	"github.com/freemoonfaucet/gas-faucet/internal/metrics/prometheus"
	"go.uber.org/zap"
)

type MetricsSink struct {
	clients []metricsTypes.IMetricsClient
	config  *MetricsSinkConfig
}

type MetricsSinkConfig struct {
	DefaultLabels []metricsTypes.MetricsLabel
}

func NewMetricsSink(cfg *MetricsSinkConfig, clients []metricsTypes.IMetricsClient) (*MetricsSink, error) {
	if cfg.DefaultLabels == nil {
		cfg.DefaultLabels = []metricsTypes.MetricsLabel{}
	}
	return &MetricsSink{
		clients: clients,
		config:  cfg,
	}, nil
}

// NewMetricsSinkFromConfig builds a sink with whichever clients the config
// enables. A sink with zero clients is valid and drops everything.
func NewMetricsSinkFromConfig(cfg *config.Config, l *zap.Logger) (*MetricsSink, error) {
	clients := make([]metricsTypes.IMetricsClient, 0)

	if cfg.PrometheusConfig.Enabled {
		promClient, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
			Metrics:           metricsTypes.MetricTypes,
			DefaultLabelNames: []string{"chain"},
		}, l)
		if err != nil {
			return nil, err
		}
		clients = append(clients, promClient)
	}

	if cfg.StatsdConfig.Enabled {
		statsdClient, err := dogstatsd.NewDogStatsdMetricsClient(cfg.StatsdConfig.Url, cfg.StatsdConfig.SampleRate, l)
		if err != nil {
			return nil, err
		}
		clients = append(clients, statsdClient)
	}

	return NewMetricsSink(&MetricsSinkConfig{
		DefaultLabels: []metricsTypes.MetricsLabel{
			{Name: "chain", Value: string(cfg.Chain)},
		},
	}, clients)
}

func mergeLabels(labels []metricsTypes.MetricsLabel, defaultLabels []metricsTypes.MetricsLabel) []metricsTypes.MetricsLabel {
	if labels == nil {
		return defaultLabels
	}
	mergedLabels := make([]metricsTypes.MetricsLabel, 0)
	mergedLabels = append(mergedLabels, defaultLabels...)
	mergedLabels = append(mergedLabels, labels...)
	return mergedLabels
}

func (ms *MetricsSink) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	mergedLabels := mergeLabels(labels, ms.config.DefaultLabels)
	for _, client := range ms.clients {
		err := client.Incr(name, mergedLabels, value)
		if err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsSink) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	mergedLabels := mergeLabels(labels, ms.config.DefaultLabels)
	for _, client := range ms.clients {
		err := client.Gauge(name, value, mergedLabels)
		if err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsSink) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	mergedLabels := mergeLabels(labels, ms.config.DefaultLabels)
	for _, client := range ms.clients {
		err := client.Timing(name, value, mergedLabels)
		if err != nil {
			return err
		}
	}
	return nil
}
