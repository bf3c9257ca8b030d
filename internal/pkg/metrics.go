package pkg

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 解码服务的性能指标，使用独立的 Registry 以便测试
type Metrics struct {
	Registry *prometheus.Registry

	Decodes          *prometheus.CounterVec
	Occurrences      prometheus.Counter
	TruncatedRecords prometheus.Counter
	DecodeSeconds    prometheus.Histogram
	Uploads          *prometheus.CounterVec
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// NewMetrics 创建并注册一组新的指标
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netemu",
			Name:      "decodes_total",
			Help:      "Number of decoded configuration buffers by strategy.",
		}, []string{"strategy"}),
		Occurrences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netemu",
			Name:      "occurrences_total",
			Help:      "Number of decoded command occurrences.",
		}),
		TruncatedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netemu",
			Name:      "truncated_records_total",
			Help:      "Number of command occurrences dropped because the buffer ended.",
		}),
		DecodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netemu",
			Name:      "decode_seconds",
			Help:      "Time spent decoding one buffer.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netemu",
			Name:      "uploads_total",
			Help:      "Number of processed uploads by result.",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(m.Decodes, m.Occurrences, m.TruncatedRecords, m.DecodeSeconds, m.Uploads)
	return m
}

// GetMetrics 返回进程级的指标实例
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics()
	})
	return metrics
}

// ObserveDecode 记录一次解码的耗时与结果
func (m *Metrics) ObserveDecode(strategy string, occurrences, truncated int, elapsed time.Duration) {
	m.Decodes.WithLabelValues(strategy).Inc()
	m.Occurrences.Add(float64(occurrences))
	m.TruncatedRecords.Add(float64(truncated))
	m.DecodeSeconds.Observe(elapsed.Seconds())
}

// IncUpload 记录一次上传处理结果 (ok|error)
func (m *Metrics) IncUpload(result string) {
	m.Uploads.WithLabelValues(result).Inc()
}
