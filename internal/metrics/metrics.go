// Package metrics 暴露字体缓存流程的 Prometheus 指标。
// 指标注册在独立的 Registry 上，避免测试或多个实例之间互相冲突。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 汇总缓存流程指标。nil Recorder 的所有方法都是空操作。
type Recorder struct {
	registry  *prometheus.Registry
	workflows *prometheus.CounterVec
	variants  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	bytes     prometheus.Counter
	retries   prometheus.Counter
	inFlight  prometheus.Gauge
	fonts     prometheus.Gauge
}

// NewRecorder 创建 Recorder 并注册进程级 collector。
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		workflows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fonthub_workflows_total",
			Help: "Completed cache workflows by source and terminal result",
		}, []string{"source", "result"}),
		variants: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fonthub_variants_total",
			Help: "Per-variant outcomes by source and result",
		}, []string{"source", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fonthub_workflow_duration_seconds",
			Help:    "Wall time of cache workflows",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"source"}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "fonthub_written_bytes_total",
			Help: "Bytes of font data written to the cache",
		}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "fonthub_upstream_retries_total",
			Help: "Retried upstream requests",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fonthub_workflows_in_flight",
			Help: "Cache workflows currently running",
		}),
		fonts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fonthub_registry_fonts",
			Help: "Font families currently in the registry",
		}),
	}
}

// Handler 返回 Prometheus exposition handler。
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层 Registry，便于测试直接 Gather。
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WorkflowStarted 增加运行中的流程数，返回的函数在流程结束时调用。
func (r *Recorder) WorkflowStarted() func() {
	if r == nil {
		return func() {}
	}
	r.inFlight.Inc()
	return r.inFlight.Dec
}

// WorkflowFinished 记录一次流程的结果与耗时。
func (r *Recorder) WorkflowFinished(source, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.workflows.WithLabelValues(source, result).Inc()
	r.duration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// Variant 记录单个变体的结果，written 为写入的字节数。
func (r *Recorder) Variant(source string, ok bool, written int64) {
	if r == nil {
		return
	}
	result := "failed"
	if ok {
		result = "written"
		r.bytes.Add(float64(written))
	}
	r.variants.WithLabelValues(source, result).Inc()
}

// Retry 记录一次上游重试。
func (r *Recorder) Retry() {
	if r == nil {
		return
	}
	r.retries.Inc()
}

// SetFonts 更新注册表中的字体族数量。
func (r *Recorder) SetFonts(n int) {
	if r == nil {
		return
	}
	r.fonts.Set(float64(n))
}
