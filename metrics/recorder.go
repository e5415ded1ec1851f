package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matt-g-everett/frametx/config"
	"github.com/matt-g-everett/frametx/stream"
)

const namespace = "frametx"

// Recorder collects pacing and delivery metrics in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	rendered        prometheus.Counter
	late            prometheus.Counter
	handedOff       prometheus.Counter
	dropped         prometheus.Counter
	delivered       prometheus.Counter
	renderDuration  prometheus.Histogram
	deliveryLatency prometheus.Histogram
	frameWait       prometheus.Histogram
	requests        *prometheus.CounterVec
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rendered_total",
			Help:      "Frames rendered by the pacer.",
		}),
		late: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_late_total",
			Help:      "Frames whose rendering finished after their intended time.",
		}),
		handedOff: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_handed_off_total",
			Help:      "Frames taken by a waiting receiver.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames discarded because no receiver was waiting.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_delivered_total",
			Help:      "Frames encoded and sent to a requester.",
		}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time taken to render one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		deliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_latency_milliseconds",
			Help:      "Send timestamp minus intended timestamp of delivered frames.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 33, 50, 100, 250, 1000},
		}),
		frameWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_wait_seconds",
			Help:      "Time a frame request spent waiting for the pacer.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests by path and status code.",
		}, []string{"path", "code"}),
	}

	r.registry.MustRegister(
		r.rendered, r.late, r.handedOff, r.dropped, r.delivered,
		r.renderDuration, r.deliveryLatency, r.frameWait, r.requests,
	)
	return r
}

// FrameRendered implements stream.Stats.
func (r *Recorder) FrameRendered(took time.Duration, late bool) {
	r.rendered.Inc()
	r.renderDuration.Observe(took.Seconds())
	if late {
		r.late.Inc()
	}
}

// FrameHandedOff implements stream.Stats.
func (r *Recorder) FrameHandedOff() { r.handedOff.Inc() }

// FrameDropped implements stream.Stats.
func (r *Recorder) FrameDropped() { r.dropped.Inc() }

// Request counts a response by path and status.
func (r *Recorder) Request(path string, status int) {
	r.requests.WithLabelValues(path, strconv.Itoa(status)).Inc()
}

// FrameServed records a delivered frame.
func (r *Recorder) FrameServed(wait time.Duration, w *stream.WireFrame) {
	r.delivered.Inc()
	r.frameWait.Observe(wait.Seconds())
	r.deliveryLatency.Observe(float64(w.SendTimestamp - w.Timestamp))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes the metrics on their own listener until ctx is done. It does
// nothing when metrics are disabled.
func (r *Recorder) Serve(ctx context.Context, cfg config.Metrics) error {
	if !cfg.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, r.Handler())
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	config.Logger("metrics").WithField("addr", cfg.Addr).Info("Serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
