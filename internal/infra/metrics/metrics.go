// Package metrics exports playback events as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osa030/segue/internal/app/playback"
)

const namespace = "segue"

// Collector is a playback.Sink that records events on its own registry.
type Collector struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	trackChanges  prometheus.Counter
	tracksAdded   prometheus.Counter
	failures      prometheus.Counter
	state         *prometheus.GaugeVec
	queuePosition prometheus.Gauge
}

// NewCollector creates a collector with Go runtime and process metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "playback_events_total",
				Help:      "Playback events published, by type",
			},
			[]string{"type"},
		),
		trackChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "track_changes_total",
			Help:      "Times the current track changed or restarted",
		}),
		tracksAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_added_total",
			Help:      "Tracks appended to the queue",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "track_failures_total",
			Help:      "Track handle failures",
		}),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "playback_state",
				Help:      "1 for the current playback state, 0 otherwise",
			},
			[]string{"state"},
		),
		queuePosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_position",
			Help:      "Current queue cursor, -1 when unset",
		}),
	}

	c.registry.MustRegister(
		c.events,
		c.trackChanges,
		c.tracksAdded,
		c.failures,
		c.state,
		c.queuePosition,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c.queuePosition.Set(-1)
	c.setState(playback.StateIdle)
	return c
}

// Publish records the event. It never blocks.
func (c *Collector) Publish(e playback.Event) {
	c.events.WithLabelValues(e.Type.String()).Inc()

	switch e.Type {
	case playback.EventTrackChanged:
		c.trackChanges.Inc()
	case playback.EventTrackAdded:
		c.tracksAdded.Inc()
	case playback.EventTracksAdded:
		c.tracksAdded.Add(float64(len(e.TrackIDs)))
	}

	c.setState(e.State)
	c.queuePosition.Set(float64(e.Position))
}

// RecordFailure counts a track handle failure.
func (c *Collector) RecordFailure(error) {
	c.failures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) setState(s playback.State) {
	for _, st := range []playback.State{playback.StateIdle, playback.StatePlaying, playback.StatePaused, playback.StateFadingIn} {
		v := 0.0
		if st == s {
			v = 1
		}
		c.state.WithLabelValues(st.String()).Set(v)
	}
}

var _ playback.Sink = (*Collector)(nil)
