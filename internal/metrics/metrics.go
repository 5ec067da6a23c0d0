// Package metrics exposes Prometheus metrics for the registries, the map
// hub and marker clicks on its own registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/registry"
)

// Collector holds the markermap metrics. It is a registry.Sink and a
// click.Observer.
type Collector struct {
	reg *prometheus.Registry

	MarkersAdded *prometheus.CounterVec // kind
	StyleChanges *prometheus.CounterVec // kind, status
	Clicks       *prometheus.CounterVec // kind
	Selections   *prometheus.CounterVec // result: delivered|failed

	MapClients prometheus.Gauge
	MapDropped prometheus.Counter
	Commands   *prometheus.CounterVec // result: ok|error
}

// NewCollector creates the collector. Each registry contributes a
// markermap_markers{kind} gauge read at scrape time.
func NewCollector(registries ...*registry.Registry) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		MarkersAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markermap_markers_added_total",
			Help: "Markers registered, including overwrites.",
		}, []string{"kind"}),
		StyleChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markermap_style_changes_total",
			Help: "Styles applied to markers.",
		}, []string{"kind", "status"}),
		Clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markermap_clicks_total",
			Help: "Marker clicks received from map views.",
		}, []string{"kind"}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markermap_host_selections_total",
			Help: "Event selections forwarded to the host.",
		}, []string{"result"}),
		MapClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "markermap_map_clients",
			Help: "Connected map views.",
		}),
		MapDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "markermap_map_messages_dropped_total",
			Help: "Messages dropped for slow map views.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markermap_http_commands_total",
			Help: "Commands received over HTTP.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.MarkersAdded, c.StyleChanges, c.Clicks, c.Selections,
		c.MapClients, c.MapDropped, c.Commands,
	)

	for _, r := range registries {
		if r == nil {
			continue
		}
		r := r
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "markermap_markers",
			Help:        "Registered markers.",
			ConstLabels: prometheus.Labels{"kind": string(r.Kind())},
		}, func() float64 { return float64(r.Len()) }))
	}

	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

func (c *Collector) MarkerAdded(m marker.Marker) {
	c.MarkersAdded.WithLabelValues(string(m.Kind)).Inc()
}

func (c *Collector) StyleApplied(ch registry.Change) {
	c.StyleChanges.WithLabelValues(string(ch.Kind), string(ch.Status)).Inc()
}

func (c *Collector) MarkerClicked(kind marker.Kind, _ string) {
	c.Clicks.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) MarkerSelected(_ string, _ int, err error) {
	if err != nil {
		c.Selections.WithLabelValues("failed").Inc()
		return
	}
	c.Selections.WithLabelValues("delivered").Inc()
}

// ClientConnected and ClientDisconnected track map views.
func (c *Collector) ClientConnected()    { c.MapClients.Inc() }
func (c *Collector) ClientDisconnected() { c.MapClients.Dec() }

// MessageDropped counts a message not delivered to a slow map view.
func (c *Collector) MessageDropped() { c.MapDropped.Inc() }

// CommandHandled counts an HTTP command by outcome.
func (c *Collector) CommandHandled(err error) {
	if err != nil {
		c.Commands.WithLabelValues("error").Inc()
		return
	}
	c.Commands.WithLabelValues("ok").Inc()
}
