// Package metrics owns the Prometheus registry served on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

type Provider struct {
	reg *prometheus.Registry
}

// New builds a private registry with the Go runtime, process and build info collectors.
func New(build BuildInfo) *Provider {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	info := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version", "revision", "branch", "build_date"},
	)
	reg.MustRegister(info)
	if build.Version == "" {
		build.Version = "dev"
	}
	info.WithLabelValues(build.Version, build.Revision, build.Branch, build.BuildDate).Set(1)

	return &Provider{reg: reg}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
