package metrics

import (
	"net/http"

	"github.com/nspcc-dev/neo-lottery/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewPrometheusService creates a new service for gathering prometheus metrics
// from the given gatherer, see
// https://prometheus.io/docs/guides/go-application.
func NewPrometheusService(cfg config.BasicService, g prometheus.Gatherer, log *zap.Logger) *Service {
	handler := http.NewServeMux()
	handler.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	addrs := cfg.GetAddresses()
	srvs := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		srvs[i] = &http.Server{
			Addr:    addr,
			Handler: handler, // share metrics between multiple prometheus handlers
		}
	}
	return NewService("Prometheus", srvs, cfg, log)
}
