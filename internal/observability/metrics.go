package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NewRegistry returns the registry for parkway's own collectors. It is served
// next to prometheus.DefaultGatherer, which already carries the Go runtime,
// process and gorm collectors, so none of those are registered here.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
