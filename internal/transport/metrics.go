package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// packBytesTotal and objectsInstalledTotal are exported via the default
// registerer so a daemon embedding this package only needs to mount
// promhttp.Handler() once, without wiring per-instance collectors through.
var (
	packBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wit",
		Subsystem: "transport",
		Name:      "pack_bytes_total",
		Help:      "Total bytes of packfile data transferred over Smart-HTTP, by direction.",
	}, []string{"direction"})

	objectsInstalledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wit",
		Subsystem: "transport",
		Name:      "objects_installed_total",
		Help:      "Total objects installed into repositories from received packfiles.",
	})
)
