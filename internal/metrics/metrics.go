// Package metrics exposes Prometheus counters for membership operations and the
// lifecycle sweep.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MembershipOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatherings_membership_operations_total",
		Help: "Membership operations by operation and result code.",
	}, []string{"op", "result"})

	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatherings_sweep_runs_total",
		Help: "Lifecycle sweeps executed.",
	})

	SweepClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatherings_sweep_closed_total",
		Help: "Gatherings closed by the lifecycle sweep.",
	})

	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatherings_sweep_errors_total",
		Help: "Lifecycle sweeps that failed.",
	})
)

// ObserveOp records the outcome of a membership operation under its error code,
// or "ok" on success.
func ObserveOp(op string, result string) {
	MembershipOps.WithLabelValues(op, result).Inc()
}

// Handler serves the default registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
