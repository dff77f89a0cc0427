package rangeassign

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles Prometheus metrics about solves. A nil *Collector is
// valid and records nothing.
type Collector struct {
	Solves         *prometheus.CounterVec
	LazyCuts       prometheus.Counter
	Incumbents     prometheus.Counter
	SolveDurations prometheus.Histogram
}

// NewCollector registers the solve metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice on the same
// registry returns the existing metrics.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	solves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dra_solves_total",
		Help: "Finished range assignment solves, labeled by engine status and whether a solution was found.",
	}, []string{"status", "solution"})
	if err := reg.Register(solves); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		if solves, ok = are.ExistingCollector.(*prometheus.CounterVec); !ok {
			return nil, fmt.Errorf("collector dra_solves_total already registered with incompatible type")
		}
	}
	lazy, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dra_lazy_cuts_total",
		Help: "Connectivity cuts added as lazy constraints.",
	}), "dra_lazy_cuts_total")
	if err != nil {
		return nil, err
	}
	incumbents, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dra_connected_incumbents_total",
		Help: "Incumbent candidates whose arcs already connected all terminals.",
	}), "dra_connected_incumbents_total")
	if err != nil {
		return nil, err
	}
	durations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dra_solve_duration_seconds",
		Help:    "Wall clock time of a solve in seconds.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
	})
	if err := reg.Register(durations); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		if durations, ok = are.ExistingCollector.(prometheus.Histogram); !ok {
			return nil, fmt.Errorf("collector dra_solve_duration_seconds already registered with incompatible type")
		}
	}
	return &Collector{Solves: solves, LazyCuts: lazy, Incumbents: incumbents, SolveDurations: durations}, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func (c *Collector) cuts(n int) {
	if c == nil {
		return
	}
	if n == 0 {
		c.Incumbents.Inc()
		return
	}
	c.LazyCuts.Add(float64(n))
}

func (c *Collector) solved(status string, found bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Solves.WithLabelValues(status, fmt.Sprintf("%t", found)).Inc()
	c.SolveDurations.Observe(elapsed.Seconds())
}
