// Package metrics wraps Prometheus counters/gauges/averagers behind small
// interfaces: every coupling
// scheme gets a Registry it can register per-window iteration counts and
// convergence gauges into without every call site importing prometheus
// directly.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Averager tracks a running average (e.g. mean iterations per window).
type Averager interface {
	Observe(value float64)
	Read() float64
}

type averager struct {
	mu    sync.RWMutex
	sum   float64
	count float64

	promCount prometheus.Counter
	promSum   prometheus.Gauge
}

func newAverager(name, help string, reg prometheus.Registerer) Averager {
	a := &averager{}
	if reg == nil {
		return a
	}
	a.promCount = prometheus.NewCounter(prometheus.CounterOpts{Name: name + "_count", Help: "Total # of observations of " + help})
	a.promSum = prometheus.NewGauge(prometheus.GaugeOpts{Name: name + "_sum", Help: "Sum of " + help})
	_ = reg.Register(a.promCount)
	_ = reg.Register(a.promSum)
	return a
}

func (a *averager) Observe(value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sum += value
	a.count++
	if a.promCount != nil {
		a.promCount.Inc()
	}
	if a.promSum != nil {
		a.promSum.Add(value)
	}
}

func (a *averager) Read() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.count == 0 {
		return 0
	}
	return a.sum / a.count
}

// Counter tracks a monotonically increasing integer count (e.g. total
// iterations across all windows).
type Counter interface {
	Inc()
	Add(delta int64)
	Read() int64
}

type counter struct {
	mu    sync.RWMutex
	value int64
	prom  prometheus.Counter
}

func newCounter(name, help string, reg prometheus.Registerer) Counter {
	c := &counter{}
	if reg == nil {
		return c
	}
	c.prom = prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	_ = reg.Register(c.prom)
	return c
}

func (c *counter) Inc() { c.Add(1) }

func (c *counter) Add(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
	if c.prom != nil {
		c.prom.Add(float64(delta))
	}
}

func (c *counter) Read() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Gauge tracks a value that can move up or down (e.g. current QN column
// count, current residual norm).
type Gauge interface {
	Set(value float64)
	Add(delta float64)
	Read() float64
}

type gauge struct {
	mu    sync.RWMutex
	value float64
	prom  prometheus.Gauge
}

func newGauge(name, help string, reg prometheus.Registerer) Gauge {
	g := &gauge{}
	if reg == nil {
		return g
	}
	g.prom = prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	_ = reg.Register(g.prom)
	return g
}

func (g *gauge) Set(value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = value
	if g.prom != nil {
		g.prom.Set(value)
	}
}

func (g *gauge) Add(delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value += delta
	if g.prom != nil {
		g.prom.Add(delta)
	}
}

func (g *gauge) Read() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Registry creates and tracks named metrics for one participant, backed by
// a Prometheus registry when one is supplied.
type Registry struct {
	mu        sync.RWMutex
	reg       prometheus.Registerer
	counters  map[string]Counter
	gauges    map[string]Gauge
	averagers map[string]Averager
}

// NewRegistry creates a Registry. reg may be nil, in which case metrics
// are tracked in-process only (used by tests).
func NewRegistry(reg prometheus.Registerer) *Registry {
	return &Registry{
		reg:       reg,
		counters:  make(map[string]Counter),
		gauges:    make(map[string]Gauge),
		averagers: make(map[string]Averager),
	}
}

func (r *Registry) NewCounter(name, help string) Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := newCounter(name, help, r.reg)
	r.counters[name] = c
	return c
}

func (r *Registry) NewGauge(name, help string) Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := newGauge(name, help, r.reg)
	r.gauges[name] = g
	return g
}

func (r *Registry) NewAverager(name, help string) Averager {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := newAverager(name, help, r.reg)
	r.averagers[name] = a
	return a
}
