package metrics

import (
	"time"

	"media-preparser/internal/logging"
)

// StatsProvider reports live counters that are sampled rather than
// updated on every event.
type StatsProvider interface {
	Stats() Stats
}

// Stats is one sample of preparser state.
type Stats struct {
	Pending int
	Queued  map[string]int
	Running map[string]int
}

// Collector periodically samples a StatsProvider into gauges.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stopChan chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop ends the collection loop
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}

	s := c.provider.Stats()
	RequestsPending.Set(float64(s.Pending))
	for name, n := range s.Queued {
		ExecutorQueueDepth.WithLabelValues(name).Set(float64(n))
	}
	for name, n := range s.Running {
		ExecutorActiveWorkers.WithLabelValues(name).Set(float64(n))
	}

	logging.Debug("Metrics collected: pending=%d queued=%v running=%v", s.Pending, s.Queued, s.Running)
}
