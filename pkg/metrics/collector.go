package metrics

import (
	"context"
	"time"
)

// StatusFunc samples the current competition status value
// (0 unstarted, 1 active, 2 finished).
type StatusFunc func(ctx context.Context) (float64, error)

// Collector periodically samples competition status into the gauges
type Collector struct {
	competition string
	sample      StatusFunc
	stopCh      chan struct{}
}

// NewCollector creates a new status collector for one competition
func NewCollector(competition string, sample StatusFunc) *Collector {
	return &Collector{
		competition: competition,
		sample:      sample,
		stopCh:      make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	value, err := c.sample(ctx)
	if err != nil {
		UpdateComponent("broker", false, err.Error())
		return
	}
	UpdateComponent("broker", true, "connected")
	CompetitionStatus.WithLabelValues(c.competition).Set(value)
}
