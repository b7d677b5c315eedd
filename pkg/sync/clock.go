// ABOUTME: Caller-clock to device-clock correlation with drift tracking
// ABOUTME: Re-anchors on every observation and watches the residual for clock jumps
package sync

import (
	"log/slog"
	"sync"
	"time"
)

// Quality represents how well the two clocks currently agree
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "lost"
	}
}

const (
	// Residuals above this mean the clocks disagree audibly
	degradedResidual = 2 * time.Millisecond

	// Residuals above this are treated as a clock jump, not drift
	jumpResidual = 50 * time.Millisecond

	// Without observations for this long the correlation is stale
	staleAfter = 5 * time.Second
)

// Correlator maps caller wall-clock times onto the audio device clock.
//
// Every Observe re-anchors the mapping on the latest (caller, device) pair,
// so long sessions never accumulate drift. Between anchors it tracks how the
// device clock runs against the caller clock to report drift and quality.
type Correlator struct {
	mu            sync.RWMutex
	callerRef     time.Time
	deviceRef     time.Duration
	drift         float64 // device seconds gained per caller second
	residual      time.Duration
	quality       Quality
	lastSync      time.Time
	sampleCount   int
	jumps         int
	smoothingRate float64
	logger        *slog.Logger
}

// NewCorrelator creates a correlator with no observations
func NewCorrelator(logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		smoothingRate: 0.1, // 10% weight to new samples
		quality:       QualityLost,
		logger:        logger,
	}
}

// Observe anchors the mapping on callerNow paired with deviceNow
func (c *Correlator) Observe(callerNow time.Time, deviceNow time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	defer func() {
		c.callerRef = callerNow
		c.deviceRef = deviceNow
		c.lastSync = time.Now()
		c.sampleCount++
	}()

	if c.sampleCount == 0 {
		c.quality = QualityGood
		c.logger.Debug("clock correlation established", "device_time", deviceNow)
		return
	}

	elapsed := callerNow.Sub(c.callerRef)
	predicted := c.deviceRef + elapsed
	residual := deviceNow - predicted
	c.residual = residual

	if residual > jumpResidual || residual < -jumpResidual {
		c.jumps++
		c.drift = 0
		c.quality = QualityDegraded
		c.logger.Warn("clock jump detected", "residual", residual, "jumps", c.jumps)
		return
	}

	if elapsed > 0 {
		rate := float64(residual) / float64(elapsed)
		c.drift += c.smoothingRate * (rate - c.drift)
	}

	if residual > degradedResidual || residual < -degradedResidual {
		c.quality = QualityDegraded
	} else {
		c.quality = QualityGood
	}
}

// ToDevice converts a caller time to the device clock using the latest anchor
func (c *Correlator) ToDevice(t time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceRef + t.Sub(c.callerRef)
}

// ToCaller converts a device time to the caller clock using the latest anchor
func (c *Correlator) ToCaller(d time.Duration) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.callerRef.Add(d - c.deviceRef)
}

// Stats is a snapshot of correlation state
type Stats struct {
	Drift    float64
	Residual time.Duration
	Quality  Quality
	Samples  int
	Jumps    int
}

// GetStats returns correlation statistics
func (c *Correlator) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Drift:    c.drift,
		Residual: c.residual,
		Quality:  c.quality,
		Samples:  c.sampleCount,
		Jumps:    c.jumps,
	}
}

// CheckQuality marks the correlation lost when it has not been refreshed
// recently
func (c *Correlator) CheckQuality() Quality {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sampleCount > 0 && time.Since(c.lastSync) > staleAfter {
		c.quality = QualityLost
	}
	return c.quality
}
