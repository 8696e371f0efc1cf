package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// governorClock drives the governor with scripted send timestamps.
type governorClock struct {
	t time.Time
}

func (c *governorClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestGovernor(cfg Config) (*governor, *governorClock) {
	clock := &governorClock{t: time.Unix(1700000000, 0)}
	g := newGovernor(cfg)
	g.now = func() time.Time { return clock.t }
	return g, clock
}

func governorConfig() Config {
	cfg := DefaultConfig()
	cfg.MinSendInterval = 500 * time.Millisecond
	cfg.BackoffMultiplier = 2.0
	cfg.MaxAllowedDelay = 4 * time.Second
	cfg.BackoffResetAfter = 3
	return cfg
}

func TestGovernorEscalation(t *testing.T) {
	g, clock := newTestGovernor(governorConfig())

	// First send never escalates: there is no prior gap to measure.
	g.observe()
	assert.Equal(t, time.Duration(0), g.extraDelay)

	// A fast gap starts escalation at the minimum interval.
	clock.advance(100 * time.Millisecond)
	g.observe()
	assert.Equal(t, 500*time.Millisecond, g.extraDelay)

	// Each further fast send doubles the delay.
	clock.advance(100 * time.Millisecond)
	g.observe()
	assert.Equal(t, time.Second, g.extraDelay)

	clock.advance(100 * time.Millisecond)
	g.observe()
	assert.Equal(t, 2*time.Second, g.extraDelay)
}

func TestGovernorCap(t *testing.T) {
	g, clock := newTestGovernor(governorConfig())

	g.observe()
	for i := 0; i < 10; i++ {
		clock.advance(time.Millisecond)
		g.observe()
	}
	assert.Equal(t, 4*time.Second, g.extraDelay, "escalation is capped")
}

func TestGovernorReset(t *testing.T) {
	g, clock := newTestGovernor(governorConfig())

	g.observe()
	clock.advance(time.Millisecond)
	g.observe()
	assert.Equal(t, 500*time.Millisecond, g.extraDelay)

	// Two on-pace sends are not enough to reset.
	clock.advance(time.Second)
	g.observe()
	clock.advance(time.Second)
	g.observe()
	assert.Equal(t, 500*time.Millisecond, g.extraDelay)

	// The third consecutive on-pace send clears the escalation.
	clock.advance(time.Second)
	g.observe()
	assert.Equal(t, time.Duration(0), g.extraDelay)
}

func TestGovernorResetStreakBrokenByFastSend(t *testing.T) {
	g, clock := newTestGovernor(governorConfig())

	g.observe()
	clock.advance(time.Millisecond)
	g.observe()

	clock.advance(time.Second)
	g.observe()
	clock.advance(time.Second)
	g.observe()

	// A fast send resets the streak and escalates again.
	clock.advance(time.Millisecond)
	g.observe()
	assert.Equal(t, time.Second, g.extraDelay)
	assert.Equal(t, 0, g.consecutiveOK)
}

func TestGovernorPace(t *testing.T) {
	g, _ := newTestGovernor(governorConfig())

	assert.Equal(t, 3*time.Second, g.pace(3*time.Second), "no escalation uses the base delay")

	g.extraDelay = 4 * time.Second
	assert.Equal(t, 4*time.Second, g.pace(3*time.Second), "escalation stretches short delays")
	assert.Equal(t, 5*time.Second, g.pace(5*time.Second), "longer bases win over escalation")
}
