package delivery

import (
	"time"

	"github.com/rs/zerolog/log"
)

// governor watches the observed inter-send gap within one job and
// multiplicatively escalates the pacing delay when sends arrive faster
// than the safe threshold. State is per job: escalation never leaks into
// other jobs or sessions.
type governor struct {
	cfg Config

	lastSend      time.Time
	extraDelay    time.Duration
	consecutiveOK int

	now func() time.Time
}

func newGovernor(cfg Config) *governor {
	return &governor{cfg: cfg, now: time.Now}
}

// observe records one completed send and updates the escalation state.
func (g *governor) observe() {
	now := g.now()
	defer func() { g.lastSend = now }()

	if g.lastSend.IsZero() {
		return
	}

	gap := now.Sub(g.lastSend)
	if gap < g.cfg.MinSendInterval {
		g.consecutiveOK = 0
		if g.extraDelay == 0 {
			g.extraDelay = g.cfg.MinSendInterval
		} else {
			g.extraDelay = time.Duration(float64(g.extraDelay) * g.cfg.BackoffMultiplier)
		}
		if g.extraDelay > g.cfg.MaxAllowedDelay {
			g.extraDelay = g.cfg.MaxAllowedDelay
		}
		log.Debug().Dur("extraDelay", g.extraDelay).Msg("anti-spam backoff escalated")
		return
	}

	if g.extraDelay > 0 {
		g.consecutiveOK++
		if g.consecutiveOK >= g.cfg.BackoffResetAfter {
			g.extraDelay = 0
			g.consecutiveOK = 0
			log.Debug().Msg("anti-spam backoff reset")
		}
	}
}

// pace returns the effective delay to wait before the next unit: the
// configured base, stretched by any active escalation.
func (g *governor) pace(base time.Duration) time.Duration {
	if g.extraDelay > base {
		return g.extraDelay
	}
	return base
}
