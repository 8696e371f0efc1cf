package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wavelink/bridge-server-go/internal/persist"
	"github.com/wavelink/bridge-server-go/internal/registry"
)

// SnapshotJob periodically sweeps every active session into the store and
// reconciles rows left behind by destroyed sessions. Single-session
// transitions take the SaveOne fast path; this job is the safety net.
type SnapshotJob struct {
	registry  *registry.Registry
	persister *persist.Service
	interval  time.Duration
	done      chan struct{}
}

func NewSnapshotJob(reg *registry.Registry, persister *persist.Service, interval time.Duration) *SnapshotJob {
	return &SnapshotJob{
		registry:  reg,
		persister: persister,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *SnapshotJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("snapshot job started")
}

func (j *SnapshotJob) Stop() {
	close(j.done)
	log.Info().Msg("snapshot job stopped")
}

func (j *SnapshotJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SnapshotJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessions := j.registry.ListAll()
	saved, err := j.persister.SaveAll(ctx, sessions)
	if err != nil {
		log.Error().Err(err).Msg("snapshot sweep failed")
	} else if saved > 0 {
		log.Info().Int("saved", saved).Msg("snapshot sweep completed")
	}

	pruned, err := j.persister.PruneDestroyed(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune destroyed session records")
	} else if pruned > 0 {
		log.Info().Int64("pruned", pruned).Msg("pruned destroyed session records")
	}
}
