package pipeline

import (
	"context"
	"time"

	"unshub/internal/storage"
	"unshub/pkg/logging"
)

// runMaintenance owns the two periodic chores: refreshing the verified
// topics snapshot and applying the retention policy.
func (p *Pipeline) runMaintenance(ctx context.Context) error {
	refresh := time.NewTicker(p.cfg.VerifiedRefreshInterval.Duration())
	defer refresh.Stop()
	cleanup := time.NewTicker(p.cfg.CleanupInterval.Duration())
	defer cleanup.Stop()

	for {
		select {
		case <-refresh.C:
			p.refreshVerified(ctx)
		case <-cleanup.C:
			p.runCleanup(ctx)
		case <-p.quit:
			return nil
		}
	}
}

// refreshVerified reloads the verified topic names and swaps the snapshot.
// On failure the previous snapshot stays in place.
func (p *Pipeline) refreshVerified(ctx context.Context) {
	topics, err := p.topics.VerifiedTopics(ctx)
	if err != nil {
		logging.Error("Pipeline", err, "Failed to refresh verified topics, keeping previous snapshot")
		return
	}
	set := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		set[topic] = struct{}{}
	}
	p.verified.Store(&set)
	logging.Debug("Pipeline", "Verified topics snapshot refreshed, Count=%d", len(set))
}

// runCleanup applies the retention policy through the stores' optional
// capabilities. Backends without them simply retain everything.
func (p *Pipeline) runCleanup(ctx context.Context) {
	now := time.Now().UTC()

	if cleaner, ok := p.realtime.(storage.Cleaner); ok {
		removed, err := cleaner.CleanupOldData(ctx, now.Add(-p.cfg.RealtimeRetention.Duration()))
		if err != nil {
			logging.Error("Pipeline", err, "Realtime cleanup failed")
		} else if removed > 0 {
			logging.Info("Pipeline", "Removed %d realtime entries past retention", removed)
		}
	}

	if archiver, ok := p.historical.(storage.Archiver); ok {
		archived, err := archiver.Archive(ctx, now.Add(-p.cfg.HistoricalRetention.Duration()))
		if err != nil {
			logging.Error("Pipeline", err, "Historical archive failed")
		} else if archived > 0 {
			logging.Info("Pipeline", "Archived %d historical datapoints past retention", archived)
		}
	}
}
