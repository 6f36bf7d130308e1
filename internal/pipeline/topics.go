package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"unshub/internal/api"
	"unshub/internal/events"
	"unshub/internal/storage"
	"unshub/pkg/logging"
)

// topicDiscovery is one unseen topic waiting for its configuration row.
type topicDiscovery struct {
	topic      string
	sourceType string
	firstSeen  time.Time
}

// runTopicTask is the single consumer of newTopicQueue. It exits when the
// batcher closes the queue at the end of its drain.
func (p *Pipeline) runTopicTask(ctx context.Context) error {
	for {
		select {
		case d, ok := <-p.newTopicQueue:
			if !ok {
				return nil
			}
			p.handleDiscoveries(ctx, d)
		case <-p.quit:
			return p.drainTopics(ctx)
		}
	}
}

// drainTopics keeps persisting discoveries until the batcher closes the
// queue or the drain deadline hits.
func (p *Pipeline) drainTopics(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, p.cfg.DrainTimeout.Duration())
	defer cancel()

	for {
		select {
		case d, ok := <-p.newTopicQueue:
			if !ok {
				return nil
			}
			p.handleDiscoveries(drainCtx, d)
		case <-drainCtx.Done():
			remaining := len(p.newTopicQueue)
			if remaining == 0 {
				return nil
			}
			logging.Warn("Pipeline", "Topic discovery drain timed out, Remaining=%d", remaining)
			return fmt.Errorf("topic discovery drain timed out with %d topics pending", remaining)
		}
	}
}

// handleDiscoveries sweeps waiting discoveries into one chunk, persists and
// announces each, and publishes a single BulkTopicsAdded when the chunk
// carried more than one new topic. A persist failure unmarks the topic as
// known so a later datapoint retries the discovery.
func (p *Pipeline) handleDiscoveries(ctx context.Context, first topicDiscovery) {
	chunk := make([]topicDiscovery, 0, discoveryChunkSize)
	chunk = append(chunk, first)
collect:
	for len(chunk) < discoveryChunkSize {
		select {
		case d, ok := <-p.newTopicQueue:
			if !ok {
				break collect
			}
			chunk = append(chunk, d)
		default:
			break collect
		}
	}

	added := make([]events.TopicAdded, 0, len(chunk))
	for _, d := range chunk {
		evt, err := p.persistTopic(ctx, d)
		if err != nil {
			logging.Error("Pipeline", err, "Failed to persist topic %s, discovery deferred", d.topic)
			p.forgetTopic(d.topic)
			continue
		}
		p.bus.Publish(evt)
		p.markAnnounced(d.topic)
		added = append(added, evt)
		p.counters.topicsDiscovered.Add(1)
		p.metrics.topics.Add(ctx, 1)
	}

	if len(added) > 1 {
		p.bus.Publish(events.BulkTopicsAdded{Items: added, Source: eventSource})
	}
	if len(added) > 0 {
		logging.Debug("Pipeline", "Announced %d new topics", len(added))
	}
}

// persistTopic ensures a TopicConfiguration row exists for the discovery
// and returns the TopicAdded event to publish. A row surviving from an
// earlier process run is reused as is, so its path assignment is kept.
func (p *Pipeline) persistTopic(ctx context.Context, d topicDiscovery) (events.TopicAdded, error) {
	existing, err := p.topics.GetByTopic(ctx, d.topic)
	switch {
	case err == nil:
		return events.TopicAdded{
			Topic:     existing.Topic,
			Path:      existing.Path,
			Source:    d.sourceType,
			CreatedAt: existing.CreatedAt,
		}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return events.TopicAdded{}, fmt.Errorf("failed to look up topic %s: %w", d.topic, err)
	}

	cfg := api.TopicConfiguration{
		ID:         uuid.NewString(),
		Topic:      d.topic,
		SourceType: d.sourceType,
		IsVerified: false,
		IsActive:   true,
		CreatedAt:  d.firstSeen,
		ModifiedAt: d.firstSeen,
	}
	if err := p.topics.Save(ctx, cfg); err != nil {
		return events.TopicAdded{}, fmt.Errorf("failed to save topic %s: %w", d.topic, err)
	}
	return events.TopicAdded{
		Topic:     d.topic,
		Source:    d.sourceType,
		CreatedAt: d.firstSeen,
	}, nil
}

func (p *Pipeline) markAnnounced(topic string) {
	p.mu.Lock()
	p.announced[topic] = struct{}{}
	p.mu.Unlock()
}

func (p *Pipeline) forgetTopic(topic string) {
	p.mu.Lock()
	delete(p.known, topic)
	p.mu.Unlock()
}
