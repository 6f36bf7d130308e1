package automap

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"unshub/internal/api"
	"unshub/internal/config"
	"unshub/internal/events"
	"unshub/internal/storage"
	"unshub/pkg/logging"
)

// AutoMapper resolves discovered topics against the namespace tree and
// persists successful mappings. It implements api.AutoMapperHandler and
// services.Service.
type AutoMapper struct {
	topics storage.TopicConfigurationRepository
	bus    *events.Bus
	cfg    config.AutoMapperConfig

	snap       atomic.Pointer[snapshot]
	generation atomic.Uint64

	// pending remembers unmapped topics until the next cache rebuild. The
	// set is bounded; overflow evicts the least recently added topic.
	pending *lru.Cache[string, struct{}]

	hits   atomic.Int64
	misses atomic.Int64

	// subs and opCancel are touched only from Start and Stop, which the
	// lifecycle registry never runs concurrently.
	subs     []*events.Subscription
	opCancel context.CancelFunc

	metrics *autoMapperMetrics
}

// New creates an auto-mapper over the given topic repository. A zero or
// negative pending limit falls back to the documented default.
func New(topics storage.TopicConfigurationRepository, bus *events.Bus, cfg config.AutoMapperConfig) *AutoMapper {
	if cfg.PendingLimit <= 0 {
		cfg.PendingLimit = 4096
	}
	pending, _ := lru.New[string, struct{}](cfg.PendingLimit)

	m := &AutoMapper{
		topics:  topics,
		bus:     bus,
		cfg:     cfg,
		pending: pending,
		metrics: newAutoMapperMetrics(),
	}
	m.snap.Store(emptySnapshot(0, false))
	return m
}

// Name implements services.Service.
func (m *AutoMapper) Name() string {
	return "auto-mapper"
}

// Start warms the cache and subscribes to topic discoveries and namespace
// structure changes. A failed warm-up is logged, not fatal: the mapper runs
// with an empty cache until the next structure change rebuilds it.
func (m *AutoMapper) Start(ctx context.Context) error {
	if m.opCancel != nil {
		return fmt.Errorf("auto-mapper already started")
	}

	if err := m.InitializeCache(ctx); err != nil {
		logging.Error("AutoMapper", err, "Cache warm-up failed")
	}

	opCtx, cancel := context.WithCancel(context.Background())
	m.opCancel = cancel
	m.subs = []*events.Subscription{
		events.Subscribe(m.bus, func(evt events.TopicAdded) {
			if err := m.ProcessTopic(opCtx, evt.Topic); err != nil {
				logging.Error("AutoMapper", err, "Failed to process topic %s", evt.Topic)
			}
		}),
		events.Subscribe(m.bus, func(evt events.NamespaceStructureChanged) {
			if err := m.RefreshCache(opCtx); err != nil {
				logging.Error("AutoMapper", err, "Cache refresh after %s change failed", evt.ChangeType)
			}
		}),
	}

	logging.Info("AutoMapper", "Auto-mapper started, CacheSize=%d PendingLimit=%d",
		m.snap.Load().size(), m.cfg.PendingLimit)
	return nil
}

// Stop cancels the subscriptions. Safe to call without a prior Start.
func (m *AutoMapper) Stop(context.Context) error {
	if m.opCancel == nil {
		return nil
	}
	for _, sub := range m.subs {
		sub.Cancel()
	}
	m.subs = nil
	m.opCancel()
	m.opCancel = nil

	stats := m.Stats()
	logging.Info("AutoMapper", "Auto-mapper stopped, CacheHits=%d CacheMisses=%d Pending=%d",
		stats.CacheHits, stats.CacheMisses, stats.PendingTopics)
	return nil
}

// TryMapTopic resolves the topic against the current cache generation. The
// only side effects are the hit/miss statistics and the memoized result.
func (m *AutoMapper) TryMapTopic(topic string) (string, bool) {
	res := m.lookup(m.snap.Load(), topic)
	return res.nsPath, res.ok
}

// lookup answers from the generation's memoized results when possible, else
// runs the suffix search and memoizes the outcome.
func (m *AutoMapper) lookup(snap *snapshot, topic string) mapResult {
	if cached, ok := snap.results.Load(topic); ok {
		m.hits.Add(1)
		m.metrics.hits.Add(context.Background(), 1)
		return cached.(mapResult)
	}
	m.misses.Add(1)
	m.metrics.misses.Add(context.Background(), 1)

	res := snap.resolve(topic)
	snap.results.Store(topic, res)
	return res
}

// ProcessTopic maps the topic and persists a successful mapping onto its
// TopicConfiguration row. Each topic is processed at most once per cache
// generation; misses are remembered as pending and published as failed.
func (m *AutoMapper) ProcessTopic(ctx context.Context, topic string) error {
	if topic == "" {
		return fmt.Errorf("topic must not be empty")
	}

	snap := m.snap.Load()
	if _, done := snap.handled.LoadOrStore(topic, struct{}{}); done {
		return nil
	}

	res := m.lookup(snap, topic)
	if !res.ok {
		reason := events.ReasonNoMatchingNamespace
		if !snap.available {
			reason = events.ReasonStructureUnavailable
		}
		if evicted := m.pending.Add(topic, struct{}{}); evicted {
			logging.Debug("AutoMapper", "Pending set full, evicted the oldest topic")
		}
		m.bus.Publish(events.TopicAutoMappingFailed{Topic: topic, Reason: reason})
		logging.Debug("AutoMapper", "No namespace match for topic %s, Reason=%s", topic, reason)
		return nil
	}

	if err := m.persistMapping(ctx, topic, res); err != nil {
		// Unmark the topic so a later attempt in this generation retries.
		snap.handled.Delete(topic)
		return err
	}
	m.bus.Publish(events.TopicAutoMapped{Topic: topic, MappedNamespace: res.nsPath})
	logging.Debug("AutoMapper", "Mapped topic %s to %s", topic, res.nsPath)
	return nil
}

func (m *AutoMapper) persistMapping(ctx context.Context, topic string, res mapResult) error {
	row, err := m.topics.GetByTopic(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to look up topic %s: %w", topic, err)
	}
	row.NSPath = res.nsPath
	row.Path = res.path
	row.ModifiedAt = time.Now().UTC()
	if err := m.topics.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to persist mapping for topic %s: %w", topic, err)
	}
	return nil
}

// InitializeCache warms the cache from the namespace structure service.
func (m *AutoMapper) InitializeCache(ctx context.Context) error {
	return m.rebuild(ctx, false)
}

// RefreshCache rebuilds the cache and re-evaluates every pending topic
// exactly once against the new generation.
func (m *AutoMapper) RefreshCache(ctx context.Context) error {
	return m.rebuild(ctx, true)
}

func (m *AutoMapper) rebuild(ctx context.Context, requeue bool) error {
	generation := m.generation.Add(1)

	var next *snapshot
	if handler := api.GetNamespaceStructure(); handler == nil {
		logging.Error("AutoMapper", api.ErrNamespaceStructureNotRegistered, "Building empty namespace cache")
		next = emptySnapshot(generation, false)
	} else {
		roots, err := handler.GetNamespaceStructure()
		if err != nil {
			logging.Error("AutoMapper", err, "Namespace structure fetch failed, keeping the current cache")
			return fmt.Errorf("failed to load namespace structure: %w", err)
		}
		next = buildSnapshot(generation, roots)
	}

	// Install unless a newer generation landed first.
	for {
		cur := m.snap.Load()
		if cur.generation >= next.generation {
			break
		}
		if m.snap.CompareAndSwap(cur, next) {
			m.metrics.cacheSize.Record(ctx, int64(next.size()))
			logging.Info("AutoMapper", "Namespace cache rebuilt, Generation=%d CacheSize=%d",
				next.generation, next.size())
			break
		}
	}

	if !requeue {
		return nil
	}

	pending := m.pending.Keys()
	m.pending.Purge()
	for i, topic := range pending {
		if ctx.Err() != nil {
			for _, rest := range pending[i:] {
				m.pending.Add(rest, struct{}{})
			}
			return ctx.Err()
		}
		if err := m.ProcessTopic(ctx, topic); err != nil {
			logging.Error("AutoMapper", err, "Failed to re-process pending topic %s", topic)
		}
	}
	if len(pending) > 0 {
		logging.Debug("AutoMapper", "Re-evaluated %d pending topics after refresh", len(pending))
	}
	return nil
}

// Stats returns the cache statistics.
func (m *AutoMapper) Stats() api.AutoMapperStats {
	snap := m.snap.Load()
	hits := m.hits.Load()
	misses := m.misses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return api.AutoMapperStats{
		CacheSize:     snap.size(),
		CacheHits:     hits,
		CacheMisses:   misses,
		HitRatio:      ratio,
		Generation:    snap.generation,
		PendingTopics: m.pending.Len(),
	}
}
