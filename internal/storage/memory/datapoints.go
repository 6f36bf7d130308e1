package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"unshub/internal/api"
	"unshub/internal/storage"
)

type realtimeStore struct {
	p *Provider
}

func (s *realtimeStore) Store(_ context.Context, dp api.DataPoint) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	s.p.latest[dp.Topic] = dp
	return nil
}

func (s *realtimeStore) StoreBatch(_ context.Context, dps []api.DataPoint) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	for _, dp := range dps {
		s.p.latest[dp.Topic] = dp
	}
	return nil
}

func (s *realtimeStore) Latest(_ context.Context, topic string) (api.DataPoint, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()

	dp, ok := s.p.latest[topic]
	if !ok {
		return api.DataPoint{}, fmt.Errorf("latest value for topic %q: %w", topic, storage.ErrNotFound)
	}
	return dp, nil
}

func (s *realtimeStore) Count(_ context.Context) (int64, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()

	return int64(len(s.p.latest)), nil
}

func (s *realtimeStore) CleanupOldData(_ context.Context, cutoff time.Time) (int64, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	var removed int64
	for topic, dp := range s.p.latest {
		if dp.Timestamp.Before(cutoff) {
			delete(s.p.latest, topic)
			removed++
		}
	}
	return removed, nil
}

type historicalStore struct {
	p *Provider
}

func (s *historicalStore) Store(_ context.Context, dp api.DataPoint) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	s.p.history[dp.Topic] = append(s.p.history[dp.Topic], dp)
	return nil
}

func (s *historicalStore) StoreBatch(_ context.Context, dps []api.DataPoint) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	for _, dp := range dps {
		s.p.history[dp.Topic] = append(s.p.history[dp.Topic], dp)
	}
	return nil
}

func (s *historicalStore) Query(_ context.Context, topic string, from, to time.Time) ([]api.DataPoint, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()

	var results []api.DataPoint
	for _, dp := range s.p.history[topic] {
		if dp.Timestamp.Before(from) || dp.Timestamp.After(to) {
			continue
		}
		results = append(results, dp)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})
	return results, nil
}

func (s *historicalStore) Archive(_ context.Context, cutoff time.Time) (int64, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	var moved int64
	for topic, dps := range s.p.history {
		kept := dps[:0]
		for _, dp := range dps {
			if dp.Timestamp.Before(cutoff) {
				s.p.archive[topic] = append(s.p.archive[topic], dp)
				moved++
				continue
			}
			kept = append(kept, dp)
		}
		if len(kept) == 0 {
			delete(s.p.history, topic)
			continue
		}
		s.p.history[topic] = kept
	}
	return moved, nil
}
