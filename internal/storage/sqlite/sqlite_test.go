package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"unshub/internal/api"
	"unshub/internal/hierarchy"
	"unshub/internal/storage"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(context.Background(), filepath.Join(t.TempDir(), "unshub.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestRealtimeUpsertAndCount(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	rt := p.Realtime()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := rt.Store(ctx, api.DataPoint{Topic: "plant/line1/temp", Value: 20.0, Timestamp: base}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := rt.Store(ctx, api.DataPoint{Topic: "plant/line1/temp", Value: 21.5, Timestamp: base.Add(time.Second), Quality: "good"}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	dp, err := rt.Latest(ctx, "plant/line1/temp")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if dp.Value != 21.5 {
		t.Errorf("Latest().Value = %v, want 21.5", dp.Value)
	}
	if dp.Quality != "good" {
		t.Errorf("Latest().Quality = %q, want good", dp.Quality)
	}
	if !dp.Timestamp.Equal(base.Add(time.Second)) {
		t.Errorf("Latest().Timestamp = %v, want %v", dp.Timestamp, base.Add(time.Second))
	}

	count, err := rt.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	if _, err := rt.Latest(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Latest(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRealtimeCleanup(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	rt := p.Realtime()

	now := time.Now().UTC()
	bs := rt.(storage.BatchStorer)
	err := bs.StoreBatch(ctx, []api.DataPoint{
		{Topic: "stale", Timestamp: now.Add(-48 * time.Hour)},
		{Topic: "fresh", Timestamp: now},
	})
	if err != nil {
		t.Fatalf("StoreBatch() error = %v", err)
	}

	removed, err := rt.(storage.Cleaner).CleanupOldData(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CleanupOldData() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	count, _ := rt.Count(ctx)
	if count != 1 {
		t.Errorf("Count() after cleanup = %d, want 1", count)
	}
}

func TestHistoricalQueryAndArchive(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	hs := p.Historical()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := hs.(storage.BatchStorer).StoreBatch(ctx, []api.DataPoint{
		{Topic: "t", Value: 2.0, Timestamp: base.Add(2 * time.Minute)},
		{Topic: "t", Value: 1.0, Timestamp: base.Add(1 * time.Minute)},
		{Topic: "t", Value: 3.0, Timestamp: base.Add(3 * time.Minute)},
		{Topic: "other", Value: 9.0, Timestamp: base.Add(1 * time.Minute)},
	})
	if err != nil {
		t.Fatalf("StoreBatch() error = %v", err)
	}

	got, err := hs.Query(ctx, "t", base, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Query() returned %d rows, want 2", len(got))
	}
	if got[0].Value != 1.0 || got[1].Value != 2.0 {
		t.Errorf("Query() values = %v, %v; want ascending 1, 2", got[0].Value, got[1].Value)
	}

	moved, err := hs.(storage.Archiver).Archive(ctx, base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if moved != 3 {
		t.Errorf("Archive() moved %d rows, want 3", moved)
	}
	left, err := hs.Query(ctx, "t", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Query() after archive error = %v", err)
	}
	if len(left) != 1 || left[0].Value != 3.0 {
		t.Errorf("hot rows after archive = %v, want only the newest", left)
	}
}

func TestConnectionRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestProvider(t).ConnectionConfigurations()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := api.ConnectionConfiguration{
		ID:               "sim-1",
		Name:             "Press Simulator",
		ConnectionType:   "simulator",
		ConnectionConfig: json.RawMessage(`{"interval":"1s","topics":3}`),
		Inputs: []api.InputConfig{
			{ID: "in-1", Name: "generated", IsEnabled: true},
		},
		Outputs: []api.OutputConfig{
			{ID: "out-1", Name: "sink", Topic: "sink/topic", IsEnabled: true},
		},
		IsEnabled:  true,
		AutoStart:  true,
		CreatedAt:  now,
		ModifiedAt: now,
		Tags:       []string{"sim", "press"},
	}
	if err := repo.Save(ctx, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "sim-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != cfg.Name || got.ConnectionType != cfg.ConnectionType {
		t.Errorf("round-trip lost identity fields: %+v", got)
	}
	if string(got.ConnectionConfig) != string(cfg.ConnectionConfig) {
		t.Errorf("ConnectionConfig = %s, want %s", got.ConnectionConfig, cfg.ConnectionConfig)
	}
	if len(got.Inputs) != 1 || got.Inputs[0].ID != "in-1" {
		t.Errorf("Inputs = %+v, want the saved input", got.Inputs)
	}
	if len(got.Outputs) != 1 || got.Outputs[0].Topic != "sink/topic" {
		t.Errorf("Outputs = %+v, want the saved output", got.Outputs)
	}
	if len(got.Tags) != 2 {
		t.Errorf("Tags = %v, want 2 entries", got.Tags)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}

	auto, err := repo.GetAutoStart(ctx)
	if err != nil {
		t.Fatalf("GetAutoStart() error = %v", err)
	}
	if len(auto) != 1 {
		t.Errorf("GetAutoStart() returned %d, want 1", len(auto))
	}

	if err := repo.Delete(ctx, "sim-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "sim-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestTopicRepoUniqueTopicConstraint(t *testing.T) {
	ctx := context.Background()
	repo := newTestProvider(t).TopicConfigurations()

	if err := repo.Save(ctx, api.TopicConfiguration{ID: "id1", Topic: "plant/line1/temp"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	err := repo.Save(ctx, api.TopicConfiguration{ID: "id2", Topic: "plant/line1/temp"})
	if err == nil {
		t.Fatal("saving a second configuration for the same topic should fail")
	}
	if storage.IsRetryable(err) {
		t.Errorf("constraint violation should not classify as retryable: %v", err)
	}

	// Upserting the same id is allowed.
	if err := repo.Save(ctx, api.TopicConfiguration{ID: "id1", Topic: "plant/line1/temp", IsVerified: true}); err != nil {
		t.Fatalf("upsert error = %v", err)
	}
	got, err := repo.GetByTopic(ctx, "plant/line1/temp")
	if err != nil {
		t.Fatalf("GetByTopic() error = %v", err)
	}
	if !got.IsVerified {
		t.Error("upsert should have updated IsVerified")
	}
}

func TestTopicRepoPrefixQuery(t *testing.T) {
	ctx := context.Background()
	repo := newTestProvider(t).TopicConfigurations()

	seed := []api.TopicConfiguration{
		{ID: "1", Topic: "a/t1", NSPath: "acme/dallas/press", IsVerified: true},
		{ID: "2", Topic: "a/t2", NSPath: "acme/dallas/press/line1"},
		{ID: "3", Topic: "a/t3", NSPath: "acme/dallas/pressing", IsVerified: true},
	}
	for _, cfg := range seed {
		if err := repo.Save(ctx, cfg); err != nil {
			t.Fatalf("Save(%s) error = %v", cfg.ID, err)
		}
	}

	matched, err := repo.ListByNSPathPrefix(ctx, "ACME/Dallas/Press")
	if err != nil {
		t.Fatalf("ListByNSPathPrefix() error = %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("ListByNSPathPrefix() returned %d, want 2 (pressing must not match)", len(matched))
	}

	verified, err := repo.VerifiedTopics(ctx)
	if err != nil {
		t.Fatalf("VerifiedTopics() error = %v", err)
	}
	if len(verified) != 2 {
		t.Errorf("VerifiedTopics() = %v, want 2 topics", verified)
	}
}

func TestHierarchyRepoDefaultAndActivation(t *testing.T) {
	ctx := context.Background()
	repo := newTestProvider(t).HierarchyConfigurations()

	if err := repo.EnsureDefault(ctx); err != nil {
		t.Fatalf("EnsureDefault() error = %v", err)
	}
	if err := repo.EnsureDefault(ctx); err != nil {
		t.Fatalf("EnsureDefault() second call error = %v", err)
	}
	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("GetAll() returned %d configurations, want 1", len(all))
	}
	if len(all[0].Nodes) == 0 {
		t.Error("default template should carry its nodes through the JSON column")
	}

	custom := api.HierarchyConfiguration{ID: "custom", Name: "Custom", Nodes: all[0].Nodes}
	if err := repo.Save(ctx, custom); err != nil {
		t.Fatalf("Save(custom) error = %v", err)
	}
	if err := repo.SetActive(ctx, "custom"); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	active, err := repo.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if active.ID != "custom" {
		t.Errorf("active = %q, want custom", active.ID)
	}
	def, _ := repo.GetByID(ctx, hierarchy.DefaultConfigurationID)
	if def.IsActive {
		t.Error("default should have been deactivated by SetActive")
	}

	if err := repo.SetActive(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetActive(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestInstanceAndNamespaceChildren(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	instances := p.NSTreeInstances()
	_ = instances.Save(ctx, api.NSTreeInstance{ID: "root", Name: "ACME", HierarchyNodeID: "node-enterprise", IsActive: true})
	_ = instances.Save(ctx, api.NSTreeInstance{ID: "site", Name: "Dallas", HierarchyNodeID: "node-site", ParentInstanceID: "root", IsActive: true})

	roots, err := instances.GetChildren(ctx, "")
	if err != nil {
		t.Fatalf("GetChildren(\"\") error = %v", err)
	}
	if len(roots) != 1 || roots[0].ID != "root" {
		t.Errorf("roots = %+v, want only the ACME instance", roots)
	}

	namespaces := p.NamespaceConfigurations()
	path := api.HierarchicalPath{}.WithLevel("Enterprise", "ACME")
	_ = namespaces.Save(ctx, api.NamespaceConfiguration{
		ID: "kpi", Name: "KPIs", HierarchicalPath: path, NSPath: "acme/kpis", IsActive: true,
	})

	got, err := namespaces.GetByID(ctx, "kpi")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if v, ok := got.HierarchicalPath.Value("enterprise"); !ok || v != "ACME" {
		t.Errorf("HierarchicalPath lost through the JSON column: %+v", got.HierarchicalPath)
	}

	children, err := namespaces.GetChildren(ctx, "")
	if err != nil {
		t.Fatalf("GetChildren(\"\") error = %v", err)
	}
	if len(children) != 1 {
		t.Errorf("instance-anchored namespaces = %d, want 1", len(children))
	}
}
