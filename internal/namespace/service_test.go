package namespace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unshub/internal/api"
	"unshub/internal/events"
	"unshub/internal/storage"
	"unshub/internal/storage/memory"
)

// changeRecorder collects the NamespaceStructureChanged events the service
// publishes. Delivery per subscription is ordered, so once the last
// published event shows up every earlier one has as well.
type changeRecorder struct {
	mu      sync.Mutex
	changes []events.NamespaceStructureChanged
}

func (r *changeRecorder) record(evt events.NamespaceStructureChanged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, evt)
}

func (r *changeRecorder) byType(change api.NamespaceChangeType) []events.NamespaceStructureChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.NamespaceStructureChanged
	for _, evt := range r.changes {
		if evt.ChangeType == change {
			out = append(out, evt)
		}
	}
	return out
}

func (r *changeRecorder) countByType(change api.NamespaceChangeType) int {
	return len(r.byType(change))
}

func newServiceTest(t *testing.T) (*Service, *memory.Provider, *changeRecorder) {
	t.Helper()

	provider := memory.New()
	t.Cleanup(func() { _ = provider.Close() })
	require.NoError(t, provider.HierarchyConfigurations().EnsureDefault(context.Background()))

	bus := events.NewBus()
	t.Cleanup(func() { _ = bus.Close(context.Background()) })

	rec := &changeRecorder{}
	events.Subscribe(bus, rec.record)

	svc := New(
		provider.HierarchyConfigurations(),
		provider.NSTreeInstances(),
		provider.NamespaceConfigurations(),
		provider.TopicConfigurations(),
		bus,
	)
	return svc, provider, rec
}

// seedTree builds Enterprise1 > Site1 > Area1 > Line1 on the default
// ISA-95 template and returns the instances by name.
func seedTree(t *testing.T, svc *Service) map[string]*api.NSTreeInstance {
	t.Helper()
	ctx := context.Background()

	out := map[string]*api.NSTreeInstance{}
	enterprise, err := svc.AddHierarchyInstance(ctx, "node-enterprise", "Enterprise1", "")
	require.NoError(t, err)
	out["Enterprise1"] = enterprise

	site, err := svc.AddHierarchyInstance(ctx, "node-site", "Site1", enterprise.ID)
	require.NoError(t, err)
	out["Site1"] = site

	area, err := svc.AddHierarchyInstance(ctx, "node-area", "Area1", site.ID)
	require.NoError(t, err)
	out["Area1"] = area

	line, err := svc.AddHierarchyInstance(ctx, "node-workcenter", "Line1", area.ID)
	require.NoError(t, err)
	out["Line1"] = line
	return out
}

func isa95Path(values ...string) api.HierarchicalPath {
	levels := []string{"Enterprise", "Site", "Area", "WorkCenter", "WorkUnit"}
	var path api.HierarchicalPath
	for i, value := range values {
		path = path.WithLevel(levels[i], value)
	}
	return path
}

func TestGetNamespaceStructureBuildsTree(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	ctx := context.Background()
	tree := seedTree(t, svc)

	_, err := svc.AddHierarchyInstance(ctx, "node-workcenter", "Line2", tree["Area1"].ID)
	require.NoError(t, err)

	line1Path := isa95Path("Enterprise1", "Site1", "Area1", "Line1")
	production, err := svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{Name: "Production"})
	require.NoError(t, err)
	_, err = svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{
		Name:              "KPI",
		ParentNamespaceID: production.ID,
	})
	require.NoError(t, err)

	roots, err := svc.GetNamespaceStructure()
	require.NoError(t, err)
	require.Len(t, roots, 1)

	root := roots[0]
	assert.Equal(t, "Enterprise1", root.Instance.Name)
	assert.Equal(t, "Enterprise", root.Node.Name)
	assert.Equal(t, "Enterprise1", root.Path.String())
	require.Len(t, root.Children, 1)

	area := root.Children[0].Children[0]
	require.Equal(t, "Area1", area.Instance.Name)
	require.Len(t, area.Children, 2)
	assert.Equal(t, "Line1", area.Children[0].Instance.Name)
	assert.Equal(t, "Line2", area.Children[1].Instance.Name)

	line1 := area.Children[0]
	assert.Equal(t, "Enterprise1/Site1/Area1/Line1", line1.Path.String())
	assert.Equal(t, "WorkCenter", line1.Node.Name)
	require.Len(t, line1.Namespaces, 1)
	assert.Equal(t, "Production", line1.Namespaces[0].Config.Name)
	require.Len(t, line1.Namespaces[0].Children, 1)
	assert.Equal(t, "KPI", line1.Namespaces[0].Children[0].Config.Name)
	assert.Empty(t, area.Children[1].Namespaces)
}

func TestAddHierarchyInstanceValidatesPlacement(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	ctx := context.Background()
	tree := seedTree(t, svc)

	_, err := svc.AddHierarchyInstance(ctx, "node-unknown", "X", "")
	assert.True(t, api.IsNotFound(err), "unknown node: %v", err)

	_, err = svc.AddHierarchyInstance(ctx, "node-site", "Orphan", "")
	assert.True(t, api.IsValidation(err), "non-root node at the tree root: %v", err)

	_, err = svc.AddHierarchyInstance(ctx, "node-workunit", "Cell1", tree["Area1"].ID)
	assert.True(t, api.IsValidation(err), "work unit under an area: %v", err)

	_, err = svc.AddHierarchyInstance(ctx, "node-workcenter", "Line1", "missing-parent")
	assert.True(t, api.IsNotFound(err), "unknown parent instance: %v", err)

	_, err = svc.AddHierarchyInstance(ctx, "node-workcenter", "  ", tree["Area1"].ID)
	assert.True(t, api.IsValidation(err), "blank name: %v", err)
}

func TestSiblingInstanceNamesAreUniqueCaseInsensitive(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	ctx := context.Background()
	tree := seedTree(t, svc)

	_, err := svc.AddHierarchyInstance(ctx, "node-workcenter", "LINE1", tree["Area1"].ID)
	require.True(t, api.IsDuplicate(err), "expected duplicate, got %v", err)

	// The same name two areas over is fine.
	area2, err := svc.AddHierarchyInstance(ctx, "node-area", "Area2", tree["Site1"].ID)
	require.NoError(t, err)
	_, err = svc.AddHierarchyInstance(ctx, "node-workcenter", "LINE1", area2.ID)
	assert.NoError(t, err)
}

func TestDuplicateNamespaceScopedToParent(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	ctx := context.Background()
	tree := seedTree(t, svc)

	_, err := svc.AddHierarchyInstance(ctx, "node-workcenter", "Line2", tree["Area1"].ID)
	require.NoError(t, err)

	line1Path := isa95Path("Enterprise1", "Site1", "Area1", "Line1")
	line2Path := isa95Path("Enterprise1", "Site1", "Area1", "Line2")

	mes, err := svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{Name: "MES"})
	require.NoError(t, err)
	assert.Equal(t, "Enterprise1/Site1/Area1/Line1/MES", mes.NSPath)

	_, err = svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{Name: "MES"})
	assert.True(t, api.IsDuplicate(err), "same name at the same anchor: %v", err)
	_, err = svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{Name: "mes"})
	assert.True(t, api.IsDuplicate(err), "case-insensitive collision: %v", err)

	_, err = svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{Name: "KPI"})
	assert.NoError(t, err, "different name at the same anchor")

	line2MES, err := svc.CreateNamespace(ctx, line2Path, api.NamespaceConfiguration{Name: "MES"})
	require.NoError(t, err, "same name under a different work center")
	assert.Equal(t, "Enterprise1/Site1/Area1/Line2/MES", line2MES.NSPath)

	// Nesting scopes uniqueness to the parent namespace.
	hourly, err := svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{
		Name:              "Hourly",
		ParentNamespaceID: mes.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, mes.NSPath+"/Hourly", hourly.NSPath)
	_, err = svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{
		Name:              "hourly",
		ParentNamespaceID: mes.ID,
	})
	assert.True(t, api.IsDuplicate(err), "nested duplicate: %v", err)
}

func TestCreateNamespaceValidation(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	ctx := context.Background()
	tree := seedTree(t, svc)

	line1Path := isa95Path("Enterprise1", "Site1", "Area1", "Line1")

	_, err := svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{Name: "   "})
	assert.True(t, api.IsValidation(err), "blank name: %v", err)

	_, err = svc.CreateNamespace(ctx, api.HierarchicalPath{}, api.NamespaceConfiguration{Name: "MES"})
	assert.True(t, api.IsValidation(err), "missing anchor path: %v", err)

	_, err = svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{
		Name:              "Hourly",
		ParentNamespaceID: "missing-parent",
	})
	assert.True(t, api.IsNotFound(err), "unknown parent namespace: %v", err)

	mes, err := svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{Name: "MES"})
	require.NoError(t, err)

	// The nested namespace must be anchored where its parent is.
	_, err = svc.AddHierarchyInstance(ctx, "node-workcenter", "Line2", tree["Area1"].ID)
	require.NoError(t, err)
	line2Path := isa95Path("Enterprise1", "Site1", "Area1", "Line2")
	_, err = svc.CreateNamespace(ctx, line2Path, api.NamespaceConfiguration{
		Name:              "Hourly",
		ParentNamespaceID: mes.ID,
	})
	assert.True(t, api.IsValidation(err), "anchor mismatch with parent: %v", err)
}

func TestDeleteNamespaceCascades(t *testing.T) {
	svc, provider, rec := newServiceTest(t)
	ctx := context.Background()
	seedTree(t, svc)

	line1Path := isa95Path("Enterprise1", "Site1", "Area1", "Line1")
	kpi, err := svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{Name: "KPI"})
	require.NoError(t, err)
	hourly, err := svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{
		Name:              "Hourly",
		ParentNamespaceID: kpi.ID,
	})
	require.NoError(t, err)
	mes, err := svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{Name: "MES"})
	require.NoError(t, err)

	topics := provider.TopicConfigurations()
	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		require.NoError(t, topics.Save(ctx, api.TopicConfiguration{
			ID:         fmt.Sprintf("kpi-%d", i),
			Topic:      fmt.Sprintf("plc/kpi/%d", i),
			NSPath:     kpi.NSPath,
			Path:       line1Path,
			IsActive:   true,
			CreatedAt:  now,
			ModifiedAt: now,
		}))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, topics.Save(ctx, api.TopicConfiguration{
			ID:         fmt.Sprintf("hourly-%d", i),
			Topic:      fmt.Sprintf("plc/hourly/%d", i),
			NSPath:     hourly.NSPath,
			Path:       line1Path,
			IsActive:   true,
			CreatedAt:  now,
			ModifiedAt: now,
		}))
	}
	require.NoError(t, topics.Save(ctx, api.TopicConfiguration{
		ID:         "mes-0",
		Topic:      "plc/mes/0",
		NSPath:     mes.NSPath,
		Path:       line1Path,
		IsActive:   true,
		CreatedAt:  now,
		ModifiedAt: now,
	}))

	check, err := svc.CanDeleteNamespace(ctx, kpi.ID)
	require.NoError(t, err)
	assert.True(t, check.CanDelete)
	assert.Equal(t, 1, check.ChildNamespaces)
	assert.Equal(t, 7, check.MappedTopics)
	assert.NotEmpty(t, check.Warning)

	require.NoError(t, svc.DeleteNamespace(ctx, kpi.ID))

	namespaces := provider.NamespaceConfigurations()
	_, err = namespaces.GetByID(ctx, kpi.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = namespaces.GetByID(ctx, hourly.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	all, err := topics.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 8)
	for _, row := range all {
		if row.ID == "mes-0" {
			assert.Equal(t, mes.NSPath, row.NSPath, "unrelated topic must keep its mapping")
			continue
		}
		assert.Empty(t, row.NSPath, "topic %s should be unmapped", row.Topic)
		assert.True(t, row.Path.IsEmpty(), "topic %s should lose its path", row.Topic)
	}

	// The Deleted event is the last one published, so waiting for it means
	// everything before has been delivered too.
	require.Eventually(t, func() bool {
		return rec.countByType(api.NamespaceChangeDeleted) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	deleted := rec.byType(api.NamespaceChangeDeleted)
	require.Len(t, deleted, 1, "subtree removal publishes a single Deleted event")
	assert.Equal(t, kpi.NSPath, deleted[0].ChangedNamespace)
	assert.Equal(t, "namespace-service", deleted[0].ChangedBy)
}

func TestDeleteInstanceGuards(t *testing.T) {
	svc, provider, _ := newServiceTest(t)
	ctx := context.Background()
	tree := seedTree(t, svc)

	err := svc.DeleteInstance(ctx, tree["Area1"].ID)
	require.Error(t, err, "child instances block deletion")

	line1Path := isa95Path("Enterprise1", "Site1", "Area1", "Line1")
	kpi, err := svc.CreateNamespace(ctx, line1Path, api.NamespaceConfiguration{Name: "KPI"})
	require.NoError(t, err)
	err = svc.DeleteInstance(ctx, tree["Line1"].ID)
	require.Error(t, err, "anchored namespaces block deletion")

	require.NoError(t, svc.DeleteNamespace(ctx, kpi.ID))

	topics := provider.TopicConfigurations()
	now := time.Now().UTC()
	require.NoError(t, topics.Save(ctx, api.TopicConfiguration{
		ID:         "t-1",
		Topic:      "plc/line1/temp",
		NSPath:     line1Path.String() + "/KPI",
		Path:       line1Path,
		IsActive:   true,
		CreatedAt:  now,
		ModifiedAt: now,
	}))
	err = svc.DeleteInstance(ctx, tree["Line1"].ID)
	require.Error(t, err, "mapped topics block deletion")

	require.NoError(t, topics.Delete(ctx, "t-1"))
	require.NoError(t, svc.DeleteInstance(ctx, tree["Line1"].ID))

	_, err = provider.NSTreeInstances().GetByID(ctx, tree["Line1"].ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	err = svc.DeleteInstance(ctx, tree["Line1"].ID)
	assert.True(t, api.IsNotFound(err), "double delete: %v", err)
}

func TestGetAvailableHierarchyNodes(t *testing.T) {
	svc, _, _ := newServiceTest(t)

	roots, err := svc.GetAvailableHierarchyNodes("")
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "node-enterprise", roots[0].ID)

	children, err := svc.GetAvailableHierarchyNodes("node-area")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "node-workcenter", children[0].ID)

	_, err = svc.GetAvailableHierarchyNodes("node-unknown")
	assert.True(t, api.IsNotFound(err), "unknown parent node: %v", err)
}

func TestHierarchyConfigurationLifecycle(t *testing.T) {
	svc, _, rec := newServiceTest(t)
	ctx := context.Background()

	active, err := svc.GetActiveHierarchyConfiguration()
	require.NoError(t, err)
	assert.True(t, active.IsSystemDefined)

	// The seeded template cannot be edited.
	edited := *active
	edited.Name = "Renamed"
	err = svc.SaveHierarchyConfiguration(ctx, edited)
	assert.True(t, api.IsValidation(err), "system-defined template: %v", err)

	err = svc.SaveHierarchyConfiguration(ctx, api.HierarchyConfiguration{Name: "Broken"})
	assert.True(t, api.IsValidation(err), "template without nodes: %v", err)

	custom := api.HierarchyConfiguration{
		ID:   "plant-model",
		Name: "Plant Model",
		Nodes: []api.HierarchyNode{
			{ID: "plant", Name: "Plant", Order: 1, IsRequired: true, AllowedChildNodeIDs: []string{"cell"}},
			{ID: "cell", Name: "Cell", Order: 2, ParentNodeID: "plant"},
		},
	}
	require.NoError(t, svc.SaveHierarchyConfiguration(ctx, custom))

	// Saving does not activate; switching does.
	active, err = svc.GetActiveHierarchyConfiguration()
	require.NoError(t, err)
	assert.NotEqual(t, "plant-model", active.ID)

	err = svc.SetActiveHierarchyConfiguration(ctx, "missing-model")
	assert.True(t, api.IsNotFound(err), "unknown template: %v", err)

	require.NoError(t, svc.SetActiveHierarchyConfiguration(ctx, "plant-model"))
	active, err = svc.GetActiveHierarchyConfiguration()
	require.NoError(t, err)
	assert.Equal(t, "plant-model", active.ID)

	plant1, err := svc.AddHierarchyInstance(ctx, "plant", "Plant1", "")
	require.NoError(t, err)

	// Dropping an unused node is fine, the edit keeps the template active.
	slim := custom
	slim.Nodes = []api.HierarchyNode{{ID: "plant", Name: "Plant", Order: 1, IsRequired: true}}
	require.NoError(t, svc.SaveHierarchyConfiguration(ctx, slim))
	active, err = svc.GetActiveHierarchyConfiguration()
	require.NoError(t, err)
	assert.Equal(t, "plant-model", active.ID)
	assert.Len(t, active.Nodes, 1)

	// Dropping the node Plant1 stands on is refused.
	gutted := custom
	gutted.Nodes = []api.HierarchyNode{{ID: "floor", Name: "Floor", Order: 1}}
	err = svc.SaveHierarchyConfiguration(ctx, gutted)
	require.True(t, api.IsValidation(err), "node in use: %v", err)
	assert.Contains(t, err.Error(), plant1.Name)

	require.Eventually(t, func() bool {
		return rec.countByType(api.NamespaceChangeModified) >= 2
	}, 2*time.Second, 10*time.Millisecond, "activation and active-edit each publish Modified")
}
