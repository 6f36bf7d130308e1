package api

import (
	"testing"
)

func TestHierarchicalPathString(t *testing.T) {
	tests := []struct {
		name     string
		path     HierarchicalPath
		expected string
	}{
		{
			name:     "empty path",
			path:     HierarchicalPath{},
			expected: "",
		},
		{
			name: "single level",
			path: HierarchicalPath{Levels: []PathLevel{
				{Level: "Enterprise", Value: "ACME"},
			}},
			expected: "ACME",
		},
		{
			name: "values joined in level order with original casing",
			path: HierarchicalPath{Levels: []PathLevel{
				{Level: "Enterprise", Value: "ACME"},
				{Level: "Site", Value: "Dallas"},
				{Level: "Area", Value: "Press"},
				{Level: "WorkCenter", Value: "Line1"},
			}},
			expected: "ACME/Dallas/Press/Line1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.path.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestHierarchicalPathKey(t *testing.T) {
	path := HierarchicalPath{Levels: []PathLevel{
		{Level: "Enterprise", Value: "ACME"},
		{Level: "Site", Value: "Dallas"},
	}}
	if got := path.Key(); got != "acme/dallas" {
		t.Errorf("Key() = %q, want %q", got, "acme/dallas")
	}
}

func TestHierarchicalPathValue(t *testing.T) {
	path := HierarchicalPath{Levels: []PathLevel{
		{Level: "Enterprise", Value: "ACME"},
		{Level: "Site", Value: "Dallas"},
	}}

	if v, ok := path.Value("Site"); !ok || v != "Dallas" {
		t.Errorf("Value(Site) = %q, %v; want Dallas, true", v, ok)
	}
	// Level names match case-insensitively.
	if v, ok := path.Value("site"); !ok || v != "Dallas" {
		t.Errorf("Value(site) = %q, %v; want Dallas, true", v, ok)
	}
	if v, ok := path.Value("Area"); ok || v != "" {
		t.Errorf("Value(Area) = %q, %v; want empty, false", v, ok)
	}
}

func TestHierarchicalPathWithLevel(t *testing.T) {
	base := HierarchicalPath{Levels: []PathLevel{
		{Level: "Enterprise", Value: "ACME"},
		{Level: "Site", Value: "Dallas"},
	}}

	t.Run("appends new level at the end", func(t *testing.T) {
		got := base.WithLevel("Area", "Press")
		if got.String() != "ACME/Dallas/Press" {
			t.Errorf("String() = %q, want %q", got.String(), "ACME/Dallas/Press")
		}
	})

	t.Run("replaces existing level case-insensitively", func(t *testing.T) {
		got := base.WithLevel("site", "Austin")
		if got.String() != "ACME/Austin" {
			t.Errorf("String() = %q, want %q", got.String(), "ACME/Austin")
		}
		if len(got.Levels) != 2 {
			t.Errorf("expected 2 levels, got %d", len(got.Levels))
		}
		// The stored level name is preserved, only the value changes.
		if got.Levels[1].Level != "Site" {
			t.Errorf("Levels[1].Level = %q, want %q", got.Levels[1].Level, "Site")
		}
	})

	t.Run("does not mutate the receiver", func(t *testing.T) {
		_ = base.WithLevel("Site", "Austin")
		_ = base.WithLevel("Area", "Press")
		if base.String() != "ACME/Dallas" {
			t.Errorf("receiver changed to %q", base.String())
		}
		if len(base.Levels) != 2 {
			t.Errorf("receiver grew to %d levels", len(base.Levels))
		}
	})

	t.Run("builds a path from zero value", func(t *testing.T) {
		got := HierarchicalPath{}.WithLevel("Enterprise", "ACME").WithLevel("Site", "Dallas")
		if got.String() != "ACME/Dallas" {
			t.Errorf("String() = %q, want %q", got.String(), "ACME/Dallas")
		}
	})
}

func TestHierarchicalPathEquals(t *testing.T) {
	a := HierarchicalPath{}.WithLevel("Enterprise", "ACME").WithLevel("Site", "Dallas")
	b := HierarchicalPath{}.WithLevel("Enterprise", "acme").WithLevel("Site", "DALLAS")
	c := HierarchicalPath{}.WithLevel("Enterprise", "ACME").WithLevel("Site", "Austin")

	if !a.Equals(b) {
		t.Error("paths differing only in casing should be equal")
	}
	if a.Equals(c) {
		t.Error("paths with different values should not be equal")
	}
	if !(HierarchicalPath{}).Equals(HierarchicalPath{}) {
		t.Error("two empty paths should be equal")
	}
}

func TestHierarchicalPathIsEmpty(t *testing.T) {
	if !(HierarchicalPath{}).IsEmpty() {
		t.Error("zero value should be empty")
	}
	p := HierarchicalPath{}.WithLevel("Enterprise", "ACME")
	if p.IsEmpty() {
		t.Error("path with a level should not be empty")
	}
}
