package automap

import (
	"strings"
	"sync"

	"unshub/internal/api"
)

// pathEntry is one flattened namespace-tree path.
type pathEntry struct {
	// key is the display path in its original casing, e.g.
	// "Enterprise1/Site1/Area1/WorkCenter1".
	key string

	// segments is the lowercased split of key used for matching.
	segments []string

	// path is the hierarchical path persisted onto topics mapped to key.
	path api.HierarchicalPath
}

// mapResult is the memoized answer of one topic lookup.
type mapResult struct {
	nsPath string
	path   api.HierarchicalPath
	ok     bool
}

// snapshot is one immutable cache generation. Only the two sync.Maps are
// written after construction; swapping in a new snapshot resets them.
type snapshot struct {
	generation uint64

	// available is false when the namespace structure service was absent at
	// build time. Failures against an unavailable snapshot report
	// ReasonStructureUnavailable instead of ReasonNoMatchingNamespace.
	available bool

	entries []pathEntry

	// index groups entries by lowercased trailing segment, in flatten order.
	index map[string][]*pathEntry

	// results memoizes resolved lookups; repeat calls in the same generation
	// are cache hits with identical answers.
	results sync.Map

	// handled marks topics ProcessTopic has already acted on.
	handled sync.Map
}

func emptySnapshot(generation uint64, available bool) *snapshot {
	return &snapshot{generation: generation, available: available}
}

// buildSnapshot flattens the namespace tree into an indexed snapshot.
func buildSnapshot(generation uint64, roots []*api.NamespaceTreeNode) *snapshot {
	s := &snapshot{
		generation: generation,
		available:  true,
		entries:    flattenTree(nil, roots),
		index:      make(map[string][]*pathEntry),
	}
	for i := range s.entries {
		entry := &s.entries[i]
		if len(entry.segments) < 2 {
			// A match spans at least two levels, so single-segment paths
			// can never win and are not indexed.
			continue
		}
		tail := entry.segments[len(entry.segments)-1]
		s.index[tail] = append(s.index[tail], entry)
	}
	return s
}

func (s *snapshot) size() int {
	return len(s.entries)
}

// resolve maps a topic to the deepest namespace path matching a suffix of
// the topic's parent segments. The final topic segment is the tag name and
// takes no part in the match. Ties go to the earliest flattened entry.
func (s *snapshot) resolve(topic string) mapResult {
	segments := strings.Split(topic, "/")
	if len(segments) < 3 {
		return mapResult{}
	}
	parents := segments[:len(segments)-1]
	lowered := make([]string, len(parents))
	for i, seg := range parents {
		lowered[i] = strings.ToLower(seg)
	}

	var best *pathEntry
	for _, entry := range s.index[lowered[len(lowered)-1]] {
		if len(entry.segments) > len(parents) {
			continue
		}
		if best != nil && len(entry.segments) <= len(best.segments) {
			continue
		}
		if hasSuffix(lowered, entry.segments) {
			best = entry
		}
	}
	if best == nil {
		return mapResult{}
	}
	return mapResult{nsPath: best.key, path: best.path, ok: true}
}

// hasSuffix reports whether lowered ends with segments.
func hasSuffix(lowered, segments []string) bool {
	offset := len(lowered) - len(segments)
	for i, seg := range segments {
		if lowered[offset+i] != seg {
			return false
		}
	}
	return true
}

// flattenTree walks instance nodes depth-first, visiting each instance, then
// its anchored namespaces, then its child instances.
func flattenTree(entries []pathEntry, nodes []*api.NamespaceTreeNode) []pathEntry {
	for _, node := range nodes {
		if node == nil {
			continue
		}
		key := node.Path.String()
		entries = appendEntry(entries, key, node.Path)
		for _, ns := range node.Namespaces {
			entries = flattenNamespace(entries, key, ns)
		}
		entries = flattenTree(entries, node.Children)
	}
	return entries
}

// flattenNamespace adds a namespace folder and its nested children. The
// display path comes from the persisted NSPath when set, else it is derived
// from the parent's key.
func flattenNamespace(entries []pathEntry, parentKey string, node *api.NamespaceNode) []pathEntry {
	if node == nil {
		return entries
	}
	key := node.Config.NSPath
	if key == "" {
		key = parentKey + "/" + node.Config.Name
	}
	entries = appendEntry(entries, key, node.Config.HierarchicalPath)
	for _, child := range node.Children {
		entries = flattenNamespace(entries, key, child)
	}
	return entries
}

func appendEntry(entries []pathEntry, key string, path api.HierarchicalPath) []pathEntry {
	if key == "" {
		return entries
	}
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = strings.ToLower(seg)
	}
	return append(entries, pathEntry{key: key, segments: segments, path: path})
}
