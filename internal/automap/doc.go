// Package automap resolves raw source topics to namespace paths.
//
// The mapper flattens the namespace tree into a set of display paths and
// keeps them behind an atomic pointer, so lookups read a consistent snapshot
// without locking. Paths are indexed by their lowercased trailing segment.
// A topic's final segment is its tag name; the remaining segments are
// matched case-insensitively against path suffixes of at least two levels,
// and the deepest matching path wins.
//
// Every snapshot is one cache generation. Resolved lookups are memoized per
// generation, and ProcessTopic acts on each topic at most once per
// generation. Topics that cannot be mapped are remembered in a bounded LRU
// pending set and re-evaluated after the next NamespaceStructureChanged
// rebuild.
package automap
