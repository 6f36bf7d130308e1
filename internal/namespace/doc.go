// Package namespace owns the authoritative model of the UNS tree: hierarchy
// instances placed from the active template, user-defined namespace folders
// anchored on them, and the hierarchy templates themselves.
//
// Every mutating operation validates against the uniqueness rules, persists,
// and then publishes NamespaceStructureChanged so the auto-mapper can rebuild
// its cache. Deleting a namespace cascades: descendant namespaces are removed
// bottom-up and every topic mapped below the deleted subtree loses its
// namespace assignment.
package namespace
