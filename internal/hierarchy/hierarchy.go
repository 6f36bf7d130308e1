// Package hierarchy holds the hierarchy template model: validation of
// user-defined hierarchy configurations and the system-defined ISA-95
// default that is seeded on first start.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"unshub/internal/api"
)

// DefaultConfigurationID is the stable id of the seeded ISA-95 template.
// Stable ids keep EnsureDefault idempotent across restarts.
const DefaultConfigurationID = "hierarchy-isa95"

// DefaultConfiguration returns the system-defined ISA-95 hierarchy template:
// Enterprise > Site > Area > WorkCenter > WorkUnit, with Enterprise required.
// It is marked active; storage providers seed it when no configuration exists.
func DefaultConfiguration() api.HierarchyConfiguration {
	now := time.Now().UTC()
	return api.HierarchyConfiguration{
		ID:              DefaultConfigurationID,
		Name:            "ISA-95 Equipment Hierarchy",
		IsActive:        true,
		IsSystemDefined: true,
		CreatedAt:       now,
		ModifiedAt:      now,
		Nodes: []api.HierarchyNode{
			{
				ID:                  "node-enterprise",
				Name:                "Enterprise",
				Order:               1,
				IsRequired:          true,
				AllowedChildNodeIDs: []string{"node-site"},
				Description:         "Top-level business entity",
			},
			{
				ID:                  "node-site",
				Name:                "Site",
				Order:               2,
				ParentNodeID:        "node-enterprise",
				AllowedChildNodeIDs: []string{"node-area"},
				Description:         "Physical or logical plant location",
			},
			{
				ID:                  "node-area",
				Name:                "Area",
				Order:               3,
				ParentNodeID:        "node-site",
				AllowedChildNodeIDs: []string{"node-workcenter"},
				Description:         "Production area within a site",
			},
			{
				ID:                  "node-workcenter",
				Name:                "WorkCenter",
				Order:               4,
				ParentNodeID:        "node-area",
				AllowedChildNodeIDs: []string{"node-workunit"},
				Description:         "Line, cell or process unit",
			},
			{
				ID:           "node-workunit",
				Name:         "WorkUnit",
				Order:        5,
				ParentNodeID: "node-workcenter",
				Description:  "Single machine or station",
			},
		},
	}
}

// Validate checks the structural invariants of a hierarchy configuration:
// non-empty ids, names unique within the configuration (case-insensitive),
// Order unique within each parent, parent links that resolve and form a
// tree, allowed-child references that resolve, and at least one root node.
// It returns an api.ValidationError listing every finding, or nil.
func Validate(cfg api.HierarchyConfiguration) error {
	var problems []string

	if strings.TrimSpace(cfg.Name) == "" {
		problems = append(problems, "configuration name must not be empty")
	}
	if len(cfg.Nodes) == 0 {
		problems = append(problems, "configuration must define at least one node")
		return api.NewValidationError(componentName(cfg), problems...)
	}

	byID := make(map[string]api.HierarchyNode, len(cfg.Nodes))
	namesSeen := make(map[string]string) // lower(name) -> original
	for _, node := range cfg.Nodes {
		if strings.TrimSpace(node.ID) == "" {
			problems = append(problems, fmt.Sprintf("node %q has an empty id", node.Name))
			continue
		}
		if _, dup := byID[node.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", node.ID))
			continue
		}
		byID[node.ID] = node

		if strings.TrimSpace(node.Name) == "" {
			problems = append(problems, fmt.Sprintf("node %q has an empty name", node.ID))
		} else if prev, dup := namesSeen[strings.ToLower(node.Name)]; dup {
			problems = append(problems, fmt.Sprintf("node name %q collides with %q", node.Name, prev))
		} else {
			namesSeen[strings.ToLower(node.Name)] = node.Name
		}
	}

	// Order must be unique among siblings (nodes sharing a parent).
	ordersByParent := make(map[string]map[int]string)
	for _, node := range cfg.Nodes {
		orders, ok := ordersByParent[node.ParentNodeID]
		if !ok {
			orders = make(map[int]string)
			ordersByParent[node.ParentNodeID] = orders
		}
		if other, dup := orders[node.Order]; dup {
			problems = append(problems, fmt.Sprintf("nodes %q and %q share order %d under the same parent", other, node.Name, node.Order))
		} else {
			orders[node.Order] = node.Name
		}
	}

	roots := 0
	for _, node := range cfg.Nodes {
		if node.ParentNodeID == "" {
			roots++
			continue
		}
		if _, ok := byID[node.ParentNodeID]; !ok {
			problems = append(problems, fmt.Sprintf("node %q references unknown parent %q", node.Name, node.ParentNodeID))
		}
	}
	if roots == 0 {
		problems = append(problems, "configuration has no root node")
	}

	for _, node := range cfg.Nodes {
		for _, childID := range node.AllowedChildNodeIDs {
			if _, ok := byID[childID]; !ok {
				problems = append(problems, fmt.Sprintf("node %q allows unknown child %q", node.Name, childID))
			}
		}
	}

	// Parent links must not form a cycle.
	for _, node := range cfg.Nodes {
		visited := map[string]bool{node.ID: true}
		current := node
		for current.ParentNodeID != "" {
			parent, ok := byID[current.ParentNodeID]
			if !ok {
				break // dangling parent already reported
			}
			if visited[parent.ID] {
				problems = append(problems, fmt.Sprintf("node %q is part of a parent cycle", node.Name))
				break
			}
			visited[parent.ID] = true
			current = parent
		}
	}

	if len(problems) > 0 {
		return api.NewValidationError(componentName(cfg), problems...)
	}
	return nil
}

// NodeByID returns the node with the given id from the configuration.
func NodeByID(cfg api.HierarchyConfiguration, id string) (api.HierarchyNode, bool) {
	for _, node := range cfg.Nodes {
		if node.ID == id {
			return node, true
		}
	}
	return api.HierarchyNode{}, false
}

// RootNodes returns the nodes without a parent, in Order.
func RootNodes(cfg api.HierarchyConfiguration) []api.HierarchyNode {
	var roots []api.HierarchyNode
	for _, node := range cfg.Nodes {
		if node.ParentNodeID == "" {
			roots = append(roots, node)
		}
	}
	sortByOrder(roots)
	return roots
}

// AllowedChildren resolves the AllowedChildNodeIDs of the given node, in Order.
func AllowedChildren(cfg api.HierarchyConfiguration, nodeID string) []api.HierarchyNode {
	node, ok := NodeByID(cfg, nodeID)
	if !ok {
		return nil
	}
	var children []api.HierarchyNode
	for _, childID := range node.AllowedChildNodeIDs {
		if child, ok := NodeByID(cfg, childID); ok {
			children = append(children, child)
		}
	}
	sortByOrder(children)
	return children
}

func sortByOrder(nodes []api.HierarchyNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Order < nodes[j].Order })
}

func componentName(cfg api.HierarchyConfiguration) string {
	if cfg.Name != "" {
		return fmt.Sprintf("hierarchy configuration %q", cfg.Name)
	}
	return "hierarchy configuration"
}
