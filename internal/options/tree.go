// Package options rebuilds attribute option and category hierarchies from
// flat parent-linked rows and attaches facet counts to them.
package options

import (
	"sort"
)

// Item is one flat row. ParentID is empty for roots.
type Item struct {
	ID       string
	ParentID string
	Slug     string
	Name     string
	Priority int
	Color    *string
}

// Node is an Item placed in the tree. Total is Count plus the totals of all children.
type Node struct {
	Item
	Count    int64
	Total    int64
	Selected bool
	Children []*Node
}

// BuildOptions controls counting and pruning
type BuildOptions struct {
	// Counts by slug; nil means every count is zero
	Counts map[string]int64
	// Selected reports whether a slug is part of the active filter
	Selected func(slug string) bool
	// KeepEmpty keeps nodes whose total count is zero
	KeepEmpty bool
}

// Build re-nests items by ParentID.
// Items whose parent is missing become roots. When parent links form a cycle
// the first item of the cycle in sibling order becomes a root. Siblings are
// ordered by priority descending, then name, then slug. Nodes with a zero
// total are dropped unless selected, KeepEmpty is set, or a kept node sits
// below them.
func Build(items []Item, opts BuildOptions) []*Node {
	nodes := make(map[string]*Node, len(items))
	ordered := make([]*Node, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, exists := nodes[item.ID]; exists {
			continue
		}
		n := &Node{Item: item, Count: opts.Counts[item.Slug]}
		if opts.Selected != nil {
			n.Selected = opts.Selected(item.Slug)
		}
		nodes[item.ID] = n
		ordered = append(ordered, n)
	}
	sortNodes(ordered)

	parent := make(map[string]string, len(ordered))
	for _, n := range ordered {
		if n.ParentID == "" || n.ParentID == n.ID {
			continue
		}
		if _, ok := nodes[n.ParentID]; ok {
			parent[n.ID] = n.ParentID
		}
	}
	for _, n := range ordered {
		if inCycle(n.ID, parent) {
			delete(parent, n.ID)
		}
	}

	var roots []*Node
	for _, n := range ordered {
		if pid, ok := parent[n.ID]; ok {
			p := nodes[pid]
			p.Children = append(p.Children, n)
			continue
		}
		roots = append(roots, n)
	}

	for _, r := range roots {
		total(r)
	}
	if opts.KeepEmpty {
		return roots
	}
	return prune(roots)
}

func inCycle(id string, parent map[string]string) bool {
	seen := map[string]bool{id: true}
	for cur, ok := parent[id]; ok; cur, ok = parent[cur] {
		if cur == id {
			return true
		}
		if seen[cur] {
			// cycle above id, handled when its own members are visited
			return false
		}
		seen[cur] = true
	}
	return false
}

func total(n *Node) int64 {
	n.Total = n.Count
	for _, c := range n.Children {
		n.Total += total(c)
	}
	return n.Total
}

func prune(nodes []*Node) []*Node {
	kept := nodes[:0]
	for _, n := range nodes {
		n.Children = prune(n.Children)
		if n.Total > 0 || n.Selected || len(n.Children) > 0 {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Slug < b.Slug
	})
}
