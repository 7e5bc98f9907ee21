package core

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"autobuild/internal/types"
)

// Node is one queue entry in the dependency graph.
type Node struct {
	Entry        types.QueueEntry
	Dependencies []Edge
}

// Edge links a declared dependency name to the entry producing it.
type Edge struct {
	Name string
	Node *Node
}

func (n *Node) Name() string { return n.Entry.Name }

// BuildGraph is the dependency graph of one queue snapshot. Node order is
// queue order; nothing in the graph assumes that order is topological.
type BuildGraph struct {
	Nodes     []*Node
	byName    map[string]*Node
	producers map[string]*Node
}

// NewBuildGraph links every declared dependency to its producing entry. A
// dependency name without exactly one producer means the queue is not
// internally consistent, which is fatal for the run.
func NewBuildGraph(entries []types.QueueEntry) (*BuildGraph, error) {
	graph := &BuildGraph{
		Nodes:     make([]*Node, 0, len(entries)),
		byName:    map[string]*Node{},
		producers: map[string]*Node{},
	}
	for _, entry := range entries {
		if strings.TrimSpace(entry.Name) == "" || strings.TrimSpace(entry.Version) == "" {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("queue entry without name or version")
		}
		if _, exists := graph.byName[entry.Name]; exists {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("duplicate queue entry: %s", entry.Name))
		}
		node := &Node{Entry: entry}
		graph.Nodes = append(graph.Nodes, node)
		graph.byName[entry.Name] = node
		for _, produced := range entry.Packages {
			if other, exists := graph.producers[produced]; exists {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeFailedPrecondition).
					WithMsg(fmt.Sprintf("package %s produced by both %s and %s", produced, other.Name(), entry.Name))
			}
			graph.producers[produced] = node
		}
	}
	for _, node := range graph.Nodes {
		seen := map[string]struct{}{}
		for _, dep := range node.Entry.Depends {
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			producer, ok := graph.producers[dep]
			if !ok {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeFailedPrecondition).
					WithMsg(fmt.Sprintf("unresolved dependency %s of %s", dep, node.Name()))
			}
			node.Dependencies = append(node.Dependencies, Edge{Name: dep, Node: producer})
		}
	}
	return graph, nil
}

// Node returns the node for a queue entry name.
func (g *BuildGraph) Node(name string) (*Node, bool) {
	node, ok := g.byName[name]
	return node, ok
}

// Producer returns the node producing the named package.
func (g *BuildGraph) Producer(packageName string) (*Node, bool) {
	node, ok := g.producers[packageName]
	return node, ok
}

// Entries returns the queue entries in queue order.
func (g *BuildGraph) Entries() []types.QueueEntry {
	entries := make([]types.QueueEntry, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		entries = append(entries, node.Entry)
	}
	return entries
}
