package core

import (
	"context"
	"slices"

	"github.com/rs/zerolog/log"

	"autobuild/internal/types"
)

const (
	ReasonFailed   = "failed"
	ReasonSkipped  = "skipped"
	requiresPrefix = "requires: "
)

// DefaultSkip lists entries that are never built.
var DefaultSkip = []string{"mingw-w64-clang"}

type Classifier struct {
	skip []string
}

func NewClassifier(skip []string) Classifier {
	return Classifier{skip: slices.Clone(skip)}
}

// Classify partitions the graph's entries against the published artifacts
// and failure markers. Each result list keeps queue order. The result does
// not depend on the order entries are visited in.
func (c Classifier) Classify(ctx context.Context, graph *BuildGraph, artifactNames []string, failedNames []string) types.Classification {
	blocked := c.blockedNodes(graph, failedNames)
	result := types.Classification{
		Done:    []types.QueueEntry{},
		Skipped: []types.SkippedEntry{},
		Todo:    []types.QueueEntry{},
	}
	for _, node := range graph.Nodes {
		entry := node.Entry
		switch {
		case IsPublished(entry, artifactNames):
			result.Done = append(result.Done, entry)
		case HasFailureMarker(entry, failedNames):
			result.Skipped = append(result.Skipped, types.SkippedEntry{Entry: entry, Reason: ReasonFailed})
		case c.excluded(node):
			result.Skipped = append(result.Skipped, types.SkippedEntry{Entry: entry, Reason: ReasonSkipped})
		default:
			if dep := firstBlocked(node, blocked); dep != nil {
				result.Skipped = append(result.Skipped, types.SkippedEntry{Entry: entry, Reason: requiresPrefix + dep.Name()})
				continue
			}
			result.Todo = append(result.Todo, entry)
		}
	}
	log.Ctx(ctx).Debug().
		Int("done", len(result.Done)).
		Int("skipped", len(result.Skipped)).
		Int("todo", len(result.Todo)).
		Msg("queue classified")
	return result
}

func (c Classifier) excluded(node *Node) bool {
	return slices.Contains(c.skip, node.Entry.Name)
}

// blockedNodes returns every node that has a failure marker or is excluded,
// plus everything depending on one of those through any number of hops.
// Published artifacts do not clear a node.
func (c Classifier) blockedNodes(graph *BuildGraph, failedNames []string) map[*Node]bool {
	dependents := make(map[*Node][]*Node, len(graph.Nodes))
	blocked := make(map[*Node]bool, len(graph.Nodes))
	var pending []*Node
	for _, node := range graph.Nodes {
		for _, edge := range node.Dependencies {
			dependents[edge.Node] = append(dependents[edge.Node], node)
		}
		if HasFailureMarker(node.Entry, failedNames) || c.excluded(node) {
			blocked[node] = true
			pending = append(pending, node)
		}
	}
	for len(pending) > 0 {
		node := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		for _, dependent := range dependents[node] {
			if !blocked[dependent] {
				blocked[dependent] = true
				pending = append(pending, dependent)
			}
		}
	}
	return blocked
}

// firstBlocked returns the first dependency, in declared order, that is
// blocked.
func firstBlocked(node *Node, blocked map[*Node]bool) *Node {
	for _, edge := range node.Dependencies {
		if blocked[edge.Node] {
			return edge.Node
		}
	}
	return nil
}

// IsPublished reports whether every package the entry produces has an
// artifact at the entry's version. An entry producing nothing counts as
// published.
func IsPublished(entry types.QueueEntry, artifactNames []string) bool {
	for _, item := range entry.Packages {
		if !MatchAny(artifactNames, ArtifactPattern(item, entry.Version)) {
			return false
		}
	}
	return true
}

// HasFailureMarker reports whether any package the entry produces has a
// failure marker at the entry's version.
func HasFailureMarker(entry types.QueueEntry, failedNames []string) bool {
	for _, item := range entry.Packages {
		if slices.Contains(failedNames, FailureMarkerName(item, entry.Version)) {
			return true
		}
	}
	return false
}
