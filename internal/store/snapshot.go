// Package store holds the in-memory snapshot of the whole knowledge graph
// and its SQLite persistence. The core operates read-modify-write: a unit of
// work loads the full snapshot, mutates it in memory, and saves it back.
// There is no locking; the design assumes a single logical writer.
package store

import (
	"strings"
	"time"

	"github.com/clinigraph-server/internal/domain"
)

// Snapshot is the fully-loaded state of the graph. All collections are flat
// and keyed by the identity keys that must survive save/load cycles.
type Snapshot struct {
	// Concepts by concept id.
	Concepts map[string]*domain.Concept
	// Nodes by node id.
	Nodes map[string]*domain.Node
	// Links by LinkKey(source, relation, target), labels normalized.
	Links map[string]*domain.SemanticLink
	// Edges by EdgeKey(sourceID, relation, targetID).
	Edges map[string]*domain.GraphEdge
	// Syndromes by syndrome id.
	Syndromes map[string]*domain.Syndrome
	// TempConcepts by normalized raw label.
	TempConcepts map[string]*domain.TempConcept
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Concepts:     make(map[string]*domain.Concept),
		Nodes:        make(map[string]*domain.Node),
		Links:        make(map[string]*domain.SemanticLink),
		Edges:        make(map[string]*domain.GraphEdge),
		Syndromes:    make(map[string]*domain.Syndrome),
		TempConcepts: make(map[string]*domain.TempConcept),
	}
}

// LinkKey builds the semantic link identity key from normalized labels.
func LinkKey(source string, relation domain.Relation, target string) string {
	return strings.Join([]string{domain.Normalize(source), string(relation), domain.Normalize(target)}, "|")
}

// EdgeKey builds the graph edge identity key.
func EdgeKey(sourceID string, relation domain.Relation, targetID string) string {
	return strings.Join([]string{sourceID, string(relation), targetID}, "|")
}

// FindConceptByLabel returns the concept whose label or any synonym matches
// the normalized form of label, or nil.
func (s *Snapshot) FindConceptByLabel(label string) *domain.Concept {
	want := domain.Normalize(label)
	if want == "" {
		return nil
	}
	for _, c := range s.Concepts {
		if domain.Normalize(c.Label) == want {
			return c
		}
		for _, syn := range c.Synonyms {
			if domain.Normalize(syn) == want {
				return c
			}
		}
	}
	return nil
}

// FindNodeByKey returns the node with the given node key, or nil.
func (s *Snapshot) FindNodeByKey(key string) *domain.Node {
	if key == "" {
		return nil
	}
	for _, n := range s.Nodes {
		if n.NodeKey == key {
			return n
		}
	}
	return nil
}

// FindNodeByKindLabel matches a node by (kind, normalized label). Migration
// path for records created before node keys existed.
func (s *Snapshot) FindNodeByKindLabel(kind domain.NodeKind, label string) *domain.Node {
	want := domain.Normalize(label)
	if want == "" {
		return nil
	}
	for _, n := range s.Nodes {
		if n.Kind == kind && domain.Normalize(n.Label) == want {
			return n
		}
	}
	return nil
}

// FindSyndromeByLabel returns the syndrome matching the normalized label, or nil.
func (s *Snapshot) FindSyndromeByLabel(label string) *domain.Syndrome {
	want := domain.Normalize(label)
	for _, syn := range s.Syndromes {
		if domain.Normalize(syn.Label) == want {
			return syn
		}
	}
	return nil
}

// OutboundEdges returns the edges leaving the given node.
func (s *Snapshot) OutboundEdges(nodeID string) []*domain.GraphEdge {
	var out []*domain.GraphEdge
	for _, e := range s.Edges {
		if e.SourceID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// UpsertEdge inserts a graph edge or reinforces the existing one under the
// same (source, relation, target) key. Self-loops are a no-op and return
// nil.
func (s *Snapshot) UpsertEdge(sourceID string, relation domain.Relation, targetID string, strength float64, source string) *domain.GraphEdge {
	if sourceID == "" || targetID == "" || sourceID == targetID {
		return nil
	}
	if strength < 1 {
		strength = 1
	}

	key := EdgeKey(sourceID, relation, targetID)
	now := time.Now().UTC()

	if existing, ok := s.Edges[key]; ok {
		existing.Strength += strength
		existing.CountSeen++
		existing.LastSeen = now
		if source != "" {
			found := false
			for _, src := range existing.Sources {
				if src == source {
					found = true
					break
				}
			}
			if !found {
				existing.Sources = append(existing.Sources, source)
			}
		}
		return existing
	}

	e := &domain.GraphEdge{
		SourceID:  sourceID,
		Relation:  relation,
		TargetID:  targetID,
		Strength:  strength,
		CountSeen: 1,
		LastSeen:  now,
	}
	if source != "" {
		e.Sources = []string{source}
	}
	s.Edges[key] = e
	return e
}

// DeleteNode removes a node and cascades: every edge touching it and every
// mirrored link pointing at it from other nodes is cleaned up.
func (s *Snapshot) DeleteNode(nodeID string) error {
	if _, ok := s.Nodes[nodeID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.Nodes, nodeID)

	for key, e := range s.Edges {
		if e.SourceID == nodeID || e.TargetID == nodeID {
			delete(s.Edges, key)
		}
	}

	for _, n := range s.Nodes {
		kept := n.Links[:0]
		for _, l := range n.Links {
			if l.TargetID != nodeID {
				kept = append(kept, l)
			}
		}
		n.Links = kept
	}

	return nil
}
