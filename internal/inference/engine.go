// Package inference ranks knowledge graph nodes against an observation set.
// The engine builds a multi-key lookup over the observed values, scores every
// candidate node branch by branch with typed presence and modality rules,
// applies pivot, syndrome and keyword bonuses, then expands the result set
// along graph edges.
package inference

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinigraph-server/internal/concepts"
	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/semlink"
	"github.com/clinigraph-server/internal/store"
)

// stopWords are generic severity, laterality and nosology tokens excluded
// from the keyword-rescue bonus.
var stopWords = map[string]bool{
	"acute": true, "chronic": true, "severe": true, "mild": true,
	"moderate": true, "bilateral": true, "unilateral": true,
	"left": true, "right": true, "primary": true, "secondary": true,
	"syndrome": true, "disease": true, "disorder": true, "condition": true,
}

// Engine scores candidates over one snapshot.
type Engine struct {
	log      *logrus.Logger
	snap     *store.Snapshot
	links    *semlink.Graph
	registry *concepts.Store
	cfg      domain.ScoringConfig
}

// New creates an inference engine bound to a snapshot.
func New(logger *logrus.Logger, snap *store.Snapshot, links *semlink.Graph,
	registry *concepts.Store, cfg domain.ScoringConfig) *Engine {
	return &Engine{log: logger, snap: snap, links: links, registry: registry, cfg: cfg}
}

// observationIndex is the multi-key lookup built once per query. Every value
// is reachable under its raw element id, its normalized label, its
// semantically resolved label and any concept id either label reaches. The
// redundancy covers callers that reference concepts by id, by name or by
// stale synonym.
type observationIndex struct {
	values map[string]domain.Value
}

func (e *Engine) buildIndex(obs domain.Observation) *observationIndex {
	idx := &observationIndex{values: make(map[string]domain.Value)}

	for _, ov := range obs.Values {
		if ov.ElementID == "" {
			continue
		}
		value := domain.NormalizeValue(ov.Value)

		keys := map[string]bool{ov.ElementID: true}

		norm := domain.Normalize(ov.ElementID)
		if norm != "" {
			keys[norm] = true
		}
		if resolved := e.links.ResolveLabel(ov.ElementID); resolved != "" {
			keys[resolved] = true
		}

		// The element id may itself be a concept id; mirror the value under
		// the concept's labels so name-based branches still see it.
		if c, ok := e.snap.Concepts[ov.ElementID]; ok {
			keys[domain.Normalize(c.Label)] = true
			for _, syn := range c.Synonyms {
				keys[domain.Normalize(syn)] = true
			}
		}

		for key := range keys {
			if id := e.registry.ResolveToConceptID(key); id != "" {
				keys[id] = true
				break
			}
		}

		for key := range keys {
			if key == "" {
				continue
			}
			idx.values[key] = value
		}
	}

	return idx
}

// lookup returns the observed value for a concept, trying the concept id,
// its normalized label and its synonyms.
func (idx *observationIndex) lookup(conceptID string, c *domain.Concept) (domain.Value, bool) {
	if v, ok := idx.values[conceptID]; ok {
		return v, true
	}
	if c == nil {
		return domain.AbsentValue(), false
	}
	if v, ok := idx.values[domain.Normalize(c.Label)]; ok {
		return v, true
	}
	for _, syn := range c.Synonyms {
		if v, ok := idx.values[domain.Normalize(syn)]; ok {
			return v, true
		}
	}
	return domain.AbsentValue(), false
}

// Query scores the candidate nodes against the observation and returns all
// results sorted by descending score. Callers filter to score > 0 for
// display; zero-score results are kept for diagnostics. A nil candidate
// slice scores every node in the snapshot.
func (e *Engine) Query(obs domain.Observation, candidates []*domain.Node) []domain.InferenceResult {
	if candidates == nil {
		candidates = make([]*domain.Node, 0, len(e.snap.Nodes))
		for _, n := range e.snap.Nodes {
			candidates = append(candidates, n)
		}
	}

	idx := e.buildIndex(obs)
	rawText := strings.ToLower(obs.RawText)
	normText := domain.Normalize(obs.RawText)

	results := make(map[string]*domain.InferenceResult, len(candidates))
	for _, node := range candidates {
		results[node.ID] = e.scoreNode(node, idx, rawText, normText)
	}

	e.expand(results)

	out := make([]domain.InferenceResult, 0, len(results))
	for _, r := range results {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Node.Label < out[j].Node.Label
	})

	e.log.WithFields(logrus.Fields{
		"values":     len(obs.Values),
		"candidates": len(candidates),
		"results":    len(out),
	}).Debug("Query scored")

	return out
}

func (e *Engine) scoreNode(node *domain.Node, idx *observationIndex, rawText, normText string) *domain.InferenceResult {
	r := &domain.InferenceResult{Node: node}

	for _, branch := range node.Branches() {
		concept := e.snap.Concepts[branch.ConceptID]
		value, found := idx.lookup(branch.ConceptID, concept)

		if !found || !isPresent(concept, value) {
			r.UnmatchedConcepts = append(r.UnmatchedConcepts, branch.ConceptID)
			continue
		}

		r.Score += e.cfg.PresenceScore
		r.MatchedConcepts = append(r.MatchedConcepts, branch.ConceptID)

		if best := bestModality(branch.Modalities, value); best != nil {
			r.Score += best.Score
			r.ActiveModalities = append(r.ActiveModalities, best.Label)
			r.Reasoning = append(r.Reasoning, fmt.Sprintf("modality %q satisfied", best.Label))
		}
	}

	for _, pivot := range node.ConceptTrees.PivotTerms {
		p := strings.ToLower(strings.TrimSpace(pivot))
		if p != "" && strings.Contains(rawText, p) {
			r.Score += e.cfg.PivotBonus
			r.Reasoning = append(r.Reasoning, fmt.Sprintf("pivot term %q present in narrative", pivot))
		}
	}

	activeConcepts := make(map[string]bool, len(r.MatchedConcepts))
	for _, id := range r.MatchedConcepts {
		activeConcepts[id] = true
	}
	for _, synID := range node.SyndromeIDs {
		syn, ok := e.snap.Syndromes[synID]
		if !ok {
			continue
		}
		for _, conceptID := range syn.ConceptIDs {
			if activeConcepts[conceptID] || e.conceptActive(idx, conceptID) {
				r.Score += e.cfg.SyndromeBonus
				r.ActiveSyndromes = append(r.ActiveSyndromes, syn.Label)
				r.Reasoning = append(r.Reasoning, fmt.Sprintf("syndrome %q active", syn.Label))
				break
			}
		}
	}

	if normText != "" {
		for _, tok := range domain.Tokenize(node.Label) {
			if len(tok) <= 3 || stopWords[tok] {
				continue
			}
			if strings.Contains(normText, tok) {
				r.Score += e.cfg.KeywordBonus
				r.Reasoning = append(r.Reasoning, fmt.Sprintf("keyword %q matched in narrative", tok))
			}
		}
	}

	return r
}

// conceptActive reports whether an observed value is present for the concept
// independently of any node branch.
func (e *Engine) conceptActive(idx *observationIndex, conceptID string) bool {
	concept := e.snap.Concepts[conceptID]
	value, found := idx.lookup(conceptID, concept)
	return found && isPresent(concept, value)
}

// isPresent applies the typed presence rule: numeric concepts need any
// number (zero counts), boolean concepts need strictly true, text concepts a
// non-empty string. Without a declared concept the value's own kind decides.
func isPresent(c *domain.Concept, v domain.Value) bool {
	if v.IsAbsent() {
		return false
	}

	switch declaredKind(c, v) {
	case domain.ValueNumber:
		return v.Kind == domain.ValueNumber
	case domain.ValueBool:
		return v.Kind == domain.ValueBool && v.Bool
	default:
		return v.Kind == domain.ValueText && strings.TrimSpace(v.Str) != ""
	}
}

// declaredKind resolves the expected value kind of a concept: the UI widget
// first, then the concept type, then a runtime guess from the value itself.
func declaredKind(c *domain.Concept, v domain.Value) domain.ValueKind {
	if c != nil {
		switch c.UIHint.Widget {
		case domain.WidgetNumeric:
			return domain.ValueNumber
		case domain.WidgetText:
			return domain.ValueText
		case domain.WidgetBoolean:
			return domain.ValueBool
		}
		if c.Type == domain.ConceptMeasure {
			return domain.ValueNumber
		}
		return domain.ValueBool
	}
	return v.Kind
}

// bestModality returns the highest-scoring modality whose condition holds
// against the value, or nil.
func bestModality(modalities []domain.Modality, value domain.Value) *domain.Modality {
	var best *domain.Modality
	for i := range modalities {
		m := &modalities[i]
		if !m.Condition.Holds(value) {
			continue
		}
		if best == nil || m.Score > best.Score {
			best = m
		}
	}
	return best
}

// expand propagates scores along graph edges from the top-ranked nodes.
// Reached nodes already in the result set are raised to at least the source
// score; unseen nodes enter carrying the source score with no independent
// match detail.
func (e *Engine) expand(results map[string]*domain.InferenceResult) {
	top := make([]*domain.InferenceResult, 0, len(results))
	for _, r := range results {
		top = append(top, r)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Score != top[j].Score {
			return top[i].Score > top[j].Score
		}
		return top[i].Node.ID < top[j].Node.ID
	})

	limit := e.cfg.ExpansionTop
	if limit <= 0 {
		limit = 5
	}
	if len(top) > limit {
		top = top[:limit]
	}

	for _, source := range top {
		if source.Score <= 0 {
			continue
		}
		for _, link := range outboundRelations(e.snap, source.Node) {
			target, ok := e.snap.Nodes[link.TargetID]
			if !ok {
				// Dangling edge, nothing to boost.
				continue
			}

			if existing, ok := results[target.ID]; ok {
				if existing.Score < source.Score {
					existing.Score = source.Score
					existing.Reasoning = append(existing.Reasoning,
						fmt.Sprintf("boosted by %q via %s", source.Node.Label, link.Relation))
				}
				continue
			}

			results[target.ID] = &domain.InferenceResult{
				Node:  target,
				Score: source.Score,
				Reasoning: []string{
					fmt.Sprintf("linked via %s from %q", link.Relation, source.Node.Label),
				},
			}
		}
	}
}

// outboundRelations merges edge-store edges with the node's own link list,
// deduplicated and sorted for deterministic traversal.
func outboundRelations(snap *store.Snapshot, node *domain.Node) []domain.NodeLink {
	seen := make(map[string]bool)
	var out []domain.NodeLink

	for _, edge := range snap.OutboundEdges(node.ID) {
		key := string(edge.Relation) + "|" + edge.TargetID
		if !seen[key] {
			seen[key] = true
			out = append(out, domain.NodeLink{Relation: edge.Relation, TargetID: edge.TargetID})
		}
	}
	for _, link := range node.Links {
		key := string(link.Relation) + "|" + link.TargetID
		if !seen[key] {
			seen[key] = true
			out = append(out, link)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetID != out[j].TargetID {
			return out[i].TargetID < out[j].TargetID
		}
		return out[i].Relation < out[j].Relation
	})
	return out
}
