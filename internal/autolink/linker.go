// Package autolink discovers relations between knowledge graph nodes after
// ingestion. It compares a freshly upserted node against every other node
// using concept overlap, shared etiology vocabulary and label containment,
// then writes the best matches as bidirectional edges.
package autolink

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/store"
)

// triggerVocab marks etiology families. Two nodes sharing a trigger term in
// their label or pivot terms are linked same_etiology_as even when their
// concept sets barely overlap.
var triggerVocab = map[string]bool{
	"envenomation": true, "venom": true, "snakebite": true, "sting": true,
	"bite": true, "toxin": true, "toxic": true, "poisoning": true,
	"overdose": true, "intoxication": true, "trauma": true, "burn": true,
	"fracture": true, "crush": true, "electrocution": true, "drowning": true,
}

// Linker scores node pairs and materializes the winning relations.
type Linker struct {
	log  *logrus.Logger
	snap *store.Snapshot
	cfg  domain.LinkerConfig
}

// New creates a linker over the given snapshot.
func New(logger *logrus.Logger, snap *store.Snapshot, cfg domain.LinkerConfig) *Linker {
	return &Linker{log: logger, snap: snap, cfg: cfg}
}

type candidate struct {
	node     *domain.Node
	score    float64
	relation domain.Relation
}

// LinkNode compares the node against all other nodes and creates edges for
// the top matches. A pair qualifies when its combined score reaches the
// similarity threshold, or when a structural signal (shared trigger term,
// label containment) fires regardless of score. Both directions are written:
// the forward relation on the node, its inverse on the matched node. Returns
// the ids of the nodes linked in this pass.
func (l *Linker) LinkNode(node *domain.Node) []string {
	if node == nil {
		return nil
	}

	ownIDs := node.ConceptIDs()
	ownLabel := domain.Normalize(node.Label)
	ownTriggers := triggerTerms(node)

	var candidates []candidate
	for _, other := range l.snap.Nodes {
		if other.ID == node.ID {
			continue
		}

		score := jaccard(ownIDs, other.ConceptIDs())
		relation := domain.RelRelatedTo
		signal := false

		otherLabel := domain.Normalize(other.Label)
		if ownLabel != "" && otherLabel != "" && ownLabel != otherLabel {
			if strings.Contains(otherLabel, ownLabel) {
				relation = domain.RelGeneralizationOf
				score += l.cfg.SubstringBonus
				signal = true
			} else if strings.Contains(ownLabel, otherLabel) {
				relation = domain.RelIsSpecificOf
				score += l.cfg.SubstringBonus
				signal = true
			}
		}

		// The trigger bonus accumulates with containment; the relation stays
		// the containment one when both signals fire.
		if sharesTrigger(ownTriggers, other) {
			if !signal {
				relation = domain.RelSameEtiologyAs
			}
			score += l.cfg.TriggerBonus
			signal = true
		}

		if score < l.cfg.SimilarityThreshold && !signal {
			continue
		}
		candidates = append(candidates, candidate{node: other, score: score, relation: relation})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].node.ID < candidates[j].node.ID
	})

	max := l.cfg.MaxMatches
	if max <= 0 {
		max = 5
	}
	if len(candidates) > max {
		candidates = candidates[:max]
	}

	var linked []string
	for _, c := range candidates {
		l.connect(node, c.node, c.relation, c.score)
		linked = append(linked, c.node.ID)
	}

	if len(linked) > 0 {
		l.log.WithFields(logrus.Fields{
			"node_id": node.ID,
			"label":   node.Label,
			"linked":  len(linked),
		}).Info("Auto-linked node")
	}

	return linked
}

// connect writes the forward and inverse edges and mirrors them on the node
// records.
func (l *Linker) connect(from, to *domain.Node, relation domain.Relation, score float64) {
	strength := score
	if strength < 1 {
		strength = 1
	}

	l.snap.UpsertEdge(from.ID, relation, to.ID, strength, "auto-linker")
	l.snap.UpsertEdge(to.ID, relation.Inverse(), from.ID, strength, "auto-linker")

	if !from.HasLink(relation, to.ID) {
		from.Links = append(from.Links, domain.NodeLink{Relation: relation, TargetID: to.ID})
	}
	if !to.HasLink(relation.Inverse(), from.ID) {
		to.Links = append(to.Links, domain.NodeLink{Relation: relation.Inverse(), TargetID: from.ID})
	}

	l.log.WithFields(logrus.Fields{
		"source":   from.Label,
		"relation": relation,
		"target":   to.Label,
		"score":    score,
	}).Debug("Nodes linked")
}

// jaccard is |intersection| / |union| over two concept id sets. Empty sets
// yield zero.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for id := range a {
		if _, ok := b[id]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// triggerTerms collects the trigger vocabulary present in a node's label and
// pivot terms.
func triggerTerms(n *domain.Node) map[string]bool {
	found := make(map[string]bool)
	collect := func(text string) {
		for _, tok := range domain.Tokenize(text) {
			if triggerVocab[tok] {
				found[tok] = true
			}
		}
	}
	collect(n.Label)
	for _, pivot := range n.ConceptTrees.PivotTerms {
		collect(pivot)
	}
	return found
}

func sharesTrigger(own map[string]bool, other *domain.Node) bool {
	if len(own) == 0 {
		return false
	}
	for term := range triggerTerms(other) {
		if own[term] {
			return true
		}
	}
	return false
}
