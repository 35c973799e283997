// Package semlink maintains the weighted directed graph of relations between
// free-text labels and resolves raw labels to canonical ones by walking
// synonym and is-a links.
package semlink

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/store"
)

// MaxHops bounds transitive label resolution.
const MaxHops = 6

const defaultCacheSize = 512

// Graph operates on the semantic links of one snapshot. Resolution results
// are memoized in a bounded LRU; any upsert invalidates the cache wholesale
// since a single new link can redirect arbitrary chains.
type Graph struct {
	log   *logrus.Logger
	snap  *store.Snapshot
	cache *lru.Cache[string, string]
}

// New creates a semantic link graph over the given snapshot. cacheSize <= 0
// selects the default.
func New(logger *logrus.Logger, snap *store.Snapshot, cacheSize int) *Graph {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, _ := lru.New[string, string](cacheSize)
	return &Graph{log: logger, snap: snap, cache: cache}
}

// Upsert inserts a link or reinforces the existing one under the same
// (source, relation, target) key. Self-loops after normalization are a
// no-op; labels that normalize to empty abort this upsert only.
func (g *Graph) Upsert(link domain.SemanticLink) error {
	source := domain.Normalize(link.Source)
	target := domain.Normalize(link.Target)

	if source == "" {
		return &domain.KeyError{Label: link.Source}
	}
	if target == "" {
		return &domain.KeyError{Label: link.Target}
	}
	if source == target {
		return nil
	}

	strength := link.Strength
	if strength < 1 {
		strength = 1
	}

	key := store.LinkKey(source, link.Relation, target)
	now := time.Now().UTC()

	if existing, ok := g.snap.Links[key]; ok {
		existing.Strength += strength
		existing.CountSeen++
		existing.LastSeen = now
		existing.Sources = mergeSources(existing.Sources, link.Sources)
	} else {
		g.snap.Links[key] = &domain.SemanticLink{
			Source:    source,
			Relation:  link.Relation,
			Target:    target,
			Strength:  strength,
			CountSeen: 1,
			LastSeen:  now,
			Sources:   mergeSources(nil, link.Sources),
		}
	}

	g.cache.Purge()

	g.log.WithFields(logrus.Fields{
		"source":   source,
		"relation": link.Relation,
		"target":   target,
	}).Debug("Semantic link upserted")

	return nil
}

// ResolveLabel walks transitive links from the normalized label and returns
// the canonical label reached. At each hop it follows the single best
// outgoing synonym_of/is_a edge (highest strength, then highest count_seen)
// and stops on a dead end, the hop limit, or a revisited label. The walk is
// greedy: one best edge per hop, not a full path search.
func (g *Graph) ResolveLabel(label string) string {
	current := domain.Normalize(label)
	if current == "" {
		return ""
	}

	if cached, ok := g.cache.Get(current); ok {
		return cached
	}

	start := current
	visited := map[string]bool{current: true}

	for hop := 0; hop < MaxHops; hop++ {
		next := g.bestTransitiveTarget(current)
		if next == "" {
			break
		}
		if visited[next] {
			// Cycle: return the label reached so far, not an error.
			break
		}
		visited[next] = true
		current = next
	}

	g.cache.Add(start, current)
	return current
}

// bestTransitiveTarget picks the strongest transitive edge leaving a label.
func (g *Graph) bestTransitiveTarget(source string) string {
	var best *domain.SemanticLink
	for _, l := range g.snap.Links {
		if l.Source != source || !l.Relation.Transitive() {
			continue
		}
		if best == nil ||
			l.Strength > best.Strength ||
			(l.Strength == best.Strength && l.CountSeen > best.CountSeen) ||
			(l.Strength == best.Strength && l.CountSeen == best.CountSeen && l.Target < best.Target) {
			best = l
		}
	}
	if best == nil {
		return ""
	}
	return best.Target
}

func mergeSources(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := existing
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range incoming {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
