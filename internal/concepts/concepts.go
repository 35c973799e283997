// Package concepts is the canonical registry of clinical concepts. It owns
// concept identity: every label entering the system resolves here, directly
// or through the semantic link graph, before anything references it.
package concepts

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/semlink"
	"github.com/clinigraph-server/internal/store"
)

// Store exposes concept canonicalization over one snapshot.
type Store struct {
	log   *logrus.Logger
	snap  *store.Snapshot
	links *semlink.Graph
}

// NewStore creates a concept store bound to a snapshot and its semantic
// link graph.
func NewStore(logger *logrus.Logger, snap *store.Snapshot, links *semlink.Graph) *Store {
	return &Store{log: logger, snap: snap, links: links}
}

// Upsert registers a concept or merges into the existing one matching the
// label or any of its synonyms. New synonyms are merged in; the unit is
// backfilled only when absent. Returns the stable concept id.
func (s *Store) Upsert(label string, conceptType domain.ConceptType, synonyms []string, unit string) (string, error) {
	if domain.Normalize(label) == "" {
		return "", &domain.KeyError{Label: label}
	}

	if existing := s.snap.FindConceptByLabel(label); existing != nil {
		s.merge(existing, label, synonyms, unit)
		return existing.ID, nil
	}

	// A synonym may already belong to a registered concept; merge rather
	// than create a duplicate.
	for _, syn := range synonyms {
		if existing := s.snap.FindConceptByLabel(syn); existing != nil {
			s.merge(existing, label, synonyms, unit)
			return existing.ID, nil
		}
	}

	now := time.Now().UTC()
	widget := domain.WidgetBoolean
	if unit != "" {
		widget = domain.WidgetNumeric
	}

	c := &domain.Concept{
		ID:        uuid.New().String(),
		Label:     label,
		Type:      conceptType,
		Synonyms:  dedupeSynonyms(label, synonyms),
		Unit:      unit,
		UIHint:    domain.UIHint{Widget: widget, Unit: unit},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.snap.Concepts[c.ID] = c

	s.log.WithFields(logrus.Fields{
		"concept_id": c.ID,
		"label":      label,
		"type":       conceptType,
	}).Info("Concept created")

	return c.ID, nil
}

// ResolveToConceptID resolves a raw label to a concept id: direct
// label/synonym match first, then a retry through semantic link resolution.
// Returns "" when nothing matches.
func (s *Store) ResolveToConceptID(label string) string {
	if c := s.snap.FindConceptByLabel(label); c != nil {
		return c.ID
	}

	resolved := s.links.ResolveLabel(label)
	if resolved != "" && resolved != domain.Normalize(label) {
		if c := s.snap.FindConceptByLabel(resolved); c != nil {
			return c.ID
		}
	}

	return ""
}

// Get returns the concept with the given id, or nil.
func (s *Store) Get(conceptID string) *domain.Concept {
	return s.snap.Concepts[conceptID]
}

func (s *Store) merge(existing *domain.Concept, label string, synonyms []string, unit string) {
	incoming := append([]string{label}, synonyms...)
	existingForms := map[string]bool{domain.Normalize(existing.Label): true}
	for _, syn := range existing.Synonyms {
		existingForms[domain.Normalize(syn)] = true
	}

	merged := false
	for _, syn := range incoming {
		norm := domain.Normalize(syn)
		if norm == "" || existingForms[norm] {
			continue
		}
		existingForms[norm] = true
		existing.Synonyms = append(existing.Synonyms, syn)
		merged = true
	}

	if existing.Unit == "" && unit != "" {
		existing.Unit = unit
		existing.UIHint.Unit = unit
		if existing.UIHint.Widget == domain.WidgetBoolean {
			existing.UIHint.Widget = domain.WidgetNumeric
		}
		merged = true
	}

	if merged {
		existing.UpdatedAt = time.Now().UTC()
		s.log.WithFields(logrus.Fields{
			"concept_id": existing.ID,
			"label":      existing.Label,
		}).Debug("Concept merged")
	}
}

func dedupeSynonyms(label string, synonyms []string) []string {
	seen := map[string]bool{domain.Normalize(label): true}
	var out []string
	for _, syn := range synonyms {
		norm := domain.Normalize(syn)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, syn)
	}
	return out
}
