// Package learning screens newly extracted labels before they become
// first-class concepts. Labels that fail the gate are quarantined with
// reinforcement counters and promoted once seen repeatedly or once the
// permissive check starts accepting them.
package learning

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/store"
)

// PromotionThreshold is the sighting count at which a pending concept is
// promoted regardless of the gate rules.
const PromotionThreshold = 2

// Gate decides whether a proposed label may enter the concept store.
type Gate struct {
	log  *logrus.Logger
	snap *store.Snapshot
}

// NewGate creates an admission gate over a snapshot.
func NewGate(logger *logrus.Logger, snap *store.Snapshot) *Gate {
	return &Gate{log: logger, snap: snap}
}

// IsAdmissible applies the strict admission rules.
func (g *Gate) IsAdmissible(label string, conceptType domain.ConceptType) bool {
	norm := domain.Normalize(label)
	if norm == "" {
		return false
	}
	tokens := strings.Fields(norm)

	// Hard blocks: anatomy as a bare finding (measures excepted),
	// modifiers without a head noun, purely contextual qualifiers.
	if bareBodyParts[norm] && conceptType != domain.ConceptMeasure {
		return false
	}
	if bareModifiers[norm] || contextualQualifiers[norm] {
		return false
	}

	if len(tokens) == 1 {
		if conceptType == domain.ConceptMeasure || conceptType == domain.ConceptParaclinical {
			return true
		}
		return standaloneEntities[norm]
	}

	for _, tok := range tokens {
		if headNouns[tok] {
			return true
		}
	}
	if phraseWhitelist[norm] {
		return true
	}
	// Three or more tokens are treated as specific enough by length; a
	// two-token phrase with no head noun is the "direction + anatomy"
	// noise pattern.
	return len(tokens) > 2
}

// IsAutoApprovable is the permissive secondary check that bypasses
// quarantine. Blocklists still apply first.
func (g *Gate) IsAutoApprovable(label string, conceptType domain.ConceptType) bool {
	norm := domain.Normalize(label)
	if norm == "" {
		return false
	}
	tokens := strings.Fields(norm)

	if bareBodyParts[norm] && conceptType != domain.ConceptMeasure {
		return false
	}
	if bareModifiers[norm] || contextualQualifiers[norm] {
		return false
	}

	if standaloneEntities[norm] || phraseWhitelist[norm] {
		return true
	}
	for _, tok := range tokens {
		if labVocab[tok] || headNouns[tok] {
			return true
		}
		for _, suffix := range clinicalSuffixes {
			if len(tok) > len(suffix) && strings.HasSuffix(tok, suffix) {
				return true
			}
		}
	}
	if len(tokens) > 1 &&
		(conceptType == domain.ConceptMeasure || conceptType == domain.ConceptParaclinical) {
		return true
	}

	return false
}

// Admit runs the full admission flow for a label. It returns true when the
// label may proceed to concept upsert; otherwise the label is quarantined
// (created or reinforced) and false is returned.
func (g *Gate) Admit(label string, conceptType domain.ConceptType, sourceDoc string) bool {
	if g.IsAdmissible(label, conceptType) || g.IsAutoApprovable(label, conceptType) {
		return true
	}
	g.Quarantine(label, conceptType, sourceDoc)
	return false
}

// Quarantine records a rejected label as a temporary concept, reinforcing
// the counter when the same normalized label is already pending.
func (g *Gate) Quarantine(label string, conceptType domain.ConceptType, sourceDoc string) *domain.TempConcept {
	norm := domain.Normalize(label)
	now := time.Now().UTC()

	if existing, ok := g.snap.TempConcepts[norm]; ok {
		existing.CountSeen++
		existing.LastSeen = now
		g.log.WithFields(logrus.Fields{
			"label":      label,
			"count_seen": existing.CountSeen,
		}).Debug("Quarantined concept reinforced")
		return existing
	}

	tc := &domain.TempConcept{
		ID:             uuid.New().String(),
		RawLabel:       label,
		TypeGuess:      conceptType,
		Status:         domain.TempPending,
		CountSeen:      1,
		LastSeen:       now,
		SourceDocument: sourceDoc,
	}
	g.snap.TempConcepts[norm] = tc

	g.log.WithFields(logrus.Fields{
		"label": label,
		"type":  conceptType,
	}).Info("Concept quarantined")

	return tc
}

// ConceptUpserter is the slice of the concept store the promotion pass
// needs.
type ConceptUpserter interface {
	Upsert(label string, conceptType domain.ConceptType, synonyms []string, unit string) (string, error)
}

// PromotePending consolidates the quarantine: every pending concept seen at
// least PromotionThreshold times, or now passing the permissive check, is
// created as a first-class concept and removed from temporary memory.
// Returns the promoted labels.
func (g *Gate) PromotePending(registry ConceptUpserter) []string {
	var promoted []string

	for norm, tc := range g.snap.TempConcepts {
		if tc.Status != domain.TempPending {
			continue
		}
		if tc.CountSeen < PromotionThreshold && !g.IsAutoApprovable(tc.RawLabel, tc.TypeGuess) {
			continue
		}

		if _, err := registry.Upsert(tc.RawLabel, tc.TypeGuess, nil, ""); err != nil {
			g.log.WithError(err).WithField("label", tc.RawLabel).Warn("Failed to promote quarantined concept")
			continue
		}
		delete(g.snap.TempConcepts, norm)
		promoted = append(promoted, tc.RawLabel)

		g.log.WithFields(logrus.Fields{
			"label":      tc.RawLabel,
			"count_seen": tc.CountSeen,
		}).Info("Quarantined concept promoted")
	}

	return promoted
}
