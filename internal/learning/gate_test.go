package learning

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinigraph-server/internal/concepts"
	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/semlink"
	"github.com/clinigraph-server/internal/store"
)

func newTestGate(t *testing.T) (*Gate, *store.Snapshot, *concepts.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	snap := store.NewSnapshot()
	links := semlink.New(logger, snap, 0)
	registry := concepts.NewStore(logger, snap, links)
	return NewGate(logger, snap), snap, registry
}

func TestIsAdmissible_Blocklists(t *testing.T) {
	g, _, _ := newTestGate(t)

	tests := []struct {
		name     string
		label    string
		ctype    domain.ConceptType
		expected bool
	}{
		{"bare modifier rejected", "Palmar", domain.ConceptClinicalSign, false},
		{"laterality rejected regardless of type", "Left", domain.ConceptMeasure, false},
		{"body part rejected as finding", "Arm", domain.ConceptClinicalSign, false},
		{"body part allowed as measure", "Arm", domain.ConceptMeasure, true},
		{"contextual qualifier rejected", "Recent", domain.ConceptAntecedent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, g.IsAdmissible(tt.label, tt.ctype))
		})
	}
}

func TestIsAdmissible_SingleToken(t *testing.T) {
	g, _, _ := newTestGate(t)

	assert.True(t, g.IsAdmissible("Fever", domain.ConceptSymptom), "whitelisted standalone entity")
	assert.True(t, g.IsAdmissible("Troponin", domain.ConceptMeasure), "single-token measures pass")
	assert.True(t, g.IsAdmissible("Echogenicity", domain.ConceptParaclinical))
	assert.False(t, g.IsAdmissible("Thing", domain.ConceptSymptom), "unknown single token rejected")
}

func TestIsAdmissible_MultiToken(t *testing.T) {
	g, _, _ := newTestGate(t)

	assert.True(t, g.IsAdmissible("Skin Necrosis", domain.ConceptClinicalSign), "head noun admits")
	assert.True(t, g.IsAdmissible("Capillary Refill", domain.ConceptClinicalSign), "whitelisted phrase")
	assert.True(t, g.IsAdmissible("Lower Limb Compartment Pressure", domain.ConceptClinicalSign), "long phrases are specific enough")
	assert.False(t, g.IsAdmissible("Dorsal Region", domain.ConceptClinicalSign), "two tokens without head noun rejected")
}

func TestIsAutoApprovable(t *testing.T) {
	g, _, _ := newTestGate(t)

	assert.True(t, g.IsAutoApprovable("Pancreatitis", domain.ConceptClinicalSign), "clinical suffix")
	assert.True(t, g.IsAutoApprovable("Creatinine Clearance", domain.ConceptMeasure), "lab vocabulary")
	assert.True(t, g.IsAutoApprovable("Fever", domain.ConceptSymptom))
	assert.False(t, g.IsAutoApprovable("Palmar", domain.ConceptClinicalSign), "blocklists apply first")
	assert.False(t, g.IsAutoApprovable("Thing", domain.ConceptSymptom))
}

func TestAdmit_QuarantinesAndReinforces(t *testing.T) {
	g, snap, _ := newTestGate(t)

	ok := g.Admit("Palmar", domain.ConceptClinicalSign, "doc-1")
	assert.False(t, ok)
	require.Len(t, snap.TempConcepts, 1)

	tc := snap.TempConcepts["palmar"]
	require.NotNil(t, tc)
	assert.Equal(t, 1, tc.CountSeen)
	assert.Equal(t, domain.TempPending, tc.Status)

	// Second sighting reinforces the same record.
	g.Admit("PALMAR", domain.ConceptClinicalSign, "doc-2")
	require.Len(t, snap.TempConcepts, 1)
	assert.Equal(t, 2, tc.CountSeen)
}

func TestAdmit_PassesWhitelisted(t *testing.T) {
	g, snap, _ := newTestGate(t)

	assert.True(t, g.Admit("Fever", domain.ConceptSymptom, "doc-1"))
	assert.Empty(t, snap.TempConcepts)
}

func TestPromotePending_ThresholdReached(t *testing.T) {
	g, snap, registry := newTestGate(t)

	g.Quarantine("Palmar", domain.ConceptClinicalSign, "doc-1")
	promoted := g.PromotePending(registry)
	assert.Empty(t, promoted, "one sighting is below the threshold")

	g.Quarantine("Palmar", domain.ConceptClinicalSign, "doc-2")
	promoted = g.PromotePending(registry)

	require.Equal(t, []string{"Palmar"}, promoted)
	assert.Empty(t, snap.TempConcepts, "promotion removes the quarantine record")
	assert.NotNil(t, snap.FindConceptByLabel("Palmar"), "promoted label becomes a first-class concept")
}

func TestPromotePending_AutoApprovableBypassesThreshold(t *testing.T) {
	g, snap, registry := newTestGate(t)

	// Admissible by suffix but quarantined directly to simulate a rules
	// update after the record was created.
	g.Quarantine("Cholecystitis", domain.ConceptClinicalSign, "doc-1")

	promoted := g.PromotePending(registry)
	require.Equal(t, []string{"Cholecystitis"}, promoted)
	assert.NotNil(t, snap.FindConceptByLabel("cholecystitis"))
}
