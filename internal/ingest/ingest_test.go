package ingest

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinigraph-server/internal/autolink"
	"github.com/clinigraph-server/internal/concepts"
	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/learning"
	"github.com/clinigraph-server/internal/semlink"
	"github.com/clinigraph-server/internal/store"
)

func newTestIngestor(t *testing.T) (*Ingestor, *store.Snapshot, *concepts.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	snap := store.NewSnapshot()
	links := semlink.New(logger, snap, 0)
	registry := concepts.NewStore(logger, snap, links)
	gate := learning.NewGate(logger, snap)
	linker := autolink.New(logger, snap, domain.LinkerConfig{
		SimilarityThreshold: 0.3,
		TriggerBonus:        0.5,
		SubstringBonus:      1.0,
		MaxMatches:          5,
	})

	return New(logger, snap, links, registry, gate, linker), snap, registry
}

func pneumoniaExtraction() *domain.ExtractionResult {
	return &domain.ExtractionResult{
		Pathology: "Bacterial Pneumonia",
		NodeKind:  domain.KindPathology,
		Taxonomy:  domain.Taxonomy{Discipline: "medicine", Specialty: "pulmonology"},
		Elements: []domain.ExtractedElement{
			{RootTerm: "Crackles", Type: domain.ConceptClinicalSign},
			{RootTerm: "Fever", Type: domain.ConceptSymptom},
		},
		PivotTerms: []string{"productive cough"},
		SourceDoc:  "pneumonia-guide.pdf",
	}
}

func TestIngestNode_CreatesNode(t *testing.T) {
	ing, snap, registry := newTestIngestor(t)

	report, err := ing.IngestNode(pneumoniaExtraction())
	require.NoError(t, err)
	assert.True(t, report.Created)
	assert.Equal(t, "pathology:bacterial pneumonia", report.NodeKey)

	node := snap.Nodes[report.NodeID]
	require.NotNil(t, node)
	assert.Equal(t, "Bacterial Pneumonia", node.Label)
	assert.Equal(t, "pulmonology", node.Specialty)
	assert.Len(t, node.ConceptTrees.Symptoms, 1)
	assert.Len(t, node.ConceptTrees.Signs, 1)
	assert.NotEmpty(t, registry.ResolveToConceptID("crackles"))
}

func TestIngestNode_IdempotentByNodeKey(t *testing.T) {
	ing, snap, _ := newTestIngestor(t)

	first, err := ing.IngestNode(pneumoniaExtraction())
	require.NoError(t, err)

	second, err := ing.IngestNode(pneumoniaExtraction())
	require.NoError(t, err)

	assert.Equal(t, first.NodeID, second.NodeID)
	assert.False(t, second.Created)
	assert.Len(t, snap.Nodes, 1)

	// A third ingestion with an added element updates the node in place.
	extended := pneumoniaExtraction()
	extended.Elements = append(extended.Elements, domain.ExtractedElement{
		RootTerm: "Dyspnea", Type: domain.ConceptSymptom,
	})
	third, err := ing.IngestNode(extended)
	require.NoError(t, err)

	assert.Equal(t, first.NodeID, third.NodeID)
	assert.Len(t, snap.Nodes, 1)
	node := snap.Nodes[first.NodeID]
	assert.Len(t, node.ConceptTrees.Symptoms, 2)
}

func TestIngestNode_BackfillsLegacyNodeKey(t *testing.T) {
	ing, snap, _ := newTestIngestor(t)

	legacy := &domain.Node{
		ID:    "legacy-id",
		Label: "Bacterial Pneumonia",
		Kind:  domain.KindPathology,
	}
	snap.Nodes[legacy.ID] = legacy

	report, err := ing.IngestNode(pneumoniaExtraction())
	require.NoError(t, err)

	assert.Equal(t, "legacy-id", report.NodeID)
	assert.False(t, report.Created)
	assert.Equal(t, "pathology:bacterial pneumonia", legacy.NodeKey)
}

func TestIngestNode_EmptyLabelRejected(t *testing.T) {
	ing, _, _ := newTestIngestor(t)

	_, err := ing.IngestNode(&domain.ExtractionResult{NodeKind: domain.KindPathology})
	var keyErr *domain.KeyError
	require.ErrorAs(t, err, &keyErr)
}

func TestIngestNode_QuarantinesRejectedElements(t *testing.T) {
	ing, snap, _ := newTestIngestor(t)

	extraction := pneumoniaExtraction()
	extraction.Elements = []domain.ExtractedElement{
		{RootTerm: "Palmar", Type: domain.ConceptClinicalSign},
	}

	report, err := ing.IngestNode(extraction)
	require.NoError(t, err)

	assert.Equal(t, []string{"Palmar"}, report.Quarantined)
	assert.NotNil(t, snap.TempConcepts["palmar"])

	node := snap.Nodes[report.NodeID]
	assert.Empty(t, node.Branches(), "rejected elements must not reach the node")
}

func TestIngestNode_PromotesOnSecondSighting(t *testing.T) {
	ing, snap, registry := newTestIngestor(t)

	extraction := pneumoniaExtraction()
	extraction.Elements = []domain.ExtractedElement{
		{RootTerm: "Palmar", Type: domain.ConceptClinicalSign},
	}

	first, err := ing.IngestNode(extraction)
	require.NoError(t, err)
	assert.Empty(t, first.PromotedLabels)

	second, err := ing.IngestNode(extraction)
	require.NoError(t, err)

	assert.Equal(t, []string{"Palmar"}, second.PromotedLabels)
	assert.Empty(t, snap.TempConcepts)
	assert.NotEmpty(t, registry.ResolveToConceptID("palmar"))
}

func TestIngestNode_ModalityComparatorParsing(t *testing.T) {
	ing, snap, registry := newTestIngestor(t)

	extraction := &domain.ExtractionResult{
		Pathology: "Severe Anemia",
		NodeKind:  domain.KindPathology,
		Elements: []domain.ExtractedElement{
			{RootTerm: "Hemoglobin", Type: domain.ConceptMeasure, Unit: "g/dL", Values: []string{"< 9 g/dL"}},
		},
	}

	report, err := ing.IngestNode(extraction)
	require.NoError(t, err)

	node := snap.Nodes[report.NodeID]
	require.Len(t, node.ConceptTrees.Signs, 1)

	branch := node.ConceptTrees.Signs[0]
	assert.Equal(t, registry.ResolveToConceptID("hemoglobin"), branch.ConceptID)
	require.Len(t, branch.Modalities, 1)

	cond := branch.Modalities[0].Condition
	assert.Equal(t, domain.OpLT, cond.Operator)
	assert.Equal(t, domain.NumberValue(9), cond.Threshold)
}

func TestIngestNode_ModalityLocaleComma(t *testing.T) {
	cond := parseCondition(">= 37,5")
	assert.Equal(t, domain.OpGTE, cond.Operator)
	assert.Equal(t, domain.NumberValue(37.5), cond.Threshold)
}

func TestIngestNode_ModalityLiteralFallback(t *testing.T) {
	cond := parseCondition("purulent")
	assert.Equal(t, domain.OpEQ, cond.Operator)
	assert.Equal(t, domain.TextValue("purulent"), cond.Threshold)
}

func TestIngestNode_SynthesizedPresentModality(t *testing.T) {
	modalities := buildModalities(nil)
	require.Len(t, modalities, 1)
	assert.Equal(t, "Present", modalities[0].Label)
	assert.Equal(t, domain.OpEQ, modalities[0].Condition.Operator)
	assert.Equal(t, domain.BoolValue(true), modalities[0].Condition.Threshold)
}

func TestIngestNode_FragmentMerging(t *testing.T) {
	ing, snap, registry := newTestIngestor(t)

	extraction := &domain.ExtractionResult{
		Pathology: "Envenomation Syndrome",
		NodeKind:  domain.KindPathology,
		Elements: []domain.ExtractedElement{
			{RootTerm: "Palmar", Type: domain.ConceptClinicalSign},
			{RootTerm: "Edema", Type: domain.ConceptClinicalSign},
		},
	}

	report, err := ing.IngestNode(extraction)
	require.NoError(t, err)

	assert.Equal(t, []string{"Palmar"}, report.MergedFragments)
	assert.Empty(t, report.Quarantined, "merged fragments bypass the gate as a compound")
	assert.NotEmpty(t, registry.ResolveToConceptID("palmar edema"))

	trace := snap.Links[store.LinkKey("palmar", domain.RelPartOf, "palmar edema")]
	require.NotNil(t, trace, "discarded fragment must leave a part_of trace link")
}

func TestIngestNode_StandaloneHeadNounAfterFragmentMerge(t *testing.T) {
	ing, snap, registry := newTestIngestor(t)

	_, err := ing.IngestNode(&domain.ExtractionResult{
		Pathology: "Envenomation Syndrome",
		NodeKind:  domain.KindPathology,
		Elements: []domain.ExtractedElement{
			{RootTerm: "Palmar", Type: domain.ConceptClinicalSign},
			{RootTerm: "Edema", Type: domain.ConceptClinicalSign},
		},
	})
	require.NoError(t, err)

	report, err := ing.IngestNode(&domain.ExtractionResult{
		Pathology: "Heart Failure",
		NodeKind:  domain.KindPathology,
		Elements: []domain.ExtractedElement{
			{RootTerm: "Edema", Type: domain.ConceptClinicalSign},
		},
	})
	require.NoError(t, err)

	compoundID := registry.ResolveToConceptID("palmar edema")
	edemaID := registry.ResolveToConceptID("edema")
	require.NotEmpty(t, compoundID)
	require.NotEmpty(t, edemaID)
	assert.NotEqual(t, compoundID, edemaID, "generic edema must stay its own concept")

	node := snap.Nodes[report.NodeID]
	require.Len(t, node.Branches(), 1)
	assert.Equal(t, edemaID, node.Branches()[0].ConceptID)
}

func TestIngestNode_AppliesToWiresReciprocalEdges(t *testing.T) {
	ing, snap, _ := newTestIngestor(t)

	extraction := &domain.ExtractionResult{
		Title:     "Sepsis Bundle",
		NodeKind:  domain.KindProtocol,
		AppliesTo: "Sepsis",
	}

	report, err := ing.IngestNode(extraction)
	require.NoError(t, err)

	target := snap.FindNodeByKey(domain.NodeKeyFor(domain.KindPathology, "Sepsis"))
	require.NotNil(t, target, "a placeholder target node is created")

	forward := snap.Edges[store.EdgeKey(report.NodeID, domain.RelAppliesTo, target.ID)]
	require.NotNil(t, forward)

	reverse := snap.Edges[store.EdgeKey(target.ID, domain.RelHasProtocol, report.NodeID)]
	require.NotNil(t, reverse)

	protocol := snap.Nodes[report.NodeID]
	assert.True(t, protocol.HasLink(domain.RelAppliesTo, target.ID))
	assert.True(t, target.HasLink(domain.RelHasProtocol, report.NodeID))
}

func TestIngestNode_SyndromesAttached(t *testing.T) {
	ing, snap, _ := newTestIngestor(t)

	extraction := pneumoniaExtraction()
	extraction.Syndromes = []domain.ExtractedSyndrome{
		{Name: "Infectious Syndrome", Findings: []string{"Fever"}},
	}

	report, err := ing.IngestNode(extraction)
	require.NoError(t, err)

	node := snap.Nodes[report.NodeID]
	require.Len(t, node.SyndromeIDs, 1)

	syn := snap.Syndromes[node.SyndromeIDs[0]]
	require.NotNil(t, syn)
	assert.Equal(t, "Infectious Syndrome", syn.Label)
	assert.Len(t, syn.ConceptIDs, 1, "findings resolve to concept ids")
}
