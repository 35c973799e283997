package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/store"
)

func newTestService(t *testing.T) *KnowledgeService {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "clinigraph-service-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st, err := store.Open(filepath.Join(tmpDir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &domain.Config{
		Storage: domain.StorageConfig{ResolutionCacheSize: 64},
		Scoring: domain.ScoringConfig{
			PresenceScore: 1,
			KeywordBonus:  5,
			SyndromeBonus: 10,
			PivotBonus:    15,
			ExpansionTop:  5,
		},
		Linker: domain.LinkerConfig{
			SimilarityThreshold: 0.3,
			TriggerBonus:        0.5,
			SubstringBonus:      1.0,
			MaxMatches:          5,
		},
	}
	return NewKnowledgeService(logger, st, cfg)
}

func TestIngestAndQuery_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	report, err := svc.IngestExtraction(ctx, &domain.ExtractionResult{
		Pathology: "Bacterial Pneumonia",
		NodeKind:  domain.KindPathology,
		Elements: []domain.ExtractedElement{
			{RootTerm: "Crackles", Type: domain.ConceptClinicalSign},
		},
		PivotTerms: []string{"fever"},
	})
	require.NoError(t, err)
	require.True(t, report.Created)

	// A fresh round trip must see the persisted node.
	results, err := svc.Query(ctx, domain.Observation{
		Values:  []domain.ObservedValue{{ElementID: "Crackles", Value: true}},
		RawText: "patient has fever and crackles",
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, report.NodeID, results[0].Node.ID)
	assert.Equal(t, 16.0, results[0].Score)
}

func TestIngest_IdempotentAcrossRoundTrips(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	extraction := &domain.ExtractionResult{
		Pathology: "Bacterial Pneumonia",
		NodeKind:  domain.KindPathology,
	}

	first, err := svc.IngestExtraction(ctx, extraction)
	require.NoError(t, err)
	second, err := svc.IngestExtraction(ctx, extraction)
	require.NoError(t, err)

	assert.Equal(t, first.NodeID, second.NodeID)
	assert.False(t, second.Created)

	nodes, err := svc.ListNodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestQuarantinePromotionAcrossRoundTrips(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	extraction := &domain.ExtractionResult{
		Pathology: "Envenomation Syndrome",
		NodeKind:  domain.KindPathology,
		Elements: []domain.ExtractedElement{
			{RootTerm: "Palmar", Type: domain.ConceptClinicalSign},
		},
	}

	first, err := svc.IngestExtraction(ctx, extraction)
	require.NoError(t, err)
	assert.Equal(t, []string{"Palmar"}, first.Quarantined)

	pending, err := svc.PendingConcepts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].CountSeen)

	// Second sighting crosses the promotion threshold.
	second, err := svc.IngestExtraction(ctx, extraction)
	require.NoError(t, err)
	assert.Equal(t, []string{"Palmar"}, second.PromotedLabels)

	pending, err = svc.PendingConcepts(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeleteNode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	report, err := svc.IngestExtraction(ctx, &domain.ExtractionResult{
		Pathology: "Bacterial Pneumonia",
		NodeKind:  domain.KindPathology,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteNode(ctx, report.NodeID))

	_, err = svc.GetNode(ctx, report.NodeID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteNode(ctx, report.NodeID), domain.ErrNotFound)
}

func TestUpsertLink_PersistsAndResolves(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.IngestExtraction(ctx, &domain.ExtractionResult{
		Pathology: "Febrile Illness",
		NodeKind:  domain.KindPathology,
		Elements: []domain.ExtractedElement{
			{RootTerm: "Fever", Type: domain.ConceptSymptom},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.UpsertLink(ctx, domain.SemanticLink{
		Source: "Pyrexia", Relation: domain.RelSynonymOf, Target: "Fever",
	}))

	// The synonym reaches the concept through the persisted link.
	results, err := svc.Query(ctx, domain.Observation{
		Values: []domain.ObservedValue{{ElementID: "Pyrexia", Value: true}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 1.0, results[0].Score)
}
