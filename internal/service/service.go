// Package service orchestrates the graph core. Every operation is one
// snapshot round trip: load the full graph, run the relevant components over
// it, and save it back when it was mutated.
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/clinigraph-server/internal/autolink"
	"github.com/clinigraph-server/internal/concepts"
	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/inference"
	"github.com/clinigraph-server/internal/ingest"
	"github.com/clinigraph-server/internal/learning"
	"github.com/clinigraph-server/internal/semlink"
	"github.com/clinigraph-server/internal/store"
)

// KnowledgeService exposes the ingestion, query and curation operations over
// the persisted graph.
type KnowledgeService struct {
	log   *logrus.Logger
	store *store.SQLiteStore
	cfg   *domain.Config
}

// NewKnowledgeService creates the service over an opened store.
func NewKnowledgeService(logger *logrus.Logger, st *store.SQLiteStore, cfg *domain.Config) *KnowledgeService {
	return &KnowledgeService{log: logger, store: st, cfg: cfg}
}

// unit bundles the components wired over one loaded snapshot.
type unit struct {
	snap     *store.Snapshot
	links    *semlink.Graph
	registry *concepts.Store
	gate     *learning.Gate
	linker   *autolink.Linker
	ingestor *ingest.Ingestor
	engine   *inference.Engine
}

func (s *KnowledgeService) begin(ctx context.Context) (*unit, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	links := semlink.New(s.log, snap, s.cfg.Storage.ResolutionCacheSize)
	registry := concepts.NewStore(s.log, snap, links)
	gate := learning.NewGate(s.log, snap)
	linker := autolink.New(s.log, snap, s.cfg.Linker)
	ingestor := ingest.New(s.log, snap, links, registry, gate, linker)
	ingestor.Index().Rebuild(snap)

	return &unit{
		snap:     snap,
		links:    links,
		registry: registry,
		gate:     gate,
		linker:   linker,
		ingestor: ingestor,
		engine:   inference.New(s.log, snap, links, registry, s.cfg.Scoring),
	}, nil
}

func (s *KnowledgeService) commit(ctx context.Context, u *unit) error {
	if err := s.store.Save(ctx, u.snap); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// IngestExtraction runs the full ingestion pipeline for one extraction
// result and persists the mutated graph.
func (s *KnowledgeService) IngestExtraction(ctx context.Context, extraction *domain.ExtractionResult) (*domain.IngestReport, error) {
	u, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	report, err := u.ingestor.IngestNode(extraction)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, u); err != nil {
		return nil, err
	}
	return report, nil
}

// Query scores the graph against an observation. Read-only: the snapshot is
// not saved back.
func (s *KnowledgeService) Query(ctx context.Context, obs domain.Observation) ([]domain.InferenceResult, error) {
	u, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	candidates := u.ingestor.Index().Candidates("", "")
	return u.engine.Query(obs, candidates), nil
}

// PromotePending consolidates the quarantine and persists any promotions.
func (s *KnowledgeService) PromotePending(ctx context.Context) ([]string, error) {
	u, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	promoted := u.gate.PromotePending(u.registry)
	if len(promoted) == 0 {
		return nil, nil
	}

	if err := s.commit(ctx, u); err != nil {
		return nil, err
	}
	return promoted, nil
}

// PendingConcepts lists the quarantined concepts, most seen first.
func (s *KnowledgeService) PendingConcepts(ctx context.Context) ([]*domain.TempConcept, error) {
	u, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.TempConcept, 0, len(u.snap.TempConcepts))
	for _, tc := range u.snap.TempConcepts {
		out = append(out, tc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CountSeen != out[j].CountSeen {
			return out[i].CountSeen > out[j].CountSeen
		}
		return out[i].RawLabel < out[j].RawLabel
	})
	return out, nil
}

// GetNode returns one node by id.
func (s *KnowledgeService) GetNode(ctx context.Context, nodeID string) (*domain.Node, error) {
	u, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	node, ok := u.snap.Nodes[nodeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return node, nil
}

// ListNodes returns every node, sorted by label for stable output.
func (s *KnowledgeService) ListNodes(ctx context.Context) ([]*domain.Node, error) {
	u, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Node, 0, len(u.snap.Nodes))
	for _, n := range u.snap.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// DeleteNode removes a node with cascading edge and link cleanup, then
// persists.
func (s *KnowledgeService) DeleteNode(ctx context.Context, nodeID string) error {
	u, err := s.begin(ctx)
	if err != nil {
		return err
	}

	if err := u.snap.DeleteNode(nodeID); err != nil {
		return err
	}

	s.log.WithField("node_id", nodeID).Info("Node deleted")
	return s.commit(ctx, u)
}

// UpsertLink records a semantic link directly, for manual curation.
func (s *KnowledgeService) UpsertLink(ctx context.Context, link domain.SemanticLink) error {
	u, err := s.begin(ctx)
	if err != nil {
		return err
	}

	if err := u.links.Upsert(link); err != nil {
		return err
	}
	return s.commit(ctx, u)
}
