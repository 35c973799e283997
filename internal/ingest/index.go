package ingest

import (
	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/store"
)

// TaxonomyIndex groups node ids by discipline and specialty. It is rebuilt
// after every ingestion and backs candidate pre-filtering for inference.
// Candidates currently returns every node regardless of filter: at present
// data volumes a real cut would save nothing, so the index is an extension
// point, not an active filter.
type TaxonomyIndex struct {
	snap        *store.Snapshot
	byTaxonomy  map[string]map[string][]string
	disciplines []string
}

// NewTaxonomyIndex returns an empty index.
func NewTaxonomyIndex() *TaxonomyIndex {
	return &TaxonomyIndex{byTaxonomy: make(map[string]map[string][]string)}
}

// Rebuild recomputes the discipline/specialty grouping from the snapshot.
func (idx *TaxonomyIndex) Rebuild(snap *store.Snapshot) {
	idx.snap = snap
	idx.byTaxonomy = make(map[string]map[string][]string)
	idx.disciplines = idx.disciplines[:0]

	for _, n := range snap.Nodes {
		discipline := domain.Normalize(n.Discipline)
		specialty := domain.Normalize(n.Specialty)

		specialties, ok := idx.byTaxonomy[discipline]
		if !ok {
			specialties = make(map[string][]string)
			idx.byTaxonomy[discipline] = specialties
			idx.disciplines = append(idx.disciplines, discipline)
		}
		specialties[specialty] = append(specialties[specialty], n.ID)
	}
}

// Candidates returns the nodes to score for a query. The discipline and
// specialty arguments are accepted but not yet applied.
func (idx *TaxonomyIndex) Candidates(discipline, specialty string) []*domain.Node {
	if idx.snap == nil {
		return nil
	}
	out := make([]*domain.Node, 0, len(idx.snap.Nodes))
	for _, n := range idx.snap.Nodes {
		out = append(out, n)
	}
	return out
}
