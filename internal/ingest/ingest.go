// Package ingest turns structured extraction results into knowledge graph
// mutations: concept upserts behind the admission gate, node creation or
// update keyed by node key, modality construction from free-text qualifiers,
// relation wiring and auto-linking.
package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinigraph-server/internal/autolink"
	"github.com/clinigraph-server/internal/concepts"
	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/learning"
	"github.com/clinigraph-server/internal/semlink"
	"github.com/clinigraph-server/internal/store"
)

// comparatorPattern matches a leading numeric comparator qualifier such as
// "< 9", ">=37.5" or "< 9,5 g/dL". The number may use a decimal comma.
var comparatorPattern = regexp.MustCompile(`^\s*(<=|>=|<|>|=)\s*(\d+(?:[.,]\d+)?)`)

var comparatorOps = map[string]domain.Operator{
	"<":  domain.OpLT,
	"<=": domain.OpLTE,
	">":  domain.OpGT,
	">=": domain.OpGTE,
	"=":  domain.OpEQ,
}

// Ingestor runs the full node ingestion pipeline over one snapshot.
type Ingestor struct {
	log      *logrus.Logger
	snap     *store.Snapshot
	links    *semlink.Graph
	registry *concepts.Store
	gate     *learning.Gate
	linker   *autolink.Linker
	index    *TaxonomyIndex
}

// New creates an ingestor wired to the snapshot's collaborators.
func New(logger *logrus.Logger, snap *store.Snapshot, links *semlink.Graph,
	registry *concepts.Store, gate *learning.Gate, linker *autolink.Linker) *Ingestor {
	return &Ingestor{
		log:      logger,
		snap:     snap,
		links:    links,
		registry: registry,
		gate:     gate,
		linker:   linker,
		index:    NewTaxonomyIndex(),
	}
}

// Index returns the discipline/specialty index, rebuilt on every ingestion.
func (ing *Ingestor) Index() *TaxonomyIndex {
	return ing.index
}

// IngestNode runs the ingestion pipeline for one extraction: fragment
// merging, gated concept upserts, modality construction, node upsert,
// relation wiring, auto-linking and index rebuild. Returns a report of what
// changed.
func (ing *Ingestor) IngestNode(extraction *domain.ExtractionResult) (*domain.IngestReport, error) {
	label := extraction.DisplayLabel()
	kind := extraction.NodeKind
	if !kind.IsValid() {
		kind = domain.KindPathology
	}

	nodeKey := domain.NodeKeyFor(kind, label)
	if nodeKey == "" {
		return nil, &domain.KeyError{Label: label}
	}

	report := &domain.IngestReport{NodeKey: nodeKey}

	node := ing.snap.FindNodeByKey(nodeKey)
	if node == nil {
		// Records written before node keys existed match by (kind, label);
		// the key is backfilled on first touch.
		if node = ing.snap.FindNodeByKindLabel(kind, label); node != nil {
			node.NodeKey = nodeKey
		}
	}
	if node == nil {
		node = &domain.Node{
			ID:      uuid.New().String(),
			NodeKey: nodeKey,
			Label:   label,
			Kind:    kind,
		}
		ing.snap.Nodes[node.ID] = node
		report.Created = true
	}
	report.NodeID = node.ID

	elements := ing.mergeFragments(extraction.Elements, report)

	var symptoms, signs []domain.ConceptTreeBranch
	for _, el := range elements {
		conceptType := el.Type
		if !conceptType.IsValid() {
			conceptType = domain.ConceptClinicalSign
		}

		if !ing.gate.Admit(el.RootTerm, conceptType, extraction.SourceDoc) {
			report.Quarantined = append(report.Quarantined, el.RootTerm)
			continue
		}

		conceptID, err := ing.registry.Upsert(el.RootTerm, conceptType, el.Synonyms, el.Unit)
		if err != nil {
			ing.log.WithError(err).WithField("label", el.RootTerm).Warn("Skipping element with unusable label")
			continue
		}
		report.AdmittedLabels = append(report.AdmittedLabels, el.RootTerm)

		branch := domain.ConceptTreeBranch{
			ConceptID:       conceptID,
			Characteristics: el.Characteristics,
			Modalities:      buildModalities(el.Values),
		}
		if conceptType == domain.ConceptSymptom {
			symptoms = append(symptoms, branch)
		} else {
			signs = append(signs, branch)
		}
	}

	// Quarantine sightings in this batch may have pushed a pending concept
	// over the promotion threshold; consolidate immediately.
	report.PromotedLabels = ing.gate.PromotePending(ing.registry)

	node.Discipline = pick(extraction.Taxonomy.Discipline, node.Discipline)
	node.Specialty = pick(extraction.Taxonomy.Specialty, node.Specialty)
	mergeContext(&node.Context, extraction.Context)
	node.ConceptTrees.Symptoms = mergeBranches(node.ConceptTrees.Symptoms, symptoms)
	node.ConceptTrees.Signs = mergeBranches(node.ConceptTrees.Signs, signs)
	node.ConceptTrees.PivotTerms = mergeStrings(node.ConceptTrees.PivotTerms, extraction.PivotTerms)
	node.LastUpdated = time.Now().UTC()

	ing.attachSyndromes(node, extraction.Syndromes)

	if extraction.AppliesTo != "" {
		ing.wireRelation(node, domain.RelAppliesTo, extraction.AppliesTo, extraction.SourceDoc)
	}
	for _, l := range extraction.Links {
		if l.TargetLabel == "" {
			continue
		}
		rel := l.Relation
		if rel == "" {
			rel = domain.RelRelatedTo
		}
		ing.wireRelation(node, rel, l.TargetLabel, extraction.SourceDoc)
	}

	report.LinkedNodeIDs = ing.linker.LinkNode(node)
	ing.index.Rebuild(ing.snap)

	ing.log.WithFields(logrus.Fields{
		"node_id":     node.ID,
		"node_key":    nodeKey,
		"created":     report.Created,
		"admitted":    len(report.AdmittedLabels),
		"quarantined": len(report.Quarantined),
	}).Info("Node ingested")

	return report, nil
}

// mergeFragments repairs split compound terms: a bare modifier fragment
// immediately followed by a lone head noun becomes one compound element
// ("palmar" + "edema" -> "palmar edema"). The discarded fragment is traced
// with a part_of semantic link to the compound.
func (ing *Ingestor) mergeFragments(elements []domain.ExtractedElement, report *domain.IngestReport) []domain.ExtractedElement {
	var out []domain.ExtractedElement
	for i := 0; i < len(elements); i++ {
		el := elements[i]
		if i+1 < len(elements) &&
			learning.IsBareModifier(el.RootTerm) &&
			learning.IsHeadNoun(elements[i+1].RootTerm) {
			next := elements[i+1]
			compound := strings.TrimSpace(el.RootTerm + " " + next.RootTerm)

			// The head noun stays its own concept; only the trace link below
			// records that the fragment folded into the compound.
			merged := next
			merged.RootTerm = compound
			merged.Characteristics = mergeStrings(next.Characteristics, el.Characteristics)
			merged.Values = mergeStrings(next.Values, el.Values)

			if err := ing.links.Upsert(domain.SemanticLink{
				Source:   el.RootTerm,
				Relation: domain.RelPartOf,
				Target:   compound,
			}); err != nil {
				ing.log.WithError(err).Debug("Skipping fragment trace link")
			}
			report.MergedFragments = append(report.MergedFragments, el.RootTerm)

			out = append(out, merged)
			i++
			continue
		}
		out = append(out, el)
	}
	return out
}

// buildModalities turns free-text qualifiers into modality rules. Each
// qualifier is tried against the comparator pattern; on failure the modality
// degrades to literal equality against the qualifier text. An element with
// no qualifiers gets a synthesized presence modality.
func buildModalities(values []string) []domain.Modality {
	if len(values) == 0 {
		return []domain.Modality{{
			Label: "Present",
			Condition: domain.ModalityCondition{
				Operator:  domain.OpEQ,
				Threshold: domain.BoolValue(true),
			},
		}}
	}

	out := make([]domain.Modality, 0, len(values))
	for _, raw := range values {
		qualifier := strings.TrimSpace(raw)
		if qualifier == "" {
			continue
		}
		out = append(out, domain.Modality{
			Label:     qualifier,
			Score:     1,
			Condition: parseCondition(qualifier),
		})
	}
	return out
}

// parseCondition extracts a numeric comparator from a qualifier, normalizing
// decimal commas. Unparseable qualifiers fall back to literal equality.
func parseCondition(qualifier string) domain.ModalityCondition {
	if m := comparatorPattern.FindStringSubmatch(qualifier); m != nil {
		if n, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64); err == nil {
			return domain.ModalityCondition{
				Operator:  comparatorOps[m[1]],
				Threshold: domain.NumberValue(n),
			}
		}
	}
	return domain.ModalityCondition{
		Operator:  domain.OpEQ,
		Threshold: domain.TextValue(qualifier),
	}
}

// attachSyndromes upserts syndrome records and references them from the node.
func (ing *Ingestor) attachSyndromes(node *domain.Node, proposals []domain.ExtractedSyndrome) {
	for _, p := range proposals {
		if domain.Normalize(p.Name) == "" {
			continue
		}

		syn := ing.snap.FindSyndromeByLabel(p.Name)
		if syn == nil {
			syn = &domain.Syndrome{
				ID:          uuid.New().String(),
				Label:       p.Name,
				Description: p.Description,
			}
			ing.snap.Syndromes[syn.ID] = syn
		} else if syn.Description == "" && p.Description != "" {
			syn.Description = p.Description
		}

		for _, finding := range p.Findings {
			if id := ing.registry.ResolveToConceptID(finding); id != "" {
				syn.ConceptIDs = mergeStrings(syn.ConceptIDs, []string{id})
			}
		}

		node.SyndromeIDs = mergeStrings(node.SyndromeIDs, []string{syn.ID})
	}
}

// wireRelation resolves the target node by label, creating a placeholder
// pathology when nothing matches, then writes reciprocal edge and link
// pairs. The reverse relation of applies_to depends on the source kind:
// syndromes announce has_syndrome, protocols and guidelines has_protocol.
func (ing *Ingestor) wireRelation(node *domain.Node, relation domain.Relation, targetLabel, sourceDoc string) {
	target := ing.resolveOrCreateTarget(targetLabel)
	if target == nil || target.ID == node.ID {
		return
	}

	reverse := relation.Inverse()
	if relation == domain.RelAppliesTo && node.Kind == domain.KindSyndrome {
		reverse = domain.RelHasSyndrome
	}

	ing.snap.UpsertEdge(node.ID, relation, target.ID, 1, sourceDoc)
	ing.snap.UpsertEdge(target.ID, reverse, node.ID, 1, sourceDoc)

	if !node.HasLink(relation, target.ID) {
		node.Links = append(node.Links, domain.NodeLink{Relation: relation, TargetID: target.ID})
	}
	if !target.HasLink(reverse, node.ID) {
		target.Links = append(target.Links, domain.NodeLink{Relation: reverse, TargetID: node.ID})
	}
}

// resolveOrCreateTarget finds a node by label across kinds, preferring
// pathologies, or creates a placeholder pathology node so the relation has
// somewhere to land before the real record is ingested.
func (ing *Ingestor) resolveOrCreateTarget(label string) *domain.Node {
	if domain.Normalize(label) == "" {
		return nil
	}

	for _, kind := range []domain.NodeKind{
		domain.KindPathology, domain.KindSyndrome, domain.KindProtocol,
		domain.KindGuideline, domain.KindReference,
	} {
		if n := ing.snap.FindNodeByKey(domain.NodeKeyFor(kind, label)); n != nil {
			return n
		}
	}

	placeholder := &domain.Node{
		ID:          uuid.New().String(),
		NodeKey:     domain.NodeKeyFor(domain.KindPathology, label),
		Label:       label,
		Kind:        domain.KindPathology,
		LastUpdated: time.Now().UTC(),
	}
	ing.snap.Nodes[placeholder.ID] = placeholder

	ing.log.WithField("label", label).Debug("Created placeholder target node")
	return placeholder
}

// mergeBranches unions branch lists by concept id; an incoming branch
// replaces the stored one so re-ingestion refreshes modalities.
func mergeBranches(existing, incoming []domain.ConceptTreeBranch) []domain.ConceptTreeBranch {
	out := make([]domain.ConceptTreeBranch, 0, len(existing)+len(incoming))
	replaced := make(map[string]int)
	for _, b := range existing {
		replaced[b.ConceptID] = len(out)
		out = append(out, b)
	}
	for _, b := range incoming {
		if idx, ok := replaced[b.ConceptID]; ok {
			out[idx] = b
			continue
		}
		replaced[b.ConceptID] = len(out)
		out = append(out, b)
	}
	return out
}

func mergeContext(dst *domain.NodeContext, src domain.NodeContext) {
	dst.Definition = pick(src.Definition, dst.Definition)
	dst.Epidemiology = pick(src.Epidemiology, dst.Epidemiology)
	dst.LesionalContext = pick(src.LesionalContext, dst.LesionalContext)
	dst.EvidenceExams = pick(src.EvidenceExams, dst.EvidenceExams)
	dst.Management = pick(src.Management, dst.Management)
}

func mergeStrings(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := existing
	for _, s := range existing {
		seen[domain.Normalize(s)] = true
	}
	for _, s := range incoming {
		norm := domain.Normalize(s)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, s)
	}
	return out
}

func pick(incoming, existing string) string {
	if strings.TrimSpace(incoming) != "" {
		return incoming
	}
	return existing
}
