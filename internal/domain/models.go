package domain

import (
	"time"
)

// Concept is a canonical clinical finding or measurement. Labels and
// synonyms are matched case- and accent-insensitively; duplicates found at
// upsert time are merged into the existing record, never rejected.
type Concept struct {
	ID        string      `json:"concept_id"`
	Label     string      `json:"label"`
	Type      ConceptType `json:"type"`
	Synonyms  []string    `json:"synonyms,omitempty"`
	Negatable bool        `json:"negatable"`
	Unit      string      `json:"unit,omitempty"`
	UIHint    UIHint      `json:"ui_hint"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// UIHint tells the capture layer how to render an input for a concept.
type UIHint struct {
	Widget WidgetType `json:"widget"`
	Unit   string     `json:"unit,omitempty"`
}

// SemanticLink is a weighted directed relation between two free-text labels.
// Re-upserting the same (source, relation, target) key reinforces Strength
// and CountSeen instead of creating a duplicate record.
type SemanticLink struct {
	Source    string    `json:"source_label"`
	Relation  Relation  `json:"relation"`
	Target    string    `json:"target_label"`
	Strength  float64   `json:"strength"`
	CountSeen int       `json:"count_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Sources   []string  `json:"sources,omitempty"`
}

// GraphEdge is a weighted directed relation between two nodes, keyed by
// (source_id, relation, target_id) with the same reinforcement invariant as
// semantic links.
type GraphEdge struct {
	SourceID  string    `json:"source_id"`
	Relation  Relation  `json:"relation"`
	TargetID  string    `json:"target_id"`
	Strength  float64   `json:"strength"`
	CountSeen int       `json:"count_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Sources   []string  `json:"sources,omitempty"`
}

// Modality is a typed threshold rule over a concept's observed value. When
// its condition holds it contributes Score on top of the presence point.
type Modality struct {
	Label     string            `json:"label"`
	Class     string            `json:"class,omitempty"`
	Score     float64           `json:"score"`
	Condition ModalityCondition `json:"condition"`
}

// ModalityCondition is the comparison a modality applies to the observed
// value. Threshold holds either a number or a literal string depending on
// the operator and how the qualifier parsed.
type ModalityCondition struct {
	Operator  Operator `json:"operator"`
	Threshold Value    `json:"threshold"`
}

// ConceptTreeBranch is a node's reference to one concept plus the
// characteristics and modalities extracted for it.
type ConceptTreeBranch struct {
	ConceptID       string     `json:"concept_id"`
	Characteristics []string   `json:"characteristics,omitempty"`
	Modalities      []Modality `json:"modalities,omitempty"`
}

// ConceptTrees groups a node's branches by clinical axis plus its pivot
// terms, the free-text phrases that boost the node when present verbatim in
// a narrative.
type ConceptTrees struct {
	Symptoms   []ConceptTreeBranch `json:"symptoms,omitempty"`
	Signs      []ConceptTreeBranch `json:"signs,omitempty"`
	PivotTerms []string            `json:"pivot_terms,omitempty"`
}

// NodeLink mirrors a graph edge inside the node record so traversal works
// without consulting the edge store. Kept for compatibility with snapshots
// written before the edge store existed.
type NodeLink struct {
	Relation Relation `json:"relation"`
	TargetID string   `json:"target_node_id"`
}

// NodeContext carries the narrative sections extracted alongside the
// structured clinical elements.
type NodeContext struct {
	Definition      string `json:"definition,omitempty"`
	Epidemiology    string `json:"epidemiology,omitempty"`
	LesionalContext string `json:"lesional_context,omitempty"`
	EvidenceExams   string `json:"evidence_exams,omitempty"`
	Management      string `json:"management,omitempty"`
}

// Node is a pathology, syndrome, protocol, guideline or reference entry in
// the knowledge graph. NodeKey is the upsert identity, derived from the
// normalized (kind, label) pair; ID stays stable once assigned.
type Node struct {
	ID           string       `json:"node_id"`
	NodeKey      string       `json:"node_key"`
	Label        string       `json:"pathology"`
	Kind         NodeKind     `json:"node_kind"`
	Discipline   string       `json:"discipline,omitempty"`
	Specialty    string       `json:"specialty,omitempty"`
	Context      NodeContext  `json:"context"`
	ConceptTrees ConceptTrees `json:"concept_trees"`
	SyndromeIDs  []string     `json:"syndrome_ids,omitempty"`
	Links        []NodeLink   `json:"outbound_links,omitempty"`
	LastUpdated  time.Time    `json:"last_updated"`
}

// Branches returns all concept tree branches of the node, symptoms first.
func (n *Node) Branches() []ConceptTreeBranch {
	out := make([]ConceptTreeBranch, 0, len(n.ConceptTrees.Symptoms)+len(n.ConceptTrees.Signs))
	out = append(out, n.ConceptTrees.Symptoms...)
	out = append(out, n.ConceptTrees.Signs...)
	return out
}

// ConceptIDs returns the set of concept ids referenced by the node's trees.
func (n *Node) ConceptIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, b := range n.Branches() {
		ids[b.ConceptID] = struct{}{}
	}
	return ids
}

// HasLink reports whether the node already mirrors an edge to targetID with
// the given relation.
func (n *Node) HasLink(rel Relation, targetID string) bool {
	for _, l := range n.Links {
		if l.Relation == rel && l.TargetID == targetID {
			return true
		}
	}
	return false
}

// Syndrome is a named grouping of concepts. It is active in a query when at
// least one of its concept ids is active.
type Syndrome struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	ConceptIDs  []string `json:"concept_ids,omitempty"`
}

// TempConcept is a quarantined candidate concept that failed the admission
// gate. Repeated sightings reinforce CountSeen; promotion or manual review
// removes the record.
type TempConcept struct {
	ID             string      `json:"id"`
	RawLabel       string      `json:"raw_label"`
	TypeGuess      ConceptType `json:"detected_type_guess"`
	Status         TempStatus  `json:"status"`
	CountSeen      int         `json:"count_seen"`
	LastSeen       time.Time   `json:"last_seen"`
	SourceDocument string      `json:"source_document,omitempty"`
}

// ObservedValue is one externally supplied observation: an element or
// concept identifier plus the raw value typed by the user or produced by
// the capture layer.
type ObservedValue struct {
	ElementID string `json:"element_id"`
	Value     any    `json:"value"`
}

// Observation is the input to inference: structured values plus the raw
// narrative text used for pivot and keyword bonuses.
type Observation struct {
	Values  []ObservedValue `json:"values"`
	RawText string          `json:"raw_text,omitempty"`
}

// InferenceResult is one ranked candidate returned by a query.
type InferenceResult struct {
	Node              *Node    `json:"node"`
	Score             float64  `json:"score"`
	ActiveModalities  []string `json:"active_modalities,omitempty"`
	ActiveSyndromes   []string `json:"active_syndromes,omitempty"`
	Reasoning         []string `json:"reasoning,omitempty"`
	MatchedConcepts   []string `json:"matched_concepts,omitempty"`
	UnmatchedConcepts []string `json:"unmatched_concepts,omitempty"`
}

// ExtractionResult is the structured object handed over by the extraction
// collaborator. The core never parses prose beyond simple keyword checks;
// it trusts this shape.
type ExtractionResult struct {
	Pathology  string              `json:"pathology,omitempty"`
	Title      string              `json:"title,omitempty"`
	NodeKind   NodeKind            `json:"node_kind"`
	Taxonomy   Taxonomy            `json:"taxonomy"`
	Context    NodeContext         `json:"context"`
	Syndromes  []ExtractedSyndrome `json:"syndromes,omitempty"`
	Elements   []ExtractedElement  `json:"clinical_elements,omitempty"`
	PivotTerms []string            `json:"pivot_terms,omitempty"`
	AppliesTo  string              `json:"applies_to,omitempty"`
	Links      []ExtractedLink     `json:"links,omitempty"`
	SourceDoc  string              `json:"source_document,omitempty"`
}

// Taxonomy locates a node in the discipline/specialty index.
type Taxonomy struct {
	Discipline string `json:"discipline,omitempty"`
	Specialty  string `json:"specialty,omitempty"`
}

// ExtractedSyndrome is a syndrome proposal attached to an extraction.
type ExtractedSyndrome struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Findings    []string `json:"associated_findings,omitempty"`
}

// ExtractedElement is one clinical element proposal: a root term, its type,
// free-text qualifiers and optional measurement metadata.
type ExtractedElement struct {
	RootTerm        string      `json:"root_term"`
	Type            ConceptType `json:"type"`
	Characteristics []string    `json:"characteristics,omitempty"`
	Values          []string    `json:"values,omitempty"`
	Unit            string      `json:"unit,omitempty"`
	Synonyms        []string    `json:"synonyms,omitempty"`
}

// ExtractedLink relates the extracted node to another condition by label.
type ExtractedLink struct {
	Relation    Relation `json:"relation"`
	TargetLabel string   `json:"target_label"`
}

// DisplayLabel returns the node display label of the extraction, preferring
// the pathology field over the generic title.
func (e *ExtractionResult) DisplayLabel() string {
	if e.Pathology != "" {
		return e.Pathology
	}
	return e.Title
}

// IngestReport summarizes one ingestion round trip for the caller.
type IngestReport struct {
	NodeID          string   `json:"node_id"`
	NodeKey         string   `json:"node_key"`
	Created         bool     `json:"created"`
	AdmittedLabels  []string `json:"admitted_labels,omitempty"`
	Quarantined     []string `json:"quarantined_labels,omitempty"`
	PromotedLabels  []string `json:"promoted_labels,omitempty"`
	LinkedNodeIDs   []string `json:"linked_node_ids,omitempty"`
	MergedFragments []string `json:"merged_fragments,omitempty"`
}
