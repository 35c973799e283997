// Package domain contains the core entities of the clinical knowledge graph:
// canonical concepts, pathology/syndrome/protocol nodes, the weighted label
// and node graphs, quarantined candidate concepts, and the observation and
// inference result types exchanged with external collaborators.
package domain

// ConceptType classifies a clinical concept by the kind of finding it
// represents. The type drives presence semantics during inference: measures
// are numeric, most findings are boolean, free-text qualifiers are text.
type ConceptType string

const (
	ConceptSymptom         ConceptType = "symptom"
	ConceptClinicalSign    ConceptType = "clinical_sign"
	ConceptParaclinical    ConceptType = "paraclinical_sign"
	ConceptAntecedent      ConceptType = "antecedent"
	ConceptMeasure         ConceptType = "measure"
	ConceptPathology       ConceptType = "pathology"
	ConceptSyndrome        ConceptType = "syndrome"
	ConceptRiskFactor      ConceptType = "risk_factor"
	ConceptAnatomy         ConceptType = "anatomy"
	ConceptLesionalContext ConceptType = "lesional_context"
)

// IsValid reports whether the concept type is one of the known categories.
func (ct ConceptType) IsValid() bool {
	switch ct {
	case ConceptSymptom, ConceptClinicalSign, ConceptParaclinical,
		ConceptAntecedent, ConceptMeasure, ConceptPathology,
		ConceptSyndrome, ConceptRiskFactor, ConceptAnatomy,
		ConceptLesionalContext:
		return true
	default:
		return false
	}
}

// String returns the string representation of the concept type.
func (ct ConceptType) String() string {
	return string(ct)
}

// NodeKind identifies what a knowledge graph node describes.
type NodeKind string

const (
	KindPathology NodeKind = "pathology"
	KindSyndrome  NodeKind = "syndrome"
	KindProtocol  NodeKind = "protocol"
	KindGuideline NodeKind = "guideline"
	KindReference NodeKind = "reference"
)

// IsValid reports whether the node kind is recognized.
func (nk NodeKind) IsValid() bool {
	switch nk {
	case KindPathology, KindSyndrome, KindProtocol, KindGuideline, KindReference:
		return true
	default:
		return false
	}
}

// String returns the string representation of the node kind.
func (nk NodeKind) String() string {
	return string(nk)
}

// Relation labels a directed edge, either between free-text labels in the
// semantic link graph or between nodes in the knowledge graph.
type Relation string

const (
	RelSynonymOf        Relation = "synonym_of"
	RelIsA              Relation = "is_a"
	RelPartOf           Relation = "part_of"
	RelMeasures         Relation = "measures"
	RelAppliesTo        Relation = "applies_to"
	RelHasProtocol      Relation = "has_protocol"
	RelHasSyndrome      Relation = "has_syndrome"
	RelRelatedTo        Relation = "related_to"
	RelSameEtiologyAs   Relation = "same_etiology_as"
	RelIsSpecificOf     Relation = "is_specific_of"
	RelGeneralizationOf Relation = "is_generalization_of"
	RelHasVariant       Relation = "has_variant"
)

// String returns the string representation of the relation.
func (r Relation) String() string {
	return string(r)
}

// Transitive reports whether the relation participates in transitive label
// resolution. Only synonym and is-a links are followed; contextual relations
// like part_of or measures would corrupt canonicalization.
func (r Relation) Transitive() bool {
	return r == RelSynonymOf || r == RelIsA
}

// Inverse returns the relation written on the reverse edge when a forward
// edge is created between two nodes.
func (r Relation) Inverse() Relation {
	switch r {
	case RelIsSpecificOf:
		return RelHasVariant
	case RelHasVariant:
		return RelIsSpecificOf
	case RelGeneralizationOf:
		return RelIsSpecificOf
	case RelSameEtiologyAs:
		return RelSameEtiologyAs
	case RelAppliesTo:
		return RelHasProtocol
	default:
		return RelRelatedTo
	}
}

// Operator is the comparison operator of a modality condition.
type Operator string

const (
	OpGT       Operator = "gt"
	OpLT       Operator = "lt"
	OpGTE      Operator = "gte"
	OpLTE      Operator = "lte"
	OpEQ       Operator = "eq"
	OpContains Operator = "contains"
)

// IsValid reports whether the operator is recognized.
func (op Operator) IsValid() bool {
	switch op {
	case OpGT, OpLT, OpGTE, OpLTE, OpEQ, OpContains:
		return true
	default:
		return false
	}
}

// TempStatus is the review status of a quarantined concept.
type TempStatus string

const (
	TempPending   TempStatus = "pending"
	TempValidated TempStatus = "validated"
	TempRejected  TempStatus = "rejected"
)

// IsValid reports whether the temp status is recognized.
func (ts TempStatus) IsValid() bool {
	switch ts {
	case TempPending, TempValidated, TempRejected:
		return true
	default:
		return false
	}
}

// WidgetType is the UI input hint attached to a concept.
type WidgetType string

const (
	WidgetBoolean WidgetType = "boolean"
	WidgetNumeric WidgetType = "numeric"
	WidgetText    WidgetType = "text"
)
