package concept

// SemanticType is the classifier output attached to a concept by an
// external pattern analyzer (see the pipeline package); the core only
// stores and filters on it.
type SemanticType uint8

const (
	SemanticEntity SemanticType = iota
	SemanticEvent
	SemanticRule
	SemanticTemporal
	SemanticNegation
	SemanticCondition
	SemanticCausal
	SemanticQuantitative
	SemanticDefinitional
	SemanticGoal
)

func (t SemanticType) String() string {
	switch t {
	case SemanticEvent:
		return "event"
	case SemanticRule:
		return "rule"
	case SemanticTemporal:
		return "temporal"
	case SemanticNegation:
		return "negation"
	case SemanticCondition:
		return "condition"
	case SemanticCausal:
		return "causal"
	case SemanticQuantitative:
		return "quantitative"
	case SemanticDefinitional:
		return "definitional"
	case SemanticGoal:
		return "goal"
	default:
		return "entity"
	}
}

// Domain is the subject-matter area a concept's content falls in.
type Domain uint8

const (
	DomainGeneral Domain = iota
	DomainMedical
	DomainLegal
	DomainFinancial
	DomainTechnical
	DomainScientific
	DomainBusiness
)

func (d Domain) String() string {
	switch d {
	case DomainMedical:
		return "medical"
	case DomainLegal:
		return "legal"
	case DomainFinancial:
		return "financial"
	case DomainTechnical:
		return "technical"
	case DomainScientific:
		return "scientific"
	case DomainBusiness:
		return "business"
	default:
		return "general"
	}
}

// CausalRelation records one causal link a classifier extracted from a
// concept's content, pointing at another concept by id when resolved.
type CausalRelation struct {
	Target ID
	Kind   string // e.g. "enables", "prevents", "causes"
}

// TemporalBounds is an optional validity window for a concept.
type TemporalBounds struct {
	Start uint64 // unix seconds
	End   uint64 // unix seconds, 0 means open-ended
}

// SemanticMetadata is the classifier output attached to a ConceptNode.
// It is produced entirely outside the core (see pipeline.Analyzer) —
// the core only stores it and evaluates Filter predicates against it.
type SemanticMetadata struct {
	Type            SemanticType
	Domain          Domain
	Temporal        *TemporalBounds
	CausalRelations []CausalRelation
	NegationScope   string // empty means no negation
	Confidence      float32
}
