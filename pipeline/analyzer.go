package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sutra-engine/sutra-storage/concept"
)

// Analyzer classifies a piece of content into SemanticMetadata using
// fixed keyword rules. It is deterministic and synchronous: no network
// call, no model inference, just the same kind of rule table the
// original Ollama-backed pipeline fell back on for anything that
// wasn't embedding generation.
type Analyzer struct{}

func NewAnalyzer() *Analyzer { return &Analyzer{} }

var (
	causalCues    = []string{"because", "causes", "cause", "leads to", "led to", "results in", "resulted in", "due to"}
	temporalCues  = []string{"before", "after", "then", "yesterday", "tomorrow", "next week", "last year", "meanwhile"}
	negationCues  = []string{"not ", "never ", "no longer", "doesn't", "isn't", "won't", "cannot", "can't"}
	conditionCues = []string{"if ", "unless ", "when ", "provided that", "in case"}
	ruleCues      = []string{"must ", "should ", "always ", "never ", "required to", "is required"}
	goalCues      = []string{"in order to", "so that", "goal is", "wants to", "intends to", "aims to"}
	definitionCues = []string{"is defined as", "means that", "refers to", "is a type of", "is known as"}

	quantitativePattern = regexp.MustCompile(`[0-9]+(\.[0-9]+)?\s*(%|percent|dollars|kg|km|ms|seconds|minutes|hours)?`)

	domainKeywords = map[concept.Domain][]string{
		concept.DomainMedical:    {"patient", "diagnosis", "symptom", "treatment", "dosage", "physician", "clinical"},
		concept.DomainLegal:      {"contract", "statute", "court", "plaintiff", "defendant", "liability", "clause"},
		concept.DomainFinancial:  {"revenue", "invoice", "profit", "budget", "expense", "investment", "dividend"},
		concept.DomainTechnical:  {"server", "api", "database", "deploy", "latency", "compile", "protocol"},
		concept.DomainScientific: {"hypothesis", "experiment", "theory", "observation", "sample", "control group"},
		concept.DomainBusiness:   {"meeting", "strategy", "customer", "stakeholder", "quarterly", "roadmap"},
	}
)

func containsAny(haystack string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(haystack, c) {
			return true
		}
	}
	return false
}

func countMatches(haystack string, cues []string) int {
	n := 0
	for _, c := range cues {
		if strings.Contains(haystack, c) {
			n++
		}
	}
	return n
}

// Analyze classifies content deterministically. Type is picked by
// cue-word precedence (causal and negation take priority over the
// weaker entity/event default); Domain is whichever keyword bucket
// matches most terms, General if none match.
func (a *Analyzer) Analyze(content string) concept.SemanticMetadata {
	lower := strings.ToLower(content)

	semType := concept.SemanticEntity
	switch {
	case containsAny(lower, negationCues):
		semType = concept.SemanticNegation
	case containsAny(lower, causalCues):
		semType = concept.SemanticCausal
	case containsAny(lower, conditionCues):
		semType = concept.SemanticCondition
	case containsAny(lower, ruleCues):
		semType = concept.SemanticRule
	case containsAny(lower, goalCues):
		semType = concept.SemanticGoal
	case containsAny(lower, definitionCues):
		semType = concept.SemanticDefinitional
	case containsAny(lower, temporalCues):
		semType = concept.SemanticTemporal
	case quantitativePattern.MatchString(lower):
		semType = concept.SemanticQuantitative
	case strings.Contains(lower, " is ") || strings.Contains(lower, " was ") || strings.Contains(lower, " did "):
		semType = concept.SemanticEvent
	}

	domain := concept.DomainGeneral
	bestScore := 0
	for d, keywords := range domainKeywords {
		if score := countMatches(lower, keywords); score > bestScore {
			bestScore = score
			domain = d
		}
	}

	var negationScope string
	for _, cue := range negationCues {
		if idx := strings.Index(lower, cue); idx >= 0 {
			negationScope = strings.TrimSpace(content[idx:])
			if len(negationScope) > 80 {
				negationScope = negationScope[:80]
			}
			break
		}
	}

	confidence := float32(0.5)
	if bestScore > 0 {
		confidence += float32(bestScore) * 0.1
	}
	if semType != concept.SemanticEntity {
		confidence += 0.2
	}
	if confidence > 0.99 {
		confidence = 0.99
	}

	return concept.SemanticMetadata{
		Type:          semType,
		Domain:        domain,
		NegationScope: negationScope,
		Confidence:    confidence,
	}
}

// ExtractedAssociation is one candidate edge an Extractor surfaced from
// a piece of content, pointing at another concept by the literal term
// it was derived from rather than a resolved concept.ID — the caller
// content-addresses the target the same way it addresses the source.
type ExtractedAssociation struct {
	Target     string
	Type       concept.AssociationType
	Confidence float32
}

// Extractor finds candidate associations inside content by scanning for
// a fixed set of relational cue phrases ("X causes Y", "X is a kind of
// Y", ...) and taking the phrase after the cue as the target term. It
// is deliberately shallow: no coreference, no parsing, just the
// pattern table a production pipeline would use before an embeddings-
// backed extractor was available.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

type extractionRule struct {
	pattern *regexp.Regexp
	assoc   concept.AssociationType
	weight  float32
}

var extractionRules = []extractionRule{
	{regexp.MustCompile(`(?i)\bcauses?\b\s+([a-z0-9 ,'-]{2,40})`), concept.Causal, 0.8},
	{regexp.MustCompile(`(?i)\bleads? to\b\s+([a-z0-9 ,'-]{2,40})`), concept.Causal, 0.75},
	{regexp.MustCompile(`(?i)\bbefore\b\s+([a-z0-9 ,'-]{2,40})`), concept.Temporal, 0.6},
	{regexp.MustCompile(`(?i)\bafter\b\s+([a-z0-9 ,'-]{2,40})`), concept.Temporal, 0.6},
	{regexp.MustCompile(`(?i)\bis a (?:kind|type) of\b\s+([a-z0-9 ,'-]{2,40})`), concept.Hierarchical, 0.85},
	{regexp.MustCompile(`(?i)\bpart of\b\s+([a-z0-9 ,'-]{2,40})`), concept.Compositional, 0.7},
	{regexp.MustCompile(`(?i)\brelates? to\b\s+([a-z0-9 ,'-]{2,40})`), concept.Semantic, 0.5},
}

// Extract returns candidate associations in descending confidence
// order, ready to be truncated to a caller-chosen cap and filtered by
// a minimum confidence threshold.
func (e *Extractor) Extract(content string) []ExtractedAssociation {
	var found []ExtractedAssociation
	for _, rule := range extractionRules {
		matches := rule.pattern.FindAllStringSubmatch(content, -1)
		for _, m := range matches {
			target := strings.TrimSpace(firstClause(m[1]))
			if target == "" {
				continue
			}
			found = append(found, ExtractedAssociation{
				Target:     target,
				Type:       rule.assoc,
				Confidence: rule.weight,
			})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Confidence > found[j].Confidence })
	return found
}

// firstClause trims a captured tail down to its first clause, since the
// regex capture group is deliberately greedy up to 40 chars.
func firstClause(s string) string {
	for _, sep := range []string{".", ",", ";", " and ", " but "} {
		if idx := strings.Index(s, sep); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
