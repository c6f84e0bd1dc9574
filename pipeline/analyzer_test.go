package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sutra-engine/sutra-storage/concept"
)

func TestAnalyzeClassifiesCausalContent(t *testing.T) {
	a := NewAnalyzer()
	meta := a.Analyze("the server crash causes data loss")
	assert.Equal(t, concept.SemanticCausal, meta.Type)
}

func TestAnalyzeClassifiesNegationContent(t *testing.T) {
	a := NewAnalyzer()
	meta := a.Analyze("the patient does not have a fever")
	assert.Equal(t, concept.SemanticNegation, meta.Type)
	assert.NotEmpty(t, meta.NegationScope)
}

func TestAnalyzeClassifiesMedicalDomain(t *testing.T) {
	a := NewAnalyzer()
	meta := a.Analyze("the physician reviewed the patient diagnosis and treatment plan")
	assert.Equal(t, concept.DomainMedical, meta.Domain)
}

func TestAnalyzeDefaultsToGeneralDomain(t *testing.T) {
	a := NewAnalyzer()
	meta := a.Analyze("the cat sat on the mat")
	assert.Equal(t, concept.DomainGeneral, meta.Domain)
}

func TestAnalyzeConfidenceStaysInRange(t *testing.T) {
	a := NewAnalyzer()
	meta := a.Analyze("revenue grew because customer retention improved and the budget increased")
	assert.GreaterOrEqual(t, meta.Confidence, float32(0))
	assert.LessOrEqual(t, meta.Confidence, float32(1))
}

func TestExtractFindsCausalAssociation(t *testing.T) {
	e := NewExtractor()
	found := e.Extract("smoking causes lung damage.")
	assert.NotEmpty(t, found)
	assert.Equal(t, concept.Causal, found[0].Type)
	assert.Equal(t, "lung damage", found[0].Target)
}

func TestExtractFindsHierarchicalAssociation(t *testing.T) {
	e := NewExtractor()
	found := e.Extract("a poodle is a kind of dog.")
	var sawHierarchical bool
	for _, f := range found {
		if f.Type == concept.Hierarchical {
			sawHierarchical = true
			assert.Equal(t, "dog", f.Target)
		}
	}
	assert.True(t, sawHierarchical)
}

func TestExtractReturnsEmptyForPlainContent(t *testing.T) {
	e := NewExtractor()
	found := e.Extract("hello world")
	assert.Empty(t, found)
}
