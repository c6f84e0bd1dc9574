package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sutra-engine/sutra-storage/concept"
)

func ruleNode(confidence float32) *concept.Node {
	return &concept.Node{
		ID:      concept.NewIDFromContent([]byte("rule")),
		Content: []byte("All cats are mammals"),
		Semantic: &concept.SemanticMetadata{
			Type:       concept.SemanticRule,
			Domain:     concept.DomainGeneral,
			Confidence: confidence,
		},
	}
}

func TestFilterMatchesType(t *testing.T) {
	rule := concept.SemanticRule
	f := Filter{Type: &rule}
	assert.True(t, f.Matches(ruleNode(0.9)))

	event := concept.SemanticEvent
	f2 := Filter{Type: &event}
	assert.False(t, f2.Matches(ruleNode(0.9)))
}

func TestFilterMinConfidence(t *testing.T) {
	min := float32(0.8)
	f := Filter{MinConfidence: &min}
	assert.True(t, f.Matches(ruleNode(0.9)))
	assert.False(t, f.Matches(ruleNode(0.5)))
}

func TestFilterNoSemanticMetadataFailsConstrainedFilter(t *testing.T) {
	node := &concept.Node{ID: concept.NewIDFromContent([]byte("bare")), Content: []byte("hello")}
	domain := concept.DomainMedical
	f := Filter{Domain: &domain}
	assert.False(t, f.Matches(node))
}

func TestFilterRequiredSubstringsCaseInsensitive(t *testing.T) {
	node := &concept.Node{ID: concept.NewIDFromContent([]byte("x")), Content: []byte("The Quick Brown Fox")}
	f := Filter{RequiredSubstrings: []string{"quick", "FOX"}}
	assert.True(t, f.Matches(node))

	f2 := Filter{RequiredSubstrings: []string{"quick", "dog"}}
	assert.False(t, f2.Matches(node))
}

func TestFilterHasCausalRelation(t *testing.T) {
	withCausal := ruleNode(0.9)
	withCausal.Semantic.CausalRelations = []concept.CausalRelation{{Kind: "enables"}}

	f := Filter{HasCausalRelation: true}
	assert.True(t, f.Matches(withCausal))
	assert.False(t, f.Matches(ruleNode(0.9)))
}

func TestFilterEmptyMatchesEverything(t *testing.T) {
	f := Filter{}
	assert.True(t, f.Matches(ruleNode(0.1)))
	assert.True(t, f.Matches(&concept.Node{}))
}
