package trigger

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func newTestEvaluator(operators, words []string) *Evaluator {
	return NewEvaluator(NewConfig(operators, words))
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: []string{}},
		{name: "whitespace only", input: "  \t\n ", expected: []string{}},
		{name: "punctuation only", input: "?!... ,;", expected: []string{}},
		{name: "simple words", input: "hello world", expected: []string{"hello", "world"}},
		{name: "punctuation delimits", input: "bad,dog!good.cat", expected: []string{"bad", "dog", "good", "cat"}},
		{name: "underscore and digits are word runes", input: "snake_case 42x", expected: []string{"snake_case", "42x"}},
		{name: "apostrophe splits", input: "don't", expected: []string{"don", "t"}},
		{name: "unicode letters", input: "grüße über", expected: []string{"grüße", "über"}},
		{name: "mixed case kept", input: "ZaP", expected: []string{"ZaP"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Tokenize(tt.input)
			if len(tt.expected) == 0 {
				assert.Empty(t, result)
				return
			}
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluate_DecisionOrder(t *testing.T) {
	e := newTestEvaluator([]string{"Owner"}, []string{"Zap", "shock"})

	tests := []struct {
		name   string
		msg    Message
		fire   bool
		reason Reason
		match  string
	}{
		{
			name:   "operator mention without trigger word",
			msg:    Message{Text: "hey there", MentionedUserIDs: []string{"someone", "owner"}},
			fire:   true,
			reason: ReasonOperatorMention,
			match:  "owner",
		},
		{
			name:   "operator mention wins over trigger word",
			msg:    Message{Text: "zap", MentionedUserIDs: []string{"OWNER"}},
			fire:   true,
			reason: ReasonOperatorMention,
			match:  "OWNER",
		},
		{
			name:   "trigger word case folded",
			msg:    Message{Text: "please ZAP me"},
			fire:   true,
			reason: ReasonTriggerWord,
			match:  "ZAP",
		},
		{
			name:   "trigger word next to punctuation",
			msg:    Message{Text: "...shock!!!"},
			fire:   true,
			reason: ReasonTriggerWord,
			match:  "shock",
		},
		{
			name:   "substring does not match",
			msg:    Message{Text: "zapper shocking"},
			fire:   false,
			reason: ReasonNone,
		},
		{
			name:   "empty text and no mentions",
			msg:    Message{},
			fire:   false,
			reason: ReasonNone,
		},
		{
			name:   "mention of non operator",
			msg:    Message{Text: "hello", MentionedUserIDs: []string{"bob"}},
			fire:   false,
			reason: ReasonNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := e.Evaluate(tt.msg)
			assert.Equal(t, tt.fire, decision.Fire)
			assert.Equal(t, tt.reason, decision.Reason)
			assert.Equal(t, tt.match, decision.Match)
			assert.Equal(t, tt.fire, e.ShouldFire(tt.msg))
		})
	}
}

func TestEvaluate_SubstringNonMatch(t *testing.T) {
	e := newTestEvaluator(nil, []string{"cat"})
	assert.False(t, e.ShouldFire(Message{Text: "category"}))
	assert.True(t, e.ShouldFire(Message{Text: "cat-egory"}))
}

func TestNewConfig_Normalizes(t *testing.T) {
	cfg := NewConfig([]string{" Alice ", ""}, []string{"ZAP", "  ", "Shock"})
	assert.Equal(t, 1, cfg.OperatorCount())
	assert.Equal(t, 2, cfg.TriggerWordCount())
	assert.True(t, cfg.IsOperator("ALICE"))
	assert.True(t, cfg.IsTriggerWord("zap"))
	assert.True(t, cfg.IsTriggerWord("sHoCk"))
}

func TestEvaluate_FoldsASCIIOnly(t *testing.T) {
	e := newTestEvaluator([]string{"kate"}, []string{"kill", "straße"})

	// U+212A KELVIN SIGN lower-cases to k under Unicode rules
	assert.False(t, e.ShouldFire(Message{Text: "\u212Aill"}))
	assert.False(t, e.ShouldFire(Message{Text: "hi", MentionedUserIDs: []string{"\u212Aate"}}))
	assert.True(t, e.ShouldFire(Message{Text: "KILL"}))

	assert.True(t, e.ShouldFire(Message{Text: "STRAßE"}))
	assert.False(t, e.ShouldFire(Message{Text: "STRASSE"}))
	assert.False(t, e.ShouldFire(Message{Text: "STRA\u1E9EE"}), "non-ASCII capitals are not folded")
}

func TestIsWord(t *testing.T) {
	assert.True(t, IsWord("zap_2"))
	assert.False(t, IsWord(""))
	assert.False(t, IsWord("no-way"))
	assert.False(t, IsWord("two words"))
}

func TestEvaluator_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	separators := gen.OneConstOf(" ", ", ", "!", "...", "\t", "? ")

	properties.Property("a case-folded trigger word token always fires", prop.ForAll(
		func(word, before, after, sep string) bool {
			e := newTestEvaluator(nil, []string{word})
			text := before + sep + strings.ToUpper(word) + sep + after
			return e.ShouldFire(Message{Text: text})
		},
		gen.Identifier(),
		gen.AlphaString(),
		gen.AlphaString(),
		separators,
	))

	properties.Property("an operator mention always fires", prop.ForAll(
		func(operator, text string) bool {
			e := newTestEvaluator([]string{operator}, nil)
			return e.ShouldFire(Message{Text: text, MentionedUserIDs: []string{strings.ToUpper(operator)}})
		},
		gen.Identifier(),
		gen.AnyString(),
	))

	properties.Property("a trigger word inside a longer token never fires", prop.ForAll(
		func(word, suffix string) bool {
			e := newTestEvaluator(nil, []string{word})
			return !e.ShouldFire(Message{Text: word + suffix})
		},
		gen.Identifier(),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("tokens only contain word runes", prop.ForAll(
		func(text string) bool {
			for _, token := range Tokenize(text) {
				if !IsWord(token) {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
