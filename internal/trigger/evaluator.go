package trigger

import (
	"strings"
	"unicode"
)

// Reason describes why a message did or did not qualify as a fire request
type Reason string

const (
	ReasonNone            Reason = "none"
	ReasonOperatorMention Reason = "operator_mention"
	ReasonTriggerWord     Reason = "trigger_word"
)

// Message is an inbound chat message as seen by the evaluator
type Message struct {
	Text             string
	AuthorID         string
	MentionedUserIDs []string
}

// Config holds the operator and trigger word sets.
// It is immutable once built and safe to share between goroutines.
type Config struct {
	operatorIDs  map[string]struct{}
	triggerWords map[string]struct{}
}

// NewConfig builds a Config, case-folding operator ids and trigger words once
func NewConfig(operatorIDs, triggerWords []string) *Config {
	cfg := &Config{
		operatorIDs:  make(map[string]struct{}, len(operatorIDs)),
		triggerWords: make(map[string]struct{}, len(triggerWords)),
	}
	for _, id := range operatorIDs {
		id = FoldASCII(strings.TrimSpace(id))
		if id != "" {
			cfg.operatorIDs[id] = struct{}{}
		}
	}
	for _, word := range triggerWords {
		word = FoldASCII(strings.TrimSpace(word))
		if word != "" {
			cfg.triggerWords[word] = struct{}{}
		}
	}
	return cfg
}

// IsOperator reports whether id is a configured operator
func (c *Config) IsOperator(id string) bool {
	_, ok := c.operatorIDs[FoldASCII(id)]
	return ok
}

// IsTriggerWord reports whether token matches a trigger word
func (c *Config) IsTriggerWord(token string) bool {
	_, ok := c.triggerWords[FoldASCII(token)]
	return ok
}

// TriggerWordCount returns the number of configured trigger words
func (c *Config) TriggerWordCount() int {
	return len(c.triggerWords)
}

// OperatorCount returns the number of configured operators
func (c *Config) OperatorCount() int {
	return len(c.operatorIDs)
}

// Decision is the outcome of evaluating a message
type Decision struct {
	Fire   bool
	Reason Reason
	// Match is the operator id or token that caused the decision
	Match  string
	Tokens []string
}

// Evaluator decides whether a message is a fire request
type Evaluator struct {
	config *Config
}

// NewEvaluator creates an evaluator over an immutable config
func NewEvaluator(config *Config) *Evaluator {
	return &Evaluator{config: config}
}

// ShouldFire reports whether msg qualifies as a fire request
func (e *Evaluator) ShouldFire(msg Message) bool {
	return e.Evaluate(msg).Fire
}

// Evaluate checks operator mentions first, then trigger words.
// The first match wins.
func (e *Evaluator) Evaluate(msg Message) Decision {
	for _, id := range msg.MentionedUserIDs {
		if e.config.IsOperator(id) {
			return Decision{Fire: true, Reason: ReasonOperatorMention, Match: id}
		}
	}

	tokens := Tokenize(msg.Text)
	for _, token := range tokens {
		if e.config.IsTriggerWord(token) {
			return Decision{Fire: true, Reason: ReasonTriggerWord, Match: token, Tokens: tokens}
		}
	}

	return Decision{Fire: false, Reason: ReasonNone, Tokens: tokens}
}

// Tokenize splits text into maximal runs of letters, digits and underscores
func Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !IsWordRune(r)
	})
}

// IsWordRune reports whether r can appear inside a token
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// IsWord reports whether s is a single non-empty token
func IsWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !IsWordRune(r) {
			return false
		}
	}
	return true
}

// FoldASCII lower-cases A-Z only; other runes compare exactly
func FoldASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}
