package forensics

import (
	"strings"

	"casetrace/internal/casefile"
)

// LexiconSeverity is the fixed severity of a phrase match.
const LexiconSeverity = 70

// DefaultBehaviourSeverity applies to typed entries outside the table.
const DefaultBehaviourSeverity = 20

// typedSeverity maps explicit behaviour types to severities.
var typedSeverity = map[casefile.BehaviourType]int{
	casefile.BehaviourDeception:    90,
	casefile.BehaviourManipulation: 95,
	casefile.BehaviourCoercion:     98,
	casefile.BehaviourGaslighting:  99,
	casefile.BehaviourRetaliation:  85,
}

// BehaviourSeverity returns the table severity for a typed entry.
func BehaviourSeverity(t casefile.BehaviourType) int {
	if s, ok := typedSeverity[t]; ok {
		return s
	}
	return DefaultBehaviourSeverity
}

// LexiconEntry maps a set of phrases to one behaviour category.
type LexiconEntry struct {
	Category casefile.BehaviourType `yaml:"category" json:"category"`
	Phrases  []string               `yaml:"phrases" json:"phrases"`
}

// Lexicon is an ordered phrase table. Order determines signal order.
type Lexicon []LexiconEntry

var defaultLexicon = Lexicon{
	{Category: casefile.BehaviourGaslighting, Phrases: []string{"you imagined it", "you're crazy", "you misunderstood"}},
	{Category: casefile.BehaviourCoercion, Phrases: []string{"you must", "or else", "do this now"}},
	{Category: casefile.BehaviourDeception, Phrases: []string{"i never said that", "i don't remember", "i don’t remember"}},
	{Category: casefile.BehaviourRetaliation, Phrases: []string{"i'll make you regret", "you will be sorry"}},
}

// DefaultLexicon returns a copy of the built-in lexicon.
func DefaultLexicon() Lexicon {
	return defaultLexicon.clone()
}

func (l Lexicon) clone() Lexicon {
	out := make(Lexicon, len(l))
	for i, e := range l {
		out[i] = LexiconEntry{Category: e.Category, Phrases: append([]string(nil), e.Phrases...)}
	}
	return out
}

// Classifier maps behaviour entries to signals. The zero value uses the
// default lexicon. A Classifier is immutable once built and safe for
// concurrent use.
type Classifier struct {
	lexicon Lexicon
}

// NewClassifier builds a classifier over lex. Phrases are matched
// case-insensitively; empty phrases are dropped.
func NewClassifier(lex Lexicon) *Classifier {
	norm := make(Lexicon, 0, len(lex))
	for _, e := range lex {
		entry := LexiconEntry{Category: e.Category}
		for _, p := range e.Phrases {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				entry.Phrases = append(entry.Phrases, p)
			}
		}
		norm = append(norm, entry)
	}
	return &Classifier{lexicon: norm}
}

// Classify emits one signal per lexicon phrase found in an entry's text
// and one per typed entry. Both paths may fire for the same entry and
// signals are never deduplicated.
func (c *Classifier) Classify(entries []casefile.Behaviour) []BehaviourSignal {
	lex := defaultLexicon
	if c != nil && c.lexicon != nil {
		lex = c.lexicon
	}

	out := []BehaviourSignal{}
	for i, b := range entries {
		if b.Malformed {
			continue
		}
		if b.Text != "" {
			text := strings.ToLower(b.Text)
			for _, e := range lex {
				for _, p := range e.Phrases {
					if strings.Contains(text, p) {
						out = append(out, BehaviourSignal{
							Type:        e.Category,
							Severity:    LexiconSeverity,
							SourceIndex: i,
							Origin:      OriginLexicon,
							Phrase:      p,
						})
					}
				}
			}
		}
		if b.Type != "" {
			out = append(out, BehaviourSignal{
				Type:        b.Type,
				Severity:    BehaviourSeverity(b.Type),
				SourceIndex: i,
				Origin:      OriginTyped,
			})
		}
	}
	return out
}

// ClassifyBehaviour classifies entries with the default lexicon.
func ClassifyBehaviour(entries []casefile.Behaviour) []BehaviourSignal {
	return (*Classifier)(nil).Classify(entries)
}
