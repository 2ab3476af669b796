package extract

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Kind selects the matcher a Rule runs.
type Kind string

const (
	KindValue        Kind = "value"
	KindRange        Kind = "range"
	KindEstimate     Kind = "estimate"
	KindDistribution Kind = "distribution"
	KindConfidence   Kind = "confidence"
	KindUncertainty  Kind = "uncertainty"
	KindProbability  Kind = "probability"
)

// Rule maps keyword anchors to a named field. For confidence, uncertainty and
// probability rules the keywords scope the search to the clauses they introduce
// and the first clause stating a figure wins; with no keywords the whole text is
// searched.
type Rule struct {
	Field    string   `yaml:"field"`
	Kind     Kind     `yaml:"kind"`
	Keywords []string `yaml:"keywords"`
}

// Category is one member of a closed vocabulary and the phrases that indicate it.
type Category struct {
	Value    string   `yaml:"value"`
	Keywords []string `yaml:"keywords"`
}

// RuleSet is the full keyword table: numeric rules grouped by section and
// categorical vocabularies by name.
type RuleSet struct {
	Sections   map[string][]Rule     `yaml:"sections"`
	Categories map[string][]Category `yaml:"categories"`
}

// Section returns the rules for a section, or nil.
func (rs RuleSet) Section(name string) []Rule { return rs.Sections[name] }

// Vocabulary returns the categories registered under name, or nil.
func (rs RuleSet) Vocabulary(name string) []Category { return rs.Categories[name] }

// Merge returns a new RuleSet in which every rule or vocabulary in over replaces
// the one with the same section/field or name. Neither input is modified.
func (rs RuleSet) Merge(over RuleSet) RuleSet {
	out := RuleSet{Sections: map[string][]Rule{}, Categories: map[string][]Category{}}
	for name, rules := range rs.Sections {
		out.Sections[name] = append([]Rule(nil), rules...)
	}
	for name, cats := range rs.Categories {
		out.Categories[name] = append([]Category(nil), cats...)
	}
	for name, rules := range over.Sections {
		merged := out.Sections[name]
		for _, r := range rules {
			replaced := false
			for i := range merged {
				if merged[i].Field == r.Field {
					merged[i] = r
					replaced = true
					break
				}
			}
			if !replaced {
				merged = append(merged, r)
			}
		}
		out.Sections[name] = merged
	}
	for name, cats := range over.Categories {
		out.Categories[name] = append([]Category(nil), cats...)
	}
	return out
}

// Validate checks that every rule names a field, a known kind and, where the
// kind needs one, at least one keyword.
func (rs RuleSet) Validate() error {
	for section, rules := range rs.Sections {
		for _, r := range rules {
			if r.Field == "" {
				return fmt.Errorf("section %s: rule without field", section)
			}
			switch r.Kind {
			case KindValue, KindRange, KindEstimate, KindDistribution:
				if len(r.Keywords) == 0 {
					return fmt.Errorf("section %s field %s: keywords required for %s rule", section, r.Field, r.Kind)
				}
			case KindConfidence, KindUncertainty, KindProbability:
			default:
				return fmt.Errorf("section %s field %s: unknown kind %q", section, r.Field, r.Kind)
			}
		}
	}
	for name, cats := range rs.Categories {
		for _, c := range cats {
			if c.Value == "" || len(c.Keywords) == 0 {
				return fmt.Errorf("vocabulary %s: category needs value and keywords", name)
			}
		}
	}
	return nil
}

// LoadRules reads a YAML rule table. The result is usually merged over DefaultRules.
func LoadRules(r io.Reader) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.NewDecoder(r).Decode(&rs); err != nil {
		return RuleSet{}, fmt.Errorf("decode rules: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// Extraction holds the results of applying a section's rules to one text.
type Extraction struct {
	Values        map[string]Match
	Scoped        map[string]Match
	Ranges        map[string]RangeMatch
	Estimates     map[string]EstimateMatch
	Distributions map[string]DistributionMatch
}

// Value returns the match for field, or an unfound Match.
func (e Extraction) Value(field string) Match { return e.Values[field] }

// ScopedValue returns a confidence, uncertainty or probability match. Unfound
// matches carry the kind's default value.
func (e Extraction) ScopedValue(field string) Match { return e.Scoped[field] }

// Range returns the range for field, or an unfound RangeMatch.
func (e Extraction) Range(field string) RangeMatch { return e.Ranges[field] }

// Estimate returns the estimate for field with the neutral confidence default.
func (e Extraction) Estimate(field string) EstimateMatch {
	if m, ok := e.Estimates[field]; ok {
		return m
	}
	return EstimateMatch{Confidence: Match{Value: DefaultConfidence}}
}

// Distribution returns the distribution for field with the neutral confidence default.
func (e Extraction) Distribution(field string) DistributionMatch {
	if m, ok := e.Distributions[field]; ok {
		return m
	}
	return DistributionMatch{Confidence: Match{Value: DefaultConfidence}}
}

// Found counts the value, range, estimate and distribution fields that matched.
// Confidence, uncertainty and probability rules are not counted.
func (e Extraction) Found() int {
	n := 0
	for _, m := range e.Values {
		if m.Found {
			n++
		}
	}
	for _, m := range e.Ranges {
		if m.Found {
			n++
		}
	}
	for _, m := range e.Estimates {
		if m.Value.Found {
			n++
		}
	}
	for _, m := range e.Distributions {
		if m.Mean.Found {
			n++
		}
	}
	return n
}

// Apply runs every rule against text.
func Apply(text string, rules []Rule) Extraction {
	out := Extraction{
		Values:        map[string]Match{},
		Scoped:        map[string]Match{},
		Ranges:        map[string]RangeMatch{},
		Estimates:     map[string]EstimateMatch{},
		Distributions: map[string]DistributionMatch{},
	}
	for _, r := range rules {
		switch r.Kind {
		case KindValue:
			out.Values[r.Field] = NumericalValue(text, r.Keywords)
		case KindRange:
			out.Ranges[r.Field] = Range(text, r.Keywords...)
		case KindEstimate:
			out.Estimates[r.Field] = Estimate(text, r.Keywords)
		case KindDistribution:
			out.Distributions[r.Field] = Distribution(text, r.Keywords)
		case KindConfidence:
			out.Scoped[r.Field] = scoped(text, r.Keywords, Confidence, DefaultConfidence)
		case KindUncertainty:
			out.Scoped[r.Field] = scoped(text, r.Keywords, Uncertainty, 0)
		case KindProbability:
			out.Scoped[r.Field] = scoped(text, r.Keywords, Probability, DefaultProbability)
		}
	}
	return out
}

func scoped(text string, keywords []string, fn func(string) Match, def float64) Match {
	if len(keywords) == 0 {
		return fn(text)
	}
	for _, clause := range Clauses(text, keywords) {
		if m := fn(clause); m.Found {
			return m
		}
	}
	return Match{Value: def}
}
