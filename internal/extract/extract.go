// Package extract pulls numeric and categorical claims out of analytical prose.
//
// Every function here is pure: the same text and keywords always produce the
// same result, and absence is reported through Found=false plus a documented
// default value instead of an error. Matching is keyword anchored and case
// insensitive. When several candidates exist the one appearing first in the
// text wins.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultConfidence is the neutral prior reported when no confidence is stated.
	DefaultConfidence = 50.0
	// DefaultProbability is reported when no probability is stated.
	DefaultProbability = 0.0

	maxGap = 48
)

// Match is a single extracted number.
type Match struct {
	Value  float64 `json:"value"`
	Found  bool    `json:"found"`
	Unit   string  `json:"unit,omitempty"`
	Quote  string  `json:"quote,omitempty"`
	Offset int     `json:"-"`
}

// RangeMatch is a low/best/high triple in the order it was written.
type RangeMatch struct {
	Low    float64 `json:"low"`
	Best   float64 `json:"best"`
	High   float64 `json:"high"`
	Found  bool    `json:"found"`
	Unit   string  `json:"unit,omitempty"`
	Quote  string  `json:"quote,omitempty"`
	Offset int     `json:"-"`
}

// EstimateMatch is a value with the uncertainty and confidence stated in the same clause.
type EstimateMatch struct {
	Value       Match `json:"value"`
	Uncertainty Match `json:"uncertainty"`
	Confidence  Match `json:"confidence"`
}

// DistributionMatch is a mean with the spread and confidence stated in the same clause.
type DistributionMatch struct {
	Mean       Match `json:"mean"`
	Std        Match `json:"std"`
	Confidence Match `json:"confidence"`
}

// LabelledValue is a proper name followed by a parenthesised percentage, e.g. "Brent (78% similar)".
type LabelledValue struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

var (
	numberRe      = regexp.MustCompile(`[-+]?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?`)
	uncertaintyRe = regexp.MustCompile(`(?:±|\+/-|\+/−|\+-)\s*(\d+(?:\.\d+)?)\s*(%)?`)

	confidenceAfterRe  = regexp.MustCompile(`(?i)\bconfidence\b[^0-9.;\n]{0,24}?(\d+(?:\.\d+)?)\s*%`)
	confidenceBeforeRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%\s+confidence\b`)
	probabilityAfterRe = regexp.MustCompile(`(?i)\bprobability\b[^0-9.;\n]{0,24}?(\d+(?:\.\d+)?)\s*%`)
	probabilityBefore  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%\s+probability\b`)
	stdRe              = regexp.MustCompile(`(?i)(?:\bstd\b|\bstandard deviation\b|\bsigma\b|σ)[^0-9;\n]{0,12}?(\d+(?:\.\d+)?)`)
	labelledRe         = regexp.MustCompile(`([A-Z][A-Za-z0-9'\-]*(?: [A-Z][A-Za-z0-9'\-]*){0,4}(?: field| basin| play| trend)?)\s*\(\s*(\d+(?:\.\d+)?)\s*%\s*(?:similar|similarity|match)`)
)

// unitTokens maps a written unit to its canonical token. Longer spellings come first
// so "mmboe" is not read as "m".
var unitTokens = []struct{ written, canonical string }{
	{"percent", "%"},
	{"%", "%"},
	{"°api", "api"},
	{"deg c", "degC"},
	{"°c", "degC"},
	{"kilometres", "km"},
	{"kilometers", "km"},
	{"kg/m3", "kg/m3"},
	{"kg/m³", "kg/m3"},
	{"g/cc", "g/cc"},
	{"mmboe", "mmbbl"},
	{"mmbbl", "mmbbl"},
	{"mmstb", "mmbbl"},
	{"mmbo", "mmbbl"},
	{"bboe", "bbbl"},
	{"bbo", "bbbl"},
	{"mmscf", "mmscf"},
	{"tcf", "tcf"},
	{"bcf", "bcf"},
	{"km²", "km2"},
	{"km2", "km2"},
	{"km³", "km3"},
	{"km3", "km3"},
	{"metres", "m"},
	{"meters", "m"},
	{"mgal", "mgal"},
	{"mpa", "MPa"},
	{"psi", "psi"},
	{"feet", "ft"},
	{"ft", "ft"},
	{"md", "mD"},
	{"ma", "Ma"},
	{"km", "km"},
	{"nt", "nT"},
	{"si", "SI"},
	{"cp", "cP"},
	{"m", "m"},
}

// NumericalValue returns the first number bound to one of the keywords, either
// following it ("porosity: 12%") or directly preceding it ("12% porosity").
// A number followed by a unit token records that unit. Value is 0 and Found is
// false when nothing matches.
func NumericalValue(text string, keywords []string) Match {
	lower := asciiLower(text)
	best := Match{}
	bestKeyword := -1
	for _, kw := range normaliseKeywords(keywords) {
		for _, at := range keywordIndexes(lower, kw) {
			m, ok := bindNumber(text, lower, at, at+len(kw))
			if !ok {
				continue
			}
			if bestKeyword < 0 || at < bestKeyword {
				best = m
				bestKeyword = at
			}
			break
		}
	}
	return best
}

// Range returns the first three numbers that follow a keyword within its clause.
// The numbers are returned in written order and are never reordered; callers
// validate monotonicity themselves.
func Range(text string, keywords ...string) RangeMatch {
	lower := asciiLower(text)
	best := RangeMatch{}
	bestAt := -1
	for _, kw := range normaliseKeywords(keywords) {
		for _, at := range keywordIndexes(lower, kw) {
			start := at + len(kw)
			end := clauseEnd(lower, start)
			nums := scanNumbers(lower, start, end)
			if len(nums) < 3 || nums[0].start-start > maxGap {
				continue
			}
			if bestAt >= 0 && at >= bestAt {
				break
			}
			unit := ""
			for _, n := range nums[:3] {
				if n.unit != "" && n.unit != "%" {
					unit = n.unit
					break
				}
			}
			best = RangeMatch{
				Low:    nums[0].value,
				Best:   nums[1].value,
				High:   nums[2].value,
				Found:  true,
				Unit:   unit,
				Quote:  strings.TrimSpace(text[at:nums[2].end]),
				Offset: at,
			}
			bestAt = at
			break
		}
	}
	return best
}

// Uncertainty returns the first "±N" or "+/- N" figure in the text.
func Uncertainty(text string) Match {
	loc := uncertaintyRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}
	}
	v, err := parseNumber(text[loc[2]:loc[3]])
	if err != nil {
		return Match{}
	}
	m := Match{Value: v, Found: true, Quote: text[loc[0]:loc[1]], Offset: loc[0]}
	if loc[4] >= 0 {
		m.Unit = "%"
	}
	return m
}

// Confidence returns the first "confidence: N%" or "N% confidence" figure.
// The default is DefaultConfidence with Found=false.
func Confidence(text string) Match {
	m := firstOf(text, confidenceAfterRe, confidenceBeforeRe)
	if !m.Found {
		m.Value = DefaultConfidence
	}
	return m
}

// Probability returns the first "probability: N%" or "N% probability" figure.
// The default is DefaultProbability with Found=false: no claim, no presence asserted.
func Probability(text string) Match {
	m := firstOf(text, probabilityAfterRe, probabilityBefore)
	if !m.Found {
		m.Value = DefaultProbability
	}
	return m
}

// StandardDeviation returns the first "std", "sigma" or "standard deviation" figure,
// falling back to a ± figure.
func StandardDeviation(text string) Match {
	if m := firstOf(text, stdRe); m.Found {
		return m
	}
	return Uncertainty(text)
}

// Clause returns the sentence fragment that starts at the first keyword occurrence.
func Clause(text string, keywords []string) (string, bool) {
	lower := asciiLower(text)
	at, kwLen := firstKeyword(lower, normaliseKeywords(keywords))
	if at < 0 {
		return "", false
	}
	return text[at:clauseEnd(lower, at+kwLen)], true
}

// Clauses returns every clause introduced by one of the keywords, in written order.
func Clauses(text string, keywords []string) []string {
	lower := asciiLower(text)
	type span struct{ at, end int }
	var spans []span
	for _, kw := range normaliseKeywords(keywords) {
		for _, at := range keywordIndexes(lower, kw) {
			spans = append(spans, span{at: at, end: clauseEnd(lower, at+len(kw))})
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].at < spans[j].at })
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		out = append(out, text[s.at:s.end])
	}
	return out
}

// Mentions reports whether any keyword occurs as a whole word or phrase.
func Mentions(text string, keywords []string) bool {
	at, _ := firstKeyword(asciiLower(text), normaliseKeywords(keywords))
	return at >= 0
}

// Estimate reads a value bound to the keywords together with the uncertainty and
// confidence stated in the clause that introduces it.
func Estimate(text string, keywords []string) EstimateMatch {
	out := EstimateMatch{Value: NumericalValue(text, keywords), Confidence: Match{Value: DefaultConfidence}}
	clause, ok := Clause(text, keywords)
	if !ok {
		return out
	}
	out.Uncertainty = Uncertainty(clause)
	out.Confidence = Confidence(clause)
	return out
}

// Distribution reads a mean bound to the keywords together with the spread and
// confidence stated in the same clause.
func Distribution(text string, keywords []string) DistributionMatch {
	out := DistributionMatch{Mean: NumericalValue(text, keywords), Confidence: Match{Value: DefaultConfidence}}
	clause, ok := Clause(text, keywords)
	if !ok {
		return out
	}
	out.Std = StandardDeviation(clause)
	out.Confidence = Confidence(clause)
	return out
}

// Labelled returns every "Name (N% similar)" pair in written order.
func Labelled(text string) []LabelledValue {
	var out []LabelledValue
	for _, m := range labelledRe.FindAllStringSubmatch(text, -1) {
		v, err := parseNumber(m[2])
		if err != nil {
			continue
		}
		out = append(out, LabelledValue{Label: strings.TrimSpace(m[1]), Value: v})
	}
	return out
}

// FirstCategory returns the category whose keyword appears earliest. At equal
// positions the longer keyword wins so "structural-stratigraphic" beats "structural".
func FirstCategory(text string, options []Category) (string, bool) {
	found := categoryHits(asciiLower(text), options)
	if len(found) == 0 {
		return "", false
	}
	return found[0].value, true
}

// AllCategories returns every matching category once, ordered by first mention.
func AllCategories(text string, options []Category) []string {
	hits := categoryHits(asciiLower(text), options)
	seen := map[string]bool{}
	var out []string
	for _, h := range hits {
		if seen[h.value] {
			continue
		}
		seen[h.value] = true
		out = append(out, h.value)
	}
	return out
}

type categoryHit struct {
	value  string
	at     int
	length int
}

func categoryHits(lower string, options []Category) []categoryHit {
	var hits []categoryHit
	for _, opt := range options {
		at, kwLen := firstKeyword(lower, normaliseKeywords(opt.Keywords))
		if at < 0 {
			continue
		}
		hits = append(hits, categoryHit{value: opt.Value, at: at, length: kwLen})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].at != hits[j].at {
			return hits[i].at < hits[j].at
		}
		return hits[i].length > hits[j].length
	})
	return hits
}

type number struct {
	value float64
	unit  string
	start int
	end   int
}

// bindNumber picks between the number after the keyword and the number directly
// before it. The tighter binding wins; ties go to the number after.
func bindNumber(text, lower string, kwStart, kwEnd int) (Match, bool) {
	var after *number
	clause := clauseEnd(lower, kwEnd)
	if nums := scanNumbers(lower, kwEnd, clause); len(nums) > 0 && nums[0].start-kwEnd <= maxGap {
		after = &nums[0]
	}
	before := numberBefore(lower, kwStart)
	switch {
	case after == nil && before == nil:
		return Match{}, false
	case before != nil && (after == nil || kwStart-before.end < after.start-kwEnd):
		return Match{
			Value:  before.value,
			Found:  true,
			Unit:   before.unit,
			Quote:  strings.TrimSpace(text[before.start:kwEnd]),
			Offset: before.start,
		}, true
	default:
		return Match{
			Value:  after.value,
			Found:  true,
			Unit:   after.unit,
			Quote:  strings.TrimSpace(text[kwStart:after.end]),
			Offset: kwStart,
		}, true
	}
}

// numberBefore finds "N unit" immediately before a keyword, separated only by spaces.
func numberBefore(lower string, kwStart int) *number {
	i := kwStart
	for i > 0 && (lower[i-1] == ' ' || lower[i-1] == '\t') {
		i--
	}
	if i == kwStart && i > 0 && lower[i-1] != '%' {
		return nil
	}
	from := i - 40
	if from < 0 {
		from = 0
	}
	nums := scanNumbers(lower, from, i)
	if len(nums) == 0 {
		return nil
	}
	last := nums[len(nums)-1]
	rest := strings.TrimRight(lower[last.end:i], " \t")
	if rest != "" {
		return nil
	}
	return &last
}

// scanNumbers returns the valid numbers in lower[from:to]. A number glued to a
// letter ("P90", "3D") is rejected unless the letters form a unit token.
func scanNumbers(lower string, from, to int) []number {
	if from >= to {
		return nil
	}
	var out []number
	for _, loc := range numberRe.FindAllStringIndex(lower[from:to], -1) {
		start, end := from+loc[0], from+loc[1]
		raw := lower[start:end]
		if raw[0] == '-' || raw[0] == '+' {
			if start > 0 && !isSeparator(lastRune(lower[:start])) {
				start++
				raw = raw[1:]
			}
		}
		if start > 0 {
			prev := lastRune(lower[:start])
			if unicode.IsLetter(prev) || unicode.IsDigit(prev) || prev == '.' {
				continue
			}
		}
		v, err := parseNumber(raw)
		if err != nil {
			continue
		}
		unit, unitEnd := unitAt(lower, end, to)
		if unit == "" && end < len(lower) && unicode.IsLetter(firstRune(lower[end:])) {
			continue
		}
		if unit != "" {
			end = unitEnd
		}
		out = append(out, number{value: v, unit: unit, start: start, end: end})
	}
	return out
}

func unitAt(lower string, at, limit int) (string, int) {
	i := at
	for i < limit && (lower[i] == ' ' || lower[i] == '\t') {
		i++
	}
	for _, u := range unitTokens {
		end := i + len(u.written)
		if end > len(lower) || lower[i:end] != u.written {
			continue
		}
		if end < len(lower) {
			next := firstRune(lower[end:])
			if unicode.IsLetter(next) || unicode.IsDigit(next) {
				continue
			}
		}
		return u.canonical, end
	}
	return "", at
}

// clauseEnd returns the index of the first sentence boundary at or after from.
// A period only ends a clause when whitespace or the end of text follows it.
func clauseEnd(lower string, from int) int {
	for i := from; i < len(lower); i++ {
		switch lower[i] {
		case '\n', ';', '!', '?':
			return i
		case '.':
			if i+1 == len(lower) || lower[i+1] == ' ' || lower[i+1] == '\t' || lower[i+1] == '\r' || lower[i+1] == '\n' {
				return i
			}
		}
	}
	return len(lower)
}

func firstKeyword(lower string, keywords []string) (int, int) {
	at, length := -1, 0
	for _, kw := range keywords {
		idx := keywordIndexes(lower, kw)
		if len(idx) == 0 {
			continue
		}
		if at < 0 || idx[0] < at || (idx[0] == at && len(kw) > length) {
			at, length = idx[0], len(kw)
		}
	}
	return at, length
}

// keywordIndexes returns whole-phrase occurrences of kw in lower.
func keywordIndexes(lower, kw string) []int {
	if kw == "" {
		return nil
	}
	var out []int
	for from := 0; from < len(lower); {
		i := strings.Index(lower[from:], kw)
		if i < 0 {
			break
		}
		at := from + i
		end := at + len(kw)
		okBefore := at == 0 || !isWordRune(lastRune(lower[:at]))
		okAfter := end == len(lower) || !isWordRune(firstRune(lower[end:]))
		if okBefore && okAfter {
			out = append(out, at)
		}
		from = at + 1
	}
	return out
}

func firstOf(text string, patterns ...*regexp.Regexp) Match {
	best := Match{}
	bestAt := -1
	for _, re := range patterns {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil || (bestAt >= 0 && loc[0] >= bestAt) {
			continue
		}
		v, err := parseNumber(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		best = Match{Value: v, Found: true, Unit: "%", Quote: text[loc[0]:loc[1]], Offset: loc[0]}
		if re == stdRe {
			best.Unit = ""
		}
		bestAt = loc[0]
	}
	return best
}

func normaliseKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = asciiLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// asciiLower lowercases ASCII letters only so byte offsets stay aligned with the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func parseNumber(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == ':' || r == '=' || r == '(' || r == '['
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
