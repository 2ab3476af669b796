package petrosys

import "fmt"

const (
	// DefaultConfidence is the neutral prior for a confidence nobody stated.
	DefaultConfidence = 50.0
	// NeutralRisk is used for a risk sub-score with no claim and nothing to derive it from.
	NeutralRisk = 50.0
)

// IssueKind classifies a non-fatal problem found while building a record.
type IssueKind string

const (
	IssueExtractionGap      IssueKind = "EXTRACTION_GAP"
	IssueInvariantViolation IssueKind = "INVARIANT_VIOLATION"
	IssueDataQuality        IssueKind = "DATA_QUALITY"
)

// Issue names the field it concerns using dotted record paths, e.g. "seal.integrity".
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Field   string    `json:"field"`
	Message string    `json:"message"`
}

func (i Issue) String() string { return fmt.Sprintf("%s %s: %s", i.Kind, i.Field, i.Message) }

type Issues []Issue

// Has reports whether any issue is of kind.
func (is Issues) Has(kind IssueKind) bool { return is.Count(kind) > 0 }

// Count returns the number of issues of kind.
func (is Issues) Count(kind IssueKind) int {
	n := 0
	for _, i := range is {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

// Field returns the issues raised for one field path.
func (is Issues) Field(path string) Issues {
	var out Issues
	for _, i := range is {
		if i.Field == path {
			out = append(out, i)
		}
	}
	return out
}

// RecordStatus summarises how much of a record the narrative supplied.
type RecordStatus string

const (
	RecordComplete RecordStatus = "COMPLETE"
	RecordPartial  RecordStatus = "PARTIAL"
	RecordEmpty    RecordStatus = "EMPTY"
)

// Validity is attached to every record. Valid is false when any field broke an
// invariant; the offending fields are flagged and their siblings are unaffected.
type Validity struct {
	Status RecordStatus `json:"status"`
	Valid  bool         `json:"valid"`
	Issues Issues       `json:"issues,omitempty"`
}

// Usable reports whether the record holds at least one value from the narrative.
func (v Validity) Usable() bool { return v.Status != RecordEmpty }

// builder accumulates fields and issues for one record.
type builder struct {
	prefix string
	issues Issues
	total  int
	known  int
}

func newBuilder(prefix string) *builder { return &builder{prefix: prefix} }

func (b *builder) path(field string) string {
	if b.prefix == "" {
		return field
	}
	return b.prefix + "." + field
}

func (b *builder) flag(kind IssueKind, field, format string, args ...any) {
	b.issues = append(b.issues, Issue{Kind: kind, Field: b.path(field), Message: fmt.Sprintf(format, args...)})
}

func (b *builder) mark(known bool) {
	b.total++
	if known {
		b.known++
	}
}

func (b *builder) count(q Quantity) Quantity {
	b.mark(q.Known())
	return q
}

// read converts r to unit, or returns a flagged zero default when r did not match.
func (b *builder) read(field string, r Reading, unit Unit) (Quantity, bool) {
	if !r.Found {
		b.flag(IssueExtractionGap, field, "no value found; defaulted to 0")
		return defaulted(0, unit), false
	}
	v, ok := convert(r.Value, r.Unit, unit)
	if !ok {
		b.flag(IssueDataQuality, field, "unit %q cannot be expressed in %s; value taken as %s", r.Unit, unit, unit)
	}
	return Quantity{Value: round(v), Unit: unit, Status: StatusExtracted, Quote: r.Quote}, true
}

func (b *builder) clamp(field string, q Quantity, lo, hi float64) Quantity {
	switch {
	case q.Value < lo:
		b.flag(IssueInvariantViolation, field, "value %g outside [%g,%g]; clamped to %g", q.Value, lo, hi, lo)
		q.Value, q.Status = lo, StatusClamped
	case q.Value > hi:
		b.flag(IssueInvariantViolation, field, "value %g outside [%g,%g]; clamped to %g", q.Value, lo, hi, hi)
		q.Value, q.Status = hi, StatusClamped
	}
	return q
}

func (b *builder) percent(field string, r Reading) Quantity {
	q, ok := b.read(field, r, UnitPercent)
	if ok {
		q = b.clamp(field, q, 0, 100)
	}
	return b.count(q)
}

func (b *builder) bounded(field string, r Reading, unit Unit, lo, hi float64) Quantity {
	q, ok := b.read(field, r, unit)
	if ok {
		q = b.clamp(field, q, lo, hi)
	}
	return b.count(q)
}

func (b *builder) nonNegative(field string, r Reading, unit Unit) Quantity {
	q, ok := b.read(field, r, unit)
	if ok && q.Value < 0 {
		b.flag(IssueInvariantViolation, field, "negative value %g discarded", q.Value)
		q = Quantity{Unit: unit, Status: StatusInvalid, Quote: q.Quote}
	}
	return b.count(q)
}

func (b *builder) signed(field string, r Reading, unit Unit) Quantity {
	q, _ := b.read(field, r, unit)
	return b.count(q)
}

// statedConfidence returns the stated confidence or the neutral prior. It is not
// counted toward record coverage.
func (b *builder) statedConfidence(field string, r Reading) Quantity {
	if !r.Found {
		return defaulted(DefaultConfidence, UnitPercent)
	}
	q := Quantity{Value: round(r.Value), Unit: UnitPercent, Status: StatusExtracted, Quote: r.Quote}
	return b.clamp(field, q, 0, 100)
}

// confidence returns the stated confidence or, failing that, the neutral prior
// scaled by the share of fields the narrative supplied. Call it after every
// counted field.
func (b *builder) confidence(field string, r Reading) Quantity {
	if r.Found {
		return b.statedConfidence(field, r)
	}
	if b.known == 0 {
		return defaulted(0, UnitPercent)
	}
	return derived(DefaultConfidence*float64(b.known)/float64(b.total), UnitPercent)
}

func (b *builder) validity() Validity {
	status := RecordPartial
	switch {
	case b.known == 0:
		status = RecordEmpty
	case b.known == b.total:
		status = RecordComplete
	}
	return Validity{Status: status, Valid: !b.issues.Has(IssueInvariantViolation), Issues: b.issues}
}
