// Package petrosys holds the typed petroleum-system records and the
// construct-and-validate entry points that turn extracted readings into them.
//
// Records are built once and never mutated. Absent or out-of-domain values are
// never silently zeroed: every Quantity carries a FieldStatus and every record
// carries the Issues raised while building it.
package petrosys

import (
	"math"
	"strings"
)

// Unit is the explicit unit attached to every numeric field.
type Unit string

const (
	UnitPercent     Unit = "%"
	UnitMeters      Unit = "m"
	UnitKilometers  Unit = "km"
	UnitSquareKm    Unit = "km2"
	UnitCubicKm     Unit = "km3"
	UnitMillidarcy  Unit = "mD"
	UnitVitrinite   Unit = "%Ro"
	UnitMegaAnnum   Unit = "Ma"
	UnitCelsius     Unit = "degC"
	UnitMegapascal  Unit = "MPa"
	UnitMMbbl       Unit = "MMbbl"
	UnitBcf         Unit = "Bcf"
	UnitMilligal    Unit = "mGal"
	UnitKgPerCubicM Unit = "kg/m3"
	UnitSI          Unit = "SI"
	UnitRatio       Unit = "ratio"
)

// FieldStatus records where a field's value came from.
type FieldStatus string

const (
	StatusExtracted FieldStatus = "EXTRACTED"
	StatusDerived   FieldStatus = "DERIVED"
	StatusClamped   FieldStatus = "CLAMPED"
	StatusDefault   FieldStatus = "DEFAULT"
	StatusInvalid   FieldStatus = "INVALID"
)

// Quantity is a numeric field with its unit, provenance and the text it was read from.
type Quantity struct {
	Value  float64     `json:"value"`
	Unit   Unit        `json:"unit"`
	Status FieldStatus `json:"status"`
	Quote  string      `json:"quote,omitempty"`
}

// Known reports whether the value is backed by the narrative, directly or by derivation.
func (q Quantity) Known() bool {
	switch q.Status {
	case StatusExtracted, StatusDerived, StatusClamped:
		return true
	}
	return false
}

func derived(v float64, unit Unit) Quantity {
	return Quantity{Value: round(v), Unit: unit, Status: StatusDerived}
}

func defaulted(v float64, unit Unit) Quantity {
	return Quantity{Value: v, Unit: unit, Status: StatusDefault}
}

// Reading is one value as the extraction layer saw it: the number, whether it
// matched at all, the canonical unit token written next to it and the quote.
type Reading struct {
	Value float64
	Found bool
	Unit  string
	Quote string
}

// RangeReading is a low/best/high triple in written order.
type RangeReading struct {
	Low, Best, High float64
	Found           bool
	Unit            string
	Quote           string
}

// EstimateReading is a value with its stated uncertainty and confidence.
type EstimateReading struct {
	Value, Uncertainty, Confidence Reading
}

// DistributionReading is a mean with its stated spread and confidence.
type DistributionReading struct {
	Mean, Std, Confidence Reading
}

// LabelReading is a named percentage such as an analog field and its similarity.
type LabelReading struct {
	Name  string
	Value float64
}

// Readings is everything extracted for one record, keyed by field name.
// Missing keys read as unfound.
type Readings struct {
	Values        map[string]Reading
	Ranges        map[string]RangeReading
	Estimates     map[string]EstimateReading
	Distributions map[string]DistributionReading
	Categories    map[string][]string
	Labels        []LabelReading
}

func (r Readings) value(field string) Reading { return r.Values[field] }

func (r Readings) rangeOf(field string) RangeReading { return r.Ranges[field] }

func (r Readings) estimate(field string) EstimateReading { return r.Estimates[field] }

func (r Readings) distribution(field string) DistributionReading { return r.Distributions[field] }

func (r Readings) category(name string) (string, bool) {
	if vs := r.Categories[name]; len(vs) > 0 {
		return vs[0], true
	}
	return "", false
}

// conversions maps a written unit token to a factor into a canonical unit.
var conversions = map[Unit]map[string]float64{
	UnitMeters:      {"m": 1, "ft": 0.3048, "km": 1000},
	UnitKilometers:  {"km": 1, "m": 0.001},
	UnitSquareKm:    {"km2": 1},
	UnitCubicKm:     {"km3": 1},
	UnitMillidarcy:  {"mD": 1},
	UnitMegaAnnum:   {"Ma": 1},
	UnitCelsius:     {"degC": 1},
	UnitMegapascal:  {"MPa": 1, "psi": 0.00689476},
	UnitMMbbl:       {"mmbbl": 1, "bbbl": 1000},
	UnitBcf:         {"bcf": 1, "tcf": 1000, "mmscf": 0.001},
	UnitMilligal:    {"mgal": 1},
	UnitKgPerCubicM: {"kg/m3": 1, "g/cc": 1000},
	UnitSI:          {"SI": 1},
	UnitPercent:     {"%": 1},
}

// convert returns v in the canonical unit. ok is false when the written unit
// is present but cannot be expressed in the canonical one.
func convert(v float64, written string, canonical Unit) (float64, bool) {
	if written == "" || strings.EqualFold(written, string(canonical)) {
		return v, true
	}
	factor, ok := conversions[canonical][written]
	if !ok {
		return v, false
	}
	return v * factor, true
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
