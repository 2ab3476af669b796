package petrosys

import (
	"fmt"
	"strings"
)

// RecoveryMethod is the development scheme a recovery prediction assumes.
type RecoveryMethod string

const (
	MethodPrimary      RecoveryMethod = "primary"
	MethodWaterflood   RecoveryMethod = "waterflood"
	MethodGasInjection RecoveryMethod = "gas_injection"
	MethodThermal      RecoveryMethod = "thermal"
	MethodChemical     RecoveryMethod = "chemical"
	MethodCO2EOR       RecoveryMethod = "co2_eor"
)

// MethodPriors are typical ultimate recovery ranges for a method, used to flag
// implausible predictions.
type MethodPriors struct {
	Method             RecoveryMethod
	TypicalUltimatePct [2]float64
	Description        string
}

var DefaultMethodPriors = map[RecoveryMethod]MethodPriors{
	MethodPrimary: {
		Method:             MethodPrimary,
		TypicalUltimatePct: [2]float64{5, 35},
		Description:        "natural depletion",
	},
	MethodWaterflood: {
		Method:             MethodWaterflood,
		TypicalUltimatePct: [2]float64{20, 55},
		Description:        "secondary water injection",
	},
	MethodGasInjection: {
		Method:             MethodGasInjection,
		TypicalUltimatePct: [2]float64{20, 60},
		Description:        "immiscible or miscible gas injection",
	},
	MethodThermal: {
		Method:             MethodThermal,
		TypicalUltimatePct: [2]float64{15, 70},
		Description:        "steam flood or steam-assisted gravity drainage",
	},
	MethodChemical: {
		Method:             MethodChemical,
		TypicalUltimatePct: [2]float64{30, 65},
		Description:        "polymer, surfactant or alkaline flooding",
	},
	MethodCO2EOR: {
		Method:             MethodCO2EOR,
		TypicalUltimatePct: [2]float64{30, 70},
		Description:        "miscible CO2 flooding",
	},
}

// ParseRecoveryMethod accepts the method names case-insensitively, with spaces or dashes.
func ParseRecoveryMethod(s string) (RecoveryMethod, error) {
	norm := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(s)))
	if norm == "" {
		return MethodPrimary, nil
	}
	if _, ok := DefaultMethodPriors[RecoveryMethod(norm)]; ok {
		return RecoveryMethod(norm), nil
	}
	return "", fmt.Errorf("unknown recovery method %q", s)
}

type RecoveryPrediction struct {
	Method     RecoveryMethod `json:"method"`
	Primary    Quantity       `json:"primary"`
	Secondary  Quantity       `json:"secondary"`
	Tertiary   Quantity       `json:"tertiary"`
	Ultimate   Quantity       `json:"ultimate"`
	Confidence Quantity       `json:"confidence"`
	Validity
}

// NewRecoveryPrediction builds the recovery percentages. Ultimate >= tertiary >=
// secondary >= primary is expected; a break in that order is reported as a data
// quality issue and the values are kept.
func NewRecoveryPrediction(method RecoveryMethod, r Readings) RecoveryPrediction {
	b := newBuilder("recovery")
	rp := RecoveryPrediction{
		Method:    method,
		Primary:   b.percent("primary", r.value("primary")),
		Secondary: b.percent("secondary", r.value("secondary")),
		Tertiary:  b.percent("tertiary", r.value("tertiary")),
	}
	if u := r.value("ultimate"); u.Found {
		rp.Ultimate = b.percent("ultimate", u)
	} else if top, ok := highestKnown(rp.Primary, rp.Secondary, rp.Tertiary); ok {
		rp.Ultimate = b.count(derived(top, UnitPercent))
	} else {
		rp.Ultimate = b.percent("ultimate", u)
	}

	ordered := []struct {
		name string
		q    Quantity
	}{{"primary", rp.Primary}, {"secondary", rp.Secondary}, {"tertiary", rp.Tertiary}, {"ultimate", rp.Ultimate}}
	prev := -1
	for i, cur := range ordered {
		if !cur.q.Known() {
			continue
		}
		if prev >= 0 && cur.q.Value < ordered[prev].q.Value {
			b.flag(IssueDataQuality, cur.name, "%s %g%% is below %s %g%%", cur.name, cur.q.Value, ordered[prev].name, ordered[prev].q.Value)
		}
		prev = i
	}

	if p, ok := DefaultMethodPriors[method]; ok && rp.Ultimate.Known() {
		lo, hi := p.TypicalUltimatePct[0], p.TypicalUltimatePct[1]
		if rp.Ultimate.Value < lo || rp.Ultimate.Value > hi {
			b.flag(IssueDataQuality, "ultimate", "ultimate %g%% outside typical %g-%g%% for %s", rp.Ultimate.Value, lo, hi, method)
		}
	}

	rp.Confidence = b.confidence("confidence", r.value("confidence"))
	rp.Validity = b.validity()
	return rp
}

func highestKnown(qs ...Quantity) (float64, bool) {
	top, ok := 0.0, false
	for _, q := range qs {
		if q.Known() && (!ok || q.Value > top) {
			top, ok = q.Value, true
		}
	}
	return top, ok
}
