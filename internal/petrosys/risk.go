package petrosys

import (
	"fmt"
	"math"
)

// statedChanceTolerance is the largest gap, in percentage points, tolerated
// between a narrative's stated combined chance and the derived one.
const statedChanceTolerance = 15.0

// GeologicalRisk scores are 0-100 where 100 is the highest risk.
type GeologicalRisk struct {
	Source    Quantity `json:"source"`
	Migration Quantity `json:"migration"`
	Reservoir Quantity `json:"reservoir"`
	Seal      Quantity `json:"seal"`
	Trap      Quantity `json:"trap"`
	Overall   Quantity `json:"overall"`
}

type EconomicRisk struct {
	Market         Quantity `json:"market"`
	Cost           Quantity `json:"cost"`
	Fiscal         Quantity `json:"fiscal"`
	Infrastructure Quantity `json:"infrastructure"`
	Overall        Quantity `json:"overall"`
}

type TechnicalRisk struct {
	Drilling   Quantity `json:"drilling"`
	Completion Quantity `json:"completion"`
	Production Quantity `json:"production"`
	Facilities Quantity `json:"facilities"`
	Overall    Quantity `json:"overall"`
}

// OverallChance is always derived from the risk scores. Stated values are kept
// only for comparison and never feed the combined chance.
type OverallChance struct {
	Geological       Quantity     `json:"geological"`
	Commercial       Quantity     `json:"commercial"`
	Combined         Quantity     `json:"combined"`
	Method           ChanceMethod `json:"method"`
	StatedGeological Quantity     `json:"stated_geological"`
	StatedCommercial Quantity     `json:"stated_commercial"`
	StatedCombined   Quantity     `json:"stated_combined"`
}

type RiskAssessment struct {
	Geological    GeologicalRisk `json:"geological"`
	Economic      EconomicRisk   `json:"economic"`
	Technical     TechnicalRisk  `json:"technical"`
	OverallChance OverallChance  `json:"overall_chance"`
	Validity
}

// NewRiskAssessment builds the risk scores. A geological sub-score with no
// claim is derived from the matching element of ps when it is known, else set
// to NeutralRisk and flagged. ps may be nil.
func NewRiskAssessment(r Readings, ps *PetroleumSystem, policy ChancePolicy) RiskAssessment {
	b := newBuilder("risk")
	var ra RiskAssessment

	var src, mig, res, seal, trap Quantity
	if ps != nil {
		src, mig, res, seal, trap = ps.Source.Quality, ps.Migration.Efficiency, ps.Reservoir.Quality, ps.Seal.Integrity, ps.Trap.Integrity
	}
	ra.Geological = GeologicalRisk{
		Source:    b.risk("geological.source", r.value("source_risk"), src),
		Migration: b.risk("geological.migration", r.value("migration_risk"), mig),
		Reservoir: b.risk("geological.reservoir", r.value("reservoir_risk"), res),
		Seal:      b.risk("geological.seal", r.value("seal_risk"), seal),
		Trap:      b.risk("geological.trap", r.value("trap_risk"), trap),
	}
	g := ra.Geological
	ra.Geological.Overall = mean(g.Source, g.Migration, g.Reservoir, g.Seal, g.Trap)

	ra.Economic = EconomicRisk{
		Market:         b.risk("economic.market", r.value("market_risk"), Quantity{}),
		Cost:           b.risk("economic.cost", r.value("cost_risk"), Quantity{}),
		Fiscal:         b.risk("economic.fiscal", r.value("fiscal_risk"), Quantity{}),
		Infrastructure: b.risk("economic.infrastructure", r.value("infrastructure_risk"), Quantity{}),
	}
	e := ra.Economic
	ra.Economic.Overall = mean(e.Market, e.Cost, e.Fiscal, e.Infrastructure)

	ra.Technical = TechnicalRisk{
		Drilling:   b.risk("technical.drilling", r.value("drilling_risk"), Quantity{}),
		Completion: b.risk("technical.completion", r.value("completion_risk"), Quantity{}),
		Production: b.risk("technical.production", r.value("production_risk"), Quantity{}),
		Facilities: b.risk("technical.facilities", r.value("facilities_risk"), Quantity{}),
	}
	t := ra.Technical
	ra.Technical.Overall = mean(t.Drilling, t.Completion, t.Production, t.Facilities)

	pg := GeologicalChance(ra.Geological)
	pc := CommercialChance(ra.Economic, ra.Technical)
	ra.OverallChance = OverallChance{
		Geological:       derived(pg, UnitPercent),
		Commercial:       derived(pc, UnitPercent),
		Combined:         derived(policy.Combine(pg, pc), UnitPercent),
		Method:           policy.method(),
		StatedGeological: b.stated("stated_geological_chance", r.value("stated_geological_chance")),
		StatedCommercial: b.stated("stated_commercial_chance", r.value("stated_commercial_chance")),
		StatedCombined:   b.stated("stated_combined_chance", r.value("stated_combined_chance")),
	}
	oc := ra.OverallChance
	if oc.StatedCombined.Known() && math.Abs(oc.StatedCombined.Value-oc.Combined.Value) > statedChanceTolerance {
		b.flag(IssueDataQuality, "overall_chance.combined", "narrative states %g%% but risk scores give %g%%", oc.StatedCombined.Value, oc.Combined.Value)
	}

	ra.Validity = b.validity()
	return ra
}

// risk reads a sub-score, falls back to 100 minus an element quality, and
// finally to NeutralRisk.
func (b *builder) risk(field string, r Reading, element Quantity) Quantity {
	if r.Found {
		return b.percent(field, r)
	}
	if element.Known() {
		return b.count(derived(100-element.Value, UnitPercent))
	}
	b.flag(IssueExtractionGap, field, "no risk score found; neutral %g used", NeutralRisk)
	b.mark(false)
	return defaulted(NeutralRisk, UnitPercent)
}

func (b *builder) stated(field string, r Reading) Quantity {
	if !r.Found {
		return defaulted(0, UnitPercent)
	}
	q := Quantity{Value: round(r.Value), Unit: UnitPercent, Status: StatusExtracted, Quote: r.Quote}
	return b.clamp(field, q, 0, 100)
}

func mean(qs ...Quantity) Quantity {
	sum := 0.0
	for _, q := range qs {
		sum += q.Value
	}
	return derived(sum/float64(len(qs)), UnitPercent)
}

// GeologicalChance is the product over the five elements of (1 - risk/100), in percent.
func GeologicalChance(g GeologicalRisk) float64 {
	p := 1.0
	for _, q := range []Quantity{g.Source, g.Migration, g.Reservoir, g.Seal, g.Trap} {
		p *= 1 - q.Value/100
	}
	return round(p * 100)
}

// CommercialChance combines the mean economic and technical risks, in percent.
func CommercialChance(e EconomicRisk, t TechnicalRisk) float64 {
	return round((1 - e.Overall.Value/100) * (1 - t.Overall.Value/100) * 100)
}

// ChanceMethod selects how geological and commercial chance are combined.
type ChanceMethod string

const (
	ChanceWeightedGeometric ChanceMethod = "weighted_geometric"
	ChanceWeightedMean      ChanceMethod = "weighted_mean"
)

// ChancePolicy is the configurable combination of geological and commercial
// chance, plus the thresholds that turn a combined chance into a decision.
type ChancePolicy struct {
	Method           ChanceMethod `json:"method" mapstructure:"method"`
	GeologicalWeight float64      `json:"geological_weight" mapstructure:"geological_weight"`
	CommercialWeight float64      `json:"commercial_weight" mapstructure:"commercial_weight"`
	GoThreshold      float64      `json:"go_threshold" mapstructure:"go_threshold"`
	DeferThreshold   float64      `json:"defer_threshold" mapstructure:"defer_threshold"`
}

// DefaultChancePolicy is the plain Pg x Pc product with GO at 20% and DEFER at 10%.
func DefaultChancePolicy() ChancePolicy {
	return ChancePolicy{
		Method:           ChanceWeightedGeometric,
		GeologicalWeight: 1,
		CommercialWeight: 1,
		GoThreshold:      20,
		DeferThreshold:   10,
	}
}

func (p ChancePolicy) Validate() error {
	switch p.method() {
	case ChanceWeightedGeometric, ChanceWeightedMean:
	default:
		return fmt.Errorf("unknown chance method %q", p.Method)
	}
	if p.GeologicalWeight < 0 || p.CommercialWeight < 0 {
		return fmt.Errorf("chance weights must be non-negative, got %g and %g", p.GeologicalWeight, p.CommercialWeight)
	}
	if p.GeologicalWeight+p.CommercialWeight == 0 {
		return fmt.Errorf("chance weights must not both be zero")
	}
	if p.DeferThreshold < 0 || p.GoThreshold > 100 || p.DeferThreshold > p.GoThreshold {
		return fmt.Errorf("chance thresholds must satisfy 0 <= defer (%g) <= go (%g) <= 100", p.DeferThreshold, p.GoThreshold)
	}
	return nil
}

func (p ChancePolicy) method() ChanceMethod {
	if p.Method == "" {
		return ChanceWeightedGeometric
	}
	return p.Method
}

// Combine returns the combined chance in percent for geological chance pg and
// commercial chance pc, both in percent.
func (p ChancePolicy) Combine(pg, pc float64) float64 {
	wg, wc := p.GeologicalWeight, p.CommercialWeight
	if wg+wc == 0 {
		wg, wc = 1, 1
	}
	switch p.method() {
	case ChanceWeightedMean:
		return round((wg*pg + wc*pc) / (wg + wc))
	default:
		return round(100 * math.Pow(pg/100, wg) * math.Pow(pc/100, wc))
	}
}

// Decision is the go/no-go tier for a prospect.
type Decision string

const (
	DecisionGo    Decision = "GO"
	DecisionDefer Decision = "DEFER"
	DecisionNoGo  Decision = "NO_GO"
)

// Decide maps a combined chance to a tier.
func (p ChancePolicy) Decide(combined float64) Decision {
	switch {
	case combined >= p.GoThreshold:
		return DecisionGo
	case combined >= p.DeferThreshold:
		return DecisionDefer
	}
	return DecisionNoGo
}

// ElementChances are per-element chances of adequacy, 100 minus risk.
type ElementChances struct {
	Source    float64 `json:"source"`
	Migration float64 `json:"migration"`
	Reservoir float64 `json:"reservoir"`
	Seal      float64 `json:"seal"`
	Trap      float64 `json:"trap"`
}

// ChanceOfSuccess is the final calculation: chances, risked volumes and a tier.
type ChanceOfSuccess struct {
	Elements   ElementChances `json:"elements"`
	Geological float64        `json:"geological"`
	Commercial float64        `json:"commercial"`
	Combined   float64        `json:"combined"`
	Method     ChanceMethod   `json:"method"`
	RiskedOil  Quantity       `json:"risked_oil"`
	RiskedGas  Quantity       `json:"risked_gas"`
	Decision   Decision       `json:"decision"`
	Issues     Issues         `json:"issues,omitempty"`
}

// ComputeChance recomputes the chance of success from risk and, when reserves
// are available, risks the recoverable volumes. It is a pure function of its inputs.
func ComputeChance(risk RiskAssessment, reserves *ReserveEstimation, policy ChancePolicy) ChanceOfSuccess {
	b := newBuilder("chance")
	g := risk.Geological
	pg := GeologicalChance(g)
	pc := CommercialChance(risk.Economic, risk.Technical)
	cs := ChanceOfSuccess{
		Elements: ElementChances{
			Source:    round(100 - g.Source.Value),
			Migration: round(100 - g.Migration.Value),
			Reservoir: round(100 - g.Reservoir.Value),
			Seal:      round(100 - g.Seal.Value),
			Trap:      round(100 - g.Trap.Value),
		},
		Geological: pg,
		Commercial: pc,
		Combined:   policy.Combine(pg, pc),
		Method:     policy.method(),
		RiskedOil:  defaulted(0, UnitMMbbl),
		RiskedGas:  defaulted(0, UnitBcf),
	}
	cs.Decision = policy.Decide(cs.Combined)
	if reserves != nil {
		if q := reserves.RecoverableOil.Best; q.Known() {
			cs.RiskedOil = derived(q.Value*cs.Combined/100, UnitMMbbl)
		}
		if q := reserves.RecoverableGas.Best; q.Known() {
			cs.RiskedGas = derived(q.Value*cs.Combined/100, UnitBcf)
		}
	}
	if !cs.RiskedOil.Known() && !cs.RiskedGas.Known() {
		b.flag(IssueExtractionGap, "risked_volume", "no recoverable volume to risk")
	}
	cs.Issues = b.issues
	return cs
}
