package basinanalysis

import (
	"github.com/joelkehle/basin-analysis/internal/extract"
	"github.com/joelkehle/basin-analysis/internal/petrosys"
)

// readSection applies one section of the rule table to text and converts the
// matches into readings. This is the only place that knows the records were
// parsed from prose.
func readSection(text string, rules extract.RuleSet, section string, vocabularies ...string) petrosys.Readings {
	ex := extract.Apply(text, rules.Section(section))
	r := petrosys.Readings{
		Values:        make(map[string]petrosys.Reading, len(ex.Values)+len(ex.Scoped)),
		Ranges:        make(map[string]petrosys.RangeReading, len(ex.Ranges)),
		Estimates:     make(map[string]petrosys.EstimateReading, len(ex.Estimates)),
		Distributions: make(map[string]petrosys.DistributionReading, len(ex.Distributions)),
		Categories:    make(map[string][]string, len(vocabularies)),
	}
	for field, m := range ex.Values {
		r.Values[field] = reading(m)
	}
	for field, m := range ex.Scoped {
		r.Values[field] = reading(m)
	}
	for field, m := range ex.Ranges {
		r.Ranges[field] = petrosys.RangeReading{Low: m.Low, Best: m.Best, High: m.High, Found: m.Found, Unit: m.Unit, Quote: m.Quote}
	}
	for field, m := range ex.Estimates {
		r.Estimates[field] = petrosys.EstimateReading{Value: reading(m.Value), Uncertainty: reading(m.Uncertainty), Confidence: reading(m.Confidence)}
	}
	for field, m := range ex.Distributions {
		r.Distributions[field] = petrosys.DistributionReading{Mean: reading(m.Mean), Std: reading(m.Std), Confidence: reading(m.Confidence)}
	}
	for _, name := range vocabularies {
		if hits := extract.AllCategories(text, rules.Vocabulary(name)); len(hits) > 0 {
			r.Categories[name] = hits
		}
	}
	return r
}

func reading(m extract.Match) petrosys.Reading {
	return petrosys.Reading{Value: m.Value, Found: m.Found, Unit: m.Unit, Quote: m.Quote}
}

func labels(text string) []petrosys.LabelReading {
	var out []petrosys.LabelReading
	for _, l := range extract.Labelled(text) {
		out = append(out, petrosys.LabelReading{Name: l.Label, Value: l.Value})
	}
	return out
}

// ParseSystem builds a PetroleumSystem from narrative text. Each element reads
// the whole text through its own keyword set.
func ParseSystem(text string, rules extract.RuleSet) petrosys.PetroleumSystem {
	return petrosys.NewPetroleumSystem(petrosys.SystemReadings{
		Source:    readSection(text, rules, extract.SectionSource),
		Migration: readSection(text, rules, extract.SectionMigration, extract.VocabMigrationPathway),
		Reservoir: readSection(text, rules, extract.SectionReservoir),
		Seal:      readSection(text, rules, extract.SectionSeal),
		Trap:      readSection(text, rules, extract.SectionTrap, extract.VocabTrapType, extract.VocabTrapMention),
	})
}

func ParseChargeHistory(text string, rules extract.RuleSet) petrosys.ChargeHistory {
	return petrosys.NewChargeHistory(readSection(text, rules, extract.SectionCharge, extract.VocabTimingCue))
}

func ParseReserves(text string, rules extract.RuleSet) petrosys.ReserveEstimation {
	return petrosys.NewReserveEstimation(readSection(text, rules, extract.SectionReserves))
}

func ParseRecovery(text string, method petrosys.RecoveryMethod, rules extract.RuleSet) petrosys.RecoveryPrediction {
	return petrosys.NewRecoveryPrediction(method, readSection(text, rules, extract.SectionRecovery))
}

// ParseRisk builds the risk scores. ps may be nil; when present it supplies
// fallbacks for geological sub-scores the text does not state.
func ParseRisk(text string, ps *petrosys.PetroleumSystem, policy petrosys.ChancePolicy, rules extract.RuleSet) petrosys.RiskAssessment {
	return petrosys.NewRiskAssessment(readSection(text, rules, extract.SectionRisk), ps, policy)
}

func ParseGravityMagnetic(text string, rules extract.RuleSet) petrosys.GravityMagneticInversion {
	return petrosys.NewGravityMagneticInversion(readSection(text, rules, extract.SectionGravityMagnetic))
}

func ParseAnalogy(text string, rules extract.RuleSet) petrosys.GeologicalAnalogy {
	r := readSection(text, rules, extract.SectionAnalogy)
	r.Labels = labels(text)
	return petrosys.NewGeologicalAnalogy(r)
}

func ParseBayesian(text string, rules extract.RuleSet) petrosys.BayesianUncertainty {
	return petrosys.NewBayesianUncertainty(readSection(text, rules, extract.SectionBayesian))
}

func ParseCorrelation(text string, rules extract.RuleSet) petrosys.SurfaceSubsurfaceCorrelation {
	return petrosys.NewSurfaceSubsurfaceCorrelation(readSection(text, rules, extract.SectionCorrelation, extract.VocabSurfaceIndicators))
}
