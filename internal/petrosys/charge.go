package petrosys

import (
	"math"
	"sort"
)

// TimingPosition places trap formation relative to peak generation.
type TimingPosition string

const (
	TrapPredatesGeneration  TimingPosition = "TRAP_PREDATES_GENERATION"
	TrapCoeval              TimingPosition = "COEVAL"
	TrapPostdatesGeneration TimingPosition = "TRAP_POSTDATES_GENERATION"
	TimingUndetermined      TimingPosition = "UNDETERMINED"
)

// coevalWindowMa is the age difference below which trap and peak generation are coeval.
const coevalWindowMa = 1.0

type TimelineEvent struct {
	Event string   `json:"event"`
	Age   Quantity `json:"age"`
}

// CriticalMoment is the age of generation-migration-accumulation together with
// the discrete ordering of trap formation against peak generation.
type CriticalMoment struct {
	Age      Quantity       `json:"age"`
	Position TimingPosition `json:"position"`
	Basis    string         `json:"basis"`
}

// ChargeHistory holds ages in Ma before present, so older events have larger ages.
type ChargeHistory struct {
	GenerationOnset Quantity        `json:"generation_onset"`
	PeakGeneration  Quantity        `json:"peak_generation"`
	MigrationOnset  Quantity        `json:"migration_onset"`
	Accumulation    Quantity        `json:"accumulation"`
	TrapFormation   Quantity        `json:"trap_formation"`
	MaxTemperature  Quantity        `json:"max_temperature"`
	Timeline        []TimelineEvent `json:"timeline"`
	CriticalMoment  CriticalMoment  `json:"critical_moment"`
	Confidence      Quantity        `json:"confidence"`
	Validity
}

// NewChargeHistory builds the timing record and resolves the critical moment.
func NewChargeHistory(r Readings) ChargeHistory {
	b := newBuilder("charge")
	ch := ChargeHistory{
		GenerationOnset: b.nonNegative("generation_onset", r.value("generation_onset"), UnitMegaAnnum),
		PeakGeneration:  b.nonNegative("peak_generation", r.value("peak_generation"), UnitMegaAnnum),
		MigrationOnset:  b.nonNegative("migration_onset", r.value("migration_onset"), UnitMegaAnnum),
		Accumulation:    b.nonNegative("accumulation", r.value("accumulation"), UnitMegaAnnum),
		TrapFormation:   b.nonNegative("trap_formation", r.value("trap_formation"), UnitMegaAnnum),
		MaxTemperature:  b.signed("max_temperature", r.value("max_temperature"), UnitCelsius),
	}

	if ch.GenerationOnset.Known() && ch.PeakGeneration.Known() && ch.GenerationOnset.Value < ch.PeakGeneration.Value {
		b.flag(IssueDataQuality, "generation_onset", "onset at %g Ma is younger than peak generation at %g Ma", ch.GenerationOnset.Value, ch.PeakGeneration.Value)
	}
	if ch.GenerationOnset.Known() && ch.MigrationOnset.Known() && ch.MigrationOnset.Value > ch.GenerationOnset.Value {
		b.flag(IssueDataQuality, "migration_onset", "migration at %g Ma predates generation onset at %g Ma", ch.MigrationOnset.Value, ch.GenerationOnset.Value)
	}

	ch.Timeline = timeline(ch)
	ch.CriticalMoment = b.criticalMoment(ch, r)
	ch.Confidence = b.confidence("confidence", r.value("confidence"))
	ch.Validity = b.validity()
	return ch
}

func timeline(ch ChargeHistory) []TimelineEvent {
	events := []TimelineEvent{
		{Event: "generation_onset", Age: ch.GenerationOnset},
		{Event: "peak_generation", Age: ch.PeakGeneration},
		{Event: "migration_onset", Age: ch.MigrationOnset},
		{Event: "trap_formation", Age: ch.TrapFormation},
		{Event: "accumulation", Age: ch.Accumulation},
	}
	out := events[:0]
	for _, e := range events {
		if e.Age.Known() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Age.Value > out[j].Age.Value })
	return out
}

func (b *builder) criticalMoment(ch ChargeHistory, r Readings) CriticalMoment {
	cm := CriticalMoment{Position: TimingUndetermined, Basis: "none"}

	stated := r.value("critical_moment")
	switch {
	case stated.Found:
		cm.Age = b.nonNegative("critical_moment", stated, UnitMegaAnnum)
	case ch.PeakGeneration.Known():
		cm.Age = b.count(derived(ch.PeakGeneration.Value, UnitMegaAnnum))
	case ch.Accumulation.Known():
		cm.Age = b.count(derived(ch.Accumulation.Value, UnitMegaAnnum))
	default:
		cm.Age = b.nonNegative("critical_moment", stated, UnitMegaAnnum)
	}

	if ch.TrapFormation.Known() && ch.PeakGeneration.Known() {
		diff := ch.TrapFormation.Value - ch.PeakGeneration.Value
		switch {
		case math.Abs(diff) <= coevalWindowMa:
			cm.Position = TrapCoeval
		case diff > 0:
			cm.Position = TrapPredatesGeneration
		default:
			cm.Position = TrapPostdatesGeneration
		}
		cm.Basis = "ages"
		if cue, ok := r.category(CategoryTimingCue); ok && positionOf(cue) != cm.Position {
			b.flag(IssueDataQuality, "critical_moment", "narrative says trap %s generation but ages give %s", cue, cm.Position)
		}
		return cm
	}
	if cue, ok := r.category(CategoryTimingCue); ok {
		cm.Position, cm.Basis = positionOf(cue), "narrative"
		return cm
	}
	b.flag(IssueExtractionGap, "critical_moment", "trap formation and peak generation cannot be ordered")
	return cm
}

func positionOf(cue string) TimingPosition {
	switch cue {
	case "predates":
		return TrapPredatesGeneration
	case "postdates":
		return TrapPostdatesGeneration
	case "coeval":
		return TrapCoeval
	}
	return TimingUndetermined
}
