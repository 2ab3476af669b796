package petrosys

// TrapType is the closed set of trap geometries.
type TrapType string

const (
	TrapStructural    TrapType = "structural"
	TrapStratigraphic TrapType = "stratigraphic"
	TrapCombination   TrapType = "combination"
	TrapUnknown       TrapType = "unknown"
)

// Category keys read from Readings.Categories.
const (
	CategoryTrapType         = "trap_type"
	CategoryTrapMention      = "trap_mention"
	CategoryMigrationPathway = "migration_pathway"
	CategoryTimingCue        = "timing_cue"
	CategorySurfaceIndicator = "surface_indicator"
)

type Source struct {
	Quality          Quantity `json:"quality"`
	Maturity         Quantity `json:"maturity"`
	Volume           Quantity `json:"volume"`
	GenerationTiming Quantity `json:"generation_timing"`
	Confidence       Quantity `json:"confidence"`
	Validity
}

type Migration struct {
	Pathways   []string `json:"pathways,omitempty"`
	Efficiency Quantity `json:"efficiency"`
	Distance   Quantity `json:"distance"`
	Timing     Quantity `json:"timing"`
	Confidence Quantity `json:"confidence"`
	Validity
}

type Reservoir struct {
	Quality      Quantity `json:"quality"`
	Porosity     Quantity `json:"porosity"`
	Permeability Quantity `json:"permeability"`
	Thickness    Quantity `json:"thickness"`
	Confidence   Quantity `json:"confidence"`
	Validity
}

type Seal struct {
	Integrity  Quantity `json:"integrity"`
	Thickness  Quantity `json:"thickness"`
	Continuity Quantity `json:"continuity"`
	Confidence Quantity `json:"confidence"`
	Validity
}

type Trap struct {
	Type       TrapType    `json:"type"`
	TypeStatus FieldStatus `json:"type_status"`
	Closure    Quantity    `json:"closure"`
	Area       Quantity    `json:"area"`
	Integrity  Quantity    `json:"integrity"`
	Confidence Quantity    `json:"confidence"`
	Validity
}

// NewSource builds the source-rock element.
func NewSource(r Readings) Source {
	b := newBuilder("source")
	s := Source{
		Quality:          b.percent("quality", r.value("quality")),
		Maturity:         b.nonNegative("maturity", r.value("maturity"), UnitVitrinite),
		Volume:           b.nonNegative("volume", r.value("volume"), UnitCubicKm),
		GenerationTiming: b.nonNegative("generation_timing", r.value("generation_timing"), UnitMegaAnnum),
	}
	s.Confidence = b.confidence("confidence", r.value("confidence"))
	s.Validity = b.validity()
	return s
}

// NewMigration builds the migration element. Pathways come from the
// migration_pathway category and count as one field.
func NewMigration(r Readings) Migration {
	b := newBuilder("migration")
	m := Migration{
		Pathways:   append([]string(nil), r.Categories[CategoryMigrationPathway]...),
		Efficiency: b.percent("efficiency", r.value("efficiency")),
		Distance:   b.nonNegative("distance", r.value("distance"), UnitKilometers),
		Timing:     b.nonNegative("timing", r.value("timing"), UnitMegaAnnum),
	}
	if len(m.Pathways) == 0 {
		b.flag(IssueExtractionGap, "pathways", "no migration pathway named")
	}
	b.mark(len(m.Pathways) > 0)
	m.Confidence = b.confidence("confidence", r.value("confidence"))
	m.Validity = b.validity()
	return m
}

// NewReservoir builds the reservoir element.
func NewReservoir(r Readings) Reservoir {
	b := newBuilder("reservoir")
	res := Reservoir{
		Quality:      b.percent("quality", r.value("quality")),
		Porosity:     b.percent("porosity", r.value("porosity")),
		Permeability: b.nonNegative("permeability", r.value("permeability"), UnitMillidarcy),
		Thickness:    b.nonNegative("thickness", r.value("thickness"), UnitMeters),
	}
	if res.Porosity.Known() && res.Porosity.Value > 45 {
		b.flag(IssueDataQuality, "porosity", "porosity %g%% is implausibly high for a reservoir rock", res.Porosity.Value)
	}
	res.Confidence = b.confidence("confidence", r.value("confidence"))
	res.Validity = b.validity()
	return res
}

// NewSeal builds the seal element.
func NewSeal(r Readings) Seal {
	b := newBuilder("seal")
	s := Seal{
		Integrity:  b.percent("integrity", r.value("integrity")),
		Thickness:  b.nonNegative("thickness", r.value("thickness"), UnitMeters),
		Continuity: b.percent("continuity", r.value("continuity")),
	}
	s.Confidence = b.confidence("confidence", r.value("confidence"))
	s.Validity = b.validity()
	return s
}

// NewTrap builds the trap element. An unnamed geometry defaults to structural
// only when the narrative talks about a trap at all; otherwise it is unknown.
func NewTrap(r Readings) Trap {
	b := newBuilder("trap")
	t := Trap{Type: TrapUnknown, TypeStatus: StatusDefault}
	if v, ok := r.category(CategoryTrapType); ok {
		t.Type, t.TypeStatus = TrapType(v), StatusExtracted
		switch t.Type {
		case TrapStructural, TrapStratigraphic, TrapCombination:
		default:
			b.flag(IssueInvariantViolation, "type", "trap type %q is not structural, stratigraphic or combination", v)
			t.Type, t.TypeStatus = TrapUnknown, StatusInvalid
		}
	} else if _, mentioned := r.category(CategoryTrapMention); mentioned {
		t.Type = TrapStructural
		b.flag(IssueExtractionGap, "type", "trap discussed without a geometry; defaulted to structural")
	} else {
		b.flag(IssueExtractionGap, "type", "no trap geometry found")
	}
	b.mark(t.TypeStatus == StatusExtracted)
	t.Closure = b.nonNegative("closure", r.value("closure"), UnitMeters)
	t.Area = b.nonNegative("area", r.value("area"), UnitSquareKm)
	t.Integrity = b.percent("integrity", r.value("integrity"))
	t.Confidence = b.confidence("confidence", r.value("confidence"))
	t.Validity = b.validity()
	return t
}

// PetroleumSystem is the output of system integration. Each element is built
// independently, so one empty element never blocks the others.
type PetroleumSystem struct {
	Source     Source       `json:"source"`
	Migration  Migration    `json:"migration"`
	Reservoir  Reservoir    `json:"reservoir"`
	Seal       Seal         `json:"seal"`
	Trap       Trap         `json:"trap"`
	Status     RecordStatus `json:"status"`
	Confidence float64      `json:"confidence"`
}

// SystemReadings groups the per-element readings.
type SystemReadings struct {
	Source, Migration, Reservoir, Seal, Trap Readings
}

// NewPetroleumSystem builds all five elements.
func NewPetroleumSystem(r SystemReadings) PetroleumSystem {
	ps := PetroleumSystem{
		Source:    NewSource(r.Source),
		Migration: NewMigration(r.Migration),
		Reservoir: NewReservoir(r.Reservoir),
		Seal:      NewSeal(r.Seal),
		Trap:      NewTrap(r.Trap),
	}
	statuses := ps.elementStatuses()
	complete, empty := 0, 0
	for _, s := range statuses {
		switch s {
		case RecordComplete:
			complete++
		case RecordEmpty:
			empty++
		}
	}
	sum := 0.0
	for _, c := range ps.elementConfidences() {
		sum += c
	}
	switch {
	case complete == len(statuses):
		ps.Status = RecordComplete
	case empty == len(statuses):
		ps.Status = RecordEmpty
	default:
		ps.Status = RecordPartial
	}
	ps.Confidence = round(sum / float64(len(statuses)))
	return ps
}

// Empty reports whether no element holds anything from the narrative.
func (ps PetroleumSystem) Empty() bool { return ps.Status == RecordEmpty }

// Valid reports whether every element satisfies its invariants.
func (ps PetroleumSystem) Valid() bool {
	return ps.Source.Valid && ps.Migration.Valid && ps.Reservoir.Valid && ps.Seal.Valid && ps.Trap.Valid
}

// Issues returns the issues of all five elements.
func (ps PetroleumSystem) Issues() Issues {
	var out Issues
	for _, is := range []Issues{ps.Source.Issues, ps.Migration.Issues, ps.Reservoir.Issues, ps.Seal.Issues, ps.Trap.Issues} {
		out = append(out, is...)
	}
	return out
}

func (ps PetroleumSystem) elementStatuses() []RecordStatus {
	return []RecordStatus{ps.Source.Status, ps.Migration.Status, ps.Reservoir.Status, ps.Seal.Status, ps.Trap.Status}
}

func (ps PetroleumSystem) elementConfidences() []float64 {
	return []float64{ps.Source.Confidence.Value, ps.Migration.Confidence.Value, ps.Reservoir.Confidence.Value, ps.Seal.Confidence.Value, ps.Trap.Confidence.Value}
}
