package petrosys

import "math"

// posteriorTolerance is the largest gap, in percentage points, tolerated between
// a stated posterior and the one implied by the stated prior and likelihood ratio.
const posteriorTolerance = 10.0

// Estimate is a value with its uncertainty and confidence.
type Estimate struct {
	Value       Quantity `json:"value"`
	Uncertainty Quantity `json:"uncertainty"`
	Confidence  Quantity `json:"confidence"`
}

// Distribution is a mean with its standard deviation and confidence.
type Distribution struct {
	Mean       Quantity `json:"mean"`
	Std        Quantity `json:"std"`
	Confidence Quantity `json:"confidence"`
}

type valueFn func(field string, r Reading) Quantity

func (b *builder) estimate(field string, r EstimateReading, read valueFn) Estimate {
	e := Estimate{Value: read(field, r.Value)}
	e.Uncertainty = b.spread(field+".uncertainty", r.Uncertainty, e.Value)
	e.Confidence = b.statedConfidence(field+".confidence", r.Confidence)
	return e
}

func (b *builder) distributionOf(field string, r DistributionReading, read valueFn) Distribution {
	d := Distribution{Mean: read(field, r.Mean)}
	d.Std = b.spread(field+".std", r.Std, d.Mean)
	d.Confidence = b.statedConfidence(field+".confidence", r.Confidence)
	return d
}

// spread converts a stated uncertainty into the unit of its value. A percent
// spread on a non-percent value is relative and is turned into an absolute one.
func (b *builder) spread(field string, r Reading, of Quantity) Quantity {
	if !r.Found {
		return defaulted(0, of.Unit)
	}
	if r.Value < 0 {
		b.flag(IssueInvariantViolation, field, "negative spread %g discarded", r.Value)
		return Quantity{Unit: of.Unit, Status: StatusInvalid, Quote: r.Quote}
	}
	if r.Unit == string(UnitPercent) && of.Unit != UnitPercent {
		if !of.Known() {
			b.flag(IssueDataQuality, field, "relative spread %g%% without a value", r.Value)
			return defaulted(0, of.Unit)
		}
		return derived(math.Abs(of.Value)*r.Value/100, of.Unit)
	}
	v, ok := convert(r.Value, r.Unit, of.Unit)
	if !ok {
		b.flag(IssueDataQuality, field, "unit %q cannot be expressed in %s; value taken as %s", r.Unit, of.Unit, of.Unit)
	}
	return Quantity{Value: round(v), Unit: of.Unit, Status: StatusExtracted, Quote: r.Quote}
}

func (b *builder) meters(field string, r Reading) Quantity {
	return b.nonNegative(field, r, UnitMeters)
}

// probability reads a probability written either as a percentage or as a
// fraction in [0,1] and returns it in percent.
func (b *builder) probability(field string, r Reading) Quantity {
	if r.Found && r.Unit == "" && r.Value >= 0 && r.Value <= 1 {
		r.Value *= 100
		r.Unit = string(UnitPercent)
	}
	return b.percent(field, r)
}

type GravityMagneticInversion struct {
	BasementDepth     Estimate `json:"basement_depth"`
	SedimentThickness Estimate `json:"sediment_thickness"`
	DensityContrast   Estimate `json:"density_contrast"`
	Susceptibility    Estimate `json:"susceptibility"`
	Misfit            Quantity `json:"misfit"`
	Validity
}

// NewGravityMagneticInversion builds the joint inversion summary.
func NewGravityMagneticInversion(r Readings) GravityMagneticInversion {
	b := newBuilder("gravity_magnetic")
	density := func(field string, rd Reading) Quantity { return b.signed(field, rd, UnitKgPerCubicM) }
	suscept := func(field string, rd Reading) Quantity { return b.signed(field, rd, UnitSI) }
	gm := GravityMagneticInversion{
		BasementDepth:     b.estimate("basement_depth", r.estimate("basement_depth"), b.meters),
		SedimentThickness: b.estimate("sediment_thickness", r.estimate("sediment_thickness"), b.meters),
		DensityContrast:   b.estimate("density_contrast", r.estimate("density_contrast"), density),
		Susceptibility:    b.estimate("susceptibility", r.estimate("susceptibility"), suscept),
		Misfit:            b.nonNegative("misfit", r.value("misfit"), UnitMilligal),
	}
	depth, thick := gm.BasementDepth.Value, gm.SedimentThickness.Value
	if depth.Known() && thick.Known() && thick.Value > depth.Value {
		b.flag(IssueDataQuality, "sediment_thickness", "sediment thickness %g m exceeds basement depth %g m", thick.Value, depth.Value)
	}
	gm.Validity = b.validity()
	return gm
}

type Analog struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

type GeologicalAnalogy struct {
	Analogs        []Analog `json:"analogs,omitempty"`
	Similarity     Estimate `json:"similarity"`
	RecoveryFactor Estimate `json:"recovery_factor"`
	Porosity       Estimate `json:"porosity"`
	NetPay         Estimate `json:"net_pay"`
	Validity
}

// NewGeologicalAnalogy builds the analog comparison. Overall similarity, when
// not stated, is the mean similarity of the named analogs.
func NewGeologicalAnalogy(r Readings) GeologicalAnalogy {
	b := newBuilder("analogy")
	ga := GeologicalAnalogy{}
	sum := 0.0
	for _, l := range r.Labels {
		a := Analog{Name: l.Name, Similarity: round(l.Value)}
		if a.Similarity < 0 || a.Similarity > 100 {
			b.flag(IssueInvariantViolation, "analogs", "similarity %g for %s outside [0,100]; clamped", a.Similarity, a.Name)
			a.Similarity = math.Min(100, math.Max(0, a.Similarity))
		}
		sum += a.Similarity
		ga.Analogs = append(ga.Analogs, a)
	}
	if len(ga.Analogs) == 0 {
		b.flag(IssueExtractionGap, "analogs", "no named analog found")
	}
	b.mark(len(ga.Analogs) > 0)

	sim := r.estimate("similarity")
	if !sim.Value.Found && len(ga.Analogs) > 0 {
		ga.Similarity = Estimate{
			Value:       b.count(derived(sum/float64(len(ga.Analogs)), UnitPercent)),
			Uncertainty: defaulted(0, UnitPercent),
			Confidence:  defaulted(DefaultConfidence, UnitPercent),
		}
	} else {
		ga.Similarity = b.estimate("similarity", sim, b.percent)
	}
	ga.RecoveryFactor = b.estimate("recovery_factor", r.estimate("recovery_factor"), b.percent)
	ga.Porosity = b.estimate("porosity", r.estimate("porosity"), b.percent)
	ga.NetPay = b.estimate("net_pay", r.estimate("net_pay"), b.meters)
	ga.Validity = b.validity()
	return ga
}

type BayesianUncertainty struct {
	Prior           Quantity     `json:"prior"`
	LikelihoodRatio Quantity     `json:"likelihood_ratio"`
	Posterior       Distribution `json:"posterior"`
	Volume          Distribution `json:"volume"`
	VolumeRange     VolumeRange  `json:"volume_range"`
	Validity
}

// NewBayesianUncertainty builds the Bayesian update summary. A missing
// posterior is derived from the prior odds times the likelihood ratio.
func NewBayesianUncertainty(r Readings) BayesianUncertainty {
	b := newBuilder("bayesian")
	bu := BayesianUncertainty{
		Prior:           b.probability("prior", r.value("prior")),
		LikelihoodRatio: b.nonNegative("likelihood_ratio", r.value("likelihood_ratio"), UnitRatio),
	}
	canUpdate := bu.Prior.Known() && bu.LikelihoodRatio.Known()

	post := r.distribution("posterior")
	if !post.Mean.Found && canUpdate {
		bu.Posterior = Distribution{
			Mean:       b.count(derived(Posterior(bu.Prior.Value, bu.LikelihoodRatio.Value), UnitPercent)),
			Std:        defaulted(0, UnitPercent),
			Confidence: defaulted(DefaultConfidence, UnitPercent),
		}
	} else {
		bu.Posterior = b.distributionOf("posterior", asPercent(post), b.percent)
		if canUpdate && bu.Posterior.Mean.Known() {
			want := Posterior(bu.Prior.Value, bu.LikelihoodRatio.Value)
			if math.Abs(want-bu.Posterior.Mean.Value) > posteriorTolerance {
				b.flag(IssueDataQuality, "posterior", "stated posterior %g%% differs from %g%% implied by prior and likelihood ratio", bu.Posterior.Mean.Value, want)
			}
		}
	}

	mmbbl := func(field string, rd Reading) Quantity { return b.nonNegative(field, rd, UnitMMbbl) }
	bu.Volume = b.distributionOf("volume", r.distribution("volume"), mmbbl)
	bu.VolumeRange = b.volumeRange("volume_range", r.rangeOf("volume_range"), UnitMMbbl, Reading{})
	bu.Validity = b.validity()
	return bu
}

// asPercent rescales a posterior written as a fraction, spread included.
func asPercent(d DistributionReading) DistributionReading {
	if !d.Mean.Found || d.Mean.Unit != "" || d.Mean.Value < 0 || d.Mean.Value > 1 {
		return d
	}
	d.Mean.Value *= 100
	d.Mean.Unit = string(UnitPercent)
	if d.Std.Found && d.Std.Unit == "" {
		d.Std.Value *= 100
		d.Std.Unit = string(UnitPercent)
	}
	return d
}

// Posterior applies Bayes' rule in odds form to a prior in percent.
func Posterior(priorPct, likelihoodRatio float64) float64 {
	p := priorPct / 100
	if p >= 1 {
		return 100
	}
	odds := p / (1 - p) * likelihoodRatio
	return round(odds / (1 + odds) * 100)
}

type SurfaceSubsurfaceCorrelation struct {
	Coefficient         Estimate `json:"coefficient"`
	SpatialOffset       Estimate `json:"spatial_offset"`
	StructuralAlignment Estimate `json:"structural_alignment"`
	AnomalyProbability  Quantity `json:"anomaly_probability"`
	Indicators          []string `json:"indicators,omitempty"`
	Validity
}

// NewSurfaceSubsurfaceCorrelation builds the correlation summary. The
// coefficient lies in [-1,1]; a percentage is read as a coefficient times 100.
func NewSurfaceSubsurfaceCorrelation(r Readings) SurfaceSubsurfaceCorrelation {
	b := newBuilder("correlation")
	coefficient := func(field string, rd Reading) Quantity {
		if rd.Found && rd.Unit == string(UnitPercent) {
			rd.Value /= 100
			rd.Unit = ""
		}
		return b.bounded(field, rd, UnitRatio, -1, 1)
	}
	sc := SurfaceSubsurfaceCorrelation{
		Coefficient:         b.estimate("coefficient", r.estimate("coefficient"), coefficient),
		SpatialOffset:       b.estimate("spatial_offset", r.estimate("spatial_offset"), b.meters),
		StructuralAlignment: b.estimate("structural_alignment", r.estimate("structural_alignment"), b.percent),
		Indicators:          append([]string(nil), r.Categories[CategorySurfaceIndicator]...),
	}
	if p := r.value("anomaly_probability"); p.Found {
		sc.AnomalyProbability = b.percent("anomaly_probability", p)
	} else {
		sc.AnomalyProbability = defaulted(0, UnitPercent)
	}
	if len(sc.Indicators) == 0 {
		b.flag(IssueExtractionGap, "indicators", "no surface indicator named")
	}
	b.mark(len(sc.Indicators) > 0)
	sc.Validity = b.validity()
	return sc
}
