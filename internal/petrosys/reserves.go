package petrosys

// VolumeRange is a low/best/high volume triple. A triple that is not
// monotone is discarded to zeros with Status INVALID; it is never reordered.
type VolumeRange struct {
	Low        float64     `json:"low"`
	Best       float64     `json:"best"`
	High       float64     `json:"high"`
	Unit       Unit        `json:"unit"`
	Status     FieldStatus `json:"status"`
	Valid      bool        `json:"valid"`
	Confidence Quantity    `json:"confidence"`
	Quote      string      `json:"quote,omitempty"`
}

// Recoverable is a producible volume with its recovery factor and uncertainty.
type Recoverable struct {
	Best           Quantity `json:"best"`
	RecoveryFactor Quantity `json:"recovery_factor"`
	Uncertainty    Quantity `json:"uncertainty"`
}

type ReserveEstimation struct {
	OilInPlace     VolumeRange `json:"oil_in_place"`
	GasInPlace     VolumeRange `json:"gas_in_place"`
	RecoverableOil Recoverable `json:"recoverable_oil"`
	RecoverableGas Recoverable `json:"recoverable_gas"`
	Validity
}

// NewReserveEstimation builds the oil and gas estimates independently: a
// malformed oil triple leaves the gas estimate untouched and vice versa.
func NewReserveEstimation(r Readings) ReserveEstimation {
	b := newBuilder("reserves")
	est := ReserveEstimation{
		OilInPlace: b.volumeRange("oil_in_place", r.rangeOf("oil_in_place"), UnitMMbbl, r.value("oil_confidence")),
		GasInPlace: b.volumeRange("gas_in_place", r.rangeOf("gas_in_place"), UnitBcf, r.value("gas_confidence")),
	}
	est.RecoverableOil = b.recoverable("recoverable_oil", r.value("recoverable_oil"), r.value("oil_recovery_factor"), r.value("oil_uncertainty"), est.OilInPlace)
	est.RecoverableGas = b.recoverable("recoverable_gas", r.value("recoverable_gas"), r.value("gas_recovery_factor"), r.value("gas_uncertainty"), est.GasInPlace)
	est.Validity = b.validity()
	return est
}

func (b *builder) volumeRange(field string, r RangeReading, unit Unit, conf Reading) VolumeRange {
	vr := VolumeRange{Unit: unit, Status: StatusDefault, Confidence: b.statedConfidence(field+".confidence", conf)}
	if !r.Found {
		b.flag(IssueExtractionGap, field, "no low/best/high triple found")
		b.mark(false)
		return vr
	}
	vr.Quote = r.Quote
	low, okLow := convert(r.Low, r.Unit, unit)
	best, _ := convert(r.Best, r.Unit, unit)
	high, _ := convert(r.High, r.Unit, unit)
	if !okLow {
		b.flag(IssueDataQuality, field, "unit %q cannot be expressed in %s; values taken as %s", r.Unit, unit, unit)
	}
	switch {
	case low < 0 || best < 0 || high < 0:
		b.flag(IssueInvariantViolation, field, "negative volume in low=%g best=%g high=%g; triple discarded", low, best, high)
	case low > best || best > high:
		b.flag(IssueInvariantViolation, field, "low=%g best=%g high=%g violates low <= best <= high; triple discarded", low, best, high)
	default:
		vr.Low, vr.Best, vr.High = round(low), round(best), round(high)
		vr.Status, vr.Valid = StatusExtracted, true
		b.mark(true)
		return vr
	}
	vr.Status = StatusInvalid
	b.mark(false)
	return vr
}

// recoverable fills a missing best from in-place best times the recovery
// factor, or a missing recovery factor from best over in-place best.
func (b *builder) recoverable(field string, best, rf, unc Reading, inPlace VolumeRange) Recoverable {
	unit := inPlace.Unit
	var out Recoverable
	switch {
	case best.Found:
		out.Best = b.nonNegative(field+".best", best, unit)
	case rf.Found && inPlace.Valid && rf.Value >= 0 && rf.Value <= 100:
		out.Best = b.count(derived(inPlace.Best*rf.Value/100, unit))
	default:
		out.Best = b.nonNegative(field+".best", best, unit)
	}

	switch {
	case rf.Found:
		out.RecoveryFactor = b.percent(field+".recovery_factor", rf)
	case out.Best.Status == StatusExtracted && inPlace.Valid && inPlace.Best > 0:
		pct := out.Best.Value / inPlace.Best * 100
		if pct <= 100 {
			out.RecoveryFactor = b.count(derived(pct, UnitPercent))
			break
		}
		b.flag(IssueDataQuality, field+".recovery_factor", "recoverable best %g exceeds in-place best %g; recovery factor not derived", out.Best.Value, inPlace.Best)
		out.RecoveryFactor = b.percent(field+".recovery_factor", rf)
	default:
		out.RecoveryFactor = b.percent(field+".recovery_factor", rf)
	}

	out.Uncertainty = defaulted(0, unit)
	if unc.Found {
		switch {
		case unc.Unit == string(UnitPercent) && out.Best.Known():
			out.Uncertainty = derived(out.Best.Value*unc.Value/100, unit)
		case unc.Unit == string(UnitPercent):
			b.flag(IssueDataQuality, field+".uncertainty", "relative uncertainty %g%% without a best estimate", unc.Value)
		default:
			if v, ok := convert(unc.Value, unc.Unit, unit); ok && v >= 0 {
				out.Uncertainty = Quantity{Value: round(v), Unit: unit, Status: StatusExtracted, Quote: unc.Quote}
			} else {
				b.flag(IssueDataQuality, field+".uncertainty", "uncertainty %g %s not usable in %s", unc.Value, unc.Unit, unit)
			}
		}
	}

	if out.Best.Known() && inPlace.Valid && out.Best.Value > inPlace.High {
		b.flag(IssueDataQuality, field+".best", "recoverable %g exceeds in-place high %g", out.Best.Value, inPlace.High)
	}
	return out
}
