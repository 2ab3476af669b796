package extract

// Section names used by the default tables.
const (
	SectionSource          = "source"
	SectionMigration       = "migration"
	SectionReservoir       = "reservoir"
	SectionSeal            = "seal"
	SectionTrap            = "trap"
	SectionCharge          = "charge"
	SectionReserves        = "reserves"
	SectionRecovery        = "recovery"
	SectionRisk            = "risk"
	SectionGravityMagnetic = "gravity_magnetic"
	SectionAnalogy         = "analogy"
	SectionBayesian        = "bayesian"
	SectionCorrelation     = "correlation"
)

// Vocabulary names used by the default tables.
const (
	VocabTrapType          = "trap_type"
	VocabTrapMention       = "trap_mention"
	VocabMigrationPathway  = "migration_pathway"
	VocabTimingCue         = "timing_cue"
	VocabSurfaceIndicators = "surface_indicator"
)

func value(field string, keywords ...string) Rule {
	return Rule{Field: field, Kind: KindValue, Keywords: keywords}
}

func scopedRule(kind Kind, field string, keywords ...string) Rule {
	return Rule{Field: field, Kind: kind, Keywords: keywords}
}

// DefaultRules returns a fresh copy of the built-in keyword table.
func DefaultRules() RuleSet {
	return RuleSet{
		Sections: map[string][]Rule{
			SectionSource: {
				value("quality", "source rock quality", "source quality", "source rock potential"),
				value("maturity", "thermal maturity", "vitrinite reflectance", "maturity"),
				value("volume", "source rock volume", "source volume", "kitchen volume"),
				value("generation_timing", "generation timing", "generation began", "onset of generation"),
				scopedRule(KindConfidence, "confidence", "source rock", "source"),
			},
			SectionMigration: {
				value("efficiency", "migration efficiency", "expulsion efficiency"),
				value("distance", "migration distance", "migration path length", "migrated"),
				value("timing", "migration timing", "migration began", "onset of migration"),
				scopedRule(KindConfidence, "confidence", "migration"),
			},
			SectionReservoir: {
				value("quality", "reservoir quality"),
				value("porosity", "reservoir porosity", "porosity"),
				value("permeability", "reservoir permeability", "permeability"),
				value("thickness", "reservoir thickness", "net reservoir thickness", "net pay", "gross thickness"),
				scopedRule(KindConfidence, "confidence", "reservoir"),
			},
			SectionSeal: {
				value("integrity", "seal integrity", "seal quality", "seal effectiveness"),
				value("thickness", "seal thickness", "caprock thickness", "top seal thickness"),
				value("continuity", "seal continuity", "lateral continuity"),
				scopedRule(KindConfidence, "confidence", "seal", "caprock"),
			},
			SectionTrap: {
				value("closure", "vertical closure", "closure height", "structural closure"),
				value("area", "closure area", "trap area", "areal extent"),
				value("integrity", "trap integrity", "trap quality"),
				scopedRule(KindConfidence, "confidence", "trap"),
			},
			SectionCharge: {
				value("generation_onset", "onset of generation", "generation onset", "generation began", "entered the oil window"),
				value("peak_generation", "peak generation", "peak oil generation", "peak expulsion"),
				value("migration_onset", "onset of migration", "migration onset", "migration began"),
				value("accumulation", "accumulation", "trap charge", "charging of the trap"),
				value("trap_formation", "trap formation", "trap formed", "structure formed"),
				value("critical_moment", "critical moment"),
				value("max_temperature", "maximum temperature", "peak temperature", "maximum paleotemperature"),
				scopedRule(KindConfidence, "confidence"),
			},
			SectionReserves: {
				{Field: "oil_in_place", Kind: KindRange, Keywords: []string{"oil in place", "stoiip", "stooip", "ooip"}},
				{Field: "gas_in_place", Kind: KindRange, Keywords: []string{"gas in place", "giip", "ogip"}},
				scopedRule(KindConfidence, "oil_confidence", "oil in place", "stoiip", "stooip", "ooip"),
				scopedRule(KindConfidence, "gas_confidence", "gas in place", "giip", "ogip"),
				value("recoverable_oil", "recoverable oil", "oil reserves"),
				value("oil_recovery_factor", "oil recovery factor", "recovery factor"),
				scopedRule(KindUncertainty, "oil_uncertainty", "recoverable oil", "oil reserves"),
				value("recoverable_gas", "recoverable gas", "gas reserves"),
				value("gas_recovery_factor", "gas recovery factor"),
				scopedRule(KindUncertainty, "gas_uncertainty", "recoverable gas", "gas reserves"),
			},
			SectionRecovery: {
				value("primary", "primary recovery"),
				value("secondary", "secondary recovery", "waterflood recovery"),
				value("tertiary", "tertiary recovery", "enhanced recovery", "eor recovery"),
				value("ultimate", "ultimate recovery factor", "ultimate recovery"),
				scopedRule(KindConfidence, "confidence"),
			},
			SectionRisk: {
				value("source_risk", "source risk", "source rock risk"),
				value("migration_risk", "migration risk", "charge risk"),
				value("reservoir_risk", "reservoir risk"),
				value("seal_risk", "seal risk", "containment risk"),
				value("trap_risk", "trap risk", "structural risk"),
				value("market_risk", "market risk", "price risk", "commodity risk"),
				value("cost_risk", "cost risk", "capex risk"),
				value("fiscal_risk", "fiscal risk", "regulatory risk", "political risk"),
				value("infrastructure_risk", "infrastructure risk", "access risk"),
				value("drilling_risk", "drilling risk"),
				value("completion_risk", "completion risk"),
				value("production_risk", "production risk"),
				value("facilities_risk", "facilities risk", "facility risk"),
				value("stated_geological_chance", "geological chance", "geological probability of success"),
				value("stated_commercial_chance", "commercial chance", "commercial probability of success"),
				value("stated_combined_chance", "combined chance", "overall chance", "chance of success"),
			},
			SectionGravityMagnetic: {
				{Field: "basement_depth", Kind: KindEstimate, Keywords: []string{"depth to basement", "basement depth"}},
				{Field: "sediment_thickness", Kind: KindEstimate, Keywords: []string{"sediment thickness", "sedimentary thickness"}},
				{Field: "density_contrast", Kind: KindEstimate, Keywords: []string{"density contrast"}},
				{Field: "susceptibility", Kind: KindEstimate, Keywords: []string{"magnetic susceptibility", "susceptibility"}},
				value("misfit", "rms misfit", "misfit"),
			},
			SectionAnalogy: {
				{Field: "similarity", Kind: KindEstimate, Keywords: []string{"overall similarity", "analog similarity", "analogue similarity"}},
				{Field: "recovery_factor", Kind: KindEstimate, Keywords: []string{"analog recovery factor", "analogue recovery factor"}},
				{Field: "porosity", Kind: KindEstimate, Keywords: []string{"analog porosity", "analogue porosity"}},
				{Field: "net_pay", Kind: KindEstimate, Keywords: []string{"analog net pay", "analogue net pay"}},
			},
			SectionBayesian: {
				value("prior", "prior probability", "prior chance", "prior"),
				value("likelihood_ratio", "likelihood ratio"),
				{Field: "posterior", Kind: KindDistribution, Keywords: []string{"posterior probability", "posterior"}},
				{Field: "volume", Kind: KindDistribution, Keywords: []string{"mean volume", "expected volume"}},
				{Field: "volume_range", Kind: KindRange, Keywords: []string{"p90/p50/p10", "p90-p50-p10", "volume range"}},
			},
			SectionCorrelation: {
				{Field: "coefficient", Kind: KindEstimate, Keywords: []string{"correlation coefficient", "correlation"}},
				{Field: "spatial_offset", Kind: KindEstimate, Keywords: []string{"spatial offset", "lateral offset"}},
				{Field: "structural_alignment", Kind: KindEstimate, Keywords: []string{"structural alignment", "alignment"}},
				scopedRule(KindProbability, "anomaly_probability", "anomaly", "seep"),
			},
		},
		Categories: map[string][]Category{
			VocabTrapType: {
				{Value: "combination", Keywords: []string{"combination trap", "combination", "structural-stratigraphic", "combined structural and stratigraphic"}},
				{Value: "structural", Keywords: []string{"structural trap", "structural", "anticline", "anticlinal", "fault block", "fault-bounded", "four-way", "horst", "salt dome"}},
				{Value: "stratigraphic", Keywords: []string{"stratigraphic trap", "stratigraphic", "pinch-out", "pinchout", "reef", "onlap", "truncation"}},
			},
			VocabTrapMention: {
				{Value: "trap", Keywords: []string{"trap", "traps", "trapping", "closure", "structure"}},
			},
			VocabMigrationPathway: {
				{Value: "fault", Keywords: []string{"fault", "faults"}},
				{Value: "carrier_bed", Keywords: []string{"carrier bed", "carrier beds"}},
				{Value: "unconformity", Keywords: []string{"unconformity", "unconformities"}},
				{Value: "fracture", Keywords: []string{"fracture", "fractures"}},
				{Value: "vertical", Keywords: []string{"vertical migration"}},
				{Value: "lateral", Keywords: []string{"lateral migration", "long-distance migration"}},
			},
			VocabTimingCue: {
				{Value: "predates", Keywords: []string{"trap formed before", "trap predates", "traps predate", "before peak generation", "prior to peak generation"}},
				{Value: "postdates", Keywords: []string{"trap formed after", "trap postdates", "traps postdate", "after peak generation", "late trap formation"}},
				{Value: "coeval", Keywords: []string{"coeval", "synchronous with generation", "contemporaneous with generation"}},
			},
			VocabSurfaceIndicators: {
				{Value: "seepage", Keywords: []string{"oil seep", "gas seep", "seep", "seeps", "seepage"}},
				{Value: "geochemical_anomaly", Keywords: []string{"geochemical anomaly", "soil gas anomaly"}},
				{Value: "lineament", Keywords: []string{"lineament", "lineaments"}},
				{Value: "drainage_anomaly", Keywords: []string{"drainage anomaly", "drainage anomalies"}},
				{Value: "tonal_anomaly", Keywords: []string{"tonal anomaly", "bleaching", "alteration halo"}},
			},
		},
	}
}
