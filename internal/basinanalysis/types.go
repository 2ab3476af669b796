package basinanalysis

import (
	"time"

	"github.com/joelkehle/basin-analysis/internal/petrosys"
)

// Stage names, in pipeline order, followed by the multi-physics analyzers.
const (
	StageIntegration        = "integration"
	StageChargeHistory      = "charge_history"
	StageReserveEstimation  = "reserve_estimation"
	StageRecoveryPrediction = "recovery_prediction"
	StageRiskAssessment     = "risk_assessment"
	StageChanceCalculation  = "chance_calculation"

	StageGravityMagnetic = "gravity_magnetic"
	StageAnalogy         = "geological_analogy"
	StageBayesian        = "bayesian_uncertainty"
	StageCorrelation     = "surface_subsurface_correlation"
)

// StageOrder lists the staged pipeline.
var StageOrder = []string{
	StageIntegration,
	StageChargeHistory,
	StageReserveEstimation,
	StageRecoveryPrediction,
	StageRiskAssessment,
	StageChanceCalculation,
}

type StageStatus string

const (
	// StageCompleted means the record was built and every field came from the narrative or was derived.
	StageCompleted StageStatus = "COMPLETED"
	// StagePartial means the record was built but some fields are at defaults.
	StagePartial StageStatus = "PARTIAL"
	// StageFallback means the collaborator failed and a record from an earlier run was used.
	StageFallback StageStatus = "FALLBACK"
	// StageBlocked means no record exists for the stage.
	StageBlocked StageStatus = "BLOCKED"
	// StageFailed is used by multi-physics analyzers, which never block the pipeline.
	StageFailed StageStatus = "FAILED"
)

type PipelineStatus string

const (
	PipelineComplete PipelineStatus = "COMPLETE"
	PipelineBlocked  PipelineStatus = "BLOCKED"
)

type GeologicalData struct {
	BasinName         string   `json:"basin_name"`
	Location          string   `json:"location,omitempty"`
	StructuralSetting string   `json:"structural_setting,omitempty"`
	Formations        []string `json:"formations,omitempty"`
	Lithologies       []string `json:"lithologies,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

type GeochemicalData struct {
	TOCPercent           float64 `json:"toc_percent,omitempty"`
	KerogenType          string  `json:"kerogen_type,omitempty"`
	VitriniteReflectance float64 `json:"vitrinite_reflectance_ro,omitempty"`
	HydrogenIndex        float64 `json:"hydrogen_index_mg_hc_g_toc,omitempty"`
	Notes                string  `json:"notes,omitempty"`
}

type GeophysicalData struct {
	SeismicCoverage string `json:"seismic_coverage,omitempty"`
	GravitySurvey   bool   `json:"gravity_survey,omitempty"`
	MagneticSurvey  bool   `json:"magnetic_survey,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type BasinHistory struct {
	BasinAge       string   `json:"basin_age,omitempty"`
	TectonicEvents []string `json:"tectonic_events,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// IntegrationInputs feed system integration.
type IntegrationInputs struct {
	Geological   GeologicalData  `json:"geological"`
	Geochemical  GeochemicalData `json:"geochemical"`
	Geophysical  GeophysicalData `json:"geophysical"`
	BasinHistory BasinHistory    `json:"basin_history"`
}

type ThermalHistory struct {
	HeatFlow           float64 `json:"heat_flow_mw_m2,omitempty"`
	GeothermalGradient float64 `json:"geothermal_gradient_c_per_km,omitempty"`
	MaxTemperature     float64 `json:"max_temperature_c,omitempty"`
	Notes              string  `json:"notes,omitempty"`
}

type BurialHistory struct {
	MaxBurialDepth float64  `json:"max_burial_depth_m,omitempty"`
	UpliftEvents   []string `json:"uplift_events,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

type ChargeInputs struct {
	Thermal ThermalHistory `json:"thermal_history"`
	Burial  BurialHistory  `json:"burial_history"`
}

type ReservoirParameters struct {
	AreaKm2         float64 `json:"area_km2,omitempty"`
	NetPayM         float64 `json:"net_pay_m,omitempty"`
	PorosityPercent float64 `json:"porosity_percent,omitempty"`
	WaterSaturation float64 `json:"water_saturation_percent,omitempty"`
	PermeabilityMD  float64 `json:"permeability_md,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

type FluidProperties struct {
	OilGravityAPI         float64 `json:"oil_gravity_api,omitempty"`
	GasOilRatio           float64 `json:"gas_oil_ratio_scf_bbl,omitempty"`
	FormationVolumeFactor float64 `json:"formation_volume_factor,omitempty"`
	ViscosityCP           float64 `json:"viscosity_cp,omitempty"`
	Notes                 string  `json:"notes,omitempty"`
}

type UncertaintyFactors struct {
	Factors []string `json:"factors,omitempty"`
	Notes   string   `json:"notes,omitempty"`
}

type ReserveInputs struct {
	Reservoir   ReservoirParameters `json:"reservoir_parameters"`
	Fluids      FluidProperties     `json:"fluid_properties"`
	Uncertainty UncertaintyFactors  `json:"uncertainty_factors"`
}

type RockProperties struct {
	Lithology       string  `json:"lithology,omitempty"`
	PorosityPercent float64 `json:"porosity_percent,omitempty"`
	PermeabilityMD  float64 `json:"permeability_md,omitempty"`
	Heterogeneity   string  `json:"heterogeneity,omitempty"`
}

// RecoveryInputs carry the method as text; it is parsed with petrosys.ParseRecoveryMethod.
type RecoveryInputs struct {
	Rock   RockProperties  `json:"rock_properties"`
	Fluids FluidProperties `json:"fluid_properties"`
	Method string          `json:"recovery_method"`
}

type EconomicParameters struct {
	OilPriceUSD    float64 `json:"oil_price_usd_bbl,omitempty"`
	GasPriceUSD    float64 `json:"gas_price_usd_mcf,omitempty"`
	CapexMUSD      float64 `json:"capex_musd,omitempty"`
	OpexUSDPerBbl  float64 `json:"opex_usd_bbl,omitempty"`
	FiscalRegime   string  `json:"fiscal_regime,omitempty"`
	Infrastructure string  `json:"infrastructure,omitempty"`
	WaterDepthM    float64 `json:"water_depth_m,omitempty"`
}

type RiskInputs struct {
	Economics EconomicParameters `json:"economic_parameters"`
}

type GravityMagneticData struct {
	GravityAnomalyMgal float64 `json:"gravity_anomaly_mgal,omitempty"`
	MagneticAnomalyNT  float64 `json:"magnetic_anomaly_nt,omitempty"`
	StationCount       int     `json:"station_count,omitempty"`
	Notes              string  `json:"notes,omitempty"`
}

type AnalogyData struct {
	Candidates []string `json:"candidate_analogs,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

type BayesianData struct {
	PriorPercent float64  `json:"prior_percent,omitempty"`
	Evidence     []string `json:"evidence,omitempty"`
}

type CorrelationData struct {
	SurfaceObservations []string `json:"surface_observations,omitempty"`
	SubsurfaceFeatures  []string `json:"subsurface_features,omitempty"`
}

// MultiPhysicsInputs select which multi-physics analyzers run. A nil field skips that analyzer.
type MultiPhysicsInputs struct {
	GravityMagnetic *GravityMagneticData `json:"gravity_magnetic,omitempty"`
	Analogy         *AnalogyData         `json:"analogy,omitempty"`
	Bayesian        *BayesianData        `json:"bayesian,omitempty"`
	Correlation     *CorrelationData     `json:"correlation,omitempty"`
}

// Fallback holds records from an earlier run. A stage whose collaborator
// fails uses the matching record instead of blocking.
type Fallback struct {
	System   *petrosys.PetroleumSystem    `json:"petroleum_system,omitempty"`
	Charge   *petrosys.ChargeHistory      `json:"charge_history,omitempty"`
	Reserves *petrosys.ReserveEstimation  `json:"reserve_estimation,omitempty"`
	Recovery *petrosys.RecoveryPrediction `json:"recovery_prediction,omitempty"`
	Risk     *petrosys.RiskAssessment     `json:"risk_assessment,omitempty"`
}

// PipelineInputs are the raw inputs of one analysis.
type PipelineInputs struct {
	ID           string             `json:"id,omitempty"`
	Integration  IntegrationInputs  `json:"integration"`
	Charge       ChargeInputs       `json:"charge"`
	Reserves     ReserveInputs      `json:"reserves"`
	Recovery     RecoveryInputs     `json:"recovery"`
	Risk         RiskInputs         `json:"risk"`
	MultiPhysics MultiPhysicsInputs `json:"multi_physics"`
	Fallback     *Fallback          `json:"fallback,omitempty"`
}

// StageAttemptMetrics counts outbound calls for one stage.
type StageAttemptMetrics struct {
	Attempts int
}

// StageOutcome is the per-stage line of a result.
type StageOutcome struct {
	Stage    string      `json:"stage"`
	Status   StageStatus `json:"status"`
	Reason   string      `json:"reason,omitempty"`
	Attempts int         `json:"attempts"`
}

// Warning is a per-field extraction gap, invariant violation or data-quality note.
type Warning struct {
	Stage   string             `json:"stage"`
	Kind    petrosys.IssueKind `json:"kind"`
	Field   string             `json:"field"`
	Message string             `json:"message"`
}

type PipelineMetadata struct {
	StartedAt      time.Time             `json:"started_at"`
	CompletedAt    time.Time             `json:"completed_at"`
	StagesExecuted []string              `json:"stages_executed"`
	StagesBlocked  []string              `json:"stages_blocked,omitempty"`
	BlockedReason  string                `json:"blocked_reason,omitempty"`
	TotalCalls     int                   `json:"total_calls"`
	Policy         petrosys.ChancePolicy `json:"chance_policy"`
}

// PipelineResult carries every record produced, possibly partial, plus the
// terminal status and the collected warnings. Records are never mutated after
// the stage that built them returns.
type PipelineResult struct {
	ID     string         `json:"id"`
	Basin  string         `json:"basin"`
	Status PipelineStatus `json:"status"`

	System   *petrosys.PetroleumSystem    `json:"petroleum_system,omitempty"`
	Charge   *petrosys.ChargeHistory      `json:"charge_history,omitempty"`
	Reserves *petrosys.ReserveEstimation  `json:"reserve_estimation,omitempty"`
	Recovery *petrosys.RecoveryPrediction `json:"recovery_prediction,omitempty"`
	Risk     *petrosys.RiskAssessment     `json:"risk_assessment,omitempty"`
	Chance   *petrosys.ChanceOfSuccess    `json:"chance_of_success,omitempty"`

	GravityMagnetic *petrosys.GravityMagneticInversion     `json:"gravity_magnetic,omitempty"`
	Analogy         *petrosys.GeologicalAnalogy            `json:"geological_analogy,omitempty"`
	Bayesian        *petrosys.BayesianUncertainty          `json:"bayesian_uncertainty,omitempty"`
	Correlation     *petrosys.SurfaceSubsurfaceCorrelation `json:"surface_subsurface_correlation,omitempty"`

	Stages   []StageOutcome   `json:"stages"`
	Warnings []Warning        `json:"warnings"`
	Metadata PipelineMetadata `json:"metadata"`
}

// Outcome returns the outcome recorded for stage.
func (r PipelineResult) Outcome(stage string) (StageOutcome, bool) {
	for _, o := range r.Stages {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutcome{}, false
}

// WarningsFor returns the warnings raised by one stage.
func (r PipelineResult) WarningsFor(stage string) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Stage == stage {
			out = append(out, w)
		}
	}
	return out
}
