package basinanalysis

import (
	"context"
	"fmt"

	"github.com/joelkehle/basin-analysis/internal/extract"
	"github.com/joelkehle/basin-analysis/internal/petrosys"
)

// StageRunner produces one record per pipeline stage. An error means the
// stage has no record at all; gaps and invariant breaks live on the record.
type StageRunner interface {
	RunIntegration(ctx context.Context, in IntegrationInputs) (petrosys.PetroleumSystem, StageAttemptMetrics, error)
	RunChargeHistory(ctx context.Context, ps petrosys.PetroleumSystem, in ChargeInputs) (petrosys.ChargeHistory, StageAttemptMetrics, error)
	RunReserveEstimation(ctx context.Context, ps petrosys.PetroleumSystem, in ReserveInputs) (petrosys.ReserveEstimation, StageAttemptMetrics, error)
	RunRecoveryPrediction(ctx context.Context, reserves petrosys.ReserveEstimation, in RecoveryInputs) (petrosys.RecoveryPrediction, StageAttemptMetrics, error)
	RunRiskAssessment(ctx context.Context, ps petrosys.PetroleumSystem, reserves petrosys.ReserveEstimation, in RiskInputs) (petrosys.RiskAssessment, StageAttemptMetrics, error)
}

// MultiPhysicsRunner produces the optional multi-physics records. ps is nil
// when integration blocked.
type MultiPhysicsRunner interface {
	RunGravityMagnetic(ctx context.Context, ps *petrosys.PetroleumSystem, in GravityMagneticData) (petrosys.GravityMagneticInversion, StageAttemptMetrics, error)
	RunGeologicalAnalogy(ctx context.Context, ps *petrosys.PetroleumSystem, in AnalogyData) (petrosys.GeologicalAnalogy, StageAttemptMetrics, error)
	RunBayesianUncertainty(ctx context.Context, ps *petrosys.PetroleumSystem, in BayesianData) (petrosys.BayesianUncertainty, StageAttemptMetrics, error)
	RunCorrelation(ctx context.Context, ps *petrosys.PetroleumSystem, in CorrelationData) (petrosys.SurfaceSubsurfaceCorrelation, StageAttemptMetrics, error)
}

// LLMStageRunner asks the reasoning service for a narrative per stage and
// parses it with the rule table.
type LLMStageRunner struct {
	exec   *StageExecutor
	rules  extract.RuleSet
	policy petrosys.ChancePolicy
}

func NewLLMStageRunner(exec *StageExecutor, rules extract.RuleSet, policy petrosys.ChancePolicy) *LLMStageRunner {
	return &LLMStageRunner{exec: exec, rules: rules, policy: policy}
}

const analystRole = "You are a senior petroleum systems analyst. Write a concise technical narrative. " +
	"State every quantity with its unit, give percentages as N%, ranges as low/best/high, and " +
	"a confidence as 'confidence: N%' in the sentence it qualifies."

const (
	integrationPrompt = analystRole + "\nAssess the petroleum system elements: source rock (quality, maturity, volume, generation timing), " +
		"migration (pathways, efficiency, distance, timing), reservoir (quality, porosity, permeability, thickness), " +
		"seal (integrity, thickness, continuity) and trap (type, closure, area, integrity)."

	chargePrompt = analystRole + "\nModel the charge history. Give ages in Ma for onset of generation, peak generation, " +
		"onset of migration, accumulation and trap formation, the maximum temperature, and state whether the trap " +
		"formed before or after peak generation."

	reservesPrompt = analystRole + "\nEstimate oil in place (MMbbl) and gas in place (Bcf) as low/best/high with confidence, " +
		"then recoverable oil and gas with recovery factor and uncertainty."

	recoveryPrompt = analystRole + "\nPredict primary, secondary, tertiary and ultimate recovery factors for the stated method."

	riskPrompt = analystRole + "\nScore risks from 0 to 100 where 100 is highest risk: source, migration, reservoir, seal and trap risk; " +
		"market, cost, fiscal and infrastructure risk; drilling, completion, production and facilities risk."

	gravityPrompt = analystRole + "\nSummarise a joint gravity-magnetic inversion: basement depth, sediment thickness, " +
		"density contrast and magnetic susceptibility, each with uncertainty and confidence, and the data misfit."

	analogyPrompt = analystRole + "\nName analog fields as 'Name (N% similar)' and compare similarity, recovery factor, porosity and net pay."

	bayesianPrompt = analystRole + "\nGive the prior probability, the likelihood ratio of the evidence, the posterior probability " +
		"and the resource volume as mean ± standard deviation."

	correlationPrompt = analystRole + "\nCorrelate surface indicators with subsurface structure: correlation coefficient, " +
		"spatial offset, structural alignment and anomaly probability, naming each surface indicator observed."
)

type integrationRequest struct {
	Stage  string            `json:"stage"`
	Inputs IntegrationInputs `json:"inputs"`
}

type chargeRequest struct {
	Stage           string                   `json:"stage"`
	PetroleumSystem petrosys.PetroleumSystem `json:"petroleum_system"`
	Inputs          ChargeInputs             `json:"inputs"`
}

type reservesRequest struct {
	Stage           string                   `json:"stage"`
	PetroleumSystem petrosys.PetroleumSystem `json:"petroleum_system"`
	Inputs          ReserveInputs            `json:"inputs"`
}

type recoveryRequest struct {
	Stage    string                     `json:"stage"`
	Method   petrosys.RecoveryMethod    `json:"recovery_method"`
	Reserves petrosys.ReserveEstimation `json:"reserve_estimation"`
	Inputs   RecoveryInputs             `json:"inputs"`
}

type riskRequest struct {
	Stage           string                     `json:"stage"`
	PetroleumSystem petrosys.PetroleumSystem   `json:"petroleum_system"`
	Reserves        petrosys.ReserveEstimation `json:"reserve_estimation"`
	Inputs          RiskInputs                 `json:"inputs"`
}

type multiPhysicsRequest struct {
	Stage           string                    `json:"stage"`
	PetroleumSystem *petrosys.PetroleumSystem `json:"petroleum_system,omitempty"`
	Inputs          any                       `json:"inputs"`
}

func (r *LLMStageRunner) RunIntegration(ctx context.Context, in IntegrationInputs) (petrosys.PetroleumSystem, StageAttemptMetrics, error) {
	text, m, err := r.exec.Run(ctx, StageIntegration, integrationPrompt, integrationRequest{Stage: StageIntegration, Inputs: in})
	if err != nil {
		return petrosys.PetroleumSystem{}, m, err
	}
	return ParseSystem(text, r.rules), m, nil
}

func (r *LLMStageRunner) RunChargeHistory(ctx context.Context, ps petrosys.PetroleumSystem, in ChargeInputs) (petrosys.ChargeHistory, StageAttemptMetrics, error) {
	text, m, err := r.exec.Run(ctx, StageChargeHistory, chargePrompt, chargeRequest{Stage: StageChargeHistory, PetroleumSystem: ps, Inputs: in})
	if err != nil {
		return petrosys.ChargeHistory{}, m, err
	}
	return ParseChargeHistory(text, r.rules), m, nil
}

func (r *LLMStageRunner) RunReserveEstimation(ctx context.Context, ps petrosys.PetroleumSystem, in ReserveInputs) (petrosys.ReserveEstimation, StageAttemptMetrics, error) {
	text, m, err := r.exec.Run(ctx, StageReserveEstimation, reservesPrompt, reservesRequest{Stage: StageReserveEstimation, PetroleumSystem: ps, Inputs: in})
	if err != nil {
		return petrosys.ReserveEstimation{}, m, err
	}
	return ParseReserves(text, r.rules), m, nil
}

func (r *LLMStageRunner) RunRecoveryPrediction(ctx context.Context, reserves petrosys.ReserveEstimation, in RecoveryInputs) (petrosys.RecoveryPrediction, StageAttemptMetrics, error) {
	method, err := petrosys.ParseRecoveryMethod(in.Method)
	if err != nil {
		return petrosys.RecoveryPrediction{}, StageAttemptMetrics{}, fmt.Errorf("%s: %w", StageRecoveryPrediction, err)
	}
	req := recoveryRequest{Stage: StageRecoveryPrediction, Method: method, Reserves: reserves, Inputs: in}
	text, m, err := r.exec.Run(ctx, StageRecoveryPrediction, recoveryPrompt, req)
	if err != nil {
		return petrosys.RecoveryPrediction{}, m, err
	}
	return ParseRecovery(text, method, r.rules), m, nil
}

func (r *LLMStageRunner) RunRiskAssessment(ctx context.Context, ps petrosys.PetroleumSystem, reserves petrosys.ReserveEstimation, in RiskInputs) (petrosys.RiskAssessment, StageAttemptMetrics, error) {
	req := riskRequest{Stage: StageRiskAssessment, PetroleumSystem: ps, Reserves: reserves, Inputs: in}
	text, m, err := r.exec.Run(ctx, StageRiskAssessment, riskPrompt, req)
	if err != nil {
		return petrosys.RiskAssessment{}, m, err
	}
	return ParseRisk(text, &ps, r.policy, r.rules), m, nil
}

func (r *LLMStageRunner) RunGravityMagnetic(ctx context.Context, ps *petrosys.PetroleumSystem, in GravityMagneticData) (petrosys.GravityMagneticInversion, StageAttemptMetrics, error) {
	text, m, err := r.exec.Run(ctx, StageGravityMagnetic, gravityPrompt, multiPhysicsRequest{Stage: StageGravityMagnetic, PetroleumSystem: ps, Inputs: in})
	if err != nil {
		return petrosys.GravityMagneticInversion{}, m, err
	}
	return ParseGravityMagnetic(text, r.rules), m, nil
}

func (r *LLMStageRunner) RunGeologicalAnalogy(ctx context.Context, ps *petrosys.PetroleumSystem, in AnalogyData) (petrosys.GeologicalAnalogy, StageAttemptMetrics, error) {
	text, m, err := r.exec.Run(ctx, StageAnalogy, analogyPrompt, multiPhysicsRequest{Stage: StageAnalogy, PetroleumSystem: ps, Inputs: in})
	if err != nil {
		return petrosys.GeologicalAnalogy{}, m, err
	}
	return ParseAnalogy(text, r.rules), m, nil
}

func (r *LLMStageRunner) RunBayesianUncertainty(ctx context.Context, ps *petrosys.PetroleumSystem, in BayesianData) (petrosys.BayesianUncertainty, StageAttemptMetrics, error) {
	text, m, err := r.exec.Run(ctx, StageBayesian, bayesianPrompt, multiPhysicsRequest{Stage: StageBayesian, PetroleumSystem: ps, Inputs: in})
	if err != nil {
		return petrosys.BayesianUncertainty{}, m, err
	}
	return ParseBayesian(text, r.rules), m, nil
}

func (r *LLMStageRunner) RunCorrelation(ctx context.Context, ps *petrosys.PetroleumSystem, in CorrelationData) (petrosys.SurfaceSubsurfaceCorrelation, StageAttemptMetrics, error) {
	text, m, err := r.exec.Run(ctx, StageCorrelation, correlationPrompt, multiPhysicsRequest{Stage: StageCorrelation, PetroleumSystem: ps, Inputs: in})
	if err != nil {
		return petrosys.SurfaceSubsurfaceCorrelation{}, m, err
	}
	return ParseCorrelation(text, r.rules), m, nil
}
