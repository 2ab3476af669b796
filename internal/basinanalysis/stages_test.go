package basinanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joelkehle/basin-analysis/internal/extract"
	"github.com/joelkehle/basin-analysis/internal/petrosys"
	"github.com/joelkehle/basin-analysis/internal/reasoning"
)

const endToEndNarrative = "Source rock quality: 82%. Thermal maturity 0.9. Reservoir porosity 12%. " +
	"Oil in place: low 25, best 45, high 70 MMBO, confidence 75%."

const riskNarrative = "Source risk 18%. Migration risk 30%. Reservoir risk 25%. Seal risk 20%. Trap risk 15%. " +
	"Market risk 20%. Cost risk 30%. Fiscal risk 10%. Infrastructure risk 20%. " +
	"Drilling risk 10%. Completion risk 10%. Production risk 20%. Facilities risk 20%. " +
	"Combined chance of success: 90%."

// stageCaller answers each stage from a fixed table and records what it was sent.
type stageCaller struct {
	mu       sync.Mutex
	answers  map[string]string
	errs     map[string]error
	requests map[string]reasoning.Request
}

func newStageCaller(answers map[string]string) *stageCaller {
	return &stageCaller{answers: answers, errs: map[string]error{}, requests: map[string]reasoning.Request{}}
}

func (c *stageCaller) Complete(_ context.Context, req reasoning.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests[req.Stage] = req
	if err := c.errs[req.Stage]; err != nil {
		return "", err
	}
	return c.answers[req.Stage], nil
}

func (c *stageCaller) request(stage string) (reasoning.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.requests[stage]
	return r, ok
}

func baseInputs() PipelineInputs {
	return PipelineInputs{
		ID: "north-sea-1",
		Integration: IntegrationInputs{
			Geological:  GeologicalData{BasinName: "Viking Graben", Formations: []string{"Brent", "Kimmeridge Clay"}},
			Geochemical: GeochemicalData{TOCPercent: 5.2, KerogenType: "II"},
		},
		Charge:   ChargeInputs{Thermal: ThermalHistory{HeatFlow: 60}},
		Reserves: ReserveInputs{Reservoir: ReservoirParameters{AreaKm2: 40, NetPayM: 30}},
		Recovery: RecoveryInputs{Method: "waterflood"},
		Risk:     RiskInputs{Economics: EconomicParameters{OilPriceUSD: 75}},
	}
}

func newTestRunner(c reasoning.Caller) *LLMStageRunner {
	return NewLLMStageRunner(NewStageExecutor(c, zap.NewNop()), extract.DefaultRules(), petrosys.DefaultChancePolicy())
}

func TestParseSystemEndToEndNarrative(t *testing.T) {
	ps := ParseSystem(endToEndNarrative, extract.DefaultRules())

	assert.Equal(t, 82.0, ps.Source.Quality.Value)
	assert.Equal(t, petrosys.StatusExtracted, ps.Source.Quality.Status)
	assert.Equal(t, 12.0, ps.Reservoir.Porosity.Value)
	assert.Equal(t, petrosys.RecordPartial, ps.Status)

	for _, st := range []petrosys.RecordStatus{ps.Migration.Status, ps.Seal.Status, ps.Trap.Status} {
		assert.Equal(t, petrosys.RecordEmpty, st)
	}
	assert.Equal(t, petrosys.TrapUnknown, ps.Trap.Type)
	assert.NotEmpty(t, ps.Migration.Issues.Field("migration.efficiency"))
	assert.True(t, ps.Issues().Has(petrosys.IssueExtractionGap))
}

func TestParseReservesEndToEndNarrative(t *testing.T) {
	re := ParseReserves(endToEndNarrative, extract.DefaultRules())
	oil := re.OilInPlace

	assert.Equal(t, 25.0, oil.Low)
	assert.Equal(t, 45.0, oil.Best)
	assert.Equal(t, 70.0, oil.High)
	assert.Equal(t, 75.0, oil.Confidence.Value)
	assert.Equal(t, petrosys.UnitMMbbl, oil.Unit)
	assert.True(t, oil.Valid)
	assert.LessOrEqual(t, oil.Low, oil.Best)
	assert.LessOrEqual(t, oil.Best, oil.High)
	assert.Equal(t, petrosys.StatusDefault, re.GasInPlace.Status)
}

func TestParseReservesReversedRangeIsFlagged(t *testing.T) {
	re := ParseReserves("Oil in place: low 70, best 45, high 25 MMbbl. Gas in place 100, 200, 300 Bcf.", extract.DefaultRules())

	assert.Equal(t, petrosys.StatusInvalid, re.OilInPlace.Status)
	assert.False(t, re.OilInPlace.Valid)
	assert.Zero(t, re.OilInPlace.Best)
	issues := re.Issues.Field("reserves.oil_in_place")
	require.NotEmpty(t, issues)
	assert.Equal(t, petrosys.IssueInvariantViolation, issues[0].Kind)

	assert.True(t, re.GasInPlace.Valid)
	assert.Equal(t, 200.0, re.GasInPlace.Best)
}

func TestParsingIsIdempotent(t *testing.T) {
	rules := extract.DefaultRules()
	first := ParseSystem(endToEndNarrative, rules)
	second := ParseSystem(endToEndNarrative, rules)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("petroleum system differs between parses (-first +second):\n%s", diff)
	}
	a, err := json.Marshal(ParseReserves(endToEndNarrative, rules))
	require.NoError(t, err)
	b, err := json.Marshal(ParseReserves(endToEndNarrative, rules))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestParseRiskNeverTakesStatedCombined(t *testing.T) {
	policy := petrosys.DefaultChancePolicy()
	ra := ParseRisk(riskNarrative, nil, policy, extract.DefaultRules())

	pg := petrosys.GeologicalChance(ra.Geological)
	pc := petrosys.CommercialChance(ra.Economic, ra.Technical)
	assert.Equal(t, policy.Combine(pg, pc), ra.OverallChance.Combined.Value)
	assert.NotEqual(t, 90.0, ra.OverallChance.Combined.Value)
	assert.Equal(t, petrosys.StatusDerived, ra.OverallChance.Combined.Status)
}

func TestParseAnalogyReadsNamedAnalogs(t *testing.T) {
	ga := ParseAnalogy("Closest analogs are Brent Field (78% similar) and Statfjord (64% similarity).", extract.DefaultRules())
	require.Len(t, ga.Analogs, 2)
	assert.Equal(t, "Brent Field", ga.Analogs[0].Name)
	assert.Equal(t, 78.0, ga.Analogs[0].Similarity)
}

func TestLLMStageRunnerSendsRoleTaggedJSON(t *testing.T) {
	c := newStageCaller(map[string]string{StageIntegration: endToEndNarrative})
	r := newTestRunner(c)

	ps, m, err := r.RunIntegration(context.Background(), baseInputs().Integration)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Attempts)
	assert.Equal(t, 82.0, ps.Source.Quality.Value)

	req, ok := c.request(StageIntegration)
	require.True(t, ok)
	assert.Contains(t, req.System, "petroleum systems analyst")
	var payload integrationRequest
	require.NoError(t, json.Unmarshal([]byte(req.User), &payload))
	assert.Equal(t, "Viking Graben", payload.Inputs.Geological.BasinName)
}

func TestLLMStageRunnerEmptyCompletionIsCollaboratorFailure(t *testing.T) {
	c := newStageCaller(map[string]string{StageIntegration: "   "})
	_, _, err := newTestRunner(c).RunIntegration(context.Background(), IntegrationInputs{})
	require.Error(t, err)
	assert.True(t, IsCollaboratorFailure(err))
	assert.ErrorIs(t, err, reasoning.ErrEmptyCompletion)
}

func TestLLMStageRunnerWrapsTransportErrors(t *testing.T) {
	c := newStageCaller(nil)
	c.errs[StageChargeHistory] = errors.New("status code: 503")
	_, m, err := newTestRunner(c).RunChargeHistory(context.Background(), petrosys.PetroleumSystem{}, ChargeInputs{})
	var ce *reasoning.CollaboratorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, reasoning.FailureServer, ce.Class)
	assert.Equal(t, 1, m.Attempts)
}

func TestLLMStageRunnerRejectsUnknownRecoveryMethod(t *testing.T) {
	c := newStageCaller(nil)
	_, _, err := newTestRunner(c).RunRecoveryPrediction(context.Background(), petrosys.ReserveEstimation{}, RecoveryInputs{Method: "fracking"})
	require.Error(t, err)
	_, called := c.request(StageRecoveryPrediction)
	assert.False(t, called)
}

func TestEndToEndThroughReasoningCaller(t *testing.T) {
	c := newStageCaller(map[string]string{
		StageIntegration:        endToEndNarrative,
		StageChargeHistory:      "Onset of generation at 95 Ma, peak generation 80 Ma. Trap formation 110 Ma.",
		StageReserveEstimation:  endToEndNarrative + " Oil recovery factor 35%.",
		StageRecoveryPrediction: "Primary recovery 12%. Secondary recovery 30%. Ultimate recovery 38%.",
		StageRiskAssessment:     riskNarrative,
	})
	r := newTestRunner(c)
	p := NewPipeline(r, WithMultiPhysics(r))

	res, err := p.Run(context.Background(), baseInputs())
	require.NoError(t, err)

	assert.Equal(t, PipelineComplete, res.Status)
	assert.Equal(t, "north-sea-1", res.ID)
	require.NotNil(t, res.System)
	assert.Equal(t, 82.0, res.System.Source.Quality.Value)
	require.NotNil(t, res.Reserves)
	assert.Equal(t, 45.0, res.Reserves.OilInPlace.Best)
	assert.Equal(t, petrosys.StatusDerived, res.Reserves.RecoverableOil.Best.Status)
	require.NotNil(t, res.Charge)
	assert.Equal(t, petrosys.TrapPredatesGeneration, res.Charge.CriticalMoment.Position)
	require.NotNil(t, res.Recovery)
	assert.Equal(t, petrosys.MethodWaterflood, res.Recovery.Method)
	require.NotNil(t, res.Chance)
	assert.Equal(t, res.Risk.OverallChance.Combined.Value, res.Chance.Combined)

	for _, stage := range StageOrder {
		o, ok := res.Outcome(stage)
		require.True(t, ok, stage)
		assert.NotEqual(t, StageBlocked, o.Status, stage)
	}
	assert.NotEmpty(t, res.WarningsFor(StageIntegration))
	assert.Equal(t, 5, res.Metadata.TotalCalls)
}
