package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joelkehle/basin-analysis/internal/basinanalysis"
	"github.com/joelkehle/basin-analysis/internal/extract"
	"github.com/joelkehle/basin-analysis/internal/petrosys"
	"github.com/joelkehle/basin-analysis/internal/reasoning"
)

var narratives = map[string]string{
	basinanalysis.StageIntegration:        "Source rock quality: 82%. Thermal maturity 0.9. Reservoir porosity 12%. Seal integrity 70%.",
	basinanalysis.StageChargeHistory:      "Peak generation 80 Ma. Trap formation 110 Ma.",
	basinanalysis.StageReserveEstimation:  "Oil in place: low 25, best 45, high 70 MMbbl, confidence 75%. Oil recovery factor 35%.",
	basinanalysis.StageRecoveryPrediction: "Primary recovery 12%. Ultimate recovery 35%.",
	basinanalysis.StageRiskAssessment:     "Migration risk 30%. Trap risk 20%. Market risk 20%. Drilling risk 10%.",
}

func runAnalysis(t *testing.T, id, basin string, failStage string) basinanalysis.PipelineResult {
	t.Helper()
	caller := reasoning.CallerFunc(func(_ context.Context, req reasoning.Request) (string, error) {
		if req.Stage == failStage {
			return "", errors.New("status code: 500")
		}
		return narratives[req.Stage], nil
	})
	runner := basinanalysis.NewLLMStageRunner(basinanalysis.NewStageExecutor(caller, zap.NewNop()), extract.DefaultRules(), petrosys.DefaultChancePolicy())
	in := basinanalysis.PipelineInputs{ID: id, Recovery: basinanalysis.RecoveryInputs{Method: "primary"}}
	in.Integration.Geological.BasinName = basin
	res, err := basinanalysis.NewPipeline(runner).Run(context.Background(), in)
	require.NoError(t, err)
	return res
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	res := runAnalysis(t, "a-1", "Viking Graben", "")
	require.Equal(t, basinanalysis.PipelineComplete, res.Status)

	require.NoError(t, s.Save(ctx, res))
	got, err := s.Get(ctx, "a-1")
	require.NoError(t, err)

	assert.Equal(t, res.ID, got.ID)
	assert.Equal(t, res.Status, got.Status)
	assert.Equal(t, *res.System, *got.System)
	assert.Equal(t, *res.Chance, *got.Chance)
	assert.Equal(t, res.Warnings, got.Warnings)
	assert.True(t, res.Metadata.StartedAt.Equal(got.Metadata.StartedAt))
	assert.Equal(t, basinanalysis.BuildMarkdown(res), basinanalysis.BuildMarkdown(got))
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), "nope"), ErrNotFound)
}

func TestSaveReplacesSameID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, runAnalysis(t, "a-1", "Viking Graben", basinanalysis.StageReserveEstimation)))
	require.NoError(t, s.Save(ctx, runAnalysis(t, "a-1", "Viking Graben", "")))

	list, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, string(basinanalysis.PipelineComplete), list[0].Status)
}

func TestListFiltersAndOrders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	blocked := runAnalysis(t, "b-1", "Sirte", basinanalysis.StageIntegration)
	require.Equal(t, basinanalysis.PipelineBlocked, blocked.Status)
	require.NoError(t, s.Save(ctx, blocked))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Save(ctx, runAnalysis(t, "c-1", "Viking Graben", "")))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Save(ctx, runAnalysis(t, "c-2", "Viking Graben", "")))

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c-2", all[0].ID)

	viking, err := s.List(ctx, Filter{Basin: "Viking Graben", Limit: 1})
	require.NoError(t, err)
	require.Len(t, viking, 1)
	assert.Equal(t, "c-2", viking[0].ID)
	_, ok := viking[0].Chance()
	assert.True(t, ok)

	onlyBlocked, err := s.List(ctx, Filter{Status: basinanalysis.PipelineBlocked})
	require.NoError(t, err)
	require.Len(t, onlyBlocked, 1)
	assert.Equal(t, "b-1", onlyBlocked[0].ID)
	_, ok = onlyBlocked[0].Chance()
	assert.False(t, ok)
	assert.Empty(t, onlyBlocked[0].Decision)
}

func TestFallbackFeedsNextRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, runAnalysis(t, "a-1", "Viking Graben", "")))

	fb, err := s.Fallback(ctx, "a-1")
	require.NoError(t, err)
	require.NotNil(t, fb.Reserves)

	caller := reasoning.CallerFunc(func(_ context.Context, req reasoning.Request) (string, error) {
		if req.Stage == basinanalysis.StageReserveEstimation {
			return "", errors.New("status code: 503")
		}
		return narratives[req.Stage], nil
	})
	runner := basinanalysis.NewLLMStageRunner(basinanalysis.NewStageExecutor(caller, nil), extract.DefaultRules(), petrosys.DefaultChancePolicy())
	in := basinanalysis.PipelineInputs{ID: "a-2", Fallback: fb}
	in.Integration.Geological.BasinName = "Viking Graben"
	res, err := basinanalysis.NewPipeline(runner).Run(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, basinanalysis.PipelineComplete, res.Status)
	o, ok := res.Outcome(basinanalysis.StageReserveEstimation)
	require.True(t, ok)
	assert.Equal(t, basinanalysis.StageFallback, o.Status)
	assert.Equal(t, *fb.Reserves, *res.Reserves)
}

func TestInMemoryStore(t *testing.T) {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Save(context.Background(), runAnalysis(t, "m-1", "Permian", "")))
	_, err = s.Get(context.Background(), "m-1")
	assert.NoError(t, err)
}
