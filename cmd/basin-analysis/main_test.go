package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/basin-analysis/internal/basinanalysis"
)

const riskNarrative = "Source risk 18%. Migration risk 30%. Reservoir risk 25%. Seal risk 20%. Trap risk 15%. " +
	"Market risk 20%. Cost risk 30%. Fiscal risk 10%. Infrastructure risk 20%. " +
	"Drilling risk 10%. Completion risk 10%. Production risk 20%. Facilities risk 20%."

var replayNarratives = map[string]string{
	basinanalysis.StageIntegration:        "Source rock quality: 82%. Thermal maturity 0.9. Reservoir porosity 12%.",
	basinanalysis.StageChargeHistory:      "Onset of generation at 95 Ma, peak generation 80 Ma. Trap formation 110 Ma.",
	basinanalysis.StageReserveEstimation:  "Oil in place: low 25, best 45, high 70 MMBO, confidence 75%. Oil recovery factor 35%.",
	basinanalysis.StageRecoveryPrediction: "Primary recovery 12%. Secondary recovery 30%. Ultimate recovery 38%.",
	basinanalysis.StageRiskAssessment:     riskNarrative,
}

const inputsJSON = `{"id":"vg-1","integration":{"geological":{"basin_name":"Viking Graben"}},"recovery":{"recovery_method":"waterflood"}}`

type workspace struct {
	dir     string
	replay  string
	archive string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{dir: dir, replay: filepath.Join(dir, "replay"), archive: filepath.Join(dir, "archive.db")}
	require.NoError(t, os.MkdirAll(ws.replay, 0o755))
	for stage, text := range replayNarratives {
		require.NoError(t, os.WriteFile(filepath.Join(ws.replay, stage+".txt"), []byte(text), 0o644))
	}
	return ws
}

func (ws workspace) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(ws.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (ws workspace) exec(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	base := []string{"--replay-dir", ws.replay, "--archive", ws.archive, "--log-level", "error"}
	cmd.SetArgs(append(args[:1:1], append(base, args[1:]...)...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunPrintsResultJSON(t *testing.T) {
	ws := newWorkspace(t)
	out, err := ws.exec(t, inputsJSON, "run")
	require.NoError(t, err)

	var res basinanalysis.PipelineResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "vg-1", res.ID)
	assert.Equal(t, basinanalysis.PipelineComplete, res.Status)
	require.NotNil(t, res.Reserves)
	assert.Equal(t, 45.0, res.Reserves.OilInPlace.Best)
}

func TestRunSaveThenReport(t *testing.T) {
	ws := newWorkspace(t)
	in := ws.write(t, "inputs.json", inputsJSON)

	_, err := ws.exec(t, "", "run", "--save", "--format", "markdown", in)
	require.NoError(t, err)

	out, err := ws.exec(t, "", "report", "vg-1")
	require.NoError(t, err)
	assert.Contains(t, out, "# Basin Analysis Report: Viking Graben")

	out, err = ws.exec(t, "", "report", "--format", "html", "vg-1")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")

	_, err = ws.exec(t, "", "report", "missing")
	assert.Error(t, err)
}

func TestRunRejectsUnknownFields(t *testing.T) {
	ws := newWorkspace(t)
	_, err := ws.exec(t, `{"basin":"Viking Graben"}`, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode inputs")
}

func TestBatchPrintsOneLinePerInput(t *testing.T) {
	ws := newWorkspace(t)
	in := ws.write(t, "batch.json", `[`+inputsJSON+`,
		{"id":"bad","integration":{"geological":{}}},
		{"id":"vg-2","integration":{"geological":{"basin_name":"Viking Graben"}}}]`)

	out, err := ws.exec(t, "", "batch", "--concurrency", "2", in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 analyses failed")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	var got []batchLine
	for _, l := range lines {
		var line batchLine
		require.NoError(t, json.Unmarshal([]byte(l), &line))
		got = append(got, line)
	}
	assert.Equal(t, "vg-1", got[0].ID)
	assert.Equal(t, basinanalysis.PipelineComplete, got[0].Status)
	assert.Equal(t, "bad", got[1].ID)
	assert.Contains(t, got[1].Error, "basin_name")
	assert.Equal(t, "vg-2", got[2].ID)
}

func TestInvalidConfigStopsCommand(t *testing.T) {
	ws := newWorkspace(t)
	_, err := ws.exec(t, inputsJSON, "run", "--concurrency=0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency")
}
