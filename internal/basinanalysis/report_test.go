package basinanalysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMarkdownCompleteRun(t *testing.T) {
	res, err := NewPipeline(newMockRunner()).Run(context.Background(), baseInputs())
	require.NoError(t, err)

	md := BuildMarkdown(res)
	for _, want := range []string{
		"# Basin Analysis Report: Viking Graben",
		"## Stages",
		"## Chance of Success",
		"## Petroleum System",
		"## Charge History",
		"## Reserves",
		"## Recovery (waterflood)",
		"## Risk",
		"## Extraction Warnings",
		Disclaimer,
	} {
		assert.Contains(t, md, want)
	}
	assert.NotContains(t, md, "BLOCKED:")
	assert.NotContains(t, md, "## Multi-Physics")
}

func TestBuildMarkdownBlockedRun(t *testing.T) {
	m := newMockRunner()
	m.err[StageReserveEstimation] = errors.New("status code: 500")
	res, err := NewPipeline(m).Run(context.Background(), baseInputs())
	require.NoError(t, err)

	md := BuildMarkdown(res)
	assert.Contains(t, md, "> BLOCKED: reserve_estimation")
	assert.Contains(t, md, "## Petroleum System")
	assert.NotContains(t, md, "## Chance of Success")
	assert.Contains(t, md, "| risk_assessment | BLOCKED |")
}

func TestSanitizeEscapesTableCells(t *testing.T) {
	assert.Equal(t, `a \| b c`, sanitize(" a | b\nc "))
}

func TestRenderHTML(t *testing.T) {
	res, err := NewPipeline(newMockRunner()).Run(context.Background(), baseInputs())
	require.NoError(t, err)
	res.Basin = "Viking <Graben>"

	page, err := RenderHTML(res)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(page, "<!doctype html>"))
	assert.Contains(t, page, "<title>Viking &lt;Graben&gt; basin analysis</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<h2>Chance of Success</h2>")
}
