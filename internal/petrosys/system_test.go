package petrosys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func found(v float64, unit string) Reading {
	return Reading{Value: v, Found: true, Unit: unit, Quote: "q"}
}

func values(kv map[string]Reading) Readings { return Readings{Values: kv} }

func TestNewSourceComplete(t *testing.T) {
	s := NewSource(values(map[string]Reading{
		"quality":           found(82, "%"),
		"maturity":          found(0.9, ""),
		"volume":            found(120, "km3"),
		"generation_timing": found(95, "Ma"),
		"confidence":        found(70, "%"),
	}))
	assert.Equal(t, RecordComplete, s.Status)
	assert.True(t, s.Valid)
	assert.Equal(t, 82.0, s.Quality.Value)
	assert.Equal(t, UnitPercent, s.Quality.Unit)
	assert.Equal(t, UnitVitrinite, s.Maturity.Unit)
	assert.Equal(t, 70.0, s.Confidence.Value)
	assert.Equal(t, StatusExtracted, s.Confidence.Status)
	assert.Empty(t, s.Issues)
}

func TestPercentOutOfRangeIsClampedAndFlagged(t *testing.T) {
	s := NewSeal(values(map[string]Reading{"integrity": found(130, "%")}))
	assert.Equal(t, 100.0, s.Integrity.Value)
	assert.Equal(t, StatusClamped, s.Integrity.Status)
	assert.False(t, s.Valid)
	issues := s.Issues.Field("seal.integrity")
	require.Len(t, issues, 1)
	assert.Equal(t, IssueInvariantViolation, issues[0].Kind)
}

func TestNegativeThicknessIsInvalid(t *testing.T) {
	res := NewReservoir(values(map[string]Reading{"thickness": found(-12, "m")}))
	assert.Equal(t, StatusInvalid, res.Thickness.Status)
	assert.Zero(t, res.Thickness.Value)
	assert.False(t, res.Valid)
}

func TestFeetAreConvertedToMeters(t *testing.T) {
	res := NewReservoir(values(map[string]Reading{"thickness": found(100, "ft")}))
	assert.Equal(t, 30.48, res.Thickness.Value)
	assert.Equal(t, UnitMeters, res.Thickness.Unit)
}

func TestTrapTypeDefaults(t *testing.T) {
	cases := []struct {
		name       string
		categories map[string][]string
		want       TrapType
		status     FieldStatus
	}{
		{"named", map[string][]string{CategoryTrapType: {"stratigraphic"}}, TrapStratigraphic, StatusExtracted},
		{"mentioned only", map[string][]string{CategoryTrapMention: {"trap"}}, TrapStructural, StatusDefault},
		{"absent", nil, TrapUnknown, StatusDefault},
		{"outside closed set", map[string][]string{CategoryTrapType: {"diapir"}}, TrapUnknown, StatusInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trap := NewTrap(Readings{Categories: tc.categories})
			assert.Equal(t, tc.want, trap.Type)
			assert.Equal(t, tc.status, trap.TypeStatus)
		})
	}
}

func TestPartialPetroleumSystem(t *testing.T) {
	ps := NewPetroleumSystem(SystemReadings{
		Source:    values(map[string]Reading{"quality": found(82, "%")}),
		Reservoir: values(map[string]Reading{"porosity": found(12, "%")}),
	})
	assert.Equal(t, RecordPartial, ps.Status)
	assert.False(t, ps.Empty())
	assert.Equal(t, RecordPartial, ps.Source.Status)
	assert.Equal(t, RecordEmpty, ps.Migration.Status)
	assert.Equal(t, RecordEmpty, ps.Seal.Status)
	assert.Equal(t, RecordEmpty, ps.Trap.Status)

	assert.Equal(t, StatusDerived, ps.Source.Confidence.Status)
	assert.InDelta(t, 12.5, ps.Source.Confidence.Value, 1e-9)
	assert.Zero(t, ps.Seal.Confidence.Value)

	gaps := 0
	for _, i := range ps.Issues() {
		if i.Kind == IssueExtractionGap {
			gaps++
		}
	}
	assert.Greater(t, gaps, 8)
	assert.True(t, ps.Valid())
}

func TestEmptyPetroleumSystem(t *testing.T) {
	ps := NewPetroleumSystem(SystemReadings{})
	assert.True(t, ps.Empty())
	assert.Zero(t, ps.Confidence)
}
