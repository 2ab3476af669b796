package basinanalysis

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/joelkehle/basin-analysis/internal/petrosys"
)

const Disclaimer = "Automated screening from narrative text. Values marked DEFAULT were not stated and carry no evidential weight; " +
	"review extraction quotes before using any figure in a decision."

// BuildMarkdown renders a result as a self-contained markdown report.
func BuildMarkdown(res PipelineResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Basin Analysis Report: %s\n\n", sanitize(res.Basin))
	fmt.Fprintf(&b, "- Analysis ID: %s\n", res.ID)
	fmt.Fprintf(&b, "- Status: %s\n", res.Status)
	if !res.Metadata.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "- Completed: %s\n", res.Metadata.CompletedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&b, "- Chance policy: %s (geological weight %s, commercial weight %s)\n\n",
		res.Metadata.Policy.Method, num(res.Metadata.Policy.GeologicalWeight), num(res.Metadata.Policy.CommercialWeight))
	fmt.Fprintf(&b, "%s\n\n", Disclaimer)
	if res.Status == PipelineBlocked {
		fmt.Fprintf(&b, "> BLOCKED: %s. Records produced before the block are reported below.\n\n", sanitize(res.Metadata.BlockedReason))
	}

	b.WriteString("## Stages\n\n| Stage | Status | Calls | Note |\n|---|---|---|---|\n")
	for _, o := range res.Stages {
		fmt.Fprintf(&b, "| %s | %s | %d | %s |\n", o.Stage, o.Status, o.Attempts, sanitize(o.Reason))
	}
	b.WriteString("\n")

	if cs := res.Chance; cs != nil {
		b.WriteString("## Chance of Success\n\n")
		fmt.Fprintf(&b, "**Decision: %s** at combined chance %s%% (geological %s%%, commercial %s%%, %s).\n\n",
			cs.Decision, num(cs.Combined), num(cs.Geological), num(cs.Commercial), cs.Method)
		b.WriteString("| Element | Chance of adequacy |\n|---|---|\n")
		for _, e := range []struct {
			name string
			v    float64
		}{
			{"Source", cs.Elements.Source},
			{"Migration", cs.Elements.Migration},
			{"Reservoir", cs.Elements.Reservoir},
			{"Seal", cs.Elements.Seal},
			{"Trap", cs.Elements.Trap},
		} {
			fmt.Fprintf(&b, "| %s | %s%% |\n", e.name, num(e.v))
		}
		fmt.Fprintf(&b, "\nRisked recoverable oil: %s. Risked recoverable gas: %s.\n\n", quantity(cs.RiskedOil), quantity(cs.RiskedGas))
	}

	if ps := res.System; ps != nil {
		fmt.Fprintf(&b, "## Petroleum System\n\nStatus %s, confidence %s%%.\n\n", ps.Status, num(ps.Confidence))
		b.WriteString("| Element | Field | Value | Source |\n|---|---|---|---|\n")
		rows(&b, "Source", []field{
			{"quality", ps.Source.Quality}, {"maturity", ps.Source.Maturity}, {"volume", ps.Source.Volume},
			{"generation timing", ps.Source.GenerationTiming}, {"confidence", ps.Source.Confidence},
		})
		rows(&b, "Migration", []field{
			{"efficiency", ps.Migration.Efficiency}, {"distance", ps.Migration.Distance},
			{"timing", ps.Migration.Timing}, {"confidence", ps.Migration.Confidence},
		})
		rows(&b, "Reservoir", []field{
			{"quality", ps.Reservoir.Quality}, {"porosity", ps.Reservoir.Porosity}, {"permeability", ps.Reservoir.Permeability},
			{"thickness", ps.Reservoir.Thickness}, {"confidence", ps.Reservoir.Confidence},
		})
		rows(&b, "Seal", []field{
			{"integrity", ps.Seal.Integrity}, {"thickness", ps.Seal.Thickness},
			{"continuity", ps.Seal.Continuity}, {"confidence", ps.Seal.Confidence},
		})
		rows(&b, "Trap", []field{
			{"closure", ps.Trap.Closure}, {"area", ps.Trap.Area},
			{"integrity", ps.Trap.Integrity}, {"confidence", ps.Trap.Confidence},
		})
		fmt.Fprintf(&b, "\nTrap type: %s (%s).", ps.Trap.Type, ps.Trap.TypeStatus)
		if len(ps.Migration.Pathways) > 0 {
			fmt.Fprintf(&b, " Migration pathways: %s.", strings.Join(ps.Migration.Pathways, ", "))
		}
		b.WriteString("\n\n")
	}

	if ch := res.Charge; ch != nil {
		b.WriteString("## Charge History\n\n")
		fmt.Fprintf(&b, "Critical moment: **%s** (basis: %s", ch.CriticalMoment.Position, ch.CriticalMoment.Basis)
		if ch.CriticalMoment.Age.Known() {
			fmt.Fprintf(&b, ", age %s", quantity(ch.CriticalMoment.Age))
		}
		b.WriteString(").\n\n")
		if len(ch.Timeline) > 0 {
			b.WriteString("| Event | Age |\n|---|---|\n")
			for _, e := range ch.Timeline {
				fmt.Fprintf(&b, "| %s | %s |\n", sanitize(e.Event), quantity(e.Age))
			}
			b.WriteString("\n")
		}
	}

	if re := res.Reserves; re != nil {
		b.WriteString("## Reserves\n\n| Fluid | Low | Best | High | Confidence | Status |\n|---|---|---|---|---|---|\n")
		for _, v := range []struct {
			name string
			r    petrosys.VolumeRange
		}{{"Oil in place", re.OilInPlace}, {"Gas in place", re.GasInPlace}} {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n", v.name,
				num(v.r.Low), num(v.r.Best), num(v.r.High), quantity(v.r.Confidence), v.r.Status)
		}
		b.WriteString("\n| Recoverable | Best | Recovery factor | Uncertainty |\n|---|---|---|---|\n")
		fmt.Fprintf(&b, "| Oil | %s | %s | %s |\n", quantity(re.RecoverableOil.Best), quantity(re.RecoverableOil.RecoveryFactor), quantity(re.RecoverableOil.Uncertainty))
		fmt.Fprintf(&b, "| Gas | %s | %s | %s |\n\n", quantity(re.RecoverableGas.Best), quantity(re.RecoverableGas.RecoveryFactor), quantity(re.RecoverableGas.Uncertainty))
	}

	if rp := res.Recovery; rp != nil {
		fmt.Fprintf(&b, "## Recovery (%s)\n\n", rp.Method)
		fmt.Fprintf(&b, "Primary %s, secondary %s, tertiary %s, ultimate %s.\n\n",
			quantity(rp.Primary), quantity(rp.Secondary), quantity(rp.Tertiary), quantity(rp.Ultimate))
	}

	if ra := res.Risk; ra != nil {
		b.WriteString("## Risk\n\n| Group | Overall risk |\n|---|---|\n")
		fmt.Fprintf(&b, "| Geological | %s |\n| Economic | %s |\n| Technical | %s |\n\n",
			quantity(ra.Geological.Overall), quantity(ra.Economic.Overall), quantity(ra.Technical.Overall))
		if ra.OverallChance.StatedCombined.Known() {
			fmt.Fprintf(&b, "The narrative stated a combined chance of %s; the reported figure is derived from the risk scores.\n\n",
				quantity(ra.OverallChance.StatedCombined))
		}
	}

	multiPhysics(&b, res)

	if len(res.Warnings) > 0 {
		b.WriteString("## Extraction Warnings\n\n| Stage | Kind | Field | Message |\n|---|---|---|---|\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", w.Stage, w.Kind, sanitize(w.Field), sanitize(w.Message))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func multiPhysics(b *strings.Builder, res PipelineResult) {
	if res.GravityMagnetic == nil && res.Analogy == nil && res.Bayesian == nil && res.Correlation == nil {
		return
	}
	b.WriteString("## Multi-Physics\n\n")
	if gm := res.GravityMagnetic; gm != nil {
		fmt.Fprintf(b, "- Gravity-magnetic: basement depth %s, sediment thickness %s, misfit %s\n",
			estimate(gm.BasementDepth), estimate(gm.SedimentThickness), quantity(gm.Misfit))
	}
	if ga := res.Analogy; ga != nil {
		names := make([]string, 0, len(ga.Analogs))
		for _, a := range ga.Analogs {
			names = append(names, fmt.Sprintf("%s (%s%%)", sanitize(a.Name), num(a.Similarity)))
		}
		fmt.Fprintf(b, "- Analogs: %s; similarity %s, recovery factor %s\n",
			orNone(strings.Join(names, ", ")), estimate(ga.Similarity), estimate(ga.RecoveryFactor))
	}
	if bu := res.Bayesian; bu != nil {
		fmt.Fprintf(b, "- Bayesian: prior %s, likelihood ratio %s, posterior %s ± %s\n",
			quantity(bu.Prior), quantity(bu.LikelihoodRatio), quantity(bu.Posterior.Mean), quantity(bu.Posterior.Std))
	}
	if sc := res.Correlation; sc != nil {
		fmt.Fprintf(b, "- Surface-subsurface: coefficient %s, anomaly probability %s, indicators %s\n",
			estimate(sc.Coefficient), quantity(sc.AnomalyProbability), orNone(strings.Join(sc.Indicators, ", ")))
	}
	b.WriteString("\n")
}

type field struct {
	name string
	q    petrosys.Quantity
}

func rows(b *strings.Builder, element string, fields []field) {
	for _, f := range fields {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", element, f.name, quantity(f.q), sanitize(f.q.Quote))
	}
}

func quantity(q petrosys.Quantity) string {
	v := num(q.Value)
	if q.Unit != "" && q.Unit != petrosys.UnitRatio {
		if q.Unit == petrosys.UnitPercent {
			v += "%"
		} else {
			v += " " + string(q.Unit)
		}
	}
	if q.Status != "" && q.Status != petrosys.StatusExtracted {
		v += " (" + strings.ToLower(string(q.Status)) + ")"
	}
	return v
}

func estimate(e petrosys.Estimate) string {
	s := quantity(e.Value)
	if e.Uncertainty.Known() {
		s += " ± " + num(e.Uncertainty.Value)
	}
	return s
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.TrimSpace(s)
}

// RenderHTML converts the markdown report into a standalone HTML page.
func RenderHTML(res PipelineResult) (string, error) {
	var content bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(BuildMarkdown(res)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(res.Basin) + " basin analysis</title>" +
		"<style>body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem;color:#1c1917;} " +
		"table{border-collapse:collapse;width:100%;font-size:0.85rem;} th,td{border:1px solid #a8a29e;padding:0.3rem 0.45rem;text-align:left;} " +
		"thead th{background:#f1f5f9;} blockquote{border-left:4px solid #b91c1c;margin:0;padding:0.4rem 0.8rem;background:#fef2f2;}</style>" +
		"</head><body>" + content.String() + "</body></html>", nil
}
