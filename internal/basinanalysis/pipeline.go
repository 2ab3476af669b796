package basinanalysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/basin-analysis/internal/petrosys"
)

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

type StageProgressFn func(stage, message string)

// StageObserver receives stage timings and issue counts, e.g. for metrics.
type StageObserver interface {
	ObserveStage(stage, status string, elapsed time.Duration)
	ObserveIssue(stage, kind string)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, string, time.Duration) {}
func (nopObserver) ObserveIssue(string, string)                {}

type Pipeline struct {
	runner   StageRunner
	physics  MultiPhysicsRunner
	policy   petrosys.ChancePolicy
	logger   *zap.Logger
	observer StageObserver
}

type Option func(*Pipeline)

// WithMultiPhysics enables the multi-physics analyzers.
func WithMultiPhysics(r MultiPhysicsRunner) Option { return func(p *Pipeline) { p.physics = r } }

func WithPolicy(policy petrosys.ChancePolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithObserver(o StageObserver) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

func NewPipeline(runner StageRunner, opts ...Option) *Pipeline {
	p := &Pipeline{runner: runner, policy: petrosys.DefaultChancePolicy(), logger: zap.NewNop(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Run(ctx context.Context, in PipelineInputs) (PipelineResult, error) {
	return p.runWithProgress(ctx, in, nil)
}

func (p *Pipeline) RunWithProgress(ctx context.Context, in PipelineInputs, progress StageProgressFn) (PipelineResult, error) {
	return p.runWithProgress(ctx, in, progress)
}

// ValidateInputs rejects inputs no stage could work with.
func ValidateInputs(in PipelineInputs) error {
	if strings.TrimSpace(in.Integration.Geological.BasinName) == "" {
		return errors.New("integration.geological.basin_name is required")
	}
	if _, err := petrosys.ParseRecoveryMethod(in.Recovery.Method); err != nil {
		return fmt.Errorf("recovery.recovery_method: %w", err)
	}
	return nil
}

type stageStep func(ctx context.Context, res *PipelineResult, in PipelineInputs, progress StageProgressFn) error

// runWithProgress runs every stage in order. A stage whose upstream record is
// absent is blocked and later stages still run against their own
// dependencies, so everything produced before a block is kept. The only error
// returned after validation is cancellation, together with the partial result.
func (p *Pipeline) runWithProgress(ctx context.Context, in PipelineInputs, progress StageProgressFn) (PipelineResult, error) {
	if err := ValidateInputs(in); err != nil {
		return PipelineResult{}, err
	}
	if err := p.policy.Validate(); err != nil {
		return PipelineResult{}, fmt.Errorf("chance policy: %w", err)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	res := PipelineResult{
		ID:       id,
		Basin:    in.Integration.Geological.BasinName,
		Status:   PipelineComplete,
		Stages:   []StageOutcome{},
		Warnings: []Warning{},
		Metadata: PipelineMetadata{StartedAt: time.Now(), StagesExecuted: []string{}, Policy: p.policy},
	}
	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("analysis_id", id),
		attribute.String("basin", res.Basin),
	))
	defer span.End()
	p.logger.Info("analysis started", zap.String("analysis_id", id), zap.String("basin", res.Basin))

	steps := []stageStep{
		p.runIntegration,
		p.runChargeHistory,
		p.runReserveEstimation,
		p.runRecoveryPrediction,
		p.runRiskAssessment,
		p.runChanceCalculation,
		p.runMultiPhysics,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "canceled")
			return p.finalize(res), err
		}
		if err := step(ctx, &res, in, progress); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, StageNameFromError(err))
			return p.finalize(res), err
		}
	}
	span.SetAttributes(attribute.String("status", string(res.Status)))
	return p.finalize(res), nil
}

func (p *Pipeline) begin(ctx context.Context, stage, message string, progress StageProgressFn) (context.Context, trace.Span, time.Time) {
	emit(progress, stage, message)
	ctx, span := tracer.Start(ctx, "stage."+stage)
	return ctx, span, time.Now()
}

func (p *Pipeline) runIntegration(ctx context.Context, res *PipelineResult, in PipelineInputs, progress StageProgressFn) error {
	ctx, span, start := p.begin(ctx, StageIntegration, "Integrating petroleum system elements...", progress)
	defer span.End()
	ps, m, err := p.runner.RunIntegration(ctx, in.Integration)
	var fb *petrosys.PetroleumSystem
	if in.Fallback != nil {
		fb = in.Fallback.System
	}
	out, err := settle(p, ctx, res, StageIntegration, start, ps, m, err, fb, func(ps *petrosys.PetroleumSystem) (petrosys.RecordStatus, petrosys.Issues) {
		return ps.Status, ps.Issues()
	})
	res.System = out
	return err
}

func (p *Pipeline) runChargeHistory(ctx context.Context, res *PipelineResult, in PipelineInputs, progress StageProgressFn) error {
	ctx, span, start := p.begin(ctx, StageChargeHistory, "Modelling charge history...", progress)
	defer span.End()
	if !systemUsable(res.System) {
		p.block(res, StageChargeHistory, "requires a petroleum system record", 0, start)
		return nil
	}
	ch, m, err := p.runner.RunChargeHistory(ctx, *res.System, in.Charge)
	var fb *petrosys.ChargeHistory
	if in.Fallback != nil {
		fb = in.Fallback.Charge
	}
	out, err := settle(p, ctx, res, StageChargeHistory, start, ch, m, err, fb, func(ch *petrosys.ChargeHistory) (petrosys.RecordStatus, petrosys.Issues) {
		return ch.Status, ch.Issues
	})
	res.Charge = out
	return err
}

func (p *Pipeline) runReserveEstimation(ctx context.Context, res *PipelineResult, in PipelineInputs, progress StageProgressFn) error {
	ctx, span, start := p.begin(ctx, StageReserveEstimation, "Estimating in-place and recoverable volumes...", progress)
	defer span.End()
	if !systemUsable(res.System) {
		p.block(res, StageReserveEstimation, "requires a petroleum system record", 0, start)
		return nil
	}
	re, m, err := p.runner.RunReserveEstimation(ctx, *res.System, in.Reserves)
	var fb *petrosys.ReserveEstimation
	if in.Fallback != nil {
		fb = in.Fallback.Reserves
	}
	out, err := settle(p, ctx, res, StageReserveEstimation, start, re, m, err, fb, func(re *petrosys.ReserveEstimation) (petrosys.RecordStatus, petrosys.Issues) {
		return re.Status, re.Issues
	})
	res.Reserves = out
	return err
}

func (p *Pipeline) runRecoveryPrediction(ctx context.Context, res *PipelineResult, in PipelineInputs, progress StageProgressFn) error {
	ctx, span, start := p.begin(ctx, StageRecoveryPrediction, "Predicting recovery factors...", progress)
	defer span.End()
	if !reservesUsable(res.Reserves) {
		p.block(res, StageRecoveryPrediction, "requires a reserve estimation record", 0, start)
		return nil
	}
	rp, m, err := p.runner.RunRecoveryPrediction(ctx, *res.Reserves, in.Recovery)
	var fb *petrosys.RecoveryPrediction
	if in.Fallback != nil {
		fb = in.Fallback.Recovery
	}
	out, err := settle(p, ctx, res, StageRecoveryPrediction, start, rp, m, err, fb, func(rp *petrosys.RecoveryPrediction) (petrosys.RecordStatus, petrosys.Issues) {
		return rp.Status, rp.Issues
	})
	res.Recovery = out
	return err
}

func (p *Pipeline) runRiskAssessment(ctx context.Context, res *PipelineResult, in PipelineInputs, progress StageProgressFn) error {
	ctx, span, start := p.begin(ctx, StageRiskAssessment, "Assessing geological, economic and technical risk...", progress)
	defer span.End()
	var missing []string
	if !systemUsable(res.System) {
		missing = append(missing, "petroleum system")
	}
	if !reservesUsable(res.Reserves) {
		missing = append(missing, "reserve estimation")
	}
	if len(missing) > 0 {
		p.block(res, StageRiskAssessment, "requires "+strings.Join(missing, " and ")+" records", 0, start)
		return nil
	}
	ra, m, err := p.runner.RunRiskAssessment(ctx, *res.System, *res.Reserves, in.Risk)
	var fb *petrosys.RiskAssessment
	if in.Fallback != nil {
		fb = in.Fallback.Risk
	}
	out, err := settle(p, ctx, res, StageRiskAssessment, start, ra, m, err, fb, func(ra *petrosys.RiskAssessment) (petrosys.RecordStatus, petrosys.Issues) {
		return ra.Status, ra.Issues
	})
	res.Risk = out
	return err
}

// runChanceCalculation recomputes the combined chance from the risk scores
// and the pipeline's policy. It makes no outbound call.
func (p *Pipeline) runChanceCalculation(ctx context.Context, res *PipelineResult, _ PipelineInputs, progress StageProgressFn) error {
	_, span, start := p.begin(ctx, StageChanceCalculation, "Calculating chance of success...", progress)
	defer span.End()
	if res.Risk == nil || !res.Risk.Usable() {
		p.block(res, StageChanceCalculation, "requires a risk assessment record", 0, start)
		return nil
	}
	cs := petrosys.ComputeChance(*res.Risk, res.Reserves, p.policy)
	res.Chance = &cs
	p.record(res, StageOutcome{Stage: StageChanceCalculation, Status: StageCompleted}, cs.Issues, start)
	span.SetAttributes(attribute.Float64("combined", cs.Combined), attribute.String("decision", string(cs.Decision)))
	return nil
}

// settle turns a stage call into a stored record. A failed call uses the
// fallback record when there is one and blocks the stage otherwise.
// Cancellation is returned as a *StageError.
func settle[T any](p *Pipeline, ctx context.Context, res *PipelineResult, stage string, start time.Time, rec T, m StageAttemptMetrics, err error, fallback *T, summary func(*T) (petrosys.RecordStatus, petrosys.Issues)) (*T, error) {
	outcome := StageOutcome{Stage: stage, Status: StageCompleted, Attempts: m.Attempts}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &StageError{Stage: stage, Err: ctxErr}
		}
		if fallback == nil {
			p.block(res, stage, err.Error(), m.Attempts, start)
			return nil, nil
		}
		p.logger.Warn("stage using fallback record", zap.String("analysis_id", res.ID), zap.String("stage", stage), zap.Error(err))
		rec = *fallback
		outcome.Status = StageFallback
		outcome.Reason = "reasoning call failed, earlier record used: " + err.Error()
	}
	out := &rec
	status, issues := summary(out)
	if outcome.Status == StageCompleted && status != petrosys.RecordComplete {
		outcome.Status = StagePartial
		if status == petrosys.RecordEmpty {
			outcome.Reason = "no values extracted"
		}
	}
	p.record(res, outcome, issues, start)
	return out, nil
}

func (p *Pipeline) record(res *PipelineResult, o StageOutcome, issues petrosys.Issues, start time.Time) {
	res.Stages = append(res.Stages, o)
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, o.Stage)
	res.Metadata.TotalCalls += o.Attempts
	for _, is := range issues {
		res.Warnings = append(res.Warnings, Warning{Stage: o.Stage, Kind: is.Kind, Field: is.Field, Message: is.Message})
		p.observer.ObserveIssue(o.Stage, string(is.Kind))
		fields := []zap.Field{zap.String("analysis_id", res.ID), zap.String("stage", o.Stage), zap.String("field", is.Field), zap.String("message", is.Message)}
		if is.Kind == petrosys.IssueInvariantViolation {
			p.logger.Warn("invariant violation", fields...)
		} else {
			p.logger.Debug(strings.ToLower(string(is.Kind)), fields...)
		}
	}
	elapsed := time.Since(start)
	p.observer.ObserveStage(o.Stage, string(o.Status), elapsed)
	p.logger.Info("stage finished",
		zap.String("analysis_id", res.ID),
		zap.String("stage", o.Stage),
		zap.String("status", string(o.Status)),
		zap.Int("issues", len(issues)),
		zap.Duration("elapsed", elapsed),
	)
}

func (p *Pipeline) block(res *PipelineResult, stage, reason string, attempts int, start time.Time) {
	res.Stages = append(res.Stages, StageOutcome{Stage: stage, Status: StageBlocked, Reason: reason, Attempts: attempts})
	res.Metadata.TotalCalls += attempts
	res.Metadata.StagesBlocked = append(res.Metadata.StagesBlocked, stage)
	if res.Status != PipelineBlocked {
		res.Status = PipelineBlocked
		res.Metadata.BlockedReason = stage + ": " + reason
	}
	p.observer.ObserveStage(stage, string(StageBlocked), time.Since(start))
	p.logger.Warn("stage blocked", zap.String("analysis_id", res.ID), zap.String("stage", stage), zap.String("reason", reason))
}

type physicsRun struct {
	stage    string
	validity petrosys.Validity
	metrics  StageAttemptMetrics
	err      error
	start    time.Time
	store    func(*PipelineResult)
}

type physicsJob func(ctx context.Context) physicsRun

// runMultiPhysics runs the requested multi-physics analyzers concurrently.
// Each analyzer owns its record until Wait returns; a failure is recorded
// against that analyzer alone and never changes the pipeline status.
func (p *Pipeline) runMultiPhysics(ctx context.Context, res *PipelineResult, in PipelineInputs, progress StageProgressFn) error {
	if p.physics == nil {
		return nil
	}
	jobs := p.physicsJobs(in.MultiPhysics, res.System)
	if len(jobs) == 0 {
		return nil
	}
	emit(progress, "multi_physics", fmt.Sprintf("Running %d multi-physics analyzers...", len(jobs)))
	runs := make([]physicsRun, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			start := time.Now()
			runs[i] = job(ctx)
			runs[i].start = start
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: "multi_physics", Err: err}
	}
	for _, r := range runs {
		if r.err != nil {
			o := StageOutcome{Stage: r.stage, Status: StageFailed, Reason: r.err.Error(), Attempts: r.metrics.Attempts}
			res.Stages = append(res.Stages, o)
			res.Metadata.TotalCalls += o.Attempts
			p.observer.ObserveStage(r.stage, string(StageFailed), time.Since(r.start))
			p.logger.Error("multi-physics analyzer failed", zap.String("analysis_id", res.ID), zap.String("stage", r.stage), zap.Error(r.err))
			continue
		}
		r.store(res)
		o := StageOutcome{Stage: r.stage, Status: StageCompleted, Attempts: r.metrics.Attempts}
		if r.validity.Status != petrosys.RecordComplete {
			o.Status = StagePartial
		}
		p.record(res, o, r.validity.Issues, r.start)
	}
	return nil
}

func (p *Pipeline) physicsJobs(in MultiPhysicsInputs, ps *petrosys.PetroleumSystem) []physicsJob {
	var jobs []physicsJob
	if d := in.GravityMagnetic; d != nil {
		jobs = append(jobs, func(ctx context.Context) physicsRun {
			rec, m, err := p.physics.RunGravityMagnetic(ctx, ps, *d)
			return physicsRun{stage: StageGravityMagnetic, validity: rec.Validity, metrics: m, err: err,
				store: func(r *PipelineResult) { r.GravityMagnetic = &rec }}
		})
	}
	if d := in.Analogy; d != nil {
		jobs = append(jobs, func(ctx context.Context) physicsRun {
			rec, m, err := p.physics.RunGeologicalAnalogy(ctx, ps, *d)
			return physicsRun{stage: StageAnalogy, validity: rec.Validity, metrics: m, err: err,
				store: func(r *PipelineResult) { r.Analogy = &rec }}
		})
	}
	if d := in.Bayesian; d != nil {
		jobs = append(jobs, func(ctx context.Context) physicsRun {
			rec, m, err := p.physics.RunBayesianUncertainty(ctx, ps, *d)
			return physicsRun{stage: StageBayesian, validity: rec.Validity, metrics: m, err: err,
				store: func(r *PipelineResult) { r.Bayesian = &rec }}
		})
	}
	if d := in.Correlation; d != nil {
		jobs = append(jobs, func(ctx context.Context) physicsRun {
			rec, m, err := p.physics.RunCorrelation(ctx, ps, *d)
			return physicsRun{stage: StageCorrelation, validity: rec.Validity, metrics: m, err: err,
				store: func(r *PipelineResult) { r.Correlation = &rec }}
		})
	}
	return jobs
}

func (p *Pipeline) finalize(res PipelineResult) PipelineResult {
	res.Metadata.CompletedAt = time.Now()
	p.logger.Info("analysis finished",
		zap.String("analysis_id", res.ID),
		zap.String("status", string(res.Status)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Int("calls", res.Metadata.TotalCalls),
		zap.Duration("elapsed", res.Metadata.CompletedAt.Sub(res.Metadata.StartedAt)),
	)
	return res
}

func systemUsable(ps *petrosys.PetroleumSystem) bool { return ps != nil && !ps.Empty() }

func reservesUsable(re *petrosys.ReserveEstimation) bool { return re != nil && re.Usable() }

func emit(progress StageProgressFn, stage, message string) {
	if progress != nil {
		progress(stage, message)
	}
}

func StageNameFromError(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "pipeline"
}
