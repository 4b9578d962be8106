// Package orchestrator drives the full pipeline: cluster, per-cluster
// CP-SAT, island-model GA, and Q-learning repair, end to end for one job,
// publishing progress and compensating on failure. It follows the same
// composition-root sequencing and claim/execute/complete lifecycle used
// elsewhere in this codebase's job-queue glue.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/clog"
	"github.com/jgirmay/timetabled/internal/cpsat"
	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/ga"
	"github.com/jgirmay/timetabled/internal/metrics"
	"github.com/jgirmay/timetabled/internal/model"
	"github.com/jgirmay/timetabled/internal/progress"
	"github.com/jgirmay/timetabled/internal/qualitymetrics"
	"github.com/jgirmay/timetabled/internal/resource"
	"github.com/jgirmay/timetabled/internal/rl"
	"github.com/jgirmay/timetabled/internal/stage1"
)

// CatalogProvider loads the catalog a job schedules against. Implementations
// live outside this package (e.g. internal/jobstore's GORM-backed reader).
type CatalogProvider interface {
	Load(ctx context.Context, jobID string) (catalog.Catalog, error)
}

// PersistenceSink receives the finished assignment and its quality report.
// Called only when a job completes successfully; a failed or cancelled job
// never reaches it.
type PersistenceSink interface {
	Save(ctx context.Context, jobID string, assignment model.Assignment, report qualitymetrics.Report) error
}

// Options bundles every stage's tunables plus the resource ceiling the
// monitor samples against.
type Options struct {
	Stage1  stage1.Options
	CPSAT   cpsat.Options
	GA      ga.Config // zero value uses ga.DefaultConfig(numCourses)
	RL      rl.Config // zero value uses rl.DefaultConfig()

	ResourceCeilingBytes   uint64
	ResourceSampleInterval time.Duration
}

// Outcome is the orchestrator's full report for one job, independent of
// whether persistence ran.
type Outcome struct {
	Assignment   model.Assignment
	Report       qualitymetrics.Report
	ClusterCount int
	GAResult     ga.Result
	RLResult     rl.Result
	Failed       bool
	FailureStage string
	FailureErr   error
}

// Orchestrator wires the CatalogProvider/PersistenceSink adapters and the
// shared progress bus/metrics registry for every job it runs.
type Orchestrator struct {
	Catalog     CatalogProvider
	Persistence PersistenceSink
	Bus         *progress.Bus
	Metrics     *metrics.Collectors
	Log         clog.Logger
}

// New returns an Orchestrator; bus and mcs may be nil: a fresh bus is
// created, and metrics are registered against a private registry so
// collectors are never nil (internal/cpsat and internal/ga assume a
// non-nil *metrics.Collectors and dereference it unconditionally).
func New(cat CatalogProvider, sink PersistenceSink, bus *progress.Bus, mcs *metrics.Collectors) *Orchestrator {
	if bus == nil {
		bus = progress.New()
	}
	if mcs == nil {
		mcs = metrics.New(prometheus.NewRegistry())
	}
	return &Orchestrator{Catalog: cat, Persistence: sink, Bus: bus, Metrics: mcs, Log: clog.New("orchestrator")}
}

// Run executes one job end to end: load, cluster, CP-SAT, GA, RL, finalize.
// On a hard stage failure it returns the best assignment produced so far
// (Outcome.Failed=true) and does not call Persistence. On cancellation it
// returns immediately with no further progress published and no
// persistence call. A panic anywhere in the pipeline (each stage already
// isolates its own per-cluster/per-island/per-episode goroutines, but this
// is the backstop for anything above that) is recovered here and reported
// the same way any other stage failure is.
func (o *Orchestrator) Run(ctx context.Context, jobID string, opts Options) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := &model.StageFailureError{Stage: "orchestrator", Cause: fmt.Errorf("job %s: %v", jobID, r)}
			o.Log.Error("%v", err)
			if o.Metrics != nil {
				o.Metrics.RecordPanic("orchestrator")
			}
			o.Bus.Publish(jobID, progress.Event{Stage: "orchestrator", Status: progress.StatusFailed, Message: err.Error()})
			outcome = Outcome{Failed: true, FailureStage: "orchestrator", FailureErr: err}
		}
	}()

	monitor := resource.New(opts.ResourceCeilingBytes, opts.ResourceSampleInterval, nil)
	monitor.OnDowngrade(func(level resource.Level) {
		o.Log.Warn("job %s: resource level downgraded to %s", jobID, level)
		if o.Metrics != nil {
			o.Metrics.ResourceLevelGauge.Set(metrics.ResourceLevelToFloat(string(level)))
		}
	})
	monitor.Start()
	defer monitor.Stop()
	resLevel := monitor.Level

	cat, err := o.loadStage(ctx, jobID, opts)
	if err != nil {
		return o.fail(jobID, progress.StageLoad, err, model.NewAssignment())
	}
	if o.cancelled(jobID) {
		return Outcome{}
	}

	clusters := o.clusterStage(jobID, cat, opts)
	if o.cancelled(jobID) {
		return Outcome{}
	}

	domains := domain.Compute(cat)
	assignment, _ := o.cpsatStage(ctx, jobID, clusters, domains, cat, opts, resLevel)
	if o.cancelled(jobID) {
		return Outcome{}
	}

	gaResult := o.gaStage(ctx, jobID, assignment, cat, domains, opts, resLevel)
	if o.cancelled(jobID) {
		return Outcome{}
	}
	assignment = gaResult.Best

	rlResult := o.rlStage(ctx, jobID, assignment, cat, domains, opts, resLevel)
	if o.cancelled(jobID) {
		return Outcome{}
	}
	assignment = rlResult.Assignment

	report := o.finalizeStage(jobID, assignment, cat)

	outcome = Outcome{
		Assignment:   assignment,
		Report:       report,
		ClusterCount: len(clusters),
		GAResult:     gaResult,
		RLResult:     rlResult,
	}

	if o.Persistence != nil {
		if err := o.Persistence.Save(ctx, jobID, assignment, report); err != nil {
			o.Log.Error("job %s: persistence failed: %v", jobID, err)
			outcome.Failed = true
			outcome.FailureStage = "persistence"
			outcome.FailureErr = err
			return outcome
		}
	}

	o.Bus.Publish(jobID, progress.Event{Stage: progress.StageFinalize, FractionComplete: 1, Status: progress.StatusCompleted})
	return outcome
}

func (o *Orchestrator) cancelled(jobID string) bool {
	return o.Bus != nil && o.Bus.IsCancelled(jobID)
}

func (o *Orchestrator) fail(jobID, stage string, err error, partial model.Assignment) Outcome {
	o.Log.Error("job %s: stage %s failed: %v", jobID, stage, err)
	o.Bus.Publish(jobID, progress.Event{Stage: stage, Status: progress.StatusFailed, Message: err.Error()})
	return Outcome{Assignment: partial, Failed: true, FailureStage: stage, FailureErr: &model.StageFailureError{Stage: stage, Cause: err}}
}

func (o *Orchestrator) loadStage(ctx context.Context, jobID string, opts Options) (catalog.Catalog, error) {
	start := time.Now()
	o.Bus.Publish(jobID, progress.Event{Stage: progress.StageLoad, FractionComplete: progress.StageFraction(progress.StageLoad, 0), Status: progress.StatusRunning})
	cat, err := o.Catalog.Load(ctx, jobID)
	o.Metrics.ObserveStage(progress.StageLoad, time.Since(start))
	if err != nil {
		return catalog.Catalog{}, err
	}
	o.Bus.Publish(jobID, progress.Event{Stage: progress.StageLoad, FractionComplete: progress.StageFraction(progress.StageLoad, 1), Status: progress.StatusRunning})
	return cat, nil
}

func (o *Orchestrator) clusterStage(jobID string, cat catalog.Catalog, opts Options) map[string][]model.Course {
	start := time.Now()
	o.Bus.Publish(jobID, progress.Event{Stage: progress.StageCluster, FractionComplete: progress.StageFraction(progress.StageCluster, 0), Status: progress.StatusRunning})
	result := stage1.Cluster(cat.Courses(), opts.Stage1)
	o.Metrics.ObserveStage(progress.StageCluster, time.Since(start))
	o.Bus.Publish(jobID, progress.Event{Stage: progress.StageCluster, FractionComplete: progress.StageFraction(progress.StageCluster, 1), Status: progress.StatusRunning})
	return result.Clusters
}

func (o *Orchestrator) cpsatStage(ctx context.Context, jobID string, clusters map[string][]model.Course, domains domain.Table, cat catalog.Catalog, opts Options, resLevel func() resource.Level) (model.Assignment, []cpsat.ClusterOutcome) {
	start := time.Now()
	o.Bus.Publish(jobID, progress.Event{Stage: progress.StageCPSAT, FractionComplete: progress.StageFraction(progress.StageCPSAT, 0), Status: progress.StatusRunning})
	cpsatOpts := opts.CPSAT
	if len(cpsatOpts.Ladder) == 0 {
		cpsatOpts = cpsat.DefaultOptions()
	}
	assignment, outcomes := cpsat.Solve(ctx, clusters, domains, cat, cpsatOpts, resLevel, o.Metrics)
	o.Metrics.ObserveStage(progress.StageCPSAT, time.Since(start))
	o.Bus.Publish(jobID, progress.Event{Stage: progress.StageCPSAT, FractionComplete: progress.StageFraction(progress.StageCPSAT, 1), Status: progress.StatusRunning})
	return assignment, outcomes
}

func (o *Orchestrator) gaStage(ctx context.Context, jobID string, seed model.Assignment, cat catalog.Catalog, domains domain.Table, opts Options, resLevel func() resource.Level) ga.Result {
	start := time.Now()
	cfg := opts.GA
	if cfg.NumIslands == 0 {
		cfg = ga.DefaultConfig(cat.NumCourses())
	}
	result := ga.Run(ctx, seed, cat.Courses(), domains, cat, cfg, resLevel, o.Bus, jobID, o.Metrics)
	o.Metrics.ObserveStage(progress.StageGA, time.Since(start))
	if o.Metrics != nil {
		o.Metrics.GAFitness.Set(result.BestFitness)
	}
	return result
}

func (o *Orchestrator) rlStage(ctx context.Context, jobID string, assignment model.Assignment, cat catalog.Catalog, domains domain.Table, opts Options, resLevel func() resource.Level) rl.Result {
	start := time.Now()
	cfg := opts.RL
	if cfg.MaxEpisodes == 0 {
		cfg = rl.DefaultConfig()
	}
	result := rl.Run(ctx, assignment, cat.Courses(), domains, cat, cfg, resLevel, o.Bus, jobID, o.Metrics)
	o.Metrics.ObserveStage(progress.StageRL, time.Since(start))
	return result
}

func (o *Orchestrator) finalizeStage(jobID string, assignment model.Assignment, cat catalog.Catalog) qualitymetrics.Report {
	start := time.Now()
	report := qualitymetrics.Compute(assignment, cat, 0)
	o.Metrics.ObserveStage(progress.StageFinalize, time.Since(start))
	if o.Metrics != nil {
		for kind, n := range report.ConflictsByKind {
			o.Metrics.ConflictCount.WithLabelValues(string(kind)).Set(float64(n))
		}
	}
	return report
}
