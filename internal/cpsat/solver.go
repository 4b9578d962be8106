package cpsat

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/clog"
	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/metrics"
	"github.com/jgirmay/timetabled/internal/model"
	"github.com/jgirmay/timetabled/internal/resource"
)

var log = clog.New("cpsat")

// ClusterOutcome records how one cluster was solved: which strategy rung
// succeeded (empty if the greedy fallback had to run) and which sessions, if
// any, were left deferred. Panicked is set when the cluster's goroutine
// recovered from a panic instead of completing normally; DeferredCourses
// then lists every course the cluster owned, since none of them got a
// chance to be placed.
type ClusterOutcome struct {
	ClusterID       string
	Strategy        string // ladder rung name, or "" if greedy fallback ran
	UsedFallback    bool
	DeferredCourses []string
	Panicked        bool
}

// Options configures the solver; zero values fall back to the default
// ladder and a worker count derived from GOMAXPROCS.
type Options struct {
	Ladder  []Strategy
	Workers int
}

// DefaultOptions returns the documented default strategy ladder and a
// worker count sized from the host.
func DefaultOptions() Options {
	return Options{Ladder: DefaultLadder()}
}

// Solve drives Stage 2A over every cluster: the strategy ladder is tried in
// order, and if every rung fails the deterministic greedy fallback takes
// over and always returns a (possibly partial) placement. Clusters are
// solved concurrently; resLevel reports the resource monitor's current
// classification so the worker pool can shrink to one goroutine under
// Critical/Emergency pressure, per spec §4.5's parallelism and degrade
// rules.
func Solve(ctx context.Context, clusters map[string][]model.Course, domains domain.Table, cat catalog.Catalog, opts Options, resLevel func() resource.Level, mcs *metrics.Collectors) (model.Assignment, []ClusterOutcome) {
	if len(opts.Ladder) == 0 {
		opts.Ladder = DefaultLadder()
	}
	workers := workerCount(opts.Workers, resLevel)

	ids := make([]string, 0, len(clusters))
	for id := range clusters {
		ids = append(ids, id)
	}

	assignment := model.NewAssignment()
	var mu sync.Mutex
	outcomes := make([]ClusterOutcome, len(ids))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					err := &model.StageFailureError{Stage: "cpsat", Cause: fmt.Errorf("cluster %s: %v", id, r)}
					log.Error("%v", err)
					mcs.RecordPanic("cpsat")
					outcomes[i] = ClusterOutcome{ClusterID: id, Panicked: true, DeferredCourses: courseIDs(clusters[id])}
				}
			}()

			outcome := solveCluster(ctx, id, clusters[id], domains, opts.Ladder, cat, mcs)
			outcomes[i] = outcome.ClusterOutcome

			mu.Lock()
			mergeInto(&assignment, outcome.choices)
			mu.Unlock()
		}(i, id)
	}
	wg.Wait()

	if mcs != nil {
		deferredTotal := 0.0
		for _, o := range outcomes {
			for _, id := range o.DeferredCourses {
				if c, ok := cat.Course(id); ok {
					deferredTotal += float64(c.Duration)
				}
			}
		}
		mcs.DeferredSessions.Set(deferredTotal)
	}

	return assignment, outcomes
}

// solveCluster is an unexported helper whose public shape is ClusterOutcome;
// it additionally carries the winning per-course choices, which callers
// merge into the global assignment under lock.
type clusterSolveResult struct {
	ClusterOutcome
	choices map[string]domain.Option
}

func solveCluster(ctx context.Context, clusterID string, cluster []model.Course, domains domain.Table, ladder []Strategy, cat catalog.Catalog, mcs *metrics.Collectors) clusterSolveResult {
	for _, strat := range ladder {
		attempt := solveAttempt(ctx, cluster, domains, strat, cat)
		if mcs != nil {
			result := "fail"
			if attempt.ok {
				result = "success"
			}
			mcs.StrategySuccess.WithLabelValues(strat.Name, result).Inc()
		}
		if attempt.ok {
			return clusterSolveResult{
				ClusterOutcome: ClusterOutcome{ClusterID: clusterID, Strategy: strat.Name},
				choices:        attempt.choices,
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	greedy := Greedy(cluster, cat, newState(cat))
	return clusterSolveResult{
		ClusterOutcome: ClusterOutcome{
			ClusterID:       clusterID,
			UsedFallback:    true,
			DeferredCourses: greedy.Deferred,
		},
		choices: greedy.Choices,
	}
}

func courseIDs(courses []model.Course) []string {
	ids := make([]string, len(courses))
	for i, c := range courses {
		ids[i] = c.CourseID
	}
	return ids
}

func mergeInto(assignment *model.Assignment, choices map[string]domain.Option) {
	for courseID, opt := range choices {
		for i, sr := range opt.Sessions {
			assignment.Set(model.SessionKey{CourseID: courseID, SessionIndex: i}, sr)
		}
	}
}

// workerCount sizes the per-cluster worker pool: normal/warn allow up to
// max(2, GOMAXPROCS/2) concurrent clusters; critical/emergency serialize to
// one, trading wall-clock for headroom.
func workerCount(configured int, resLevel func() resource.Level) int {
	if resLevel != nil {
		switch resLevel() {
		case resource.LevelCritical, resource.LevelEmergency:
			return 1
		}
	}
	if configured > 0 {
		return configured
	}
	w := runtime.GOMAXPROCS(0) / 2
	if w < 2 {
		w = 2
	}
	return w
}
