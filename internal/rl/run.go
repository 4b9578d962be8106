package rl

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/clog"
	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/metrics"
	"github.com/jgirmay/timetabled/internal/model"
	"github.com/jgirmay/timetabled/internal/progress"
	"github.com/jgirmay/timetabled/internal/qualitymetrics"
	"github.com/jgirmay/timetabled/internal/resource"
)

var log = clog.New("rl")

// episodeTimeout bounds a single episode's evaluation; runEpisode is pure
// CPU work and should never approach this, but the timeout keeps one
// pathological episode from stalling its batch.
const episodeTimeout = 5 * time.Second

// Result is what Stage 3 hands back to the orchestrator.
type Result struct {
	Assignment       model.Assignment
	EpisodesRun      int
	ConflictsBefore  int
	ConflictsAfter   int
	StoppedEarly     bool // reached zero conflicts before MaxEpisodes
	ResourceHalted   bool
	Skipped          bool // residual conflicts were already below SkipBelowConflicts
	PanickedEpisodes int  // episodes that recovered from a panic and were dropped from the batch
}

// Run repairs the residual conflicts in assignment with episodic,
// epsilon-greedy Q-learning, batching conflicting courses for concurrent
// evaluation per spec §4.7.
func Run(
	ctx context.Context,
	assignment model.Assignment,
	courses []model.Course,
	domains domain.Table,
	cat catalog.Catalog,
	cfg Config,
	resLevel func() resource.Level,
	bus *progress.Bus,
	jobID string,
	mcs *metrics.Collectors,
) Result {
	cfg = withDefaults(cfg)
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	working := assignment.Clone()
	report := qualitymetrics.Compute(working, cat, 0)
	conflictsBefore := totalConflicts(report)

	if conflictsBefore < cfg.SkipBelowConflicts {
		return Result{Assignment: working, ConflictsBefore: conflictsBefore, ConflictsAfter: conflictsBefore, Skipped: true}
	}

	courseByID := make(map[string]model.Course, len(courses))
	for _, c := range courses {
		courseByID[c.CourseID] = c
	}

	q := newQTable()
	ctxCache := newContextCache()

	episodesRun := 0
	conflictsNow := conflictsBefore
	resourceHalted := false
	stoppedEarly := false
	panickedEpisodes := 0

	for episodesRun < cfg.MaxEpisodes && conflictsNow > 0 {
		if ctx.Err() != nil {
			break
		}
		if bus != nil && bus.IsCancelled(jobID) {
			break
		}
		if resLevel != nil && resLevel() == resource.LevelEmergency {
			resourceHalted = true
			break
		}

		snap := buildSnapshot(working, cat)
		conflicting := conflictingCourses(report, courseByID)
		if len(conflicting) == 0 {
			break
		}
		groupCtx, cancelGroup := context.WithTimeout(ctx, superclusterTimeout)
		conflicting = orderByGroups(groupBySharedStudents(groupCtx, conflicting))
		cancelGroup()

		batchSize := currentBatchSize(resLevel)
		remaining := cfg.MaxEpisodes - episodesRun
		if batchSize > remaining {
			batchSize = remaining
		}
		batch := pickBatch(conflicting, batchSize, episodesRun)

		results, panicsInBatch := runBatch(ctx, batch, domains, cat, working, snap, ctxCache, q, cfg, episodesRun, rng, mcs)
		episodesRun += len(batch)
		panickedEpisodes += panicsInBatch

		for _, r := range results {
			if r.Accepted {
				applyOption(&working, courseByID[r.CourseID], r.NewOption)
			}
		}

		report = qualitymetrics.Compute(working, cat, 0)
		conflictsNow = totalConflicts(report)

		if mcs != nil {
			for kind, n := range report.ConflictsByKind {
				mcs.ConflictCount.WithLabelValues(string(kind)).Set(float64(n))
			}
		}
		if bus != nil {
			frac := float64(episodesRun) / float64(cfg.MaxEpisodes)
			bus.Publish(jobID, progress.Event{
				Stage:            progress.StageRL,
				FractionComplete: progress.StageFraction(progress.StageRL, frac),
				Status:           progress.StatusRunning,
			})
		}
	}

	if conflictsNow == 0 {
		stoppedEarly = episodesRun < cfg.MaxEpisodes
	}

	return Result{
		Assignment:       working,
		EpisodesRun:      episodesRun,
		ConflictsBefore:  conflictsBefore,
		ConflictsAfter:   conflictsNow,
		StoppedEarly:     stoppedEarly,
		ResourceHalted:   resourceHalted,
		PanickedEpisodes: panickedEpisodes,
	}
}

// runBatch evaluates one course per goroutine, each bounded by
// episodeTimeout, and returns whatever results completed.
func runBatch(
	ctx context.Context,
	batch []model.Course,
	domains domain.Table,
	cat catalog.Catalog,
	working model.Assignment,
	snap *snapshot,
	ctxCache *contextCache,
	q *qtable,
	cfg Config,
	episodesSoFar int,
	rng *rand.Rand,
	mcs *metrics.Collectors,
) ([]episodeResult, int) {
	type out struct {
		result   episodeResult
		ok       bool
		panicked bool
	}
	outs := make([]out, len(batch))

	done := make(chan int, len(batch))
	for i, course := range batch {
		i, course := i, course
		// Each episode gets its own rng derived from the shared one so
		// concurrent goroutines never race on *rand.Rand state.
		episodeRng := rand.New(rand.NewSource(rng.Int63()))
		currentOpt := currentOptionFor(course, working)

		go func() {
			type episodeOutcome struct {
				result   episodeResult
				panicked bool
			}
			resultCh := make(chan episodeOutcome, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						err := &model.StageFailureError{Stage: "rl", Cause: fmt.Errorf("episode course %s: %v", course.CourseID, r)}
						log.Error("%v", err)
						mcs.RecordPanic("rl")
						resultCh <- episodeOutcome{panicked: true}
					}
				}()
				resultCh <- episodeOutcome{result: runEpisode(course, currentOpt, domains, cat, snap, ctxCache, q, cfg, episodesSoFar+i, episodeRng)}
			}()

			select {
			case o := <-resultCh:
				outs[i] = out{result: o.result, ok: !o.panicked, panicked: o.panicked}
			case <-time.After(episodeTimeout):
				outs[i] = out{ok: false}
			case <-ctx.Done():
				outs[i] = out{ok: false}
			}
			done <- i
		}()
	}
	for range batch {
		<-done
	}

	results := make([]episodeResult, 0, len(batch))
	panicked := 0
	for _, o := range outs {
		if o.panicked {
			panicked++
			continue
		}
		if o.ok {
			results = append(results, o.result)
		}
	}
	return results, panicked
}

func totalConflicts(report qualitymetrics.Report) int {
	total := 0
	for _, n := range report.ConflictsByKind {
		total += n
	}
	return total
}

// conflictingCourses returns the distinct, deterministically ordered
// courses named by report's conflict records.
func conflictingCourses(report qualitymetrics.Report, courseByID map[string]model.Course) []model.Course {
	seen := make(map[string]bool)
	var out []model.Course
	for _, c := range report.Conflicts {
		if seen[c.CourseID] || c.CourseID == "" {
			continue
		}
		seen[c.CourseID] = true
		if course, ok := courseByID[c.CourseID]; ok {
			out = append(out, course)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out
}

// pickBatch selects up to n courses from conflicting, rotating the start
// offset by round across calls so repeated batches sweep the whole list
// rather than always favoring its front.
func pickBatch(conflicting []model.Course, n, round int) []model.Course {
	if n <= 0 || len(conflicting) == 0 {
		return nil
	}
	if n > len(conflicting) {
		n = len(conflicting)
	}
	start := round % len(conflicting)
	out := make([]model.Course, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, conflicting[(start+i)%len(conflicting)])
	}
	return out
}

// currentOptionFor reconstructs a course's present option straight from the
// assignment, so runEpisode can compare candidate actions against it.
func currentOptionFor(course model.Course, assignment model.Assignment) domain.Option {
	sessions := make([]model.SlotRoom, course.Duration)
	roomID := ""
	for i := 0; i < course.Duration; i++ {
		sr, ok := assignment.Get(model.SessionKey{CourseID: course.CourseID, SessionIndex: i})
		if !ok {
			return domain.Option{}
		}
		sessions[i] = sr
		roomID = sr.RoomID
	}
	return domain.Option{RoomID: roomID, Sessions: sessions}
}

// applyOption overwrites a course's sessions in assignment with opt's.
func applyOption(assignment *model.Assignment, course model.Course, opt domain.Option) {
	for i, sr := range opt.Sessions {
		assignment.Set(model.SessionKey{CourseID: course.CourseID, SessionIndex: i}, sr)
	}
}

// currentBatchSize stands in for a free-RAM sample: lacking the
// orchestrator's configured ceiling here, it assumes an 8GB ceiling against
// the runtime's own sampler, falling back to the larger batch when no
// resource level function is wired at all (e.g. in isolated tests).
func currentBatchSize(resLevel func() resource.Level) int {
	if resLevel == nil {
		return 16
	}
	const assumedCeiling = 8 * 1024 * 1024 * 1024
	return adaptiveBatchSize(assumedCeiling, resource.DefaultSampler())
}
