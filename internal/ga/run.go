package ga

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/clog"
	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/metrics"
	"github.com/jgirmay/timetabled/internal/model"
	"github.com/jgirmay/timetabled/internal/progress"
	"github.com/jgirmay/timetabled/internal/resource"
)

var log = clog.New("ga")

// Result is Stage 2B's output: the globally best individual found across
// every island, plus bookkeeping the orchestrator surfaces in its final
// metrics record.
type Result struct {
	Best            model.Assignment
	BestFitness     float64
	GenerationsRun  int
	StoppedEarly    bool
	ResourceHalted  bool
	PanickedIslands int // islands that recovered from a panic during the run
}

// Run refines seed with an island-model GA. Islands evolve concurrently
// over a thread pool (never separate processes, so the read-only catalog
// and domain table are shared without copying); ring migration happens
// only after every island has finished a generation, forming the
// synchronization barrier between rounds.
func Run(ctx context.Context, seed model.Assignment, courses []model.Course, domains domain.Table, cat catalog.Catalog, cfg Config, resLevel func() resource.Level, bus *progress.Bus, jobID string, mcs *metrics.Collectors) Result {
	cfg = withDefaults(cfg)

	popSize := cfg.PopulationPerIsland
	if resLevel != nil {
		popSize = populationCapForLevel(popSize, resLevel())
	}
	if popSize < 2 {
		popSize = 2
	}

	seedBase := rand.NewSource(cfg.Seed).Int63()
	islands := make([]*island, cfg.NumIslands)
	for i := range islands {
		rng := rand.New(rand.NewSource(seedBase + int64(i)*1_000_003))
		islands[i] = newIsland(i, seed, courses, domains, popSize, rng)
	}

	gpu := gpuBackend{}
	result := Result{}
	var panicked int32

	for gen := 0; gen < cfg.Generations; gen++ {
		if ctx.Err() != nil {
			break
		}
		if bus != nil && bus.IsCancelled(jobID) {
			break
		}
		if resLevel != nil {
			switch level := resLevel(); level {
			case resource.LevelCritical, resource.LevelEmergency:
				result.ResourceHalted = true
				target := islandCountForLevel(cfg.NumIslands, level)
				if target < len(islands) {
					islands = retireIslands(islands, target)
				}
			}
		}

		evaluateAll(islands, gpu, courses, cat, mcs, &panicked)

		rate := cfg.mutationRate(gen)
		stepAll(islands, courses, domains, rate, mcs, &panicked)

		if (gen+1)%cfg.MigrationInterval == 0 {
			ringMigrate(islands)
		}

		result.GenerationsRun = gen + 1

		if bus != nil {
			bus.Publish(jobID, progress.Event{
				Stage:            progress.StageGA,
				FractionComplete: progress.StageFraction(progress.StageGA, float64(gen+1)/float64(cfg.Generations)),
				Status:           progress.StatusRunning,
			})
		}

		if result.ResourceHalted || allStale(islands, cfg.EarlyStopPatience) {
			result.StoppedEarly = true
			break
		}
	}

	evaluateAll(islands, gpu, courses, cat, mcs, &panicked)
	result.Best, result.BestFitness = globalBest(islands)
	result.PanickedIslands = int(atomic.LoadInt32(&panicked))
	if mcs != nil {
		mcs.GAFitness.Set(result.BestFitness)
	}
	return result
}

func withDefaults(cfg Config) Config {
	if cfg.NumIslands <= 0 {
		cfg.NumIslands = 4
	}
	if cfg.PopulationPerIsland <= 0 {
		cfg.PopulationPerIsland = 3
	}
	if cfg.Generations <= 0 {
		cfg.Generations = 20
	}
	if cfg.MigrationInterval <= 0 {
		cfg.MigrationInterval = 5
	}
	if cfg.EarlyStopPatience <= 0 {
		cfg.EarlyStopPatience = 5
	}
	if cfg.MutationRateStart == 0 {
		cfg.MutationRateStart = 0.1
	}
	if cfg.MutationRateEnd == 0 {
		cfg.MutationRateEnd = 0.02
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg
}

func evaluateAll(islands []*island, gpu FitnessBackend, courses []model.Course, cat catalog.Catalog, mcs *metrics.Collectors, panicked *int32) {
	var wg sync.WaitGroup
	for _, isl := range islands {
		wg.Add(1)
		go func(isl *island) {
			defer wg.Done()
			defer recoverIsland(isl, "evaluate", mcs, panicked)
			isl.evaluate(gpu, courses, cat)
		}(isl)
	}
	wg.Wait()
}

func stepAll(islands []*island, courses []model.Course, domains domain.Table, mutationRate float64, mcs *metrics.Collectors, panicked *int32) {
	var wg sync.WaitGroup
	for _, isl := range islands {
		wg.Add(1)
		go func(isl *island) {
			defer wg.Done()
			defer recoverIsland(isl, "step", mcs, panicked)
			isl.step(courses, domains, mutationRate)
		}(isl)
	}
	wg.Wait()
}

// recoverIsland catches a panic from one island's generation work, leaving
// its population/fitnesses at their last-good state rather than letting the
// panic bring down the whole run. phase names which of evaluate/step failed.
func recoverIsland(isl *island, phase string, mcs *metrics.Collectors, panicked *int32) {
	if r := recover(); r != nil {
		err := &model.StageFailureError{Stage: "ga", Cause: fmt.Errorf("island %d %s: %v", isl.id, phase, r)}
		log.Error("%v", err)
		mcs.RecordPanic("ga")
		atomic.AddInt32(panicked, 1)
	}
}

// ringMigrate sends island i's best individual into island (i+1)%N in
// place of its worst, reading every island's pre-migration best before any
// island's population is mutated so migrations within one round never
// chain.
func ringMigrate(islands []*island) {
	n := len(islands)
	if n < 2 {
		return
	}
	bests := make([]model.Assignment, n)
	for i, isl := range islands {
		best, _ := isl.best()
		bests[i] = best.Clone()
	}
	for i, isl := range islands {
		target := islands[(i+1)%n]
		worst := target.worstIndex()
		target.population[worst] = bests[i]
	}
}

// retireIslands shrinks islands down to target, dropping the ones with the
// lowest bestFitness first. This is one-way: once dropped an island never
// comes back, even if the resource level later improves, matching the
// population cap's own irreversible-for-the-run shrink.
func retireIslands(islands []*island, target int) []*island {
	if target >= len(islands) {
		return islands
	}
	if target < 1 {
		target = 1
	}
	kept := append([]*island(nil), islands...)
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].bestFitness > kept[j].bestFitness })
	kept = kept[:target]
	log.Warn("dropped %d island(s) under sustained resource pressure, %d remain", len(islands)-target, target)
	return kept
}

func allStale(islands []*island, patience int) bool {
	for _, isl := range islands {
		if isl.staleFor < patience {
			return false
		}
	}
	return true
}

func globalBest(islands []*island) (model.Assignment, float64) {
	var best model.Assignment
	bestFitness := -1e18
	for _, isl := range islands {
		candidate, f := isl.best()
		if f > bestFitness {
			bestFitness = f
			best = candidate
		}
	}
	return best, bestFitness
}
