// Package ga refines the concatenated Stage 2A assignment with an
// island-model genetic algorithm: thread-based parallel islands, ring
// migration, smart crossover, annealed mutation, and either batched GPU or
// cached CPU fitness evaluation.
package ga

import (
	"runtime"

	"github.com/jgirmay/timetabled/internal/resource"
)

// Config bundles Stage 2B's tunables; zero values fall back to documented
// defaults.
type Config struct {
	NumIslands        int
	PopulationPerIsland int // 0 => derived from host tier and course count
	Generations       int
	MigrationInterval int
	EarlyStopPatience int
	MutationRateStart float64
	MutationRateEnd   float64
	Seed              int64
}

// DefaultConfig returns the documented defaults, with PopulationPerIsland
// sized from the host's apparent tier and bounded so population*numCourses
// never exceeds 200,000.
func DefaultConfig(numCourses int) Config {
	return Config{
		NumIslands:        4,
		PopulationPerIsland: populationForTier(numCourses),
		Generations:       20,
		MigrationInterval: 5,
		EarlyStopPatience: 5,
		MutationRateStart: 0.1,
		MutationRateEnd:   0.02,
	}
}

const maxPopulationTimesCourses = 200_000

// populationForTier estimates laptop/workstation/server scale from the
// number of usable cores, then clamps so population*courses stays within
// budget.
func populationForTier(numCourses int) int {
	cores := runtime.NumCPU()
	tier := 3
	switch {
	case cores >= 16:
		tier = 16
	case cores >= 8:
		tier = 8
	}
	if numCourses <= 0 {
		return tier
	}
	if bound := maxPopulationTimesCourses / numCourses; bound < tier {
		if bound < 1 {
			bound = 1
		}
		return bound
	}
	return tier
}

// mutationRate anneals linearly from Start to End across Generations.
func (c Config) mutationRate(generation int) float64 {
	if c.Generations <= 1 {
		return c.MutationRateEnd
	}
	t := float64(generation) / float64(c.Generations-1)
	if t > 1 {
		t = 1
	}
	return c.MutationRateStart + t*(c.MutationRateEnd-c.MutationRateStart)
}

// populationCapForLevel lets the resource monitor's downgrade callback
// shrink the island population without restarting the run.
func populationCapForLevel(base int, level resource.Level) int {
	switch level {
	case resource.LevelCritical:
		half := base / 2
		if half < 1 {
			half = 1
		}
		return half
	case resource.LevelEmergency:
		return 1
	default:
		return base
	}
}

// islandCountForLevel is populationCapForLevel's counterpart for the number
// of islands themselves: under sustained Critical/Emergency pressure the run
// also drops whole islands rather than only shrinking each one's population.
func islandCountForLevel(current int, level resource.Level) int {
	switch level {
	case resource.LevelCritical:
		half := current / 2
		if half < 1 {
			half = 1
		}
		return half
	case resource.LevelEmergency:
		return 1
	default:
		return current
	}
}
