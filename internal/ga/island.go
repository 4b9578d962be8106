package ga

import (
	"math/rand"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/model"
)

// island is one independently-evolving subpopulation. Its cache and rng
// are never shared with another island.
type island struct {
	id          int
	population  []model.Assignment
	fitnesses   []float64
	cpu         *cpuBackend
	rng         *rand.Rand
	bestFitness float64
	staleFor    int // generations since bestFitness last improved
}

func newIsland(id int, seed model.Assignment, courses []model.Course, domains domain.Table, size int, rng *rand.Rand) *island {
	population := seedPopulation(seed, courses, domains, size, rng)
	return &island{
		id:          id,
		population:  population,
		fitnesses:   make([]float64, len(population)), // valid-length zero scores until the first evaluate succeeds
		cpu:         newCPUBackend(),
		rng:         rng,
		bestFitness: -1e18,
	}
}

// evaluate refreshes fitnesses for the current population, using gpu when
// it is available and the batch clears the configured size threshold.
func (isl *island) evaluate(gpu FitnessBackend, courses []model.Course, cat catalog.Catalog) {
	isl.fitnesses = batchEvaluate(gpu, isl.cpu, isl.population, courses, cat)
}

// step runs one generation: elitism, tournament selection, smart crossover,
// mutation, then an atomic population replacement. It updates staleness
// tracking for early stopping.
func (isl *island) step(courses []model.Course, domains domain.Table, mutationRate float64) {
	n := len(isl.population)
	if n == 0 {
		return
	}

	bestIdx := argmax(isl.fitnesses)
	if isl.fitnesses[bestIdx] > isl.bestFitness {
		isl.bestFitness = isl.fitnesses[bestIdx]
		isl.staleFor = 0
	} else {
		isl.staleFor++
	}

	next := make([]model.Assignment, 0, n)
	next = append(next, isl.population[bestIdx].Clone()) // elitism, e=1

	for len(next) < n {
		p1 := tournamentSelect(isl.fitnesses, isl.rng)
		p2 := tournamentSelect(isl.fitnesses, isl.rng)
		child := smartCrossover(isl.population[p1], isl.population[p2], isl.fitnesses[p1], isl.fitnesses[p2], courses, isl.rng)
		child = mutate(child, courses, domains, mutationRate, isl.rng)
		next = append(next, child)
	}

	isl.population = next // single assignment: no reader ever observes a torn population
}

// best returns the island's current fittest individual and its score.
func (isl *island) best() (model.Assignment, float64) {
	bestIdx := argmax(isl.fitnesses)
	return isl.population[bestIdx], isl.fitnesses[bestIdx]
}

// worstIndex returns the index of the island's current least-fit individual.
func (isl *island) worstIndex() int {
	worst := 0
	for i, f := range isl.fitnesses {
		if f < isl.fitnesses[worst] {
			worst = i
		}
	}
	return worst
}

func argmax(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best
}
