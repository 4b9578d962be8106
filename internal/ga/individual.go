package ga

import (
	"math/rand"

	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/model"
)

// seedPopulation builds one island's starting population: the CP-SAT seed
// (completed against domains for any course it left unplaced) as the first
// individual, and size-1 perturbations of it for the rest.
func seedPopulation(seed model.Assignment, courses []model.Course, domains domain.Table, size int, rng *rand.Rand) []model.Assignment {
	base := fillMissing(seed, courses, domains)
	pop := make([]model.Assignment, size)
	pop[0] = base.Clone()
	for i := 1; i < size; i++ {
		frac := 0.01 + rng.Float64()*0.19 // 1..20%
		pop[i] = perturb(base, courses, domains, frac, rng)
	}
	return pop
}

// fillMissing places any course the incoming assignment left unassigned
// using its best-scoring domain option, so every individual covers every
// course (feasibility is still checked by fitness, not by this step).
func fillMissing(a model.Assignment, courses []model.Course, domains domain.Table) model.Assignment {
	out := a.Clone()
	for _, c := range courses {
		if _, ok := out.Get(model.SessionKey{CourseID: c.CourseID, SessionIndex: 0}); ok {
			continue
		}
		opts := domains[c.CourseID]
		if len(opts) == 0 {
			continue
		}
		setOption(&out, c.CourseID, opts[0])
	}
	return out
}

func setOption(a *model.Assignment, courseID string, opt domain.Option) {
	for i, sr := range opt.Sessions {
		a.Set(model.SessionKey{CourseID: courseID, SessionIndex: i}, sr)
	}
}

// perturb swaps a random fraction of courses' (slot, room) choices for an
// option drawn at random from their own valid domain; the draw may return
// the option the course already holds.
func perturb(a model.Assignment, courses []model.Course, domains domain.Table, fraction float64, rng *rand.Rand) model.Assignment {
	out := a.Clone()
	for _, c := range courses {
		opts := domains[c.CourseID]
		if len(opts) < 2 {
			continue
		}
		if rng.Float64() > fraction {
			continue
		}
		setOption(&out, c.CourseID, opts[rng.Intn(len(opts))])
	}
	return out
}

// mutate is perturb's per-generation counterpart: each course independently
// has probability rate of being reassigned to another of its domain
// options.
func mutate(a model.Assignment, courses []model.Course, domains domain.Table, rate float64, rng *rand.Rand) model.Assignment {
	return perturb(a, courses, domains, rate, rng)
}

// tournamentSelect runs a size-3 tournament and returns the index of the
// fittest contestant.
func tournamentSelect(fitnesses []float64, rng *rand.Rand) int {
	best := rng.Intn(len(fitnesses))
	for i := 0; i < 2; i++ {
		c := rng.Intn(len(fitnesses))
		if fitnesses[c] > fitnesses[best] {
			best = c
		}
	}
	return best
}

// crossoverBias is the probability mass a key's pick gives to the fitter
// parent when both parents have a value for that key. Kept below 1.0 so a
// weaker parent's genuinely better placement for a specific course can
// still occasionally survive into the child.
const crossoverBias = 0.75

// smartCrossover is uniform over every course key, biased toward whichever
// parent's value causes fewer conflicts for that key: the parent with the
// better overall fitness wins more often, since a single key's local
// conflict count is not itself tracked per-course by qualitymetrics.
func smartCrossover(a, b model.Assignment, aFitness, bFitness float64, courses []model.Course, rng *rand.Rand) model.Assignment {
	aIsFitter := aFitness >= bFitness
	pFitter := crossoverBias
	if aFitness == bFitness {
		pFitter = 0.5 // a true tie carries no bias either way
	}

	child := model.NewAssignment()
	for _, c := range courses {
		_, okA := a.Get(model.SessionKey{CourseID: c.CourseID, SessionIndex: 0})
		_, okB := b.Get(model.SessionKey{CourseID: c.CourseID, SessionIndex: 0})

		var useA bool
		switch {
		case !okA && okB:
			useA = false
		case okA && !okB:
			useA = true
		default:
			pickFitter := rng.Float64() < pFitter
			useA = pickFitter == aIsFitter
		}

		src := a
		if !useA {
			src = b
		}
		copyCourse(src, &child, c)
	}
	return child
}

func copyCourse(src model.Assignment, dst *model.Assignment, course model.Course) {
	for i := 0; i < course.Duration; i++ {
		key := model.SessionKey{CourseID: course.CourseID, SessionIndex: i}
		if sr, ok := src.Get(key); ok {
			dst.Set(key, sr)
		}
	}
}
