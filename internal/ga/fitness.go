package ga

import (
	"crypto/sha1"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/model"
	"github.com/jgirmay/timetabled/internal/qualitymetrics"
)

// FitnessBackend evaluates a whole island population in one call, so a
// batched implementation (GPU) can amortize setup cost across individuals.
type FitnessBackend interface {
	Available() bool
	Evaluate(population []model.Assignment, courses []model.Course, cat catalog.Catalog) []float64
}

// fitness scores a single individual per spec §4.6: infeasible individuals
// are scored strictly below every feasible one, proportional to their
// violation count.
func fitness(a model.Assignment, cat catalog.Catalog) float64 {
	report := qualitymetrics.Compute(a, cat, 1)
	violations := 0
	for _, n := range report.ConflictsByKind {
		violations += n
	}
	if violations > 0 {
		return -1000 * float64(violations)
	}
	return 0.3*report.FacultyPref + 0.3*report.Compactness + 0.2*report.RoomUtil + 0.2*report.WorkloadBalance
}

// cpuBackend evaluates fitness directly, with a hash-keyed cache capped at
// 500 entries per island and protected by a mutex, per spec §4.6's CPU
// fallback path. Each island owns its own cache instance.
type cpuBackend struct {
	mu    sync.Mutex
	cache map[string]float64
}

func newCPUBackend() *cpuBackend {
	return &cpuBackend{cache: make(map[string]float64)}
}

func (b *cpuBackend) Available() bool { return true }

func (b *cpuBackend) Evaluate(population []model.Assignment, courses []model.Course, cat catalog.Catalog) []float64 {
	out := make([]float64, len(population))
	for i, ind := range population {
		key := fingerprint(ind)

		b.mu.Lock()
		v, hit := b.cache[key]
		b.mu.Unlock()
		if hit {
			out[i] = v
			continue
		}

		v = fitness(ind, cat)

		b.mu.Lock()
		if len(b.cache) >= 500 {
			for k := range b.cache {
				delete(b.cache, k)
				break
			}
		}
		b.cache[key] = v
		b.mu.Unlock()

		out[i] = v
	}
	return out
}

// gpuBackend is an unfilled tensor-batch backend: no GPU/tensor library
// ships in the retrieved corpus, so Available always reports false and
// every caller silently falls back to cpuBackend, per spec §4.6's
// "GPU feasibility is probed non-blockingly; failure silently falls back
// to CPU."
type gpuBackend struct{}

func (gpuBackend) Available() bool { return false }

func (gpuBackend) Evaluate(population []model.Assignment, courses []model.Course, cat catalog.Catalog) []float64 {
	panic("gpu backend unavailable: caller must check Available() first")
}

// fingerprint hashes an individual's sorted (session, slot, room) triples
// into a stable cache key.
func fingerprint(a model.Assignment) string {
	type triple struct {
		courseID     string
		sessionIndex int
		slotID       string
		roomID       string
	}
	var triples []triple
	a.Each(func(key model.SessionKey, sr model.SlotRoom) {
		triples = append(triples, triple{key.CourseID, key.SessionIndex, sr.SlotID, sr.RoomID})
	})
	sort.Slice(triples, func(i, j int) bool {
		if triples[i].courseID != triples[j].courseID {
			return triples[i].courseID < triples[j].courseID
		}
		return triples[i].sessionIndex < triples[j].sessionIndex
	})

	h := sha1.New()
	for _, t := range triples {
		h.Write([]byte(t.courseID))
		var idx [8]byte
		binary.LittleEndian.PutUint64(idx[:], uint64(t.sessionIndex))
		h.Write(idx[:])
		h.Write([]byte(t.slotID))
		h.Write([]byte(t.roomID))
	}
	return string(h.Sum(nil))
}

// batchEvaluate picks GPU when available and the batch is large enough per
// spec (population*courses >= 200), else falls back to the island's cached
// CPU backend.
func batchEvaluate(gpu FitnessBackend, cpu *cpuBackend, population []model.Assignment, courses []model.Course, cat catalog.Catalog) []float64 {
	if gpu != nil && gpu.Available() && len(population)*len(courses) >= 200 {
		return gpu.Evaluate(population, courses, cat)
	}
	return cpu.Evaluate(population, courses, cat)
}
