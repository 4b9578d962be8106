// Package stage1 decomposes the full course list into independent
// sub-problems via weighted Louvain community detection over a sparse
// course-conflict graph, then enforces cluster size bounds.
package stage1

import (
	"runtime"
	"sync"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/model"
)

// Weights tunes the conflict-graph edge formula.
type Weights struct {
	FacultyMatch    float64 // dominant term when two courses share a faculty
	StudentOverlap  float64 // alpha: coefficient on normalized student-overlap
	DeptMatch       float64 // beta: bonus when departments match
	SparsityThresh  float64 // edges below this combined weight are dropped
}

// DefaultWeights returns the documented defaults (+10.0 faculty match,
// sparsity threshold 0.5).
func DefaultWeights() Weights {
	return Weights{
		FacultyMatch:   10.0,
		StudentOverlap: 1.0,
		DeptMatch:      0.25,
		SparsityThresh: 0.5,
	}
}

// edge is one sparse adjacency entry: node j and the combined weight to it.
type edge struct {
	to     int
	weight float64
}

// graph is an adjacency-list representation over course indices.
type graph struct {
	nodes []model.Course
	adj   [][]edge
}

// inverted indexes let BuildGraph find candidate neighbor pairs in time
// proportional to shared enrollment/teaching load rather than O(n^2).
type invertedIndexes struct {
	byStudent map[string][]int // student id -> course node indices
	byFaculty map[string][]int
}

func buildInvertedIndexes(courses []model.Course) invertedIndexes {
	idx := invertedIndexes{
		byStudent: make(map[string][]int),
		byFaculty: make(map[string][]int),
	}
	for i, c := range courses {
		for _, sid := range c.StudentIDs {
			idx.byStudent[sid] = append(idx.byStudent[sid], i)
		}
		idx.byFaculty[c.FacultyID] = append(idx.byFaculty[c.FacultyID], i)
	}
	return idx
}

// BuildGraph constructs the sparse course-conflict graph in parallel: a
// worker pool processes disjoint chunks of node indices, each worker using
// the shared inverted indexes to enumerate only candidate neighbors instead
// of scanning every other course.
func BuildGraph(courses []model.Course, w Weights, workers int) *graph {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	n := len(courses)
	g := &graph{nodes: courses, adj: make([][]edge, n)}
	if n == 0 {
		return g
	}

	idx := buildInvertedIndexes(courses)
	studentSets := make([]map[string]bool, n)
	for i, c := range courses {
		set := make(map[string]bool, len(c.StudentIDs))
		for _, sid := range c.StudentIDs {
			set[sid] = true
		}
		studentSets[i] = set
	}

	chunkSize := (n + workers - 1) / workers
	if chunkSize < 1 {
		chunkSize = 1
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				g.adj[i] = edgesFor(i, courses, idx, studentSets, w)
			}
		}(start, end)
	}
	wg.Wait()

	return g
}

func edgesFor(i int, courses []model.Course, idx invertedIndexes, studentSets []map[string]bool, w Weights) []edge {
	candidates := make(map[int]bool)
	for _, sid := range courses[i].StudentIDs {
		for _, j := range idx.byStudent[sid] {
			if j != i {
				candidates[j] = true
			}
		}
	}
	for _, j := range idx.byFaculty[courses[i].FacultyID] {
		if j != i {
			candidates[j] = true
		}
	}

	var edges []edge
	for j := range candidates {
		weight := edgeWeight(courses[i], courses[j], studentSets[i], studentSets[j], w)
		if weight >= w.SparsityThresh {
			edges = append(edges, edge{to: j, weight: weight})
		}
	}
	return edges
}

func edgeWeight(a, b model.Course, aStudents, bStudents map[string]bool, w Weights) float64 {
	weight := 0.0
	if a.FacultyID != "" && a.FacultyID == b.FacultyID {
		weight += w.FacultyMatch
		return weight // dominant term short-circuits further computation
	}
	overlap := intersectionSize(aStudents, bStudents)
	if overlap > 0 {
		minSize := len(aStudents)
		if len(bStudents) < minSize {
			minSize = len(bStudents)
		}
		if minSize > 0 {
			weight += w.StudentOverlap * float64(overlap) / float64(minSize)
		}
	}
	if a.DeptID != "" && a.DeptID == b.DeptID {
		weight += w.DeptMatch
	}
	return weight
}

func intersectionSize(a, b map[string]bool) int {
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	count := 0
	for k := range small {
		if big[k] {
			count++
		}
	}
	return count
}
