package stage1

import (
	"fmt"
	"sort"

	"github.com/jgirmay/timetabled/internal/model"
)

// Options configures clustering; zero values fall back to spec defaults.
type Options struct {
	Weights          Weights
	MaxClusterSize   int // default 50
	MinClusterSize   int // default 5
	LouvainMaxIters  int // default 50
	Workers          int // graph-build worker pool width; default NumCPU
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Weights:         DefaultWeights(),
		MaxClusterSize:  50,
		MinClusterSize:  5,
		LouvainMaxIters: 50,
	}
}

// Result is the stage-1 contract output: cluster_id -> courses, preserving
// every course exactly once.
type Result struct {
	Clusters map[string][]model.Course
	// UsedFallback is true if Louvain errored or was unavailable and the
	// hash-bucket fail-safe ran instead.
	UsedFallback bool
}

// Cluster partitions courses into bounded clusters. It never returns an
// error for a non-empty input: Louvain failures degrade to the hash-bucket
// fallback rather than propagating, per spec §4.4 fail-safes.
func Cluster(courses []model.Course, opts Options) Result {
	if opts.MaxClusterSize <= 0 {
		opts.MaxClusterSize = 50
	}
	if opts.MinClusterSize <= 0 {
		opts.MinClusterSize = 5
	}
	if opts.LouvainMaxIters <= 0 {
		opts.LouvainMaxIters = 50
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}

	if len(courses) == 0 {
		return Result{Clusters: map[string][]model.Course{}}
	}

	groups, g, fellBack := clusterViaLouvain(courses, opts)
	groups = enforceSizeBounds(groups, g, opts)

	clusters := make(map[string][]model.Course, len(groups))
	for i, idxs := range groups {
		clusterID := fmt.Sprintf("cluster-%d", i)
		members := make([]model.Course, len(idxs))
		for j, idx := range idxs {
			members[j] = courses[idx]
		}
		clusters[clusterID] = members
	}

	return Result{Clusters: clusters, UsedFallback: fellBack}
}

func clusterViaLouvain(courses []model.Course, opts Options) (groups [][]int, g *graph, fellBack bool) {
	g = safeBuildGraph(courses, opts)
	if g == nil {
		return hashBucketFallback(courses, opts), nil, true
	}

	community := louvain(g, louvainConfig{maxIterations: opts.LouvainMaxIters})
	byComm := communityOf(community)

	out := make([][]int, 0, len(byComm))
	for _, key := range sortedKeys(byComm) {
		out = append(out, byComm[key])
	}
	return out, g, false
}

// safeBuildGraph insulates the pipeline from an unexpected panic in graph
// construction (e.g. a corrupt catalog) per spec §4.4's fail-safe
// requirement that Louvain unavailability degrade gracefully.
func safeBuildGraph(courses []model.Course, opts Options) (g *graph) {
	defer func() {
		if recover() != nil {
			g = nil
		}
	}()
	return BuildGraph(courses, opts.Weights, opts.Workers)
}

// hashBucketFallback buckets by (dept_id, faculty_id), preserving the
// configured size bounds by further splitting any oversized bucket.
func hashBucketFallback(courses []model.Course, opts Options) [][]int {
	buckets := make(map[string][]int)
	for i, c := range courses {
		key := c.DeptID + "|" + c.FacultyID
		buckets[key] = append(buckets[key], i)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out [][]int
	for _, k := range keys {
		out = append(out, splitOversized(buckets[k], opts.MaxClusterSize)...)
	}
	return out
}

func splitOversized(idxs []int, maxSize int) [][]int {
	if maxSize <= 0 || len(idxs) <= maxSize {
		return [][]int{idxs}
	}
	var out [][]int
	for i := 0; i < len(idxs); i += maxSize {
		end := i + maxSize
		if end > len(idxs) {
			end = len(idxs)
		}
		out = append(out, idxs[i:end])
	}
	return out
}
