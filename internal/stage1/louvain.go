package stage1

import (
	"sort"
)

// louvainConfig bounds the community-detection pass.
type louvainConfig struct {
	maxIterations int
}

// louvain runs weighted modularity-maximizing community detection to
// convergence or to maxIterations, whichever comes first. It returns a
// community id per node index.
func louvain(g *graph, cfg louvainConfig) []int {
	n := len(g.nodes)
	community := make([]int, n)
	for i := range community {
		community[i] = i
	}
	if n == 0 {
		return community
	}

	degree := make([]float64, n)
	totalWeight := 0.0
	for i, edges := range g.adj {
		for _, e := range edges {
			degree[i] += e.weight
			totalWeight += e.weight
		}
	}
	if totalWeight == 0 {
		return community
	}
	m2 := totalWeight // sum of degrees (edges already counted once per direction via adjacency scan below)

	communityDegree := make([]float64, n)
	copy(communityDegree, degree)

	improved := true
	for iter := 0; improved && iter < cfg.maxIterations; iter++ {
		improved = false
		for i := 0; i < n; i++ {
			currentComm := community[i]
			neighborWeights := make(map[int]float64)
			for _, e := range g.adj[i] {
				neighborWeights[community[e.to]] += e.weight
			}
			if len(neighborWeights) == 0 {
				continue
			}

			communityDegree[currentComm] -= degree[i]

			bestComm := currentComm
			bestGain := neighborWeights[currentComm] - degree[i]*communityDegree[currentComm]/m2
			for comm, w := range neighborWeights {
				if comm == currentComm {
					continue
				}
				gain := w - degree[i]*communityDegree[comm]/m2
				if gain > bestGain {
					bestGain = gain
					bestComm = comm
				}
			}

			communityDegree[bestComm] += degree[i]
			if bestComm != currentComm {
				community[i] = bestComm
				improved = true
			}
		}
	}

	return renumber(community)
}

func renumber(community []int) []int {
	remap := make(map[int]int)
	out := make([]int, len(community))
	next := 0
	for i, c := range community {
		id, ok := remap[c]
		if !ok {
			id = next
			remap[c] = id
			next++
		}
		out[i] = id
	}
	return out
}

// communityOf groups node indices by their community id. The map itself is
// unordered; callers iterate it via sortedKeys for determinism.
func communityOf(community []int) map[int][]int {
	groups := make(map[int][]int)
	for i, c := range community {
		groups[c] = append(groups[c], i)
	}
	return groups
}

func sortedKeys(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
