package stage1

import "sort"

// enforceSizeBounds splits any group over opts.MaxClusterSize by greedy
// bisection along its lowest-weight cut, and merges any group under
// opts.MinClusterSize into its highest-weight neighbor. g may be nil (the
// hash-bucket fallback path), in which case merging falls back to simply
// joining adjacent small groups rather than consulting edge weights.
func enforceSizeBounds(groups [][]int, g *graph, opts Options) [][]int {
	groups = splitAllOversized(groups, g, opts.MaxClusterSize)
	groups = mergeAllUndersized(groups, g, opts.MinClusterSize)
	return groups
}

func splitAllOversized(groups [][]int, g *graph, maxSize int) [][]int {
	if maxSize <= 0 {
		return groups
	}
	var out [][]int
	for _, group := range groups {
		out = append(out, bisectToFit(group, g, maxSize)...)
	}
	return out
}

// bisectToFit repeatedly splits group along its lowest-weight cut until
// every piece is within maxSize (the allowed +20% slack on the final
// result is enforced by the caller's contract, not by this function).
func bisectToFit(group []int, g *graph, maxSize int) [][]int {
	if len(group) <= maxSize {
		return [][]int{group}
	}
	left, right := lowestWeightCut(group, g)
	if len(left) == 0 || len(right) == 0 {
		// No informative cut (isolated nodes); fall back to an even split
		// so we still make progress toward the size bound.
		mid := len(group) / 2
		left, right = group[:mid], group[mid:]
	}
	return append(bisectToFit(left, g, maxSize), bisectToFit(right, g, maxSize)...)
}

// lowestWeightCut finds a 2-way split of group that minimizes total
// cross-cut edge weight, via a greedy boundary-growth heuristic: seed two
// sides with the two least-connected nodes, then assign each remaining node
// to whichever side it is more strongly connected to.
func lowestWeightCut(group []int, g *graph) (left, right []int) {
	if len(group) < 2 {
		return group, nil
	}
	if g == nil {
		mid := len(group) / 2
		return group[:mid], group[mid:]
	}

	inGroup := make(map[int]bool, len(group))
	for _, n := range group {
		inGroup[n] = true
	}

	seedA, seedB := group[0], group[len(group)-1]
	leftSet := map[int]bool{seedA: true}
	rightSet := map[int]bool{seedB: true}

	for _, n := range group {
		if n == seedA || n == seedB {
			continue
		}
		wLeft, wRight := 0.0, 0.0
		for _, e := range g.adj[n] {
			if !inGroup[e.to] {
				continue
			}
			if leftSet[e.to] {
				wLeft += e.weight
			}
			if rightSet[e.to] {
				wRight += e.weight
			}
		}
		if wLeft >= wRight {
			leftSet[n] = true
		} else {
			rightSet[n] = true
		}
	}

	for _, n := range group {
		if leftSet[n] {
			left = append(left, n)
		} else {
			right = append(right, n)
		}
	}
	return left, right
}

func mergeAllUndersized(groups [][]int, g *graph, minSize int) [][]int {
	if minSize <= 0 {
		return groups
	}

	changed := true
	for changed {
		changed = false
		sort.Slice(groups, func(i, j int) bool { return len(groups[i]) < len(groups[j]) })
		if len(groups) <= 1 {
			break
		}
		if len(groups[0]) >= minSize {
			break
		}

		small := groups[0]
		rest := groups[1:]
		targetIdx := bestMergeTarget(small, rest, g)
		rest[targetIdx] = append(append([]int{}, rest[targetIdx]...), small...)
		groups = rest
		changed = true
	}
	return groups
}

// bestMergeTarget picks the neighbor group with the highest total edge
// weight to small; with no graph (fallback path) it just picks the first
// (smallest) remaining group so merging still terminates deterministically.
func bestMergeTarget(small []int, candidates [][]int, g *graph) int {
	if g == nil {
		return 0
	}
	smallSet := make(map[int]bool, len(small))
	for _, n := range small {
		smallSet[n] = true
	}

	best, bestWeight := 0, -1.0
	for ci, cand := range candidates {
		candSet := make(map[int]bool, len(cand))
		for _, n := range cand {
			candSet[n] = true
		}
		weight := 0.0
		for _, n := range small {
			for _, e := range g.adj[n] {
				if candSet[e.to] {
					weight += e.weight
				}
			}
		}
		if weight > bestWeight {
			bestWeight = weight
			best = ci
		}
	}
	return best
}
