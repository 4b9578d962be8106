// Package qualitymetrics computes conflict counts and the soft quality
// score for a finished or in-progress Assignment in a single pass over the
// catalog's wall-clock index. The computation is a pure function of its
// inputs: running it twice on the same assignment yields identical output.
package qualitymetrics

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/model"
)

// Report is the full output: per-kind conflict totals, the individual
// conflict records, feasibility, and the four soft-quality subscores plus
// their combined, feasibility-gated total.
type Report struct {
	ConflictsByKind map[model.ConflictKind]int
	Conflicts       []model.Conflict
	Feasible        bool

	FacultyPref     float64
	Compactness     float64
	RoomUtil        float64
	WorkloadBalance float64
	Quality         float64
}

type entry struct {
	courseID     string
	sessionIndex int
	slotID       string
	roomID       string
}

// Compute detects HC1-HC6 conflicts and the soft quality subscores for
// assignment against cat. workers <= 0 defaults to GOMAXPROCS.
func Compute(assignment model.Assignment, cat catalog.Catalog, workers int) Report {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	groups, entries := groupByWallClock(assignment, cat)

	report := Report{ConflictsByKind: make(map[model.ConflictKind]int)}
	detectConflicts(groups, cat, workers, &report)
	detectCapacityFeatureViolations(entries, cat, workers, &report)

	report.Feasible = totalConflicts(report.ConflictsByKind) == 0

	report.FacultyPref = facultyPrefScore(entries, cat)
	report.Compactness = compactnessScore(entries, cat)
	report.RoomUtil = roomUtilScore(entries, cat)
	report.WorkloadBalance = workloadBalanceScore(entries, cat)

	if report.Feasible {
		report.Quality = 0.3*report.FacultyPref + 0.3*report.Compactness + 0.2*report.RoomUtil + 0.2*report.WorkloadBalance
	}
	return report
}

func totalConflicts(byKind map[model.ConflictKind]int) int {
	total := 0
	for _, n := range byKind {
		total += n
	}
	return total
}

// groupByWallClock builds the wall-clock -> entries index the conflict pass
// groups by, plus the flat, deterministically ordered entry list the
// soft-quality subscores iterate.
func groupByWallClock(assignment model.Assignment, cat catalog.Catalog) (map[model.WallClock][]entry, []entry) {
	var entries []entry
	assignment.Each(func(key model.SessionKey, sr model.SlotRoom) {
		entries = append(entries, entry{courseID: key.CourseID, sessionIndex: key.SessionIndex, slotID: sr.SlotID, roomID: sr.RoomID})
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].courseID != entries[j].courseID {
			return entries[i].courseID < entries[j].courseID
		}
		return entries[i].sessionIndex < entries[j].sessionIndex
	})

	groups := make(map[model.WallClock][]entry)
	for _, e := range entries {
		slot, ok := cat.Slot(e.slotID)
		if !ok {
			continue
		}
		wc := slot.WallClock()
		groups[wc] = append(groups[wc], e)
	}
	return groups, entries
}

// detectConflicts tallies faculty, room, and student duplicates within each
// wall-clock group. Groups are partitioned across a worker pool; each
// worker accumulates a local tally merged into report under a mutex so
// chunk results never race on the shared counters.
func detectConflicts(groups map[model.WallClock][]entry, cat catalog.Catalog, workers int, report *Report) {
	keys := make([]model.WallClock, 0, len(groups))
	for wc := range groups {
		keys = append(keys, wc)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Day != keys[j].Day {
			return keys[i].Day < keys[j].Day
		}
		return keys[i].Period < keys[j].Period
	})

	chunks := chunk(len(keys), workers)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, c := range chunks {
		if c.start >= c.end {
			continue
		}
		wg.Add(1)
		go func(c span) {
			defer wg.Done()
			localByKind := make(map[model.ConflictKind]int)
			var localConflicts []model.Conflict

			for _, wc := range keys[c.start:c.end] {
				detectGroupConflicts(groups[wc], wc, cat, localByKind, &localConflicts)
			}

			mu.Lock()
			for k, n := range localByKind {
				report.ConflictsByKind[k] += n
			}
			report.Conflicts = append(report.Conflicts, localConflicts...)
			mu.Unlock()
		}(c)
	}
	wg.Wait()
}

func detectGroupConflicts(group []entry, wc model.WallClock, cat catalog.Catalog, byKind map[model.ConflictKind]int, conflicts *[]model.Conflict) {
	facultySeen := make(map[string]bool)
	roomSeen := make(map[string]bool)
	studentSeen := make(map[string]string) // student_id -> first course_id seen at this wall clock

	for _, e := range group {
		course, ok := cat.Course(e.courseID)
		if !ok {
			continue
		}

		if facultySeen[course.FacultyID] {
			byKind[model.ConflictFaculty]++
			*conflicts = append(*conflicts, model.Conflict{Kind: model.ConflictFaculty, FacultyID: course.FacultyID, CourseID: e.courseID, WallClock: wc})
		}
		facultySeen[course.FacultyID] = true

		if roomSeen[e.roomID] {
			byKind[model.ConflictRoom]++
			*conflicts = append(*conflicts, model.Conflict{Kind: model.ConflictRoom, RoomID: e.roomID, CourseID: e.courseID, WallClock: wc})
		}
		roomSeen[e.roomID] = true

		for _, sid := range course.StudentIDs {
			if _, dup := studentSeen[sid]; dup {
				byKind[model.ConflictStudent]++
				*conflicts = append(*conflicts, model.Conflict{Kind: model.ConflictStudent, StudentID: sid, CourseID: e.courseID, WallClock: wc})
			}
			studentSeen[sid] = e.courseID
		}
	}
}

// detectCapacityFeatureViolations checks each assigned session directly
// against its course's requirements, independent of wall-clock grouping.
func detectCapacityFeatureViolations(entries []entry, cat catalog.Catalog, workers int, report *Report) {
	chunks := chunk(len(entries), workers)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, c := range chunks {
		if c.start >= c.end {
			continue
		}
		wg.Add(1)
		go func(c span) {
			defer wg.Done()
			localByKind := make(map[model.ConflictKind]int)
			var localConflicts []model.Conflict

			for _, e := range entries[c.start:c.end] {
				course, ok := cat.Course(e.courseID)
				if !ok {
					continue
				}
				room, ok := cat.Room(e.roomID)
				if !ok {
					continue
				}
				if room.SeatingCapacity < course.EnrollmentCount {
					localByKind[model.ConflictCapacity]++
					localConflicts = append(localConflicts, model.Conflict{Kind: model.ConflictCapacity, RoomID: e.roomID, CourseID: e.courseID})
				}
				if !hasAllFeatures(room.Features, course.RequiredFeatures) {
					localByKind[model.ConflictFeature]++
					localConflicts = append(localConflicts, model.Conflict{Kind: model.ConflictFeature, RoomID: e.roomID, CourseID: e.courseID})
				}
			}

			mu.Lock()
			for k, n := range localByKind {
				report.ConflictsByKind[k] += n
			}
			report.Conflicts = append(report.Conflicts, localConflicts...)
			mu.Unlock()
		}(c)
	}
	wg.Wait()
}

func hasAllFeatures(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, f := range have {
		set[f] = true
	}
	for _, f := range want {
		if !set[f] {
			return false
		}
	}
	return true
}

type span struct{ start, end int }

func chunk(n, workers int) []span {
	if workers < 1 {
		workers = 1
	}
	if n == 0 {
		return nil
	}
	size := (n + workers - 1) / workers
	var out []span
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, span{start, end})
	}
	return out
}

// facultyPrefScore averages each assigned session's faculty preference for
// its wall clock (0 if the faculty expressed no preference there), over
// every assigned session.
func facultyPrefScore(entries []entry, cat catalog.Catalog) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range entries {
		course, ok := cat.Course(e.courseID)
		if !ok {
			continue
		}
		faculty, ok := cat.Faculty(course.FacultyID)
		if !ok {
			continue
		}
		slot, ok := cat.Slot(e.slotID)
		if !ok {
			continue
		}
		sum += faculty.Preferences[slot.WallClock().String()]
	}
	return clip01(sum / float64(len(entries)))
}

// compactnessScore rewards schedules where each faculty's and each
// student's sessions on a given day sit close together rather than spread
// across the day with idle gaps.
func compactnessScore(entries []entry, cat catalog.Catalog) float64 {
	type dayPeriods map[int][]int // day -> occupied periods
	byFaculty := make(map[string]dayPeriods)
	byStudent := make(map[string]dayPeriods)

	for _, e := range entries {
		course, ok := cat.Course(e.courseID)
		if !ok {
			continue
		}
		slot, ok := cat.Slot(e.slotID)
		if !ok {
			continue
		}

		if byFaculty[course.FacultyID] == nil {
			byFaculty[course.FacultyID] = make(dayPeriods)
		}
		byFaculty[course.FacultyID][slot.Day] = append(byFaculty[course.FacultyID][slot.Day], slot.Period)

		for _, sid := range course.StudentIDs {
			if byStudent[sid] == nil {
				byStudent[sid] = make(dayPeriods)
			}
			byStudent[sid][slot.Day] = append(byStudent[sid][slot.Day], slot.Period)
		}
	}

	scores := make([]float64, 0, len(byFaculty)+len(byStudent))
	for _, dp := range byFaculty {
		scores = append(scores, entityCompactness(dp))
	}
	for _, dp := range byStudent {
		scores = append(scores, entityCompactness(dp))
	}
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return clip01(sum / float64(len(scores)))
}

func entityCompactness(dp map[int][]int) float64 {
	if len(dp) == 0 {
		return 1
	}
	var perDay []float64
	for _, periods := range dp {
		if len(periods) <= 1 {
			perDay = append(perDay, 1)
			continue
		}
		sort.Ints(periods)
		span := periods[len(periods)-1] - periods[0] + 1
		perDay = append(perDay, float64(len(periods))/float64(span))
	}
	sum := 0.0
	for _, v := range perDay {
		sum += v
	}
	return sum / float64(len(perDay))
}

// roomUtilScore averages enrollment/capacity over every assigned session,
// each term clipped to [0,1]: over-sized rooms score below 1, and an
// under-sized room scores the full 1 (capacity shortfalls are counted as
// capacity conflicts instead).
func roomUtilScore(entries []entry, cat catalog.Catalog) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0.0
	n := 0
	for _, e := range entries {
		course, ok := cat.Course(e.courseID)
		if !ok {
			continue
		}
		room, ok := cat.Room(e.roomID)
		if !ok || room.SeatingCapacity <= 0 {
			continue
		}
		util := float64(course.EnrollmentCount) / float64(room.SeatingCapacity)
		sum += clip01(util)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// workloadBalanceScore rewards an even spread of session counts across
// faculty: 1.0 when every faculty carries the same load, decaying toward 0
// as the spread (coefficient of variation) grows.
func workloadBalanceScore(entries []entry, cat catalog.Catalog) float64 {
	load := make(map[string]int)
	for _, e := range entries {
		course, ok := cat.Course(e.courseID)
		if !ok {
			continue
		}
		load[course.FacultyID]++
	}
	if len(load) <= 1 {
		return 1
	}

	sum, n := 0.0, float64(len(load))
	for _, c := range load {
		sum += float64(c)
	}
	mean := sum / n
	if mean == 0 {
		return 1
	}

	variance := 0.0
	for _, c := range load {
		d := float64(c) - mean
		variance += d * d
	}
	variance /= n
	stddev := math.Sqrt(variance)

	return clip01(1 - stddev/mean)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
