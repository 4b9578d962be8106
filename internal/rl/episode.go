package rl

import (
	"fmt"
	"math/rand"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/model"
)

// episodeResult is what one episode decided for its course.
type episodeResult struct {
	CourseID        string
	Accepted        bool
	NewOption       domain.Option
	ConflictsBefore int
	ConflictsAfter  int
}

// stateFingerprint mirrors the (course_id, current_slot_id, current_room_id,
// conflict_kind) tuple, using the course's anchor session as its
// representative slot/room.
func stateFingerprint(courseID, currentSlotID, currentRoomID string, kind model.ConflictKind) string {
	return fmt.Sprintf("%s|%s|%s|%s", courseID, currentSlotID, currentRoomID, kind)
}

// runEpisode evaluates one course against the shared snapshot, chooses an
// action epsilon-greedily, and applies one Q-table update. It never mutates
// the assignment itself: the caller merges accepted NewOptions once the
// batch's goroutines have joined.
func runEpisode(
	course model.Course,
	currentOpt domain.Option,
	domains domain.Table,
	cat catalog.Catalog,
	snap *snapshot,
	ctxCache *contextCache,
	q *qtable,
	cfg Config,
	episodesSoFar int,
	rng *rand.Rand,
) episodeResult {
	actions := candidateActions(course, domains, cfg.TopK)
	currentRoomByWC := roomByWallClock(cat, currentOpt)

	conflictsBefore := snap.conflictsForCourse(course, currentRoomByWC)
	kindBefore := dominantConflictKind(snap.conflictKindsForCourse(course, currentRoomByWC))

	currentSlotID, currentRoomID := anchorSlotRoom(currentOpt)
	state := stateFingerprint(course.CourseID, currentSlotID, currentRoomID, kindBefore)

	numActions := len(actions)
	q.ensure(state, numActions)

	actionIdx := chooseAction(q, state, numActions, cfg.epsilon(episodesSoFar), rng)
	chosen := actions[actionIdx]

	qualityBefore := ctxCache.qualityContext(course, currentOpt.Sessions, cat)

	var conflictsAfter int
	var qualityAfter float64
	var nextSlotID, nextRoomID string
	var nextKinds []model.ConflictKind

	if chosen.Option == nil {
		conflictsAfter = conflictsBefore
		qualityAfter = qualityBefore
		nextSlotID, nextRoomID = currentSlotID, currentRoomID
		nextKinds = snap.conflictKindsForCourse(course, currentRoomByWC)
	} else {
		conflictsAfter = snap.conflictsIfOption(course, *chosen.Option)
		qualityAfter = ctxCache.qualityContext(course, chosen.Option.Sessions, cat)
		nextSlotID, nextRoomID = anchorSlotRoom(*chosen.Option)
		nextKinds = snap.violationKindsForOption(course, *chosen.Option)
	}

	reward := -100*float64(conflictsAfter-conflictsBefore) + 0.3*(qualityAfter-qualityBefore)

	nextState := stateFingerprint(course.CourseID, nextSlotID, nextRoomID, dominantConflictKind(nextKinds))
	q.update(state, actionIdx, numActions, reward, cfg.Alpha, cfg.Gamma, nextState)

	accepted := chosen.Option != nil && conflictsAfter < conflictsBefore
	result := episodeResult{CourseID: course.CourseID, Accepted: accepted, ConflictsBefore: conflictsBefore, ConflictsAfter: conflictsAfter}
	if accepted {
		result.NewOption = *chosen.Option
	}
	return result
}

// chooseAction is epsilon-greedy over the Q-table row for state.
func chooseAction(q *qtable, state string, numActions int, epsilon float64, rng *rand.Rand) int {
	if rng.Float64() < epsilon {
		return rng.Intn(numActions)
	}
	best := 0
	bestVal := q.value(state, 0, numActions)
	for i := 1; i < numActions; i++ {
		v := q.value(state, i, numActions)
		if v > bestVal {
			bestVal = v
			best = i
		}
	}
	return best
}

func anchorSlotRoom(opt domain.Option) (slotID, roomID string) {
	if len(opt.Sessions) == 0 {
		return "", ""
	}
	return opt.Sessions[0].SlotID, opt.Sessions[0].RoomID
}

func roomByWallClock(cat catalog.Catalog, opt domain.Option) map[model.WallClock]string {
	m := make(map[model.WallClock]string, len(opt.Sessions))
	for _, sr := range opt.Sessions {
		slot, ok := cat.Slot(sr.SlotID)
		if !ok {
			continue
		}
		m[slot.WallClock()] = sr.RoomID
	}
	return m
}
