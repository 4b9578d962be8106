package rl

import (
	"sync"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/model"
)

// contextCache memoizes the local quality-context score for a (course,
// candidate sessions) pair. The lock covers only the map lookup, never the
// score computation.
type contextCache struct {
	mu    sync.Mutex
	cache map[string]float64
}

func newContextCache() *contextCache {
	return &contextCache{cache: make(map[string]float64)}
}

// qualityContext is the course faculty's average preference across the
// wall clocks sessions would occupy, used as the reward's local substitute
// for a full qualitymetrics pass.
func (c *contextCache) qualityContext(course model.Course, sessions []model.SlotRoom, cat catalog.Catalog) float64 {
	key := contextKey(course.CourseID, sessions)

	c.mu.Lock()
	v, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return v
	}

	v = computeQualityContext(course, sessions, cat)

	c.mu.Lock()
	c.cache[key] = v
	c.mu.Unlock()
	return v
}

func computeQualityContext(course model.Course, sessions []model.SlotRoom, cat catalog.Catalog) float64 {
	faculty, ok := cat.Faculty(course.FacultyID)
	if !ok || len(sessions) == 0 {
		return 0
	}
	sum := 0.0
	for _, sr := range sessions {
		slot, ok := cat.Slot(sr.SlotID)
		if !ok {
			continue
		}
		sum += faculty.Preferences[slot.WallClock().String()]
	}
	return sum / float64(len(sessions))
}

func contextKey(courseID string, sessions []model.SlotRoom) string {
	key := courseID
	for _, sr := range sessions {
		key += "|" + sr.SlotID + "," + sr.RoomID
	}
	return key
}
