package stage1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgirmay/timetabled/internal/model"
)

func makeCourses(n int, sameFaculty bool) []model.Course {
	courses := make([]model.Course, n)
	for i := 0; i < n; i++ {
		faculty := "F"
		if !sameFaculty {
			faculty = "F" + string(rune('A'+i%5))
		}
		courses[i] = model.Course{
			CourseID:        "C" + string(rune('A'+i)),
			DeptID:          "CS",
			Duration:        1,
			FacultyID:       faculty,
			EnrollmentCount: 10,
		}
	}
	return courses
}

func TestCluster_PreservesTotalCourseCount(t *testing.T) {
	courses := makeCourses(12, false)
	result := Cluster(courses, DefaultOptions())

	total := 0
	seen := make(map[string]bool)
	for _, members := range result.Clusters {
		for _, c := range members {
			require.False(t, seen[c.CourseID], "course %s appears twice", c.CourseID)
			seen[c.CourseID] = true
			total++
		}
	}
	assert.Equal(t, len(courses), total)
}

func TestCluster_EmptyInputReturnsEmptyResult(t *testing.T) {
	result := Cluster(nil, DefaultOptions())
	assert.Empty(t, result.Clusters)
}

func TestCluster_RespectsMaxSizeWithSlack(t *testing.T) {
	courses := makeCourses(120, true) // all same faculty -> one dense community
	opts := DefaultOptions()
	opts.MaxClusterSize = 50

	result := Cluster(courses, opts)
	limit := int(float64(opts.MaxClusterSize) * 1.2)
	for id, members := range result.Clusters {
		assert.LessOrEqualf(t, len(members), limit, "cluster %s exceeds size bound with slack", id)
	}
}

func TestCluster_MergesUndersizedClusters(t *testing.T) {
	courses := makeCourses(8, false)
	opts := DefaultOptions()
	opts.MinClusterSize = 5
	opts.MaxClusterSize = 50

	result := Cluster(courses, opts)
	for id, members := range result.Clusters {
		if len(result.Clusters) > 1 {
			assert.GreaterOrEqualf(t, len(members), opts.MinClusterSize, "cluster %s below min size", id)
		}
	}
}

func TestHashBucketFallback_PreservesCount(t *testing.T) {
	courses := makeCourses(30, false)
	groups := hashBucketFallback(courses, DefaultOptions())

	total := 0
	for _, g := range groups {
		total += len(g)
	}
	assert.Equal(t, len(courses), total)
}

func TestBuildGraph_FacultyMatchDominates(t *testing.T) {
	courses := []model.Course{
		{CourseID: "A", DeptID: "CS", Duration: 1, FacultyID: "F1"},
		{CourseID: "B", DeptID: "PH", Duration: 1, FacultyID: "F1"},
	}
	g := BuildGraph(courses, DefaultWeights(), 2)
	require.Len(t, g.adj[0], 1)
	assert.Equal(t, 10.0, g.adj[0][0].weight)
}
