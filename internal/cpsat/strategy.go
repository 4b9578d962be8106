// Package cpsat solves each Stage-1 cluster's per-course scheduling choice
// as a constraint-satisfaction search with a strategy ladder and a
// deterministic greedy fallback, per spec §4.5.
package cpsat

import "time"

// StudentPriority controls how many students HC3 (student exclusivity) is
// enforced for, trading constraint tightness for solvability under budget.
type StudentPriority string

const (
	// PriorityAll enforces HC3 for every student.
	PriorityAll StudentPriority = "ALL"
	// PriorityHigh enforces HC3 only for students enrolled in >= 3 courses.
	PriorityHigh StudentPriority = "HIGH"
	// PriorityLow enforces HC3 only for students enrolled in >= 5 courses.
	PriorityLow StudentPriority = "LOW"
)

// minEnrollmentFor returns the enrollment-count threshold a student must
// meet for HC3 to apply to them at this priority.
func minEnrollmentFor(p StudentPriority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 5
	default:
		return 0
	}
}

// Strategy is one rung of the ladder: {name, student_priority, timeout,
// constraint_budget}.
type Strategy struct {
	Name             string
	StudentPriority  StudentPriority
	Timeout          time.Duration
	ConstraintBudget int
	// EnforceStudents set to false disables HC3 entirely (used by
	// "Faculty+Room Only" and "Minimal").
	EnforceStudents bool
}

// DefaultLadder is the documented default strategy ladder.
func DefaultLadder() []Strategy {
	return []Strategy{
		{Name: "Full Solve", StudentPriority: PriorityAll, Timeout: 60 * time.Second, ConstraintBudget: 50000, EnforceStudents: true},
		{Name: "Relaxed Student", StudentPriority: PriorityHigh, Timeout: 30 * time.Second, ConstraintBudget: 10000, EnforceStudents: true},
		{Name: "Faculty+Room Only", StudentPriority: PriorityLow, Timeout: 15 * time.Second, ConstraintBudget: 5000, EnforceStudents: false},
		{Name: "Minimal", StudentPriority: PriorityLow, Timeout: 5 * time.Second, ConstraintBudget: 2000, EnforceStudents: false},
	}
}
