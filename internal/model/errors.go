package model

import "fmt"

// CatalogInvalidError reports a catalog that violates a load-time
// invariant (e.g. a course with duration 0). Fatal: the job fails.
type CatalogInvalidError struct {
	Reason string
}

func (e *CatalogInvalidError) Error() string {
	return fmt.Sprintf("catalog invalid: %s", e.Reason)
}

// InfeasibleError records that a cluster's CP-SAT strategy ladder was
// exhausted without finding a feasible model. It is surfaced as a metric,
// not treated as a fatal error; the greedy fallback takes over.
type InfeasibleError struct {
	ClusterID string
	Strategy  string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("cluster %s: strategy %s infeasible", e.ClusterID, e.Strategy)
}

// CancelledError propagates a job-level cancellation through every stage.
type CancelledError struct {
	JobID string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("job %s cancelled", e.JobID)
}

// ResourceEmergencyError reports that downgrades were applied and the job
// is still over the configured resource ceiling.
type ResourceEmergencyError struct {
	Stage string
}

func (e *ResourceEmergencyError) Error() string {
	return fmt.Sprintf("resource emergency during stage %s", e.Stage)
}

// StageFailureError wraps a recovered panic or bug inside a stage. The
// orchestrator converts these into a metric and returns the best-so-far
// assignment rather than propagating the failure.
type StageFailureError struct {
	Stage string
	Cause error
}

func (e *StageFailureError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageFailureError) Unwrap() error {
	return e.Cause
}
