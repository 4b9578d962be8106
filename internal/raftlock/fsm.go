// Package raftlock is the single-writer job-claim lock the orchestrator
// uses so that, in a multi-node deployment, exactly one node runs a given
// job. Trimmed to one concern: claim/release of a job id, not a full
// session/task/lock state machine.
package raftlock

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// CommandType tags the variant of Command applied to the FSM.
type CommandType string

const (
	CommandClaim   CommandType = "job_claim"
	CommandRelease CommandType = "job_release"
)

// Command is the Raft log entry applied on every node.
type Command struct {
	Type    CommandType `json:"type"`
	JobID   string      `json:"job_id"`
	OwnerID string      `json:"owner_id"`
}

// FSM holds the replicated job-claim table: job id -> owning node id.
type FSM struct {
	mu     sync.RWMutex
	owners map[string]string
}

// NewFSM returns an empty FSM.
func NewFSM() *FSM {
	return &FSM{owners: make(map[string]string)}
}

// Apply applies one Raft log entry.
func (f *FSM) Apply(log *raft.Log) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("raftlock: unmarshal command: %w", err)
	}

	switch cmd.Type {
	case CommandClaim:
		if existing, ok := f.owners[cmd.JobID]; ok && existing != cmd.OwnerID {
			return fmt.Errorf("raftlock: job %s already claimed by %s", cmd.JobID, existing)
		}
		f.owners[cmd.JobID] = cmd.OwnerID
		return nil
	case CommandRelease:
		if f.owners[cmd.JobID] == cmd.OwnerID {
			delete(f.owners, cmd.JobID)
		}
		return nil
	default:
		return fmt.Errorf("raftlock: unknown command type %s", cmd.Type)
	}
}

// Owner returns the node id currently holding jobID's claim, if any.
func (f *FSM) Owner(jobID string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	owner, ok := f.owners[jobID]
	return owner, ok
}

// Snapshot and Restore satisfy raft.FSM with a trivial gob-free JSON
// encoding of the owners map; the claim table is small and short-lived
// enough that a full copy per snapshot is cheap.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	copyOwners := make(map[string]string, len(f.owners))
	for k, v := range f.owners {
		copyOwners[k] = v
	}
	return &fsmSnapshot{owners: copyOwners}, nil
}

func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var owners map[string]string
	if err := json.NewDecoder(rc).Decode(&owners); err != nil {
		return fmt.Errorf("raftlock: decode snapshot: %w", err)
	}
	f.mu.Lock()
	f.owners = owners
	f.mu.Unlock()
	return nil
}

type fsmSnapshot struct {
	owners map[string]string
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s.owners); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
