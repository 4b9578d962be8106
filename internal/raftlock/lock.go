package raftlock

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
)

// NodeConfig configures one raftlock participant.
type NodeConfig struct {
	NodeID        string
	BindAddr      string
	AdvertiseAddr string
	DataDir       string
	Bootstrap     bool
	Peers         []string // "nodeID:address" pairs (a bare nodeID uses AdvertiseAddr), only read when Bootstrap is true

	HeartbeatTimeout time.Duration
	ElectionTimeout  time.Duration
	SnapshotInterval time.Duration
	SnapshotRetain   int
}

// Node wraps a Raft group whose only job is arbitrating job claims.
type Node struct {
	raft *raft.Raft
	fsm  *FSM

	mu       sync.RWMutex
	isLeader bool

	config NodeConfig
	done   chan struct{}
}

// NewNode starts (or rejoins) a raftlock participant.
func NewNode(config NodeConfig) (*Node, error) {
	if err := os.MkdirAll(config.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("raftlock: create data dir: %w", err)
	}
	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = 150 * time.Millisecond
	}
	if config.ElectionTimeout == 0 {
		config.ElectionTimeout = 300 * time.Millisecond
	}
	if config.SnapshotInterval == 0 {
		config.SnapshotInterval = 120 * time.Second
	}
	if config.SnapshotRetain == 0 {
		config.SnapshotRetain = 2
	}

	fsm := NewFSM()
	n := &Node{fsm: fsm, config: config, done: make(chan struct{})}

	raftConfig := raft.DefaultConfig()
	raftConfig.HeartbeatTimeout = config.HeartbeatTimeout
	raftConfig.ElectionTimeout = config.ElectionTimeout
	raftConfig.SnapshotInterval = config.SnapshotInterval
	raftConfig.SnapshotThreshold = 8192
	raftConfig.TrailingLogs = 10240
	raftConfig.LocalID = raft.ServerID(config.NodeID)

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(config.DataDir, "logs.db"))
	if err != nil {
		return nil, fmt.Errorf("raftlock: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(config.DataDir, "stable.db"))
	if err != nil {
		return nil, fmt.Errorf("raftlock: create stable store: %w", err)
	}
	snapshots, err := raft.NewFileSnapshotStore(config.DataDir, config.SnapshotRetain, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftlock: create snapshot store: %w", err)
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", config.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("raftlock: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(config.BindAddr, tcpAddr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftlock: create transport: %w", err)
	}

	raftNode, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("raftlock: create raft node: %w", err)
	}
	n.raft = raftNode

	if config.Bootstrap && len(config.Peers) > 0 {
		servers := make([]raft.Server, len(config.Peers))
		for i, peer := range config.Peers {
			id, addr, ok := strings.Cut(peer, ":")
			if !ok {
				addr = config.AdvertiseAddr
			}
			servers[i] = raft.Server{ID: raft.ServerID(id), Address: raft.ServerAddress(addr)}
		}
		future := raftNode.BootstrapCluster(raft.Configuration{Servers: servers})
		if err := future.Error(); err != nil && err.Error() != "cluster already bootstrapped" {
			return nil, fmt.Errorf("raftlock: bootstrap cluster: %w", err)
		}
	}

	go n.monitorLeadership()
	return n, nil
}

func (n *Node) monitorLeadership() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			n.mu.Lock()
			n.isLeader = n.raft.State() == raft.Leader
			n.mu.Unlock()
		}
	}
}

// IsLeader reports whether this node currently holds Raft leadership; only
// the leader's TryClaim calls can make forward progress.
func (n *Node) IsLeader() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.isLeader
}

// TryClaim attempts to claim jobID for this node. It fails if another node
// already holds the claim, or if this node is not the Raft leader.
func (n *Node) TryClaim(ctx context.Context, jobID string) error {
	if !n.IsLeader() {
		return fmt.Errorf("raftlock: not leader")
	}
	return n.apply(Command{Type: CommandClaim, JobID: jobID, OwnerID: n.config.NodeID})
}

// Release gives up this node's claim on jobID, a no-op if it wasn't held.
func (n *Node) Release(ctx context.Context, jobID string) error {
	return n.apply(Command{Type: CommandRelease, JobID: jobID, OwnerID: n.config.NodeID})
}

// Owner reports which node currently holds jobID's claim.
func (n *Node) Owner(jobID string) (string, bool) {
	return n.fsm.Owner(jobID)
}

func (n *Node) apply(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("raftlock: marshal command: %w", err)
	}
	future := n.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("raftlock: apply: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops the background leadership monitor and the Raft node.
func (n *Node) Shutdown() error {
	close(n.done)
	return n.raft.Shutdown().Error()
}
