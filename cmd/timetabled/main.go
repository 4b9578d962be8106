// Command timetabled is the composition root: it loads configuration from
// the environment, opens the job store, and drives one timetabling job
// through the full pipeline end to end. It follows the same log-banner
// cadence and gorm.Open/AutoMigrate/service-construction order used
// elsewhere in this codebase's service entrypoints, trimmed to this
// command's single job-run responsibility rather than a long-lived HTTP
// API server (no router façade: an HTTP surface is out of scope here).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/clog"
	"github.com/jgirmay/timetabled/internal/config"
	"github.com/jgirmay/timetabled/internal/cpsat"
	"github.com/jgirmay/timetabled/internal/jobstore"
	"github.com/jgirmay/timetabled/internal/metrics"
	"github.com/jgirmay/timetabled/internal/orchestrator"
	"github.com/jgirmay/timetabled/internal/progress"
	"github.com/jgirmay/timetabled/internal/progressws"
	"github.com/jgirmay/timetabled/internal/raftlock"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	catalogFile := flag.String("catalog", "", "path to a JSON-encoded catalog.Raw describing the courses to schedule")
	flag.Parse()

	opts := config.Load()
	config.Log(opts)

	logger := clog.New("main")

	db, err := openDB(opts.DatabaseURL)
	if err != nil {
		log.Fatalf("[main] failed to open database: %v", err)
	}
	logger.Info("database connection established")

	store := jobstore.New(db)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("[main] failed to migrate job store: %v", err)
	}
	logger.Info("job store migrated")

	raw, err := loadCatalog(*catalogFile)
	if err != nil {
		log.Fatalf("[main] failed to load catalog: %v", err)
	}

	jobID := uuid.NewString()
	if err := store.CreateJob(ctx, jobID, raw); err != nil {
		log.Fatalf("[main] failed to seed job %s: %v", jobID, err)
	}
	logger.Info("seeded job %s with %d courses", jobID, len(raw.Courses))

	if node := maybeStartRaftlock(opts, logger); node != nil {
		defer node.Shutdown()
		if !waitForLeaderClaim(node, jobID, logger) {
			log.Fatalf("[main] could not claim job %s on this node", jobID)
		}
		defer node.Release(context.Background(), jobID)
	}

	bus := progress.New()
	registry := prometheus.NewRegistry()
	mcs := metrics.New(registry)

	if opts.ProgressWSEnabled {
		hub := progressws.NewHub(bus)
		handlers := progressws.NewHandlers(hub)
		go serveProgressWS(opts.ProgressWSAddr, jobID, handlers, logger)
	}

	ladder, err := config.LoadLadder(opts.LadderFile)
	if err != nil {
		log.Fatalf("[main] failed to load strategy ladder override: %v", err)
	}

	orch := orchestrator.New(store, store, bus, mcs)
	runOpts := orchestrator.Options{
		CPSAT:                  cpsat.Options{Ladder: ladder, Workers: opts.CPSATWorkers},
		ResourceCeilingBytes:   opts.ResourceCeilingBytes,
		ResourceSampleInterval: opts.ResourceSampleInterval,
	}

	start := time.Now()
	outcome := orch.Run(ctx, jobID, runOpts)
	elapsed := time.Since(start)

	if outcome.Failed {
		store.MarkFailed(ctx, jobID, outcome.FailureStage, outcome.FailureErr)
		log.Fatalf("[main] job %s failed at stage %s after %v: %v", jobID, outcome.FailureStage, elapsed, outcome.FailureErr)
	}

	logger.Info("job %s completed in %v: %d clusters, feasible=%v, quality=%.4f, conflicts=%d",
		jobID, elapsed, outcome.ClusterCount, outcome.Report.Feasible, outcome.Report.Quality, len(outcome.Report.Conflicts))
}

func openDB(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}

func loadCatalog(path string) (catalog.Raw, error) {
	if path == "" {
		return catalog.Raw{}, errors.New("no -catalog file given")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return catalog.Raw{}, err
	}
	var raw catalog.Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return catalog.Raw{}, err
	}
	return raw, nil
}

func maybeStartRaftlock(opts config.Options, logger clog.Logger) *raftlock.Node {
	if !opts.RaftEnabled {
		return nil
	}
	node, err := raftlock.NewNode(raftlock.NodeConfig{
		NodeID:        opts.RaftNodeID,
		BindAddr:      opts.RaftBindAddr,
		AdvertiseAddr: opts.RaftAdvertiseAddr,
		DataDir:       opts.ClusterSnapshotDir,
		Bootstrap:     true,
		Peers:         []string{opts.RaftNodeID},
	})
	if err != nil {
		log.Fatalf("[main] failed to start raftlock node: %v", err)
	}
	logger.Info("raftlock node %s started", opts.RaftNodeID)
	return node
}

// waitForLeaderClaim polls leadership briefly: a freshly bootstrapped
// single-node Raft group takes one election round to settle.
func waitForLeaderClaim(node *raftlock.Node, jobID string, logger clog.Logger) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if node.IsLeader() {
			if err := node.TryClaim(context.Background(), jobID); err != nil {
				logger.Warn("claim of job %s failed: %v", jobID, err)
				return false
			}
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func serveProgressWS(addr, jobID string, handlers *progressws.Handlers, logger clog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/jobs/progress", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleJobProgress(w, r, jobID)
	})
	mux.HandleFunc("/healthz", handlers.HandleHealthCheck)
	logger.Info("progress websocket server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("progress websocket server stopped: %v", err)
	}
}
