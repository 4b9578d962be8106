// Package config loads the pipeline's tunables from environment variables
// using the getEnv*/startup-banner convention common across this codebase's
// service entrypoints.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Options bundles every env-loaded setting the orchestrator and its stages
// read at startup.
type Options struct {
	DatabaseURL string

	RaftEnabled        bool
	RaftNodeID         string
	RaftBindAddr       string
	RaftAdvertiseAddr  string
	RaftDiscoveryNodes string
	ClusterSnapshotDir string

	ResourceCeilingBytes uint64
	ResourceSampleInterval time.Duration

	GAWorkers        int
	CPSATWorkers     int
	MetricsNamespace string
	LadderFile       string // optional YAML strategy-ladder override, see LoadLadder

	ProgressWSEnabled bool
	ProgressWSAddr    string
}

// Load reads every setting from its environment variable, falling back to a
// documented default when unset or unparseable.
func Load() Options {
	return Options{
		DatabaseURL: getEnv("DATABASE_URL", "timetabled.db"),

		RaftEnabled:        getEnvBool("CLUSTER_ENABLED", false),
		RaftNodeID:         getEnv("CLUSTER_NODE_ID", "node-1"),
		RaftBindAddr:       getEnv("CLUSTER_BIND_ADDR", "127.0.0.1:8300"),
		RaftAdvertiseAddr:  getEnv("CLUSTER_ADVERTISE_ADDR", "127.0.0.1:8300"),
		RaftDiscoveryNodes: getEnv("CLUSTER_DISCOVERY_NODES", "127.0.0.1:8300"),
		ClusterSnapshotDir: getEnv("CLUSTER_SNAPSHOT_DIR", "./data/raft"),

		ResourceCeilingBytes:   getEnvUint64("RESOURCE_CEILING_BYTES", 4*1024*1024*1024),
		ResourceSampleInterval: getEnvDuration("RESOURCE_SAMPLE_INTERVAL", time.Second),

		GAWorkers:        getEnvInt("GA_WORKERS", 0),
		CPSATWorkers:     getEnvInt("CPSAT_WORKERS", 0),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "timetabled"),
		LadderFile:       getEnv("CPSAT_STRATEGIES_FILE", ""),

		ProgressWSEnabled: getEnvBool("PROGRESS_WS_ENABLED", false),
		ProgressWSAddr:    getEnv("PROGRESS_WS_ADDR", ":8090"),
	}
}

// Log prints the loaded configuration as a startup banner, masking the
// database URL.
func Log(o Options) {
	log.Println("===============================================================")
	log.Println("TIMETABLED CONFIGURATION")
	log.Println("===============================================================")
	log.Printf("Database URL:                %s", maskDatabaseURL(o.DatabaseURL))
	log.Printf("Raft Enabled:                %v", o.RaftEnabled)
	if o.RaftEnabled {
		log.Printf("  Node ID:                   %s", o.RaftNodeID)
		log.Printf("  Bind Address:              %s", o.RaftBindAddr)
		log.Printf("  Advertise Address:         %s", o.RaftAdvertiseAddr)
		log.Printf("  Discovery Nodes:           %s", o.RaftDiscoveryNodes)
	}
	log.Printf("Resource Ceiling:            %d bytes", o.ResourceCeilingBytes)
	log.Printf("Resource Sample Interval:    %v", o.ResourceSampleInterval)
	log.Printf("GA Workers:                  %d (0 = auto)", o.GAWorkers)
	log.Printf("CP-SAT Workers:              %d (0 = auto)", o.CPSATWorkers)
	log.Printf("Progress WS Enabled:         %v", o.ProgressWSEnabled)
	if o.LadderFile != "" {
		log.Printf("Strategy Ladder Override:    %s", o.LadderFile)
	}
	log.Println("===============================================================")
}

func maskDatabaseURL(dsn string) string {
	if len(dsn) > 20 {
		return dsn[:10] + "..." + dsn[len(dsn)-10:]
	}
	return "***"
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[WARN] invalid boolean for %s: %s, using default %v", key, v, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[WARN] invalid integer for %s: %s, using default %d", key, v, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		log.Printf("[WARN] invalid unsigned integer for %s: %s, using default %d", key, v, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[WARN] invalid duration for %s: %s, using default %v", key, v, defaultValue)
		return defaultValue
	}
	return d
}
