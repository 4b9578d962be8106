// Package rl repairs the residual conflicts left after Stage 2B with a
// tabular Q-learning agent: conflicts are enumerated, batches of episodes
// are evaluated concurrently, and the Q-table records which alternative
// (slot, room) choice resolves a course's conflict from a given state.
package rl

// Config bundles Stage 3's tunables; zero values fall back to documented
// defaults.
type Config struct {
	Alpha              float64 // learning rate, default 0.1
	Gamma              float64 // discount factor, default 0.9
	EpsilonStart       float64 // default 0.3
	EpsilonEnd         float64 // default 0.02
	MaxEpisodes        int     // default 1000
	SkipBelowConflicts int     // default 10
	TopK               int     // alternatives considered per action, default 10
	Seed               int64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:              0.1,
		Gamma:              0.9,
		EpsilonStart:       0.3,
		EpsilonEnd:         0.02,
		MaxEpisodes:        1000,
		SkipBelowConflicts: 10,
		TopK:               10,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Alpha == 0 {
		cfg.Alpha = 0.1
	}
	if cfg.Gamma == 0 {
		cfg.Gamma = 0.9
	}
	if cfg.EpsilonStart == 0 {
		cfg.EpsilonStart = 0.3
	}
	if cfg.EpsilonEnd == 0 {
		cfg.EpsilonEnd = 0.02
	}
	if cfg.MaxEpisodes <= 0 {
		cfg.MaxEpisodes = 1000
	}
	if cfg.SkipBelowConflicts <= 0 {
		cfg.SkipBelowConflicts = 10
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	return cfg
}

// epsilon anneals linearly from EpsilonStart to EpsilonEnd across the
// episode budget.
func (c Config) epsilon(episodesSoFar int) float64 {
	if c.MaxEpisodes <= 1 {
		return c.EpsilonEnd
	}
	t := float64(episodesSoFar) / float64(c.MaxEpisodes-1)
	if t > 1 {
		t = 1
	}
	return c.EpsilonStart + t*(c.EpsilonEnd-c.EpsilonStart)
}

// adaptiveBatchSize is 8 when free memory looks tight and 16 otherwise,
// per spec §4.7. Free memory is ceiling minus sampled bytes (0 if the sample
// exceeds the ceiling) and is tight below 4 GiB; 0 ceiling means "unknown",
// which defaults to the larger batch.
func adaptiveBatchSize(ceilingBytes, sampledBytes uint64) int {
	if ceilingBytes == 0 {
		return 16
	}
	var freeBytes uint64
	if sampledBytes < ceilingBytes {
		freeBytes = ceilingBytes - sampledBytes
	}
	const fourGB = 4 * 1024 * 1024 * 1024
	if freeBytes < fourGB {
		return 8
	}
	return 16
}
