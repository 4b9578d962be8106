package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jgirmay/timetabled/internal/cpsat"
)

// ladderFile is the on-disk shape of a CPSAT_STRATEGIES override file: a
// flat list of ladder rungs tried in order, same fields as cpsat.Strategy
// but with a plain string timeout (YAML has no time.Duration literal).
type ladderFile struct {
	Strategies []ladderRung `yaml:"strategies"`
}

type ladderRung struct {
	Name             string `yaml:"name"`
	StudentPriority  string `yaml:"student_priority"`
	Timeout          string `yaml:"timeout"`
	ConstraintBudget int    `yaml:"constraint_budget"`
	EnforceStudents  bool   `yaml:"enforce_students"`
}

// LoadLadder reads a YAML-encoded strategy ladder override from path. An
// empty path or a missing file is not an error: callers fall back to
// cpsat.DefaultLadder().
func LoadLadder(path string) ([]cpsat.Strategy, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read ladder file: %w", err)
	}

	var file ladderFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse ladder file %s: %w", path, err)
	}

	ladder := make([]cpsat.Strategy, 0, len(file.Strategies))
	for _, r := range file.Strategies {
		timeout, err := time.ParseDuration(r.Timeout)
		if err != nil {
			return nil, fmt.Errorf("config: ladder rung %q: invalid timeout %q: %w", r.Name, r.Timeout, err)
		}
		ladder = append(ladder, cpsat.Strategy{
			Name:             r.Name,
			StudentPriority:  cpsat.StudentPriority(r.StudentPriority),
			Timeout:          timeout,
			ConstraintBudget: r.ConstraintBudget,
			EnforceStudents:  r.EnforceStudents,
		})
	}
	if len(ladder) == 0 {
		return nil, fmt.Errorf("config: ladder file %s defines no strategies", path)
	}
	return ladder, nil
}
