package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/utkarsh5026/parmerge/merge"
)

// Scenario is one benchmark setup. A YAML config file holds a list of them:
//
//	scenarios:
//	  - name: many-short
//	    sequences: 64
//	    length: 1000
//	    workers: [1, 4, 8]
//	    stable: true
//	  - name: few-long
//	    sequences: 4
//	    length: 1000000
//	    splitting: [exact]
//	    executors: [pool]
type Scenario struct {
	Name       string   `yaml:"name"`
	Sequences  int      `yaml:"sequences"`
	Length     int      `yaml:"length"`
	Size       int      `yaml:"size"`
	Workers    []int    `yaml:"workers"`
	Iterations int      `yaml:"iterations"`
	Stable     bool     `yaml:"stable"`
	Splitting  []string `yaml:"splitting"`
	Executors  []string `yaml:"executors"`
	Seed       uint64   `yaml:"seed"`
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

var executorNames = []string{"ephemeral", "pool", "pool-pinned"}

// loadScenarios reads scenarios from path and fills unset fields from base.
func loadScenarios(path string, base Scenario) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("config %s defines no scenarios", path)
	}

	out := make([]Scenario, len(file.Scenarios))
	for i, sc := range file.Scenarios {
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("scenario-%d", i+1)
		}
		sc = sc.withDefaults(base)
		if err := sc.validate(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		out[i] = sc
	}
	return out, nil
}

// withDefaults fills every zero field of sc from base.
func (sc Scenario) withDefaults(base Scenario) Scenario {
	if sc.Name == "" {
		sc.Name = base.Name
	}
	if sc.Sequences == 0 {
		sc.Sequences = base.Sequences
	}
	if sc.Length == 0 {
		sc.Length = base.Length
	}
	if sc.Size == 0 {
		sc.Size = base.Size
	}
	if len(sc.Workers) == 0 {
		sc.Workers = base.Workers
	}
	if sc.Iterations == 0 {
		sc.Iterations = base.Iterations
	}
	if len(sc.Splitting) == 0 {
		sc.Splitting = base.Splitting
	}
	if len(sc.Executors) == 0 {
		sc.Executors = base.Executors
	}
	if sc.Seed == 0 {
		sc.Seed = base.Seed
	}
	return sc
}

func (sc Scenario) validate() error {
	var errs *multierror.Error
	if sc.Sequences <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("sequences must be positive, got %d", sc.Sequences))
	}
	if sc.Length < 0 {
		errs = multierror.Append(errs, fmt.Errorf("length must not be negative, got %d", sc.Length))
	}
	if sc.Size < 0 {
		errs = multierror.Append(errs, fmt.Errorf("size must not be negative, got %d", sc.Size))
	}
	if sc.Iterations <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("iterations must be positive, got %d", sc.Iterations))
	}
	for _, w := range sc.Workers {
		if w <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("worker counts must be positive, got %d", w))
		}
	}
	for _, s := range sc.Splitting {
		if _, err := merge.ParseSplitting(s); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for _, e := range sc.Executors {
		if !isExecutorName(e) {
			errs = multierror.Append(errs, fmt.Errorf("unknown executor %q (want one of %v)", e, executorNames))
		}
	}
	return errs.ErrorOrNil()
}

func isExecutorName(name string) bool {
	return slices.Contains(executorNames, name)
}

// mergeSize is the number of elements merged per iteration.
func (sc Scenario) mergeSize() int {
	total := sc.Sequences * sc.Length
	if sc.Size <= 0 || sc.Size > total {
		return total
	}
	return sc.Size
}
