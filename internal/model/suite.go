package model

import (
	"fmt"
	"io"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Suite pins a reproducible analysis: the project directory, the reporting
// limit, and the exact test order as observed in a previous run or CI job.
type Suite struct {
	Project string
	Limit   int
	Tests   []TestID
}

type suiteYaml struct {
	Project string   `yaml:"project" default:"."`
	Limit   *int     `yaml:"limit"`
	Tests   []string `yaml:"tests"`
}

// LoadSuite reads a suite manifest in yaml format from a reader and
// initializes the corresponding suite struct. An absent limit falls back
// to DefaultLimit; an explicit limit of 0 means unlimited.
func LoadSuite(r io.Reader) (*Suite, error) {
	var config suiteYaml

	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("decoding suite manifest: %w", err)
	}
	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("applying manifest defaults: %w", err)
	}

	suite := Suite{
		Project: config.Project,
		Limit:   DefaultLimit,
	}
	if config.Limit != nil {
		suite.Limit = *config.Limit
	}
	for _, id := range config.Tests {
		suite.Tests = append(suite.Tests, TestID(id))
	}
	return &suite, nil
}
