package types

import "time"

type RunReport struct {
	StartedAt   time.Time `yaml:"started_at"`
	FinishedAt  time.Time `yaml:"finished_at"`
	Built       []string  `yaml:"built"`
	Failed      []string  `yaml:"failed"`
	MissingDeps []string  `yaml:"missing_deps"`
	TimedOut    string    `yaml:"timed_out,omitempty"`
	Remaining   []string  `yaml:"remaining"`
}

// Report bundles what a build or show run writes to disk.
type Report struct {
	Classification Classification `yaml:"classification"`
	Run            *RunReport     `yaml:"run,omitempty"`
}
