package types

// QueueEntry is one buildable unit from the build queue.
type QueueEntry struct {
	Name     string     `yaml:"name"`
	Version  string     `yaml:"version"`
	RepoURL  string     `yaml:"repo_url"`
	RepoPath string     `yaml:"repo_path"`
	Repo     string     `yaml:"repo"`
	Kind     SourceKind `yaml:"kind"`
	Packages []string   `yaml:"packages"`
	Depends  []string   `yaml:"depends,omitempty"`
}

type SkippedEntry struct {
	Entry  QueueEntry `yaml:"entry"`
	Reason string     `yaml:"reason"`
}

type Classification struct {
	Done    []QueueEntry   `yaml:"done"`
	Skipped []SkippedEntry `yaml:"skipped"`
	Todo    []QueueEntry   `yaml:"todo"`
}
