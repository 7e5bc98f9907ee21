package types

// Command is one invocation inside the build environment.
type Command struct {
	Dir  string
	Env  map[string]string
	Args []string
}
