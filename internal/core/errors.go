package core

import "fmt"

// MissingDependencyError reports that no published artifact satisfies a
// dependency of the package being staged. The run skips the package and
// continues.
type MissingDependencyError struct {
	Package string
	Pattern string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s: asset for %s not found", e.Package, e.Pattern)
}

// BuildTimeoutError reports that the run's time budget ran out during a
// build phase. The run stops after it.
type BuildTimeoutError struct {
	Package string
	Phase   string
	Cause   error
}

func (e *BuildTimeoutError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s phase timed out", e.Package, e.Phase)
	}
	return fmt.Sprintf("%s: %s phase timed out: %v", e.Package, e.Phase, e.Cause)
}

func (e *BuildTimeoutError) Unwrap() error { return e.Cause }

// BuildError reports a build tool failure other than a timeout. Failure
// markers have been published by the time it is returned.
type BuildError struct {
	Package string
	Phase   string
	Cause   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s phase failed: %v", e.Package, e.Phase, e.Cause)
}

func (e *BuildError) Unwrap() error { return e.Cause }

// RestoreError reports that the build environment could not be returned to
// its state before a package attempt. The run cannot continue after it.
type RestoreError struct {
	Op    string
	Cause error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Cause)
}

func (e *RestoreError) Unwrap() error { return e.Cause }
