package vcs

import "fmt"

// InvalidRefError reports a reference string that does not resolve to a
// commit in the repository.
type InvalidRefError struct {
	Ref string
	Err error
}

func (e *InvalidRefError) Error() string {
	return fmt.Sprintf("invalid ref %q: %v", e.Ref, e.Err)
}

func (e *InvalidRefError) Unwrap() error { return e.Err }

// NotARepositoryError reports a project root that is not under version
// control when a diff is requested.
type NotARepositoryError struct {
	Root string
}

func (e *NotARepositoryError) Error() string {
	return fmt.Sprintf("not a git repository: %s", e.Root)
}

// OperationError reports a failed external git invocation. It carries the
// operation description and the process stderr; failures are surfaced, not
// retried.
type OperationError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *OperationError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
