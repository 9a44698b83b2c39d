// Package vcs wraps the external git process behind the version-control
// provider the diff engine depends on: reference resolution, change
// detection, and snapshot materialization. All operations are blocking
// calls to git; failures surface as typed errors and are never retried.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// WorkingSentinel is the reference string meaning the current uncommitted
// working-tree contents.
const WorkingSentinel = "working"

// Snapshot identifies one side of a diff: a resolved commit SHA, or the
// working tree when SHA is empty.
type Snapshot struct {
	Ref string
	SHA string
}

// Working reports whether the snapshot is the uncommitted working tree.
func (s Snapshot) Working() bool { return s.SHA == "" }

// ChangeKind classifies one changed path.
type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Deleted  ChangeKind = "deleted"
	Renamed  ChangeKind = "renamed"
)

// FileChange is one changed path between two snapshots. Renames carry the
// old path alongside the new one instead of appearing as an add and a
// delete.
type FileChange struct {
	Path    string     `json:"path"`
	Kind    ChangeKind `json:"kind"`
	OldPath string     `json:"old_path,omitempty"`
}

// analyzableExts limits change detection to the extensions the analyzers
// handle.
var analyzableExts = map[string]bool{
	".py": true,
	".sh": true,
}

// Git is the exec-based provider for one repository root.
type Git struct {
	root   string
	logger *slog.Logger
}

// Open verifies that root is inside a git repository and returns a provider
// for it. A root outside version control fails with NotARepositoryError
// before any snapshot work starts.
func Open(ctx context.Context, root string, logger *slog.Logger) (*Git, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Git{root: root, logger: logger}
	if _, err := g.run(ctx, "rev-parse", "--git-dir"); err != nil {
		return nil, &NotARepositoryError{Root: root}
	}
	return g, nil
}

// Root returns the repository root the provider was opened on.
func (g *Git) Root() string { return g.root }

// ResolveRef resolves a reference string to a snapshot. The working sentinel
// resolves to the working-tree snapshot without touching git.
func (g *Git) ResolveRef(ctx context.Context, ref string) (Snapshot, error) {
	if ref == WorkingSentinel {
		return Snapshot{Ref: ref}, nil
	}
	out, err := g.run(ctx, "rev-parse", "--verify", ref)
	if err != nil {
		return Snapshot{}, &InvalidRefError{Ref: ref, Err: err}
	}
	return Snapshot{Ref: ref, SHA: strings.TrimSpace(out)}, nil
}

// ListChangedFiles lists analyzable paths that differ between two snapshots.
// git always diffs committed-to-working in one direction, so a request with
// the working tree on the before side runs the inverted diff and swaps the
// change kinds back.
func (g *Git) ListChangedFiles(ctx context.Context, before, after Snapshot) ([]FileChange, error) {
	if before.Working() && after.Working() {
		return nil, nil
	}

	var (
		args     = []string{"diff", "--name-status", "-M"}
		inverted bool
	)
	switch {
	case after.Working():
		args = append(args, before.SHA)
	case before.Working():
		args = append(args, after.SHA)
		inverted = true
	default:
		args = append(args, before.SHA+".."+after.SHA)
	}

	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, &OperationError{Op: "diff --name-status", Err: err}
	}

	var changes []FileChange
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		change, ok := parseChangeLine(line)
		if !ok {
			continue
		}
		if inverted {
			change = invert(change)
		}
		if analyzableExts[strings.ToLower(filepath.Ext(change.Path))] {
			changes = append(changes, change)
		}
	}
	return changes, nil
}

// parseChangeLine parses one `git diff --name-status` line. Rename lines
// carry a similarity score in the status column and two paths.
func parseChangeLine(line string) (FileChange, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) < 2 || parts[0] == "" {
		return FileChange{}, false
	}
	switch parts[0][0] {
	case 'A':
		return FileChange{Path: parts[1], Kind: Added}, true
	case 'M':
		return FileChange{Path: parts[1], Kind: Modified}, true
	case 'D':
		return FileChange{Path: parts[1], Kind: Deleted}, true
	case 'R':
		if len(parts) < 3 {
			return FileChange{}, false
		}
		return FileChange{Path: parts[2], Kind: Renamed, OldPath: parts[1]}, true
	}
	return FileChange{}, false
}

// invert flips a change's direction: adds become deletes and rename paths
// swap. Modifications keep their kind.
func invert(c FileChange) FileChange {
	switch c.Kind {
	case Added:
		c.Kind = Deleted
	case Deleted:
		c.Kind = Added
	case Renamed:
		c.Path, c.OldPath = c.OldPath, c.Path
	}
	return c
}

// MaterializeSnapshot extracts a snapshot's content into an isolated
// temporary directory and returns its root plus a release function. The
// working-tree snapshot is analyzed in place; its release is a no-op. The
// caller must invoke release on every exit path.
func (g *Git) MaterializeSnapshot(ctx context.Context, snap Snapshot) (string, func(), error) {
	if snap.Working() {
		return g.root, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "flowdiff-snapshot-")
	if err != nil {
		return "", nil, &OperationError{Op: "materialize snapshot", Err: err}
	}
	release := func() {
		if err := os.RemoveAll(dir); err != nil {
			g.logger.Warn("snapshot cleanup failed", "dir", dir, "error", err)
		}
	}

	archive := exec.CommandContext(ctx, "git", "archive", snap.SHA)
	archive.Dir = g.root
	var archiveErr bytes.Buffer
	archive.Stderr = &archiveErr

	pipe, err := archive.StdoutPipe()
	if err != nil {
		release()
		return "", nil, &OperationError{Op: "archive " + snap.SHA, Err: err}
	}

	extract := exec.CommandContext(ctx, "tar", "-x", "-C", dir)
	extract.Stdin = pipe
	var extractErr bytes.Buffer
	extract.Stderr = &extractErr

	if err := archive.Start(); err != nil {
		release()
		return "", nil, &OperationError{Op: "archive " + snap.SHA, Err: err}
	}
	if err := extract.Run(); err != nil {
		_ = archive.Wait()
		release()
		return "", nil, &OperationError{Op: "extract " + snap.SHA, Stderr: extractErr.String(), Err: err}
	}
	if err := archive.Wait(); err != nil {
		release()
		return "", nil, &OperationError{Op: "archive " + snap.SHA, Stderr: archiveErr.String(), Err: err}
	}

	g.logger.Debug("materialized snapshot", "ref", snap.Ref, "dir", dir)
	return dir, release, nil
}

// Describe returns a human-readable description of a snapshot: the ref with
// its short SHA and first commit-message line, or a fixed string for the
// working tree.
func (g *Git) Describe(ctx context.Context, snap Snapshot) string {
	if snap.Working() {
		return "Working directory (uncommitted changes)"
	}

	short := snap.SHA
	if len(short) > 7 {
		short = short[:7]
	}

	subject := ""
	if out, err := g.run(ctx, "log", "-1", "--format=%s", snap.SHA); err == nil {
		subject = strings.TrimSpace(out)
		if len(subject) > 60 {
			subject = subject[:57] + "..."
		}
	}

	if subject == "" {
		return fmt.Sprintf("%s (%s)", snap.Ref, short)
	}
	return fmt.Sprintf("%s (%s) - %s", snap.Ref, short, subject)
}

// run executes one git command in the repository root and returns stdout.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}
