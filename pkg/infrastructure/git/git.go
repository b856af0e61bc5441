package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes git against a project working directory. The sync worker
// uses it to preserve in-flight user edits (stash) and to record the
// durable "what was on disk and when" commit after extraction.
type Runner struct{}

func NewRunner() Runner { return Runner{} }

func (Runner) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	// Prevent git from prompting for credentials interactively.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w: %s", args[0], err, string(output))
	}
	return string(output), nil
}

// EnsureRepository initializes a repository in dir when none exists.
func (r Runner) EnsureRepository(ctx context.Context, dir string) error {
	if _, err := os.Stat(dir + "/.git"); err == nil {
		return nil
	}
	_, err := r.run(ctx, dir, "init")
	return err
}

// HasLocalChanges reports whether the working tree has uncommitted
// modifications or untracked files.
func (r Runner) HasLocalChanges(ctx context.Context, dir string) (bool, error) {
	out, err := r.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Stash saves uncommitted modifications, untracked files included, so a
// user's in-flight edits stay recoverable after the tree is overwritten.
func (r Runner) Stash(ctx context.Context, dir string, message string) error {
	_, err := r.run(ctx, dir, "stash", "push", "--include-untracked", "-m", message)
	return err
}

// CommitAll stages the whole tree and commits it.
func (r Runner) CommitAll(ctx context.Context, dir string, message string) error {
	if _, err := r.run(ctx, dir, "add", "-A"); err != nil {
		return err
	}
	_, err := r.run(ctx, dir, "commit", "--allow-empty", "-m", message)
	return err
}

// Tag marks the current commit with the version id.
func (r Runner) Tag(ctx context.Context, dir string, name string) error {
	_, err := r.run(ctx, dir, "tag", "-f", name)
	return err
}
