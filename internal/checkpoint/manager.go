package checkpoint

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Checkpoint is a commit + tag taken immediately before a task executes,
// enabling exact rollback of the working tree.
type Checkpoint struct {
	TaskID string
	Tag    string
	Commit string
}

// Manager drives the version-control collaborator. Each git call is a
// synchronous, blocking subprocess with a short timeout; commits and tags are
// retried on transient index.lock contention.
type Manager struct {
	repoPath   string
	cmdTimeout time.Duration
}

// NewManager creates a checkpoint manager for the repository at repoPath.
func NewManager(repoPath string) *Manager {
	return &Manager{
		repoPath:   repoPath,
		cmdTimeout: 15 * time.Second,
	}
}

// HasUncommittedChanges reports whether the working tree is dirty.
func (m *Manager) HasUncommittedChanges(ctx context.Context) (bool, error) {
	out, err := m.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Save commits any uncommitted changes and tags the commit with a name
// derived from the task id. Returns (nil, nil) when the tree is clean: no
// checkpoint is needed, and that is not an error.
func (m *Manager) Save(ctx context.Context, taskID string) (*Checkpoint, error) {
	dirty, err := m.HasUncommittedChanges(ctx)
	if err != nil {
		return nil, err
	}
	if !dirty {
		return nil, nil
	}

	if _, err := m.gitRetry(ctx, "add", "-A"); err != nil {
		return nil, fmt.Errorf("staging changes: %w", err)
	}

	message := fmt.Sprintf("checkpoint before task %s", taskID)
	if _, err := m.gitRetry(ctx, "commit", "-m", message); err != nil {
		return nil, fmt.Errorf("committing checkpoint: %w", err)
	}

	commit, err := m.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("resolving checkpoint commit: %w", err)
	}

	tag := TagName(taskID)
	if _, err := m.gitRetry(ctx, "tag", tag); err != nil {
		return nil, fmt.Errorf("tagging checkpoint: %w", err)
	}

	return &Checkpoint{
		TaskID: taskID,
		Tag:    tag,
		Commit: strings.TrimSpace(commit),
	}, nil
}

// Rollback hard-resets the working tree to the checkpoint tag, discarding
// everything the failed task left behind.
func (m *Manager) Rollback(ctx context.Context, cp *Checkpoint) error {
	if cp == nil {
		return nil
	}
	if _, err := m.git(ctx, "reset", "--hard", cp.Tag); err != nil {
		return fmt.Errorf("rolling back to %s: %w", cp.Tag, err)
	}
	// Untracked files created by the task are not covered by reset.
	if _, err := m.git(ctx, "clean", "-fd"); err != nil {
		return fmt.Errorf("cleaning working tree after rollback: %w", err)
	}
	return nil
}

// Release deletes the checkpoint tag once the task committed successfully.
// Best effort; a leftover tag is clutter, not a correctness problem.
func (m *Manager) Release(ctx context.Context, cp *Checkpoint) error {
	if cp == nil {
		return nil
	}
	if _, err := m.git(ctx, "tag", "-d", cp.Tag); err != nil {
		return fmt.Errorf("deleting checkpoint tag %s: %w", cp.Tag, err)
	}
	return nil
}

// TagName derives a valid git ref name from a task id.
func TagName(taskID string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.' || r == '_':
			return r
		default:
			return '-'
		}
	}, taskID)
	sanitized = strings.Trim(sanitized, "-.")
	return fmt.Sprintf("checkpoint/%s-%d", sanitized, time.Now().Unix())
}

// git runs a single git command under the per-command timeout.
func (m *Manager) git(ctx context.Context, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, m.cmdTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "git", args...)
	cmd.Dir = m.repoPath
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s: %w (output: %s)", args[0], err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// gitRetry runs a git command, retrying when another process holds the index
// lock. Anything other than lock contention fails immediately.
func (m *Manager) gitRetry(ctx context.Context, args ...string) (string, error) {
	var out string

	operation := func() error {
		var err error
		out, err = m.git(ctx, args...)
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "index.lock") {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = 10 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	return out, err
}
