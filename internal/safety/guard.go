package safety

import (
	"path/filepath"
	"strings"
)

// Policy is the immutable rule set a Guard enforces: an allow-list of command
// verbs, forbidden substrings checked against the whole command line, path
// globs gating file-mutating actions, and script suffixes that may be invoked
// directly without an allow-listed verb.
type Policy struct {
	AllowedCommands   []string `json:"allowed_commands"`
	ForbiddenPatterns []string `json:"forbidden_patterns"`
	AllowedPathGlobs  []string `json:"allowed_path_globs"`
	ScriptSuffixes    []string `json:"script_suffixes"`
}

// DefaultPolicy returns the built-in policy used when no configuration
// overrides it.
func DefaultPolicy() Policy {
	return Policy{
		AllowedCommands: []string{
			"python", "python3", "pip", "pip3", "alembic", "pytest",
			"go", "gofmt", "npm", "npx", "node", "tsc",
			"git", "ls", "cat", "grep", "find", "mkdir", "touch", "echo",
		},
		ForbiddenPatterns: []string{
			"rm -rf /",
			"rm -rf ~",
			"rm -rf *",
			"mkfs",
			"dd if=",
			"> /dev/sd",
			":(){",
			"chmod -r 777",
			"chmod 777 /",
			"drop table",
			"drop database",
			"truncate table",
			"delete from",
			"git push --force",
			"git push -f",
			"shutdown",
			"reboot",
		},
		AllowedPathGlobs: []string{
			"*.py", "*.go", "*.ts", "*.tsx", "*.js", "*.json", "*.sql",
			"*.md", "*.txt", "*.yaml", "*.yml", "*.html", "*.css",
		},
		ScriptSuffixes: []string{".py", ".sh"},
	}
}

// Guard validates proposed commands and file paths against a Policy.
// It is a pure checker with no state beyond the policy itself.
type Guard struct {
	policy Policy
}

// NewGuard creates a Guard enforcing the given policy.
func NewGuard(policy Policy) *Guard {
	return &Guard{policy: policy}
}

// CheckCommand reports whether the command may be dispatched. When rejected,
// the second return value names the rule that matched.
//
// The forbidden-pattern check runs first and cannot be bypassed by an
// otherwise allow-listed verb.
func (g *Guard) CheckCommand(command string) (bool, string) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return false, "empty command"
	}

	lowered := strings.ToLower(trimmed)
	for _, pattern := range g.policy.ForbiddenPatterns {
		if strings.Contains(lowered, strings.ToLower(pattern)) {
			return false, "forbidden pattern: " + pattern
		}
	}

	verb := strings.Fields(trimmed)[0]
	for _, allowed := range g.policy.AllowedCommands {
		if verb == allowed {
			return true, ""
		}
	}

	// Escape hatch: interpreted scripts may be invoked directly.
	for _, suffix := range g.policy.ScriptSuffixes {
		if strings.HasSuffix(trimmed, suffix) {
			return true, ""
		}
	}

	return false, "command verb not in allow list: " + verb
}

// CheckPath reports whether a file-mutating action may touch the given path.
// Globs are matched against the path as given; no canonicalization or
// traversal resolution is performed, so relative-path tricks are not caught
// here (known hardening gap).
func (g *Guard) CheckPath(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}

	for _, glob := range g.policy.AllowedPathGlobs {
		if ok, err := filepath.Match(glob, path); err == nil && ok {
			return true
		}
		// Patterns without a separator also gate by base name, so "*.py"
		// admits "app/models/show.py".
		if !strings.Contains(glob, string(filepath.Separator)) {
			if ok, err := filepath.Match(glob, filepath.Base(path)); err == nil && ok {
				return true
			}
		}
	}
	return false
}
