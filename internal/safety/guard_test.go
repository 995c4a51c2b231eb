package safety

import (
	"strings"
	"testing"
)

func TestCheckCommand(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	tests := []struct {
		name       string
		command    string
		wantOK     bool
		wantReason string
	}{
		{
			name:    "allowed verb",
			command: "pytest tests/ -v",
			wantOK:  true,
		},
		{
			name:    "allowed verb with args",
			command: "alembic upgrade head",
			wantOK:  true,
		},
		{
			name:       "empty command",
			command:    "",
			wantOK:     false,
			wantReason: "empty",
		},
		{
			name:       "whitespace only",
			command:    "   ",
			wantOK:     false,
			wantReason: "empty",
		},
		{
			name:       "unlisted verb",
			command:    "curl http://example.com",
			wantOK:     false,
			wantReason: "not in allow list",
		},
		{
			name:       "forbidden pattern beats allow list",
			command:    "git push --force origin main",
			wantOK:     false,
			wantReason: "forbidden pattern",
		},
		{
			name:       "forbidden pattern case-insensitive",
			command:    "python manage.py shell -c 'DROP TABLE shows'",
			wantOK:     false,
			wantReason: "forbidden pattern",
		},
		{
			name:       "destructive delete",
			command:    "rm -rf / --no-preserve-root",
			wantOK:     false,
			wantReason: "forbidden pattern",
		},
		{
			name:    "script suffix escape hatch",
			command: "./scripts/generate_pdfs.py",
			wantOK:  true,
		},
		{
			name:    "shell script suffix",
			command: "./build.sh",
			wantOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := guard.CheckCommand(tt.command)
			if ok != tt.wantOK {
				t.Errorf("CheckCommand(%q) = %v (reason %q), want %v", tt.command, ok, reason, tt.wantOK)
			}
			if !tt.wantOK && !strings.Contains(reason, tt.wantReason) {
				t.Errorf("reason %q does not contain %q", reason, tt.wantReason)
			}
		})
	}
}

func TestCheckPath(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	tests := []struct {
		path string
		want bool
	}{
		{"app/models/show.py", true},
		{"main.go", true},
		{"frontend/src/App.tsx", true},
		{"migrations/versions/abc123.sql", true},
		{"secrets.env", false},
		{"binary.exe", false},
		{"", false},
		{"  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := guard.CheckPath(tt.path); got != tt.want {
				t.Errorf("CheckPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestCheckCommandCustomPolicy(t *testing.T) {
	guard := NewGuard(Policy{
		AllowedCommands:   []string{"make"},
		ForbiddenPatterns: []string{"clean"},
	})

	if ok, _ := guard.CheckCommand("make build"); !ok {
		t.Error("expected make build to be allowed")
	}
	if ok, reason := guard.CheckCommand("make clean"); ok {
		t.Error("expected make clean to be rejected")
	} else if !strings.Contains(reason, "clean") {
		t.Errorf("reason %q should name the matched pattern", reason)
	}
	// No script suffixes configured: scripts are rejected.
	if ok, _ := guard.CheckCommand("./run.sh"); ok {
		t.Error("expected script to be rejected without configured suffixes")
	}
}
