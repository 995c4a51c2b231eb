package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/floweriwe/stagehand/internal/task"
)

// entityPattern extracts the entity name from a "Create <Name> model" task.
var entityPattern = regexp.MustCompile(`(?i)^create\s+([A-Za-z][A-Za-z0-9]*)\s+model`)

// MigrationStrategy analyzes schema-change tasks. It reacts to unmerged
// migration heads and expands successful "create model" tasks into the full
// layer chain the new entity needs.
type MigrationStrategy struct{}

// Matches selects schema-change phases.
func (s *MigrationStrategy) Matches(phase string) bool {
	switch strings.ToLower(phase) {
	case "database", "migration", "migrations", "schema":
		return true
	}
	return false
}

// Analyze implements Strategy.
func (s *MigrationStrategy) Analyze(t *task.Task, output string, exitCode int, res *Result) {
	if exitCode != 0 {
		return
	}

	if strings.Contains(strings.ToLower(output), "multiple head") {
		res.Issues = append(res.Issues, "migration produced multiple revision heads")
		res.NewTasks = append(res.NewTasks, &task.Task{
			ID:          t.ID + ".merge-heads",
			Name:        "Merge migration heads",
			Description: "Multiple unmerged revision heads were reported; merge and re-apply.",
			Phase:       "database",
			Priority:    task.PriorityCritical,
			Actions: []task.Action{
				{Kind: task.KindRunCommand, Command: "alembic merge heads"},
				{Kind: task.KindRunCommand, Command: "alembic upgrade head"},
			},
		})
	}

	if entity := extractEntity(t.Name); entity != "" {
		res.NewTasks = append(res.NewTasks, entityChain(t.ID, entity)...)
		res.Facts["model_created"] = entity
	}
}

// extractEntity pulls the entity name out of a "Create <Name> model" task
// name. Returns "" when the name does not follow the pattern, in which case
// no chain is generated.
func extractEntity(name string) string {
	m := entityPattern.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return ""
	}
	return m[1]
}

// entityChain builds the fixed four-task follow-up chain for a new entity:
// schema, data-access layer, business-logic layer, API layer, each depending
// on the previous.
func entityChain(triggerID, entity string) []*task.Task {
	lower := strings.ToLower(entity)

	schema := &task.Task{
		ID:       fmt.Sprintf("%s.%s-schema", triggerID, lower),
		Name:     fmt.Sprintf("Create %s schema", entity),
		Phase:    "database",
		Priority: task.PriorityHigh,
		Actions: []task.Action{
			{Kind: task.KindCreateFile, Target: fmt.Sprintf("app/schemas/%s.py", lower)},
		},
	}
	repository := &task.Task{
		ID:           fmt.Sprintf("%s.%s-repository", triggerID, lower),
		Name:         fmt.Sprintf("Create %s repository", entity),
		Phase:        "backend",
		Priority:     task.PriorityHigh,
		Dependencies: []string{schema.ID},
		Actions: []task.Action{
			{Kind: task.KindCreateFile, Target: fmt.Sprintf("app/repositories/%s.py", lower)},
		},
	}
	service := &task.Task{
		ID:           fmt.Sprintf("%s.%s-service", triggerID, lower),
		Name:         fmt.Sprintf("Create %s service", entity),
		Phase:        "backend",
		Priority:     task.PriorityHigh,
		Dependencies: []string{repository.ID},
		Actions: []task.Action{
			{Kind: task.KindCreateFile, Target: fmt.Sprintf("app/services/%s.py", lower)},
		},
	}
	api := &task.Task{
		ID:           fmt.Sprintf("%s.%s-api", triggerID, lower),
		Name:         fmt.Sprintf("Create %s API routes", entity),
		Phase:        "backend",
		Priority:     task.PriorityHigh,
		Dependencies: []string{service.ID},
		Actions: []task.Action{
			{Kind: task.KindCreateFile, Target: fmt.Sprintf("app/api/%s.py", lower)},
		},
	}

	for _, t := range []*task.Task{schema, repository, service, api} {
		t.GeneratedBy = triggerID
		t.AutoGenerated = true
	}
	return []*task.Task{schema, repository, service, api}
}
