package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/floweriwe/stagehand/internal/task"
)

// defaultSeedMinimum is the smallest acceptable record count per seeded
// entity before a top-up task is generated.
const defaultSeedMinimum = 5

// seedCountPatterns is the phrase family used to extract "created N <entity>"
// counts from seed-script output.
var seedCountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)created\s+(\d+)\s+([a-z][a-z_]*)`),
	regexp.MustCompile(`(?i)added\s+(\d+)\s+([a-z][a-z_]*)`),
	regexp.MustCompile(`(?i)(\d+)\s+([a-z][a-z_]*)\s+created`),
	regexp.MustCompile(`(?i)seeded\s+(\d+)\s+([a-z][a-z_]*)`),
}

var generatedFilesPattern = regexp.MustCompile(`(?i)generated\s+(\d+)\s+(?:pdf|document|file)`)

// SeedingStrategy analyzes seed-data tasks: it records per-entity record
// counts as context facts, tops up undersized seed sets, and re-runs document
// generation that produced nothing.
type SeedingStrategy struct {
	Minimum int
}

// NewSeedingStrategy creates a seeding strategy with the default minimum.
func NewSeedingStrategy() *SeedingStrategy {
	return &SeedingStrategy{Minimum: defaultSeedMinimum}
}

// Matches selects seed-data phases.
func (s *SeedingStrategy) Matches(phase string) bool {
	switch strings.ToLower(phase) {
	case "seeding", "seed-data", "seed", "data":
		return true
	}
	return false
}

// Analyze implements Strategy.
func (s *SeedingStrategy) Analyze(t *task.Task, output string, exitCode int, res *Result) {
	counts := extractSeedCounts(output)
	for entity, n := range counts {
		res.Facts["seeded_"+entity] = n
		if n < s.Minimum {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("only %d %s records seeded, expected at least %d", n, entity, s.Minimum))
			res.NewTasks = append(res.NewTasks, &task.Task{
				ID:       fmt.Sprintf("%s.top-up-%s", t.ID, entity),
				Name:     fmt.Sprintf("Add more %s records", entity),
				Phase:    "seeding",
				Priority: task.PriorityMedium,
				Actions: []task.Action{
					{Kind: task.KindRunCommand, Command: "python scripts/seed.py --entity " + entity},
				},
			})
		}
	}

	// A document-generation task reporting zero files on disk means the
	// artifacts were silently skipped; re-run generation.
	if m := generatedFilesPattern.FindStringSubmatch(output); m != nil {
		n, _ := strconv.Atoi(m[1])
		res.Facts["generated_files"] = n
		if n == 0 {
			res.Issues = append(res.Issues, "document generation reported zero files on disk")
			res.NewTasks = append(res.NewTasks, &task.Task{
				ID:       t.ID + ".regenerate-documents",
				Name:     "Regenerate documents",
				Phase:    "seeding",
				Priority: task.PriorityHigh,
				Actions: []task.Action{
					{Kind: task.KindGenerateArtifact, Target: "generated/documents"},
				},
			})
		}
	}
}

// extractSeedCounts returns the highest count reported per entity. The same
// entity can appear in several phrasings; the largest value wins.
func extractSeedCounts(output string) map[string]int {
	counts := make(map[string]int)
	for _, pattern := range seedCountPatterns {
		for _, m := range pattern.FindAllStringSubmatch(output, -1) {
			var n int
			var entity string
			if _, err := fmt.Sscanf(m[1], "%d", &n); err != nil {
				continue
			}
			entity = strings.ToLower(m[2])
			if n > counts[entity] {
				counts[entity] = n
			}
		}
	}
	return counts
}
