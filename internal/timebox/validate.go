package timebox

import (
	"fmt"
	"strings"
)

// ValidationError carries human-readable problems that block a submission.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid timebox: " + strings.Join(e.Problems, "; ")
}

// ConflictError means the task is well-formed but overlaps others.
type ConflictError struct {
	With []Task
}

func (e *ConflictError) Error() string {
	return "timebox conflict: " + strings.Join(overlapMessages(e.With), "; ")
}

func (e *ConflictError) Problems() []string {
	return overlapMessages(e.With)
}

func overlapMessages(tasks []Task) []string {
	var out []string
	for _, t := range tasks {
		out = append(out, fmt.Sprintf("overlaps with %q (%s-%s)", t.Title, t.StartTime, t.EndTime))
	}
	return out
}

// checkFields validates a task on its own, without looking at the day.
func checkFields(t Task) []string {
	var problems []string
	if strings.TrimSpace(t.Title) == "" {
		problems = append(problems, "title is required")
	}
	startOK, endOK := true, true
	if _, err := ParseClock(t.StartTime); err != nil {
		problems = append(problems, fmt.Sprintf("start time %q must be HH:MM (24-hour)", t.StartTime))
		startOK = false
	}
	if _, err := parseEnd(t.EndTime); err != nil {
		problems = append(problems, fmt.Sprintf("end time %q must be HH:MM (24-hour)", t.EndTime))
		endOK = false
	}
	if startOK && endOK {
		if _, _, err := ParseRange(t.StartTime, t.EndTime); err != nil {
			problems = append(problems, "end time must be after start time")
		}
	}
	if !t.Category.Valid() {
		problems = append(problems, fmt.Sprintf("category %q must be one of %s", t.Category, categoryList()))
	}
	return problems
}

func categoryList() string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// Validate returns every problem with t as a new or edited task of the
// given day, overlaps included. An empty result means it can be saved.
func Validate(t Task, existing []Task) []string {
	problems := checkFields(t)
	if len(problems) > 0 {
		return problems
	}
	return overlapMessages(ConflictsWith(existing, t))
}

// check is Validate with typed errors: field problems win over overlaps.
func check(t Task, existing []Task) error {
	if problems := checkFields(t); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	if with := ConflictsWith(existing, t); len(with) > 0 {
		return &ConflictError{With: with}
	}
	return nil
}
