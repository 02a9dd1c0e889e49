package timebox

import (
	"sort"
)

// Overlaps reports whether two tasks' [start,end) intervals intersect.
// Touching blocks (a ends when b starts) do not overlap. Malformed tasks
// never overlap anything.
func Overlaps(a, b Task) bool {
	as, ae, ok := a.span()
	if !ok {
		return false
	}
	bs, be, ok := b.span()
	if !ok {
		return false
	}
	return as < be && bs < ae
}

// Conflict is one overlapping pair.
type Conflict struct {
	First   string `json:"first"`
	Second  string `json:"second"`
	Minutes int    `json:"minutes"`
}

// FindConflicts returns every overlapping pair, ordered by the first
// task's start time.
func FindConflicts(tasks []Task) []Conflict {
	ordered := sortedValid(tasks)
	var out []Conflict
	for i := 0; i < len(ordered); i++ {
		as, ae, _ := ordered[i].span()
		for j := i + 1; j < len(ordered); j++ {
			bs, be, _ := ordered[j].span()
			if bs >= ae {
				break
			}
			out = append(out, Conflict{
				First:   ordered[i].ID,
				Second:  ordered[j].ID,
				Minutes: min(ae, be) - max(as, bs),
			})
		}
	}
	return out
}

// ConflictingIDs is the set of task ids involved in at least one conflict.
func ConflictingIDs(tasks []Task) map[string]bool {
	ids := make(map[string]bool)
	for _, c := range FindConflicts(tasks) {
		ids[c.First] = true
		ids[c.Second] = true
	}
	return ids
}

// ConflictsWith lists the tasks a candidate would overlap. A task with the
// candidate's id is the candidate itself and is ignored.
func ConflictsWith(tasks []Task, candidate Task) []Task {
	var out []Task
	for _, t := range tasks {
		if candidate.ID != "" && t.ID == candidate.ID {
			continue
		}
		if Overlaps(t, candidate) {
			out = append(out, t)
		}
	}
	return out
}

// sortedValid drops malformed tasks and orders the rest by start, then end.
func sortedValid(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if _, _, ok := t.span(); ok {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		is, ie, _ := out[i].span()
		js, je, _ := out[j].span()
		if is != js {
			return is < js
		}
		return ie < je
	})
	return out
}
