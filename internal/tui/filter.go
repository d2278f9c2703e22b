package tui

import (
	"github.com/sahilm/fuzzy"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/view"
)

// taskSource adapts task rows to fuzzy.Source, matching on the title
// followed by the full description.
type taskSource []view.TaskItem

func (s taskSource) String(i int) string { return s[i].Title + " " + s[i].Description }
func (s taskSource) Len() int            { return len(s) }

// FilterTasks returns the tasks matching query, best match first. An empty
// query returns tasks unchanged.
func FilterTasks(tasks []view.TaskItem, query string) []view.TaskItem {
	if query == "" {
		return tasks
	}
	matches := fuzzy.FindFrom(query, taskSource(tasks))
	out := make([]view.TaskItem, 0, len(matches))
	for _, match := range matches {
		out = append(out, tasks[match.Index])
	}
	return out
}
