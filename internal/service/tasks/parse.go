package tasks

import "strings"

var sentinels = map[string]bool{
	"":             true,
	"none":         true,
	"no tasks":     true,
	"no task":      true,
	"no action":    true,
	"empty string": true,
}

// ParseTasks splits an extraction answer into task lines. Bullets and blank
// lines are dropped, and a whole answer like "None." means no tasks.
func ParseTasks(answer string) []string {
	var lines []string
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-•*"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if isSentinel(strings.Join(lines, " ")) {
		return nil
	}
	return lines
}

func isSentinel(s string) bool {
	return sentinels[strings.ToLower(strings.Trim(s, " \t\r\n.!\"'`"))]
}
