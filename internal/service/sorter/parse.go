package sorter

import (
	"strings"

	"github.com/huavcjj/wavemail/internal/domain/triage"
)

// ParseLabel accepts only an exact member of the closed label set, ignoring
// case, whitespace, quotes and trailing punctuation.
func ParseLabel(answer string) (triage.CategoryLabel, bool) {
	l := triage.CategoryLabel(strings.ToLower(strings.Trim(answer, " \t\r\n.!:\"'`*")))
	if !l.Valid() {
		return triage.LabelInbox, false
	}
	return l, true
}
