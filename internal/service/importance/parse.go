package importance

import (
	"strings"

	"github.com/huavcjj/wavemail/internal/domain/triage"
)

// ParseVerdict reads a single-token Yes/No answer. The bool is false when
// the answer is neither; the verdict is then NotImportant.
func ParseVerdict(answer string) (triage.Verdict, bool) {
	switch strings.ToLower(strings.Trim(answer, " \t\r\n.!\"'`")) {
	case "yes":
		return triage.Important, true
	case "no":
		return triage.NotImportant, true
	default:
		return triage.NotImportant, false
	}
}
