package triage

// Condition names the ways an oracle call can fail to produce a usable answer.
type Condition string

const (
	OracleError          Condition = "oracle_error"
	UnrecognizedResponse Condition = "unrecognized_response"
)

// Fallback is the outcome every component applies for a Condition.
type Fallback struct {
	Importance Verdict
	Category   CategoryLabel
	Tasks      []string
}

// FailClosed maps each Condition to the least destructive outcome:
// not important, left in the inbox, no tasks.
var FailClosed = map[Condition]Fallback{
	OracleError: {
		Importance: NotImportant,
		Category:   LabelInbox,
		Tasks:      nil,
	},
	UnrecognizedResponse: {
		Importance: NotImportant,
		Category:   LabelInbox,
		Tasks:      nil,
	},
}

// FallbackFor returns the table entry for c. Unknown conditions get the
// OracleError entry.
func FallbackFor(c Condition) Fallback {
	if f, ok := FailClosed[c]; ok {
		return f
	}
	return FailClosed[OracleError]
}
