package triage

import "fmt"

type Verdict string

const (
	Important    Verdict = "important"
	NotImportant Verdict = "not-important"
)

type CategoryLabel string

const (
	LabelInbox      CategoryLabel = "inbox"
	LabelTrash      CategoryLabel = "trash"
	LabelSpam       CategoryLabel = "spam"
	LabelPromotions CategoryLabel = "promotions"
	LabelSocial     CategoryLabel = "social"
	LabelUpdates    CategoryLabel = "updates"
	LabelForums     CategoryLabel = "forums"
)

// Labels is the closed set a sort pass may assign, in prompt order.
var Labels = []CategoryLabel{
	LabelTrash,
	LabelSpam,
	LabelPromotions,
	LabelSocial,
	LabelUpdates,
	LabelForums,
	LabelInbox,
}

func (l CategoryLabel) Valid() bool {
	for _, v := range Labels {
		if v == l {
			return true
		}
	}
	return false
}

type NotificationItem struct {
	MessageID string `json:"-"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Summary   string `json:"summary"`
	Date      string `json:"date"`
}

type TodoItem struct {
	MessageID string `json:"-"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Todo      string `json:"todo"`
	Date      string `json:"date"`
}

// SortResult acknowledges a completed sort pass. Individual failures are
// only counted; details go to the log. Skipped counts emails an overlapping
// pass was already sorting.
type SortResult struct {
	Processed int                   `json:"processed"`
	Failed    int                   `json:"failed"`
	Skipped   int                   `json:"skipped"`
	Labeled   map[CategoryLabel]int `json:"labeled"`
}

// FetchError reports that the mail store could not be searched or read.
// It is the only error a pipeline operation returns.
type FetchError struct {
	Query string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch emails for %q: %v", e.Query, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
