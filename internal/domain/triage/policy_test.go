package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackFor(t *testing.T) {
	for _, c := range []Condition{OracleError, UnrecognizedResponse, Condition("something-else")} {
		t.Run(string(c), func(t *testing.T) {
			f := FallbackFor(c)
			assert.Equal(t, NotImportant, f.Importance)
			assert.Equal(t, LabelInbox, f.Category)
			assert.Empty(t, f.Tasks)
		})
	}
}

func TestCategoryLabelValid(t *testing.T) {
	for _, l := range Labels {
		assert.True(t, l.Valid(), l)
	}
	assert.False(t, CategoryLabel("important").Valid())
	assert.False(t, CategoryLabel("").Valid())
}
